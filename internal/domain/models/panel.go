package models

import "github.com/shopspring/decimal"

// SlotCount is the width of each generic slot array on a panel row.
const SlotCount = 15

// DefaultSubPanel is used when a panel has no sub-sections.
const DefaultSubPanel = "-"

// PanelKey locates a row within a report. Sort must be unique per
// (batch, farm, panel, sub-panel) and drives render order.
type PanelKey struct {
	BatchID  string `json:"batch_id"`
	FarmID   int64  `json:"farm_id"`
	Panel    string `json:"panel"`
	SubPanel string `json:"sub_panel"`
	Sort     int    `json:"sort"`
}

// PanelRow is the generic wide row every report panel is stored as. Slots
// are addressed 0-indexed here; layouts name them CNT_1..CNT_15 etc.
type PanelRow struct {
	PanelKey
	Code1  string                     `json:"code_1,omitempty"`
	Code2  string                     `json:"code_2,omitempty"`
	Counts [SlotCount]decimal.Decimal `json:"counts"`
	Values [SlotCount]decimal.Decimal `json:"values"`
	Texts  [SlotCount]string          `json:"texts"`
}
