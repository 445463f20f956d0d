// Package panels converts named report records to and from the generic wide
// rows they are persisted as.
package panels

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/farmreport/internal/domain/models"
)

var (
	// ErrUnknownField is returned when a record names a field its panel layout
	// does not map, or maps to a slot of the wrong kind.
	ErrUnknownField = errors.New("unknown panel field")
	// ErrUnknownPanel is returned for a layout name the codec does not know.
	ErrUnknownPanel = errors.New("unknown panel")
)

// Record is the semantic view of one panel row. Numbers go to CNT or VAL
// slots, Texts to STR slots.
type Record struct {
	Code1   string
	Code2   string
	Numbers map[string]decimal.Decimal
	Texts   map[string]string
}

// NewRecord returns an empty record ready for Set calls.
func NewRecord() Record {
	return Record{Numbers: map[string]decimal.Decimal{}, Texts: map[string]string{}}
}

func (r Record) SetInt(name string, v int) Record {
	r.Numbers[name] = decimal.NewFromInt(int64(v))
	return r
}

func (r Record) SetNumber(name string, v decimal.Decimal) Record {
	r.Numbers[name] = v
	return r
}

func (r Record) SetText(name, v string) Record {
	r.Texts[name] = v
	return r
}

// Number returns the named numeric field, zero when absent.
func (r Record) Number(name string) decimal.Decimal {
	return r.Numbers[name]
}

// Int returns the named numeric field truncated to an int.
func (r Record) Int(name string) int {
	return int(r.Numbers[name].IntPart())
}

// Text returns the named text field, empty when absent.
func (r Record) Text(name string) string {
	return r.Texts[name]
}

// Codec holds the fixed field maps of every panel.
type Codec struct {
	layouts map[string]Layout
}

// NewCodec builds a codec from a YAML layout document.
func NewCodec(data []byte) (*Codec, error) {
	layouts, err := parseLayouts(data)
	if err != nil {
		return nil, err
	}
	return &Codec{layouts: layouts}, nil
}

// Default returns the codec for the layouts shipped with the binary.
func Default() *Codec {
	c, err := NewCodec(defaultLayouts)
	if err != nil {
		panic(fmt.Sprintf("panels: embedded layouts: %v", err))
	}
	return c
}

// Layout looks up a layout by name.
func (c *Codec) Layout(name string) (Layout, error) {
	l, ok := c.layouts[name]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %s", ErrUnknownPanel, name)
	}
	return l, nil
}

// Encode places rec into a wide row of the named panel. Only the panel and
// sub-panel of the key are filled in; the caller owns batch, farm and sort.
func (c *Codec) Encode(panel string, rec Record) (models.PanelRow, error) {
	layout, err := c.Layout(panel)
	if err != nil {
		return models.PanelRow{}, err
	}

	row := models.PanelRow{
		PanelKey: models.PanelKey{Panel: layout.Panel, SubPanel: layout.SubPanel},
		Code1:    rec.Code1,
		Code2:    rec.Code2,
	}
	for name, v := range rec.Numbers {
		s, ok := layout.fields[name]
		if !ok || s.kind == slotText {
			return models.PanelRow{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, layout.Name(), name)
		}
		if s.kind == slotCount {
			row.Counts[s.index] = v
		} else {
			row.Values[s.index] = v
		}
	}
	for name, v := range rec.Texts {
		s, ok := layout.fields[name]
		if !ok || s.kind != slotText {
			return models.PanelRow{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, layout.Name(), name)
		}
		row.Texts[s.index] = v
	}
	return row, nil
}

// Decode reads every mapped field of the row back into a record. Slots not
// in the layout are ignored.
func (c *Codec) Decode(panel string, row models.PanelRow) (Record, error) {
	layout, err := c.Layout(panel)
	if err != nil {
		return Record{}, err
	}

	rec := NewRecord()
	rec.Code1, rec.Code2 = row.Code1, row.Code2
	for name, s := range layout.fields {
		switch s.kind {
		case slotCount:
			rec.Numbers[name] = row.Counts[s.index]
		case slotValue:
			rec.Numbers[name] = row.Values[s.index]
		case slotText:
			rec.Texts[name] = row.Texts[s.index]
		}
	}
	return rec, nil
}

// LayoutName returns the lookup name for a stored row's panel and sub-panel.
func LayoutName(panel, subPanel string) string {
	if subPanel == "" || subPanel == models.DefaultSubPanel {
		return panel
	}
	return panel + "/" + subPanel
}
