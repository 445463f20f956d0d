package panels

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mamadbah2/farmreport/internal/domain/models"
)

// Layout names understood by the default codec.
const (
	LayoutConfig         = "CONFIG"
	LayoutSchedule       = "SCHEDULE"
	LayoutScheduleCal    = "SCHEDULE/CAL"
	LayoutScheduleHelp   = "SCHEDULE/HELP"
	LayoutScheduleMethod = "SCHEDULE/METHOD"
	LayoutLastPeriod     = "LAST_PERIOD"
)

//go:embed layouts.yaml
var defaultLayouts []byte

type slotKind int

const (
	slotCount slotKind = iota
	slotValue
	slotText
)

type slot struct {
	kind  slotKind
	index int
}

func (s slot) String() string {
	prefix := "CNT"
	switch s.kind {
	case slotValue:
		prefix = "VAL"
	case slotText:
		prefix = "STR"
	}
	return fmt.Sprintf("%s_%d", prefix, s.index+1)
}

// Layout is the field map of one panel (or panel section).
type Layout struct {
	Panel    string
	SubPanel string
	Version  int
	fields   map[string]slot
}

// Name is the lookup name of the layout: the panel alone for the default
// section, otherwise "PANEL/SUB".
func (l Layout) Name() string {
	return LayoutName(l.Panel, l.SubPanel)
}

// Fields returns the field names mapped by the layout.
func (l Layout) Fields() []string {
	names := make([]string, 0, len(l.fields))
	for name := range l.fields {
		names = append(names, name)
	}
	return names
}

type layoutFile struct {
	Panels []struct {
		Name     string            `yaml:"name"`
		SubPanel string            `yaml:"sub_panel"`
		Version  int               `yaml:"version"`
		Fields   map[string]string `yaml:"fields"`
	} `yaml:"panels"`
}

func parseLayouts(data []byte) (map[string]Layout, error) {
	var file layoutFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode layouts: %w", err)
	}

	layouts := make(map[string]Layout, len(file.Panels))
	for _, p := range file.Panels {
		if p.Name == "" {
			return nil, fmt.Errorf("layout without panel name")
		}
		sub := p.SubPanel
		if sub == "" {
			sub = models.DefaultSubPanel
		}
		layout := Layout{Panel: p.Name, SubPanel: sub, Version: p.Version, fields: make(map[string]slot, len(p.Fields))}

		taken := make(map[slot]string, len(p.Fields))
		for field, raw := range p.Fields {
			s, err := parseSlot(raw)
			if err != nil {
				return nil, fmt.Errorf("layout %s field %s: %w", layout.Name(), field, err)
			}
			if other, ok := taken[s]; ok {
				return nil, fmt.Errorf("layout %s: slot %s mapped by both %s and %s", layout.Name(), s, other, field)
			}
			taken[s] = field
			layout.fields[field] = s
		}

		if _, dup := layouts[layout.Name()]; dup {
			return nil, fmt.Errorf("layout %s declared twice", layout.Name())
		}
		layouts[layout.Name()] = layout
	}
	return layouts, nil
}

func parseSlot(raw string) (slot, error) {
	prefix, num, ok := strings.Cut(strings.TrimSpace(raw), "_")
	if !ok {
		return slot{}, fmt.Errorf("invalid slot %q", raw)
	}
	var kind slotKind
	switch strings.ToUpper(prefix) {
	case "CNT":
		kind = slotCount
	case "VAL":
		kind = slotValue
	case "STR":
		kind = slotText
	default:
		return slot{}, fmt.Errorf("invalid slot kind %q", raw)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 || n > models.SlotCount {
		return slot{}, fmt.Errorf("slot index out of range %q", raw)
	}
	return slot{kind: kind, index: n - 1}, nil
}
