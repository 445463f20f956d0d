package panels

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/farmreport/internal/domain/models"
)

func TestDefaultLayoutsLoad(t *testing.T) {
	c := Default()
	for _, name := range []string{LayoutConfig, LayoutSchedule, LayoutScheduleCal, LayoutScheduleHelp, LayoutScheduleMethod, LayoutLastPeriod} {
		_, err := c.Layout(name)
		assert.NoError(t, err, name)
	}
}

func TestEncodePlacesFieldsInMappedSlots(t *testing.T) {
	c := Default()
	rec := NewRecord().
		SetInt("mating", 12).
		SetInt("shipment", 40).
		SetText("period_from", "2025-06-02")

	row, err := c.Encode(LayoutSchedule, rec)
	require.NoError(t, err)

	assert.Equal(t, "SCHEDULE", row.Panel)
	assert.Equal(t, models.DefaultSubPanel, row.SubPanel)
	assert.True(t, row.Counts[0].Equal(decimal.NewFromInt(12)))
	assert.True(t, row.Counts[5].Equal(decimal.NewFromInt(40)))
	assert.Equal(t, "2025-06-02", row.Texts[0])
}

func TestEncodeUnknownField(t *testing.T) {
	c := Default()

	_, err := c.Encode(LayoutSchedule, NewRecord().SetInt("litters", 3))
	assert.ErrorIs(t, err, ErrUnknownField)

	// period_from is a text slot; a number cannot land there.
	_, err = c.Encode(LayoutSchedule, NewRecord().SetInt("period_from", 3))
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = c.Encode(LayoutSchedule, NewRecord().SetText("mating", "x"))
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestUnknownPanel(t *testing.T) {
	c := Default()

	_, err := c.Encode("NOPE", NewRecord())
	assert.ErrorIs(t, err, ErrUnknownPanel)

	_, err = c.Decode("NOPE", models.PanelRow{})
	assert.ErrorIs(t, err, ErrUnknownPanel)
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	c := Default()
	layout, err := c.Layout(LayoutLastPeriod)
	require.NoError(t, err)

	rec := NewRecord()
	rec.Code1 = "FARM"
	for i, name := range layout.Fields() {
		if s := layout.fields[name]; s.kind == slotText {
			rec.SetText(name, name)
		} else {
			rec.SetNumber(name, decimal.NewFromFloat(float64(i)+0.5))
		}
	}

	row, err := c.Encode(LayoutLastPeriod, rec)
	require.NoError(t, err)
	got, err := c.Decode(LayoutLastPeriod, row)
	require.NoError(t, err)

	assert.Equal(t, rec.Code1, got.Code1)
	assert.Equal(t, rec.Texts, got.Texts)
	require.Len(t, got.Numbers, len(rec.Numbers))
	for name, want := range rec.Numbers {
		assert.True(t, want.Equal(got.Number(name)), name)
	}

	again, err := c.Encode(LayoutLastPeriod, got)
	require.NoError(t, err)
	assert.Equal(t, row, again)
}

func TestSubPanelRowsDoNotShareSlots(t *testing.T) {
	c := Default()

	cal, err := c.Encode(LayoutScheduleCal, NewRecord().SetInt("day_1", 5))
	require.NoError(t, err)
	help, err := c.Encode(LayoutScheduleHelp, NewRecord().SetText("mating", "(farm default)"))
	require.NoError(t, err)

	assert.Equal(t, "CAL", cal.SubPanel)
	assert.Equal(t, "HELP", help.SubPanel)
	assert.Empty(t, cal.Texts[0])
	assert.True(t, help.Counts[0].IsZero())
}

func TestNewCodecRejectsBadLayouts(t *testing.T) {
	cases := map[string]string{
		"shared slot": `
panels:
  - name: A
    fields:
      x: CNT_1
      y: CNT_1
`,
		"slot out of range": `
panels:
  - name: A
    fields:
      x: CNT_16
`,
		"bad kind": `
panels:
  - name: A
    fields:
      x: NUM_1
`,
		"duplicate panel": `
panels:
  - name: A
    fields:
      x: CNT_1
  - name: A
    sub_panel: "-"
    fields:
      y: CNT_2
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCodec([]byte(doc))
			assert.Error(t, err)
		})
	}
}
