package protocol

import (
	"math"
	"strconv"
	"strings"
)

// ControlMode selects which reference rows an autofill applies to.
type ControlMode string

const (
	ControlNone     ControlMode = "none"
	ControlNegative ControlMode = "negative"
	ControlPositive ControlMode = "positive"
	ControlBoth     ControlMode = "both"
)

// ColumnCard is the in-memory state of one column in the builder. It mirrors
// every interactive field of the column editor; the compiler reads cards in
// order and the hydrator writes them back from a saved document.
type ColumnCard struct {
	// PresetKey tags a card created from a preset so later lookups can
	// match by preset name.
	PresetKey string

	ID              string
	Name            string
	Abbr            string
	BackgroundColor string

	AllowInt   bool
	AllowStr   bool
	IntMax     *int // min is fixed at zero
	StrOptions []string

	TabBehavior           TabBehavior
	UseAsStartingDilution bool
	ShowWhenPrescribing   bool

	AutoFillEnabled     bool
	AutoFillValue       string
	AutoFillOverwrite   bool
	AutoFillControlMode ControlMode

	HasPositive        bool
	PositiveIntMin     *int
	PositiveStrOptions []string
}

// NewColumnCard returns a card with the editor's initial state: both value
// types allowed, white background, focus moving to the next column.
func NewColumnCard() *ColumnCard {
	return &ColumnCard{
		BackgroundColor:     "#FFFFFF",
		AllowInt:            true,
		AllowStr:            true,
		TabBehavior:         TabNextColumn,
		AutoFillControlMode: ControlNone,
	}
}

// ApplyPreset overwrites the card's fields from a preset configuration and
// tags the card with the preset key.
func (c *ColumnCard) ApplyPreset(p *Preset) {
	cfg := p.Config
	c.PresetKey = p.Key

	c.ID = cfg.ID
	c.Name = cfg.Name
	c.Abbr = cfg.Abbr
	if cfg.BackgroundColor != "" {
		c.BackgroundColor = cfg.BackgroundColor
	} else {
		c.BackgroundColor = "#DDDDDD"
	}

	c.AllowInt = cfg.AllowInt
	c.AllowStr = cfg.AllowStr
	c.IntMax = cfg.IntMax
	c.StrOptions = append([]string(nil), cfg.StrOptions...)

	if cfg.TabBehavior != "" {
		c.TabBehavior = cfg.TabBehavior
	}
	c.UseAsStartingDilution = cfg.UseAsStartingDilution
	c.ShowWhenPrescribing = cfg.ShowWhenPrescribing

	c.AutoFillValue = cfg.AutoFillValue
	c.AutoFillOverwrite = cfg.AutoFillOverwrite
	switch {
	case cfg.AutoFillSetNeg && cfg.AutoFillSetPos:
		c.AutoFillControlMode = ControlBoth
	case cfg.AutoFillSetNeg:
		c.AutoFillControlMode = ControlNegative
	case cfg.AutoFillSetPos:
		c.AutoFillControlMode = ControlPositive
	default:
		c.AutoFillControlMode = ControlNone
	}
	c.AutoFillEnabled = cfg.AutoFillValue != "" || cfg.AutoFillOverwrite ||
		cfg.AutoFillSetNeg || cfg.AutoFillSetPos

	c.HasPositive = cfg.HasPositive
	c.PositiveIntMin = cfg.PositiveIntMin
	c.PositiveStrOptions = append([]string(nil), cfg.PositiveStrOptions...)
}

// controlFlags expands the control mode into its negative/positive pair.
func (m ControlMode) controlFlags() (neg, pos bool) {
	switch m {
	case ControlNegative:
		return true, false
	case ControlPositive:
		return false, true
	case ControlBoth:
		return true, true
	}
	return false, false
}

// controlModeFromFlags is the inverse of controlFlags.
func controlModeFromFlags(neg, pos bool) ControlMode {
	switch {
	case neg && pos:
		return ControlBoth
	case neg:
		return ControlNegative
	case pos:
		return ControlPositive
	}
	return ControlNone
}

// splitCSV splits a comma-separated option list, trimming whitespace and
// dropping empty entries.
func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// formatNumber renders a JSON number the way a text input would hold it:
// whole values without a decimal point.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// normalizeStringList trims entries and removes blanks and duplicates while
// preserving first-seen order.
func normalizeStringList(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		s := strings.TrimSpace(v)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
