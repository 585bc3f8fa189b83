package protocol

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PresetConfig is the stored column configuration of a preset. It uses the
// flat field layout the preset editor produces rather than the compiled
// document shape.
type PresetConfig struct {
	ID                    string      `json:"id"`
	Name                  string      `json:"name"`
	Abbr                  string      `json:"abbr"`
	BackgroundColor       string      `json:"backgroundColor"`
	AllowInt              bool        `json:"allowInt"`
	AllowStr              bool        `json:"allowStr"`
	IntMin                int         `json:"intMin"`
	IntMax                *int        `json:"intMax,omitempty"`
	StrOptions            []string    `json:"strOptions"`
	TabBehavior           TabBehavior `json:"tabBehavior"`
	UseAsStartingDilution bool        `json:"useAsStartingDilution"`
	HasPositive           bool        `json:"hasPositive"`
	ShowWhenPrescribing   bool        `json:"showWhenPrescribing"`
	AutoFillValue         string      `json:"autoFillValue"`
	AutoFillOverwrite     bool        `json:"autoFillOverwrite"`
	AutoFillSetNeg        bool        `json:"autoFillSetNeg,omitempty"`
	AutoFillSetPos        bool        `json:"autoFillSetPos,omitempty"`
	PositiveIntMin        *int        `json:"positiveIntMin,omitempty"`
	PositiveStrOptions    []string    `json:"positiveStrOptions,omitempty"`
}

// UnmarshalJSON accepts autoFillValue as either a string or a number, since
// stored preset configs and assistant output use both.
func (p *PresetConfig) UnmarshalJSON(data []byte) error {
	type alias PresetConfig
	aux := struct {
		*alias
		AutoFillValue any `json:"autoFillValue"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch v := aux.AutoFillValue.(type) {
	case nil:
		p.AutoFillValue = ""
	case string:
		p.AutoFillValue = v
	case float64:
		p.AutoFillValue = formatNumber(v)
	default:
		p.AutoFillValue = fmt.Sprint(v)
	}
	return nil
}

// Preset is a reusable column configuration selectable in the builder.
type Preset struct {
	Key           string
	Label         string
	StandardOrder *int
	Config        PresetConfig
}

// Catalog is an immutable set of presets. Builders receive one explicitly;
// there is no ambient preset registry.
type Catalog struct {
	presets map[string]Preset
	order   []string
}

// CatalogEntry is the raw form a catalog is built from, typically rows
// loaded from the preset store.
type CatalogEntry struct {
	Key           string
	Label         string
	Config        json.RawMessage
	StandardOrder *int
}

// NewCatalog builds a catalog from stored preset rows. Entries with invalid
// config JSON are rejected.
func NewCatalog(entries []CatalogEntry) (*Catalog, error) {
	c := &Catalog{presets: make(map[string]Preset, len(entries))}
	for _, e := range entries {
		var cfg PresetConfig
		if err := json.Unmarshal(e.Config, &cfg); err != nil {
			return nil, fmt.Errorf("preset %s: %w", e.Key, err)
		}
		c.presets[e.Key] = Preset{
			Key:           e.Key,
			Label:         e.Label,
			StandardOrder: e.StandardOrder,
			Config:        cfg,
		}
	}

	ordered := make([]Preset, 0, len(c.presets))
	for _, p := range c.presets {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		oi, oj := 9999, 9999
		if ordered[i].StandardOrder != nil {
			oi = *ordered[i].StandardOrder
		}
		if ordered[j].StandardOrder != nil {
			oj = *ordered[j].StandardOrder
		}
		if oi != oj {
			return oi < oj
		}
		return ordered[i].Key < ordered[j].Key
	})
	c.order = make([]string, len(ordered))
	for i, p := range ordered {
		c.order[i] = p.Key
	}

	return c, nil
}

// DefaultCatalog returns the built-in preset set used when the store has
// nothing else: text, score, status, and result columns.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultCatalogEntries())
	if err != nil {
		// The built-in entries are constants; failing to parse them is a bug.
		panic(err)
	}
	return c
}

// DefaultCatalogEntries returns the built-in presets in storable form, used
// both by DefaultCatalog and to seed the preset table.
func DefaultCatalogEntries() []CatalogEntry {
	orders := []int{1, 2, 3, 4}
	return []CatalogEntry{
		{
			Key:   "text_input",
			Label: "Text Input",
			Config: json.RawMessage(`{
				"id": "Text", "name": "Text Input", "abbr": "Tx",
				"backgroundColor": "#FFFFFF",
				"allowInt": false, "allowStr": true, "strOptions": [],
				"tabBehavior": "nextRow",
				"useAsStartingDilution": false, "hasPositive": false,
				"showWhenPrescribing": false,
				"autoFillValue": "", "autoFillOverwrite": false
			}`),
			StandardOrder: &orders[0],
		},
		{
			Key:   "score_input",
			Label: "Score Input",
			Config: json.RawMessage(`{
				"id": "Score", "name": "Score", "abbr": "Sc",
				"backgroundColor": "#E0F0FF",
				"allowInt": true, "intMin": 0, "intMax": 10,
				"allowStr": false,
				"tabBehavior": "nextColumn",
				"useAsStartingDilution": false, "hasPositive": false,
				"showWhenPrescribing": true,
				"autoFillValue": "0", "autoFillOverwrite": false
			}`),
			StandardOrder: &orders[1],
		},
		{
			Key:   "status",
			Label: "Status",
			Config: json.RawMessage(`{
				"id": "Status", "name": "Status", "abbr": "St",
				"backgroundColor": "#FFFFE0",
				"allowInt": false, "allowStr": true,
				"strOptions": ["Pending", "Approved", "Rejected", "N/A"],
				"tabBehavior": "nextRow",
				"useAsStartingDilution": false, "hasPositive": false,
				"showWhenPrescribing": false,
				"autoFillValue": "Pending", "autoFillOverwrite": true
			}`),
			StandardOrder: &orders[2],
		},
		{
			Key:   "result",
			Label: "Result",
			Config: json.RawMessage(`{
				"id": "Result", "name": "Result", "abbr": "Res",
				"backgroundColor": "#DDDDDD",
				"allowInt": true, "intMin": 0, "intMax": 100,
				"allowStr": true, "strOptions": ["Pass", "Fail"],
				"tabBehavior": "nextRow",
				"useAsStartingDilution": false, "hasPositive": false,
				"showWhenPrescribing": true,
				"autoFillValue": "", "autoFillOverwrite": false
			}`),
			StandardOrder: &orders[3],
		},
	}
}

// Get returns the preset for an exact key.
func (c *Catalog) Get(key string) (Preset, bool) {
	p, ok := c.presets[key]
	return p, ok
}

// Keys returns the preset keys in standard order.
func (c *Catalog) Keys() []string {
	return append([]string(nil), c.order...)
}

// ResolveKey maps a loose reference to a preset key: exact key first, then
// case-insensitive key, then case-insensitive match against each preset's
// column id, name, or abbreviation. Returns "" when nothing matches.
func (c *Catalog) ResolveKey(ref string) string {
	raw := strings.TrimSpace(ref)
	if raw == "" {
		return ""
	}

	if _, ok := c.presets[raw]; ok {
		return raw
	}

	lower := strings.ToLower(raw)
	for _, key := range c.order {
		if strings.ToLower(key) == lower {
			return key
		}
	}

	for _, key := range c.order {
		cfg := c.presets[key].Config
		if strings.ToLower(cfg.ID) == lower ||
			strings.ToLower(cfg.Name) == lower ||
			strings.ToLower(cfg.Abbr) == lower {
			return key
		}
	}

	return ""
}
