package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// flexString decodes a JSON scalar of any type into its text form. Saved
// documents and AI actions sometimes carry numbers or booleans where the
// editor holds text.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexString(stringifyScalar(v))
	return nil
}

// stringifyScalar renders a decoded JSON scalar the way a text input would
// hold it. nil becomes the empty string.
func stringifyScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatNumber(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// columnDoc is the lenient on-disk shape of one column. AllowInt and
// AllowStr are pointers so older documents without the editor hint fields
// can be told apart from explicit false.
type columnDoc struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Abbr                  string          `json:"abbr"`
	BackgroundColor       string          `json:"backgroundColor"`
	PossibleValues        []PossibleValue `json:"possibleValues"`
	AllowInt              *bool           `json:"allowInt"`
	AllowStr              *bool           `json:"allowStr"`
	IntMin                *int            `json:"intMin"`
	IntMax                *int            `json:"intMax"`
	StrOptions            []string        `json:"strOptions"`
	TabBehavior           TabBehavior     `json:"tabBehavior"`
	ShowWhenPrescribing   bool            `json:"showWhenPrescribing"`
	UseAsStartingDilution bool            `json:"useAsStartingDilution"`
	AutoFill              *autoFillDoc    `json:"autoFill"`
	PositiveValues        []PossibleValue `json:"positiveValues"`
}

type autoFillDoc struct {
	Value              any  `json:"value"`
	Overwrite          bool `json:"overwrite"`
	SetNegativeControl bool `json:"setNegativeControl"`
	SetPositiveControl bool `json:"setPositiveControl"`
}

type scoringConditionDoc struct {
	Col    flexString `json:"col"`
	Op     flexString `json:"op"`
	Thresh flexString `json:"thresh"`
	Base   flexString `json:"base"`
}

type scoringUpdateDoc struct {
	Col flexString `json:"col"`
	Val flexString `json:"val"`
}

type scoringRuleDoc struct {
	Conditions []scoringConditionDoc `json:"conditions"`
	Updates    []scoringUpdateDoc    `json:"updates"`
}

type scoringConfigDoc struct {
	TriggerColumn   string           `json:"triggerColumn"`
	Scope           string           `json:"scope"`
	RequireNegative bool             `json:"requireNegative"`
	RequirePositive bool             `json:"requirePositive"`
	Rules           []scoringRuleDoc `json:"rules"`
}

// toScoringConfig converts the lenient document form to the compiled form.
func (d scoringConfigDoc) toScoringConfig() ScoringConfig {
	cfg := ScoringConfig{
		TriggerColumn:   d.TriggerColumn,
		Scope:           d.Scope,
		RequireNegative: d.RequireNegative,
		RequirePositive: d.RequirePositive,
	}
	for _, r := range d.Rules {
		rule := ScoringRule{}
		for _, c := range r.Conditions {
			rule.Conditions = append(rule.Conditions, ScoringCondition{
				Col:    string(c.Col),
				Op:     string(c.Op),
				Thresh: string(c.Thresh),
				Base:   string(c.Base),
			})
		}
		for _, u := range r.Updates {
			rule.Updates = append(rule.Updates, ScoringUpdate{
				Col: string(u.Col),
				Val: string(u.Val),
			})
		}
		cfg.Rules = append(cfg.Rules, rule)
	}
	return cfg
}

type documentDoc struct {
	ProtocolID     int                `json:"protocol_id"`
	VersionNumber  int                `json:"version_number"`
	Columns        []columnDoc        `json:"columns"`
	ScoringConfigs []scoringConfigDoc `json:"scoringConfigs"`
}

// ApplyDocumentJSON replaces the builder's column and scoring cards with
// the state a saved document describes. Documents from older saves that
// lack the editor hint fields get their value domains derived back from
// possibleValues.
func (b *Builder) ApplyDocumentJSON(data []byte) error {
	var doc documentDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse protocol document: %w", err)
	}

	b.protocolID = doc.ProtocolID
	if doc.VersionNumber != 0 {
		b.versionNumber = doc.VersionNumber
	}

	b.columns = nil
	for i := range doc.Columns {
		b.columns = append(b.columns, hydrateColumnCard(&doc.Columns[i]))
	}

	// Scoring configs may reference columns the document never listed;
	// those get a card first so the references survive resolution.
	configs := make([]ScoringConfig, 0, len(doc.ScoringConfigs))
	for _, d := range doc.ScoringConfigs {
		configs = append(configs, d.toScoringConfig())
	}
	b.ensureColumnsForScoringConfigs(configs)

	b.scoring = nil
	b.applyScoringConfigDocs(doc.ScoringConfigs)

	return nil
}

// hydrateColumnCard rebuilds one column card from its saved form.
func hydrateColumnCard(col *columnDoc) *ColumnCard {
	card := NewColumnCard()

	card.ID = col.ID
	card.Name = col.Name
	card.Abbr = col.Abbr

	if col.BackgroundColor != "" {
		card.BackgroundColor = col.BackgroundColor
	} else {
		card.BackgroundColor = "#FFFFFF"
	}

	allowInt := col.AllowInt
	allowStr := col.AllowStr
	intMax := col.IntMax
	strOptions := col.StrOptions

	if allowInt == nil || allowStr == nil {
		var ints, strs *PossibleValue
		for i := range col.PossibleValues {
			pv := &col.PossibleValues[i]
			if pv.Type == "integer" && ints == nil {
				ints = pv
			}
			if pv.Type == "string" && strs == nil {
				strs = pv
			}
		}
		if allowInt == nil {
			v := ints != nil
			allowInt = &v
		}
		if allowStr == nil {
			v := strs != nil
			allowStr = &v
		}
		if intMax == nil && ints != nil {
			intMax = ints.Max
		}
		if strOptions == nil && strs != nil {
			strOptions = strs.Options
		}
	}

	card.AllowInt = *allowInt
	card.AllowStr = *allowStr
	card.IntMax = intMax
	card.StrOptions = append([]string(nil), strOptions...)

	if col.TabBehavior != "" {
		card.TabBehavior = col.TabBehavior
	} else {
		card.TabBehavior = TabNextColumn
	}

	card.ShowWhenPrescribing = col.ShowWhenPrescribing
	card.UseAsStartingDilution = col.UseAsStartingDilution

	var auto autoFillDoc
	if col.AutoFill != nil {
		auto = *col.AutoFill
	}
	card.AutoFillValue = stringifyScalar(auto.Value)
	card.AutoFillOverwrite = auto.Overwrite
	card.AutoFillControlMode = controlModeFromFlags(auto.SetNegativeControl, auto.SetPositiveControl)
	card.AutoFillEnabled = card.AutoFillValue != "" || auto.Overwrite ||
		auto.SetNegativeControl || auto.SetPositiveControl

	card.HasPositive = len(col.PositiveValues) > 0
	for i := range col.PositiveValues {
		pv := &col.PositiveValues[i]
		switch pv.Type {
		case "integer":
			if card.PositiveIntMin == nil {
				card.PositiveIntMin = pv.Min
			}
		case "string":
			if len(card.PositiveStrOptions) == 0 {
				card.PositiveStrOptions = append([]string(nil), pv.Options...)
			}
		}
	}

	return card
}

// validOps are the comparison operators a condition row can hold.
var validOps = map[string]bool{
	"always": true, ">": true, ">=": true, "<": true, "<=": true, "==": true, "!=": true,
}

// applyScoringConfigDocs appends one scoring card per config, resolving
// column references case-insensitively against the current columns.
func (b *Builder) applyScoringConfigDocs(configs []scoringConfigDoc) {
	opts := b.columnOptions()

	for _, cfg := range configs {
		card := NewScoringCard()
		b.scoring = append(b.scoring, card)

		card.TriggerColumn = matchOption(opts, cfg.TriggerColumn)
		switch cfg.Scope {
		case ScopePositive, ScopeNegative:
			card.Scope = cfg.Scope
		}
		card.RequireControls = requireControlsMode(cfg.RequireNegative, cfg.RequirePositive)

		if len(cfg.Rules) == 0 {
			continue
		}

		card.Rules = nil
		for _, r := range cfg.Rules {
			row := NewRuleRow()

			if len(r.Conditions) > 0 {
				row.Conditions = nil
				for _, c := range r.Conditions {
					row.Conditions = append(row.Conditions, hydrateConditionRow(opts, c))
				}
			}

			if len(r.Updates) > 0 {
				row.Updates = nil
				for _, u := range r.Updates {
					row.Updates = append(row.Updates, UpdateRow{
						Col: matchOption(opts, string(u.Col)),
						Val: string(u.Val),
					})
				}
			}

			card.Rules = append(card.Rules, row)
		}
	}
}

// hydrateConditionRow restores one condition clause. Legacy documents may
// spell equality "=", which normalizes to "==".
func hydrateConditionRow(opts []string, c scoringConditionDoc) ConditionRow {
	op := strings.TrimSpace(string(c.Op))
	if op == "" {
		op = "always"
	}
	if op == "=" {
		op = "=="
	}
	if !validOps[op] {
		op = "always"
	}

	base := string(c.Base)
	if base == "" {
		base = "zero"
	}

	return ConditionRow{
		Col:    matchOption(opts, string(c.Col)),
		Op:     op,
		Thresh: string(c.Thresh),
		Base:   base,
	}
}

// requireControlsMode folds the saved boolean pair back to the selector
// value.
func requireControlsMode(neg, pos bool) string {
	switch {
	case neg && pos:
		return RequireBoth
	case neg:
		return RequireNegative
	case pos:
		return RequirePositive
	}
	return RequireNone
}
