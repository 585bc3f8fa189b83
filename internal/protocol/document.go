// Package protocol implements the protocol builder core: column and scoring
// models, the compiler that turns them into an executable protocol document,
// the hydrator that rebuilds builder state from a saved document, and the
// applicator for assistant-generated actions.
package protocol

// TabBehavior controls where focus moves after committing a cell in this column.
type TabBehavior string

const (
	TabNextColumn        TabBehavior = "nextColumn"
	TabNextRow           TabBehavior = "nextRow"
	TabNextRowPrevColumn TabBehavior = "nextRowPrevColumn"
)

// PossibleValue describes one allowed value domain for a column. Integer
// entries carry min/max bounds, string entries carry an option list.
type PossibleValue struct {
	Type    string   `json:"type"`
	Min     *int     `json:"min,omitempty"`
	Max     *int     `json:"max,omitempty"`
	Options []string `json:"options,omitempty"`
}

// AutoFill is a column's automatic fill configuration as it appears in the
// document. Value is an int when the configured text is a pure integer
// literal, otherwise a string.
type AutoFill struct {
	Value              any  `json:"value"`
	Overwrite          bool `json:"overwrite"`
	SetNegativeControl bool `json:"setNegativeControl"`
	SetPositiveControl bool `json:"setPositiveControl"`
}

// Column is the full document form of one column, including the builder hint
// fields (allowInt through tabBehavior) that the export strips.
type Column struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Abbr                  string          `json:"abbr"`
	BackgroundColor       string          `json:"backgroundColor"`
	PossibleValues        []PossibleValue `json:"possibleValues"`
	AllowInt              bool            `json:"allowInt"`
	AllowStr              bool            `json:"allowStr"`
	IntMin                int             `json:"intMin"`
	IntMax                *int            `json:"intMax"`
	StrOptions            []string        `json:"strOptions"`
	TabBehavior           TabBehavior     `json:"tabBehavior"`
	ShowWhenPrescribing   bool            `json:"showWhenPrescribing,omitempty"`
	AutoFill              *AutoFill       `json:"autoFill,omitempty"`
	UseAsStartingDilution bool            `json:"useAsStartingDilution,omitempty"`
	PositiveValues        []PossibleValue `json:"positiveValues,omitempty"`
}

// RuleCondition is the trigger part of a calculation rule.
type RuleCondition struct {
	Type      string   `json:"type"`
	ColumnIDs []string `json:"columnIds"`
}

// RuleResult is the effect part of a calculation rule. Exactly one of the
// focus fields or FunctionName is populated depending on Type.
type RuleResult struct {
	Type            string `json:"type"`
	RelativeRows    int    `json:"relativeRows,omitempty"`
	RelativeColumns int    `json:"relativeColumns,omitempty"`
	FunctionName    string `json:"functionName,omitempty"`
}

// CalculationRule binds conditions to results in the executable document.
type CalculationRule struct {
	Conditions []RuleCondition `json:"conditions"`
	Results    []RuleResult    `json:"results"`
}

// ScoringCondition is one clause of a scoring rule. Op "always" marks the
// clause unconditional; Base offsets numeric thresholds against a reference
// row ("negative" or "positive") instead of zero.
type ScoringCondition struct {
	Col    string `json:"col"`
	Op     string `json:"op"`
	Thresh string `json:"thresh"`
	Base   string `json:"base"`
}

// ScoringUpdate assigns a value to a column when its rule matches.
type ScoringUpdate struct {
	Col string `json:"col"`
	Val string `json:"val"`
}

// ScoringRule pairs ANDed conditions with the updates they produce.
type ScoringRule struct {
	Conditions []ScoringCondition `json:"conditions"`
	Updates    []ScoringUpdate    `json:"updates"`
}

// ScoringConfig is the structured form of one scoring card, kept in the
// stored document so the builder UI can be rebuilt. It never appears in the
// exported document.
type ScoringConfig struct {
	TriggerColumn   string        `json:"triggerColumn"`
	Scope           string        `json:"scope"`
	RequireNegative bool          `json:"requireNegative"`
	RequirePositive bool          `json:"requirePositive"`
	Rules           []ScoringRule `json:"rules"`
}

// Document is the compiled protocol: what gets persisted and, after Export,
// handed to the external evaluation engine.
type Document struct {
	ProtocolID       int               `json:"protocol_id"`
	VersionNumber    int               `json:"version_number"`
	Columns          []Column          `json:"columns"`
	NamedFunctions   map[string]string `json:"namedFunctions"`
	CalculationRules []CalculationRule `json:"calculationRules"`
	ScoringConfigs   []ScoringConfig   `json:"scoringConfigs"`
}

// ExportColumn is the consumer-facing column shape: identity plus value
// domains, with every builder hint removed and optional fields omitted
// unless meaningfully set.
type ExportColumn struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Abbr                  string          `json:"abbr"`
	BackgroundColor       string          `json:"backgroundColor"`
	AutoFill              *AutoFill       `json:"autoFill,omitempty"`
	ShowWhenPrescribing   bool            `json:"showWhenPrescribing,omitempty"`
	PossibleValues        []PossibleValue `json:"possibleValues,omitempty"`
	UseAsStartingDilution bool            `json:"useAsStartingDilution,omitempty"`
	PositiveValues        []PossibleValue `json:"positiveValues,omitempty"`
}

// ExportDocument is the consumer-facing document shape, with scoringConfigs
// stripped entirely.
type ExportDocument struct {
	ProtocolID       int               `json:"protocol_id"`
	VersionNumber    int               `json:"version_number"`
	Columns          []ExportColumn    `json:"columns"`
	NamedFunctions   map[string]string `json:"namedFunctions"`
	CalculationRules []CalculationRule `json:"calculationRules"`
}

// Export strips builder-only metadata from the document: scoringConfigs
// disappear and each column keeps only its identity and value domains.
func (d *Document) Export() *ExportDocument {
	out := &ExportDocument{
		ProtocolID:       d.ProtocolID,
		VersionNumber:    d.VersionNumber,
		Columns:          make([]ExportColumn, 0, len(d.Columns)),
		NamedFunctions:   d.NamedFunctions,
		CalculationRules: d.CalculationRules,
	}
	if out.NamedFunctions == nil {
		out.NamedFunctions = map[string]string{}
	}
	if out.CalculationRules == nil {
		out.CalculationRules = []CalculationRule{}
	}

	for _, col := range d.Columns {
		ec := ExportColumn{
			ID:              col.ID,
			Name:            col.Name,
			Abbr:            col.Abbr,
			BackgroundColor: col.BackgroundColor,
			AutoFill:        col.AutoFill,
		}
		if col.ShowWhenPrescribing {
			ec.ShowWhenPrescribing = true
		}
		if len(col.PossibleValues) > 0 {
			ec.PossibleValues = col.PossibleValues
		}
		if col.UseAsStartingDilution {
			ec.UseAsStartingDilution = true
		}
		if len(col.PositiveValues) > 0 {
			ec.PositiveValues = col.PositiveValues
		}
		out.Columns = append(out.Columns, ec)
	}

	return out
}
