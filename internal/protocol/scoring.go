package protocol

// Scope names which rows a scoring card applies to: ordinary rows
// ("neither"), positive reference rows, or negative reference rows.
const (
	ScopeNeither  = "neither"
	ScopePositive = "positive"
	ScopeNegative = "negative"
)

// RequireControls names the reference rows that must exist and be scored
// before a scoring card's rules run.
const (
	RequireNone     = "none"
	RequireNegative = "negative"
	RequirePositive = "positive"
	RequireBoth     = "both"
)

// ConditionRow is one editable condition clause on a scoring card.
type ConditionRow struct {
	Col    string
	Op     string // always, >, >=, <, <=, ==, !=
	Thresh string
	Base   string // zero, negative, positive
}

// UpdateRow is one editable update on a scoring card.
type UpdateRow struct {
	Col string
	Val string
}

// RuleRow groups the condition and update rows of one scoring rule. A rule
// row always holds at least one condition row and one update row, matching
// the editor's floor.
type RuleRow struct {
	Conditions []ConditionRow
	Updates    []UpdateRow
}

// NewRuleRow returns a rule row with the editor's initial single condition
// and single update.
func NewRuleRow() RuleRow {
	return RuleRow{
		Conditions: []ConditionRow{{Op: "always", Base: "zero"}},
		Updates:    []UpdateRow{{}},
	}
}

// ScoringCard is the in-memory state of one scoring trigger in the builder.
type ScoringCard struct {
	TriggerColumn   string
	Scope           string // neither, positive, negative
	RequireControls string // none, negative, positive, both
	Rules           []RuleRow
}

// NewScoringCard returns a card with one empty rule row and the editor's
// default selections.
func NewScoringCard() *ScoringCard {
	return &ScoringCard{
		Scope:           ScopeNeither,
		RequireControls: RequireNone,
		Rules:           []RuleRow{NewRuleRow()},
	}
}

// requireFlags expands the require-controls selection into its boolean pair.
func (s *ScoringCard) requireFlags() (neg, pos bool) {
	return s.RequireControls == RequireNegative || s.RequireControls == RequireBoth,
		s.RequireControls == RequirePositive || s.RequireControls == RequireBoth
}

// pruneColumnRefs clears any column selection that no longer resolves
// against the given set of valid selections. Matching is case-insensitive
// with an alphanumeric-normalized fallback, mirroring how selections are
// restored; a selection that still matches is rewritten to its canonical
// spelling.
func (s *ScoringCard) pruneColumnRefs(valid []string) {
	resolve := func(ref string) string {
		return matchOption(valid, ref)
	}

	s.TriggerColumn = resolve(s.TriggerColumn)
	for i := range s.Rules {
		for j := range s.Rules[i].Conditions {
			s.Rules[i].Conditions[j].Col = resolve(s.Rules[i].Conditions[j].Col)
		}
		for j := range s.Rules[i].Updates {
			s.Rules[i].Updates[j].Col = resolve(s.Rules[i].Updates[j].Col)
		}
	}
}
