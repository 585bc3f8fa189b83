package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

// --- Round Trip Tests ---

func TestDocumentRoundTrip(t *testing.T) {
	b := NewBuilder(nil)
	b.AddPresetColumns()

	prick := b.AddColumnCard()
	prick.ID = "Prick"
	prick.Name = "Prick"
	prick.Abbr = "Pk"
	prick.AllowInt = true
	prick.AllowStr = false
	prick.IntMax = intp(20)
	prick.HasPositive = true
	prick.PositiveIntMin = intp(11)

	card := b.AddScoringCard()
	card.TriggerColumn = "Prick"
	card.Scope = ScopeNeither
	card.RequireControls = RequireNegative
	card.Rules = []RuleRow{
		{
			Conditions: []ConditionRow{{Col: "Prick", Op: ">=", Thresh: "3", Base: "negative"}},
			Updates:    []UpdateRow{{Col: "Score", Val: "1"}},
		},
		{
			Conditions: []ConditionRow{{Op: "always", Base: "zero"}},
			Updates:    []UpdateRow{{Col: "Score", Val: "0"}},
		},
	}

	first, err := b.Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	saved, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	fresh := NewBuilder(nil)
	if err := fresh.ApplyDocumentJSON(saved); err != nil {
		t.Fatalf("ApplyDocumentJSON() error = %v", err)
	}

	second, err := fresh.Compile()
	if err != nil {
		t.Fatalf("recompile error = %v", err)
	}
	resaved, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	if !bytes.Equal(saved, resaved) {
		t.Errorf("round trip changed the document:\nfirst:  %s\nsecond: %s", saved, resaved)
	}
}

// --- Legacy Document Tests ---

func TestHydrateDerivesDomainsFromPossibleValues(t *testing.T) {
	// an old save without the editor hint fields
	legacy := []byte(`{
		"protocol_id": 0,
		"version_number": 1,
		"columns": [
			{
				"id": "Score", "name": "Score", "abbr": "Sc",
				"backgroundColor": "#E0F0FF",
				"possibleValues": [
					{"type": "integer", "min": 0, "max": 10},
					{"type": "string", "options": ["N/A"]}
				]
			},
			{
				"id": "Note", "name": "Note", "abbr": "N"
			}
		]
	}`)

	b := NewBuilder(nil)
	if err := b.ApplyDocumentJSON(legacy); err != nil {
		t.Fatalf("ApplyDocumentJSON() error = %v", err)
	}

	score := b.Columns()[0]
	if !score.AllowInt || !score.AllowStr {
		t.Errorf("Score domains = (int=%v, str=%v), want both", score.AllowInt, score.AllowStr)
	}
	if score.IntMax == nil || *score.IntMax != 10 {
		t.Errorf("Score intMax = %v, want 10", score.IntMax)
	}
	if len(score.StrOptions) != 1 || score.StrOptions[0] != "N/A" {
		t.Errorf("Score strOptions = %v", score.StrOptions)
	}

	note := b.Columns()[1]
	if note.AllowInt || note.AllowStr {
		t.Errorf("Note with no possibleValues allows (%v, %v), want neither", note.AllowInt, note.AllowStr)
	}
	if note.BackgroundColor != "#FFFFFF" {
		t.Errorf("Note background = %q, want #FFFFFF", note.BackgroundColor)
	}
}

func TestHydrateAutoFill(t *testing.T) {
	doc := []byte(`{
		"columns": [
			{"id": "Status", "allowInt": false, "allowStr": true,
			 "autoFill": {"value": "Pending", "overwrite": true,
			              "setNegativeControl": true, "setPositiveControl": false}},
			{"id": "Plain", "allowInt": true, "allowStr": false}
		]
	}`)

	b := NewBuilder(nil)
	if err := b.ApplyDocumentJSON(doc); err != nil {
		t.Fatalf("ApplyDocumentJSON() error = %v", err)
	}

	status := b.Columns()[0]
	if !status.AutoFillEnabled || status.AutoFillValue != "Pending" || !status.AutoFillOverwrite {
		t.Errorf("autofill = enabled=%v value=%q overwrite=%v",
			status.AutoFillEnabled, status.AutoFillValue, status.AutoFillOverwrite)
	}
	if status.AutoFillControlMode != ControlNegative {
		t.Errorf("control mode = %q, want negative", status.AutoFillControlMode)
	}

	if b.Columns()[1].AutoFillEnabled {
		t.Error("column without autoFill hydrated as enabled")
	}
}

// --- Scoring Config Restore Tests ---

func TestHydrateScoringNormalizesOperators(t *testing.T) {
	doc := []byte(`{
		"columns": [{"id": "Score", "allowInt": true, "allowStr": false}],
		"scoringConfigs": [{
			"triggerColumn": "Score",
			"scope": "bogus",
			"requireNegative": true,
			"requirePositive": true,
			"rules": [{
				"conditions": [
					{"col": "Score", "op": "=", "thresh": 3, "base": ""},
					{"col": "Score", "op": "~~", "thresh": "1"}
				],
				"updates": [{"col": "Score", "val": 1}]
			}]
		}]
	}`)

	b := NewBuilder(nil)
	if err := b.ApplyDocumentJSON(doc); err != nil {
		t.Fatalf("ApplyDocumentJSON() error = %v", err)
	}

	card := b.ScoringCards()[0]
	if card.Scope != ScopeNeither {
		t.Errorf("unknown scope hydrated as %q, want neither", card.Scope)
	}
	if card.RequireControls != RequireBoth {
		t.Errorf("requireControls = %q, want both", card.RequireControls)
	}

	conds := card.Rules[0].Conditions
	if conds[0].Op != "==" {
		t.Errorf(`legacy "=" hydrated as %q, want "=="`, conds[0].Op)
	}
	if conds[0].Thresh != "3" || conds[0].Base != "zero" {
		t.Errorf("condition = %+v", conds[0])
	}
	if conds[1].Op != "always" {
		t.Errorf("unknown operator hydrated as %q, want always", conds[1].Op)
	}

	if got := card.Rules[0].Updates[0]; got.Col != "Score" || got.Val != "1" {
		t.Errorf("update = %+v", got)
	}
}

func TestHydrateScoringMatchesColumnsLoosely(t *testing.T) {
	doc := []byte(`{
		"columns": [
			{"id": "EP", "name": "End Point", "allowInt": true, "allowStr": false},
			{"id": "ID Conc", "allowInt": true, "allowStr": false}
		],
		"scoringConfigs": [{
			"triggerColumn": "ep",
			"rules": [{
				"conditions": [{"col": "ID CONC", "op": ">", "thresh": "2", "base": "zero"}],
				"updates": [{"col": "id conc ", "val": "1"}]
			}]
		}]
	}`)

	b := NewBuilder(nil)
	if err := b.ApplyDocumentJSON(doc); err != nil {
		t.Fatalf("ApplyDocumentJSON() error = %v", err)
	}

	// Case and whitespace variants resolve to the saved columns; nothing
	// here counts as missing, so no extra cards appear.
	if got := len(b.Columns()); got != 2 {
		t.Fatalf("columns = %d, want the saved 2", got)
	}

	card := b.ScoringCards()[0]
	if card.TriggerColumn != "EP" {
		t.Errorf("trigger = %q, want case-insensitive match to EP", card.TriggerColumn)
	}
	if got := card.Rules[0].Conditions[0].Col; got != "ID Conc" {
		t.Errorf("condition col = %q, want case-insensitive match to 'ID Conc'", got)
	}
	if got := card.Rules[0].Updates[0].Col; got != "ID Conc" {
		t.Errorf("update col = %q, want trimmed match to 'ID Conc'", got)
	}
}

func TestHydrateCreatesMissingScoringColumns(t *testing.T) {
	// A config can reference columns an older document never listed; they
	// get a card so the configuration survives the round trip.
	doc := []byte(`{
		"columns": [{"id": "Prick", "name": "Prick", "allowInt": true, "allowStr": false}],
		"scoringConfigs": [{
			"triggerColumn": "Prick",
			"rules": [{
				"conditions": [{"col": "Prick", "op": ">=", "thresh": "3", "base": "zero"}],
				"updates": [{"col": "EP", "val": "1"}, {"col": "score", "val": "2"}]
			}]
		}]
	}`)

	b := NewBuilder(nil)
	if err := b.ApplyDocumentJSON(doc); err != nil {
		t.Fatalf("ApplyDocumentJSON() error = %v", err)
	}

	cols := b.Columns()
	if len(cols) != 3 {
		t.Fatalf("columns = %d, want 3 (Prick plus two auto-created)", len(cols))
	}

	// "EP" resolves to no preset, so the raw reference becomes id and name.
	ep := cols[1]
	if ep.ID != "EP" || ep.Name != "EP" {
		t.Errorf("stub column = (%q, %q), want (EP, EP)", ep.ID, ep.Name)
	}

	// "score" resolves to the score_input preset.
	score := cols[2]
	if score.PresetKey != "score_input" || score.ID != "Score" {
		t.Errorf("preset column = (key=%q, id=%q), want score_input/Score", score.PresetKey, score.ID)
	}

	updates := b.ScoringCards()[0].Rules[0].Updates
	if updates[0].Col != "EP" || updates[1].Col != "Score" {
		t.Errorf("update cols = (%q, %q), want (EP, Score)", updates[0].Col, updates[1].Col)
	}

	// The configuration must survive recompilation instead of being dropped.
	compiled, err := b.Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(compiled.ScoringConfigs) != 1 {
		t.Fatalf("compiled scoringConfigs = %d, want 1", len(compiled.ScoringConfigs))
	}
	if got := compiled.ScoringConfigs[0].Rules[0].Updates[0].Col; got != "EP" {
		t.Errorf("compiled update col = %q, want EP", got)
	}
}

func TestMatchOption(t *testing.T) {
	options := []string{"EP", "ID Conc", "Score"}

	tests := []struct {
		in   string
		want string
	}{
		{"EP", "EP"},
		{"ep", "EP"},
		{"IDConc", "ID Conc"},
		{"id-conc", "ID Conc"},
		{"score ", "Score"},
		{"Wheal", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := matchOption(options, tt.in); got != tt.want {
			t.Errorf("matchOption(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
