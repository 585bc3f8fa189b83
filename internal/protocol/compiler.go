package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ValidationError is a compile failure with a user-facing message. The
// builder state is left untouched when compilation fails.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// columnMeta is the value-domain summary used to validate scoring updates.
type columnMeta struct {
	allowInt   bool
	allowStr   bool
	intMin     int
	intMax     *int
	strOptions []string
}

// Compile walks the column cards in display order, then the scoring cards,
// and assembles the full protocol document. It aborts with a ValidationError
// on the first duplicate column id or name, on a rule updating the same
// column twice, or on an update value outside the target column's domain.
func (b *Builder) Compile() (*Document, error) {
	doc := &Document{
		ProtocolID:       b.protocolID,
		VersionNumber:    b.versionNumber,
		Columns:          []Column{},
		NamedFunctions:   map[string]string{"autoFill": autoFillFunction},
		CalculationRules: []CalculationRule{},
		ScoringConfigs:   []ScoringConfig{},
	}

	meta := make(map[string]columnMeta)
	usedIDs := make(map[string]bool)
	usedNames := make(map[string]bool)

	for _, card := range b.columns {
		idRaw := strings.TrimSpace(card.ID)
		nameRaw := strings.TrimSpace(card.Name)
		abbrRaw := strings.TrimSpace(card.Abbr)

		if idRaw != "" {
			if usedIDs[idRaw] {
				return nil, validationErrorf("Duplicate column id '%s'. Column IDs must be unique.", idRaw)
			}
			usedIDs[idRaw] = true
		}
		if nameRaw != "" {
			if usedNames[nameRaw] {
				return nil, validationErrorf("Duplicate column name '%s'. Column names must be unique.", nameRaw)
			}
			usedNames[nameRaw] = true
		}

		bg := strings.TrimSpace(card.BackgroundColor)
		if bg == "" {
			bg = "#DDDDDD"
		}

		intMin := 0
		intMax := card.IntMax
		strOptions := append([]string{}, card.StrOptions...)

		tabBehavior := card.TabBehavior
		if tabBehavior == "" {
			tabBehavior = TabNextColumn
		}

		possibleValues := []PossibleValue{}
		if card.AllowInt && intMax != nil {
			min := intMin
			possibleValues = append(possibleValues, PossibleValue{
				Type: "integer",
				Min:  &min,
				Max:  intMax,
			})
		}
		if card.AllowStr && len(strOptions) > 0 {
			possibleValues = append(possibleValues, PossibleValue{
				Type:    "string",
				Options: strOptions,
			})
		}

		n := len(doc.Columns) + 1
		columnID := idRaw
		if columnID == "" {
			columnID = nameRaw
		}
		if columnID == "" {
			columnID = fmt.Sprintf("col_%d", n)
		}
		columnName := nameRaw
		if columnName == "" {
			columnName = idRaw
		}
		if columnName == "" {
			columnName = fmt.Sprintf("Column %d", n)
		}
		columnAbbr := abbrRaw
		if columnAbbr == "" {
			if nameRaw != "" {
				columnAbbr = upperFirstRune(nameRaw)
			} else {
				columnAbbr = fmt.Sprintf("C%d", n)
			}
		}

		col := Column{
			ID:              columnID,
			Name:            columnName,
			Abbr:            columnAbbr,
			BackgroundColor: bg,
			PossibleValues:  possibleValues,
			AllowInt:        card.AllowInt,
			AllowStr:        card.AllowStr,
			IntMin:          intMin,
			IntMax:          intMax,
			StrOptions:      strOptions,
			TabBehavior:     tabBehavior,
		}

		if card.ShowWhenPrescribing {
			col.ShowWhenPrescribing = true
		}

		if fill := compileAutoFill(card); fill != nil {
			col.AutoFill = fill
		}

		if card.UseAsStartingDilution {
			col.UseAsStartingDilution = true
		}

		if card.HasPositive {
			positiveValues := []PossibleValue{}
			if card.PositiveIntMin != nil {
				positiveValues = append(positiveValues, PossibleValue{
					Type: "integer",
					Min:  card.PositiveIntMin,
				})
			}
			if opts := normalizeStringList(card.PositiveStrOptions); len(opts) > 0 {
				positiveValues = append(positiveValues, PossibleValue{
					Type:    "string",
					Options: opts,
				})
			}
			if len(positiveValues) > 0 {
				col.PositiveValues = positiveValues
			}
		}

		// Scoring dropdowns reference columns by id when set, else name.
		if scoringKey := firstNonEmpty(idRaw, nameRaw); scoringKey != "" {
			meta[scoringKey] = columnMeta{
				allowInt:   card.AllowInt,
				allowStr:   card.AllowStr,
				intMin:     intMin,
				intMax:     intMax,
				strOptions: strOptions,
			}
		}

		doc.Columns = append(doc.Columns, col)
		doc.CalculationRules = append(doc.CalculationRules, navigationRule(columnID, tabBehavior))
	}

	for _, card := range b.scoring {
		trigger := strings.TrimSpace(card.TriggerColumn)
		if trigger == "" {
			continue
		}

		scope := strings.TrimSpace(card.Scope)
		if scope == "" {
			scope = ScopeNeither
		}
		requireNeg, requirePos := card.requireFlags()

		var rules []ScoringRule
		for _, row := range card.Rules {
			updates := []ScoringUpdate{}
			seenUpdateCols := make(map[string]bool)

			for _, u := range row.Updates {
				col := strings.TrimSpace(u.Col)
				if col == "" || u.Val == "" {
					continue
				}

				if seenUpdateCols[col] {
					return nil, validationErrorf(
						"In scoring trigger for column '%s', one rule updates column '%s' more than once. Each scoring rule row can only update a given column once.",
						trigger, col)
				}

				if m, ok := meta[col]; ok {
					if err := validateUpdateValue(m, col, u.Val); err != nil {
						return nil, err
					}
				}

				updates = append(updates, ScoringUpdate{Col: col, Val: u.Val})
				seenUpdateCols[col] = true
			}

			if len(updates) == 0 {
				continue
			}

			conditions := []ScoringCondition{}
			for _, c := range row.Conditions {
				col := strings.TrimSpace(c.Col)
				op := strings.TrimSpace(c.Op)
				if op == "" {
					op = "always"
				}
				thresh := strings.TrimSpace(c.Thresh)
				base := strings.TrimSpace(c.Base)
				if base == "" {
					base = "zero"
				}

				if op == "always" {
					conditions = append(conditions, ScoringCondition{Col: "", Op: "always", Thresh: "", Base: "zero"})
				} else if col != "" && thresh != "" {
					conditions = append(conditions, ScoringCondition{Col: col, Op: op, Thresh: thresh, Base: base})
				}
			}

			rules = append(rules, ScoringRule{Conditions: conditions, Updates: updates})
		}

		if len(rules) == 0 {
			continue
		}

		fnName := scoringFunctionName(trigger, rules)
		doc.NamedFunctions[fnName] = scoringFunctionBody(trigger, scope, requireNeg, requirePos, rules)

		doc.ScoringConfigs = append(doc.ScoringConfigs, ScoringConfig{
			TriggerColumn:   trigger,
			Scope:           scope,
			RequireNegative: requireNeg,
			RequirePositive: requirePos,
			Rules:           rules,
		})

		doc.CalculationRules = append(doc.CalculationRules, CalculationRule{
			Conditions: []RuleCondition{{Type: "change", ColumnIDs: []string{trigger}}},
			Results:    []RuleResult{{Type: "runCode", FunctionName: fnName}},
		})
	}

	return doc, nil
}

// compileAutoFill produces the document autoFill for a card, or nil when the
// card's autofill is disabled or carries no value and no flags. A pure
// integer value is exported as a number.
func compileAutoFill(card *ColumnCard) *AutoFill {
	neg, pos := card.AutoFillControlMode.controlFlags()
	hasValue := card.AutoFillValue != ""
	hasFlag := card.AutoFillOverwrite || neg || pos

	if !card.AutoFillEnabled || (!hasValue && !hasFlag) {
		return nil
	}

	var value any = card.AutoFillValue
	if intLiteral.MatchString(card.AutoFillValue) {
		if n, err := strconv.Atoi(card.AutoFillValue); err == nil {
			value = n
		}
	}

	return &AutoFill{
		Value:              value,
		Overwrite:          card.AutoFillOverwrite,
		SetNegativeControl: neg,
		SetPositiveControl: pos,
	}
}

// navigationRule derives the setFocus rule for a column's tab behavior.
// Zero movement components are omitted from the result.
func navigationRule(columnID string, tab TabBehavior) CalculationRule {
	var rows, cols int
	switch tab {
	case TabNextRow:
		rows, cols = 1, 0
	case TabNextRowPrevColumn:
		rows, cols = 1, -1
	default:
		rows, cols = 0, 1
	}

	result := RuleResult{Type: "setFocus"}
	if rows != 0 {
		result.RelativeRows = rows
	}
	if cols != 0 {
		result.RelativeColumns = cols
	}

	return CalculationRule{
		Conditions: []RuleCondition{{Type: "change", ColumnIDs: []string{columnID}}},
		Results:    []RuleResult{result},
	}
}

// validateUpdateValue checks a scoring update value against the target
// column's allowed domain.
func validateUpdateValue(m columnMeta, col, rawVal string) *ValidationError {
	trimmed := strings.TrimSpace(rawVal)

	if intLiteral.MatchString(trimmed) {
		v, _ := strconv.Atoi(trimmed)
		if !m.allowInt {
			return validationErrorf(
				"Invalid update value '%s' for column '%s'. Allowed strings are: %s. To resolve, either add to the allowed values for the column or change your update value.",
				trimmed, col, strings.Join(m.strOptions, ", "))
		}
		if v < m.intMin || (m.intMax != nil && v > *m.intMax) {
			return validationErrorf(
				"Invalid update value '%s' for column '%s'. Allowed integer range is %s. To resolve either add to the allowed values for the column or change your update value.",
				trimmed, col, rangeText(m.intMin, m.intMax))
		}
		return nil
	}

	if !m.allowStr {
		return validationErrorf(
			"Invalid update value '%s' for column '%s'. This column only allows numeric values. To resolve either add to the allowed values for the column or change your update value.",
			trimmed, col)
	}

	if len(m.strOptions) > 0 && !containsString(m.strOptions, trimmed) {
		return validationErrorf(
			"Invalid update value '%s' for column '%s'. Allowed strings are: %s. This column only allows numeric values. To resolve either add to the allowed values for the column or change your update value.",
			trimmed, col, strings.Join(m.strOptions, ", "))
	}

	return nil
}

// rangeText formats an integer domain for error messages.
func rangeText(min int, max *int) string {
	if max != nil {
		return fmt.Sprintf("%d–%d", min, *max)
	}
	return fmt.Sprintf("%d+", min)
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func upperFirstRune(s string) string {
	for _, r := range s {
		return string(unicode.ToUpper(r))
	}
	return ""
}
