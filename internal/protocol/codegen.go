package protocol

import (
	"fmt"
	"regexp"
	"strings"
)

// autoFillFunction is the fixed helper shipped in every document's
// namedFunctions map. The evaluation engine calls it to populate empty cells
// from a column's autoFill value.
const autoFillFunction = "  if (row[committedColumnId] === null) {\r\n" +
	"    return {\r\n" +
	"      type: 'setValue',\r\n" +
	"      value: columns[committedColumnIdx].autoFill.value,\r\n" +
	"      columnId: columns[committedColumnIdx].id\r\n" +
	"    }\r\n" +
	"  }"

var (
	intLiteral     = regexp.MustCompile(`^-?\d+$`)
	numericLiteral = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	nonAlnum       = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// sanitizeForFunctionName strips everything outside [A-Za-z0-9].
func sanitizeForFunctionName(text string) string {
	return nonAlnum.ReplaceAllString(text, "")
}

// escapeSingle backslash-escapes single quotes for embedding in a
// single-quoted source literal.
func escapeSingle(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}

// conditionExpr renders one scoring condition as a source expression over
// the committed row. Non-numeric thresholds compare as strings with strict
// equality operators; numeric thresholds compare directly, optionally offset
// against the negative or positive reference row.
func conditionExpr(col, op, thresh, base string) string {
	if col == "" || op == "always" {
		return "true"
	}

	colEsc := escapeSingle(col)

	if !numericLiteral.MatchString(thresh) {
		rhs := "'" + escapeSingle(thresh) + "'"

		strictOp := op
		if op == "==" || op == "===" {
			strictOp = "==="
		}
		if op == "!=" || op == "!==" {
			strictOp = "!=="
		}

		return fmt.Sprintf("row['%s'] %s %s", colEsc, strictOp, rhs)
	}

	var rhs string
	switch base {
	case "negative":
		rhs = fmt.Sprintf("parseInt(negativeReferenceRow['%s'], 10) + %s", colEsc, thresh)
	case "positive":
		rhs = fmt.Sprintf("parseInt(positiveReferenceRow['%s'], 10) + %s", colEsc, thresh)
	default:
		rhs = thresh
	}

	return fmt.Sprintf("row['%s'] %s %s", colEsc, op, rhs)
}

// scoringFunctionName derives the generated function's name from the columns
// it updates and the trigger column, e.g. setEPFromPrick. Update columns
// appear once each, in first-use order.
func scoringFunctionName(trigger string, rules []ScoringRule) string {
	var parts []string
	seen := make(map[string]bool)
	for _, r := range rules {
		for _, u := range r.Updates {
			safe := sanitizeForFunctionName(u.Col)
			if safe == "" {
				safe = "Col"
			}
			if !seen[safe] {
				seen[safe] = true
				parts = append(parts, safe)
			}
		}
	}

	triggerSafe := sanitizeForFunctionName(trigger)
	if triggerSafe == "" {
		triggerSafe = "Column"
	}

	return "set" + strings.Join(parts, "") + "From" + triggerSafe
}

// scoringFunctionBody emits the source of one generated scoring function:
// the scope short-circuit first, then any required-reference guards, then
// the rules as an if / else-if chain assigning rowUpdates, and finally the
// setValues return.
func scoringFunctionBody(trigger, scope string, requireNeg, requirePos bool, rules []ScoringRule) string {
	var lines []string
	push := func(l string) { lines = append(lines, l) }

	push("var rowUpdates = {};")
	push("")

	switch scope {
	case ScopeNegative:
		push("if (!committedItemIsNegativeReference) {")
		push("  return { type: 'setValues', row: rowUpdates };")
		push("}")
		push("")
	case ScopePositive:
		push("if (!committedItemIsPositiveReference) {")
		push("  return { type: 'setValues', row: rowUpdates };")
		push("}")
		push("")
	case ScopeNeither:
		push("if (committedItemIsNegativeReference || committedItemIsPositiveReference) {")
		push("  return { type: 'setValues', row: rowUpdates };")
		push("}")
		push("")
	}

	trigEsc := escapeSingle(trigger)

	if requireNeg {
		push("if (negativeReferenceRow === null) {")
		push(`  this.displayMessage("This set must contain a negative reference.");`)
		push(fmt.Sprintf("  return { type: 'setValue', columnId: '%s', value: null };", trigEsc))
		push("}")
		push("")
		push("if (!committedItemIsNegativeReference && (!negativeReferenceRow || negativeReferenceRow['" + trigEsc + "'] == null)) {")
		push(`  this.displayMessage("You must first score the negative reference.");`)
		push(fmt.Sprintf("  return { type: 'setValue', columnId: '%s', value: null };", trigEsc))
		push("}")
		push("")
	}

	if requirePos {
		push("if (typeof positiveReferenceRow === 'undefined' || positiveReferenceRow === null) {")
		push(`  this.displayMessage("This set must contain a positive reference.");`)
		push(fmt.Sprintf("  return { type: 'setValue', columnId: '%s', value: null };", trigEsc))
		push("}")
		push("")
		push("if (!committedItemIsPositiveReference && (!positiveReferenceRow || positiveReferenceRow['" + trigEsc + "'] == null)) {")
		push(`  this.displayMessage("You must first score the positive reference.");`)
		push(fmt.Sprintf("  return { type: 'setValue', columnId: '%s', value: null };", trigEsc))
		push("}")
		push("")
	}

	for idx, rule := range rules {
		exprs := make([]string, 0, len(rule.Conditions))
		for _, c := range rule.Conditions {
			exprs = append(exprs, conditionExpr(c.Col, c.Op, c.Thresh, c.Base))
		}

		fullCond := "true"
		if len(exprs) > 0 {
			wrapped := make([]string, len(exprs))
			for i, e := range exprs {
				wrapped[i] = "(" + e + ")"
			}
			fullCond = strings.Join(wrapped, " && ")
		}

		prefix := "if"
		if idx > 0 {
			prefix = "else if"
		}
		push(fmt.Sprintf("%s (%s) {", prefix, fullCond))
		push("  rowUpdates = {")
		for i, u := range rule.Updates {
			valLiteral := u.Val
			if !numericLiteral.MatchString(u.Val) {
				valLiteral = "'" + escapeSingle(u.Val) + "'"
			}
			comma := ""
			if i < len(rule.Updates)-1 {
				comma = ","
			}
			push(fmt.Sprintf("    '%s': %s%s", escapeSingle(u.Col), valLiteral, comma))
		}
		push("  };")
		push("}")
		push("")
	}

	push("return { type: 'setValues', row: rowUpdates };")

	return strings.Join(lines, "\n")
}
