package protocol

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
)

// Decoding helpers for the loosely typed change maps the AI assistant
// sends. Each tolerates the scalar arriving as the "wrong" JSON type.

func scalarString(raw json.RawMessage) string {
	var f flexString
	if err := f.UnmarshalJSON(raw); err != nil {
		return ""
	}
	return string(f)
}

func scalarBool(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}

func scalarTrue(raw json.RawMessage) bool {
	b, ok := scalarBool(raw)
	return ok && b
}

// scalarTruthy follows loose truthiness: null, false, 0, and "" are false,
// everything else is true.
func scalarTruthy(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	}
	return true
}

// scalarInt accepts a JSON number or a numeric string.
func scalarInt(raw json.RawMessage) (int, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func isJSONNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

// possibleValueSpec is the lenient shape of one possibleValues entry in a
// change set.
type possibleValueSpec struct {
	Type    string       `json:"type"`
	Min     *float64     `json:"min"`
	Max     *float64     `json:"max"`
	Options []flexString `json:"options"`
}

func flexStrings(values []flexString) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

// applyUpdateColumn folds a change set into one column card. Direct fields,
// document-shaped fields, and assistant synonyms are all accepted; later
// keys in the resolution order win.
func (b *Builder) applyUpdateColumn(act *Action) {
	if act.Target == nil || len(act.Changes) == 0 {
		slog.Warn("updateColumn: missing target or changes", "targetId", act.TargetID)
		return
	}

	card := b.findCardByRef(act.Target, act.TargetID)
	if card == nil {
		slog.Warn("updateColumn: no matching column", "targetId", act.TargetID)
		return
	}

	changes := act.Changes

	if raw, ok := changes["id"]; ok {
		card.ID = scalarString(raw)
	}
	if raw, ok := changes["name"]; ok {
		card.Name = scalarString(raw)
	}
	if raw, ok := changes["abbr"]; ok {
		card.Abbr = scalarString(raw)
	}

	allowInt := card.AllowInt
	allowStr := card.AllowStr
	intMax := card.IntMax
	strOptions := append([]string(nil), card.StrOptions...)
	tabBehavior := card.TabBehavior
	useStartDil := card.UseAsStartingDilution
	showWhen := card.ShowWhenPrescribing
	afEnabled := card.AutoFillEnabled
	afValue := card.AutoFillValue
	afOverwrite := card.AutoFillOverwrite
	afMode := card.AutoFillControlMode
	hasPositive := card.HasPositive
	posIntMin := card.PositiveIntMin
	posStrOpts := append([]string(nil), card.PositiveStrOptions...)

	if raw, ok := changes["allowInt"]; ok {
		if v, ok := scalarBool(raw); ok {
			allowInt = v
		}
	}
	if raw, ok := changes["allowStr"]; ok {
		if v, ok := scalarBool(raw); ok {
			allowStr = v
		}
	}

	if raw, ok := changes["intMax"]; ok && !isJSONNull(raw) {
		if v, ok := scalarInt(raw); ok {
			intMax = &v
		}
	}

	if raw, ok := changes["strOptions"]; ok {
		var opts []flexString
		if err := json.Unmarshal(raw, &opts); err == nil {
			allowStr = true
			strOptions = normalizeStringList(flexStrings(opts))
		}
	}

	if raw, ok := changes["possibleValues"]; ok {
		var pvs []possibleValueSpec
		if err := json.Unmarshal(raw, &pvs); err == nil {
			newAllowInt := false
			newAllowStr := false
			var newIntMax *int
			var newStrOptions []string

			for _, pv := range pvs {
				switch pv.Type {
				case "integer":
					newAllowInt = true
					if pv.Max != nil {
						v := int(*pv.Max)
						newIntMax = &v
					}
				case "string":
					if pv.Options != nil {
						newAllowStr = true
						newStrOptions = normalizeStringList(flexStrings(pv.Options))
					}
				}
			}

			if newAllowInt || newAllowStr {
				allowInt = newAllowInt
				allowStr = newAllowStr
			}
			if newIntMax != nil {
				intMax = newIntMax
			}
			if len(newStrOptions) > 0 {
				strOptions = newStrOptions
			}
		}
	}

	if raw, ok := changes["tabBehavior"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			tabBehavior = TabBehavior(s)
		}
	}

	for _, key := range []string{"useAsStartingDilution", "useasstartingdilution"} {
		if raw, ok := changes[key]; ok {
			if v, ok := scalarBool(raw); ok {
				useStartDil = v
			}
		}
	}
	for _, key := range []string{"showWhenPrescribing", "Showwhenpresciribing"} {
		if raw, ok := changes[key]; ok {
			if v, ok := scalarBool(raw); ok {
				showWhen = v
			}
		}
	}

	if raw, ok := changes["autoFillEnabled"]; ok {
		if v, ok := scalarBool(raw); ok {
			afEnabled = v
		}
	}
	if raw, ok := changes["autoFillValue"]; ok {
		afValue = scalarString(raw)
	}
	if raw, ok := changes["autoFillOverwrite"]; ok {
		if v, ok := scalarBool(raw); ok {
			afOverwrite = v
		}
	}
	if raw, ok := changes["autoFillControlMode"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			afMode = parseControlMode(s)
		}
	}

	if raw, ok := changes["autoFill"]; ok {
		if isJSONNull(raw) {
			afEnabled = false
			afValue = ""
			afOverwrite = false
			afMode = ControlNone
		} else {
			var af map[string]json.RawMessage
			if err := json.Unmarshal(raw, &af); err == nil {
				afEnabled, afValue, afOverwrite, afMode =
					applyAutoFillChanges(af, afEnabled, afValue, afOverwrite, afMode)
			}
		}
	}

	if raw, ok := changes["hasPositive"]; ok {
		if v, ok := scalarBool(raw); ok {
			hasPositive = v
		}
	}
	if raw, ok := changes["positiveEnabled"]; ok {
		if v, ok := scalarBool(raw); ok {
			hasPositive = v
		}
	}

	if raw, ok := changes["positiveIntMin"]; ok && !isJSONNull(raw) {
		if v, ok := scalarInt(raw); ok {
			posIntMin = &v
		}
	}

	if raw, ok := changes["positiveStringOptions"]; ok {
		var opts []flexString
		if err := json.Unmarshal(raw, &opts); err == nil {
			posStrOpts = normalizeStringList(flexStrings(opts))
		} else {
			var csv string
			if err := json.Unmarshal(raw, &csv); err == nil {
				posStrOpts = splitCSV(csv)
			}
		}
	}

	if raw, ok := changes["positiveValues"]; ok {
		var pvs []possibleValueSpec
		if err := json.Unmarshal(raw, &pvs); err == nil {
			newHasPos := false
			var newIntMin *int
			var newStrOpts []string

			for _, pv := range pvs {
				switch pv.Type {
				case "integer":
					newHasPos = true
					if pv.Min != nil {
						v := int(*pv.Min)
						newIntMin = &v
					}
				case "string":
					if pv.Options != nil {
						newHasPos = true
						newStrOpts = normalizeStringList(flexStrings(pv.Options))
					}
				}
			}

			if newHasPos {
				hasPositive = true
				if newIntMin != nil {
					posIntMin = newIntMin
				}
				if len(newStrOpts) > 0 {
					posStrOpts = newStrOpts
				}
			}
		} else {
			var pv map[string]json.RawMessage
			if err := json.Unmarshal(raw, &pv); err == nil {
				if enabledRaw, ok := pv["enabled"]; ok {
					hasPositive = scalarTruthy(enabledRaw)
				}
				if minRaw, ok := pv["minInt"]; ok {
					if isJSONNull(minRaw) || scalarString(minRaw) == "" {
						posIntMin = nil
					} else if v, ok := scalarInt(minRaw); ok {
						posIntMin = &v
					} else {
						posIntMin = nil
					}
				}
				if optsRaw, ok := pv["strOptions"]; ok {
					var opts []flexString
					if err := json.Unmarshal(optsRaw, &opts); err == nil {
						posStrOpts = normalizeStringList(flexStrings(opts))
					}
				}
			}
		}
	}

	card.AllowInt = allowInt
	card.AllowStr = allowStr
	card.IntMax = intMax
	if allowStr && len(strOptions) > 0 {
		card.StrOptions = strOptions
	} else if !allowStr {
		card.StrOptions = nil
	}
	if tabBehavior != "" {
		card.TabBehavior = tabBehavior
	}
	card.UseAsStartingDilution = useStartDil
	card.ShowWhenPrescribing = showWhen
	card.AutoFillEnabled = afEnabled
	card.AutoFillValue = afValue
	card.AutoFillOverwrite = afOverwrite
	card.AutoFillControlMode = afMode
	card.HasPositive = hasPositive
	card.PositiveIntMin = posIntMin
	card.PositiveStrOptions = posStrOpts

	b.renumber()
}

// applyAutoFillChanges folds a nested autoFill object into the working
// autofill state. The control mode resolves in layers: wording synonyms
// first, then controlsEnabled, with an explicit controlMode string winning
// over the protocol-style flag pair.
func applyAutoFillChanges(af map[string]json.RawMessage, enabled bool, value string, overwrite bool, mode ControlMode) (bool, string, bool, ControlMode) {
	if raw, ok := af["enabled"]; ok {
		enabled = scalarTruthy(raw)
	}

	if raw, ok := af["value"]; ok {
		value = scalarString(raw)
	}

	if raw, ok := af["overwriteExisting"]; ok {
		overwrite = scalarTruthy(raw)
	} else if raw, ok := af["overwrite"]; ok {
		if v, ok := scalarBool(raw); ok {
			overwrite = v
		}
	}

	controlMode := mode
	if controlMode == "" {
		controlMode = ControlNone
	}

	if raw, ok := af["doNotAutofillControls"]; ok && scalarTruthy(raw) {
		controlMode = ControlNone
	}
	if scalarTrue(af["onlyPositiveControls"]) || scalarTrue(af["onlyPositiveReferences"]) {
		controlMode = ControlPositive
	}
	if scalarTrue(af["onlyIfNegativeControl"]) || scalarTrue(af["onlyIfNegativeReference"]) {
		controlMode = ControlNegative
	}
	if scalarTrue(af["showControls"]) || scalarTrue(af["showReferences"]) {
		controlMode = ControlBoth
	}
	if raw, ok := af["controlsEnabled"]; ok {
		if scalarTruthy(raw) {
			controlMode = ControlBoth
		} else {
			controlMode = ControlNone
		}
	}

	if raw, ok := af["controlMode"]; ok && isJSONString(raw) {
		controlMode = parseControlMode(scalarString(raw))
	} else {
		neg := scalarTruthy(af["setNegativeControl"])
		pos := scalarTruthy(af["setPositiveControl"])
		_, hasNeg := af["setNegativeControl"]
		_, hasPos := af["setPositiveControl"]

		switch {
		case neg && pos:
			controlMode = ControlBoth
		case neg:
			controlMode = ControlNegative
		case pos:
			controlMode = ControlPositive
		case hasNeg || hasPos:
			controlMode = ControlNone
		}
	}

	return enabled, value, overwrite, controlMode
}

func isJSONString(raw json.RawMessage) bool {
	return len(raw) > 0 && raw[0] == '"'
}

// parseControlMode validates a mode string, falling back to none.
func parseControlMode(s string) ControlMode {
	switch ControlMode(s) {
	case ControlNegative, ControlPositive, ControlBoth:
		return ControlMode(s)
	}
	return ControlNone
}
