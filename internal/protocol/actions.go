package protocol

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
)

// Action is one edit to the builder, usually produced by the AI assistant.
// Fields are loosely typed because the assistant is loose about shapes.
type Action struct {
	Type           string                     `json:"type"`
	Preset         string                     `json:"preset,omitempty"`
	ID             *flexString                `json:"id,omitempty"`
	Name           *flexString                `json:"name,omitempty"`
	Abbr           *flexString                `json:"abbr,omitempty"`
	Position       string                     `json:"position,omitempty"`
	Target         *ColumnRef                 `json:"target,omitempty"`
	TargetID       string                     `json:"targetId,omitempty"`
	NewIndex       *int                       `json:"newIndex,omitempty"`
	Columns        []ColumnSpec               `json:"columns,omitempty"`
	ScoringConfigs []scoringConfigDoc         `json:"scoringConfigs,omitempty"`
	Changes        map[string]json.RawMessage `json:"changes,omitempty"`
	TemplateKey    string                     `json:"templateKey,omitempty"`
	ProtocolID     *flexString                `json:"protocolId,omitempty"`
}

// ColumnSpec describes one column in a setColumns action. A preset is
// resolved from the preset key first, then id, name, and abbr.
type ColumnSpec struct {
	Preset string      `json:"preset,omitempty"`
	ID     *flexString `json:"id,omitempty"`
	Name   *flexString `json:"name,omitempty"`
	Abbr   *flexString `json:"abbr,omitempty"`
}

// ProtocolOption is one saved protocol an action can load by name.
type ProtocolOption struct {
	ID   int64
	Name string
}

// ActionEnv supplies the storage operations that saveProtocol and
// loadProtocol actions need. A nil env makes those actions no-ops.
type ActionEnv interface {
	SaveProtocol(b *Builder) error
	LoadProtocol(id int64) (name string, data []byte, err error)
	ListProtocols() ([]ProtocolOption, error)
}

// ApplyActions runs each action against the builder in order, then
// recompiles when any action changed the editing state. The returned
// document is nil when nothing changed.
func (b *Builder) ApplyActions(actions []Action, env ActionEnv) (*Document, error) {
	madeChange := false

	for i := range actions {
		act := &actions[i]
		if act.Type == "" {
			continue
		}

		switch act.Type {
		case "addColumn":
			b.applyAddColumn(act)
			madeChange = true

		case "setColumns":
			b.applySetColumns(act)
			madeChange = true

		case "applyTemplate":
			b.applyTemplate(act)
			madeChange = true

		case "setScoringConfigs":
			b.applySetScoringConfigs(act)
			madeChange = true

		case "updateColumn":
			b.applyUpdateColumn(act)
			madeChange = true

		case "removeColumn":
			if card := b.findCardByRef(act.Target, act.TargetID); card != nil {
				b.RemoveColumnCard(card)
			} else {
				slog.Warn("removeColumn: no matching column", "targetId", act.TargetID)
			}
			madeChange = true

		case "reorderColumn":
			b.applyReorderColumn(act)
			madeChange = true

		case "setProtocolMeta":
			b.applySetProtocolMeta(act)
			madeChange = true

		case "saveProtocol":
			b.applySaveProtocol(act, env)

		case "loadProtocol":
			b.applyLoadProtocol(act, env)
			madeChange = true

		default:
			slog.Warn("unknown action type", "type", act.Type)
		}
	}

	if !madeChange {
		return nil, nil
	}
	return b.Compile()
}

// presetFromSpec resolves a catalog preset from the loose fields of an
// action or column spec.
func (b *Builder) presetFromSpec(preset string, id, name, abbr *flexString) (Preset, bool) {
	raw := preset
	if raw == "" {
		raw = derefFlex(id)
	}
	if raw == "" {
		raw = derefFlex(name)
	}
	if raw == "" {
		raw = derefFlex(abbr)
	}
	if raw == "" {
		return Preset{}, false
	}

	key := b.catalog.ResolveKey(raw)
	if key == "" {
		return Preset{}, false
	}
	return b.catalog.Get(key)
}

func derefFlex(f *flexString) string {
	if f == nil {
		return ""
	}
	return string(*f)
}

func (b *Builder) applyAddColumn(act *Action) {
	insertIndex := len(b.columns)
	switch act.Position {
	case "start":
		insertIndex = 0
	case "before", "after":
		if ref := b.findCardByRef(act.Target, act.TargetID); ref != nil {
			for i, c := range b.columns {
				if c == ref {
					if act.Position == "before" {
						insertIndex = i
					} else {
						insertIndex = i + 1
					}
					break
				}
			}
		}
	}

	card := b.InsertColumnCard(insertIndex)

	if preset, ok := b.presetFromSpec(act.Preset, act.ID, act.Name, act.Abbr); ok {
		card.ApplyPreset(&preset)
	}

	if act.ID != nil {
		card.ID = string(*act.ID)
	}
	if act.Name != nil {
		card.Name = string(*act.Name)
	}
	if act.Abbr != nil {
		card.Abbr = string(*act.Abbr)
	}

	// A name without an id on a fresh text column makes the id follow
	// the name.
	if derefFlex(act.Name) != "" && derefFlex(act.ID) == "" && card.ID == "Text" {
		card.ID = card.Name
	}

	b.renumber()
}

func (b *Builder) applySetColumns(act *Action) {
	b.columns = nil

	for i := range act.Columns {
		spec := &act.Columns[i]
		card := NewColumnCard()
		b.columns = append(b.columns, card)

		if preset, ok := b.presetFromSpec(spec.Preset, spec.ID, spec.Name, spec.Abbr); ok {
			card.ApplyPreset(&preset)
		}

		if spec.ID != nil {
			card.ID = string(*spec.ID)
		}
		if spec.Name != nil {
			card.Name = string(*spec.Name)
		}
		if spec.Abbr != nil {
			card.Abbr = string(*spec.Abbr)
		}
	}

	b.renumber()
}

func (b *Builder) applyTemplate(act *Action) {
	if act.TemplateKey == "" {
		return
	}
	data, ok := b.templates[act.TemplateKey]
	if !ok {
		slog.Warn("applyTemplate: unknown template", "key", act.TemplateKey)
		return
	}
	if err := b.ApplyDocumentJSON(data); err != nil {
		slog.Warn("applyTemplate: bad template document", "key", act.TemplateKey, "error", err)
	}
}

func (b *Builder) applySetScoringConfigs(act *Action) {
	configs := make([]ScoringConfig, 0, len(act.ScoringConfigs))
	for _, d := range act.ScoringConfigs {
		configs = append(configs, d.toScoringConfig())
	}

	b.ensureColumnsForScoringConfigs(configs)

	b.scoring = nil
	b.applyScoringConfigDocs(act.ScoringConfigs)
}

func (b *Builder) applyReorderColumn(act *Action) {
	if len(b.columns) == 0 {
		return
	}
	card := b.findCardByRef(act.Target, act.TargetID)
	if card == nil {
		slog.Warn("reorderColumn: no matching column", "targetId", act.TargetID)
		return
	}
	if act.NewIndex == nil {
		slog.Warn("reorderColumn: missing newIndex", "targetId", act.TargetID)
		return
	}
	b.MoveColumnCard(card, *act.NewIndex)
}

func (b *Builder) applySetProtocolMeta(act *Action) {
	if name := derefFlex(act.Name); name != "" {
		b.name = name
	}

	if id, ok := flexInt64(act.ProtocolID); ok {
		b.savedID = id
	} else if id, ok := flexInt64(act.ID); ok {
		b.savedID = id
	}
}

func (b *Builder) applySaveProtocol(act *Action, env ActionEnv) {
	if name := derefFlex(act.Name); name != "" {
		b.name = name
	}
	if env == nil {
		slog.Warn("saveProtocol: no storage available")
		return
	}
	if err := env.SaveProtocol(b); err != nil {
		slog.Warn("saveProtocol failed", "name", b.name, "error", err)
	}
}

func (b *Builder) applyLoadProtocol(act *Action, env ActionEnv) {
	if env == nil {
		slog.Warn("loadProtocol: no storage available")
		return
	}

	if id, ok := flexInt64(act.ID); ok {
		b.loadByID(env, id)
		return
	}

	name := derefFlex(act.Name)
	if name == "" {
		return
	}

	options, err := env.ListProtocols()
	if err != nil {
		slog.Warn("loadProtocol: listing saved protocols failed", "error", err)
		return
	}

	match := resolveProtocolOption(options, name)
	if match == nil {
		slog.Warn("loadProtocol: no saved protocol matching name", "name", name)
		return
	}
	b.loadByID(env, match.ID)
}

func (b *Builder) loadByID(env ActionEnv, id int64) {
	name, data, err := env.LoadProtocol(id)
	if err != nil {
		slog.Warn("loadProtocol failed", "id", id, "error", err)
		return
	}
	if err := b.ApplyDocumentJSON(data); err != nil {
		slog.Warn("loadProtocol: bad saved document", "id", id, "error", err)
		return
	}
	b.name = name
	b.savedID = id
}

// resolveProtocolOption finds a saved protocol by name: an exact
// case-insensitive match first, then any option whose name contains one
// of the request's tokens of three or more characters.
func resolveProtocolOption(options []ProtocolOption, rawName string) *ProtocolOption {
	target := strings.TrimSpace(rawName)
	if target == "" {
		return nil
	}
	targetLower := strings.ToLower(target)

	for i := range options {
		if strings.ToLower(strings.TrimSpace(options[i].Name)) == targetLower ||
			strconv.FormatInt(options[i].ID, 10) == target {
			return &options[i]
		}
	}

	var tokens []string
	for _, t := range strings.Fields(targetLower) {
		if len(t) >= 3 {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return nil
	}

	for i := range options {
		nameLower := strings.ToLower(strings.TrimSpace(options[i].Name))
		for _, t := range tokens {
			if strings.Contains(nameLower, t) {
				return &options[i]
			}
		}
	}
	return nil
}

// flexInt64 reads a numeric action field that may arrive as a JSON number
// or a numeric string.
func flexInt64(f *flexString) (int64, bool) {
	s := strings.TrimSpace(derefFlex(f))
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
