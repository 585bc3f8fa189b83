package protocol

import (
	"strings"
)

// Builder holds the full in-memory state of one protocol editing session:
// ordered column cards, scoring cards, protocol metadata, and the preset
// catalog the session was opened with.
type Builder struct {
	catalog   *Catalog
	templates map[string][]byte

	protocolID    int
	versionNumber int

	// Name and SavedID track the protocol's identity in storage for
	// save/load round trips.
	name    string
	savedID int64

	columns []*ColumnCard
	scoring []*ScoringCard
}

// NewBuilder returns an empty builder bound to a preset catalog.
func NewBuilder(catalog *Catalog) *Builder {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Builder{
		catalog:       catalog,
		versionNumber: 1,
	}
}

// SetTemplates registers named protocol templates, each a JSON document with
// protocol_id, version_number, and columns.
func (b *Builder) SetTemplates(templates map[string][]byte) {
	b.templates = templates
}

// Catalog returns the preset catalog this builder was opened with.
func (b *Builder) Catalog() *Catalog { return b.catalog }

// Name returns the protocol's display name.
func (b *Builder) Name() string { return b.name }

// SetName sets the protocol's display name.
func (b *Builder) SetName(name string) { b.name = name }

// SavedID returns the storage id of the loaded protocol, zero when unsaved.
func (b *Builder) SavedID() int64 { return b.savedID }

// SetSavedID records the storage id after a save or load.
func (b *Builder) SetSavedID(id int64) { b.savedID = id }

// Columns returns the column cards in display order.
func (b *Builder) Columns() []*ColumnCard { return b.columns }

// ScoringCards returns the scoring cards in display order.
func (b *Builder) ScoringCards() []*ScoringCard { return b.scoring }

// AddColumnCard appends a fresh column card and returns it.
func (b *Builder) AddColumnCard() *ColumnCard {
	card := NewColumnCard()
	b.columns = append(b.columns, card)
	b.renumber()
	return card
}

// InsertColumnCard inserts a fresh card at the given index, clamped to the
// current range, and returns it.
func (b *Builder) InsertColumnCard(index int) *ColumnCard {
	if index < 0 {
		index = 0
	}
	if index > len(b.columns) {
		index = len(b.columns)
	}
	card := NewColumnCard()
	b.columns = append(b.columns, nil)
	copy(b.columns[index+1:], b.columns[index:])
	b.columns[index] = card
	b.renumber()
	return card
}

// RemoveColumnCard removes the card if present.
func (b *Builder) RemoveColumnCard(card *ColumnCard) {
	for i, c := range b.columns {
		if c == card {
			b.columns = append(b.columns[:i], b.columns[i+1:]...)
			b.renumber()
			return
		}
	}
}

// MoveColumnCard moves the card to newIndex, clamped to the valid range.
func (b *Builder) MoveColumnCard(card *ColumnCard, newIndex int) {
	current := -1
	for i, c := range b.columns {
		if c == card {
			current = i
			break
		}
	}
	if current == -1 {
		return
	}

	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex >= len(b.columns) {
		newIndex = len(b.columns) - 1
	}

	b.columns = append(b.columns[:current], b.columns[current+1:]...)
	b.columns = append(b.columns, nil)
	copy(b.columns[newIndex+1:], b.columns[newIndex:])
	b.columns[newIndex] = card
	b.renumber()
}

// AddScoringCard appends a fresh scoring card and returns it.
func (b *Builder) AddScoringCard() *ScoringCard {
	card := NewScoringCard()
	b.scoring = append(b.scoring, card)
	return card
}

// RemoveScoringCard removes the card if present.
func (b *Builder) RemoveScoringCard(card *ScoringCard) {
	for i, c := range b.scoring {
		if c == card {
			b.scoring = append(b.scoring[:i], b.scoring[i+1:]...)
			return
		}
	}
}

// AddPresetColumns appends one column per catalog preset, in standard order.
func (b *Builder) AddPresetColumns() {
	for _, key := range b.catalog.Keys() {
		preset, ok := b.catalog.Get(key)
		if !ok {
			continue
		}
		card := NewColumnCard()
		card.ApplyPreset(&preset)
		b.columns = append(b.columns, card)
	}
	b.renumber()
}

// RemovePresetColumns removes every column that still carries a catalog
// preset tag.
func (b *Builder) RemovePresetColumns() {
	keys := make(map[string]bool)
	for _, key := range b.catalog.Keys() {
		keys[key] = true
	}

	kept := b.columns[:0]
	for _, c := range b.columns {
		if c.PresetKey != "" && keys[c.PresetKey] {
			continue
		}
		kept = append(kept, c)
	}
	b.columns = kept
	b.renumber()
}

// columnOptions returns the selectable reference for each column card,
// the id when set, otherwise the name. Blank cards contribute nothing.
func (b *Builder) columnOptions() []string {
	opts := make([]string, 0, len(b.columns))
	for _, c := range b.columns {
		key := strings.TrimSpace(c.ID)
		if key == "" {
			key = strings.TrimSpace(c.Name)
		}
		if key != "" {
			opts = append(opts, key)
		}
	}
	return opts
}

// renumber re-syncs scoring card column selections after a structural
// change, dropping any selection that no longer resolves.
func (b *Builder) renumber() {
	opts := b.columnOptions()
	for _, s := range b.scoring {
		s.pruneColumnRefs(opts)
	}
}

// ColumnRef is a loose reference to a column card: by zero-based index, by
// id, or by name.
type ColumnRef struct {
	ByID    string `json:"byId,omitempty"`
	ByName  string `json:"byName,omitempty"`
	ByIndex *int   `json:"byIndex,omitempty"`
}

// findCardByRef resolves a column reference with progressively looser
// matching: index, exact id/name (case-insensitive), preset key, then
// substring containment on id or name. Returns nil when nothing matches.
func (b *Builder) findCardByRef(ref *ColumnRef, fallback string) *ColumnCard {
	if len(b.columns) == 0 {
		return nil
	}

	var r ColumnRef
	if ref != nil {
		r = *ref
	}

	if r.ByIndex != nil && *r.ByIndex >= 0 && *r.ByIndex < len(b.columns) {
		return b.columns[*r.ByIndex]
	}

	targetID := strings.TrimSpace(r.ByID)
	if targetID == "" {
		targetID = strings.TrimSpace(fallback)
	}
	targetName := strings.TrimSpace(r.ByName)
	if targetName == "" {
		targetName = strings.TrimSpace(fallback)
	}

	idLower := strings.ToLower(targetID)
	nameLower := strings.ToLower(targetName)

	if idLower != "" || nameLower != "" {
		for _, c := range b.columns {
			cid := strings.ToLower(strings.TrimSpace(c.ID))
			cname := strings.ToLower(strings.TrimSpace(c.Name))
			if idLower != "" && cid == idLower {
				return c
			}
			if nameLower != "" && cname == nameLower {
				return c
			}
		}
	}

	if idLower != "" {
		for _, c := range b.columns {
			if c.PresetKey != "" && strings.ToLower(c.PresetKey) == idLower {
				return c
			}
		}
	}

	loose := idLower
	if loose == "" {
		loose = nameLower
	}
	if loose != "" {
		for _, c := range b.columns {
			cid := strings.ToLower(strings.TrimSpace(c.ID))
			cname := strings.ToLower(strings.TrimSpace(c.Name))
			if strings.Contains(cid, loose) || strings.Contains(cname, loose) {
				return c
			}
		}
	}

	return nil
}

// ensureColumnsForScoringConfigs creates a column card for every column a
// scoring config references that does not exist yet. New cards take a
// matching preset when the reference resolves to one, otherwise the raw
// reference becomes both id and name.
func (b *Builder) ensureColumnsForScoringConfigs(configs []ScoringConfig) {
	existing := make(map[string]bool)
	for _, c := range b.columns {
		if id := strings.TrimSpace(c.ID); id != "" {
			existing[strings.ToLower(id)] = true
		}
		if name := strings.TrimSpace(c.Name); name != "" {
			existing[strings.ToLower(name)] = true
		}
	}

	ensure := func(raw string) {
		name := strings.TrimSpace(raw)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if existing[key] {
			return
		}

		card := NewColumnCard()
		b.columns = append(b.columns, card)

		if presetKey := b.catalog.ResolveKey(name); presetKey != "" {
			if preset, ok := b.catalog.Get(presetKey); ok {
				card.ApplyPreset(&preset)
			}
		} else {
			card.ID = name
			card.Name = name
		}

		existing[key] = true
	}

	for _, cfg := range configs {
		ensure(cfg.TriggerColumn)
		for _, rule := range cfg.Rules {
			for _, c := range rule.Conditions {
				ensure(c.Col)
			}
			for _, u := range rule.Updates {
				ensure(u.Col)
			}
		}
	}

	b.renumber()
}

// matchOption resolves a desired value against a list of selectable options
// the way a select element restore does: exact match, then case-insensitive,
// then with all non-alphanumerics stripped. Returns the canonical option or
// "" when nothing matches.
func matchOption(options []string, desired string) string {
	want := strings.TrimSpace(desired)
	if want == "" {
		return ""
	}

	for _, o := range options {
		if o == want {
			return o
		}
	}

	lower := strings.ToLower(want)
	for _, o := range options {
		if strings.ToLower(o) == lower {
			return o
		}
	}

	norm := normalizeAlnum(lower)
	if norm != "" {
		for _, o := range options {
			if normalizeAlnum(strings.ToLower(o)) == norm {
				return o
			}
		}
	}

	return ""
}

// normalizeAlnum strips every character outside [a-z0-9].
func normalizeAlnum(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
