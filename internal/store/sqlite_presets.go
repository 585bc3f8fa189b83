package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/logicgrid/logicgrid/internal/types"
)

// ListColumnPresets returns all presets in standard order. Presets without a
// standard order sort last, alphabetically by key.
func (s *SQLiteStore) ListColumnPresets(ctx context.Context) ([]types.ColumnPreset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT preset_key, label, config_json, standard_order FROM column_presets
		 ORDER BY COALESCE(standard_order, 9999), preset_key`)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	var presets []types.ColumnPreset
	for rows.Next() {
		var (
			p      types.ColumnPreset
			config string
			order  sql.NullInt64
		)
		if err := rows.Scan(&p.Key, &p.Label, &config, &order); err != nil {
			return nil, fmt.Errorf("scan preset: %w", err)
		}
		p.Config = []byte(config)
		if order.Valid {
			n := int(order.Int64)
			p.StandardOrder = &n
		}
		presets = append(presets, p)
	}
	return presets, rows.Err()
}

// UpsertColumnPreset inserts or replaces a preset keyed by its preset key.
func (s *SQLiteStore) UpsertColumnPreset(ctx context.Context, preset types.ColumnPreset) error {
	var order any
	if preset.StandardOrder != nil {
		order = *preset.StandardOrder
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO column_presets (preset_key, label, config_json, standard_order)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(preset_key) DO UPDATE SET
		   label = excluded.label,
		   config_json = excluded.config_json,
		   standard_order = excluded.standard_order`,
		preset.Key, preset.Label, string(preset.Config), order)
	if err != nil {
		return fmt.Errorf("upsert preset: %w", err)
	}
	return nil
}

// DeleteColumnPreset removes a preset by key.
func (s *SQLiteStore) DeleteColumnPreset(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM column_presets WHERE preset_key = ?", key)
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	return requireRow(res)
}

// SeedColumnPresets inserts any of the given presets that are not already
// present. Existing rows are left untouched so admin edits survive restarts.
func (s *SQLiteStore) SeedColumnPresets(ctx context.Context, presets []types.ColumnPreset) error {
	for _, p := range presets {
		var order any
		if p.StandardOrder != nil {
			order = *p.StandardOrder
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO column_presets (preset_key, label, config_json, standard_order)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(preset_key) DO NOTHING`,
			p.Key, p.Label, string(p.Config), order)
		if err != nil {
			return fmt.Errorf("seed preset %s: %w", p.Key, err)
		}
	}
	return nil
}
