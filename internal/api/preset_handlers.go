package api

import (
	"net/http"
	"strings"

	"github.com/logicgrid/logicgrid/internal/types"
	"github.com/logicgrid/logicgrid/internal/validation"
)

// ListColumnPresets handles GET /api/column-presets. Presets come back in
// standard order so the builder palette is stable.
func (h *Handler) ListColumnPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := h.store.ListColumnPresets(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if presets == nil {
		presets = []types.ColumnPreset{}
	}
	writeJSON(w, http.StatusOK, presets)
}

// UpsertColumnPreset handles POST /api/column-presets. Any signed-in user
// can create or replace a preset; the key is the identity.
func (h *Handler) UpsertColumnPreset(w http.ResponseWriter, r *http.Request) {
	var preset types.ColumnPreset
	if err := decodeJSON(w, r, &preset); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	preset.Key = strings.TrimSpace(preset.Key)
	preset.Label = strings.TrimSpace(preset.Label)

	var c validation.Collector
	c.Add(validation.ValidateRequired("key", preset.Key))
	c.Add(validation.ValidateRequired("label", preset.Label))
	if len(preset.Config) == 0 {
		c.Add(&validation.ValidationError{Field: "config", Message: "is required"})
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "key, label, and config are required", c.Errors())
		return
	}

	if err := h.store.UpsertColumnPreset(r.Context(), preset); err != nil {
		MapStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteColumnPreset handles DELETE /api/column-presets?key=. Admin only;
// removing a preset other accounts rely on is a deliberate act.
func (h *Handler) DeleteColumnPreset(w http.ResponseWriter, r *http.Request) {
	user := MustUserFromContext(r.Context())
	if !user.IsAdmin {
		WriteProblem(w, r, http.StatusForbidden, "Admin access required")
		return
	}

	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		WriteProblem(w, r, http.StatusBadRequest, "missing key")
		return
	}

	if err := h.store.DeleteColumnPreset(r.Context(), key); err != nil {
		MapStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
