package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/logicgrid/logicgrid/internal/types"
)

// ListProtocols handles GET /api/protocols. Without an id parameter it
// lists protocols visible to the caller; scope=account restricts the list
// to the caller's own. With ?id=N it returns one document.
func (h *Handler) ListProtocols(w http.ResponseWriter, r *http.Request) {
	user := MustUserFromContext(r.Context())

	if idStr := r.URL.Query().Get("id"); idStr != "" {
		h.getProtocol(w, r, user.ID, idStr)
		return
	}

	ownOnly := r.URL.Query().Get("scope") == "account"
	summaries, err := h.store.ListProtocols(r.Context(), user.ID, ownOnly)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []types.ProtocolSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) getProtocol(w http.ResponseWriter, r *http.Request, userID int64, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		WriteProblem(w, r, http.StatusBadRequest, "invalid id")
		return
	}

	p, err := h.store.GetProtocol(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	// Private protocols are invisible to everyone but their owner.
	if !p.IsPublic && p.UserID != userID {
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// SaveProtocol handles POST /api/protocols. One endpoint covers create,
// update, delete, and publish, matching what the builder UI sends.
func (h *Handler) SaveProtocol(w http.ResponseWriter, r *http.Request) {
	user := MustUserFromContext(r.Context())

	var req types.SaveProtocolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if req.Delete && req.MakePublic {
		WriteProblem(w, r, http.StatusBadRequest, "cannot combine delete and makePublic")
		return
	}

	if req.Delete {
		if req.ID <= 0 {
			WriteProblem(w, r, http.StatusBadRequest, "id required for delete")
			return
		}
		if err := h.store.DeleteProtocol(r.Context(), req.ID, user.ID); err != nil {
			MapStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, types.SaveProtocolResponse{ID: req.ID, Status: "deleted"})
		return
	}

	if req.MakePublic {
		if req.ID <= 0 {
			WriteProblem(w, r, http.StatusBadRequest, "id required to make public")
			return
		}
		if err := h.store.PublishProtocol(r.Context(), req.ID, user.ID); err != nil {
			MapStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, types.SaveProtocolResponse{ID: req.ID, Status: "published"})
		return
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Data) == "" {
		WriteProblem(w, r, http.StatusBadRequest, "name and data required")
		return
	}

	if req.ID > 0 {
		err := h.store.UpdateProtocol(r.Context(), req.ID, user.ID, req.Name, req.Data)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, types.SaveProtocolResponse{ID: req.ID, Status: "updated"})
			return
		case isNotFound(err) || isNotOwner(err):
			// Saving someone else's public protocol forks it into a new
			// record owned by the caller.
		default:
			MapStoreError(w, r, err)
			return
		}
	}

	p, err := h.store.CreateProtocol(r.Context(), user.ID, req.Name, req.Data)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.SaveProtocolResponse{ID: p.ID, Status: "created"})
}
