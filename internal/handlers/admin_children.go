package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/anniejean/castingdesk/internal/services"
)

type childSizesResponse struct {
	ChildID  uint               `json:"childId"`
	Primary  string             `json:"primary,omitempty"`
	Multiple bool               `json:"multiple"`
	Sizes    []services.SizeTag `json:"sizes"`
}

func (h *Handler) writeChildSizes(w http.ResponseWriter, r *http.Request, childID uint, status int) {
	rows, err := h.Sizes.ChildSizes(r.Context(), childID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res := childSizesResponse{ChildID: childID, Multiple: len(rows) > 1, Sizes: []services.SizeTag{}}
	for _, s := range rows {
		res.Sizes = append(res.Sizes, services.SizeTag{Size: s.Size, Primary: s.IsPrimary})
		if s.IsPrimary {
			res.Primary = s.Size
		}
	}
	writeJSON(w, status, res)
}

// POST /admin/children/{id}/measurements  (weight, height form fields)
func (h *Handler) AdminChildMeasurements(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	if _, err := h.Intake.UpdateChildMeasurements(r.Context(), id, r.FormValue("weight"), r.FormValue("height")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeChildSizes(w, r, id, http.StatusOK)
}

// POST /admin/children/{id}/delete
func (h *Handler) AdminChildDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err := h.Intake.DeleteChild(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /admin/children/{id}/sizes
func (h *Handler) AdminChildSizes(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	exists, err := h.Sizes.ChildExists(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !exists {
		h.fail(w, r, gorm.ErrRecordNotFound)
		return
	}
	h.writeChildSizes(w, r, id, http.StatusOK)
}

// POST /admin/sizes/backfill
func (h *Handler) AdminBackfill(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Sizes.BackfillSizes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
