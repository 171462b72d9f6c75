package handlers

import (
	"net/http"

	"github.com/anniejean/castingdesk/internal/services"
)

// maxParentModels caps one parent's listing; intake forms allow far fewer.
const maxParentModels = 200

type parentModelsResponse struct {
	Children []services.ChildRow `json:"children"`
	Adults   []services.AdultRow `json:"adults"`
}

// GET /parent/models
func (h *Handler) ParentModels(w http.ResponseWriter, r *http.Request) {
	uid := parentIDFrom(r.Context())
	kids, err := h.Models.ListChildren(r.Context(), services.ChildFilter{UserID: uid, Per: maxParentModels})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	adults, err := h.Models.ListAdults(r.Context(), services.AdultFilter{UserID: uid, Per: maxParentModels})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parentModelsResponse{Children: kids.Rows, Adults: adults.Rows})
}

// ownChild resolves {id} to one of the logged-in parent's children.
// Another parent's child is reported as not found.
func (h *Handler) ownChild(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "")
		return 0, false
	}
	if err := h.Intake.ChildOfParent(r.Context(), id, parentIDFrom(r.Context())); err != nil {
		h.fail(w, r, err)
		return 0, false
	}
	return id, true
}

// POST /parent/children/{id}/measurements  (weight, height form fields)
func (h *Handler) ParentChildMeasurements(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownChild(w, r)
	if !ok {
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

// POST /parent/children/{id}/delete
func (h *Handler) ParentChildDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownChild(w, r)
	if !ok {
		return
	}
	if err := h.Intake.DeleteChild(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /parent/adults  (firstName0, lastName0, gender0, size0, dob0, ...)
// The submitted adults replace the account's current ones.
func (h *Handler) ParentSaveAdults(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIntakeBody)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Could not read the form.")
		return
	}
	adults, verr := services.ParseAdults(r.PostForm)
	if verr != nil {
		h.fail(w, r, verr)
		return
	}
	saved, err := h.Intake.SaveAdults(r.Context(), parentIDFrom(r.Context()), adults)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIntakeAdults(saved))
}

// POST /parent/password  (currentPassword, newPassword)
func (h *Handler) ParentChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	err := h.Intake.ChangeParentPassword(r.Context(), parentIDFrom(r.Context()),
		r.FormValue("currentPassword"), r.FormValue("newPassword"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
