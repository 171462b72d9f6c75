package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/anniejean/castingdesk/internal/models"
	"github.com/anniejean/castingdesk/internal/services"
)

type clientModelJSON struct {
	services.ChildRow
	Approval string `json:"approval"`
	Notes    string `json:"approvalNotes,omitempty"`
}

type clientModelsResponse struct {
	Shoot  shootJSON         `json:"shoot"`
	Models []clientModelJSON `json:"models"`
	Total  int64             `json:"total"`
	Page   int               `json:"page"`
	Per    int               `json:"per"`
}

// ownShoot loads the shoot behind token if it belongs to the logged-in
// client. Another client's shoot is reported as not found.
func (h *Handler) ownShoot(r *http.Request, token string) (models.Shoot, error) {
	sh, err := h.Shoots.ShootByToken(r.Context(), token)
	if err != nil {
		return sh, err
	}
	if sh.ClientID != clientIDFrom(r.Context()) {
		return models.Shoot{}, gorm.ErrRecordNotFound
	}
	return sh, nil
}

// GET /client/shoots/{token}/models?size=&gender=&q=&page=&per=
// Children are listed with this shoot's approval state.
func (h *Handler) ClientShootModels(w http.ResponseWriter, r *http.Request) {
	sh, err := h.ownShoot(r, chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.Models.ListChildren(r.Context(), childFilterFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	byChild, err := h.approvalsByModel(r, sh.ID, models.ModelTypeChild)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := clientModelsResponse{
		Shoot:  h.toShootJSON(sh),
		Models: make([]clientModelJSON, 0, len(page.Rows)),
		Total:  page.Total,
		Page:   page.Page,
		Per:    page.Per,
	}
	for _, row := range page.Rows {
		a, ok := byChild[row.ID]
		m := clientModelJSON{ChildRow: row, Approval: "pending"}
		// Clients see parent names, not contact details.
		m.ParentEmail, m.ParentPhone = "", ""
		if ok {
			m.Approval = approvalStatus(a.Approved)
			m.Notes = a.Notes
		}
		out.Models = append(out.Models, m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) approvalsByModel(r *http.Request, shootID uint, modelType string) (map[uint]models.ModelApproval, error) {
	approvals, err := h.Shoots.Approvals(r.Context(), shootID)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]models.ModelApproval)
	for _, a := range approvals {
		if a.ModelType == modelType {
			out[a.ModelID] = a
		}
	}
	return out, nil
}

type clientAdultJSON struct {
	services.AdultRow
	Approval string `json:"approval"`
	Notes    string `json:"approvalNotes,omitempty"`
}

type clientAdultsResponse struct {
	Shoot  shootJSON         `json:"shoot"`
	Models []clientAdultJSON `json:"models"`
	Total  int64             `json:"total"`
	Page   int               `json:"page"`
	Per    int               `json:"per"`
}

// GET /client/shoots/{token}/adults?size=&gender=&q=&page=&per=
func (h *Handler) ClientShootAdults(w http.ResponseWriter, r *http.Request) {
	sh, err := h.ownShoot(r, chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.Models.ListAdults(r.Context(), adultFilterFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	byAdult, err := h.approvalsByModel(r, sh.ID, models.ModelTypeAdult)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := clientAdultsResponse{
		Shoot:  h.toShootJSON(sh),
		Models: make([]clientAdultJSON, 0, len(page.Rows)),
		Total:  page.Total,
		Page:   page.Page,
		Per:    page.Per,
	}
	for _, row := range page.Rows {
		m := clientAdultJSON{AdultRow: row, Approval: "pending"}
		m.ParentEmail, m.ParentPhone = "", ""
		if a, ok := byAdult[row.ID]; ok {
			m.Approval = approvalStatus(a.Approved)
			m.Notes = a.Notes
		}
		out.Models = append(out.Models, m)
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /client/approval  (shootId, modelType, modelId, status, notes)
func (h *Handler) ClientSetApproval(w http.ResponseWriter, r *http.Request) {
	f, err := readApprovalForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sh, err := h.Shoots.Shoot(r.Context(), f.shootID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if sh.ClientID != clientIDFrom(r.Context()) {
		writeError(w, http.StatusForbidden, "forbidden", "")
		return
	}
	a, err := h.Shoots.SetApproval(r.Context(), f.shootID, f.modelType, f.modelID, f.approved, f.notes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalJSON(a))
}
