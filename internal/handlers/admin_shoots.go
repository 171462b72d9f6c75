package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anniejean/castingdesk/internal/models"
	"github.com/anniejean/castingdesk/internal/services"
)

type clientJSON struct {
	ID               uint     `json:"id"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	IneligibleBrands []string `json:"ineligibleBrands"`
	IsActive         bool     `json:"isActive"`
}

type shootJSON struct {
	ID         uint       `json:"id"`
	ClientID   uint       `json:"clientId"`
	Name       string     `json:"name"`
	Date       *time.Time `json:"date,omitempty"`
	ShareToken string     `json:"shareToken"`
	ShareURL   string     `json:"shareUrl"`
}

type approvalJSON struct {
	ShootID   uint      `json:"shootId"`
	ModelType string    `json:"modelType"`
	ModelID   uint      `json:"modelId"`
	Status    string    `json:"status"` // approved | rejected | pending
	Notes     string    `json:"notes,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toApprovalJSON(a models.ModelApproval) approvalJSON {
	return approvalJSON{
		ShootID:   a.ShootID,
		ModelType: a.ModelType,
		ModelID:   a.ModelID,
		Status:    approvalStatus(a.Approved),
		Notes:     a.Notes,
		UpdatedAt: a.UpdatedAt,
	}
}

func approvalStatus(b *bool) string {
	switch {
	case b == nil:
		return "pending"
	case *b:
		return "approved"
	default:
		return "rejected"
	}
}

// parseApproval accepts approved|rejected|pending and true|false|"".
func parseApproval(s string) (*bool, bool) {
	yes, no := true, false
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "true", "1":
		return &yes, true
	case "rejected", "false", "0":
		return &no, true
	case "pending", "", "null":
		return nil, true
	}
	return nil, false
}

func (h *Handler) shareURL(token string) string {
	return strings.TrimRight(h.BaseURL, "/") + "/client/shoots/" + token
}

func (h *Handler) toShootJSON(s models.Shoot) shootJSON {
	return shootJSON{
		ID:         s.ID,
		ClientID:   s.ClientID,
		Name:       s.Name,
		Date:       s.Date,
		ShareToken: s.ShareToken,
		ShareURL:   h.shareURL(s.ShareToken),
	}
}

// POST /admin/clients  (name, email, password, ineligibleBrands comma list)
func (h *Handler) AdminCreateClient(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	c, err := h.Shoots.CreateClient(r.Context(), r.FormValue("name"), r.FormValue("email"), r.FormValue("password"), formBrands(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientJSON(c))
}

func toClientJSON(c models.Client) clientJSON {
	return clientJSON{
		ID:               c.ID,
		Name:             c.Name,
		Email:            c.Email,
		IneligibleBrands: c.IneligibleBrands,
		IsActive:         c.IsActive,
	}
}

// formBrands reads ineligibleBrands, repeated or comma separated.
func formBrands(r *http.Request) []string {
	var brands []string
	for _, v := range r.PostForm["ineligibleBrands"] {
		brands = append(brands, strings.Split(v, ",")...)
	}
	return brands
}

// POST /admin/clients/{id}/update  (name, email, ineligibleBrands, isActive optional)
func (h *Handler) AdminUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	var active *bool
	if v := strings.TrimSpace(r.FormValue("isActive")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.fail(w, r, services.ValidationErrors{"isActive": "must be true or false"})
			return
		}
		active = &b
	}
	c, err := h.Shoots.UpdateClient(r.Context(), id, r.FormValue("name"), r.FormValue("email"), formBrands(r), active)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientJSON(c))
}

// POST /admin/clients/{id}/password  (password)
func (h *Handler) AdminResetClientPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	if err := h.Shoots.ResetClientPassword(r.Context(), id, r.FormValue("password")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /admin/clients/{id}/delete
func (h *Handler) AdminDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err := h.Shoots.DeleteClient(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// formDate reads an optional YYYY-MM-DD field; a bad value is noted in verr.
func formDate(r *http.Request, field string, verr services.ValidationErrors) *time.Time {
	s := strings.TrimSpace(r.FormValue(field))
	if s == "" {
		return nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		verr[field] = "use YYYY-MM-DD"
		return nil
	}
	return &d
}

// POST /admin/shoots  (clientId, name, date YYYY-MM-DD optional)
func (h *Handler) AdminCreateShoot(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	verr := services.ValidationErrors{}
	clientID, err := strconv.ParseUint(r.FormValue("clientId"), 10, 64)
	if err != nil || clientID == 0 {
		verr["clientId"] = "required"
	}
	date := formDate(r, "date", verr)
	if len(verr) > 0 {
		h.fail(w, r, verr)
		return
	}
	sh, err := h.Shoots.CreateShoot(r.Context(), uint(clientID), r.FormValue("name"), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toShootJSON(sh))
}

// POST /admin/shoots/{id}/update  (name, date YYYY-MM-DD optional)
func (h *Handler) AdminUpdateShoot(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	verr := services.ValidationErrors{}
	date := formDate(r, "date", verr)
	if len(verr) > 0 {
		h.fail(w, r, verr)
		return
	}
	sh, err := h.Shoots.UpdateShoot(r.Context(), id, r.FormValue("name"), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toShootJSON(sh))
}

// POST /admin/shoots/{id}/delete
func (h *Handler) AdminDeleteShoot(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err := h.Shoots.DeleteShoot(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type approvalForm struct {
	shootID   uint
	modelType string
	modelID   uint
	approved  *bool
	notes     string
}

func readApprovalForm(r *http.Request) (approvalForm, error) {
	if err := r.ParseForm(); err != nil {
		return approvalForm{}, services.ValidationErrors{"form": "could not read the form"}
	}
	verr := services.ValidationErrors{}
	f := approvalForm{
		modelType: strings.ToLower(strings.TrimSpace(r.FormValue("modelType"))),
		notes:     r.FormValue("notes"),
	}
	if n, err := strconv.ParseUint(r.FormValue("shootId"), 10, 64); err != nil || n == 0 {
		verr["shootId"] = "required"
	} else {
		f.shootID = uint(n)
	}
	if n, err := strconv.ParseUint(r.FormValue("modelId"), 10, 64); err != nil || n == 0 {
		verr["modelId"] = "required"
	} else {
		f.modelID = uint(n)
	}
	approved, ok := parseApproval(r.FormValue("status"))
	if !ok {
		verr["status"] = "must be approved, rejected or pending"
	}
	f.approved = approved
	if len(verr) > 0 {
		return f, verr
	}
	return f, nil
}

// POST /admin/model-approvals  (shootId, modelType, modelId, status, notes)
func (h *Handler) AdminSetApproval(w http.ResponseWriter, r *http.Request) {
	f, err := readApprovalForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.Shoots.SetApproval(r.Context(), f.shootID, f.modelType, f.modelID, f.approved, f.notes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalJSON(a))
}

// GET /admin/shoots/{id}/approvals
func (h *Handler) AdminShootApprovals(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if _, err := h.Shoots.Shoot(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.Shoots.Approvals(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]approvalJSON, len(list))
	for i, a := range list {
		out[i] = toApprovalJSON(a)
	}
	writeJSON(w, http.StatusOK, out)
}
