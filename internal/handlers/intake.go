package handlers

import (
	"net/http"
	"strings"

	"github.com/anniejean/castingdesk/internal/models"
	"github.com/anniejean/castingdesk/internal/services"
)

// maxIntakeBody caps the form body; photos are uploaded elsewhere.
const maxIntakeBody = 1 << 20

type intakeChildJSON struct {
	ID      uint     `json:"id"`
	Name    string   `json:"name"`
	Sizes   []string `json:"sizes"`
	Primary string   `json:"primary"`
}

type intakeResponse struct {
	UserID     uint              `json:"userId"`
	NewAccount bool              `json:"newAccount"`
	Children   []intakeChildJSON `json:"children"`
}

// POST /intake/child
func (h *Handler) ChildIntake(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIntakeBody)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Could not read the form.")
		return
	}
	p, kids, err := services.ParseChildIntake(r.PostForm)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Intake.SubmitChildIntake(r.Context(), p, kids)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := intakeResponse{UserID: res.UserID, NewAccount: res.NewAccount, Children: []intakeChildJSON{}}
	for _, c := range res.Children {
		out.Children = append(out.Children, intakeChildJSON{
			ID:      c.ChildID,
			Name:    c.Name,
			Sizes:   c.Sizes,
			Primary: c.Sizes[0],
		})
	}
	writeJSON(w, http.StatusCreated, out)
}

type intakeAdultJSON struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Size string `json:"size"`
}

type adultIntakeResponse struct {
	UserID     uint              `json:"userId"`
	NewAccount bool              `json:"newAccount"`
	Adults     []intakeAdultJSON `json:"adults"`
}

func toIntakeAdults(in []models.Adult) []intakeAdultJSON {
	out := make([]intakeAdultJSON, 0, len(in))
	for _, a := range in {
		out = append(out, intakeAdultJSON{
			ID:   a.ID,
			Name: strings.TrimSpace(a.FirstName + " " + a.LastName),
			Size: a.Size,
		})
	}
	return out
}

// POST /intake/adult
func (h *Handler) AdultIntake(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIntakeBody)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Could not read the form.")
		return
	}
	p, adults, err := services.ParseAdultIntake(r.PostForm)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Intake.SubmitAdultIntake(r.Context(), p, adults)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, adultIntakeResponse{
		UserID:     res.UserID,
		NewAccount: res.NewAccount,
		Adults:     toIntakeAdults(res.Adults),
	})
}
