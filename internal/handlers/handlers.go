// Package handlers holds the JSON HTTP endpoints.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/anniejean/castingdesk/internal/services"
)

// Deps are the collaborators a Handler needs.
type Deps struct {
	Sizes    *services.SizeReconciler
	Intake   *services.IntakeService
	Shoots   *services.ShootService
	Models   *services.ModelQuery
	Sessions *Sessions
	Log      *zap.Logger
	// BaseURL prefixes links encoded into shoot QR codes.
	BaseURL string
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Handler{Deps: d}
}

// GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func idParam(r *http.Request, name string) (uint, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
