package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/anniejean/castingdesk/internal/handlers"
	"github.com/anniejean/castingdesk/internal/logging"
)

// Options configure Router beyond the handler dependencies.
type Options struct {
	// IntakeRatePerMin limits intake submissions per client IP.
	IntakeRatePerMin int
	// Gatherer backs /metrics; nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
}

func Router(h *handlers.Handler, opt Options) http.Handler {
	log := h.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(log))
	r.Use(middleware.Recoverer)

	// Public
	r.Get("/healthz", handlers.Health)
	r.Get("/api/sizes", h.SizeTable)
	r.Get("/api/sizes/classify", h.ClassifySize)

	limiter := handlers.NewIPRateLimiter(opt.IntakeRatePerMin, log)
	r.With(limiter.Middleware).Post("/intake/child", h.ChildIntake)
	r.With(limiter.Middleware).Post("/intake/adult", h.AdultIntake)

	if opt.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opt.Gatherer, promhttp.HandlerOpts{}))
	}

	// --- Admin routes (with login + guard) ---
	r.Route("/admin", func(ar chi.Router) {
		ar.Post("/login", h.AdminLogin)
		ar.Post("/logout", h.AdminLogout)

		ar.Group(func(ag chi.Router) {
			ag.Use(h.Sessions.RequireAdmin)

			// Models
			ag.Get("/models", h.AdminModels)
			ag.Get("/models.csv", h.AdminModelsCSV)
			ag.Get("/adults", h.AdminAdults)
			ag.Post("/children/{id}/measurements", h.AdminChildMeasurements)
			ag.Post("/children/{id}/delete", h.AdminChildDelete)
			ag.Get("/children/{id}/sizes", h.AdminChildSizes)
			ag.Post("/sizes/backfill", h.AdminBackfill)

			// Clients & shoots
			ag.Post("/clients", h.AdminCreateClient)
			ag.Post("/clients/{id}/update", h.AdminUpdateClient)
			ag.Post("/clients/{id}/password", h.AdminResetClientPassword)
			ag.Post("/clients/{id}/delete", h.AdminDeleteClient)
			ag.Post("/shoots", h.AdminCreateShoot)
			ag.Post("/shoots/{id}/update", h.AdminUpdateShoot)
			ag.Post("/shoots/{id}/delete", h.AdminDeleteShoot)
			ag.Post("/model-approvals", h.AdminSetApproval)
			ag.Get("/shoots/{id}/approvals", h.AdminShootApprovals)
			ag.Get("/shoots/{id}/qr.png", h.ShootQR)
		})
	})

	// --- Client routes ---
	r.Route("/client", func(cr chi.Router) {
		cr.Post("/login", h.ClientLogin)
		cr.Post("/logout", h.ClientLogout)

		cr.Group(func(cg chi.Router) {
			cg.Use(h.Sessions.RequireClient)
			cg.Get("/shoots/{token}/models", h.ClientShootModels)
			cg.Get("/shoots/{token}/adults", h.ClientShootAdults)
			cg.Post("/approval", h.ClientSetApproval)
		})
	})

	// --- Parent routes ---
	r.Route("/parent", func(pr chi.Router) {
		pr.With(limiter.Middleware).Post("/login", h.ParentLogin)
		pr.Post("/logout", h.ParentLogout)

		pr.Group(func(pg chi.Router) {
			pg.Use(h.Sessions.RequireParent)
			pg.Get("/models", h.ParentModels)
			pg.Post("/children/{id}/measurements", h.ParentChildMeasurements)
			pg.Post("/children/{id}/delete", h.ParentChildDelete)
			pg.Post("/adults", h.ParentSaveAdults)
			pg.Post("/password", h.ParentChangePassword)
		})
	})

	return r
}
