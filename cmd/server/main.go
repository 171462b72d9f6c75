package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/anniejean/castingdesk/internal/config"
	"github.com/anniejean/castingdesk/internal/db"
	"github.com/anniejean/castingdesk/internal/events"
	"github.com/anniejean/castingdesk/internal/handlers"
	"github.com/anniejean/castingdesk/internal/jobs"
	"github.com/anniejean/castingdesk/internal/logging"
	"github.com/anniejean/castingdesk/internal/metrics"
	"github.com/anniejean/castingdesk/internal/services"
	"github.com/anniejean/castingdesk/internal/sizing"
	"github.com/anniejean/castingdesk/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	zap.ReplaceGlobals(log)

	os.Exit(finish(log, run(cfg, log)))
}

// finish logs a run error, flushes the logger and returns the exit code.
// os.Exit skips deferred calls, so the flush can't be deferred.
func finish(log *zap.Logger, err error) int {
	code := 0
	if err != nil {
		log.Error("server stopped", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	return code
}

func run(cfg config.Config, log *zap.Logger) error {
	classifier, err := sizing.LoadFile(cfg.SizeTablePath)
	if err != nil {
		return err
	}

	// Init DB (creates the sqlite file if missing)
	if err := db.Init(cfg.DatabasePath, log); err != nil {
		return err
	}
	gdb := db.Conn()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		return err
	}

	events.OnSizesReconciled = func(childID uint, labels []string) {
		log.Info("child sizes updated", zap.Uint("child_id", childID), zap.Strings("sizes", labels))
	}
	events.OnIntakeSubmitted = func(userID uint, childIDs []uint, newAccount bool) {
		log.Info("intake received",
			zap.Uint("user_id", userID),
			zap.Int("children", len(childIDs)),
			zap.Bool("new_account", newAccount),
		)
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		log.Warn("SESSION_SECRET not set; sessions will not survive a restart")
	}
	if cfg.AdminPassword == "" {
		log.Warn("ADMIN_PASSWORD not set; admin login disabled")
	}

	sizes := services.NewSizeReconciler(gdb, classifier, services.WithReconcilerLogger(log.Named("sizes")))
	h := handlers.New(handlers.Deps{
		Sizes:    sizes,
		Intake:   services.NewIntakeService(gdb, sizes, log.Named("intake")),
		Shoots:   services.NewShootService(gdb),
		Models:   services.NewModelQuery(gdb, sizes),
		Sessions: handlers.NewSessions(secret, cfg.SessionTTL, cfg.AdminPassword, cfg.IsProduction()),
		Log:      log.Named("http"),
		BaseURL:  cfg.BaseURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobsDone := jobs.StartBackfillLoop(ctx, sizes, cfg.BackfillInterval, log.Named("jobs"))

	srv := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           web.Router(h, web.Options{IntakeRatePerMin: cfg.IntakeRatePerMin, Gatherer: reg}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("castingdesk listening", zap.String("addr", cfg.AppAddr), zap.String("env", cfg.Env))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	<-jobsDone
	return err
}
