package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"almacen/automation"
	"almacen/catalog"
	"almacen/config"
	"almacen/journal"
	"almacen/loader"
	"almacen/notification"
	"almacen/ownership"
	"almacen/payment"
	"almacen/report"
)

const agingInterval = 6 * time.Hour

func main() {
	log := config.GetLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Warn("Failed to load config file. Using defaults.")
	}
	config.SetLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := loader.Open(ctx, cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("Database initialization failed")
	}
	defer db.Close()

	emitter := notification.NewEmitter(db, time.Now)
	tracker := payment.NewTracker(db, emitter, time.Now)
	s := &services{
		db:        db,
		catalog:   catalog.New(db),
		ledger:    ownership.NewLedger(db),
		journal:   journal.New(db, emitter, time.Now),
		tracker:   tracker,
		emitter:   emitter,
		reports:   report.NewService(db),
		scheduler: automation.NewScheduler(tracker, agingInterval, time.Now),
	}

	mux := http.NewServeMux()
	sales := journal.SalesTableHandler(s.journal)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		sales(w, r)
	})
	SetupRoutes(mux, s)

	go s.scheduler.Run(ctx)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server start error")
		}
	}()

	if cfg.OpenBrowser {
		closeUI, err := automation.OpenUI(ctx, localURL(cfg.ListenAddr))
		if err != nil {
			log.WithError(err).Warn("failed to open browser")
		} else {
			defer closeUI()
		}
	}

	<-ctx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown error")
	}
}

// localURL は待受アドレスからブラウザで開く URL を作ります。
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
