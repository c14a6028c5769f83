package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pulabank.org/internal/accrual"
	"pulabank.org/internal/config"
	"pulabank.org/internal/httpapi"
	"pulabank.org/internal/ledger"
	"pulabank.org/internal/obs"
	"pulabank.org/internal/store/pg"
	"pulabank.org/internal/stream"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("PULABANK_BUILD_COMMIT"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// With a DSN configured the ledger persists through PostgreSQL and the
	// customer directory resolves default signatories. Without one the service
	// runs purely in memory, which is enough for demos and tests.
	var (
		store   *pg.Store
		ledOpts []ledger.Option
	)
	if cfg.PGDSN != "" {
		store, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		ledOpts = append(ledOpts, ledger.WithStore(store), ledger.WithDirectory(store))
	}

	events := stream.New()
	ledOpts = append(ledOpts, ledger.WithPublisher(events))
	svc := ledger.NewInMemory(ledOpts...)

	job := accrual.New(svc)
	if cfg.AccrualSchedule != "" {
		if err := job.Start(cfg.AccrualSchedule); err != nil {
			log.Fatalf("accrual schedule %q: %v", cfg.AccrualSchedule, err)
		}
	}

	probe := httpapi.ReadyProbe{}
	if store != nil {
		probe.DB = store.DB()
	}
	api := httpapi.New(probe, version, svc, events)
	api.SetRateLimit(cfg.RateBurst, cfg.RatePerSec)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	log.Printf("Starting pulabank-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	job.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}
