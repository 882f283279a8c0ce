package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cajapos/internal/config"
	"cajapos/internal/infra"
	"cajapos/internal/metrics"
	"cajapos/internal/repository"
	"cajapos/internal/router"
	"cajapos/internal/service"
	"cajapos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in prod
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.EnsureSerie(db, cfg.DefaultSeries); err != nil {
		log.Fatal().Err(err).Str("serie", cfg.DefaultSeries).Msg("failed to seed default series")
	}
	if err := infra.EnsureMoneda(db, cfg.BaseCurrency); err != nil {
		log.Fatal().Err(err).Str("moneda", cfg.BaseCurrency).Msg("failed to seed base currency")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	metrics.Init()

	// Background jobs run after commit; the worker handlers are wired here
	// (composition root) with their own repositories.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := worker.NewDispatcher(rdb)
	ventaRepo := repository.NewVentaRepository(db)
	articuloRepo := repository.NewArticuloRepository(db)
	cierreRepo := repository.NewCierreRepository(db)

	ticketW := worker.NewTicketWorker(db, ventaRepo, articuloRepo, cfg.PDFStoragePath)
	mailer := infra.NewMailer(cfg)
	var smtpCB *infra.CircuitBreaker
	if mailer.Enabled() {
		smtpCB = mailer.Breaker()
	}
	cierreW := worker.NewCierreWorker(cierreRepo, mailer, cfg.CierreEmailTo, cfg.PDFStoragePath)
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, worker.Handlers{
		worker.JobTicket: ticketW.Handle,
		worker.JobCierre: cierreW.Handle,
	})

	inventarioSvc := service.NewInventarioService(
		repository.NewTxRunner(db, cfg.LockTimeout()),
		articuloRepo,
		repository.NewMovimientoStockRepository(db),
	)
	scheduler, err := worker.StartStockAlertCron(ctx, cfg.StockAlertCron, inventarioSvc, rdb)
	if err != nil {
		log.Fatal().Err(err).Str("cron", cfg.StockAlertCron).Msg("invalid STOCK_ALERT_CRON")
	}

	r := router.New(cfg, db, rdb, dispatcher, smtpCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().
			Str("numeracion", cfg.NumberingPolicy).
			Str("devoluciones", cfg.CashReturnsPolicy).
			Msgf("cajapos listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	scheduler.Stop()
	cancel()
	log.Info().Msg("server exited")
}
