package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"consumo-backend/internal/config"
	"consumo-backend/internal/service/catalog"
	"consumo-backend/internal/service/consumption"
	generate_excel "consumo-backend/internal/service/generate-excel"
	"consumo-backend/internal/service/simulation"
	"consumo-backend/internal/storage/mysql"
	"consumo-backend/internal/storage/sqlite"
)

func main() {
	cfg := config.MustConfig()

	log := setupLogger(cfg.Env, "errors.log")

	storage, err := mysql.New(*cfg)
	if err != nil {
		log.Error("failed to open db", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.LeftoverDBPath), 0o755); err != nil {
		log.Error("failed to create leftovers dir", slog.String("error", err.Error()))
		os.Exit(1)
	}
	leftovers, err := sqlite.New(cfg.LeftoverDBPath)
	if err != nil {
		log.Error("failed to open leftovers db", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer leftovers.Close()

	cat := catalog.New(storage, cfg.CatalogTTL, log)
	simService := simulation.NewService(cat, leftovers, consumption.Settings{
		WasteThresholdPercent: cfg.Calculator.WasteThresholdPercent,
		MaxDiscountPercent:    cfg.Calculator.MaxDiscountPercent,
		MinReusableLeftover:   cfg.Calculator.MinReusableLeftover,
	}, log)
	genService := generate_excel.NewGenerateService(simService)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      routes(*cfg, log, cat, simService, genService),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout * 3,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server started", slog.String("address", cfg.Address), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed start server", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop server", slog.String("error", err.Error()))
	}

	log.Info("server stopped")
}
