package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"consumo-backend/internal/storage"
)

type ConfigurationProvider interface {
	Configurations(ctx context.Context) ([]*storage.Configuration, error)
	GetConfigurationByID(ctx context.Context, id int64) (*storage.Configuration, error)
}

// GetConfigurations отдает весь каталог конфигураций, включая неактивные.
func GetConfigurations(log *slog.Logger, provider ConfigurationProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.configuration.GetConfigurations"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		configs, err := provider.Configurations(ctx)
		if err != nil {
			log.With(
				slog.String("op", op),
				slog.String("error", err.Error()),
			).Error("Failed to fetch configurations")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if configs == nil {
			configs = []*storage.Configuration{}
		}

		render.JSON(w, r, configs)
	}
}

func GetConfigurationByID(log *slog.Logger, provider ConfigurationProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.configuration.GetConfigurationByID"

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "неверный ID конфигурации", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		cfg, err := provider.GetConfigurationByID(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				log.With(slog.String("op", op), slog.Int64("id", id)).Warn("Configuration not found")
				http.Error(w, "конфигурация не найдена", http.StatusNotFound)
				return
			}

			log.With(
				slog.String("op", op),
				slog.Int64("id", id),
				slog.String("error", err.Error()),
			).Error("Failed to fetch configuration")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, cfg)
	}
}
