package update

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"consumo-backend/http-server/configuration/save"
	"consumo-backend/internal/storage"
)

type ConfigurationUpdateProvider interface {
	UpdateConfiguration(ctx context.Context, cfg *storage.Configuration) error
}

func UpdateConfiguration(log *slog.Logger, provider ConfigurationUpdateProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.configuration.UpdateConfiguration"

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "неверный ID конфигурации", http.StatusBadRequest)
			return
		}

		var cfg storage.Configuration
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "ошибка парсинга JSON", http.StatusBadRequest)
			return
		}
		cfg.ID = id

		if !save.RenderInvalid(w, r, cfg.Validate()) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		err = provider.UpdateConfiguration(ctx, &cfg)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			http.Error(w, "конфигурация не найдена", http.StatusNotFound)
			return
		case errors.Is(err, storage.ErrConfigurationExists):
			http.Error(w, "конфигурация с таким именем уже существует", http.StatusConflict)
			return
		case err != nil:
			log.Error("Failed to update configuration", slog.String("op", op), slog.Int64("id", id), slog.String("error", err.Error()))
			http.Error(w, "ошибка обновления конфигурации", http.StatusInternalServerError)
			return
		}

		log.Info("Configuration updated", slog.String("op", op), slog.Int64("id", id))

		render.JSON(w, r, map[string]string{"status": "updated"})
	}
}
