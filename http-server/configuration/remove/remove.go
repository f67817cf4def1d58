package remove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"consumo-backend/internal/storage"
)

type ConfigurationDeleteProvider interface {
	DeleteConfiguration(ctx context.Context, id int64) error
}

func DeleteConfiguration(log *slog.Logger, provider ConfigurationDeleteProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.configuration.DeleteConfiguration"

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "неверный ID конфигурации", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := provider.DeleteConfiguration(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "конфигурация не найдена", http.StatusNotFound)
				return
			}
			log.Error("Failed to delete configuration", slog.String("op", op), slog.Int64("id", id), slog.String("error", err.Error()))
			http.Error(w, "ошибка удаления конфигурации", http.StatusInternalServerError)
			return
		}

		log.Info("Configuration deleted", slog.String("op", op), slog.Int64("id", id))

		w.WriteHeader(http.StatusNoContent)
	}
}
