package save

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"consumo-backend/internal/storage"
)

type ConfigurationCreateProvider interface {
	CreateConfiguration(ctx context.Context, cfg *storage.Configuration) (int64, error)
}

type ValidationResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

type CreatedResponse struct {
	Status string `json:"status"`
	ID     int64  `json:"id"`
}

func SaveConfiguration(log *slog.Logger, provider ConfigurationCreateProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.configuration.SaveConfiguration"

		var cfg storage.Configuration
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "ошибка парсинга JSON", http.StatusBadRequest)
			return
		}
		cfg.ID = 0

		if !RenderInvalid(w, r, cfg.Validate()) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		id, err := provider.CreateConfiguration(ctx, &cfg)
		if err != nil {
			if errors.Is(err, storage.ErrConfigurationExists) {
				http.Error(w, "конфигурация с таким именем уже существует", http.StatusConflict)
				return
			}
			log.Error("Failed to create configuration", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "ошибка создания конфигурации", http.StatusInternalServerError)
			return
		}

		log.Info("Configuration created", slog.String("op", op), slog.Int64("id", id), slog.String("name", cfg.Name))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreatedResponse{Status: "created", ID: id})
	}
}

// ValidateConfiguration проверяет конфигурацию без сохранения.
func ValidateConfiguration(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg storage.Configuration
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "ошибка парсинга JSON", http.StatusBadRequest)
			return
		}

		if RenderInvalid(w, r, cfg.Validate()) {
			render.JSON(w, r, ValidationResponse{Valid: true})
		}
	}
}

// RenderInvalid пишет 400 со списком проблем и возвращает false,
// если конфигурация не прошла проверку.
func RenderInvalid(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return true
	}

	var verr *storage.ValidationError
	if !errors.As(err, &verr) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}

	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ValidationResponse{Valid: false, Problems: verr.Problems})
	return false
}
