package leftovers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"consumo-backend/http-server/simulation"
	"consumo-backend/internal/service/consumption"
	"consumo-backend/internal/storage"
)

type LeftoverService interface {
	ListLeftovers(ctx context.Context, materialType storage.MaterialType) ([]storage.Leftover, error)
	RegisterLeftovers(ctx context.Context, piece consumption.Piece, systemKey, source string) ([]storage.Leftover, error)
	ConsumeLeftover(ctx context.Context, id string) error
}

func ListLeftovers(log *slog.Logger, svc LeftoverService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.leftovers.ListLeftovers"

		materialType := storage.MaterialType(strings.TrimSpace(r.URL.Query().Get("material_type")))
		if materialType != "" && !materialType.Valid() {
			http.Error(w, "неизвестный тип материала", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		leftovers, err := svc.ListLeftovers(ctx, materialType)
		if err != nil {
			log.Error("Failed to list leftovers", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, leftovers)
	}
}

// RegisterLeftovers фиксирует раскрой изделия: остатки идут в учет.
func RegisterLeftovers(log *slog.Logger, svc LeftoverService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.leftovers.RegisterLeftovers"

		var req struct {
			simulation.Request
			Source string `json:"source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Некорректный JSON", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		saved, err := svc.RegisterLeftovers(ctx, req.Piece, req.System, req.Source)
		if err != nil {
			if errors.Is(err, storage.ErrLeftoverTaken) {
				http.Error(w, "остаток уже использован, повторите расчет", http.StatusConflict)
				return
			}
			simulation.WriteError(w, log, op, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, saved)
	}
}

func ConsumeLeftover(log *slog.Logger, svc LeftoverService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.leftovers.ConsumeLeftover"

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := svc.ConsumeLeftover(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "остаток не найден", http.StatusNotFound)
				return
			}
			log.Error("Failed to consume leftover", slog.String("op", op), slog.String("id", id), slog.String("error", err.Error()))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
