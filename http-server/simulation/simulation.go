package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"consumo-backend/internal/service/consumption"
	"consumo-backend/internal/service/simulation"
	"consumo-backend/internal/storage"
)

const maxQuotePieces = 200

type Simulator interface {
	SimulateConsumption(ctx context.Context, piece consumption.Piece, systemKey string) (*consumption.Result, error)
	SimulateQuote(ctx context.Context, pieces []consumption.Piece) (*simulation.QuoteResult, error)
}

type Request struct {
	Piece  consumption.Piece `json:"piece"`
	System string            `json:"system"`
}

func SimulateConsumption(log *slog.Logger, sim Simulator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.simulation.SimulateConsumption"

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Некорректный JSON", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := sim.SimulateConsumption(ctx, req.Piece, req.System)
		if err != nil {
			WriteError(w, log, op, err)
			return
		}

		render.JSON(w, r, res)
	}
}

func SimulateQuote(log *slog.Logger, sim Simulator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.simulation.SimulateQuote"

		var req struct {
			Pieces []consumption.Piece `json:"pieces"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Некорректный JSON", http.StatusBadRequest)
			return
		}
		if len(req.Pieces) == 0 || len(req.Pieces) > maxQuotePieces {
			http.Error(w, "количество изделий должно быть от 1 до 200", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		res, err := sim.SimulateQuote(ctx, req.Pieces)
		if err != nil {
			WriteError(w, log, op, err)
			return
		}

		render.JSON(w, r, res)
	}
}

// WriteError переводит ошибки расчета в HTTP статусы.
func WriteError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	var perr *consumption.InvalidPieceError
	switch {
	case errors.As(err, &perr):
		http.Error(w, perr.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "нет активной конфигурации для системы", http.StatusNotFound)
	default:
		log.Error("Failed to simulate consumption", slog.String("op", op), slog.String("error", err.Error()))
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
