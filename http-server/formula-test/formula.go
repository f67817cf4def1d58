package formulatest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"consumo-backend/internal/service/consumption"
	"consumo-backend/internal/service/simulation"
)

type FormulaTester interface {
	TestFormula(expr, condition string, piece consumption.Piece) simulation.FormulaTestResult
}

type Request struct {
	Formula   string            `json:"formula"`
	Condition string            `json:"condition"`
	Piece     consumption.Piece `json:"piece"`
}

// TestFormula всегда отвечает 200: ошибка формулы показывается в админке
// рядом с полем, а не как сбой запроса.
func TestFormula(log *slog.Logger, tester FormulaTester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.formula.TestFormula"

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Некорректный JSON", http.StatusBadRequest)
			return
		}

		res := tester.TestFormula(req.Formula, req.Condition, req.Piece)
		if !res.Success {
			log.Debug("formula test failed", slog.String("op", op), slog.String("formula", req.Formula), slog.String("error", res.Error))
		}

		render.JSON(w, r, res)
	}
}
