package generate_excel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"consumo-backend/http-server/simulation"
	"consumo-backend/internal/service/consumption"
)

type GenerateExcelHandler interface {
	GenerateExcel(ctx context.Context, piece consumption.Piece, systemKey string) ([]byte, error)
}

func GenerateSimulationExcel(log *slog.Logger, gen GenerateExcelHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.report.GenerateSimulationExcel"

		var req simulation.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Некорректный JSON", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		excelBytes, err := gen.GenerateExcel(ctx, req.Piece, req.System)
		if err != nil {
			simulation.WriteError(w, log, op, err)
			return
		}

		fileName := fmt.Sprintf("Consumo_%s.xlsx", time.Now().Format("2006-01-02_150405"))

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
		w.Write(excelBytes)
	}
}
