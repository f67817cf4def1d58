package generate_excel

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"consumo-backend/internal/service/consumption"
)

type Simulator interface {
	SimulateConsumption(ctx context.Context, piece consumption.Piece, systemKey string) (*consumption.Result, error)
}

type GenerateExcelService struct {
	simulator Simulator
}

func NewGenerateService(simulator Simulator) *GenerateExcelService {
	return &GenerateExcelService{simulator: simulator}
}

const (
	sheetConsumption  = "Consumo"
	sheetOptimization = "Optimización"
	sheetWarnings     = "Avisos"
)

// GenerateExcel runs the quick simulation and exports it as xlsx.
func (g *GenerateExcelService) GenerateExcel(ctx context.Context, piece consumption.Piece, systemKey string) ([]byte, error) {
	const op = "service.generate_excel.GenerateExcel"

	res, err := g.simulator.SimulateConsumption(ctx, piece, systemKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	data, err := Render(res)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

func Render(res *consumption.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetConsumption); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sheetOptimization); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sheetWarnings); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	if err != nil {
		return nil, err
	}

	writeConsumption(f, res, headerStyle)
	writeOptimization(f, res, headerStyle)
	writeWarnings(f, res, headerStyle)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeConsumption(f *excelize.File, res *consumption.Result, headerStyle int) {
	sheet := sheetConsumption
	p := res.Piece

	// шапка с изделием
	info := [][2]any{
		{"Configuración", res.ConfigurationName},
		{"Sistema", res.System},
		{"Ancho (m)", p.Width},
		{"Alto (m)", p.Height},
		{"Motorizado", yesNo(p.Motorized)},
		{"Color", p.Color},
	}
	for i, kv := range info {
		f.SetCellValue(sheet, cellName(1, i+1), kv[0])
		f.SetCellValue(sheet, cellName(2, i+1), kv[1])
	}

	headerRow := len(info) + 2
	headers := []string{"Material", "Descripción", "Código", "Unidad", "Cantidad", "Precio unitario", "Total", "Rollo (m)", "Girada"}
	for i, name := range headers {
		f.SetCellValue(sheet, cellName(i+1, headerRow), name)
	}
	f.SetCellStyle(sheet, cellName(1, headerRow), cellName(len(headers), headerRow), headerStyle)

	row := headerRow + 1
	for _, line := range res.Lines {
		f.SetCellValue(sheet, cellName(1, row), string(line.MaterialType))
		f.SetCellValue(sheet, cellName(2, row), line.Description)
		f.SetCellValue(sheet, cellName(3, row), line.Code)
		f.SetCellValue(sheet, cellName(4, row), string(line.Unit))
		f.SetCellValue(sheet, cellName(5, row), line.Quantity)
		f.SetCellValue(sheet, cellName(6, row), line.UnitPrice)
		f.SetCellValue(sheet, cellName(7, row), line.LineTotal)
		if line.Fabric != nil {
			f.SetCellValue(sheet, cellName(8, row), line.Fabric.RollWidth)
			f.SetCellValue(sheet, cellName(9, row), yesNo(line.Fabric.Rotated))
		}
		row++
	}

	f.SetCellValue(sheet, cellName(6, row), "Total")
	f.SetCellValue(sheet, cellName(7, row), res.Total)
	f.SetCellStyle(sheet, cellName(6, row), cellName(7, row), headerStyle)

	row += 2
	f.SetCellValue(sheet, cellName(1, row), "Stock")
	f.SetCellValue(sheet, cellName(2, row), res.StockAdvice.Message)
	row++
	f.SetCellValue(sheet, cellName(1, row), "Descuento")
	f.SetCellValue(sheet, cellName(2, row), res.DiscountRecommendation.Message)

	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: cellName(1, headerRow+1),
	})
	f.SetColWidth(sheet, "A", "B", 22)
	f.SetColWidth(sheet, "C", "I", 14)
}

func writeOptimization(f *excelize.File, res *consumption.Result, headerStyle int) {
	sheet := sheetOptimization

	headers := []string{"Material", "Descripción", "Requerido (m)", "Largo estándar (m)", "Margen de corte (m)", "Barras", "Sobrante (m)", "Reutilizable"}
	for i, name := range headers {
		f.SetCellValue(sheet, cellName(i+1, 1), name)
	}
	f.SetCellStyle(sheet, "A1", cellName(len(headers), 1), headerStyle)

	for i, o := range res.Optimization {
		row := i + 2
		f.SetCellValue(sheet, cellName(1, row), string(o.MaterialType))
		f.SetCellValue(sheet, cellName(2, row), o.Description)
		f.SetCellValue(sheet, cellName(3, row), o.RequiredLength)
		f.SetCellValue(sheet, cellName(4, row), o.StandardLength)
		f.SetCellValue(sheet, cellName(5, row), o.CutMargin)
		f.SetCellValue(sheet, cellName(6, row), o.UnitsConsumed)
		f.SetCellValue(sheet, cellName(7, row), o.Leftover)
		f.SetCellValue(sheet, cellName(8, row), yesNo(o.LeftoverReusable))
	}
	f.SetColWidth(sheet, "A", "H", 18)
}

func writeWarnings(f *excelize.File, res *consumption.Result, headerStyle int) {
	sheet := sheetWarnings

	headers := []string{"Tipo", "Material", "Tabla", "Expresión", "Mensaje"}
	for i, name := range headers {
		f.SetCellValue(sheet, cellName(i+1, 1), name)
	}
	f.SetCellStyle(sheet, "A1", cellName(len(headers), 1), headerStyle)

	for i, w := range res.Warnings {
		row := i + 2
		f.SetCellValue(sheet, cellName(1, row), string(w.Kind))
		f.SetCellValue(sheet, cellName(2, row), string(w.MaterialType))
		f.SetCellValue(sheet, cellName(3, row), string(w.Table))
		f.SetCellValue(sheet, cellName(4, row), w.Expression)
		f.SetCellValue(sheet, cellName(5, row), w.Message)
	}
	f.SetColWidth(sheet, "A", "D", 18)
	f.SetColWidth(sheet, "E", "E", 60)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}
