package consumption

import (
	"fmt"

	"consumo-backend/internal/storage"
)

const (
	DefaultWasteThresholdPercent = 15.0
	DefaultMaxDiscountPercent    = 30.0
)

// Advisor turns waste into a commercial signal for the salesperson.
//
// The suggested discount grows linearly from 0 at the threshold to
// MaxDiscountPercent at 100% waste:
//
//	suggested = MaxDiscountPercent * (waste - threshold) / (100 - threshold)
type Advisor struct {
	WasteThresholdPercent float64
	MaxDiscountPercent    float64
}

func DefaultAdvisor() Advisor {
	return Advisor{
		WasteThresholdPercent: DefaultWasteThresholdPercent,
		MaxDiscountPercent:    DefaultMaxDiscountPercent,
	}
}

// Advise uses the default discount ceiling with the given threshold.
func Advise(consumption, stock, wasteThresholdPercent float64) (StockAdvice, DiscountRecommendation) {
	return Advisor{
		WasteThresholdPercent: wasteThresholdPercent,
		MaxDiscountPercent:    DefaultMaxDiscountPercent,
	}.Advise(consumption, stock)
}

func (a Advisor) Advise(consumption, stock float64) (StockAdvice, DiscountRecommendation) {
	if stock <= 0 {
		return StockAdvice{
			Available:      false,
			Message:        "No hay ancho o largo de stock definido para este material",
			SourceOfSupply: SupplyNewRoll,
		}, DiscountRecommendation{Message: "Sin datos de stock"}
	}

	if consumption > stock+eps {
		return StockAdvice{
			Available:      false,
			Message:        fmt.Sprintf("Se requieren %.2f m y el stock disponible es de %.2f m", consumption, stock),
			SourceOfSupply: SupplyNewRoll,
		}, DiscountRecommendation{Message: "Stock insuficiente, no se calcula desperdicio"}
	}

	waste := (stock - consumption) / stock * 100
	if waste < 0 {
		waste = 0
	}
	waste = roundTo(waste, 2)

	advice := StockAdvice{
		Available:      true,
		Message:        fmt.Sprintf("Disponible: se usan %.2f m de %.2f m", consumption, stock),
		SourceOfSupply: SupplyNewRoll,
	}

	rec := DiscountRecommendation{
		WastePercentage: waste,
		Message:         fmt.Sprintf("Desperdicio de %.2f%% dentro del umbral de %.0f%%", waste, a.WasteThresholdPercent),
	}
	if waste > a.WasteThresholdPercent && a.WasteThresholdPercent < 100 {
		rec.Recommended = true
		rec.SuggestedPercentage = a.suggested(waste)
		rec.Message = fmt.Sprintf("Desperdicio de %.2f%% supera el umbral de %.0f%%: se sugiere ofrecer %.2f%% de descuento",
			waste, a.WasteThresholdPercent, rec.SuggestedPercentage)
	}

	return advice, rec
}

func (a Advisor) suggested(waste float64) float64 {
	excess := (waste - a.WasteThresholdPercent) / (100 - a.WasteThresholdPercent)
	if excess > 1 {
		excess = 1
	}
	return roundTo(a.MaxDiscountPercent*excess, 2)
}

// FromLeftover marks the advice as covered by a recorded remnant of which
// required meters are cut. Quantities and prices stay the same.
func (s StockAdvice) FromLeftover(l storage.Leftover, required float64) StockAdvice {
	if !s.Available {
		return s
	}
	remaining := roundTo(l.Length-required, 6)
	if remaining < 0 {
		remaining = 0
	}
	s.SourceOfSupply = SupplyLeftover
	s.LeftoverID = l.ID
	s.Remnant = &storage.Leftover{
		MaterialType: l.MaterialType,
		Description:  l.Description,
		Length:       remaining,
		Width:        l.Width,
	}
	s.Message = fmt.Sprintf("%s. Se puede cubrir con el sobrante %s (%.2f m)", s.Message, l.ID, l.Length)
	return s
}
