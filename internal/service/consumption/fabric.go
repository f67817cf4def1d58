package consumption

import (
	"fmt"
	"math"

	"consumo-backend/internal/formula"
	"consumo-backend/internal/storage"
)

type fabricOption struct {
	layout   FabricLayout
	quantity float64
	feasible bool
	cost     float64 // consumed roll area, compared between orientations
}

// layoutFabric chooses between the normal and the rotated orientation of a
// piece on the roll. Normal puts the piece width across the roll, rotated
// puts the height across it and evaluates the formula with ancho/alto
// swapped. Rotation is only considered while the piece height is within the
// rule's rotation ceiling. Ties keep the normal orientation.
func layoutFabric(rule storage.MaterialRule, expr *formula.Expression, piece Piece, normalQty float64) (float64, *FabricLayout, *Warning) {
	options := []fabricOption{
		fabricCandidate(rule, piece.Width, piece.Height, normalQty, false),
	}

	if rule.CanRotate && piece.Height <= rule.RotationCeiling()+eps {
		rotatedQty, err := expr.Number(piece.Rotated().Variables())
		if err == nil {
			options = append(options, fabricCandidate(rule, piece.Height, piece.Width, math.Max(rotatedQty, 0), true))
		}
	}

	var best *fabricOption
	for i := range options {
		o := &options[i]
		if !o.feasible {
			continue
		}
		if best == nil || o.cost < best.cost-eps {
			best = o
		}
	}

	if best == nil {
		layout := &FabricLayout{Across: piece.Width, Along: piece.Height}
		maxRoll := rule.RollWidths[len(rule.RollWidths)-1]
		needed := piece.Width
		if len(options) > 1 {
			needed = math.Min(piece.Width, piece.Height)
		}
		return normalQty, layout, &Warning{
			Kind:         WarningConfigurationGap,
			MaterialType: rule.Type,
			Description:  rule.Description,
			Message: fmt.Sprintf("Ningún ancho de rollo cubre %.2f m (máximo %.2f m); agregar un ancho de rollo a la configuración",
				needed, maxRoll),
		}
	}

	layout := best.layout
	return best.quantity, &layout, nil
}

func fabricCandidate(rule storage.MaterialRule, across, along, qty float64, rotated bool) fabricOption {
	o := fabricOption{
		layout:   FabricLayout{Rotated: rotated, Across: across, Along: along},
		quantity: qty,
		feasible: true,
		cost:     qty,
	}
	if len(rule.RollWidths) == 0 {
		return o
	}

	roll, ok := smallestCoveringRoll(rule.RollWidths, across)
	if !ok {
		o.feasible = false
		return o
	}

	o.layout.RollWidth = roll
	o.layout.UnusableWidth = roundTo(roll-across, 6)

	switch rule.Unit {
	case storage.UnitSquareMeter:
		// la franja sobrante del rollo también se cobra
		o.quantity = qty * roll / across
		o.cost = o.quantity
	default:
		o.cost = qty * roll
	}
	return o
}

// smallestCoveringRoll expects widths in ascending order.
func smallestCoveringRoll(widths []float64, required float64) (float64, bool) {
	for _, w := range widths {
		if w+eps >= required {
			return w, true
		}
	}
	return 0, false
}
