package consumption

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"consumo-backend/internal/formula"
	"consumo-backend/internal/storage"
)

const DefaultMinReusableLeftover = 0.30

var ErrNoConfiguration = errors.New("no configuration")

type Settings struct {
	WasteThresholdPercent float64
	MaxDiscountPercent    float64
	MinReusableLeftover   float64
}

func DefaultSettings() Settings {
	return Settings{
		WasteThresholdPercent: DefaultWasteThresholdPercent,
		MaxDiscountPercent:    DefaultMaxDiscountPercent,
		MinReusableLeftover:   DefaultMinReusableLeftover,
	}
}

// Calculator holds only settings; Calculate is safe for concurrent use.
type Calculator struct {
	settings Settings
	advisor  Advisor
}

func NewCalculator(s Settings) *Calculator {
	return &Calculator{
		settings: s,
		advisor: Advisor{
			WasteThresholdPercent: s.WasteThresholdPercent,
			MaxDiscountPercent:    s.MaxDiscountPercent,
		},
	}
}

func (c *Calculator) Calculate(piece Piece, cfg *storage.Configuration) (*Result, error) {
	return c.CalculateWithStock(piece, cfg, nil)
}

// CalculateWithStock is Calculate plus the recorded reusable leftovers, used
// to tell the salesperson when a remnant can cover the piece.
func (c *Calculator) CalculateWithStock(piece Piece, cfg *storage.Configuration, leftovers []storage.Leftover) (*Result, error) {
	const op = "service.consumption.Calculate"

	if err := piece.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoConfiguration)
	}

	vars := piece.Variables()
	res := &Result{
		ConfigurationID:   cfg.ID,
		ConfigurationName: cfg.Name,
		System:            cfg.System,
		Piece:             piece,
		Lines:             []Line{},
		Warnings:          []Warning{},
	}

	c.applySelections(res, cfg.SelectionRules, vars)

	total := decimal.Zero
	for _, rule := range cfg.Materials {
		if !rule.Active {
			continue
		}

		line, warnings, ok := c.evaluateRule(rule, piece, vars)
		res.Warnings = append(res.Warnings, warnings...)
		if !ok {
			continue
		}

		line.Code = selectionCode(res.Selections, rule.Type)
		res.Lines = append(res.Lines, line)
		total = total.Add(decimal.NewFromFloat(line.LineTotal))
	}
	res.Total = total.InexactFloat64()

	c.optimize(res, cfg.Optimization)
	c.advise(res, leftovers)

	return res, nil
}

// evaluateRule returns ok=false when the rule does not produce a line:
// its condition is false or one of its expressions failed.
func (c *Calculator) evaluateRule(rule storage.MaterialRule, piece Piece, vars formula.Vars) (Line, []Warning, bool) {
	var warnings []Warning
	fail := func(expr string, err error) (Line, []Warning, bool) {
		warnings = append(warnings, Warning{
			Kind:         WarningFormula,
			MaterialType: rule.Type,
			Description:  rule.Description,
			Expression:   expr,
			Message:      formulaReason(err),
		})
		return Line{}, warnings, false
	}

	if strings.TrimSpace(rule.Condition) != "" {
		ok, err := formula.EvaluateCondition(rule.Condition, vars)
		if err != nil {
			return fail(rule.Condition, err)
		}
		if !ok {
			return Line{}, nil, false
		}
	}

	expr, err := formula.Parse(rule.Formula)
	if err != nil {
		return fail(rule.Formula, err)
	}
	qty, err := expr.Number(vars)
	if err != nil {
		return fail(rule.Formula, err)
	}

	line := Line{
		MaterialType: rule.Type,
		Description:  rule.Description,
		Unit:         rule.Unit,
		UnitPrice:    rule.UnitPrice,
	}

	if qty < 0 {
		warnings = append(warnings, Warning{
			Kind:         WarningNegativeQuantity,
			MaterialType: rule.Type,
			Description:  rule.Description,
			Expression:   rule.Formula,
			Message:      fmt.Sprintf("La fórmula dio %v; se usa 0", qty),
		})
		qty = 0
		line.Clamped = true
	}

	if rule.Type == storage.MaterialFabric && (rule.CanRotate || len(rule.RollWidths) > 0) {
		var gap *Warning
		qty, line.Fabric, gap = layoutFabric(rule, expr, piece, qty)
		if gap != nil {
			warnings = append(warnings, *gap)
		}
	}

	line.Quantity = roundQuantity(qty, rule.Unit)
	line.LineTotal = lineTotal(line.Quantity, rule.UnitPrice)

	return line, warnings, true
}

func roundQuantity(qty float64, unit storage.Unit) float64 {
	if unit.Countable() {
		qty = math.Ceil(qty - eps)
	}
	if qty <= 0 {
		return 0
	}
	return qty
}

func lineTotal(qty, unitPrice float64) float64 {
	total := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(unitPrice)).Round(2)
	if total.IsNegative() {
		return 0
	}
	return total.InexactFloat64()
}

func (c *Calculator) applySelections(res *Result, rules storage.SelectionRules, vars formula.Vars) {
	var w []Warning

	res.Selections.Tube, w = selectPart(storage.TableTubes, rules.Tubes, vars)
	res.Warnings = append(res.Warnings, w...)

	res.Selections.Mechanism, w = selectPart(storage.TableMechanisms, rules.Mechanisms, vars)
	res.Warnings = append(res.Warnings, w...)

	res.Selections.Kit, w = selectPart(storage.TableKits, rules.Kits, vars)
	res.Warnings = append(res.Warnings, w...)
}

func selectionCode(s Selections, t storage.MaterialType) string {
	var sel *Selection
	switch t {
	case storage.MaterialTube:
		sel = s.Tube
	case storage.MaterialMechanism:
		sel = s.Mechanism
	case storage.MaterialKit:
		sel = s.Kit
	}
	if sel == nil {
		return ""
	}
	return sel.Code
}

func (c *Calculator) optimize(res *Result, opt storage.Optimization) {
	if !opt.Enabled {
		return
	}

	for _, line := range res.Lines {
		std, margin, ok := opt.Lookup(line.MaterialType)
		if !ok {
			continue
		}
		if line.Unit != storage.UnitLinearMeter {
			res.Warnings = append(res.Warnings, Warning{
				Kind:         WarningConfigurationGap,
				MaterialType: line.MaterialType,
				Description:  line.Description,
				Message:      "Material optimizable sin unidad de metro lineal; no se calcula el corte",
			})
			continue
		}

		cut, err := OptimizeCut(line.Quantity, std, margin, c.settings.MinReusableLeftover)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{
				Kind:         WarningConfigurationGap,
				MaterialType: line.MaterialType,
				Description:  line.Description,
				Message:      err.Error(),
			})
			continue
		}

		res.Optimization = append(res.Optimization, MaterialOptimization{
			MaterialType:   line.MaterialType,
			Description:    line.Description,
			RequiredLength: line.Quantity,
			StandardLength: std,
			CutMargin:      margin,
			CutResult:      cut,
		})
	}
}

// advise drives the advisor from the first fabric line laid on a roll, else
// from the first optimized bar material.
func (c *Calculator) advise(res *Result, leftovers []storage.Leftover) {
	line, opt := res.AdviceBasis()
	switch {
	case line >= 0:
		l := res.Lines[line]
		res.StockAdvice, res.DiscountRecommendation = c.advisor.Advise(l.Fabric.Across, l.Fabric.RollWidth)

		along := l.Fabric.Along
		if l.Unit == storage.UnitLinearMeter {
			along = l.Quantity
		}
		if rem, ok := findLeftover(leftovers, storage.MaterialFabric, along, l.Fabric.Across); ok {
			res.StockAdvice = res.StockAdvice.FromLeftover(rem, along)
		}

	case opt >= 0:
		o := res.Optimization[opt]
		res.StockAdvice, res.DiscountRecommendation = c.advisor.Advise(o.RequiredLength, float64(o.UnitsConsumed)*o.StandardLength)
		if rem, ok := findLeftover(leftovers, o.MaterialType, o.RequiredLength, 0); ok {
			res.StockAdvice = res.StockAdvice.FromLeftover(rem, o.RequiredLength)
		}

	default:
		res.StockAdvice = StockAdvice{
			Available:      true,
			Message:        "Sin materiales con restricción de rollo o barra",
			SourceOfSupply: SupplyNewRoll,
		}
		res.DiscountRecommendation = DiscountRecommendation{Message: "Sin desperdicio calculable"}
	}
}

// findLeftover picks the shortest remnant that covers the need; ties break
// on ID so the answer does not depend on storage order.
func findLeftover(leftovers []storage.Leftover, t storage.MaterialType, length, width float64) (storage.Leftover, bool) {
	var fits []storage.Leftover
	for _, l := range leftovers {
		if l.MaterialType != t || l.Length+eps < length {
			continue
		}
		if width > 0 && l.Width+eps < width {
			continue
		}
		fits = append(fits, l)
	}
	if len(fits) == 0 {
		return storage.Leftover{}, false
	}

	sort.Slice(fits, func(i, j int) bool {
		if fits[i].Length != fits[j].Length {
			return fits[i].Length < fits[j].Length
		}
		return fits[i].ID < fits[j].ID
	})
	return fits[0], true
}
