package consumption

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consumo-backend/internal/formula"
	"consumo-backend/internal/storage"
)

func evalRaw(expr string, p Piece) (float64, error) {
	return formula.EvaluateExpression(expr, p.Variables())
}

func rollerConfiguration() *storage.Configuration {
	return &storage.Configuration{
		ID:     7,
		Name:   "Roller Screen",
		System: "Roller Shade",
		Active: true,
		Materials: []storage.MaterialRule{
			{Type: storage.MaterialFabric, Description: "Screen 5%", Unit: storage.UnitSquareMeter, Formula: "ancho * alto", UnitPrice: 10, Active: true},
			{Type: storage.MaterialTube, Description: "Tubo 38mm", Unit: storage.UnitLinearMeter, Formula: "ancho - 0.03", UnitPrice: 4, Active: true},
			{Type: storage.MaterialBrackets, Description: "Soportes", Unit: storage.UnitSet, Formula: "1", UnitPrice: 6.5, Active: true},
			{Type: storage.MaterialMotor, Description: "Motor 6Nm", Unit: storage.UnitPiece, Formula: "1", Condition: "motorizado === true", UnitPrice: 180, Active: true},
			{Type: storage.MaterialChain, Description: "Cadena", Unit: storage.UnitLinearMeter, Formula: "alto * 2", Condition: "!motorizado", UnitPrice: 0.8, Active: true},
			{Type: storage.MaterialCaps, Description: "Tapas (inactiva)", Unit: storage.UnitPiece, Formula: "2", UnitPrice: 1, Active: false},
		},
		SelectionRules: storage.SelectionRules{
			Tubes: []storage.SelectionRule{
				{Condition: "ancho <= 2", Code: "T38", Description: "Tubo 38", Diameter: 38},
				{Condition: "ancho <= 3.5", Code: "T45", Description: "Tubo 45", Diameter: 45},
			},
			Mechanisms: []storage.SelectionRule{
				{Condition: "motorizado", Code: "MOT", Mechanism: "motor"},
				{Code: "CLU32", Mechanism: "clutch"},
			},
		},
		Optimization: storage.Optimization{
			Enabled: true, StandardLength: 5.8, CutMargin: 0.005,
			OptimizableMaterials: []storage.OptimizableMaterial{{MaterialType: storage.MaterialTube}},
		},
	}
}

func lineByType(res *Result, t storage.MaterialType) (Line, bool) {
	for _, l := range res.Lines {
		if l.MaterialType == t {
			return l, true
		}
	}
	return Line{}, false
}

func TestCalculate_RollerShade(t *testing.T) {
	calc := NewCalculator(DefaultSettings())

	res, err := calc.Calculate(Piece{Width: 3.0, Height: 2.5, System: "Roller Shade"}, rollerConfiguration())
	require.NoError(t, err)

	require.Len(t, res.Lines, 4)
	assert.Equal(t, storage.MaterialFabric, res.Lines[0].MaterialType)
	assert.Equal(t, storage.MaterialTube, res.Lines[1].MaterialType)
	assert.Equal(t, storage.MaterialBrackets, res.Lines[2].MaterialType)
	assert.Equal(t, storage.MaterialChain, res.Lines[3].MaterialType)

	fabric := res.Lines[0]
	assert.InDelta(t, 7.5, fabric.Quantity, 1e-9)
	assert.Equal(t, 75.0, fabric.LineTotal)

	tube := res.Lines[1]
	assert.InDelta(t, 2.97, tube.Quantity, 1e-9)
	assert.Equal(t, 11.88, tube.LineTotal)
	assert.Equal(t, "T45", tube.Code)

	assert.Equal(t, 1.0, res.Lines[2].Quantity)
	assert.Equal(t, 5.0, res.Lines[3].Quantity)
	assert.Equal(t, 4.0, res.Lines[3].LineTotal)

	assert.InDelta(t, 97.38, res.Total, 1e-9)

	require.NotNil(t, res.Selections.Tube)
	assert.Equal(t, 45.0, res.Selections.Tube.Diameter)
	require.NotNil(t, res.Selections.Mechanism)
	assert.Equal(t, "CLU32", res.Selections.Mechanism.Code)
	assert.Nil(t, res.Selections.Kit)

	require.Len(t, res.Optimization, 1)
	assert.Equal(t, 1, res.Optimization[0].UnitsConsumed)
	assert.InDelta(t, 2.83, res.Optimization[0].Leftover, 1e-9)
	assert.True(t, res.Optimization[0].LeftoverReusable)

	assert.True(t, res.StockAdvice.Available)
	assert.Equal(t, SupplyNewRoll, res.StockAdvice.SourceOfSupply)
	assert.Empty(t, res.Warnings)
}

func TestCalculate_Scenario1_AreaUnitKeepsPrecision(t *testing.T) {
	cfg := &storage.Configuration{Name: "s1", System: "Roller Shade", Materials: []storage.MaterialRule{
		{Type: storage.MaterialFabric, Description: "Tela", Unit: storage.UnitSquareMeter, Formula: "ancho * 1.1", UnitPrice: 1, Active: true},
	}}

	res, err := NewCalculator(DefaultSettings()).Calculate(Piece{Width: 3.0, Height: 2.5}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.InDelta(t, 3.3, res.Lines[0].Quantity, 1e-9)
}

func TestCalculate_Scenario2_PieceRoundsUp(t *testing.T) {
	cfg := &storage.Configuration{Name: "s2", System: "Roller Shade", Materials: []storage.MaterialRule{
		{Type: storage.MaterialBrackets, Description: "Soportes", Unit: storage.UnitPiece, Formula: "Math.ceil(ancho / 1.5)", UnitPrice: 2, Active: true},
		{Type: storage.MaterialInserts, Description: "Insertos", Unit: storage.UnitPiece, Formula: "ancho / 1.4", UnitPrice: 1, Active: true},
	}}

	res, err := NewCalculator(DefaultSettings()).Calculate(Piece{Width: 3.0, Height: 1}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, 2.0, res.Lines[0].Quantity)
	assert.Equal(t, 3.0, res.Lines[1].Quantity)
}

func TestCalculate_Scenario3_ConditionExcludes(t *testing.T) {
	res, err := NewCalculator(DefaultSettings()).Calculate(Piece{Width: 3.0, Height: 2.5, Motorized: false}, rollerConfiguration())
	require.NoError(t, err)

	_, found := lineByType(res, storage.MaterialMotor)
	assert.False(t, found)

	res, err = NewCalculator(DefaultSettings()).Calculate(Piece{Width: 3.0, Height: 2.5, Motorized: true}, rollerConfiguration())
	require.NoError(t, err)

	motor, found := lineByType(res, storage.MaterialMotor)
	assert.True(t, found)
	assert.Equal(t, 1.0, motor.Quantity)
	_, found = lineByType(res, storage.MaterialChain)
	assert.False(t, found)
	assert.Equal(t, "MOT", res.Selections.Mechanism.Code)
}

func TestCalculate_Scenario6_UndeclaredVariable(t *testing.T) {
	cfg := rollerConfiguration()
	cfg.Materials = append([]storage.MaterialRule{
		{Type: storage.MaterialCable, Description: "Cable", Unit: storage.UnitLinearMeter, Formula: "largo * 2", UnitPrice: 1, Active: true},
	}, cfg.Materials...)

	res, err := NewCalculator(DefaultSettings()).Calculate(Piece{Width: 3.0, Height: 2.5}, cfg)
	require.NoError(t, err)

	_, found := lineByType(res, storage.MaterialCable)
	assert.False(t, found)
	assert.Len(t, res.Lines, 4)

	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, WarningFormula, w.Kind)
	assert.Equal(t, storage.MaterialCable, w.MaterialType)
	assert.Equal(t, "largo * 2", w.Expression)
	assert.Contains(t, w.Message, "largo")
}

func TestCalculate_BrokenConditionIsReported(t *testing.T) {
	cfg := &storage.Configuration{Name: "c", System: "s", Materials: []storage.MaterialRule{
		{Type: storage.MaterialMotor, Description: "Motor", Unit: storage.UnitPiece, Formula: "1", Condition: "motorizado ===", Active: true},
		{Type: storage.MaterialCaps, Description: "Tapas", Unit: storage.UnitPiece, Formula: "2", Active: true},
	}}

	res, err := NewCalculator(DefaultSettings()).Calculate(Piece{Width: 1, Height: 1}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, storage.MaterialCaps, res.Lines[0].MaterialType)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "motorizado ===", res.Warnings[0].Expression)
}

func TestCalculate_NegativeQuantityClamped(t *testing.T) {
	cfg := &storage.Configuration{Name: "c", System: "s", Materials: []storage.MaterialRule{
		{Type: storage.MaterialTape, Description: "Cinta", Unit: storage.UnitLinearMeter, Formula: "ancho - 5", UnitPrice: 3, Active: true},
	}}

	res, err := NewCalculator(DefaultSettings()).Calculate(Piece{Width: 2, Height: 1}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, 0.0, res.Lines[0].Quantity)
	assert.Equal(t, 0.0, res.Lines[0].LineTotal)
	assert.True(t, res.Lines[0].Clamped)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarningNegativeQuantity, res.Warnings[0].Kind)
}

func TestCalculate_HugeLengthIsConfigurationGap(t *testing.T) {
	cfg := rollerConfiguration()
	cfg.Materials = []storage.MaterialRule{
		{Type: storage.MaterialTube, Description: "Tubo 38mm", Unit: storage.UnitLinearMeter, Formula: "ancho * 10000000000000000000000", UnitPrice: 4, Active: true},
	}
	cfg.SelectionRules = storage.SelectionRules{}

	res, err := NewCalculator(DefaultSettings()).Calculate(Piece{Width: 1, Height: 1}, cfg)
	require.NoError(t, err)

	require.Len(t, res.Lines, 1)
	assert.Empty(t, res.Optimization)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarningConfigurationGap, res.Warnings[0].Kind)
	assert.Equal(t, storage.MaterialTube, res.Warnings[0].MaterialType)
}

func TestCalculate_InvalidPiece(t *testing.T) {
	calc := NewCalculator(DefaultSettings())

	for _, p := range []Piece{
		{Width: 0, Height: 1},
		{Width: 1, Height: -2},
		{Width: math.NaN(), Height: 1},
		{Width: 1, Height: math.Inf(1)},
	} {
		res, err := calc.Calculate(p, rollerConfiguration())
		assert.Nil(t, res)

		var perr *InvalidPieceError
		assert.True(t, errors.As(err, &perr), "piece %+v", p)
	}
}

func TestCalculate_NilConfiguration(t *testing.T) {
	_, err := NewCalculator(DefaultSettings()).Calculate(Piece{Width: 1, Height: 1}, nil)
	assert.ErrorIs(t, err, ErrNoConfiguration)
}

func TestCalculate_SelectionGap(t *testing.T) {
	res, err := NewCalculator(DefaultSettings()).Calculate(Piece{Width: 4.2, Height: 2}, rollerConfiguration())
	require.NoError(t, err)

	assert.Nil(t, res.Selections.Tube)
	tube, found := lineByType(res, storage.MaterialTube)
	require.True(t, found)
	assert.Empty(t, tube.Code)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarningConfigurationGap, res.Warnings[0].Kind)
	assert.Equal(t, storage.TableTubes, res.Warnings[0].Table)
}

func TestCalculate_Deterministic(t *testing.T) {
	calc := NewCalculator(DefaultSettings())
	piece := Piece{Width: 2.37, Height: 1.91, Motorized: true, Gallery: "doble"}
	leftovers := []storage.Leftover{
		{ID: "b", MaterialType: storage.MaterialTube, Length: 3},
		{ID: "a", MaterialType: storage.MaterialTube, Length: 3},
	}

	first, err := calc.CalculateWithStock(piece, rollerConfiguration(), leftovers)
	require.NoError(t, err)
	want, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		res, err := calc.CalculateWithStock(piece, rollerConfiguration(), leftovers)
		require.NoError(t, err)
		got, err := json.Marshal(res)
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got))
	}
	assert.Equal(t, "a", first.StockAdvice.LeftoverID)
}

func TestCalculate_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	formulas := []string{"ancho * alto", "ancho - 2", "Math.ceil(ancho / 0.7)", "alto * 1.15 - ancho", "area / 3", "motorizado ? 2 : -1"}
	units := []storage.Unit{storage.UnitLinearMeter, storage.UnitSquareMeter, storage.UnitPiece, storage.UnitKit, storage.UnitSet}
	calc := NewCalculator(DefaultSettings())

	for i := 0; i < 200; i++ {
		piece := Piece{Width: 0.2 + rng.Float64()*4, Height: 0.2 + rng.Float64()*4, Motorized: rng.Intn(2) == 0}

		var rules []storage.MaterialRule
		for j := 0; j < 4; j++ {
			rules = append(rules, storage.MaterialRule{
				Type:        storage.MaterialHardware,
				Description: "h",
				Unit:        units[rng.Intn(len(units))],
				Formula:     formulas[rng.Intn(len(formulas))],
				UnitPrice:   rng.Float64() * 50,
				Active:      true,
			})
		}
		cfg := &storage.Configuration{Name: "p", System: "p", Materials: rules}

		res, err := calc.Calculate(piece, cfg)
		require.NoError(t, err)
		require.Len(t, res.Lines, len(rules))

		for j, line := range res.Lines {
			assert.GreaterOrEqual(t, line.Quantity, 0.0)
			assert.GreaterOrEqual(t, line.LineTotal, 0.0)

			raw, _ := evalRaw(rules[j].Formula, piece)
			raw = math.Max(raw, 0)
			if line.Unit.Countable() {
				assert.Equal(t, math.Trunc(line.Quantity), line.Quantity)
				assert.GreaterOrEqual(t, line.Quantity+1e-9, raw)
			} else {
				assert.InDelta(t, raw, line.Quantity, 1e-9)
			}
		}
	}
}
