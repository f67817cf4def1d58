package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"consumo-backend/internal/service/consumption"
	"consumo-backend/internal/storage"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Configurations(ctx context.Context) ([]*storage.Configuration, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.Configuration), args.Error(1)
}

func (m *MockCatalog) Find(ctx context.Context, system, product string) (*storage.Configuration, error) {
	args := m.Called(ctx, system, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Configuration), args.Error(1)
}

type MockLeftovers struct {
	mock.Mock
}

func (m *MockLeftovers) ListLeftovers(ctx context.Context, materialType storage.MaterialType) ([]storage.Leftover, error) {
	args := m.Called(ctx, materialType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Leftover), args.Error(1)
}

func (m *MockLeftovers) RecordCut(ctx context.Context, usedID string, produced []storage.Leftover) error {
	args := m.Called(ctx, usedID, produced)
	return args.Error(0)
}

func (m *MockLeftovers) ConsumeLeftover(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newService(cat *MockCatalog, leftovers *MockLeftovers) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(cat, leftovers, consumption.DefaultSettings(), log)
}

// трубка с оптимизацией по барам 5.8 м
func tubeConfiguration() *storage.Configuration {
	return &storage.Configuration{
		ID:     7,
		Name:   "Roller tubo",
		System: "Roller Shade",
		Active: true,
		Materials: []storage.MaterialRule{
			{Type: storage.MaterialTube, Description: "Tubo 38", Unit: storage.UnitLinearMeter, Formula: "ancho + 0.1", UnitPrice: 2, Active: true},
		},
		Optimization: storage.Optimization{
			Enabled: true, StandardLength: 5.8, CutMargin: 0.005,
			OptimizableMaterials: []storage.OptimizableMaterial{{MaterialType: storage.MaterialTube}},
		},
	}
}

func TestTestFormula(t *testing.T) {
	s := newService(new(MockCatalog), new(MockLeftovers))
	piece := consumption.Piece{Width: 2, Height: 1.5}

	res := s.TestFormula("ancho * alto", "", piece)
	require.True(t, res.Success)
	assert.Equal(t, 3.0, *res.Result)
	assert.True(t, *res.MeetsCondition)
	assert.Empty(t, res.Error)

	res = s.TestFormula("ancho * 2", "motorizado", piece)
	require.True(t, res.Success)
	assert.Equal(t, 4.0, *res.Result)
	assert.False(t, *res.MeetsCondition)

	// condición en blanco cuenta como ausente, igual que en el cálculo
	res = s.TestFormula("ancho", "   ", piece)
	require.True(t, res.Success)
	assert.True(t, *res.MeetsCondition)
}

func TestTestFormula_Errors(t *testing.T) {
	s := newService(new(MockCatalog), new(MockLeftovers))
	piece := consumption.Piece{Width: 2, Height: 1.5}

	res := s.TestFormula("largo * 2", "", piece)
	assert.False(t, res.Success)
	assert.Nil(t, res.Result)
	assert.Contains(t, res.Error, "fórmula")

	res = s.TestFormula("ancho", "ancho >", piece)
	assert.False(t, res.Success)
	assert.Nil(t, res.MeetsCondition)
	assert.Contains(t, res.Error, "condición")

	res = s.TestFormula("ancho", "", consumption.Piece{Width: 0, Height: 1})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "width")
}

func TestSimulateConsumption(t *testing.T) {
	cat := new(MockCatalog)
	lefts := new(MockLeftovers)
	cat.On("Find", mock.Anything, "Roller Shade", "").Return(tubeConfiguration(), nil).Once()
	lefts.On("ListLeftovers", mock.Anything, storage.MaterialType("")).Return([]storage.Leftover{}, nil).Once()

	res, err := newService(cat, lefts).SimulateConsumption(context.Background(), consumption.Piece{Width: 12.4, Height: 2}, "Roller Shade")
	require.NoError(t, err)

	assert.Equal(t, "Roller Shade", res.Piece.System)
	require.Len(t, res.Lines, 1)
	assert.InDelta(t, 12.5, res.Lines[0].Quantity, 1e-9)
	assert.Equal(t, 25.0, res.Total)

	require.Len(t, res.Optimization, 1)
	assert.Equal(t, 3, res.Optimization[0].UnitsConsumed)
	assert.InDelta(t, 4.9, res.Optimization[0].Leftover, 1e-9)

	cat.AssertExpectations(t)
	lefts.AssertExpectations(t)
}

func TestSimulateConsumption_LedgerDownStillCalculates(t *testing.T) {
	cat := new(MockCatalog)
	lefts := new(MockLeftovers)
	cat.On("Find", mock.Anything, "Roller Shade", "").Return(tubeConfiguration(), nil)
	lefts.On("ListLeftovers", mock.Anything, storage.MaterialType("")).Return(nil, errors.New("disk I/O error"))

	res, err := newService(cat, lefts).SimulateConsumption(context.Background(), consumption.Piece{Width: 1, Height: 2}, "Roller Shade")
	require.NoError(t, err)
	assert.Len(t, res.Lines, 1)
}

func TestSimulateConsumption_NoConfiguration(t *testing.T) {
	cat := new(MockCatalog)
	lefts := new(MockLeftovers)
	cat.On("Find", mock.Anything, "Vertical", "").Return(nil, storage.ErrNotFound)
	lefts.On("ListLeftovers", mock.Anything, mock.Anything).Return([]storage.Leftover{}, nil).Maybe()

	_, err := newService(cat, lefts).SimulateConsumption(context.Background(), consumption.Piece{Width: 1, Height: 2}, "Vertical")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSimulateConsumption_InvalidPiece(t *testing.T) {
	cat := new(MockCatalog)
	lefts := new(MockLeftovers)

	_, err := newService(cat, lefts).SimulateConsumption(context.Background(), consumption.Piece{Width: 1, Height: -2}, "Roller Shade")

	var perr *consumption.InvalidPieceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "height", perr.Field)
	cat.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything)
}

func TestSimulateQuote(t *testing.T) {
	cat := new(MockCatalog)
	lefts := new(MockLeftovers)
	cat.On("Configurations", mock.Anything).Return([]*storage.Configuration{tubeConfiguration()}, nil).Once()
	lefts.On("ListLeftovers", mock.Anything, storage.MaterialType("")).Return([]storage.Leftover{}, nil).Once()

	pieces := []consumption.Piece{
		{Width: 1.9, Height: 2, System: "Roller Shade"},
		{Width: 1, Height: 1, System: "Vertical"},
		{Width: 0, Height: 1, System: "Roller Shade"},
		{Width: 2.9, Height: 2, System: "Roller Shade"},
	}

	res, err := newService(cat, lefts).SimulateQuote(context.Background(), pieces)
	require.NoError(t, err)
	require.Len(t, res.Items, 4)

	for i, item := range res.Items {
		assert.Equal(t, i, item.Index)
	}
	require.NotNil(t, res.Items[0].Result)
	assert.Equal(t, 4.0, res.Items[0].Result.Total)
	assert.Contains(t, res.Items[1].Error, "Vertical")
	assert.Contains(t, res.Items[2].Error, "width")
	require.NotNil(t, res.Items[3].Result)
	assert.Equal(t, 6.0, res.Items[3].Result.Total)

	assert.Equal(t, 10.0, res.Total)

	cat.AssertExpectations(t)
	lefts.AssertExpectations(t)
}

func TestRegisterLeftovers(t *testing.T) {
	cat := new(MockCatalog)
	lefts := new(MockLeftovers)
	cat.On("Find", mock.Anything, "Roller Shade", "").Return(tubeConfiguration(), nil)
	lefts.On("ListLeftovers", mock.Anything, storage.MaterialType("")).Return([]storage.Leftover{}, nil)
	lefts.On("RecordCut", mock.Anything, "", mock.MatchedBy(func(l []storage.Leftover) bool {
		return len(l) == 1 && l[0].MaterialType == storage.MaterialTube && l[0].Source == "OT-77"
	})).Return(nil).Once()

	saved, err := newService(cat, lefts).RegisterLeftovers(context.Background(), consumption.Piece{Width: 12.4, Height: 2}, "Roller Shade", "OT-77")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.InDelta(t, 4.9, saved[0].Length, 1e-9)

	lefts.AssertExpectations(t)
	lefts.AssertNotCalled(t, "ConsumeLeftover", mock.Anything, mock.Anything)
}

func TestRegisterLeftovers_CutFromRemnant(t *testing.T) {
	cat := new(MockCatalog)
	lefts := new(MockLeftovers)
	remnant := storage.Leftover{ID: "L1", MaterialType: storage.MaterialTube, Description: "Tubo 38", Length: 2.0}
	cat.On("Find", mock.Anything, "Roller Shade", "").Return(tubeConfiguration(), nil)
	lefts.On("ListLeftovers", mock.Anything, storage.MaterialType("")).Return([]storage.Leftover{remnant}, nil)
	// 1.5 m salen del sobrante de 2 m: queda 0.5 m, la barra nueva no se toca
	lefts.On("RecordCut", mock.Anything, "L1", mock.MatchedBy(func(l []storage.Leftover) bool {
		return len(l) == 1 && l[0].ID == "" && l[0].Source == "OT-78" &&
			l[0].MaterialType == storage.MaterialTube && l[0].Length > 0.5-1e-9 && l[0].Length < 0.5+1e-9
	})).Return(nil).Once()

	saved, err := newService(cat, lefts).RegisterLeftovers(context.Background(), consumption.Piece{Width: 1.4, Height: 2}, "Roller Shade", "OT-78")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.InDelta(t, 0.5, saved[0].Length, 1e-9)

	lefts.AssertExpectations(t)
}

func TestRegisterLeftovers_RemnantRestTooShort(t *testing.T) {
	cat := new(MockCatalog)
	lefts := new(MockLeftovers)
	remnant := storage.Leftover{ID: "L2", MaterialType: storage.MaterialTube, Length: 1.6}
	cat.On("Find", mock.Anything, "Roller Shade", "").Return(tubeConfiguration(), nil)
	lefts.On("ListLeftovers", mock.Anything, storage.MaterialType("")).Return([]storage.Leftover{remnant}, nil)
	lefts.On("RecordCut", mock.Anything, "L2", []storage.Leftover{}).Return(nil).Once()

	saved, err := newService(cat, lefts).RegisterLeftovers(context.Background(), consumption.Piece{Width: 1.4, Height: 2}, "Roller Shade", "")
	require.NoError(t, err)
	assert.Empty(t, saved)

	lefts.AssertExpectations(t)
}

func TestRegisterLeftovers_RemnantAlreadyTaken(t *testing.T) {
	cat := new(MockCatalog)
	lefts := new(MockLeftovers)
	remnant := storage.Leftover{ID: "L3", MaterialType: storage.MaterialTube, Length: 2.0}
	cat.On("Find", mock.Anything, "Roller Shade", "").Return(tubeConfiguration(), nil)
	lefts.On("ListLeftovers", mock.Anything, storage.MaterialType("")).Return([]storage.Leftover{remnant}, nil)
	lefts.On("RecordCut", mock.Anything, "L3", mock.Anything).Return(fmt.Errorf("storage.sqlite.RecordCut: %w", storage.ErrNotFound))

	_, err := newService(cat, lefts).RegisterLeftovers(context.Background(), consumption.Piece{Width: 1.4, Height: 2}, "Roller Shade", "")
	assert.ErrorIs(t, err, storage.ErrLeftoverTaken)
}

func TestLeftovers_FabricStrip(t *testing.T) {
	res := &consumption.Result{
		Lines: []consumption.Line{
			{MaterialType: storage.MaterialFabric, Description: "Screen", Unit: storage.UnitLinearMeter, Quantity: 2.3,
				Fabric: &consumption.FabricLayout{RollWidth: 2.5, Across: 1.8, Along: 2, UnusableWidth: 0.7}},
			{MaterialType: storage.MaterialFabric, Description: "Blackout", Unit: storage.UnitLinearMeter, Quantity: 2.3,
				Fabric: &consumption.FabricLayout{RollWidth: 2.0, Across: 1.8, Along: 2, UnusableWidth: 0.2}},
		},
	}

	got := Leftovers(res, 0.3, "")
	require.Len(t, got, 1)
	assert.Equal(t, "Screen", got[0].Description)
	assert.Equal(t, 2.3, got[0].Length)
	assert.Equal(t, 0.7, got[0].Width)
}
