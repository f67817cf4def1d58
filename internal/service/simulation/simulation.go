package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"consumo-backend/internal/formula"
	"consumo-backend/internal/service/catalog"
	"consumo-backend/internal/service/consumption"
	"consumo-backend/internal/storage"
)

type CatalogProvider interface {
	Configurations(ctx context.Context) ([]*storage.Configuration, error)
	Find(ctx context.Context, system, product string) (*storage.Configuration, error)
}

type LeftoverStorage interface {
	ListLeftovers(ctx context.Context, materialType storage.MaterialType) ([]storage.Leftover, error)
	RecordCut(ctx context.Context, usedID string, produced []storage.Leftover) error
	ConsumeLeftover(ctx context.Context, id string) error
}

type Service struct {
	catalog     CatalogProvider
	leftovers   LeftoverStorage
	calc        *consumption.Calculator
	minReusable float64
	log         *slog.Logger
}

func NewService(cat CatalogProvider, leftovers LeftoverStorage, settings consumption.Settings, log *slog.Logger) *Service {
	return &Service{
		catalog:     cat,
		leftovers:   leftovers,
		calc:        consumption.NewCalculator(settings),
		minReusable: settings.MinReusableLeftover,
		log:         log,
	}
}

type FormulaTestResult struct {
	Success        bool     `json:"success"`
	Result         *float64 `json:"result,omitempty"`
	MeetsCondition *bool    `json:"meets_condition,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// TestFormula evaluates one rule in isolation for the admin formula tool.
// The formula is evaluated even when the condition is false so the author
// sees both values.
func (s *Service) TestFormula(expr, condition string, piece consumption.Piece) FormulaTestResult {
	if err := piece.Validate(); err != nil {
		return FormulaTestResult{Error: err.Error()}
	}
	vars := piece.Variables()

	meets := true
	if strings.TrimSpace(condition) != "" {
		ok, err := formula.EvaluateCondition(condition, vars)
		if err != nil {
			return FormulaTestResult{Error: "condición: " + formulaMessage(err)}
		}
		meets = ok
	}

	value, err := formula.EvaluateExpression(expr, vars)
	if err != nil {
		return FormulaTestResult{MeetsCondition: &meets, Error: "fórmula: " + formulaMessage(err)}
	}

	return FormulaTestResult{Success: true, Result: &value, MeetsCondition: &meets}
}

func formulaMessage(err error) string {
	var ferr *formula.Error
	if errors.As(err, &ferr) {
		return ferr.Reason()
	}
	return err.Error()
}

// SimulateConsumption is the quick simulation: configuration lookup for the
// system plus the full calculation, leftovers included.
func (s *Service) SimulateConsumption(ctx context.Context, piece consumption.Piece, systemKey string) (*consumption.Result, error) {
	const op = "service.simulation.SimulateConsumption"

	if systemKey == "" {
		systemKey = piece.System
	}
	if piece.System == "" {
		piece.System = systemKey
	}
	if err := piece.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var cfg *storage.Configuration
	var leftovers []storage.Leftover

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cfg, err = s.catalog.Find(gctx, systemKey, piece.Product)
		return err
	})
	g.Go(func() error {
		leftovers = s.loadLeftovers(gctx, op)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.calc.CalculateWithStock(piece, cfg, leftovers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Ledger failures only cost the leftover suggestion.
func (s *Service) loadLeftovers(ctx context.Context, op string) []storage.Leftover {
	leftovers, err := s.leftovers.ListLeftovers(ctx, "")
	if err != nil {
		s.log.Warn("leftovers unavailable", slog.String("op", op), slog.String("error", err.Error()))
		return nil
	}
	return leftovers
}

type QuoteItem struct {
	Index  int                 `json:"index"`
	Result *consumption.Result `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

type QuoteResult struct {
	Items []QuoteItem `json:"items"`
	Total float64     `json:"total"`
}

// SimulateQuote computes every piece of a quote. Items keep the input order
// and a failing piece does not stop the others.
func (s *Service) SimulateQuote(ctx context.Context, pieces []consumption.Piece) (*QuoteResult, error) {
	const op = "service.simulation.SimulateQuote"

	var configs []*storage.Configuration
	var leftovers []storage.Leftover

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		configs, err = s.catalog.Configurations(gctx)
		return err
	})
	g.Go(func() error {
		leftovers = s.loadLeftovers(gctx, op)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]QuoteItem, len(pieces))

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, piece := range pieces {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i] = s.quoteItem(i, piece, configs, leftovers)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Result != nil {
			total = total.Add(decimal.NewFromFloat(item.Result.Total))
		}
	}

	return &QuoteResult{Items: items, Total: total.Round(2).InexactFloat64()}, nil
}

func (s *Service) quoteItem(i int, piece consumption.Piece, configs []*storage.Configuration, leftovers []storage.Leftover) QuoteItem {
	item := QuoteItem{Index: i}

	cfg, ok := catalog.Select(configs, piece.System, piece.Product)
	if !ok {
		item.Error = fmt.Sprintf("no hay configuración activa para el sistema %q", piece.System)
		return item
	}

	res, err := s.calc.CalculateWithStock(piece, cfg, leftovers)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.Result = res
	return item
}

// RegisterLeftovers runs the simulation of a confirmed cut and records its
// reusable remnants in the ledger. When the advice sent the piece to a
// recorded remnant, that remnant is consumed in the same transaction and
// only its rest goes back to the ledger.
func (s *Service) RegisterLeftovers(ctx context.Context, piece consumption.Piece, systemKey, source string) ([]storage.Leftover, error) {
	const op = "service.simulation.RegisterLeftovers"

	res, err := s.SimulateConsumption(ctx, piece, systemKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	leftovers := Leftovers(res, s.minReusable, source)

	var usedID string
	if res.StockAdvice.SourceOfSupply == consumption.SupplyLeftover {
		usedID = res.StockAdvice.LeftoverID
	}

	if len(leftovers) > 0 || usedID != "" {
		if err := s.leftovers.RecordCut(ctx, usedID, leftovers); err != nil {
			if usedID != "" && errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%s: %s: %w", op, usedID, storage.ErrLeftoverTaken)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	s.log.Info("leftovers registered",
		slog.String("op", op),
		slog.String("source", source),
		slog.String("used", usedID),
		slog.Int("count", len(leftovers)),
	)
	return leftovers, nil
}

// Leftovers lists the reusable remnants a calculation produces: bar
// leftovers from the optimizer and the unused strip of a fabric roll. The
// material the advice sends to a recorded remnant produces only the rest of
// that remnant.
func Leftovers(res *consumption.Result, minReusable float64, source string) []storage.Leftover {
	leftovers := []storage.Leftover{}

	skipLine, skipOpt := -1, -1
	if rest := res.StockAdvice.Remnant; res.StockAdvice.SourceOfSupply == consumption.SupplyLeftover && rest != nil {
		skipLine, skipOpt = res.AdviceBasis()
		if rest.Length > 0 && rest.Length >= minReusable {
			l := *rest
			l.Source = source
			leftovers = append(leftovers, l)
		}
	}

	for i, o := range res.Optimization {
		if i == skipOpt || !o.LeftoverReusable {
			continue
		}
		leftovers = append(leftovers, storage.Leftover{
			MaterialType: o.MaterialType,
			Description:  o.Description,
			Length:       o.Leftover,
			Source:       source,
		})
	}

	for i, line := range res.Lines {
		f := line.Fabric
		if i == skipLine || f == nil || f.RollWidth == 0 || f.UnusableWidth < minReusable {
			continue
		}
		length := f.Along
		if line.Unit == storage.UnitLinearMeter {
			length = line.Quantity
		}
		leftovers = append(leftovers, storage.Leftover{
			MaterialType: line.MaterialType,
			Description:  line.Description,
			Length:       length,
			Width:        f.UnusableWidth,
			Source:       source,
		})
	}

	return leftovers
}

func (s *Service) ListLeftovers(ctx context.Context, materialType storage.MaterialType) ([]storage.Leftover, error) {
	const op = "service.simulation.ListLeftovers"

	leftovers, err := s.leftovers.ListLeftovers(ctx, materialType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if leftovers == nil {
		leftovers = []storage.Leftover{}
	}
	return leftovers, nil
}

func (s *Service) ConsumeLeftover(ctx context.Context, id string) error {
	const op = "service.simulation.ConsumeLeftover"

	if err := s.leftovers.ConsumeLeftover(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
