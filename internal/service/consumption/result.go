package consumption

import "consumo-backend/internal/storage"

type WarningKind string

const (
	WarningFormula          WarningKind = "formula_error"
	WarningNegativeQuantity WarningKind = "negative_quantity"
	WarningConfigurationGap WarningKind = "configuration_gap"
)

// Warning is attached to a single material or selection table; it never
// aborts the rest of the calculation.
type Warning struct {
	Kind         WarningKind            `json:"kind"`
	MaterialType storage.MaterialType   `json:"material_type,omitempty"`
	Description  string                 `json:"description,omitempty"`
	Table        storage.SelectionTable `json:"table,omitempty"`
	Expression   string                 `json:"expression,omitempty"`
	Message      string                 `json:"message"`
}

type FabricLayout struct {
	Rotated       bool    `json:"rotated"`
	RollWidth     float64 `json:"roll_width,omitempty"`
	Across        float64 `json:"across"`
	Along         float64 `json:"along"`
	UnusableWidth float64 `json:"unusable_width,omitempty"`
}

type Line struct {
	MaterialType storage.MaterialType `json:"material_type"`
	Description  string               `json:"description"`
	Unit         storage.Unit         `json:"unit"`
	Quantity     float64              `json:"quantity"`
	UnitPrice    float64              `json:"unit_price"`
	LineTotal    float64              `json:"line_total"`
	Code         string               `json:"code,omitempty"`
	Clamped      bool                 `json:"clamped,omitempty"`
	Fabric       *FabricLayout        `json:"fabric,omitempty"`
}

type CutResult struct {
	UnitsConsumed    int     `json:"units_consumed"`
	Leftover         float64 `json:"leftover"`
	LeftoverReusable bool    `json:"leftover_reusable"`
}

type MaterialOptimization struct {
	MaterialType   storage.MaterialType `json:"material_type"`
	Description    string               `json:"description"`
	RequiredLength float64              `json:"required_length"`
	StandardLength float64              `json:"standard_length"`
	CutMargin      float64              `json:"cut_margin"`
	CutResult
}

type Selection struct {
	Table       storage.SelectionTable `json:"table"`
	Code        string                 `json:"code"`
	Description string                 `json:"description"`
	Diameter    float64                `json:"diameter,omitempty"`
	Mechanism   string                 `json:"mechanism,omitempty"`
	Size        string                 `json:"size,omitempty"`
}

type Selections struct {
	Tube      *Selection `json:"tube,omitempty"`
	Mechanism *Selection `json:"mechanism,omitempty"`
	Kit       *Selection `json:"kit,omitempty"`
}

type SupplySource string

const (
	SupplyNewRoll  SupplySource = "new_roll"
	SupplyLeftover SupplySource = "leftover"
)

type StockAdvice struct {
	Available      bool         `json:"available"`
	Message        string       `json:"message"`
	SourceOfSupply SupplySource `json:"source_of_supply"`
	LeftoverID     string       `json:"leftover_id,omitempty"`
	// Remnant is what stays of the leftover after the piece is cut from it.
	Remnant *storage.Leftover `json:"remnant,omitempty"`
}

type DiscountRecommendation struct {
	Recommended         bool    `json:"recommended"`
	WastePercentage     float64 `json:"waste_percentage"`
	SuggestedPercentage float64 `json:"suggested_percentage"`
	Message             string  `json:"message"`
}

type Result struct {
	ConfigurationID        int64                  `json:"configuration_id"`
	ConfigurationName      string                 `json:"configuration_name"`
	System                 string                 `json:"system"`
	Piece                  Piece                  `json:"piece"`
	Lines                  []Line                 `json:"lines"`
	Optimization           []MaterialOptimization `json:"optimization,omitempty"`
	Selections             Selections             `json:"selections"`
	StockAdvice            StockAdvice            `json:"stock_advice"`
	DiscountRecommendation DiscountRecommendation `json:"discount_recommendation"`
	Warnings               []Warning              `json:"warnings"`
	Total                  float64                `json:"total"`
}

// AdviceBasis reports what drives the stock advice: the first fabric line
// laid on a roll, else the first optimized bar material. The unused index
// is -1.
func (r *Result) AdviceBasis() (line, optimization int) {
	for i, l := range r.Lines {
		if l.Fabric != nil && l.Fabric.RollWidth > 0 {
			return i, -1
		}
	}
	if len(r.Optimization) > 0 {
		return -1, 0
	}
	return -1, -1
}
