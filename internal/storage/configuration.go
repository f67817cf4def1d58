package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConfigurationExists = errors.New("configuration already exists")
	ErrLeftoverTaken       = errors.New("leftover already consumed")
)

type MaterialType string

const (
	MaterialFabric        MaterialType = "fabric"
	MaterialTube          MaterialType = "tube"
	MaterialHousing       MaterialType = "housing"
	MaterialRollerBar     MaterialType = "roller_bar"
	MaterialCounterweight MaterialType = "counterweight"
	MaterialBrackets      MaterialType = "brackets"
	MaterialMechanism     MaterialType = "mechanism"
	MaterialMotor         MaterialType = "motor"
	MaterialChain         MaterialType = "chain"
	MaterialCable         MaterialType = "cable"
	MaterialCaps          MaterialType = "caps"
	MaterialInserts       MaterialType = "inserts"
	MaterialTape          MaterialType = "tape"
	MaterialGallery       MaterialType = "gallery"
	MaterialHardware      MaterialType = "hardware"
	MaterialAccessories   MaterialType = "accessories"
	MaterialKit           MaterialType = "kit"
)

var materialTypes = map[MaterialType]bool{
	MaterialFabric: true, MaterialTube: true, MaterialHousing: true, MaterialRollerBar: true,
	MaterialCounterweight: true, MaterialBrackets: true, MaterialMechanism: true, MaterialMotor: true,
	MaterialChain: true, MaterialCable: true, MaterialCaps: true, MaterialInserts: true,
	MaterialTape: true, MaterialGallery: true, MaterialHardware: true, MaterialAccessories: true,
	MaterialKit: true,
}

func (t MaterialType) Valid() bool { return materialTypes[t] }

type Unit string

const (
	UnitLinearMeter Unit = "linear_meter"
	UnitSquareMeter Unit = "square_meter"
	UnitPiece       Unit = "piece"
	UnitKit         Unit = "kit"
	UnitSet         Unit = "set"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitLinearMeter, UnitSquareMeter, UnitPiece, UnitKit, UnitSet:
		return true
	}
	return false
}

// Countable units are bought whole: half a bracket cannot be ordered.
func (u Unit) Countable() bool {
	return u == UnitPiece || u == UnitKit || u == UnitSet
}

// MaxRotationHeight is the business ceiling for rotating fabric on the roll.
// Configurations may lower it, never raise it.
const MaxRotationHeight = 2.80

type MaterialRule struct {
	Type        MaterialType `json:"type"`
	Description string       `json:"description"`
	Unit        Unit         `json:"unit"`
	Formula     string       `json:"formula"`
	Condition   string       `json:"condition,omitempty"`
	UnitPrice   float64      `json:"unit_price"`
	Active      bool         `json:"active"`

	// ткань
	CanRotate         bool      `json:"can_rotate,omitempty"`
	MaxRotationHeight float64   `json:"max_rotation_height,omitempty"`
	AllowsHeatSealing bool      `json:"allows_heat_sealing,omitempty"`
	RollWidths        []float64 `json:"roll_widths,omitempty"`
}

// RotationCeiling returns the effective height limit for rotation.
func (m MaterialRule) RotationCeiling() float64 {
	if m.MaxRotationHeight > 0 && m.MaxRotationHeight < MaxRotationHeight {
		return m.MaxRotationHeight
	}
	return MaxRotationHeight
}

type SelectionTable string

const (
	TableTubes      SelectionTable = "tubes"
	TableMechanisms SelectionTable = "mechanisms"
	TableKits       SelectionTable = "kits"
)

// SelectionRule picks a catalog part. An empty condition always matches.
type SelectionRule struct {
	Condition   string  `json:"condition,omitempty"`
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Diameter    float64 `json:"diameter,omitempty"` // трубы, мм
	Mechanism   string  `json:"mechanism,omitempty"`
	Size        string  `json:"size,omitempty"` // киты
}

type SelectionRules struct {
	Tubes      []SelectionRule `json:"tubes"`
	Mechanisms []SelectionRule `json:"mechanisms"`
	Kits       []SelectionRule `json:"kits"`
}

func (s SelectionRules) Table(name SelectionTable) []SelectionRule {
	switch name {
	case TableTubes:
		return s.Tubes
	case TableMechanisms:
		return s.Mechanisms
	case TableKits:
		return s.Kits
	}
	return nil
}

type OptimizableMaterial struct {
	MaterialType   MaterialType `json:"material_type"`
	StandardLength float64      `json:"standard_length,omitempty"`
	// nil keeps the configuration default; 0 is a valid override.
	CutMargin *float64 `json:"cut_margin,omitempty"`
}

type Optimization struct {
	Enabled              bool                  `json:"enabled"`
	StandardLength       float64               `json:"standard_length"`
	CutMargin            float64               `json:"cut_margin"`
	OptimizableMaterials []OptimizableMaterial `json:"optimizable_materials"`
}

// Lookup returns the cut parameters for a material type, falling back to
// the configuration-level defaults.
func (o Optimization) Lookup(t MaterialType) (standardLength, cutMargin float64, ok bool) {
	if !o.Enabled {
		return 0, 0, false
	}
	for _, m := range o.OptimizableMaterials {
		if m.MaterialType != t {
			continue
		}
		standardLength, cutMargin = o.StandardLength, o.CutMargin
		if m.StandardLength > 0 {
			standardLength = m.StandardLength
		}
		if m.CutMargin != nil {
			cutMargin = *m.CutMargin
		}
		return standardLength, cutMargin, true
	}
	return 0, 0, false
}

type Color struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	HexColor string `json:"hex_color"`
}

type Configuration struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Product        string         `json:"product,omitempty"`
	System         string         `json:"system"`
	Active         bool           `json:"active"`
	Materials      []MaterialRule `json:"materials"`
	SelectionRules SelectionRules `json:"selection_rules"`
	Optimization   Optimization   `json:"optimization"`
	Colors         []Color        `json:"colors"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
