package storage

import (
	"fmt"
	"regexp"
	"strings"

	"consumo-backend/internal/formula"
)

// Имена переменных изделия, доступные в формулах и условиях.
const (
	VarWidth     = "ancho"
	VarHeight    = "alto"
	VarArea      = "area"
	VarMotorized = "motorizado"
	VarGallery   = "galeria"
	VarSystem    = "sistema"
	VarColor     = "color"
	VarProduct   = "producto"
)

var PieceVariables = map[string]bool{
	VarWidth: true, VarHeight: true, VarArea: true, VarMotorized: true,
	VarGallery: true, VarSystem: true, VarColor: true, VarProduct: true,
}

type ValidationError struct {
	Problems []string `json:"problems"`
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Validate checks a configuration before it is saved. Every problem is
// reported, not only the first one.
func (c *Configuration) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Name) == "" {
		add("name is required")
	}
	if strings.TrimSpace(c.System) == "" {
		add("system is required")
	}

	for i, m := range c.Materials {
		where := fmt.Sprintf("materials[%d] (%s)", i, m.Description)
		if !m.Type.Valid() {
			add("%s: unknown material type %q", where, m.Type)
		}
		if !m.Unit.Valid() {
			add("%s: unknown unit %q", where, m.Unit)
		}
		if m.UnitPrice < 0 {
			add("%s: unit price must not be negative", where)
		}
		if strings.TrimSpace(m.Formula) == "" {
			add("%s: formula is required", where)
		} else if err := checkExpression(m.Formula); err != nil {
			add("%s: formula: %s", where, reason(err))
		}
		if strings.TrimSpace(m.Condition) != "" {
			if err := checkExpression(m.Condition); err != nil {
				add("%s: condition: %s", where, reason(err))
			}
		}
		if m.MaxRotationHeight < 0 || m.MaxRotationHeight > MaxRotationHeight {
			add("%s: max rotation height must be between 0 and %.2f", where, MaxRotationHeight)
		}
		if len(m.RollWidths) > 0 && m.Type != MaterialFabric {
			add("%s: roll widths only apply to fabric", where)
		}
		for j, w := range m.RollWidths {
			if w <= 0 {
				add("%s: roll width %v must be positive", where, w)
			}
			if j > 0 && w <= m.RollWidths[j-1] {
				add("%s: roll widths must be strictly ascending", where)
				break
			}
		}
	}

	for _, table := range []SelectionTable{TableTubes, TableMechanisms, TableKits} {
		for i, r := range c.SelectionRules.Table(table) {
			where := fmt.Sprintf("selection_rules.%s[%d]", table, i)
			if strings.TrimSpace(r.Code) == "" {
				add("%s: code is required", where)
			}
			if strings.TrimSpace(r.Condition) != "" {
				if err := checkExpression(r.Condition); err != nil {
					add("%s: condition: %s", where, reason(err))
				}
			}
			if r.Diameter < 0 {
				add("%s: diameter must not be negative", where)
			}
		}
	}

	opt := c.Optimization
	if opt.Enabled {
		if opt.StandardLength <= 0 {
			add("optimization: standard length must be positive")
		}
		if opt.CutMargin < 0 || (opt.StandardLength > 0 && opt.CutMargin >= opt.StandardLength) {
			add("optimization: cut margin must be in [0, standard length)")
		}
		for i, m := range opt.OptimizableMaterials {
			where := fmt.Sprintf("optimization.optimizable_materials[%d]", i)
			if !m.MaterialType.Valid() {
				add("%s: unknown material type %q", where, m.MaterialType)
			}
			if m.StandardLength < 0 || (m.CutMargin != nil && *m.CutMargin < 0) {
				add("%s: lengths must not be negative", where)
			}
			std, margin, _ := opt.Lookup(m.MaterialType)
			if std-margin <= 0 {
				add("%s: cut margin leaves no usable length", where)
			}
		}
	}

	for i, col := range c.Colors {
		if col.HexColor != "" && !hexColorRe.MatchString(col.HexColor) {
			add("colors[%d]: hex color %q must look like #RRGGBB", i, col.HexColor)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func checkExpression(expr string) error {
	e, err := formula.Parse(expr)
	if err != nil {
		return err
	}
	return e.CheckVariables(PieceVariables)
}

func reason(err error) string {
	if ferr, ok := err.(*formula.Error); ok {
		return ferr.Reason()
	}
	return err.Error()
}
