package consumption

import (
	"errors"
	"fmt"
	"strings"

	"consumo-backend/internal/formula"
	"consumo-backend/internal/storage"
)

// selectPart scans a selection table in order; the first matching condition
// wins. An empty table selects nothing and is not a gap.
func selectPart(table storage.SelectionTable, rules []storage.SelectionRule, vars formula.Vars) (*Selection, []Warning) {
	if len(rules) == 0 {
		return nil, nil
	}

	var warnings []Warning
	for _, r := range rules {
		if strings.TrimSpace(r.Condition) != "" {
			ok, err := formula.EvaluateCondition(r.Condition, vars)
			if err != nil {
				warnings = append(warnings, Warning{
					Kind:       WarningFormula,
					Table:      table,
					Expression: r.Condition,
					Message:    fmt.Sprintf("regla %s: %s", r.Code, formulaReason(err)),
				})
				continue
			}
			if !ok {
				continue
			}
		}

		return &Selection{
			Table:       table,
			Code:        r.Code,
			Description: r.Description,
			Diameter:    r.Diameter,
			Mechanism:   r.Mechanism,
			Size:        r.Size,
		}, warnings
	}

	warnings = append(warnings, Warning{
		Kind:    WarningConfigurationGap,
		Table:   table,
		Message: fmt.Sprintf("Ninguna regla de %s aplica a esta pieza", table),
	})
	return nil, warnings
}

func formulaReason(err error) string {
	var ferr *formula.Error
	if errors.As(err, &ferr) {
		return ferr.Reason()
	}
	return err.Error()
}
