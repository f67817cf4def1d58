package consumption

import (
	"fmt"
	"math"

	"consumo-backend/internal/formula"
	"consumo-backend/internal/storage"
)

// Piece is one blind/awning as measured on the quote or order form.
type Piece struct {
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Motorized bool    `json:"motorized"`
	Gallery   string  `json:"gallery"`
	System    string  `json:"system"`
	Color     string  `json:"color"`
	Product   string  `json:"product,omitempty"`
}

type InvalidPieceError struct {
	Field string
	Value float64
}

func (e *InvalidPieceError) Error() string {
	return fmt.Sprintf("invalid piece: %s must be a positive number, got %v", e.Field, e.Value)
}

func (p Piece) Area() float64 { return p.Width * p.Height }

func (p Piece) Validate() error {
	if !positive(p.Width) {
		return &InvalidPieceError{Field: "width", Value: p.Width}
	}
	if !positive(p.Height) {
		return &InvalidPieceError{Field: "height", Value: p.Height}
	}
	return nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// Variables exposes the piece under the names formulas are written with.
func (p Piece) Variables() formula.Vars {
	return formula.Vars{
		storage.VarWidth:     p.Width,
		storage.VarHeight:    p.Height,
		storage.VarArea:      p.Area(),
		storage.VarMotorized: p.Motorized,
		storage.VarGallery:   p.Gallery,
		storage.VarSystem:    p.System,
		storage.VarColor:     p.Color,
		storage.VarProduct:   p.Product,
	}
}

// Rotated is the same piece turned 90° on the roll.
func (p Piece) Rotated() Piece {
	p.Width, p.Height = p.Height, p.Width
	return p
}
