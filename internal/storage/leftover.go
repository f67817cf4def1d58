package storage

import "time"

// Leftover is a reusable remnant ("sobrante") kept in the workshop.
// Width is zero for bar-like materials (tubes, profiles).
type Leftover struct {
	ID           string       `json:"id"`
	MaterialType MaterialType `json:"material_type"`
	Description  string       `json:"description"`
	Length       float64      `json:"length"`
	Width        float64      `json:"width,omitempty"`
	Source       string       `json:"source,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
