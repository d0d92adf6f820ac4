// Package emotion holds the display rules for emotion statistics: the fixed
// color palette and the ordering and rounding of percentage rows.
package emotion

import (
	"math"
	"sort"
)

// DefaultColor is used for emotion names outside the palette.
const DefaultColor = "#333"

var palette = map[string]string{
	"happy":     "#4CAF50",
	"sad":       "#2196F3",
	"angry":     "#F44336",
	"surprised": "#FF9800",
	"fear":      "#9C27B0",
	"disgust":   "#795548",
	"neutral":   "#607D8B",
	"contempt":  "#FF5722",
}

// Color returns the display color for an emotion name.
func Color(name string) string {
	if c, ok := palette[name]; ok {
		return c
	}
	return DefaultColor
}

// Known reports whether name is part of the palette.
func Known(name string) bool {
	_, ok := palette[name]
	return ok
}

// Row is one rendered percentage bar.
type Row struct {
	Emotion string  `json:"emotion"`
	Percent float64 `json:"percent"`
	Color   string  `json:"color"`
}

// Round1 rounds to one decimal place, halves upward.
func Round1(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

// Rows orders percentages descending by value. Equal values are ordered by
// name so output is stable across map iteration.
func Rows(percentages map[string]float64) []Row {
	rows := make([]Row, 0, len(percentages))
	for name, v := range percentages {
		rows = append(rows, Row{Emotion: name, Percent: Round1(v), Color: Color(name)})
	}
	raw := percentages
	sort.Slice(rows, func(i, j int) bool {
		a, b := raw[rows[i].Emotion], raw[rows[j].Emotion]
		if a != b {
			return a > b
		}
		return rows[i].Emotion < rows[j].Emotion
	})
	return rows
}

// Width clamps a percentage into the [0, 100] range used for bar widths.
func Width(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
