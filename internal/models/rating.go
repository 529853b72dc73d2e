package models

import "math"

// RoundRating rounds an average rating to one decimal.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}
