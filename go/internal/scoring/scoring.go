// Package scoring holds the pure distance and score functions used to grade a guess.
package scoring

import (
	"math"

	"github.com/mcdev12/geoquest/go/internal/models"
)

const earthRadiusKm = 6371

// DistanceFunc returns the distance in whole kilometres between two points.
type DistanceFunc func(a, b models.Coordinates) int

// ScoreFunc grades a guess from its distance, the target's tier and the level
// equivalent of the game's difficulty.
type ScoreFunc func(distanceKm, tier, level int) int

// Distance is the great-circle distance between a and b, rounded to the nearest km.
func Distance(a, b models.Coordinates) int {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng) - radians(a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return int(math.Round(earthRadiusKm * c))
}

// Score decays with distance and is scaled by city tier (x1, x1.5, x2) and by
// level (+0.2 per level above 1).
func Score(distanceKm, tier, level int) int {
	base := 5000 / (1 + float64(distanceKm)/100)
	return int(math.Round(base * tierMultiplier(tier) * levelMultiplier(level)))
}

func tierMultiplier(tier int) float64 {
	switch tier {
	case 1:
		return 1.0
	case 2:
		return 1.5
	default:
		return 2.0
	}
}

func levelMultiplier(level int) float64 {
	return 1.0 + float64(level-1)*0.2
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
