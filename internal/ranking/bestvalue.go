package ranking

import (
	"math"
	"sort"

	"github.com/dharmasatrya/flightadvisor/internal/isotime"
	"github.com/dharmasatrya/flightadvisor/internal/models"
)

const (
	PriceWeight    = 0.5
	DurationWeight = 0.3
	StopsWeight    = 0.2
)

// SortByPrice orders its by ascending price in place. Equal prices keep
// their provider order.
func SortByPrice(its []models.Itinerary) {
	sort.SliceStable(its, func(i, j int) bool {
		return its[i].Price.LessThan(its[j].Price)
	})
}

func CalculateScores(its []models.Itinerary) []models.Itinerary {
	if len(its) == 0 {
		return its
	}

	maxPrice := findMaxPrice(its)
	maxDuration := findMaxDuration(its)

	result := make([]models.Itinerary, len(its))
	for i, it := range its {
		result[i] = it
		result[i].BestValueScore = CalculateBestValue(it, maxPrice, maxDuration)
	}

	return result
}

// Lower score = better value
func CalculateBestValue(it models.Itinerary, maxPrice, maxDuration float64) float64 {
	priceScore := 0.0
	if maxPrice > 0 {
		priceScore = (it.Price.InexactFloat64() / maxPrice) * 100
	}

	durationScore := 0.0
	if maxDuration > 0 {
		durationScore = (float64(durationMinutes(it)) / maxDuration) * 100
	}

	stopsScore := float64(it.StopCount) * 15
	score := (priceScore * PriceWeight) + (durationScore * DurationWeight) + (stopsScore * StopsWeight)

	return math.Round(score*100) / 100
}

func durationMinutes(it models.Itinerary) int {
	d, err := isotime.ParseDuration(it.TotalDuration)
	if err != nil {
		return 0
	}
	return isotime.Minutes(d)
}

func findMaxPrice(its []models.Itinerary) float64 {
	maxPrice := 0.0
	for _, it := range its {
		if p := it.Price.InexactFloat64(); p > maxPrice {
			maxPrice = p
		}
	}
	return maxPrice
}

func findMaxDuration(its []models.Itinerary) float64 {
	maxDuration := 0.0
	for _, it := range its {
		dur := float64(durationMinutes(it))
		if dur > maxDuration {
			maxDuration = dur
		}
	}
	return maxDuration
}
