package analyzer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dharmasatrya/flightadvisor/internal/isotime"
	"github.com/dharmasatrya/flightadvisor/internal/models"
)

// Summarize computes the quantitative summary over its. Durations that do
// not parse are left out of the average.
func Summarize(its []models.Itinerary) models.Summary {
	if len(its) == 0 {
		return models.Summary{}
	}

	minPrice, maxPrice := its[0].Price, its[0].Price
	minStops, maxStops := its[0].StopCount, its[0].StopCount
	var total time.Duration
	var counted int64

	for _, it := range its {
		minPrice = decimal.Min(minPrice, it.Price)
		maxPrice = decimal.Max(maxPrice, it.Price)
		minStops = min(minStops, it.StopCount)
		maxStops = max(maxStops, it.StopCount)

		if d, err := isotime.ParseDuration(it.TotalDuration); err == nil {
			total += d
			counted++
		}
	}

	summary := models.Summary{
		FlightCount: len(its),
		PriceRange: &models.PriceRange{
			Min: minPrice.InexactFloat64(),
			Max: maxPrice.InexactFloat64(),
		},
		StopRange: &models.StopRange{Min: minStops, Max: maxStops},
	}
	if counted > 0 {
		summary.AvgDuration = isotime.FormatDuration(total / time.Duration(counted))
	}
	return summary
}
