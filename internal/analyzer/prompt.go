package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dharmasatrya/flightadvisor/internal/models"
)

// FlightInput is everything the model learns about one itinerary.
type FlightInput struct {
	Index         int     `json:"index"`
	Price         float64 `json:"price"`
	TotalDuration string  `json:"total_duration"`
	StopCount     int     `json:"stop_count"`
	Airline       string  `json:"airline"`
}

const systemPrompt = "You are a senior travel analyst and data specialist. " +
	"You answer only with a single JSON object and never add prose around it."

const responseTemplate = `{
  "summary": {
    "flight_count": <int>,
    "price_range": {"min": <float>, "max": <float>},
    "avg_duration": "<ISO-8601 duration>",
    "stop_range": {"min": <int>, "max": <int>}
  },
  "recommendations": [
    {"recommendation": "<short label>", "details": "<rationale>", "flight_index": <int>}
  ],
  "insights": {"general": "<one actionable observation>"}
}`

func inputsFor(its []models.Itinerary) []FlightInput {
	inputs := make([]FlightInput, len(its))
	for i, it := range its {
		inputs[i] = FlightInput{
			Index:         i,
			Price:         it.Price.InexactFloat64(),
			TotalDuration: it.TotalDuration,
			StopCount:     it.StopCount,
			Airline:       it.AirlineName(),
		}
	}
	return inputs
}

func buildPrompt(req models.SearchRequest, currency string, inputs []FlightInput) Prompt {
	returnDate := "one way"
	if req.IsRoundTrip() {
		returnDate = req.ReturnDate.String()
	}

	budget, maxStops := "not specified", "not specified"
	if req.Preferences != nil {
		if req.Preferences.Budget != nil {
			budget = fmt.Sprintf("%s %.2f", currency, *req.Preferences.Budget)
		}
		if req.Preferences.MaxStops != nil {
			maxStops = fmt.Sprintf("%d", *req.Preferences.MaxStops)
		}
	}

	flights, _ := json.MarshalIndent(inputs, "", "  ")

	var b strings.Builder
	b.WriteString("Analyse the flight options below and answer with a structured JSON object.\n\n")
	b.WriteString("SEARCH CONTEXT:\n")
	fmt.Fprintf(&b, "- Route: %s -> %s\n", req.Origin, req.Destination)
	fmt.Fprintf(&b, "- Dates: %s to %s\n", req.DepartureDate, returnDate)
	fmt.Fprintf(&b, "- Passengers: %d, class: %s\n", req.Passengers, req.TravelClass)
	fmt.Fprintf(&b, "- Preferences: budget %s, maximum stops %s\n\n", budget, maxStops)
	fmt.Fprintf(&b, "FLIGHT OPTIONS (price in %s, total duration, stops, airline):\n%s\n\n", currency, flights)
	b.WriteString("TASKS:\n")
	b.WriteString("1. Quantitative summary: number of flights, price range (min/max), average duration and stop range (min/max).\n")
	b.WriteString("2. Give 2 to 3 recommendations (best value, fastest, best overall) with a clear rationale. " +
		"flight_index must be the index of the flight in the list above.\n")
	b.WriteString("3. Give one actionable insight about this search.\n")
	b.WriteString("4. Take the budget and stop preferences into account.\n\n")
	b.WriteString("REQUIRED FORMAT: a JSON object with exactly the keys summary, recommendations and insights:\n")
	b.WriteString(responseTemplate)

	return Prompt{System: systemPrompt, User: b.String()}
}
