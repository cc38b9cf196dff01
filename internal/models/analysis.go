package models

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type StopRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Summary holds either the quantitative overview or, in degraded mode, only
// Message.
type Summary struct {
	Message     string      `json:"message,omitempty"`
	FlightCount int         `json:"flight_count,omitempty"`
	PriceRange  *PriceRange `json:"price_range,omitempty"`
	AvgDuration string      `json:"avg_duration,omitempty"`
	StopRange   *StopRange  `json:"stop_range,omitempty"`
}

type Recommendation struct {
	Recommendation string `json:"recommendation"`
	Details        string `json:"details"`
	FlightIndex    int    `json:"flight_index"`
}

type Insights struct {
	General string `json:"general,omitempty"`
}

type AnalyzerResponse struct {
	Summary         Summary          `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
	Insights        Insights         `json:"insights"`
}

// DegradedAnalysis is the placeholder returned whenever the analyzer cannot
// produce a usable answer.
func DegradedAnalysis(reason string) AnalyzerResponse {
	return AnalyzerResponse{
		Summary:         Summary{Message: reason},
		Recommendations: []Recommendation{},
		Insights:        Insights{},
	}
}
