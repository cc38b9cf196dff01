package models

import "time"

type Warning struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

type Metadata struct {
	SearchID          string    `json:"search_id"`
	Timestamp         time.Time `json:"timestamp"`
	ExecutionTimeMs   int64     `json:"execution_time_ms"`
	Source            string    `json:"source"`
	ResultCount       int       `json:"result_count"`
	Partial           bool      `json:"partial"`
	AnalysisAvailable bool      `json:"analysis_available"`
	Warnings          []Warning `json:"warnings,omitempty"`
}

type PipelineResponse struct {
	Metadata         Metadata         `json:"metadata"`
	SearchParameters SearchRequest    `json:"search_parameters"`
	Flights          []Itinerary      `json:"flights"`
	Analysis         AnalyzerResponse `json:"analysis"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Code    int    `json:"code"`
}
