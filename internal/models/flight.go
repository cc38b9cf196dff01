package models

import "github.com/shopspring/decimal"

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

type Endpoint struct {
	Airport     string  `json:"airport"`
	AirportName *string `json:"airport_name,omitempty"`
	Terminal    *string `json:"terminal,omitempty"`
	At          string  `json:"at"`
}

// Segment is one leg of an itinerary. Timestamps and durations are kept
// exactly as the provider sent them.
type Segment struct {
	Departure        Endpoint `json:"departure"`
	Arrival          Endpoint `json:"arrival"`
	AirlineCode      string   `json:"airline_code"`
	AirlineName      *string  `json:"airline_name,omitempty"`
	FlightNumber     string   `json:"flight_number"`
	Duration         string   `json:"duration"`
	OperatingAirline *string  `json:"operating_airline,omitempty"`
	AircraftCode     *string  `json:"aircraft_code,omitempty"`
	LayoverDuration  *string  `json:"layover_duration,omitempty"`
	SeatsRemaining   *int     `json:"seats_remaining,omitempty"`
}

type Itinerary struct {
	ID             string          `json:"id"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	DepartureDate  Date            `json:"departure_date"`
	ReturnDate     *Date           `json:"return_date,omitempty"`
	Passengers     int             `json:"passengers"`
	TravelClass    TravelClass     `json:"travel_class"`
	Direction      Direction       `json:"direction"`
	Segments       []Segment       `json:"segments"`
	TotalDuration  string          `json:"total_duration"`
	StopCount      int             `json:"stop_count"`
	BookingLink    *string         `json:"booking_link,omitempty"`
	BestValueScore float64         `json:"best_value_score,omitempty"`
}

// AirlineName returns the display name of the first segment's marketing
// carrier, falling back to its code.
func (it Itinerary) AirlineName() string {
	if len(it.Segments) == 0 {
		return ""
	}
	first := it.Segments[0]
	if first.AirlineName != nil {
		return *first.AirlineName
	}
	return first.AirlineCode
}
