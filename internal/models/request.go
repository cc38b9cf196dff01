package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day, serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type TravelClass string

const (
	ClassEconomy        TravelClass = "ECONOMY"
	ClassPremiumEconomy TravelClass = "PREMIUM_ECONOMY"
	ClassBusiness       TravelClass = "BUSINESS"
	ClassFirst          TravelClass = "FIRST"
)

// ParseTravelClass accepts any casing and the spaced or hyphenated spelling
// of premium economy.
func ParseTravelClass(s string) (TravelClass, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	switch TravelClass(normalized) {
	case ClassEconomy, ClassPremiumEconomy, ClassBusiness, ClassFirst:
		return TravelClass(normalized), true
	}
	return "", false
}

type Preferences struct {
	Budget   *float64 `json:"budget,omitempty"`
	MaxStops *int     `json:"max_stops,omitempty"`
}

// SearchRequest is a validated flight query. It is never mutated after
// validation.
type SearchRequest struct {
	Origin        string       `json:"origin"`
	Destination   string       `json:"destination"`
	DepartureDate Date         `json:"departure_date"`
	ReturnDate    *Date        `json:"return_date,omitempty"`
	Passengers    int          `json:"passengers"`
	TravelClass   TravelClass  `json:"travel_class"`
	NonStop       bool         `json:"non_stop"`
	MaxResults    int          `json:"max_results"`
	Preferences   *Preferences `json:"preferences,omitempty"`
}

func (r SearchRequest) IsRoundTrip() bool {
	return r.ReturnDate != nil
}

// Fingerprint is a stable hash over every field of the request.
func (r SearchRequest) Fingerprint() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("fingerprint request: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
