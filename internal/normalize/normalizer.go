package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dharmasatrya/flightadvisor/internal/isotime"
	"github.com/dharmasatrya/flightadvisor/internal/logging"
	"github.com/dharmasatrya/flightadvisor/internal/models"
)

type offer struct {
	ID                    string      `json:"id"`
	NumberOfBookableSeats *int        `json:"numberOfBookableSeats"`
	Itineraries           []itinerary `json:"itineraries"`
	Price                 struct {
		Currency   string          `json:"currency"`
		GrandTotal json.RawMessage `json:"grandTotal"`
	} `json:"price"`
}

type itinerary struct {
	Duration string    `json:"duration"`
	Segments []segment `json:"segments"`
}

type segment struct {
	Departure   endpoint `json:"departure"`
	Arrival     endpoint `json:"arrival"`
	CarrierCode string   `json:"carrierCode"`
	Number      string   `json:"number"`
	Duration    string   `json:"duration"`
	Aircraft    struct {
		Code string `json:"code"`
	} `json:"aircraft"`
	Operating struct {
		CarrierCode string `json:"carrierCode"`
	} `json:"operating"`
}

type endpoint struct {
	IataCode string `json:"iataCode"`
	Terminal string `json:"terminal"`
	At       string `json:"at"`
}

// Normalizer folds raw provider offers into itineraries. It never fails as a
// whole: malformed offers and itineraries are skipped and reported as
// warnings.
type Normalizer struct {
	currency string
	logger   *zap.Logger
}

func New(defaultCurrency string, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		currency: defaultCurrency,
		logger:   logging.Component(logger, "normalizer"),
	}
}

func (n *Normalizer) Normalize(req models.SearchRequest, raw *models.RawSearchResult) ([]models.Itinerary, []models.Warning) {
	itineraries := make([]models.Itinerary, 0)
	var warnings []models.Warning
	if raw == nil {
		return itineraries, warnings
	}

	skip := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		n.logger.Warn("skipping upstream data", zap.String("reason", msg))
		warnings = append(warnings, models.Warning{Kind: models.KindNormalizerSkipped, Message: msg})
	}

	for i, data := range raw.Offers {
		var o offer
		if err := json.Unmarshal(data, &o); err != nil {
			skip("offer #%d: malformed JSON: %v", i, err)
			continue
		}

		price, err := parsePrice(o.Price.GrandTotal)
		if err != nil {
			skip("offer %s: %v", o.ID, err)
			continue
		}
		currency := o.Price.Currency
		if currency == "" {
			currency = n.currency
		}

		if len(o.Itineraries) == 0 {
			skip("offer %s: no itineraries", o.ID)
			continue
		}

		for idx, it := range o.Itineraries {
			direction := models.DirectionOutbound
			if idx > 0 {
				direction = models.DirectionInbound
			}

			segments, err := buildSegments(req, direction, it.Segments, raw.Dictionaries, o.NumberOfBookableSeats)
			if err != nil {
				skip("offer %s itinerary %d: %v", o.ID, idx, err)
				continue
			}
			if strings.TrimSpace(it.Duration) == "" {
				skip("offer %s itinerary %d: missing duration", o.ID, idx)
				continue
			}

			id := o.ID
			if direction == models.DirectionInbound {
				id = o.ID + "-inbound"
			}

			itineraries = append(itineraries, models.Itinerary{
				ID:            id,
				Price:         price,
				Currency:      currency,
				Origin:        req.Origin,
				Destination:   req.Destination,
				DepartureDate: req.DepartureDate,
				ReturnDate:    req.ReturnDate,
				Passengers:    req.Passengers,
				TravelClass:   req.TravelClass,
				Direction:     direction,
				Segments:      segments,
				TotalDuration: it.Duration,
				StopCount:     len(segments) - 1,
			})
		}
	}

	n.logger.Info("normalized offers",
		zap.Int("offers", len(raw.Offers)),
		zap.Int("itineraries", len(itineraries)),
		zap.Int("skipped", len(warnings)),
	)
	return itineraries, warnings
}

func parsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Decimal{}, errors.New("missing grand total")
	}

	text := string(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = s
	}

	price, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("non-numeric grand total %q", text)
	}
	if price.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative grand total %s", price)
	}
	return price.Round(2), nil
}

func buildSegments(req models.SearchRequest, direction models.Direction, raw []segment, dict models.Dictionaries, seats *int) ([]models.Segment, error) {
	if len(raw) == 0 {
		return nil, errors.New("no segments")
	}

	from, to := req.Origin, req.Destination
	if direction == models.DirectionInbound {
		from, to = req.Destination, req.Origin
	}
	if !strings.EqualFold(raw[0].Departure.IataCode, from) {
		return nil, fmt.Errorf("departs from %q, expected %s", raw[0].Departure.IataCode, from)
	}
	if last := raw[len(raw)-1]; !strings.EqualFold(last.Arrival.IataCode, to) {
		return nil, fmt.Errorf("arrives at %q, expected %s", last.Arrival.IataCode, to)
	}

	segments := make([]models.Segment, 0, len(raw))
	var prevArrival isotime.Timestamp

	for i, s := range raw {
		if s.Departure.IataCode == "" || s.Arrival.IataCode == "" {
			return nil, fmt.Errorf("segment %d: missing airport code", i)
		}
		if s.CarrierCode == "" {
			return nil, fmt.Errorf("segment %d: missing carrier code", i)
		}

		dep, err := isotime.ParseTimestamp(s.Departure.At)
		if err != nil {
			return nil, fmt.Errorf("segment %d: departure: %w", i, err)
		}
		arr, err := isotime.ParseTimestamp(s.Arrival.At)
		if err != nil {
			return nil, fmt.Errorf("segment %d: arrival: %w", i, err)
		}
		// Local wall times at different airports are not comparable.
		if dep.HasOffset && arr.HasOffset && !dep.Time.Before(arr.Time) {
			return nil, fmt.Errorf("segment %d: departs at or after arrival", i)
		}

		seg := models.Segment{
			Departure: models.Endpoint{
				Airport:  strings.ToUpper(s.Departure.IataCode),
				Terminal: optional(s.Departure.Terminal),
				At:       s.Departure.At,
			},
			Arrival: models.Endpoint{
				Airport:  strings.ToUpper(s.Arrival.IataCode),
				Terminal: optional(s.Arrival.Terminal),
				At:       s.Arrival.At,
			},
			AirlineCode:      s.CarrierCode,
			FlightNumber:     s.CarrierCode + s.Number,
			Duration:         s.Duration,
			OperatingAirline: optional(s.Operating.CarrierCode),
			AircraftCode:     optional(s.Aircraft.Code),
		}
		if name, ok := dict.Carriers[s.CarrierCode]; ok && name != "" {
			seg.AirlineName = &name
		}
		if seats != nil {
			n := *seats
			seg.SeatsRemaining = &n
		}

		if i > 0 {
			layover := dep.Time.Sub(prevArrival.Time)
			if layover < 0 {
				return nil, fmt.Errorf("segment %d: negative layover", i)
			}
			formatted := isotime.FormatDuration(layover)
			seg.LayoverDuration = &formatted
		}
		prevArrival = arr

		segments = append(segments, seg)
	}

	return segments, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
