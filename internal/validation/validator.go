package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dharmasatrya/flightadvisor/internal/models"
)

const (
	DefaultPassengers = 1
	DefaultMaxResults = 50
	MaxAdvanceDays    = 365
)

// searchInput is the loosely coerced form of the raw parameters. Its json tags
// are the field names reported back to callers.
type searchInput struct {
	Origin        string   `json:"origin" validate:"required,len=3,alpha"`
	Destination   string   `json:"destination" validate:"required,len=3,alpha,nefield=Origin"`
	DepartureDate string   `json:"departure_date" validate:"required,datetime=2006-01-02"`
	ReturnDate    string   `json:"return_date" validate:"omitempty,datetime=2006-01-02"`
	Passengers    int      `json:"passengers" validate:"min=1,max=9"`
	TravelClass   string   `json:"travel_class" validate:"required"`
	MaxResults    int      `json:"max_results" validate:"min=1,max=250"`
	Budget        *float64 `json:"preferences.budget" validate:"omitempty,gte=0"`
	MaxStops      *int     `json:"preferences.max_stops" validate:"omitempty,gte=0"`
}

// Validator turns untrusted parameter maps into SearchRequests. It performs
// no I/O.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func New() *Validator {
	return NewWithClock(time.Now)
}

// NewWithClock fixes the notion of "today" used by the date rules.
func NewWithClock(now func() time.Time) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v, now: now}
}

func (v *Validator) Validate(raw map[string]any) (models.SearchRequest, error) {
	in, err := coerce(raw)
	if err != nil {
		return models.SearchRequest{}, err
	}

	if err := v.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return models.SearchRequest{}, describe(verrs[0])
		}
		return models.SearchRequest{}, err
	}

	class, ok := models.ParseTravelClass(in.TravelClass)
	if !ok {
		return models.SearchRequest{}, models.NewInvalidInput("travel_class",
			"must be one of economy, premium economy, business, first")
	}

	today := models.DateOf(v.now())

	departure, err := models.ParseDate(in.DepartureDate)
	if err != nil {
		return models.SearchRequest{}, models.NewInvalidInput("departure_date", "must be a date in YYYY-MM-DD format")
	}
	if err := checkWindow("departure_date", departure, today); err != nil {
		return models.SearchRequest{}, err
	}

	req := models.SearchRequest{
		Origin:        in.Origin,
		Destination:   in.Destination,
		DepartureDate: departure,
		Passengers:    in.Passengers,
		TravelClass:   class,
		NonStop:       boolValue(raw, "non_stop"),
		MaxResults:    in.MaxResults,
	}

	if in.ReturnDate != "" {
		ret, err := models.ParseDate(in.ReturnDate)
		if err != nil {
			return models.SearchRequest{}, models.NewInvalidInput("return_date", "must be a date in YYYY-MM-DD format")
		}
		if err := checkWindow("return_date", ret, today); err != nil {
			return models.SearchRequest{}, err
		}
		if ret.Before(departure) {
			return models.SearchRequest{}, models.NewInvalidInput("return_date", "must not be earlier than departure_date")
		}
		req.ReturnDate = &ret
	}

	if in.Budget != nil || in.MaxStops != nil {
		req.Preferences = &models.Preferences{Budget: in.Budget, MaxStops: in.MaxStops}
	}

	return req, nil
}

func checkWindow(field string, d, today models.Date) error {
	if d.Before(today) {
		return models.NewInvalidInput(field, "must not be in the past")
	}
	if d.After(today.AddDays(MaxAdvanceDays)) {
		return models.NewInvalidInput(field, fmt.Sprintf("must not be more than %d days ahead", MaxAdvanceDays))
	}
	return nil
}

func describe(fe validator.FieldError) error {
	field := fe.Field()

	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "len", "alpha":
		reason = "must be a 3-letter IATA code"
	case "nefield":
		reason = "must differ from origin"
	case "datetime":
		reason = "must be a date in YYYY-MM-DD format"
	case "min", "gte":
		reason = "must be at least " + fe.Param()
	case "max":
		reason = "must be at most " + fe.Param()
	default:
		reason = "is invalid (" + fe.Tag() + ")"
	}

	return models.NewInvalidInput(field, reason)
}

// coerce reads each known key from raw, accepting the shapes JSON decoding,
// form parsing and direct Go callers produce.
func coerce(raw map[string]any) (searchInput, error) {
	in := searchInput{
		Passengers:  DefaultPassengers,
		TravelClass: string(models.ClassEconomy),
		MaxResults:  DefaultMaxResults,
	}

	var err error
	if in.Origin, err = stringField(raw, "origin"); err != nil {
		return in, err
	}
	if in.Destination, err = stringField(raw, "destination"); err != nil {
		return in, err
	}
	in.Origin = strings.ToUpper(in.Origin)
	in.Destination = strings.ToUpper(in.Destination)

	if in.DepartureDate, err = dateField(raw, "departure_date"); err != nil {
		return in, err
	}
	if in.ReturnDate, err = dateField(raw, "return_date"); err != nil {
		return in, err
	}

	if n, ok, err := intField(raw, "passengers"); err != nil {
		return in, err
	} else if ok {
		in.Passengers = n
	}
	if n, ok, err := intField(raw, "max_results"); err != nil {
		return in, err
	} else if ok {
		in.MaxResults = n
	}

	if s, err := stringField(raw, "travel_class"); err != nil {
		return in, err
	} else if s != "" {
		in.TravelClass = s
	}

	if _, err := boolField(raw, "non_stop"); err != nil {
		return in, err
	}

	prefs, err := preferencesField(raw)
	if err != nil {
		return in, err
	}
	if budget, ok, err := floatField(prefs, "budget", "preferences.budget"); err != nil {
		return in, err
	} else if ok {
		in.Budget = &budget
	}
	if stops, ok, err := intFieldNamed(prefs, "max_stops", "preferences.max_stops"); err != nil {
		return in, err
	} else if ok {
		in.MaxStops = &stops
	}

	return in, nil
}

func stringField(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", models.NewInvalidInput(key, "must be a string")
	}
	return strings.TrimSpace(s), nil
}

func dateField(raw map[string]any, key string) (string, error) {
	switch v := raw[key].(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case time.Time:
		return v.Format(models.DateLayout), nil
	case models.Date:
		return v.String(), nil
	case *models.Date:
		if v == nil {
			return "", nil
		}
		return v.String(), nil
	default:
		return "", models.NewInvalidInput(key, "must be a date in YYYY-MM-DD format")
	}
}

func intField(raw map[string]any, key string) (int, bool, error) {
	return intFieldNamed(raw, key, key)
}

func intFieldNamed(raw map[string]any, key, field string) (int, bool, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, false, nil
	}

	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case float64:
		if math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false, models.NewInvalidInput(field, "must be an integer")
		}
		return int(n), true, nil
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, false, nil
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false, models.NewInvalidInput(field, "must be an integer")
		}
		return parsed, true, nil
	default:
		return 0, false, models.NewInvalidInput(field, "must be an integer")
	}
}

func floatField(raw map[string]any, key, field string) (float64, bool, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, false, nil
	}

	switch n := v.(type) {
	case float64:
		return finite(n, field)
	case int:
		return float64(n), true, nil
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, false, nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false, models.NewInvalidInput(field, "must be a number")
		}
		return finite(parsed, field)
	default:
		return 0, false, models.NewInvalidInput(field, "must be a number")
	}
}

// finite rejects Inf and NaN, which have no JSON encoding.
func finite(f float64, field string) (float64, bool, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false, models.NewInvalidInput(field, "must be a finite number")
	}
	return f, true, nil
}

func boolField(raw map[string]any, key string) (bool, error) {
	switch v := raw[key].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, models.NewInvalidInput(key, "must be true or false")
		}
		return b, nil
	default:
		return false, models.NewInvalidInput(key, "must be true or false")
	}
}

func boolValue(raw map[string]any, key string) bool {
	b, _ := boolField(raw, key)
	return b
}

func preferencesField(raw map[string]any) (map[string]any, error) {
	switch v := raw["preferences"].(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case models.Preferences:
		return preferencesMap(&v), nil
	case *models.Preferences:
		return preferencesMap(v), nil
	default:
		return nil, models.NewInvalidInput("preferences", "must be an object")
	}
}

func preferencesMap(p *models.Preferences) map[string]any {
	out := map[string]any{}
	if p == nil {
		return out
	}
	if p.Budget != nil {
		out["budget"] = *p.Budget
	}
	if p.MaxStops != nil {
		out["max_stops"] = *p.MaxStops
	}
	return out
}
