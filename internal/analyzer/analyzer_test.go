package analyzer

import (
	"context"
	"errors"
	"math"
	"net/http"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dharmasatrya/flightadvisor/internal/models"
	"github.com/dharmasatrya/flightadvisor/internal/retry"
)

type scriptedGenerator struct {
	calls   atomic.Int32
	replies []func(ctx context.Context) (string, error)
	prompts []Prompt
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	n := int(g.calls.Add(1)) - 1
	g.prompts = append(g.prompts, prompt)
	if n >= len(g.replies) {
		n = len(g.replies) - 1
	}
	return g.replies[n](ctx)
}

func reply(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func fail(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

const goodReply = `{
  "summary": {"message": "Two direct options", "flight_count": 99, "price_range": {"min": 1, "max": 2}},
  "recommendations": [
    {"recommendation": "Best value", "details": "Cheapest direct flight", "flight_index": 0},
    {"recommendation": "Alternative", "details": "Later departure", "flight_index": "1"},
    {"recommendation": "Ghost", "details": "Out of range", "flight_index": 7}
  ],
  "insights": {"general": "Book early."}
}`

func searchRequest() models.SearchRequest {
	budget := 2000.0
	return models.SearchRequest{
		Origin:        "GRU",
		Destination:   "SDU",
		DepartureDate: models.NewDate(2099, time.August, 30),
		Passengers:    1,
		TravelClass:   models.ClassEconomy,
		MaxResults:    50,
		Preferences:   &models.Preferences{Budget: &budget},
	}
}

func itinerary(price string, duration string, stops int) models.Itinerary {
	name := "LATAM AIRLINES BRASIL"
	segs := make([]models.Segment, stops+1)
	segs[0].AirlineCode = "LA"
	segs[0].AirlineName = &name
	return models.Itinerary{
		Price:         decimal.RequireFromString(price),
		TotalDuration: duration,
		StopCount:     stops,
		Segments:      segs,
	}
}

func testAnalyzer(gen Generator) *Analyzer {
	return New(Config{
		Generator: gen,
		Currency:  "BRL",
		Timeout:   time.Second,
		Retry:     retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})
}

func TestAnalyzeOverwritesSummaryAndFiltersRecommendations(t *testing.T) {
	gen := &scriptedGenerator{replies: []func(context.Context) (string, error){reply(goodReply)}}
	a := testAnalyzer(gen)

	its := []models.Itinerary{
		itinerary("1350.00", "PT1H10M", 0),
		itinerary("1200.50", "PT1H", 0),
	}
	res := a.Analyze(context.Background(), searchRequest(), its)
	if res.Degraded {
		t.Fatalf("unexpected degraded result: %s", res.Reason)
	}

	s := res.Response.Summary
	if s.FlightCount != 2 || s.PriceRange.Min != 1200.50 || s.PriceRange.Max != 1350.00 {
		t.Fatalf("summary not recomputed locally: %+v %+v", s, s.PriceRange)
	}
	if s.AvgDuration != "PT1H5M" || s.StopRange.Min != 0 || s.StopRange.Max != 0 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Message != "Two direct options" {
		t.Fatalf("model message should be kept, got %q", s.Message)
	}

	if len(res.Response.Recommendations) != 2 {
		t.Fatalf("expected out-of-range recommendation to be dropped, got %+v", res.Response.Recommendations)
	}
	if res.Response.Recommendations[1].FlightIndex != 1 {
		t.Fatalf("string flight_index should be accepted")
	}
	if res.Response.Insights.General != "Book early." {
		t.Fatalf("unexpected insights %+v", res.Response.Insights)
	}

	user := gen.prompts[0].User
	if !strings.Contains(user, "GRU -> SDU") || !strings.Contains(user, "BRL 2000.00") || !strings.Contains(user, "LATAM AIRLINES BRASIL") {
		t.Fatalf("prompt is missing search context:\n%s", user)
	}
	if !strings.Contains(gen.prompts[0].System, "senior travel analyst") {
		t.Fatalf("unexpected system prompt %q", gen.prompts[0].System)
	}
}

func TestAnalyzeCachesByFingerprint(t *testing.T) {
	gen := &scriptedGenerator{replies: []func(context.Context) (string, error){reply(goodReply)}}
	a := testAnalyzer(gen)
	its := []models.Itinerary{itinerary("1200.50", "PT1H", 0), itinerary("1350.00", "PT1H", 0)}

	first := a.Analyze(context.Background(), searchRequest(), its)
	second := a.Analyze(context.Background(), searchRequest(), its)

	if gen.calls.Load() != 1 {
		t.Fatalf("expected cache hit on second call, got %d model calls", gen.calls.Load())
	}
	if !reflect.DeepEqual(first.Response, second.Response) {
		t.Fatalf("cached response differs:\n%+v\n%+v", first.Response, second.Response)
	}

	other := searchRequest()
	other.Passengers = 2
	a.Analyze(context.Background(), other, its)
	if gen.calls.Load() != 2 {
		t.Fatalf("a different request must miss the cache")
	}
}

func TestAnalyzeBypassesCacheForUnencodableRequest(t *testing.T) {
	gen := &scriptedGenerator{replies: []func(context.Context) (string, error){reply(goodReply)}}
	a := testAnalyzer(gen)
	its := []models.Itinerary{itinerary("1200.50", "PT1H", 0)}

	budget := math.Inf(1)
	jfk := searchRequest()
	jfk.Destination = "JFK"
	jfk.Preferences = &models.Preferences{Budget: &budget}
	lax := jfk
	lax.Destination = "LAX"

	a.Analyze(context.Background(), jfk, its)
	a.Analyze(context.Background(), lax, its)
	if gen.calls.Load() != 2 {
		t.Fatalf("expected both searches to reach the model, got %d calls", gen.calls.Load())
	}
}

func TestAnalyzeWithoutFlightsSkipsModel(t *testing.T) {
	gen := &scriptedGenerator{replies: []func(context.Context) (string, error){reply(goodReply)}}
	a := testAnalyzer(gen)

	res := a.Analyze(context.Background(), searchRequest(), nil)
	if !res.Degraded || !strings.Contains(res.Response.Summary.Message, "no flights found for GRU → SDU") {
		t.Fatalf("unexpected result %+v", res)
	}
	if gen.calls.Load() != 0 {
		t.Fatalf("model must not be called without flights")
	}
}

func TestAnalyzeRetriesTransientFailures(t *testing.T) {
	gen := &scriptedGenerator{replies: []func(context.Context) (string, error){
		fail(&StatusError{Provider: "scripted", Status: http.StatusServiceUnavailable}),
		fail(&StatusError{Provider: "scripted", Status: http.StatusTooManyRequests}),
		reply("```json\n" + goodReply + "\n```"),
	}}
	a := testAnalyzer(gen)

	res := a.Analyze(context.Background(), searchRequest(), []models.Itinerary{itinerary("10", "PT1H", 0)})
	if res.Degraded {
		t.Fatalf("expected success after retries: %s", res.Reason)
	}
	if gen.calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", gen.calls.Load())
	}
}

func TestAnalyzeDegradesOnPermanentFailure(t *testing.T) {
	tests := []struct {
		name  string
		reply func(context.Context) (string, error)
		calls int32
	}{
		{"client error", fail(&StatusError{Provider: "scripted", Status: http.StatusBadRequest}), 1},
		{"prose", reply("I could not find anything useful."), 1},
		{"extra key", reply(`{"summary":{},"recommendations":[],"insights":{},"extra":1}`), 1},
		{"exhausted retries", fail(&StatusError{Provider: "scripted", Status: http.StatusBadGateway}), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{replies: []func(context.Context) (string, error){tt.reply}}
			a := testAnalyzer(gen)
			its := []models.Itinerary{itinerary("10", "PT1H", 0)}

			res := a.Analyze(context.Background(), searchRequest(), its)
			if !res.Degraded || res.Response.Summary.Message == "" || len(res.Response.Recommendations) != 0 {
				t.Fatalf("expected degraded placeholder, got %+v", res)
			}
			if gen.calls.Load() != tt.calls {
				t.Fatalf("expected %d calls, got %d", tt.calls, gen.calls.Load())
			}

			// Failures are never cached.
			a.Analyze(context.Background(), searchRequest(), its)
			if gen.calls.Load() != 2*tt.calls {
				t.Fatalf("degraded result must not be cached")
			}
		})
	}
}

func TestAnalyzeTimesOut(t *testing.T) {
	gen := &scriptedGenerator{replies: []func(context.Context) (string, error){
		func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}}
	a := New(Config{Generator: gen, Timeout: 30 * time.Millisecond, Retry: retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond}})

	start := time.Now()
	res := a.Analyze(context.Background(), searchRequest(), []models.Itinerary{itinerary("10", "PT1H", 0)})
	if !res.Degraded || !strings.Contains(res.Reason, "did not answer within") {
		t.Fatalf("expected timeout degradation, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
}

func TestTopByPriceIsStable(t *testing.T) {
	its := []models.Itinerary{
		{ID: "a", Price: decimal.RequireFromString("300")},
		{ID: "b", Price: decimal.RequireFromString("100")},
		{ID: "c", Price: decimal.RequireFromString("300")},
		{ID: "d", Price: decimal.RequireFromString("100")},
	}

	top := TopByPrice(its, 3)
	got := []string{top[0].ID, top[1].ID, top[2].ID}
	if strings.Join(got, "") != "bda" {
		t.Fatalf("expected stable price order, got %v", got)
	}
	if its[0].ID != "a" {
		t.Fatalf("input must not be reordered")
	}
}

func TestTransientClassification(t *testing.T) {
	ctx := context.Background()
	if !transient(ctx, &StatusError{Status: 500}) || transient(ctx, &StatusError{Status: 403}) {
		t.Fatalf("status classification wrong")
	}
	if !transient(ctx, ErrEmptyResponse) || transient(ctx, errors.New("boom")) {
		t.Fatalf("error classification wrong")
	}
}
