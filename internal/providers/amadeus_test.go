package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dharmasatrya/flightadvisor/internal/models"
	"github.com/dharmasatrya/flightadvisor/internal/ratelimit"
	"github.com/dharmasatrya/flightadvisor/internal/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
}

// fakeAmadeus serves the token endpoint and delegates offers and locations to
// per-test handlers.
type fakeAmadeus struct {
	*httptest.Server

	exchanges atomic.Int32
	offerHits atomic.Int32

	mu      sync.Mutex
	queries []url.Values

	tokenStatus int
	tokenDelay  time.Duration
	offers      func(w http.ResponseWriter, r *http.Request, hit int)
	locations   http.HandlerFunc
}

func newFakeAmadeus(t *testing.T) *fakeAmadeus {
	t.Helper()

	f := &fakeAmadeus{tokenStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		n := f.exchanges.Add(1)
		if f.tokenDelay > 0 {
			time.Sleep(f.tokenDelay)
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("client_id") != "key" || r.PostForm.Get("client_secret") != "secret" {
			http.Error(w, "bad credentials", http.StatusBadRequest)
			return
		}
		if f.tokenStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":1799}`, n)
	})
	mux.HandleFunc(offersPath, func(w http.ResponseWriter, r *http.Request) {
		hit := int(f.offerHits.Add(1))
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.Query())
		f.mu.Unlock()
		f.offers(w, r, hit)
	})
	mux.HandleFunc(locationsPath, func(w http.ResponseWriter, r *http.Request) {
		f.locations(w, r)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeAmadeus) provider() *AmadeusProvider {
	return NewAmadeusProvider(AmadeusConfig{
		BaseURL:      f.URL,
		ClientID:     "key",
		ClientSecret: "secret",
		Retry:        fastPolicy(),
		Limiter:      ratelimit.Unlimited(),
		Timeout:      2 * time.Second,
	})
}

func writePage(w http.ResponseWriter, ids []string, next string) {
	data := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]any{"id": id})
	}
	page := map[string]any{
		"data":         data,
		"dictionaries": map[string]any{"carriers": map[string]string{"LA": "LATAM AIRLINES BRASIL"}},
		"meta":         map[string]any{"links": map[string]string{"next": next}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

func testRequest() models.SearchRequest {
	return models.SearchRequest{
		Origin:        "GRU",
		Destination:   "JFK",
		DepartureDate: models.NewDate(2099, time.June, 15),
		Passengers:    1,
		TravelClass:   models.ClassEconomy,
		MaxResults:    50,
	}
}

func offerIDs(t *testing.T, res *models.RawSearchResult) []string {
	t.Helper()
	ids := make([]string, 0, len(res.Offers))
	for _, raw := range res.Offers {
		var o struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &o); err != nil {
			t.Fatalf("decode offer: %v", err)
		}
		ids = append(ids, o.ID)
	}
	return ids
}

func TestSearchFollowsNextLinks(t *testing.T) {
	f := newFakeAmadeus(t)
	f.offers = func(w http.ResponseWriter, r *http.Request, hit int) {
		if r.Header.Get("Authorization") != "Bearer tok-1" || r.Header.Get("Accept") != "application/json" {
			http.Error(w, "missing headers", http.StatusBadRequest)
			return
		}
		switch hit {
		case 1:
			writePage(w, []string{"1", "2"}, f.URL+offersPath+"?page=2")
		default:
			writePage(w, []string{"3"}, "")
		}
	}

	res, err := f.provider().Search(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := offerIDs(t, res); fmt.Sprint(got) != "[1 2 3]" {
		t.Fatalf("expected provider order, got %v", got)
	}
	if res.Pages != 2 || res.Partial {
		t.Fatalf("unexpected pages=%d partial=%v", res.Pages, res.Partial)
	}
	if res.Dictionaries.Carriers["LA"] != "LATAM AIRLINES BRASIL" {
		t.Fatalf("dictionaries not merged: %+v", res.Dictionaries)
	}

	first, second := f.queries[0], f.queries[1]
	want := map[string]string{
		"originLocationCode":      "GRU",
		"destinationLocationCode": "JFK",
		"departureDate":           "2099-06-15",
		"adults":                  "1",
		"travelClass":             "ECONOMY",
		"nonStop":                 "false",
		"currencyCode":            "BRL",
		"max":                     "250",
	}
	for k, v := range want {
		if first.Get(k) != v {
			t.Errorf("first page %s = %q, want %q", k, first.Get(k), v)
		}
	}
	if first.Has("returnDate") {
		t.Errorf("one-way search must not send returnDate")
	}
	if second.Get("page") != "2" || second.Has("originLocationCode") {
		t.Errorf("second page should use the next link verbatim, got %v", second)
	}
	if f.exchanges.Load() != 1 {
		t.Errorf("expected a single token exchange, got %d", f.exchanges.Load())
	}
}

func TestSearchSendsReturnDateForRoundTrip(t *testing.T) {
	f := newFakeAmadeus(t)
	f.offers = func(w http.ResponseWriter, r *http.Request, hit int) {
		writePage(w, nil, "")
	}

	req := testRequest()
	ret := models.NewDate(2099, time.June, 20)
	req.ReturnDate = &ret
	req.NonStop = true

	res, err := f.provider().Search(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Offers) != 0 {
		t.Fatalf("expected empty result")
	}
	if f.queries[0].Get("returnDate") != "2099-06-20" || f.queries[0].Get("nonStop") != "true" {
		t.Fatalf("unexpected query %v", f.queries[0])
	}
}

func TestSearchStopsAtMaxResults(t *testing.T) {
	f := newFakeAmadeus(t)
	f.offers = func(w http.ResponseWriter, r *http.Request, hit int) {
		writePage(w, []string{"1", "2", "3"}, f.URL+offersPath+"?page=2")
	}

	req := testRequest()
	req.MaxResults = 2

	res, err := f.provider().Search(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Offers) != 2 || f.offerHits.Load() != 1 {
		t.Fatalf("expected truncation after one page, got %d offers over %d pages", len(res.Offers), f.offerHits.Load())
	}
}

func TestSearchRefreshesTokenOnceAfter401(t *testing.T) {
	f := newFakeAmadeus(t)
	f.offers = func(w http.ResponseWriter, r *http.Request, hit int) {
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			http.Error(w, `{"errors":[{"code":38190}]}`, http.StatusUnauthorized)
			return
		}
		writePage(w, []string{"1"}, "")
	}

	res, err := f.provider().Search(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Offers) != 1 || f.exchanges.Load() != 2 {
		t.Fatalf("expected retry with fresh token, offers=%d exchanges=%d", len(res.Offers), f.exchanges.Load())
	}
}

func TestSearchPersistent401IsAuthError(t *testing.T) {
	f := newFakeAmadeus(t)
	f.offers = func(w http.ResponseWriter, r *http.Request, hit int) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}

	_, err := f.provider().Search(context.Background(), testRequest())
	if models.KindOf(err) != models.KindUpstreamAuth {
		t.Fatalf("expected upstream_auth, got %v", err)
	}
	if f.offerHits.Load() != 2 {
		t.Fatalf("expected exactly one retry after 401, got %d requests", f.offerHits.Load())
	}
}

func TestSearchRateLimitedOnFirstPage(t *testing.T) {
	f := newFakeAmadeus(t)
	f.offers = func(w http.ResponseWriter, r *http.Request, hit int) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}

	_, err := f.provider().Search(context.Background(), testRequest())
	if models.KindOf(err) != models.KindUpstreamUnavailable {
		t.Fatalf("expected upstream_unavailable, got %v", err)
	}
	if f.offerHits.Load() != 4 {
		t.Fatalf("expected first attempt plus three retries, got %d", f.offerHits.Load())
	}
}

func TestSearchRateLimitedAfterFirstPageIsPartial(t *testing.T) {
	f := newFakeAmadeus(t)
	f.offers = func(w http.ResponseWriter, r *http.Request, hit int) {
		if hit == 1 {
			writePage(w, []string{"1", "2"}, f.URL+offersPath+"?page=2")
			return
		}
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}

	res, err := f.provider().Search(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Partial || len(res.Offers) != 2 || res.Pages != 1 {
		t.Fatalf("expected partial first page, got %+v", res)
	}
}

func TestSearchRetriesServerErrors(t *testing.T) {
	f := newFakeAmadeus(t)
	f.offers = func(w http.ResponseWriter, r *http.Request, hit int) {
		if hit < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		writePage(w, []string{"1"}, "")
	}

	res, err := f.provider().Search(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Offers) != 1 || f.offerHits.Load() != 3 {
		t.Fatalf("expected success on third attempt, hits=%d", f.offerHits.Load())
	}
}

func TestSearchServerErrorsExhaustRetries(t *testing.T) {
	f := newFakeAmadeus(t)
	f.offers = func(w http.ResponseWriter, r *http.Request, hit int) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}

	_, err := f.provider().Search(context.Background(), testRequest())
	var unavailable *models.UpstreamUnavailableError
	if !errors.As(err, &unavailable) || unavailable.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected unavailable with status, got %v", err)
	}
}

func TestSearchDoesNotRetryRejections(t *testing.T) {
	f := newFakeAmadeus(t)
	f.offers = func(w http.ResponseWriter, r *http.Request, hit int) {
		http.Error(w, `{"errors":[{"detail":"invalid date"}]}`, http.StatusBadRequest)
	}

	_, err := f.provider().Search(context.Background(), testRequest())
	var rejected *models.UpstreamRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if rejected.Status != http.StatusBadRequest || rejected.Body == "" {
		t.Fatalf("expected status and body, got %+v", rejected)
	}
	if f.offerHits.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d requests", f.offerHits.Load())
	}
}

func TestSearchHonoursCancellation(t *testing.T) {
	f := newFakeAmadeus(t)
	f.offers = func(w http.ResponseWriter, r *http.Request, hit int) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}

	p := NewAmadeusProvider(AmadeusConfig{
		BaseURL:      f.URL,
		ClientID:     "key",
		ClientSecret: "secret",
		Retry:        retry.Policy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: time.Second},
		Limiter:      ratelimit.Unlimited(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Search(ctx, testRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLookupAirportPicksMatchingCode(t *testing.T) {
	f := newFakeAmadeus(t)
	f.locations = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("subType") != "AIRPORT" {
			http.Error(w, "bad subtype", http.StatusBadRequest)
			return
		}
		switch r.URL.Query().Get("keyword") {
		case "GRU":
			_, _ = w.Write([]byte(`{"data":[{"iataCode":"XYZ","name":"OTHER"},{"iataCode":"GRU","name":"GUARULHOS INTL"}]}`))
		default:
			_, _ = w.Write([]byte(`{"data":[]}`))
		}
	}

	p := f.provider()
	name, err := p.LookupAirport(context.Background(), "GRU")
	if err != nil || name != "GUARULHOS INTL" {
		t.Fatalf("unexpected lookup result %q, %v", name, err)
	}

	if _, err := p.LookupAirport(context.Background(), "ZZZ"); !errors.Is(err, ErrAirportNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
