package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dharmasatrya/flightadvisor/internal/logging"
	"github.com/dharmasatrya/flightadvisor/internal/models"
	"github.com/dharmasatrya/flightadvisor/internal/ratelimit"
	"github.com/dharmasatrya/flightadvisor/internal/retry"
)

const (
	DefaultAmadeusBaseURL = "https://test.api.amadeus.com"

	tokenPath     = "/v1/security/oauth2/token"
	offersPath    = "/v2/shopping/flight-offers"
	locationsPath = "/v1/reference-data/locations"

	// pageSize is the largest page the offers endpoint accepts.
	pageSize     = 250
	maxBodyBytes = 16 << 20
)

type AmadeusConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Currency     string
	Timeout      time.Duration
	Retry        retry.Policy
	Limiter      *ratelimit.EndpointLimiter
	Logger       *zap.Logger
	HTTPClient   *http.Client
	Now          func() time.Time
}

type AmadeusProvider struct {
	baseURL  string
	currency string
	client   *http.Client
	tokens   *TokenSource
	limiter  *ratelimit.EndpointLimiter
	policy   retry.Policy
	logger   *zap.Logger
}

type offersPage struct {
	Data         []json.RawMessage   `json:"data"`
	Dictionaries models.Dictionaries `json:"dictionaries"`
	Meta         struct {
		Links struct {
			Next string `json:"next"`
		} `json:"links"`
	} `json:"meta"`
}

type locationsPage struct {
	Data []struct {
		IataCode string `json:"iataCode"`
		Name     string `json:"name"`
	} `json:"data"`
}

func NewAmadeusProvider(cfg AmadeusConfig) *AmadeusProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAmadeusBaseURL
	}
	if cfg.Currency == "" {
		cfg.Currency = "BRL"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	logger := logging.Component(cfg.Logger, "amadeus")

	return &AmadeusProvider{
		baseURL:  baseURL,
		currency: cfg.Currency,
		client:   cfg.HTTPClient,
		tokens: NewTokenSource(TokenConfig{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     baseURL + tokenPath,
			HTTPClient:   cfg.HTTPClient,
			Limiter:      cfg.Limiter,
			Retry:        cfg.Retry,
			Logger:       logger,
			Now:          cfg.Now,
		}),
		limiter: cfg.Limiter,
		policy:  cfg.Retry,
		logger:  logger,
	}
}

func (p *AmadeusProvider) Name() string {
	return "amadeus"
}

// Search fetches offer pages until the upstream has no next link or
// req.MaxResults offers have been collected.
func (p *AmadeusProvider) Search(ctx context.Context, req models.SearchRequest) (*models.RawSearchResult, error) {
	result := &models.RawSearchResult{Offers: make([]json.RawMessage, 0)}

	next := p.baseURL + offersPath + "?" + p.searchQuery(req)
	for next != "" && len(result.Offers) < req.MaxResults {
		p.logger.Info("fetching flight offers", zap.Int("page", result.Pages+1), zap.String("url", next))

		page, err := p.fetchPage(ctx, next)
		if err != nil {
			var limited *models.UpstreamRateLimitedError
			if errors.As(err, &limited) {
				if result.Pages > 0 {
					p.logger.Warn("rate limited after partial results",
						zap.Int("pages", result.Pages),
						zap.Int("offers", len(result.Offers)),
					)
					result.Partial = true
					break
				}
				return nil, NewProviderError(p.Name(), &models.UpstreamUnavailableError{Status: http.StatusTooManyRequests, Err: err})
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, NewProviderError(p.Name(), err)
		}

		result.Pages++
		result.Offers = append(result.Offers, page.Data...)
		result.Dictionaries.Merge(page.Dictionaries)
		next = page.Meta.Links.Next
	}

	if len(result.Offers) > req.MaxResults {
		result.Offers = result.Offers[:req.MaxResults]
	}

	p.logger.Info("flight search finished",
		zap.Int("pages", result.Pages),
		zap.Int("offers", len(result.Offers)),
		zap.Bool("partial", result.Partial),
	)
	return result, nil
}

// searchQuery builds the first-page parameters. Later pages follow the next
// link verbatim, which already carries them.
func (p *AmadeusProvider) searchQuery(req models.SearchRequest) string {
	q := url.Values{}
	q.Set("originLocationCode", req.Origin)
	q.Set("destinationLocationCode", req.Destination)
	q.Set("departureDate", req.DepartureDate.String())
	if req.IsRoundTrip() {
		q.Set("returnDate", req.ReturnDate.String())
	}
	q.Set("adults", strconv.Itoa(req.Passengers))
	q.Set("travelClass", string(req.TravelClass))
	q.Set("nonStop", strconv.FormatBool(req.NonStop))
	q.Set("currencyCode", p.currency)
	q.Set("max", strconv.Itoa(pageSize))
	return q.Encode()
}

func (p *AmadeusProvider) fetchPage(ctx context.Context, pageURL string) (*offersPage, error) {
	policy := p.policy
	policy.Notify = func(attempt int, err error, delay time.Duration) {
		p.logger.Warn("offer request failed, backing off",
			zap.Int("retry", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	var page offersPage
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		page = offersPage{}
		body, err := p.getAuthorized(ctx, ratelimit.EndpointOffers, pageURL)
		if err != nil {
			return classifyForRetry(ctx, err)
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return retry.Permanent(&models.UpstreamUnavailableError{
				Status: http.StatusOK,
				Err:    fmt.Errorf("decode offers page: %w", err),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// LookupAirport resolves an IATA code to the airport's display name with a
// single request; callers handle fallbacks.
func (p *AmadeusProvider) LookupAirport(ctx context.Context, code string) (string, error) {
	q := url.Values{}
	q.Set("subType", "AIRPORT")
	q.Set("keyword", code)

	body, err := p.getAuthorized(ctx, ratelimit.EndpointLocations, p.baseURL+locationsPath+"?"+q.Encode())
	if err != nil {
		return "", err
	}

	var page locationsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return "", fmt.Errorf("decode locations: %w", err)
	}
	if len(page.Data) == 0 {
		return "", ErrAirportNotFound
	}

	name := page.Data[0].Name
	for _, loc := range page.Data {
		if strings.EqualFold(loc.IataCode, code) {
			name = loc.Name
			break
		}
	}
	if name == "" {
		return "", ErrAirportNotFound
	}
	return name, nil
}

// getAuthorized performs one GET with the cached bearer token. A 401 drops
// the token and repeats the request exactly once with a fresh one.
func (p *AmadeusProvider) getAuthorized(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		token, err := p.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		body, status, err := p.get(ctx, endpoint, rawURL, token)
		if err != nil {
			return nil, err
		}

		switch {
		case status == http.StatusOK:
			return body, nil
		case status == http.StatusUnauthorized:
			p.tokens.Invalidate(token)
			if attempt == 0 {
				p.logger.Warn("access token rejected, refreshing")
				continue
			}
			return nil, &models.UpstreamAuthError{Err: fmt.Errorf("token rejected twice: %s", truncate(body))}
		case status == http.StatusTooManyRequests:
			return nil, &models.UpstreamRateLimitedError{Body: truncate(body)}
		case status >= 500:
			return nil, &models.UpstreamUnavailableError{Status: status, Err: errors.New(truncate(body))}
		default:
			return nil, &models.UpstreamRejectedError{Status: status, Body: truncate(body)}
		}
	}
}

func (p *AmadeusProvider) get(ctx context.Context, endpoint, rawURL, token string) ([]byte, int, error) {
	if err := p.limiter.Wait(ctx, endpoint); err != nil {
		return nil, 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, 0, &models.UpstreamUnavailableError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, &models.UpstreamUnavailableError{Status: resp.StatusCode, Err: err}
	}
	return body, resp.StatusCode, nil
}

// classifyForRetry marks errors that another attempt cannot fix.
func classifyForRetry(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return retry.Permanent(ctx.Err())
	}
	switch models.KindOf(err) {
	case models.KindUpstreamRateLimited, models.KindUpstreamUnavailable:
		return err
	default:
		return retry.Permanent(err)
	}
}

func truncate(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
