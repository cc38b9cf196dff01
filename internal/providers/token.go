package providers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/dharmasatrya/flightadvisor/internal/models"
	"github.com/dharmasatrya/flightadvisor/internal/ratelimit"
	"github.com/dharmasatrya/flightadvisor/internal/retry"
)

const (
	// RefreshSkew is how long before expiry a token stops being handed out.
	RefreshSkew = 5 * time.Minute

	defaultTokenLifetime = 1799 * time.Second
	exchangeTimeout      = 60 * time.Second
)

type TokenConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	HTTPClient   *http.Client
	Limiter      *ratelimit.EndpointLimiter
	Retry        retry.Policy
	Logger       *zap.Logger
	// Now overrides the clock used for expiry decisions.
	Now func() time.Time
}

// TokenSource caches one client-credentials access token. A token is Valid
// until RefreshSkew before it expires; callers arriving while an exchange is
// running wait on that exchange instead of starting their own.
type TokenSource struct {
	credentials clientcredentials.Config
	httpClient  *http.Client
	limiter     *ratelimit.EndpointLimiter
	policy      retry.Policy
	logger      *zap.Logger
	now         func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

func NewTokenSource(cfg TokenConfig) *TokenSource {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenSource{
		credentials: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: cfg.HTTPClient,
		limiter:    cfg.Limiter,
		policy:     cfg.Retry,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
}

// Token returns a valid bearer token, exchanging credentials when none is
// cached or the cached one is about to expire.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	if token, ok := ts.cached(); ok {
		return token, nil
	}

	ch := ts.group.DoChan("token", func() (any, error) {
		return ts.exchange(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate forgets token if it is still the cached one. Called after the
// upstream rejects it with 401.
func (ts *TokenSource) Invalidate(token string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token == token {
		ts.token = ""
		ts.expiresAt = time.Time{}
	}
}

func (ts *TokenSource) cached() (string, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token == "" || !ts.now().Before(ts.expiresAt.Add(-RefreshSkew)) {
		return "", false
	}
	return ts.token, true
}

// exchange checks the cache again because a concurrent exchange may have
// finished after the caller's own check.
func (ts *TokenSource) exchange(ctx context.Context) (string, error) {
	if token, ok := ts.cached(); ok {
		return token, nil
	}
	return ts.refresh(ctx)
}

// refresh runs detached from the first caller's cancellation so that the
// other waiters still get a token.
func (ts *TokenSource) refresh(parent context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), exchangeTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, ts.httpClient)

	policy := ts.policy
	policy.Notify = func(attempt int, err error, delay time.Duration) {
		ts.logger.Warn("token exchange failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	var tok *oauth2.Token
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		if err := ts.limiter.Wait(ctx, ratelimit.EndpointToken); err != nil {
			return err
		}
		var err error
		tok, err = ts.credentials.Token(ctx)
		return err
	})
	if err != nil {
		ts.logger.Error("token exchange failed", zap.Error(err))
		return "", &models.UpstreamAuthError{Err: err}
	}
	if tok.AccessToken == "" {
		return "", &models.UpstreamAuthError{Err: errors.New("empty access token")}
	}

	lifetime := defaultTokenLifetime
	if !tok.Expiry.IsZero() {
		lifetime = time.Until(tok.Expiry)
	}

	ts.mu.Lock()
	ts.token = tok.AccessToken
	ts.expiresAt = ts.now().Add(lifetime)
	ts.mu.Unlock()

	ts.logger.Info("obtained access token", zap.Duration("lifetime", lifetime))
	return tok.AccessToken, nil
}
