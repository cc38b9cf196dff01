package providers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dharmasatrya/flightadvisor/internal/models"
	"github.com/dharmasatrya/flightadvisor/internal/ratelimit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTokenSource(f *fakeAmadeus, now func() time.Time) *TokenSource {
	return NewTokenSource(TokenConfig{
		ClientID:     "key",
		ClientSecret: "secret",
		TokenURL:     f.URL + tokenPath,
		Limiter:      ratelimit.Unlimited(),
		Retry:        fastPolicy(),
		Now:          now,
	})
}

func TestTokenIsReusedUntilRefreshWindow(t *testing.T) {
	f := newFakeAmadeus(t)
	clock := &fakeClock{now: time.Now()}
	ts := newTestTokenSource(f, clock.Now)
	ctx := context.Background()

	first, err := ts.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(24 * time.Minute)
	again, err := ts.Token(ctx)
	if err != nil || again != first {
		t.Fatalf("expected cached token %q, got %q (%v)", first, again, err)
	}

	// 1799s lifetime minus the five minute skew leaves just under 25 minutes.
	clock.Advance(time.Minute)
	refreshed, err := ts.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refreshed == first || f.exchanges.Load() != 2 {
		t.Fatalf("expected refresh inside skew window, exchanges=%d", f.exchanges.Load())
	}
}

func TestConcurrentCallersShareOneExchange(t *testing.T) {
	f := newFakeAmadeus(t)
	f.tokenDelay = 50 * time.Millisecond
	ts := newTestTokenSource(f, nil)

	var wg sync.WaitGroup
	tokens := make([]string, 10)
	errs := make([]error, 10)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = ts.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range tokens {
		if errs[i] != nil || tokens[i] != "tok-1" {
			t.Fatalf("caller %d got %q, %v", i, tokens[i], errs[i])
		}
	}
	if f.exchanges.Load() != 1 {
		t.Fatalf("expected one exchange, got %d", f.exchanges.Load())
	}
}

func TestWaiterCancellationDoesNotAbortExchange(t *testing.T) {
	f := newFakeAmadeus(t)
	f.tokenDelay = 50 * time.Millisecond
	ts := newTestTokenSource(f, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := ts.Token(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected caller deadline, got %v", err)
	}

	token, err := ts.Token(context.Background())
	if err != nil || token != "tok-1" {
		t.Fatalf("expected the detached exchange to complete, got %q, %v", token, err)
	}
	if f.exchanges.Load() != 1 {
		t.Fatalf("expected one exchange, got %d", f.exchanges.Load())
	}
}

func TestExchangeReusesTokenObtainedMeanwhile(t *testing.T) {
	f := newFakeAmadeus(t)
	ts := newTestTokenSource(f, nil)
	ctx := context.Background()

	first, err := ts.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A caller that saw no token before the exchange above completed.
	late, err := ts.exchange(ctx)
	if err != nil || late != first {
		t.Fatalf("expected %q, got %q (%v)", first, late, err)
	}
	if f.exchanges.Load() != 1 {
		t.Fatalf("expected one exchange, got %d", f.exchanges.Load())
	}
}

func TestInvalidateForcesNewExchange(t *testing.T) {
	f := newFakeAmadeus(t)
	ts := newTestTokenSource(f, nil)
	ctx := context.Background()

	first, _ := ts.Token(ctx)
	ts.Invalidate("some-other-token")
	if again, _ := ts.Token(ctx); again != first {
		t.Fatalf("invalidating a stale token must keep the current one")
	}

	ts.Invalidate(first)
	second, err := ts.Token(ctx)
	if err != nil || second == first {
		t.Fatalf("expected new token after invalidation, got %q, %v", second, err)
	}
}

func TestExchangeFailureSurfacesAuthError(t *testing.T) {
	f := newFakeAmadeus(t)
	f.tokenStatus = http.StatusUnauthorized
	ts := newTestTokenSource(f, nil)

	_, err := ts.Token(context.Background())
	var authErr *models.UpstreamAuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected UpstreamAuthError, got %v", err)
	}
	if f.exchanges.Load() != 4 {
		t.Fatalf("expected first exchange plus three retries, got %d", f.exchanges.Load())
	}
}
