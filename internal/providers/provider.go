package providers

import (
	"context"
	"errors"

	"github.com/dharmasatrya/flightadvisor/internal/models"
)

// Provider executes an authenticated offer search against one upstream.
// Offers are returned in provider order; sorting is left to callers.
type Provider interface {
	Name() string
	Search(ctx context.Context, req models.SearchRequest) (*models.RawSearchResult, error)
}

var ErrAirportNotFound = errors.New("airport not found")

type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Err:      err,
	}
}
