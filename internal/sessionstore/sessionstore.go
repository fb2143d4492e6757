package sessionstore

import (
	"context"
	"errors"
	"onlinemis-backend/internal/scrapers/onlinemis"
)

var ErrNotFound = errors.New("session not found")

// Store maps opaque session ids handed to API callers to the upstream
// session they logged in with.
type Store interface {
	// Get returns ErrNotFound if there is no session with the given id.
	Get(ctx context.Context, id string) (onlinemis.UpstreamSession, error)
	Set(ctx context.Context, id string, session onlinemis.UpstreamSession) error
	Has(ctx context.Context, id string) (bool, error)
	// Destroy does nothing if the session does not exist.
	Destroy(ctx context.Context, id string) error
}
