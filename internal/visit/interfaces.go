package visit

import (
	"context"
	"time"

	"github.com/richxcame/visitorguard/internal/provider"
)

// ProfileRepository is the profile store contract. Lookup misses return
// (nil, nil); every error is a store failure the engine treats as fatal for
// the request.
type ProfileRepository interface {
	// GetByVisitorID does a point lookup by the stable primary key
	GetByVisitorID(ctx context.Context, visitorID string) (*VisitorProfile, error)
	// GetLatestByLinkedID returns the most recently seen profile sharing a
	// linked identifier
	GetLatestByLinkedID(ctx context.Context, linkedID string) (*VisitorProfile, error)
	// ListRecent returns up to limit profiles ordered by last seen descending
	ListRecent(ctx context.Context, limit int) ([]*VisitorProfile, error)
	// CountRecentByIP counts profiles whose last known address matches ip and
	// whose last visit falls inside [since, now]
	CountRecentByIP(ctx context.Context, ip string, since time.Time) (int, error)
	// Upsert idempotently writes a profile keyed by visitor id without ever
	// overwriting first_seen_at
	Upsert(ctx context.Context, profile *VisitorProfile) error
}

// EventDetailFetcher fetches server-side event details from the
// fingerprinting provider
type EventDetailFetcher interface {
	EventDetail(ctx context.Context, requestID string) (*provider.EventDetail, error)
}
