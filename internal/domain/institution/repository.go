package institution

import "context"

// Repository persists the per-country institution directory cache.
type Repository interface {
	// ListByCountry returns the cached directory, name ascending.
	ListByCountry(ctx context.Context, countryCode string) ([]Metadata, error)
	// GetByID returns nil, nil when the institution is not cached.
	GetByID(ctx context.Context, id string) (*Metadata, error)
	// ReplaceForCountry makes the cache match exactly the given set:
	// rows are upserted and cached entries absent from the set are
	// deleted. An empty set clears the country. Runs in one
	// transaction and returns the number of rows written.
	ReplaceForCountry(ctx context.Context, countryCode string, institutions []Metadata) (int64, error)

	// GetCacheMetadata returns nil, nil when the country was never
	// refreshed.
	GetCacheMetadata(ctx context.Context, countryCode string) (*CacheMetadata, error)
	SaveCacheMetadata(ctx context.Context, meta CacheMetadata) error
}
