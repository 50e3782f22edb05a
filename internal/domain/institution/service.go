package institution

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"nestegg/internal/infrastructure/bankdata"
)

// Service serves the institution directory through a per-country
// read-through cache. Directory listings change rarely, so the
// aggregator is only consulted once the cache has aged out.
type Service struct {
	repo       Repository
	provider   bankdata.Provider
	maxAgeDays int
	now        func() time.Time
}

func NewService(repo Repository, provider bankdata.Provider, maxAgeDays int) *Service {
	return &Service{
		repo:       repo,
		provider:   provider,
		maxAgeDays: maxAgeDays,
		now:        time.Now,
	}
}

// GetInstitutions returns the directory for a country. A fresh cache is
// served locally; a stale or empty one triggers a refresh from the
// aggregator. When the refresh fails but stale rows exist, the stale
// rows are served rather than the error.
func (s *Service) GetInstitutions(ctx context.Context, countryCode string) ([]Metadata, error) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	if countryCode == "" {
		return nil, ErrCountryCodeRequired
	}

	fresh, err := s.IsCacheFresh(ctx, countryCode)
	if err != nil {
		return nil, err
	}
	if fresh {
		return s.repo.ListByCountry(ctx, countryCode)
	}

	if err := s.Refresh(ctx, countryCode); err != nil {
		cached, listErr := s.repo.ListByCountry(ctx, countryCode)
		if listErr == nil && len(cached) > 0 {
			log.Printf("institution refresh for %s failed, serving %d stale entries: %v", countryCode, len(cached), err)
			return cached, nil
		}
		return nil, err
	}
	return s.repo.ListByCountry(ctx, countryCode)
}

// GetInstitution returns one cached entry, falling back to a live
// aggregator read for institutions outside the cached countries.
func (s *Service) GetInstitution(ctx context.Context, id string) (*Metadata, error) {
	cached, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	remote, err := s.provider.GetInstitution(ctx, id)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return nil, ErrInstitutionNotFound
	}
	country := ""
	if len(remote.Countries) > 0 {
		country = remote.Countries[0]
	}
	meta := FromBankData(remote, country)
	return &meta, nil
}

// IsCacheFresh reports whether the country's cache is within its
// maximum age. A never-refreshed country is stale.
func (s *Service) IsCacheFresh(ctx context.Context, countryCode string) (bool, error) {
	meta, err := s.repo.GetCacheMetadata(ctx, countryCode)
	if err != nil {
		return false, fmt.Errorf("failed to read cache metadata: %w", err)
	}
	if meta == nil {
		return false, nil
	}
	return Fresh(meta.LastRefreshed, s.maxAgeDays, s.now()), nil
}

// Refresh fetches the country's directory and makes the cache match it
// exactly, then stamps the cache metadata.
func (s *Service) Refresh(ctx context.Context, countryCode string) error {
	listing, err := s.provider.GetInstitutions(ctx, countryCode)
	if err != nil {
		return fmt.Errorf("failed to fetch institutions for %s: %w", countryCode, err)
	}

	rows := make([]Metadata, 0, len(listing))
	for i := range listing {
		rows = append(rows, FromBankData(&listing[i], countryCode))
	}

	written, err := s.repo.ReplaceForCountry(ctx, countryCode, rows)
	if err != nil {
		return fmt.Errorf("failed to save institutions for %s: %w", countryCode, err)
	}

	if err := s.repo.SaveCacheMetadata(ctx, CacheMetadata{
		CountryCode:   countryCode,
		LastRefreshed: s.now(),
		Count:         len(rows),
	}); err != nil {
		return fmt.Errorf("failed to save cache metadata for %s: %w", countryCode, err)
	}

	log.Printf("refreshed %d institutions for %s (%d rows written)", len(rows), countryCode, written)
	return nil
}
