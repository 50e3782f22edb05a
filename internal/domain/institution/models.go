package institution

import (
	"errors"
	"time"

	"nestegg/internal/infrastructure/bankdata"
)

// Domain errors
var (
	ErrCountryCodeRequired = errors.New("country code is required")
	ErrInstitutionNotFound = errors.New("institution not found")
)

// Metadata is a cached institution directory entry for one country.
// The cache holds exactly what the aggregator last listed: entries the
// aggregator stops listing are removed on the next refresh.
type Metadata struct {
	ID                   string   `json:"id"`
	CountryCode          string   `json:"countryCode"`
	Name                 string   `json:"name"`
	BIC                  string   `json:"bic,omitempty"`
	LogoURL              string   `json:"logoUrl,omitempty"`
	TransactionTotalDays int      `json:"transactionTotalDays"`
	MaxAccessValidDays   int      `json:"maxAccessValidDays"`
	Countries            []string `json:"countries,omitempty"`
}

// CacheMetadata records when a country's directory was last refreshed.
type CacheMetadata struct {
	CountryCode   string    `json:"countryCode"`
	LastRefreshed time.Time `json:"lastRefreshed"`
	Count         int       `json:"count"`
}

// Fresh reports whether a refresh performed at lastRefreshed is still
// usable at now. The cutoff is exclusive: a cache exactly maxAgeDays
// old is stale.
func Fresh(lastRefreshed time.Time, maxAgeDays int, now time.Time) bool {
	if maxAgeDays <= 0 {
		return false
	}
	return now.Sub(lastRefreshed) < time.Duration(maxAgeDays)*24*time.Hour
}

// FromBankData maps an aggregator directory entry onto a cache row.
func FromBankData(in *bankdata.Institution, countryCode string) Metadata {
	return Metadata{
		ID:                   in.ID,
		CountryCode:          countryCode,
		Name:                 in.Name,
		BIC:                  in.BIC,
		LogoURL:              in.Logo,
		TransactionTotalDays: in.GetTransactionTotalDays(),
		MaxAccessValidDays:   in.GetMaxAccessValidForDays(),
		Countries:            in.Countries,
	}
}
