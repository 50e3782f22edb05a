package networth

import (
	"time"

	"github.com/shopspring/decimal"
)

// Point is net worth at the close of one day, summed across every
// account the user had a balance snapshot for by that day.
type Point struct {
	Date     time.Time       `json:"date"`
	NetWorth decimal.Decimal `json:"netWorth"`
}

// AccountContribution breaks a point down by account for the latest
// date in the series.
type AccountContribution struct {
	AccountID   string          `json:"accountId"`
	AccountName string          `json:"accountName"`
	Amount      decimal.Decimal `json:"amount"`
	Liability   bool            `json:"liability"`
}

// Summary is the latest point plus its per-account breakdown.
type Summary struct {
	Date          time.Time             `json:"date"`
	NetWorth      decimal.Decimal       `json:"netWorth"`
	Contributions []AccountContribution `json:"contributions"`
}
