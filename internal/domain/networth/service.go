package networth

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"nestegg/internal/domain/account"
)

// Service derives net-worth figures from the append-only balance
// snapshot history. Nothing here is persisted; the series is computed
// on read.
type Service struct {
	accounts account.Repository
}

func NewService(accounts account.Repository) *Service {
	return &Service{accounts: accounts}
}

// GetTimeSeries returns one point per day on which any of the user's
// accounts took a balance snapshot, oldest first. Accounts without a
// snapshot on a given day carry their most recent earlier value
// forward. Liability accounts subtract the absolute value of their
// balance. A user with no snapshot history gets an empty series.
func (s *Service) GetTimeSeries(ctx context.Context, userID string) ([]Point, error) {
	accounts, balances, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(balances) == 0 {
		return []Point{}, nil
	}

	histories := buildHistories(balances)
	dates := snapshotDates(balances)

	cursors := make(map[string]int, len(histories))
	points := make([]Point, 0, len(dates))
	for _, date := range dates {
		total := decimal.Zero
		for accountID, history := range histories {
			i := cursors[accountID]
			for i < len(history) && !history[i].EffectiveDate().After(date) {
				i++
			}
			cursors[accountID] = i
			if i == 0 {
				continue // no snapshot yet by this date
			}
			total = total.Add(contribution(accounts[accountID], history[i-1].Amount))
		}
		points = append(points, Point{Date: date, NetWorth: total})
	}
	return points, nil
}

// GetSummary returns the latest point with its per-account breakdown.
func (s *Service) GetSummary(ctx context.Context, userID string) (*Summary, error) {
	accounts, balances, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(balances) == 0 {
		return &Summary{NetWorth: decimal.Zero, Contributions: []AccountContribution{}}, nil
	}

	histories := buildHistories(balances)
	var latest time.Time
	for _, history := range histories {
		if d := history[len(history)-1].EffectiveDate(); d.After(latest) {
			latest = d
		}
	}

	summary := &Summary{Date: latest, NetWorth: decimal.Zero, Contributions: []AccountContribution{}}
	for accountID, history := range histories {
		amount := contribution(accounts[accountID], history[len(history)-1].Amount)
		summary.NetWorth = summary.NetWorth.Add(amount)

		c := AccountContribution{AccountID: accountID, Amount: amount}
		if acc := accounts[accountID]; acc != nil {
			c.AccountName = acc.Name
			c.Liability = acc.IsLiability()
		}
		summary.Contributions = append(summary.Contributions, c)
	}
	sort.Slice(summary.Contributions, func(i, j int) bool {
		return summary.Contributions[i].AccountID < summary.Contributions[j].AccountID
	})
	return summary, nil
}

func (s *Service) load(ctx context.Context, userID string) (map[string]*account.Account, []account.Balance, error) {
	accs, err := s.accounts.ListByUserID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	byID := make(map[string]*account.Account, len(accs))
	for _, a := range accs {
		byID[a.ID] = a
	}

	balances, err := s.accounts.ListBalancesByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list balance history: %w", err)
	}
	return byID, balances, nil
}

// contribution signs a balance for the net-worth sum: liabilities
// always subtract their magnitude, regardless of how the institution
// signs the raw figure.
func contribution(acc *account.Account, amount decimal.Decimal) decimal.Decimal {
	if acc != nil && acc.IsLiability() {
		return amount.Abs().Neg()
	}
	return amount
}

// buildHistories groups snapshots per account, oldest first. Same-day
// snapshots are ordered by fetch time so the forward fill lands on the
// freshest one.
func buildHistories(balances []account.Balance) map[string][]account.Balance {
	histories := make(map[string][]account.Balance)
	for _, b := range balances {
		histories[b.AccountID] = append(histories[b.AccountID], b)
	}
	for _, history := range histories {
		sort.SliceStable(history, func(i, j int) bool {
			di, dj := history[i].EffectiveDate(), history[j].EffectiveDate()
			if di.Equal(dj) {
				return history[i].RetrievedAt.Before(history[j].RetrievedAt)
			}
			return di.Before(dj)
		})
	}
	return histories
}

func snapshotDates(balances []account.Balance) []time.Time {
	seen := make(map[time.Time]struct{})
	dates := make([]time.Time, 0)
	for _, b := range balances {
		d := b.EffectiveDate()
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
