// Package budget answers the one question the governor keeps asking:
// how many cents are left in the current credit window, and when does
// the window reset.
package budget

import (
	"fmt"
	"time"

	"github.com/hochfrequenz/claude-nightmode/internal/ledger"
)

// Source reports the spendable balance for the current credit window.
type Source interface {
	Remaining() (remainingCents int64, resetAt time.Time, err error)
}

// SnapshotSource derives the balance from the most recent credit
// snapshot, minus everything the ledger recorded since it was taken.
type SnapshotSource struct {
	ledger    *ledger.Ledger
	accountID string
}

func NewSnapshotSource(l *ledger.Ledger, accountID string) *SnapshotSource {
	return &SnapshotSource{ledger: l, accountID: accountID}
}

func (s *SnapshotSource) Remaining() (int64, time.Time, error) {
	snap, err := s.ledger.LatestSnapshot(s.accountID)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("loading credit snapshot: %w", err)
	}
	if snap == nil {
		return 0, time.Time{}, fmt.Errorf("no credit snapshot recorded for account %q", s.accountID)
	}

	spent, err := s.ledger.SpentSince(s.accountID, snap.CapturedAt)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("summing spend since snapshot: %w", err)
	}

	remaining := snap.UsdCentsBalance - spent
	if remaining < 0 {
		remaining = 0
	}
	return remaining, snap.WindowResetAt, nil
}

// FixedSource reports a constant balance. Used by dry runs and tests.
type FixedSource struct {
	Cents   int64
	ResetAt time.Time
}

func (f FixedSource) Remaining() (int64, time.Time, error) {
	return f.Cents, f.ResetAt, nil
}

// NextReset returns the first occurrence of the window reset hour
// strictly after now, in now's location.
func NextReset(now time.Time, resetHour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), resetHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
