package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

// Store is the persistence boundary for ledger entries and snapshots.
// Implementations must treat entries as append-only.
type Store interface {
	InsertEntry(entry *domain.LedgerEntry) error
	// EntriesSince returns all entries for the account created at or
	// after the given time, oldest first.
	EntriesSince(accountID string, since time.Time) ([]domain.LedgerEntry, error)
	InsertSnapshot(snap *domain.CreditSnapshot) error
	// LatestSnapshot returns the most recently captured snapshot for the
	// account, or nil when the account has none.
	LatestSnapshot(accountID string) (*domain.CreditSnapshot, error)
}

// Ledger records value transfers between the operator and the execution
// provider as double-entry rows. It only constructs and reads entries;
// storage is delegated to the injected Store.
type Ledger struct {
	store Store
	now   func() time.Time
}

// New creates a Ledger on top of the given store. A nil clock defaults
// to time.Now.
func New(store Store, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, now: now}
}

// RecordExecution writes the debit legs for one completed task run:
// always a cost entry in usd_cents, plus a token entry when token
// accounting is requested (tokens > 0). Both are debits from the
// operator's account with the provider as counterparty.
func (l *Ledger) RecordExecution(taskID, executionID string, tokens, costCents int64, description string) error {
	now := l.now()

	costEntry := &domain.LedgerEntry{
		ID:             uuid.New().String(),
		AccountID:      domain.AccountSelf,
		CounterpartyID: domain.CounterpartyProvider,
		EntryType:      domain.EntryDebit,
		Amount:         costCents,
		Currency:       domain.CurrencyUsdCents,
		Description:    description,
		TaskID:         taskID,
		ExecutionID:    executionID,
		CreatedAt:      now,
	}
	if err := l.store.InsertEntry(costEntry); err != nil {
		return fmt.Errorf("recording cost entry: %w", err)
	}

	if tokens > 0 {
		tokenEntry := &domain.LedgerEntry{
			ID:             uuid.New().String(),
			AccountID:      domain.AccountSelf,
			CounterpartyID: domain.CounterpartyProvider,
			EntryType:      domain.EntryDebit,
			Amount:         tokens,
			Currency:       domain.CurrencyTokens,
			Description:    description,
			TaskID:         taskID,
			ExecutionID:    executionID,
			CreatedAt:      now,
		}
		if err := l.store.InsertEntry(tokenEntry); err != nil {
			return fmt.Errorf("recording token entry: %w", err)
		}
	}

	return nil
}

// RecordCredit writes a single credit entry for the account, with the
// subscription as counterparty. Used when a billing window replenishes.
func (l *Ledger) RecordCredit(accountID string, amount int64, currency domain.Currency, description string) error {
	entry := &domain.LedgerEntry{
		ID:             uuid.New().String(),
		AccountID:      accountID,
		CounterpartyID: domain.CounterpartySubscription,
		EntryType:      domain.EntryCredit,
		Amount:         amount,
		Currency:       currency,
		Description:    description,
		CreatedAt:      l.now(),
	}
	if err := l.store.InsertEntry(entry); err != nil {
		return fmt.Errorf("recording credit entry: %w", err)
	}
	return nil
}

// SpentSince sums the usd_cents debit entries for the account created at
// or after the given time. Token entries and credits are ignored.
func (l *Ledger) SpentSince(accountID string, since time.Time) (int64, error) {
	entries, err := l.store.EntriesSince(accountID, since)
	if err != nil {
		return 0, fmt.Errorf("loading entries: %w", err)
	}

	var total int64
	for _, e := range entries {
		if e.EntryType == domain.EntryDebit && e.Currency == domain.CurrencyUsdCents {
			total += e.Amount
		}
	}
	return total, nil
}

// TakeSnapshot captures the account's remaining balances at this instant
func (l *Ledger) TakeSnapshot(accountID string, tokenBalance, usdCentsBalance int64, windowResetAt time.Time) (*domain.CreditSnapshot, error) {
	snap := &domain.CreditSnapshot{
		ID:              uuid.New().String(),
		AccountID:       accountID,
		TokenBalance:    tokenBalance,
		UsdCentsBalance: usdCentsBalance,
		WindowResetAt:   windowResetAt,
		CapturedAt:      l.now(),
	}
	if err := l.store.InsertSnapshot(snap); err != nil {
		return nil, fmt.Errorf("storing snapshot: %w", err)
	}
	return snap, nil
}

// LatestSnapshot returns the newest snapshot for the account, or nil
// when none has been taken.
func (l *Ledger) LatestSnapshot(accountID string) (*domain.CreditSnapshot, error) {
	return l.store.LatestSnapshot(accountID)
}
