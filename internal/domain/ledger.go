package domain

import "time"

// LedgerEntry is one leg of a double-entry transaction between the
// operator and the execution provider. Entries are append-only;
// corrections are new offsetting entries, never edits.
type LedgerEntry struct {
	ID             string
	AccountID      string
	CounterpartyID string
	EntryType      EntryType
	Amount         int64
	Currency       Currency
	Description    string
	TaskID         string
	ExecutionID    string
	CreatedAt      time.Time
}

// CreditSnapshot is a point-in-time capture of remaining balances,
// read back as "latest per account"
type CreditSnapshot struct {
	ID              string
	AccountID       string
	TokenBalance    int64
	UsdCentsBalance int64
	WindowResetAt   time.Time
	CapturedAt      time.Time
}
