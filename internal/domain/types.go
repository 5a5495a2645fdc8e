package domain

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	// StatusSkipped is set by the operator only, never by the engine.
	StatusSkipped TaskStatus = "skipped"
)

// EntryType distinguishes the two legs of a ledger transaction
type EntryType string

const (
	EntryDebit  EntryType = "debit"
	EntryCredit EntryType = "credit"
)

// Currency is the unit a ledger amount is denominated in
type Currency string

const (
	CurrencyTokens   Currency = "tokens"
	CurrencyUsdCents Currency = "usd_cents"
)

// Well-known ledger account and counterparty identifiers.
const (
	AccountSelf              = "self"
	CounterpartyProvider     = "provider"
	CounterpartySubscription = "subscription"
)
