package taskstore

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

const entryColumns = `id, account_id, counterparty_id, entry_type, amount, currency, description, task_id, execution_id, created_at`

// InsertEntry appends a ledger entry. Entries are never updated or
// deleted afterwards.
func (s *Store) InsertEntry(entry *domain.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.AccountID,
		entry.CounterpartyID,
		string(entry.EntryType),
		entry.Amount,
		string(entry.Currency),
		entry.Description,
		entry.TaskID,
		entry.ExecutionID,
		entry.CreatedAt,
	)
	return err
}

// EntriesSince returns all entries for an account created at or after
// the given time, oldest first
func (s *Store) EntriesSince(accountID string, since time.Time) ([]domain.LedgerEntry, error) {
	rows, err := s.db.Query(`
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE account_id = ? AND created_at >= ?
		ORDER BY created_at ASC
	`, accountID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListEntries returns the most recent entries for an account, newest
// first, up to limit (0 means no limit)
func (s *Store) ListEntries(accountID string, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE account_id = ? ORDER BY created_at DESC`
	args := []interface{}{accountID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var entryType, currency string
		var description, taskID, executionID sql.NullString

		err := rows.Scan(&e.ID, &e.AccountID, &e.CounterpartyID, &entryType, &e.Amount, &currency,
			&description, &taskID, &executionID, &e.CreatedAt)
		if err != nil {
			return nil, err
		}

		e.EntryType = domain.EntryType(entryType)
		e.Currency = domain.Currency(currency)
		e.Description = description.String
		e.TaskID = taskID.String
		e.ExecutionID = executionID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// InsertSnapshot stores a credit snapshot
func (s *Store) InsertSnapshot(snap *domain.CreditSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO credit_snapshots (id, account_id, token_balance, usd_cents_balance, window_reset_at, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		snap.ID,
		snap.AccountID,
		snap.TokenBalance,
		snap.UsdCentsBalance,
		snap.WindowResetAt,
		snap.CapturedAt,
	)
	return err
}

// LatestSnapshot returns the most recently captured snapshot for an
// account, or nil when the account has none
func (s *Store) LatestSnapshot(accountID string) (*domain.CreditSnapshot, error) {
	row := s.db.QueryRow(`
		SELECT id, account_id, token_balance, usd_cents_balance, window_reset_at, captured_at
		FROM credit_snapshots WHERE account_id = ?
		ORDER BY captured_at DESC LIMIT 1
	`, accountID)

	var snap domain.CreditSnapshot
	err := row.Scan(&snap.ID, &snap.AccountID, &snap.TokenBalance, &snap.UsdCentsBalance,
		&snap.WindowResetAt, &snap.CapturedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
