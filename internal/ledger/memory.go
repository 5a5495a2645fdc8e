package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/hochfrequenz/claude-nightmode/internal/domain"
)

// MemoryStore is an in-memory Store used in tests and dry runs
type MemoryStore struct {
	mu        sync.Mutex
	entries   []domain.LedgerEntry
	snapshots []domain.CreditSnapshot
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) InsertEntry(entry *domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MemoryStore) EntriesSince(accountID string, since time.Time) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.AccountID == accountID && !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) InsertSnapshot(snap *domain.CreditSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, *snap)
	return nil
}

func (m *MemoryStore) LatestSnapshot(accountID string) (*domain.CreditSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *domain.CreditSnapshot
	for i := range m.snapshots {
		s := &m.snapshots[i]
		if s.AccountID != accountID {
			continue
		}
		if latest == nil || s.CapturedAt.After(latest.CapturedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// Entries returns a copy of all recorded entries, oldest first
func (m *MemoryStore) Entries() []domain.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out
}
