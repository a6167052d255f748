package subscription

import (
	"context"
	"sync"
	"time"
)

// EventLedger remembers provider event IDs that were fully applied.
// It is a shortcut only: conditional writes in the Store remain the
// authority on idempotency, so a lost or expired entry is harmless.
type EventLedger interface {
	// Processed reports whether the event ID was recorded.
	Processed(ctx context.Context, eventID string) (bool, error)
	// MarkProcessed records the event ID for ttl.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error
}

// MemoryLedger is an in-process EventLedger.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Processed implements EventLedger.
func (l *MemoryLedger) Processed(ctx context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.entries[eventID]
	if !ok {
		return false, nil
	}
	if !l.now().Before(exp) {
		delete(l.entries, eventID)
		return false, nil
	}
	return true, nil
}

// MarkProcessed implements EventLedger. Expired entries are swept on write.
func (l *MemoryLedger) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, exp := range l.entries {
		if !now.Before(exp) {
			delete(l.entries, id)
		}
	}
	l.entries[eventID] = now.Add(ttl)
	return nil
}
