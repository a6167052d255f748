package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventLedger remembers processed provider event IDs in Redis so duplicate
// webhook deliveries can be acknowledged without touching the provider or
// the store. Entries expire after the given TTL.
type EventLedger struct {
	client redis.UniversalClient
	prefix string
}

// NewEventLedger creates a ledger storing keys under prefix.
func NewEventLedger(client redis.UniversalClient, prefix string) *EventLedger {
	if prefix == "" {
		prefix = "billing:event:"
	}
	return &EventLedger{client: client, prefix: prefix}
}

// Processed reports whether eventID was recorded and has not expired.
func (l *EventLedger) Processed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	n, err := l.client.Exists(ctx, l.prefix+eventID).Result()
	if err != nil {
		return false, errors.Join(ErrLedgerUnavailable, err)
	}
	return n > 0, nil
}

// MarkProcessed records eventID for ttl. Recording an existing ID is a no-op
// and keeps the original expiry.
func (l *EventLedger) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	if eventID == "" {
		return nil
	}
	err := l.client.SetArgs(ctx, l.prefix+eventID, time.Now().UTC().Unix(), redis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return errors.Join(ErrLedgerUnavailable, err)
	}
	return nil
}
