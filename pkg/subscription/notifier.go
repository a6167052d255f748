package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingsync/pkg/logger"
)

// TrialNotice tells a user their trial is about to end.
type TrialNotice struct {
	UserID      uuid.UUID
	Email       string // Billing email from the provider customer, may be empty
	TrialEndsAt time.Time
}

// Notifier receives informational lifecycle notices. Failures are logged by
// the caller and never fail event processing.
type Notifier interface {
	TrialWillEnd(ctx context.Context, notice TrialNotice) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, notice TrialNotice) error

func (f NotifierFunc) TrialWillEnd(ctx context.Context, notice TrialNotice) error {
	return f(ctx, notice)
}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

// TrialWillEnd implements Notifier.
func (n *LogNotifier) TrialWillEnd(ctx context.Context, notice TrialNotice) error {
	n.log.InfoContext(ctx, "trial will end",
		logger.Component("notifier"),
		logger.UserID(notice.UserID),
		slog.Time("trial_ends_at", notice.TrialEndsAt),
	)
	return nil
}
