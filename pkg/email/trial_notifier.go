package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/billingsync/pkg/email/templates"
	"github.com/dmitrymomot/billingsync/pkg/logger"
	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

// TrialEndingTag labels trial-ending emails in the provider dashboard.
const TrialEndingTag = "trial-will-end"

// TrialNotifier emails users whose trial is about to end.
type TrialNotifier struct {
	sender EmailSender
	cfg    Config
	log    *slog.Logger
}

var _ subscription.Notifier = (*TrialNotifier)(nil)

// NewTrialNotifier creates a notifier backed by sender.
func NewTrialNotifier(sender EmailSender, cfg Config, log *slog.Logger) *TrialNotifier {
	if sender == nil {
		panic("email: sender is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &TrialNotifier{sender: sender, cfg: cfg, log: log}
}

// TrialWillEnd implements subscription.Notifier.
// Notices without a billing email are skipped.
func (n *TrialNotifier) TrialWillEnd(ctx context.Context, notice subscription.TrialNotice) error {
	if notice.Email == "" {
		n.log.DebugContext(ctx, "trial notice skipped: no billing email",
			logger.Component("trial_notifier"),
			logger.UserID(notice.UserID),
		)
		return nil
	}

	body, err := templates.Render(ctx, templates.TrialEnding(templates.TrialEndingData{
		ProductName:  n.cfg.ProductName,
		TrialEndsAt:  notice.TrialEndsAt,
		SupportEmail: n.cfg.SupportEmail,
	}))
	if err != nil {
		return fmt.Errorf("render trial notice: %w", err)
	}

	if err := n.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   notice.Email,
		Subject:  fmt.Sprintf("Your %s trial ends soon", n.cfg.ProductName),
		BodyHTML: body,
		Tag:      TrialEndingTag,
	}); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "trial notice sent",
		logger.Component("trial_notifier"),
		logger.UserID(notice.UserID),
	)
	return nil
}
