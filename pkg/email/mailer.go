package email

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/billingsync/pkg/validator"
)

// EmailSender represents an interface for sending emails.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

// Validate checks that the message is deliverable.
func (p SendEmailParams) Validate() error {
	if err := validator.Apply(
		validator.RequiredString("send_to", p.SendTo),
		validator.When(p.SendTo != "", validator.ValidEmail("send_to", p.SendTo)),
		validator.RequiredString("subject", p.Subject),
		validator.RequiredString("body_html", p.BodyHTML),
	); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// New returns a Postmark sender when tokens are configured and a DevSender otherwise.
func New(cfg Config) (EmailSender, error) {
	if cfg.PostmarkEnabled() {
		return NewPostmarkClient(cfg)
	}
	return NewDevSender(cfg.DevDir), nil
}
