package billing

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/billingsync/handler"
	"github.com/dmitrymomot/billingsync/pkg/logger"
	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

// SignatureHeader carries the provider's payload signature.
const SignatureHeader = "Stripe-Signature"

// MaxWebhookBytes bounds the accepted webhook payload.
const MaxWebhookBytes = 1 << 20

// webhook reads the raw body, since signature verification needs the exact
// bytes the provider signed.
func (m *Module) webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBytes))
	if err != nil {
		m.webhookError(w, r, subscription.ErrWebhookVerification.Wrap(err))
		return
	}

	outcome, err := m.webhooks.ProcessWebhook(ctx, payload, r.Header.Get(SignatureHeader))
	if err != nil {
		m.webhookError(w, r, err)
		return
	}

	m.log.DebugContext(ctx, "webhook acknowledged",
		logger.Component("billing_webhook"),
		slog.String("outcome", string(outcome)),
	)
	m.render(w, r, handler.JSON(WebhookResponse{Received: true}))
}

func (m *Module) webhookError(w http.ResponseWriter, r *http.Request, err error) {
	status, label := webhookFailure(err)

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	m.log.Log(r.Context(), level, "webhook rejected",
		logger.Component("billing_webhook"),
		logger.Error(err),
		slog.Int("status_code", status),
		slog.String("class", label),
	)

	m.render(w, r, handler.JSON(handler.ErrorBody{Error: label}, handler.WithJSONStatus(status)))
}

func (m *Module) render(w http.ResponseWriter, r *http.Request, resp handler.Response) {
	if err := resp.Render(w, r); err != nil {
		m.log.ErrorContext(r.Context(), "failed to render response",
			logger.Component("billing"),
			logger.Error(err),
		)
	}
}
