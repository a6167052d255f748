package templates_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingsync/pkg/email/templates"
)

func TestTrialEnding(t *testing.T) {
	t.Parallel()

	data := templates.TrialEndingData{
		ProductName:  "Acme <Pro>",
		TrialEndsAt:  time.Date(2026, 3, 14, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)),
		SupportEmail: "support@example.com",
	}

	t.Run("says access ends without an upgrade", func(t *testing.T) {
		t.Parallel()

		body, err := templates.Render(context.Background(), templates.TrialEnding(data))
		require.NoError(t, err)
		assert.Contains(t, body, "<h1>Your Acme &lt;Pro&gt; trial ends soon</h1>")
		assert.Contains(t, body, "<strong>March 15, 2026</strong>")
		assert.Contains(t, body, "access to Acme &lt;Pro&gt; stops unless you upgrade to a paid plan")
		assert.NotContains(t, body, "continue automatically")
		assert.Contains(t, body, "Questions? Write to support@example.com.")
	})

	t.Run("omits support line without address", func(t *testing.T) {
		t.Parallel()

		noSupport := data
		noSupport.SupportEmail = ""
		body, err := templates.Render(context.Background(), templates.TrialEnding(noSupport))
		require.NoError(t, err)
		assert.NotContains(t, body, "Questions?")
		assert.Contains(t, body, "</body></html>")
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := templates.Render(ctx, templates.TrialEnding(data))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
