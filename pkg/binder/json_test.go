package binder_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingsync/pkg/binder"
)

type upgradeRequest struct {
	Plan        string   `json:"plan"`
	CallbackURL string   `json:"callbackUrl"`
	Tags        []string `json:"tags,omitempty"`
	Note        *string  `json:"note,omitempty"`
}

func newJSONRequest(body, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/billing/subscription/upgrade", bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("valid body", func(t *testing.T) {
		t.Parallel()
		var got upgradeRequest
		err := binder.JSON()(newJSONRequest(`{"plan":" YEARLY ","callbackUrl":"https://app.example.com","tags":[" a\u0000 "],"note":"  hi "}`, "application/json; charset=utf-8"), &got)
		require.NoError(t, err)
		assert.Equal(t, "YEARLY", got.Plan)
		assert.Equal(t, "https://app.example.com", got.CallbackURL)
		assert.Equal(t, []string{"a"}, got.Tags)
		require.NotNil(t, got.Note)
		assert.Equal(t, "hi", *got.Note)
	})

	tests := []struct {
		name        string
		body        string
		contentType string
		wantErr     error
	}{
		{"missing content type", `{"plan":"MONTHLY"}`, "", binder.ErrMissingContentType},
		{"wrong content type", `plan=MONTHLY`, "application/x-www-form-urlencoded", binder.ErrUnsupportedMediaType},
		{"empty body", ``, "application/json", binder.ErrFailedToParseJSON},
		{"invalid syntax", `{"plan":`, "application/json", binder.ErrFailedToParseJSON},
		{"type mismatch", `{"plan":1}`, "application/json", binder.ErrFailedToParseJSON},
		{"unknown field", `{"plan":"MONTHLY","admin":true}`, "application/json", binder.ErrFailedToParseJSON},
		{"trailing data", `{"plan":"MONTHLY"}{"plan":"YEARLY"}`, "application/json", binder.ErrFailedToParseJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got upgradeRequest
			err := binder.JSON()(newJSONRequest(tt.body, tt.contentType), &got)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("body too large", func(t *testing.T) {
		t.Parallel()
		body := `{"plan":"` + strings.Repeat("x", 64) + `"}`
		var got upgradeRequest
		err := binder.JSON(binder.WithMaxSize(32))(newJSONRequest(body, "application/json"), &got)
		assert.ErrorIs(t, err, binder.ErrRequestTooLarge)
	})
}
