package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingsync/pkg/email"
	"github.com/dmitrymomot/billingsync/pkg/jwt"
	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

func testSettings(t *testing.T, stripeURL string) settings {
	t.Helper()
	return settings{
		app: appConfig{Env: "development", Name: "billingd-test", StoreDriver: driverMemory, EventLedger: driverMemory},
		billing: subscription.Config{
			TrialDays:      14,
			MonthlyPriceID: "price_monthly",
			YearlyPriceID:  "price_yearly",
			EventLedgerTTL: time.Hour,
		},
		stripe: subscription.StripeConfig{
			SecretKey:     "sk_test_123",
			WebhookSecret: "whsec_test",
			Timeout:       5 * time.Second,
		},
		email:         email.Config{ProductName: "Billing", DevDir: t.TempDir()},
		stripeOptions: []subscription.StripeOption{subscription.WithStripeURL(stripeURL)},
	}
}

func newTestApp(t *testing.T, stripe http.HandlerFunc) *app {
	t.Helper()
	if stripe == nil {
		stripe = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"type":"api_error","message":"unexpected call"}}`, http.StatusInternalServerError)
		}
	}
	srv := httptest.NewServer(stripe)
	t.Cleanup(srv.Close)

	a, err := newApp(context.Background(), slog.New(slog.DiscardHandler), testSettings(t, srv.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func seedTrial(t *testing.T, a *app) *subscription.Record {
	t.Helper()
	start := time.Now().UTC().Add(-time.Hour)
	end := start.Add(14 * 24 * time.Hour)
	rec := &subscription.Record{
		UserID:                 uuid.New(),
		Status:                 subscription.StatusTrialing,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_trial_" + uuid.NewString(),
		ProviderPriceID:        "price_monthly",
		TrialStartsAt:          &start,
		TrialEndsAt:            &end,
		TrialDays:              14,
	}
	require.NoError(t, a.store.Create(context.Background(), rec))
	return rec
}

func runCommand(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	c := &cli{
		log:     slog.New(slog.DiscardHandler),
		openApp: func(context.Context) (*app, error) { return a, nil },
	}
	root := c.rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAppConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     appConfig
		wantErr error
	}{
		{"mongo with redis", appConfig{StoreDriver: "mongo", EventLedger: "redis"}, nil},
		{"postgres with memory", appConfig{StoreDriver: "postgres", EventLedger: "memory", LogFormat: "text"}, nil},
		{"unknown store", appConfig{StoreDriver: "sqlite", EventLedger: "memory"}, errUnknownDriver},
		{"unknown ledger", appConfig{StoreDriver: "memory", EventLedger: "memcached"}, errUnknownDriver},
		{"bad log format", appConfig{StoreDriver: "memory", EventLedger: "memory", LogFormat: "xml"}, errInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewApp(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, nil)
	assert.IsType(t, &subscription.MemoryStore{}, a.store)
	assert.IsType(t, &subscription.MemoryLedger{}, a.ledger)
	assert.IsType(t, &subscription.BreakerGateway{}, a.gateway)
	assert.NotNil(t, a.service)
	assert.NotNil(t, a.reconciler)
	assert.Empty(t, a.checks)

	s := testSettings(t, "")
	s.stripe.SecretKey = ""
	_, err := newApp(context.Background(), slog.New(slog.DiscardHandler), s)
	assert.ErrorIs(t, err, subscription.ErrMissingSecretKey)

	s = testSettings(t, "")
	s.billing.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = newApp(context.Background(), slog.New(slog.DiscardHandler), s)
	assert.Error(t, err)
}

func TestRouter(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, nil)
	tokens, err := jwt.NewFromString("test-signing-key-with-enough-bytes")
	require.NoError(t, err)
	router := newRouter(a, jwt.Middleware(tokens))
	rec := seedTrial(t, a)

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ALIVE", w.Body.String())
	})

	t.Run("readiness", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "READY", w.Body.String())
	})

	t.Run("status requires token", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/billing/subscription/status", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("status for authenticated user", func(t *testing.T) {
		t.Parallel()
		token, err := tokens.Generate(rec.UserID, "jane@example.com", "Jane")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/billing/subscription/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

		var body struct {
			Data struct {
				Status        string `json:"status"`
				IsTrialActive bool   `json:"isTrialActive"`
				DaysLeft      int    `json:"daysLeft"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "TRIALING", body.Data.Status)
		assert.True(t, body.Data.IsTrialActive)
		assert.Equal(t, 14, body.Data.DaysLeft)
	})

	t.Run("status for unknown user", func(t *testing.T) {
		t.Parallel()
		token, err := tokens.Generate(uuid.New(), "ghost@example.com", "")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/billing/subscription/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("webhook rejects unsigned payload", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(`{"id":"evt_1"}`)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"verification_failed"}`, w.Body.String())
	})
}

func TestGuardCmd(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, nil)
	rec := seedTrial(t, a)

	out, err := runCommand(t, a, "guard", "--user", rec.UserID.String())
	require.NoError(t, err)
	assert.Equal(t, rec.UserID.String()+": entitled\n", out)

	missing := uuid.New()
	out, err = runCommand(t, a, "guard", "--user", missing.String())
	require.NoError(t, err)
	assert.Contains(t, out, "denied NO_RECORD_CODE")

	_, err = runCommand(t, a, "guard", "--user", "not-a-uuid")
	assert.ErrorIs(t, err, errInvalidUserID)
}

func TestReplayCmd(t *testing.T) {
	t.Parallel()

	periodStart := time.Now().UTC().Truncate(time.Second)
	periodEnd := periodStart.AddDate(0, 1, 0)
	var userID uuid.UUID

	a := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/subscriptions/sub_paid" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{
			"id":"sub_paid","object":"subscription","status":"active","customer":"cus_1",
			"current_period_start":%d,"current_period_end":%d,
			"items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","price":{"id":"price_yearly","object":"price"}}]},
			"metadata":{"userId":%q}
		}`, periodStart.Unix(), periodEnd.Unix(), userID.String())
	})
	rec := seedTrial(t, a)
	userID = rec.UserID

	event := fmt.Sprintf(`{
		"id":"evt_replay","object":"event","type":"checkout.session.completed","created":%d,
		"data":{"object":{"id":"cs_1","object":"checkout.session","subscription":"sub_paid","customer":"cus_1",
			"metadata":{"userId":%q,"plan":"YEARLY"}}}
	}`, periodStart.Unix(), rec.UserID.String())
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(event), 0o600))

	out, err := runCommand(t, a, "replay", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "evt_replay checkout.session.completed: applied\n", out)

	got, err := a.store.FindByUserID(context.Background(), rec.UserID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, got.Status)
	assert.Equal(t, subscription.PlanYearly, got.Plan)
	require.NotNil(t, got.CurrentPeriodEnd)
	assert.True(t, periodEnd.Equal(*got.CurrentPeriodEnd))

	out, err = runCommand(t, a, "replay", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "evt_replay checkout.session.completed: duplicate\n", out)

	_, err = runCommand(t, a, "replay")
	assert.ErrorIs(t, err, errMissingEventFile)
}
