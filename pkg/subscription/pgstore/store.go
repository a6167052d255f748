package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingsync/pkg/pg"
	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

// Store implements subscription.Store on PostgreSQL. Every mutation is a
// single conditional UPDATE whose WHERE clause carries the precondition.
type Store struct {
	pool *pgxpool.Pool
}

var _ subscription.Store = (*Store)(nil)

// New creates a store on an existing pool. Run the embedded migrations first.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pool is required")
	}
	return &Store{pool: pool}
}

const selectColumns = `
	user_id, status, COALESCE(plan, ''),
	COALESCE(provider_customer_id, ''), COALESCE(provider_subscription_id, ''), COALESCE(provider_price_id, ''),
	trial_starts_at, trial_ends_at, trial_days,
	current_period_start, current_period_end, canceled_at, upgraded_at,
	created_at, updated_at`

// Create implements subscription.Store.
func (s *Store) Create(ctx context.Context, rec *subscription.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db(ctx, s.pool).Exec(ctx, `
		INSERT INTO subscriptions (
			user_id, status, plan,
			provider_customer_id, provider_subscription_id, provider_price_id,
			trial_starts_at, trial_ends_at, trial_days,
			current_period_start, current_period_end, canceled_at, upgraded_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		rec.UserID, string(rec.Status), nullString(string(rec.Plan)),
		nullString(rec.ProviderCustomerID), nullString(rec.ProviderSubscriptionID), nullString(rec.ProviderPriceID),
		rec.TrialStartsAt, rec.TrialEndsAt, rec.TrialDays,
		rec.CurrentPeriodStart, rec.CurrentPeriodEnd, rec.CanceledAt, rec.UpgradedAt,
		createdAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return subscription.ErrRecordExists
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// FindByUserID implements subscription.Store.
func (s *Store) FindByUserID(ctx context.Context, userID uuid.UUID) (*subscription.Record, error) {
	return s.findOne(ctx, `SELECT`+selectColumns+` FROM subscriptions WHERE user_id = $1`, userID)
}

// FindByProviderSubscriptionID implements subscription.Store.
func (s *Store) FindByProviderSubscriptionID(ctx context.Context, subscriptionID string) (*subscription.Record, error) {
	if subscriptionID == "" {
		return nil, subscription.ErrRecordNotFound
	}
	return s.findOne(ctx, `SELECT`+selectColumns+` FROM subscriptions WHERE provider_subscription_id = $1`, subscriptionID)
}

// SetProviderCustomer implements subscription.Store.
func (s *Store) SetProviderCustomer(ctx context.Context, userID uuid.UUID, customerID string) (bool, error) {
	return s.conditional(ctx, userID, `
		UPDATE subscriptions SET provider_customer_id = $2, updated_at = NOW()
		WHERE user_id = $1 AND provider_customer_id IS NULL`,
		userID, customerID,
	)
}

// Activate implements subscription.Store.
func (s *Store) Activate(ctx context.Context, userID uuid.UUID, b subscription.Billing, at time.Time) (bool, error) {
	return s.conditional(ctx, userID, `
		UPDATE subscriptions SET
			status = 'ACTIVE',
			plan = $2,
			provider_subscription_id = $3,
			provider_price_id = $4,
			current_period_start = $5,
			current_period_end = $6,
			upgraded_at = $7,
			updated_at = NOW()
		WHERE user_id = $1 AND status <> 'ACTIVE'`,
		userID, string(b.Plan), b.ProviderSubscriptionID, nullString(b.ProviderPriceID),
		nullTime(b.CurrentPeriodStart), nullTime(b.CurrentPeriodEnd), at,
	)
}

// Renew implements subscription.Store.
func (s *Store) Renew(ctx context.Context, userID uuid.UUID, b subscription.Billing) (bool, error) {
	return s.conditional(ctx, userID, `
		UPDATE subscriptions SET
			plan = $2,
			provider_price_id = $4,
			current_period_start = $5,
			current_period_end = $6,
			updated_at = NOW()
		WHERE user_id = $1
			AND status = 'ACTIVE'
			AND provider_subscription_id = $3
			AND (
				plan IS DISTINCT FROM $2
				OR provider_price_id IS DISTINCT FROM $4
				OR current_period_start IS DISTINCT FROM $5
				OR current_period_end IS DISTINCT FROM $6
			)`,
		userID, string(b.Plan), b.ProviderSubscriptionID, nullString(b.ProviderPriceID),
		nullTime(b.CurrentPeriodStart), nullTime(b.CurrentPeriodEnd),
	)
}

// SwitchPlan implements subscription.Store.
func (s *Store) SwitchPlan(ctx context.Context, userID uuid.UUID, b subscription.Billing) (bool, error) {
	return s.conditional(ctx, userID, `
		UPDATE subscriptions SET
			plan = $2,
			provider_price_id = $4,
			current_period_start = $5,
			current_period_end = $6,
			updated_at = NOW()
		WHERE user_id = $1
			AND status = 'ACTIVE'
			AND provider_subscription_id = $3
			AND (plan IS DISTINCT FROM $2 OR provider_price_id IS DISTINCT FROM $4)`,
		userID, string(b.Plan), b.ProviderSubscriptionID, nullString(b.ProviderPriceID),
		nullTime(b.CurrentPeriodStart), nullTime(b.CurrentPeriodEnd),
	)
}

// MarkPaymentFailed implements subscription.Store.
func (s *Store) MarkPaymentFailed(ctx context.Context, userID uuid.UUID, subscriptionID string) (bool, error) {
	return s.conditional(ctx, userID, `
		UPDATE subscriptions SET status = 'PAYMENT_FAILED', plan = NULL, updated_at = NOW()
		WHERE user_id = $1
			AND status NOT IN ('PAYMENT_FAILED', 'CANCELED', 'TRIAL_EXPIRED')
			AND provider_subscription_id = $2`,
		userID, subscriptionID,
	)
}

// Terminate implements subscription.Store.
func (s *Store) Terminate(ctx context.Context, userID uuid.UUID, subscriptionID string, status subscription.Status, canceledAt *time.Time) (bool, error) {
	return s.conditional(ctx, userID, `
		UPDATE subscriptions SET
			status = $3,
			plan = NULL,
			canceled_at = COALESCE($4, canceled_at),
			updated_at = NOW()
		WHERE user_id = $1 AND status <> $3 AND provider_subscription_id = $2`,
		userID, subscriptionID, string(status), canceledAt,
	)
}

// WithinTx implements subscription.Store. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(withTx(ctx, tx))
	})
}

// conditional runs a guarded UPDATE. When no row matched it checks whether
// the record exists to tell a failed precondition from a missing record.
func (s *Store) conditional(ctx context.Context, userID uuid.UUID, query string, args ...any) (bool, error) {
	conn := db(ctx, s.pool)
	tag, err := conn.Exec(ctx, query, args...)
	if pg.IsDuplicateKeyError(err) {
		return false, subscription.ErrRecordExists
	}
	if err != nil {
		return false, fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	if !exists {
		return false, subscription.ErrRecordNotFound
	}
	return false, nil
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*subscription.Record, error) {
	var (
		rec            subscription.Record
		status, plan   string
		trialStartsAt  *time.Time
		trialEndsAt    *time.Time
		periodStart    *time.Time
		periodEnd      *time.Time
		canceledAt     *time.Time
		upgradedAt     *time.Time
		createdAt, upd time.Time
	)
	err := db(ctx, s.pool).QueryRow(ctx, query, arg).Scan(
		&rec.UserID, &status, &plan,
		&rec.ProviderCustomerID, &rec.ProviderSubscriptionID, &rec.ProviderPriceID,
		&trialStartsAt, &trialEndsAt, &rec.TrialDays,
		&periodStart, &periodEnd, &canceledAt, &upgradedAt,
		&createdAt, &upd,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subscription.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select subscription: %w", err)
	}

	rec.Status = subscription.Status(status)
	rec.Plan = subscription.Plan(plan)
	rec.TrialStartsAt = utc(trialStartsAt)
	rec.TrialEndsAt = utc(trialEndsAt)
	rec.CurrentPeriodStart = utc(periodStart)
	rec.CurrentPeriodEnd = utc(periodEnd)
	rec.CanceledAt = utc(canceledAt)
	rec.UpgradedAt = utc(upgradedAt)
	rec.CreatedAt = createdAt.UTC()
	rec.UpdatedAt = upd.UTC()
	return &rec, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
