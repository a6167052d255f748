package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingsync/pkg/logger"
)

// Service runs user-initiated subscription commands.
// None of the commands activate a subscription; activation happens only when
// the provider confirms payment through the Reconciler.
type Service struct {
	store   Store
	gateway Gateway
	cfg     Config
	catalog *Catalog
	now     func() time.Time
	log     *slog.Logger
}

// NewService creates a new Service with the given dependencies.
// Panics if store or gateway is nil to fail fast during initialization.
func NewService(store Store, gateway Gateway, cfg Config, opts ...ServiceOption) *Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	if gateway == nil {
		panic("subscription: Gateway is required")
	}

	s := &Service{
		store:   store,
		gateway: gateway,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = DefaultCatalog()
	}
	return s
}

// ProvisionRequest identifies a freshly created user.
type ProvisionRequest struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// Provision creates the provider customer and trial subscription for a new
// user and persists a TRIALING record. Call it inside Store.WithinTx together
// with user creation; see Register.
func (s *Service) Provision(ctx context.Context, req ProvisionRequest) (*Record, error) {
	if req.UserID == uuid.Nil {
		return nil, ErrMissingUserID
	}
	if req.Email == "" {
		return nil, ErrInvalidEmail
	}
	priceID, ok := s.cfg.PriceForPlan(PlanMonthly)
	if !ok {
		return nil, ErrMissingPriceID
	}

	customerID, err := s.gateway.CreateCustomer(ctx, req.Email, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider customer: %w", err)
	}

	now := s.now()
	trialEnd := now.Add(s.cfg.TrialLength())
	sub, err := s.gateway.CreateSubscription(ctx, SubscriptionRequest{
		CustomerID: customerID,
		PriceID:    priceID,
		TrialEnd:   trialEnd,
		Metadata:   map[string]string{MetadataUserID: req.UserID.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create trial subscription: %w", err)
	}

	rec := &Record{
		UserID:                 req.UserID,
		Status:                 StatusTrialing,
		Plan:                   PlanNone,
		ProviderCustomerID:     customerID,
		ProviderSubscriptionID: sub.ID,
		ProviderPriceID:        priceID,
		TrialStartsAt:          &now,
		TrialEndsAt:            &trialEnd,
		TrialDays:              s.cfg.TrialDays,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if sub.PriceID != "" {
		rec.ProviderPriceID = sub.PriceID
	}
	if sub.TrialStart != nil {
		rec.TrialStartsAt = sub.TrialStart
	}
	if sub.TrialEnd != nil {
		rec.TrialEndsAt = sub.TrialEnd
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save subscription record: %w", err)
	}

	s.log.InfoContext(ctx, "trial provisioned",
		logger.Component("subscription"),
		logger.UserID(rec.UserID),
		logger.ProviderSubscriptionID(rec.ProviderSubscriptionID),
		slog.Time("trial_ends_at", *rec.TrialEndsAt),
	)
	return rec, nil
}

// UserCreator creates the user row inside the registration transaction and
// returns the new user ID.
type UserCreator func(ctx context.Context, email, name string) (uuid.UUID, error)

// RegisterRequest carries the data needed to register a user.
type RegisterRequest struct {
	Email string
	Name  string
}

// Register creates the user and provisions the trial in one transaction.
// If any step fails the user row and record are rolled back; an orphaned
// provider customer may remain and is harmless.
func (s *Service) Register(ctx context.Context, req RegisterRequest, createUser UserCreator) (*Record, error) {
	if createUser == nil {
		return nil, errors.New("subscription: UserCreator is required")
	}

	var rec *Record
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		userID, err := createUser(ctx, req.Email, req.Name)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		rec, err = s.Provision(ctx, ProvisionRequest{UserID: userID, Email: req.Email, Name: req.Name})
		return err
	})
	if err != nil {
		s.log.ErrorContext(ctx, "registration rolled back",
			logger.Component("subscription"),
			logger.Error(err),
		)
		return nil, err
	}
	return rec, nil
}

// UpgradeRequest asks for a checkout session for a paid plan.
type UpgradeRequest struct {
	Plan        Plan
	CallbackURL string
	// Email and Name are used only when the provider customer must be
	// created lazily.
	Email string
	Name  string
}

// Upgrade creates a checkout session for the requested plan and returns it.
// The record is not changed except for lazily storing a provider customer.
func (s *Service) Upgrade(ctx context.Context, userID uuid.UUID, req UpgradeRequest) (*CheckoutSession, error) {
	if !req.Plan.Valid() {
		return nil, ErrInvalidPlan
	}
	callback, err := parseCallbackURL(req.CallbackURL)
	if err != nil {
		return nil, err
	}
	priceID, ok := s.cfg.PriceForPlan(req.Plan)
	if !ok {
		return nil, ErrMissingPriceID
	}

	rec, err := s.record(ctx, userID, ErrNoSubscription)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusActive {
		return nil, ErrAlreadyActive
	}

	customerID, err := s.ensureCustomer(ctx, rec, req.Email, req.Name)
	if err != nil {
		return nil, err
	}

	successURL, cancelURL := checkoutURLs(callback, req.Plan)
	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata: map[string]string{
			MetadataUserID: userID.String(),
			MetadataPlan:   req.Plan.String(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.log.InfoContext(ctx, "checkout session created",
		logger.Component("subscription"),
		logger.UserID(userID),
		logger.Plan(req.Plan),
	)
	return session, nil
}

// ensureCustomer returns the record's provider customer, creating and storing
// one if absent. A concurrent creator wins via the conditional write.
func (s *Service) ensureCustomer(ctx context.Context, rec *Record, email, name string) (string, error) {
	if rec.ProviderCustomerID != "" {
		return rec.ProviderCustomerID, nil
	}
	if email == "" {
		return "", ErrInvalidEmail
	}

	customerID, err := s.gateway.CreateCustomer(ctx, email, name)
	if err != nil {
		return "", fmt.Errorf("failed to create provider customer: %w", err)
	}

	applied, err := s.store.SetProviderCustomer(ctx, rec.UserID, customerID)
	if err != nil {
		return "", fmt.Errorf("failed to store provider customer: %w", err)
	}
	if applied {
		return customerID, nil
	}

	current, err := s.store.FindByUserID(ctx, rec.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to reload subscription record: %w", err)
	}
	return current.ProviderCustomerID, nil
}

// SwitchResult acknowledges a plan switch request.
type SwitchResult struct {
	Success bool
	Message string
}

// SwitchPlan asks the provider to move the subscription to newPlan with
// proration. The record changes only when the provider confirms via event.
func (s *Service) SwitchPlan(ctx context.Context, userID uuid.UUID, newPlan Plan) (*SwitchResult, error) {
	if !newPlan.Valid() {
		return nil, ErrInvalidPlan
	}
	priceID, ok := s.cfg.PriceForPlan(newPlan)
	if !ok {
		return nil, ErrMissingPriceID
	}

	rec, err := s.record(ctx, userID, ErrNoSubscription)
	if err != nil {
		return nil, err
	}
	if rec.ProviderSubscriptionID == "" {
		return nil, ErrNoActiveSubscription
	}
	if rec.Plan == newPlan {
		return nil, ErrSamePlan
	}

	sub, err := s.gateway.RetrieveSubscription(ctx, rec.ProviderSubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve subscription: %w", err)
	}
	if sub.ItemID == "" {
		return nil, ErrNoSubscriptionItem
	}

	if _, err := s.gateway.UpdateSubscriptionItem(ctx, ItemUpdateRequest{
		SubscriptionID: sub.ID,
		ItemID:         sub.ItemID,
		PriceID:        priceID,
		Metadata: map[string]string{
			MetadataUserID: userID.String(),
			MetadataPlan:   newPlan.String(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to switch plan: %w", err)
	}

	s.log.InfoContext(ctx, "plan switch requested",
		logger.Component("subscription"),
		logger.UserID(userID),
		logger.Plan(newPlan),
	)
	return &SwitchResult{
		Success: true,
		Message: fmt.Sprintf("Plan switch to %s is being processed", newPlan),
	}, nil
}

// BillingPortal creates a provider billing portal session.
func (s *Service) BillingPortal(ctx context.Context, userID uuid.UUID, returnURL string) (*PortalSession, error) {
	callback, err := parseCallbackURL(returnURL)
	if err != nil {
		return nil, err
	}

	rec, err := s.record(ctx, userID, ErrNoSubscription)
	if err != nil {
		return nil, err
	}
	if rec.ProviderCustomerID == "" {
		return nil, ErrNoBillingAccount
	}

	session, err := s.gateway.CreatePortalSession(ctx, rec.ProviderCustomerID, callback.String())
	if err != nil {
		if errors.Is(err, ErrClassConfiguration) {
			s.log.ErrorContext(ctx, "billing portal is not configured",
				logger.Component("subscription"),
				logger.Error(err),
			)
			return nil, ErrPortalUnavailable.Wrap(err)
		}
		return nil, fmt.Errorf("failed to create portal session: %w", err)
	}
	return session, nil
}

// View is the read model returned by Status.
type View struct {
	IsTrialActive bool
	CurrentPlan   Plan
	TrialEndsAt   *time.Time
	TrialDays     int
	Status        Status
	DaysLeft      int
	Plans         []PlanInfo
}

// Status returns the subscription read model for a user.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*View, error) {
	rec, err := s.record(ctx, userID, ErrSubscriptionNotFound)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &View{
		IsTrialActive: rec.IsTrialActiveAt(now),
		CurrentPlan:   rec.Plan,
		TrialEndsAt:   rec.TrialEndsAt,
		TrialDays:     rec.TrialDays,
		Status:        rec.Status,
		DaysLeft:      rec.TrialDaysLeftAt(now),
		Plans:         s.catalog.All(),
	}, nil
}

// Entitlement evaluates the guard against the user's current record.
// A missing record is a denial, not an error.
func (s *Service) Entitlement(ctx context.Context, userID uuid.UUID) (Entitlement, error) {
	rec, err := s.store.FindByUserID(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return CheckEntitlement(nil, s.now()), nil
	}
	if err != nil {
		return Entitlement{}, fmt.Errorf("failed to load subscription record: %w", err)
	}
	return CheckEntitlement(rec, s.now()), nil
}

func (s *Service) record(ctx context.Context, userID uuid.UUID, notFound error) (*Record, error) {
	rec, err := s.store.FindByUserID(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription record: %w", err)
	}
	return rec, nil
}

func parseCallbackURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || raw == "" || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidCallbackURL
	}
	return u, nil
}

// checkoutURLs derives success and cancel redirects from the callback,
// preserving any query parameters it already carries.
func checkoutURLs(callback *url.URL, plan Plan) (success, cancel string) {
	s := *callback
	q := s.Query()
	q.Set("success", "true")
	q.Set("plan", plan.String())
	s.RawQuery = q.Encode()

	c := *callback
	q = c.Query()
	q.Set("success", "false")
	c.RawQuery = q.Encode()

	return s.String(), c.String()
}
