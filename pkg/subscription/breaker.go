package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/dmitrymomot/billingsync/pkg/logger"
)

// BreakerGateway wraps a Gateway with a circuit breaker. Only transient
// failures count toward tripping it; rejected requests mean the provider is
// healthy. While open, calls fail fast with ErrProviderUnavailable.
// Webhook verification is local and bypasses the breaker.
type BreakerGateway struct {
	next    Gateway
	breaker *gobreaker.CircuitBreaker[any]
}

// BreakerSettings configures BreakerGateway.
type BreakerSettings struct {
	Name             string
	FailureThreshold uint32        // Consecutive transient failures before opening
	OpenTimeout      time.Duration // How long to stay open before probing
	Logger           *slog.Logger
}

// NewBreakerGateway wraps next with a circuit breaker.
func NewBreakerGateway(next Gateway, s BreakerSettings) *BreakerGateway {
	if next == nil {
		panic("subscription: Gateway is required")
	}
	if s.Name == "" {
		s.Name = "payment-provider"
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.Component("provider_gateway"),
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &BreakerGateway{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State returns the current breaker state.
func (g *BreakerGateway) State() gobreaker.State {
	return g.breaker.State()
}

func execute[T any](g *BreakerGateway, fn func() (T, error)) (T, error) {
	res, err := g.breaker.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, ErrProviderUnavailable.Wrap(err)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// CreateCustomer implements Gateway.
func (g *BreakerGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	return execute(g, func() (string, error) {
		return g.next.CreateCustomer(ctx, email, name)
	})
}

// CreateSubscription implements Gateway.
func (g *BreakerGateway) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*ProviderSubscription, error) {
	return execute(g, func() (*ProviderSubscription, error) {
		return g.next.CreateSubscription(ctx, req)
	})
}

// RetrieveSubscription implements Gateway.
func (g *BreakerGateway) RetrieveSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	return execute(g, func() (*ProviderSubscription, error) {
		return g.next.RetrieveSubscription(ctx, subscriptionID)
	})
}

// UpdateSubscriptionItem implements Gateway.
func (g *BreakerGateway) UpdateSubscriptionItem(ctx context.Context, req ItemUpdateRequest) (*ProviderSubscription, error) {
	return execute(g, func() (*ProviderSubscription, error) {
		return g.next.UpdateSubscriptionItem(ctx, req)
	})
}

// CreateCheckoutSession implements Gateway.
func (g *BreakerGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	return execute(g, func() (*CheckoutSession, error) {
		return g.next.CreateCheckoutSession(ctx, req)
	})
}

// CreatePortalSession implements Gateway.
func (g *BreakerGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	return execute(g, func() (*PortalSession, error) {
		return g.next.CreatePortalSession(ctx, customerID, returnURL)
	})
}

// VerifyAndParseEvent implements Gateway.
func (g *BreakerGateway) VerifyAndParseEvent(ctx context.Context, payload []byte, signature string) (*Event, error) {
	return g.next.VerifyAndParseEvent(ctx, payload, signature)
}
