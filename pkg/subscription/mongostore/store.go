package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongox "github.com/dmitrymomot/billingsync/pkg/mongo"
	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

// DefaultCollection is the collection name used by New.
const DefaultCollection = "subscriptions"

// Store implements subscription.Store on MongoDB. Each mutation is a single
// UpdateOne whose filter carries the precondition.
type Store struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ subscription.Store = (*Store)(nil)

// New creates a store on db and ensures its indexes exist.
func New(ctx context.Context, db *mongo.Database) (*Store, error) {
	return NewWithCollection(ctx, db.Collection(DefaultCollection))
}

// NewWithCollection creates a store on an explicit collection.
func NewWithCollection(ctx context.Context, coll *mongo.Collection) (*Store, error) {
	s := &Store{
		coll: coll,
		now:  func() time.Time { return time.Now().UTC() },
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "provider_subscription_id", Value: 1}},
			Options: options.Index().
				SetName("provider_subscription_id_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"provider_subscription_id": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "provider_customer_id", Value: 1}},
			Options: options.Index().
				SetName("provider_customer_id_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"provider_customer_id": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("status"),
		},
	})
	if err != nil {
		return fmt.Errorf("create subscription indexes: %w", err)
	}
	return nil
}

// Create implements subscription.Store.
func (s *Store) Create(ctx context.Context, rec *subscription.Record) error {
	doc := fromRecord(rec)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	doc.UpdatedAt = doc.CreatedAt

	_, err := s.coll.InsertOne(ctx, doc)
	if mongox.IsDuplicateKeyError(err) {
		return subscription.ErrRecordExists
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// FindByUserID implements subscription.Store.
func (s *Store) FindByUserID(ctx context.Context, userID uuid.UUID) (*subscription.Record, error) {
	return s.findOne(ctx, bson.M{"_id": userID.String()})
}

// FindByProviderSubscriptionID implements subscription.Store.
func (s *Store) FindByProviderSubscriptionID(ctx context.Context, subscriptionID string) (*subscription.Record, error) {
	if subscriptionID == "" {
		return nil, subscription.ErrRecordNotFound
	}
	return s.findOne(ctx, bson.M{"provider_subscription_id": subscriptionID})
}

// SetProviderCustomer implements subscription.Store.
func (s *Store) SetProviderCustomer(ctx context.Context, userID uuid.UUID, customerID string) (bool, error) {
	return s.conditional(ctx, userID,
		bson.M{"provider_customer_id": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"provider_customer_id": customerID}},
	)
}

// Activate implements subscription.Store.
func (s *Store) Activate(ctx context.Context, userID uuid.UUID, b subscription.Billing, at time.Time) (bool, error) {
	set := billingFields(b)
	set["status"] = string(subscription.StatusActive)
	set["upgraded_at"] = at
	return s.conditional(ctx, userID,
		bson.M{"status": bson.M{"$ne": string(subscription.StatusActive)}},
		bson.M{"$set": set},
	)
}

// Renew implements subscription.Store.
func (s *Store) Renew(ctx context.Context, userID uuid.UUID, b subscription.Billing) (bool, error) {
	return s.conditional(ctx, userID,
		bson.M{
			"status":                   string(subscription.StatusActive),
			"provider_subscription_id": b.ProviderSubscriptionID,
			"$or": bson.A{
				bson.M{"plan": bson.M{"$ne": string(b.Plan)}},
				bson.M{"provider_price_id": bson.M{"$ne": b.ProviderPriceID}},
				bson.M{"current_period_start": bson.M{"$ne": timeValue(b.CurrentPeriodStart)}},
				bson.M{"current_period_end": bson.M{"$ne": timeValue(b.CurrentPeriodEnd)}},
			},
		},
		bson.M{"$set": billingFields(b)},
	)
}

// SwitchPlan implements subscription.Store.
func (s *Store) SwitchPlan(ctx context.Context, userID uuid.UUID, b subscription.Billing) (bool, error) {
	return s.conditional(ctx, userID,
		bson.M{
			"status":                   string(subscription.StatusActive),
			"provider_subscription_id": b.ProviderSubscriptionID,
			"$or": bson.A{
				bson.M{"plan": bson.M{"$ne": string(b.Plan)}},
				bson.M{"provider_price_id": bson.M{"$ne": b.ProviderPriceID}},
			},
		},
		bson.M{"$set": billingFields(b)},
	)
}

// MarkPaymentFailed implements subscription.Store.
func (s *Store) MarkPaymentFailed(ctx context.Context, userID uuid.UUID, subscriptionID string) (bool, error) {
	return s.conditional(ctx, userID,
		bson.M{
			"status": bson.M{"$nin": bson.A{
				string(subscription.StatusPaymentFailed),
				string(subscription.StatusCanceled),
				string(subscription.StatusTrialExpired),
			}},
			"provider_subscription_id": subscriptionID,
		},
		bson.M{
			"$set":   bson.M{"status": string(subscription.StatusPaymentFailed)},
			"$unset": bson.M{"plan": ""},
		},
	)
}

// Terminate implements subscription.Store.
func (s *Store) Terminate(ctx context.Context, userID uuid.UUID, subscriptionID string, status subscription.Status, canceledAt *time.Time) (bool, error) {
	set := bson.M{"status": string(status)}
	if canceledAt != nil {
		set["canceled_at"] = *canceledAt
	}
	return s.conditional(ctx, userID,
		bson.M{
			"status":                   bson.M{"$ne": string(status)},
			"provider_subscription_id": subscriptionID,
		},
		bson.M{
			"$set":   set,
			"$unset": bson.M{"plan": ""},
		},
	)
}

// WithinTx implements subscription.Store. Requires a replica set.
// Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := s.coll.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// conditional applies update to the user's document when cond holds.
// When nothing matched it counts the user's documents to tell a failed
// precondition from a missing record.
func (s *Store) conditional(ctx context.Context, userID uuid.UUID, cond bson.M, update bson.M) (bool, error) {
	filter := bson.M{"_id": userID.String()}
	for k, v := range cond {
		filter[k] = v
	}

	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
		update["$set"] = set
	}
	set["updated_at"] = s.now()

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if mongox.IsDuplicateKeyError(err) {
		return false, subscription.ErrRecordExists
	}
	if err != nil {
		return false, fmt.Errorf("update subscription: %w", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": userID.String()})
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	if n == 0 {
		return false, subscription.ErrRecordNotFound
	}
	return false, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*subscription.Record, error) {
	var doc document
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, subscription.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	rec, err := doc.toRecord()
	if err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	return rec, nil
}

func billingFields(b subscription.Billing) bson.M {
	return bson.M{
		"plan":                     string(b.Plan),
		"provider_subscription_id": b.ProviderSubscriptionID,
		"provider_price_id":        b.ProviderPriceID,
		"current_period_start":     timeValue(b.CurrentPeriodStart),
		"current_period_end":       timeValue(b.CurrentPeriodEnd),
	}
}

// timeValue maps the zero time to null so it compares equal to a missing field.
func timeValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
