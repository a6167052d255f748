// Package redis connects to Redis and provides EventLedger, a TTL-bounded
// record of processed webhook event IDs.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	ledger := redis.NewEventLedger(client, cfg.KeyPrefix)
//	reconciler := subscription.NewReconciler(store, gw, billingCfg,
//		subscription.WithEventLedger(ledger))
package redis
