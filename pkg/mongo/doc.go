// Package mongo connects to MongoDB with retry and exposes a readiness check.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store, err := mongostore.New(ctx, db)
package mongo
