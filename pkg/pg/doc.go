// Package pg connects to PostgreSQL through a pgx pool and applies goose
// migrations from an embedded filesystem.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, pgstore.Migrations, pgstore.MigrationsDir, log); err != nil {
//		return err
//	}
//
// Error helpers classify pgx errors (no rows, unique violation, serialization
// failure) so stores can map them onto their own sentinels.
package pg
