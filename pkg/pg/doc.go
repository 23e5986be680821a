// Package pg provides PostgreSQL helpers on top of pgx/v5: a retrying pool
// constructor, a readiness probe, goose migrations from an embedded file
// system, and error classification helpers.
//
// Usage:
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, migrations.FS, log); err != nil {
//	    return err
//	}
package pg
