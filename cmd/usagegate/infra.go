package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/opensearch-project/opensearch-go/v2"
	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/usagegate/migrations"
	"github.com/dmitrymomot/usagegate/pkg/config"
	"github.com/dmitrymomot/usagegate/pkg/httpserver"
	"github.com/dmitrymomot/usagegate/pkg/logger"
	"github.com/dmitrymomot/usagegate/pkg/mongo"
	searchpkg "github.com/dmitrymomot/usagegate/pkg/opensearch"
	"github.com/dmitrymomot/usagegate/pkg/pg"
	"github.com/dmitrymomot/usagegate/pkg/redis"
)

// infra connects backends on first use, so only the selected ones need to
// be configured and reachable.
type infra struct {
	log *slog.Logger

	pool   *pgxpool.Pool
	rdb    *goredis.Client
	mdb    *mongodriver.Database
	search *opensearch.Client
	index  string

	checks  []httpserver.Check
	closers []func(context.Context)
}

func newInfra(log *slog.Logger) *infra {
	return &infra{log: log}
}

func (i *infra) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if i.pool != nil {
		return i.pool, nil
	}

	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := pg.Migrate(ctx, pool, cfg, migrations.FS, i.log); err != nil {
			pool.Close()
			return nil, err
		}
	}

	i.pool = pool
	i.checks = append(i.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})
	i.closers = append(i.closers, func(context.Context) { pool.Close() })
	i.log.InfoContext(ctx, "connected to postgres", logger.Component("infra"))
	return pool, nil
}

func (i *infra) redis(ctx context.Context) (*goredis.Client, error) {
	if i.rdb != nil {
		return i.rdb, nil
	}

	var cfg redis.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	rdb, err := redis.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	i.rdb = rdb
	i.checks = append(i.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rdb)})
	i.closers = append(i.closers, func(context.Context) { _ = rdb.Close() })
	i.log.InfoContext(ctx, "connected to redis", logger.Component("infra"))
	return rdb, nil
}

func (i *infra) mongo(ctx context.Context) (*mongodriver.Database, error) {
	if i.mdb != nil {
		return i.mdb, nil
	}

	var cfg mongo.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	db, err := mongo.NewWithDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	i.mdb = db
	i.checks = append(i.checks, httpserver.Check{Name: "mongo", Fn: mongo.Healthcheck(db.Client())})
	i.closers = append(i.closers, func(ctx context.Context) { _ = db.Client().Disconnect(ctx) })
	i.log.InfoContext(ctx, "connected to mongo", logger.Component("infra"), slog.String("database", cfg.Database))
	return db, nil
}

func (i *infra) opensearch(ctx context.Context) (*opensearch.Client, string, error) {
	if i.search != nil {
		return i.search, i.index, nil
	}

	var cfg searchpkg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, "", err
	}
	client, err := searchpkg.New(ctx, cfg)
	if err != nil {
		return nil, "", err
	}

	i.search = client
	i.index = cfg.AuditIndex
	i.checks = append(i.checks, httpserver.Check{Name: "opensearch", Fn: searchpkg.Healthcheck(client)})
	i.log.InfoContext(ctx, "connected to opensearch", logger.Component("infra"))
	return client, cfg.AuditIndex, nil
}

// Close releases connections in reverse order of creation.
func (i *infra) Close(ctx context.Context) {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n](ctx)
	}
}
