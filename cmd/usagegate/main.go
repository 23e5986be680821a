// Command usagegate serves the usage gate over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/usagegate/pkg/api"
	"github.com/dmitrymomot/usagegate/pkg/audit"
	"github.com/dmitrymomot/usagegate/pkg/config"
	"github.com/dmitrymomot/usagegate/pkg/entitlement"
	"github.com/dmitrymomot/usagegate/pkg/environment"
	"github.com/dmitrymomot/usagegate/pkg/httpserver"
	"github.com/dmitrymomot/usagegate/pkg/logger"
	"github.com/dmitrymomot/usagegate/pkg/metrics"
	"github.com/dmitrymomot/usagegate/pkg/principal"
	"github.com/dmitrymomot/usagegate/pkg/requestid"
	"github.com/dmitrymomot/usagegate/pkg/subscription"
	"github.com/dmitrymomot/usagegate/pkg/tier"
	"github.com/dmitrymomot/usagegate/pkg/usage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("usagegate stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	env := environment.Parse(cfg.Env)

	logOpts := []logger.Option{
		logger.WithEnvironment(env, cfg.ServiceName),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			principal.LoggerExtractor(),
		),
	}
	if cfg.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		logOpts = append(logOpts, logger.WithLevel(level))
	}
	log := logger.New(logOpts...)
	slog.SetDefault(log)

	deps := newInfra(log)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		deps.Close(closeCtx)
	}()

	table, err := loadPolicies(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := buildQuotaStore(ctx, cfg, table, deps)
	if err != nil {
		return err
	}
	records, err := buildSubscriptionStore(ctx, cfg, deps)
	if err != nil {
		return err
	}
	entitlements, err := entitlement.New(cfg.Entitlement)
	if err != nil {
		return err
	}
	failurePolicy, err := usage.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return err
	}

	resolver := tier.New(entitlements, records,
		tier.WithLogger(log),
		tier.WithEntitlementTimeout(cfg.EntitlementTimeout),
		tier.WithRecordTimeout(cfg.RecordTimeout),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	gateOpts := []usage.Option{
		usage.WithLogger(log),
		usage.WithMetrics(m),
		usage.WithFailurePolicy(failurePolicy),
		usage.WithStoreTimeout(cfg.StoreTimeout),
		usage.WithEnvironment(env),
	}

	auditStorage, auditQueue, err := buildAuditStorage(ctx, cfg, deps)
	if err != nil {
		return err
	}
	var auditor *audit.Logger
	if auditStorage != nil {
		auditor = audit.NewLogger(auditStorage,
			audit.WithUserIDExtractor(principal.UserIDFromContext),
			audit.WithRequestIDExtractor(requestid.FromContext),
		)
		gateOpts = append(gateOpts, usage.WithAuditor(auditor))
	}

	routerOpts := api.Options{
		Gate:             usage.New(table, resolver, store, gateOpts...),
		Metrics:          m,
		Gatherer:         reg,
		ReadinessChecks:  deps.checks,
		ReadinessTimeout: cfg.ReadinessTimeout,
		Logger:           log,
	}
	if auditor != nil {
		routerOpts.Auditor = auditor
	}
	if cached, ok := entitlements.(*entitlement.Cached); ok {
		routerOpts.OnSubscriptionSynced = cached.Invalidate
	}

	if cfg.Paddle.WebhookSecret != "" {
		syncer, err := subscription.NewPaddleSyncer(cfg.Paddle, records, subscription.WithLogger(log))
		if err != nil {
			return err
		}
		routerOpts.Syncer = syncer
	} else {
		log.WarnContext(ctx, "PADDLE_WEBHOOK_SECRET is not set, subscription webhooks are disabled")
	}

	serverOpts := []httpserver.Option{httpserver.WithLogger(log)}
	if auditQueue != nil {
		serverOpts = append(serverOpts, httpserver.WithStopHook(func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := auditQueue.Close(flushCtx); err != nil {
				log.Error("failed to flush audit queue", logger.Error(err))
			}
		}))
	}

	handler := environment.Middleware(env)(api.NewRouter(routerOpts))
	srv := httpserver.NewFromConfig(cfg.HTTP, serverOpts...)

	log.InfoContext(ctx, "starting usagegate",
		slog.String("quota_store", cfg.QuotaStore),
		slog.String("subscription_store", cfg.SubscriptionStore),
		slog.String("audit_store", cfg.AuditStore),
		slog.String("policy_source", cfg.PolicySource),
		slog.String("failure_policy", string(failurePolicy)),
	)

	if err := srv.Run(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
