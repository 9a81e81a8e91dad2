package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"entrygate/internal/contest"
	entryhandler "entrygate/internal/entry/handler"
	"entrygate/internal/entry/identity"
	entrymetrics "entrygate/internal/entry/metrics"
	"entrygate/internal/entry/service"
	"entrygate/internal/entry/store/dynamo"
	entrymemory "entrygate/internal/entry/store/memory"
	entrypostgres "entrygate/internal/entry/store/postgres"
	"entrygate/internal/entry/validator"
	"entrygate/internal/notify"
	notifyhandler "entrygate/internal/notify/handler"
	"entrygate/internal/notify/mail"
	platformaws "entrygate/internal/platform/aws"
	"entrygate/internal/platform/config"
	"entrygate/internal/platform/kafka"
	"entrygate/internal/platform/metrics"
	"entrygate/internal/platform/middleware"
	"entrygate/internal/platform/postgres"
	"entrygate/internal/platform/redis"
	"entrygate/internal/platform/tracing"
	"entrygate/internal/schedule"
	id "entrygate/pkg/domain"
	"entrygate/pkg/platform/audit"
	"entrygate/pkg/platform/audit/publisher"
	auditkafka "entrygate/pkg/platform/audit/store/kafka"
	auditmemory "entrygate/pkg/platform/audit/store/memory"
	auditpostgres "entrygate/pkg/platform/audit/store/postgres"
	"entrygate/pkg/requestcontext"
)

const (
	auditBufferSize   = 1024
	auditPartitions   = 3
	auditReplicas     = 1
	serviceTracerName = "entrygate"
)

// app holds the router and the resources to release on shutdown.
type app struct {
	router  http.Handler
	closers []func(context.Context)
}

func (a *app) onClose(fn func(context.Context)) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse order of acquisition so the audit
// publisher flushes before its sink's connection goes away.
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	a.onClose(func(ctx context.Context) {
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err.Error())
		}
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.New(reg)

	var db *sql.DB
	if cfg.Store.Backend == config.StorePostgres {
		db, err = postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) { _ = db.Close() })
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return nil, err
		}
	}

	store, err := buildStore(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		a.onClose(func(context.Context) { _ = redisClient.Close() })
	}

	auditStore, err := buildAuditStore(ctx, cfg, db, a)
	if err != nil {
		return nil, err
	}
	auditor := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	)
	a.onClose(func(context.Context) { auditor.Close() })

	mailer, err := mail.FromConfig(ctx, cfg.Mail, cfg.AWS, log)
	if err != nil {
		return nil, err
	}
	renderer, err := notify.NewRenderer(cfg.Mail.LandingPageURL)
	if err != nil {
		return nil, err
	}
	sendOpts := []notify.Option{
		notify.WithSendTimeout(cfg.Mail.Timeout),
		notify.WithLogger(log),
		notify.WithMetrics(notify.NewMetrics(reg)),
		notify.WithAuditPublisher(auditor),
	}
	defaultLocale := id.Locale(cfg.Admission.DefaultLocale)
	confirmation := notify.NewConfirmation(mailer, renderer, cfg.Mail.From, sendOpts...)
	dispatcher := notify.NewDispatcher(mailer, renderer, cfg.Mail.From, defaultLocale, sendOpts...)

	backend, err := buildScheduleBackend(ctx, cfg, redisClient, dispatcher, log, a)
	if err != nil {
		return nil, err
	}
	schedules := schedule.New(backend,
		schedule.WithCallTimeout(cfg.Scheduler.Timeout),
		schedule.WithLogger(log),
	)

	catalogue := contest.NewCatalogue(contest.DefaultRules())
	if cfg.Admission.ContestsFile != "" {
		catalogue, err = contest.Load(cfg.Admission.ContestsFile)
		if err != nil {
			return nil, err
		}
	}

	admission := service.NewAdmission(store, identity.NewHasher(cfg.Admission.DedupeSalt),
		service.WithTxTimeout(cfg.Store.TxTimeout),
		service.WithReminderOffset(cfg.Scheduler.ReminderOffset),
	)
	pipeline := service.NewPipeline(
		validator.New(catalogue, validator.WithDefaultLocale(defaultLocale)),
		admission,
		confirmation,
		schedules,
		service.WithLogger(log),
		service.WithMetrics(entrymetrics.New(reg)),
		service.WithAuditPublisher(auditor),
	)

	limiter := middleware.NewRateLimiter(cfg.Admission.RateLimitRPS, cfg.Admission.RateLimitBurst, log,
		middleware.WithRateLimitMetrics(httpMetrics),
		middleware.WithRejectHook(func(r *http.Request) {
			ctx := r.Context()
			_ = auditor.Emit(ctx, audit.Event{
				Category:  audit.EventSubmissionRateLimited.Category(),
				Action:    string(audit.EventSubmissionRateLimited),
				RequestID: requestcontext.RequestID(ctx),
				ClientIP:  requestcontext.ClientIP(ctx),
			})
		}),
	)

	if cfg.Server.AdminToken == "" {
		log.Warn("ADMIN_TOKEN is empty; admin routes will reject every request")
	}
	if cfg.Server.DispatchToken == "" {
		log.Warn("DISPATCH_TOKEN is empty; the dispatch route will reject every request")
	}

	router := chi.NewRouter()
	router.Get("/healthz", healthHandler(db, redisClient))
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	entryhandler.New(pipeline, log, httpMetrics,
		entryhandler.WithRateLimiter(limiter),
		entryhandler.WithCORSOrigins(cfg.Server.CORSAllowedOrigins),
		entryhandler.WithAdminToken(cfg.Server.AdminToken),
		entryhandler.WithExposeErrorDetails(cfg.Server.ExposeErrorDetails),
		entryhandler.WithAuditLog(auditor),
		entryhandler.WithRequestTimeout(cfg.Server.RequestTimeout),
	).Register(router)
	notifyhandler.New(dispatcher, cfg.Server.DispatchToken, log, httpMetrics).Register(router)

	a.router = otelhttp.NewHandler(router, serviceTracerName)
	return a, nil
}

func buildStore(ctx context.Context, cfg config.Config, db *sql.DB) (service.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreDynamoDB:
		sdk, err := platformaws.Load(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return dynamo.New(dynamodb.NewFromConfig(sdk), cfg.Store.TableName), nil
	case config.StorePostgres:
		return entrypostgres.New(db), nil
	case config.StoreMemory:
		return entrymemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildAuditStore prefers Kafka when brokers are configured, then the
// Postgres table when the entry store already uses Postgres.
func buildAuditStore(ctx context.Context, cfg config.Config, db *sql.DB, a *app) (audit.Store, error) {
	client, err := kafka.New(cfg.Kafka)
	if err != nil {
		return nil, err
	}
	switch {
	case client != nil:
		a.onClose(func(context.Context) { client.Close() })
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, auditPartitions, auditReplicas); err != nil {
			return nil, err
		}
		return auditkafka.New(client, cfg.Kafka.AuditTopic), nil
	case db != nil:
		return auditpostgres.New(db), nil
	default:
		return auditmemory.NewInMemoryStore(), nil
	}
}

func buildScheduleBackend(ctx context.Context, cfg config.Config, redisClient *redis.Client, dispatcher *notify.Dispatcher, log *slog.Logger, a *app) (schedule.Backend, error) {
	switch cfg.Scheduler.Backend {
	case config.SchedulerEventBridge:
		sdk, err := platformaws.Load(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return schedule.NewEventBridge(scheduler.NewFromConfig(sdk),
			cfg.Scheduler.Group, cfg.Scheduler.TargetARN, cfg.Scheduler.TargetRoleARN), nil
	case config.SchedulerRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis scheduler needs REDIS_URL")
		}
		// Jobs are delivered by cmd/worker polling the same key.
		return schedule.NewRedisQueue(redisClient.Client, cfg.Scheduler.QueueKey), nil
	case config.SchedulerLocal:
		local := schedule.NewLocal(dispatcher.Dispatch, log)
		a.onClose(func(context.Context) { local.Stop() })
		return local, nil
	default:
		return nil, fmt.Errorf("unknown scheduler backend %q", cfg.Scheduler.Backend)
	}
}

func healthHandler(db *sql.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
