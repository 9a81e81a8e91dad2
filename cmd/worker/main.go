// Command worker delivers deferred reminder and draw jobs from the Redis
// delayed queue. It is only needed with SCHEDULER_BACKEND=redis.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"entrygate/internal/notify"
	"entrygate/internal/notify/mail"
	"entrygate/internal/platform/config"
	"entrygate/internal/platform/httpserver"
	"entrygate/internal/platform/kafka"
	"entrygate/internal/platform/logger"
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
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.FromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	if err == nil && cfg.Scheduler.Backend != config.SchedulerRedis {
		err = fmt.Errorf("worker requires SCHEDULER_BACKEND=redis, got %q", cfg.Scheduler.Backend)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("worker failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer client.Close()

	auditStore, closeAudit, err := openAuditStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAudit()
	auditor := publisher.NewPublisher(auditStore, publisher.WithAsyncBuffer(256), publisher.WithLogger(log))
	defer auditor.Close()

	mailer, err := mail.FromConfig(ctx, cfg.Mail, cfg.AWS, log)
	if err != nil {
		return err
	}
	renderer, err := notify.NewRenderer(cfg.Mail.LandingPageURL)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	dispatcher := notify.NewDispatcher(mailer, renderer, cfg.Mail.From, id.Locale(cfg.Admission.DefaultLocale),
		notify.WithSendTimeout(cfg.Mail.Timeout),
		notify.WithLogger(log),
		notify.WithMetrics(notify.NewMetrics(reg)),
		notify.WithAuditPublisher(auditor),
	)

	queue := schedule.NewRedisQueue(client.Client, cfg.Scheduler.QueueKey)
	worker := schedule.NewWorker(queue, dispatcher.Dispatch,
		schedule.WithPollInterval(cfg.Scheduler.PollInterval),
		schedule.WithBatchSize(cfg.Scheduler.BatchSize),
		schedule.WithMaxAttempts(cfg.Scheduler.MaxAttempts),
		schedule.WithWorkerLogger(log),
	)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := client.Health(r.Context()); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		if n, err := queue.Pending(r.Context()); err == nil {
			w.Header().Set("X-Pending-Jobs", fmt.Sprint(n))
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httpserver.New(cfg.Scheduler.MetricsAddr, router, 5*time.Second)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err.Error())
		}
	}()

	worker.Start(ctx)
	log.Info("worker started", "queue", cfg.Scheduler.QueueKey, "metrics_addr", cfg.Scheduler.MetricsAddr)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	worker.Stop(shutdownCtx)
	_ = srv.Shutdown(shutdownCtx)
	log.Info("worker stopped")
	return nil
}

// openAuditStore mirrors the server: Kafka when brokers are set, Postgres
// when the entry store is Postgres, memory otherwise.
func openAuditStore(ctx context.Context, cfg config.Config) (audit.Store, func(), error) {
	kc, err := kafka.New(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if kc != nil {
		return auditkafka.New(kc, cfg.Kafka.AuditTopic), kc.Close, nil
	}
	if cfg.Store.Backend == config.StorePostgres {
		var db *sql.DB
		db, err = postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return auditpostgres.New(db), func() { _ = db.Close() }, nil
	}
	return auditmemory.NewInMemoryStore(), func() {}, nil
}
