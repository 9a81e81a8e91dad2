package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PlaceholderSalt is the value shipped in sample deployments. It is rejected in production.
const PlaceholderSalt = "replace-me-with-long-secret"

// Store backends.
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
)

// Scheduler backends.
const (
	SchedulerLocal       = "local"
	SchedulerEventBridge = "eventbridge"
	SchedulerRedis       = "redis"
)

// Mail providers.
const (
	MailLog      = "log"
	MailSES      = "ses"
	MailSendGrid = "sendgrid"
	MailSMTP     = "smtp"
)

// Config is the single validated configuration for the server and the queue worker.
type Config struct {
	Environment string
	Server      Server
	Log         Log
	Admission   Admission
	Store       Store
	Scheduler   Scheduler
	Mail        Mail
	AWS         AWS
	Redis       RedisConfig
	Kafka       Kafka
	Tracing     Tracing
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr               string
	AdminToken         string
	DispatchToken      string
	ExposeErrorDetails bool
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
}

type Log struct {
	Level  string
	Format string
}

// Admission holds the knobs of the entry pipeline itself.
type Admission struct {
	DedupeSalt     string
	DefaultLocale  string
	ContestsFile   string
	RateLimitRPS   float64
	RateLimitBurst int
}

type Store struct {
	Backend     string
	TableName   string
	DatabaseURL string
	TxTimeout   time.Duration
}

type Scheduler struct {
	Backend        string
	ReminderOffset time.Duration
	Timeout        time.Duration

	// EventBridge Scheduler
	Group         string
	TargetARN     string
	TargetRoleARN string

	// Redis delayed queue
	QueueKey     string
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int

	// MetricsAddr is where cmd/worker serves /metrics and /healthz.
	MetricsAddr string
}

type Mail struct {
	Provider       string
	From           string
	FromName       string
	LandingPageURL string
	Timeout        time.Duration

	SendGridAPIKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

type AWS struct {
	Region      string
	EndpointURL string
}

// RedisConfig configures the go-redis client used by the delayed queue.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Kafka struct {
	Brokers    []string
	AuditTopic string
}

type Tracing struct {
	Endpoint    string
	ServiceName string
}

// FromEnv builds the configuration from environment variables, loading a .env
// file first when one is present.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	var errs []error
	p := parser{errs: &errs}

	cfg := Config{
		Environment: p.str("ENVIRONMENT", "development"),
		Server: Server{
			Addr:               p.str("ADDR", ":8080"),
			AdminToken:         p.str("ADMIN_TOKEN", ""),
			DispatchToken:      p.str("DISPATCH_TOKEN", ""),
			ExposeErrorDetails: p.boolean("EXPOSE_ERROR_DETAILS", false),
			CORSAllowedOrigins: p.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RequestTimeout:     p.duration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Log: Log{
			Level:  p.str("LOG_LEVEL", "info"),
			Format: p.str("LOG_FORMAT", "json"),
		},
		Admission: Admission{
			DedupeSalt:     p.str("DEDUPE_SALT", ""),
			DefaultLocale:  p.str("DEFAULT_LOCALE", "en"),
			ContestsFile:   p.str("CONTESTS_FILE", ""),
			RateLimitRPS:   p.float("RATE_LIMIT_RPS", 2),
			RateLimitBurst: p.integer("RATE_LIMIT_BURST", 5),
		},
		Store: Store{
			Backend:     strings.ToLower(p.str("STORE_BACKEND", StoreMemory)),
			TableName:   p.str("TABLE_NAME", ""),
			DatabaseURL: p.str("DATABASE_URL", ""),
			TxTimeout:   p.duration("STORE_TX_TIMEOUT", 5*time.Second),
		},
		Scheduler: Scheduler{
			Backend:        strings.ToLower(p.str("SCHEDULER_BACKEND", SchedulerLocal)),
			ReminderOffset: p.duration("REMINDER_OFFSET", 72*time.Hour),
			Timeout:        p.duration("SCHEDULER_TIMEOUT", 5*time.Second),
			Group:          p.str("SCHEDULE_GROUP", "default"),
			TargetARN:      p.str("SCHEDULER_TARGET_ARN", ""),
			TargetRoleARN:  p.str("SCHEDULER_TARGET_ROLE_ARN", ""),
			QueueKey:       p.str("SCHEDULE_QUEUE_KEY", "entrygate:schedules"),
			PollInterval:   p.duration("SCHEDULE_POLL_INTERVAL", 5*time.Second),
			BatchSize:      p.integer("SCHEDULE_BATCH_SIZE", 50),
			MaxAttempts:    p.integer("SCHEDULE_MAX_ATTEMPTS", 3),
			MetricsAddr:    p.str("WORKER_METRICS_ADDR", ":9091"),
		},
		Mail: Mail{
			Provider:       strings.ToLower(p.str("MAIL_PROVIDER", MailLog)),
			From:           p.str("FROM_EMAIL", ""),
			FromName:       p.str("FROM_NAME", ""),
			LandingPageURL: strings.TrimRight(p.str("LANDING_PAGE_URL", ""), "/"),
			Timeout:        p.duration("MAIL_TIMEOUT", 10*time.Second),
			SendGridAPIKey: p.str("SENDGRID_API_KEY", ""),
			SMTPHost:       p.str("SMTP_HOST", ""),
			SMTPPort:       p.integer("SMTP_PORT", 587),
			SMTPUsername:   p.str("SMTP_USERNAME", ""),
			SMTPPassword:   p.str("SMTP_PASSWORD", ""),
		},
		AWS: AWS{
			Region:      p.str("AWS_REGION", "us-east-1"),
			EndpointURL: p.str("AWS_ENDPOINT_URL", ""),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:    p.list("KAFKA_BROKERS", nil),
			AuditTopic: p.str("AUDIT_TOPIC", "entrygate.audit"),
		},
		Tracing: Tracing{
			Endpoint:    p.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName: p.str("OTEL_SERVICE_NAME", "entrygate"),
		},
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production guarantees.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks cross-field requirements once at startup.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Admission.DedupeSalt == "" {
		add("DEDUPE_SALT is required")
	} else if c.IsProduction() && c.Admission.DedupeSalt == PlaceholderSalt {
		add("DEDUPE_SALT must be changed from the placeholder in production")
	}
	if c.Store.TxTimeout <= 0 {
		add("STORE_TX_TIMEOUT must be positive")
	}
	if c.Scheduler.ReminderOffset <= 0 {
		add("REMINDER_OFFSET must be positive")
	}
	if c.Scheduler.Timeout <= 0 {
		add("SCHEDULER_TIMEOUT must be positive")
	}
	if c.Mail.Timeout <= 0 {
		add("MAIL_TIMEOUT must be positive")
	}
	if c.Admission.RateLimitRPS < 0 || c.Admission.RateLimitBurst < 0 {
		add("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	} else if c.Admission.RateLimitRPS > 0 && c.Admission.RateLimitBurst < 1 {
		// A zero burst refuses every request.
		add("RATE_LIMIT_BURST must be at least 1 when RATE_LIMIT_RPS is set")
	}

	switch c.Store.Backend {
	case StoreMemory:
		if c.IsProduction() {
			add("STORE_BACKEND=memory is not allowed in production")
		}
	case StoreDynamoDB:
		if c.Store.TableName == "" {
			add("TABLE_NAME is required for the dynamodb store")
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			add("DATABASE_URL is required for the postgres store")
		}
	default:
		add("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Scheduler.Backend {
	case SchedulerLocal:
	case SchedulerEventBridge:
		if c.Scheduler.TargetARN == "" || c.Scheduler.TargetRoleARN == "" {
			add("SCHEDULER_TARGET_ARN and SCHEDULER_TARGET_ROLE_ARN are required for eventbridge")
		}
	case SchedulerRedis:
		if c.Redis.URL == "" {
			add("REDIS_URL is required for the redis scheduler")
		}
		if c.Scheduler.MaxAttempts < 1 {
			add("SCHEDULE_MAX_ATTEMPTS must be at least 1")
		}
	default:
		add("unknown SCHEDULER_BACKEND %q", c.Scheduler.Backend)
	}

	switch c.Mail.Provider {
	case MailLog:
	case MailSES:
		if c.Mail.From == "" {
			add("FROM_EMAIL is required for ses")
		}
	case MailSendGrid:
		if c.Mail.From == "" || c.Mail.SendGridAPIKey == "" {
			add("FROM_EMAIL and SENDGRID_API_KEY are required for sendgrid")
		}
	case MailSMTP:
		if c.Mail.From == "" || c.Mail.SMTPHost == "" {
			add("FROM_EMAIL and SMTP_HOST are required for smtp")
		}
	default:
		add("unknown MAIL_PROVIDER %q", c.Mail.Provider)
	}

	return errors.Join(errs...)
}

// parser collects conversion errors so FromEnv reports all bad values at once.
type parser struct {
	errs *[]error
}

func (p parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p parser) boolean(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p parser) float(key string, def float64) float64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p parser) list(key string, def []string) []string {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
