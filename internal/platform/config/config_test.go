package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DEDUPE_SALT", "pepper")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, SchedulerLocal, cfg.Scheduler.Backend)
	assert.Equal(t, MailLog, cfg.Mail.Provider)
	assert.Equal(t, 72*time.Hour, cfg.Scheduler.ReminderOffset)
	assert.Equal(t, 5*time.Second, cfg.Store.TxTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DEDUPE_SALT", "pepper")
	t.Setenv("STORE_BACKEND", "DynamoDB")
	t.Setenv("TABLE_NAME", "contest-entries")
	t.Setenv("REMINDER_OFFSET", "48h")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092 ,")
	t.Setenv("LANDING_PAGE_URL", "https://contest.example.com/")
	t.Setenv("EXPOSE_ERROR_DETAILS", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StoreDynamoDB, cfg.Store.Backend)
	assert.Equal(t, 48*time.Hour, cfg.Scheduler.ReminderOffset)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "https://contest.example.com", cfg.Mail.LandingPageURL)
	assert.True(t, cfg.Server.ExposeErrorDetails)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_ReportsEveryBadValue(t *testing.T) {
	t.Setenv("REMINDER_OFFSET", "three days")
	t.Setenv("RATE_LIMIT_BURST", "many")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REMINDER_OFFSET")
	assert.Contains(t, err.Error(), "RATE_LIMIT_BURST")
}

func TestValidate(t *testing.T) {
	t.Setenv("DEDUPE_SALT", "pepper")
	valid := func(t *testing.T) Config {
		cfg, err := FromEnv()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "missing salt", mutate: func(c *Config) { c.Admission.DedupeSalt = "" }, wantErr: "DEDUPE_SALT is required"},
		{name: "placeholder salt in production", mutate: func(c *Config) {
			c.Environment = "production"
			c.Store.Backend = StoreDynamoDB
			c.Store.TableName = "t"
			c.Admission.DedupeSalt = PlaceholderSalt
		}, wantErr: "placeholder"},
		{name: "memory store in production", mutate: func(c *Config) { c.Environment = "production" }, wantErr: "STORE_BACKEND=memory"},
		{name: "dynamodb without table", mutate: func(c *Config) { c.Store.Backend = StoreDynamoDB }, wantErr: "TABLE_NAME"},
		{name: "postgres without url", mutate: func(c *Config) { c.Store.Backend = StorePostgres }, wantErr: "DATABASE_URL"},
		{name: "eventbridge without target", mutate: func(c *Config) { c.Scheduler.Backend = SchedulerEventBridge }, wantErr: "SCHEDULER_TARGET_ARN"},
		{name: "redis without url", mutate: func(c *Config) { c.Scheduler.Backend = SchedulerRedis }, wantErr: "REDIS_URL"},
		{name: "sendgrid without key", mutate: func(c *Config) { c.Mail.Provider = MailSendGrid; c.Mail.From = "a@b.c" }, wantErr: "SENDGRID_API_KEY"},
		{name: "unknown mail provider", mutate: func(c *Config) { c.Mail.Provider = "pigeon" }, wantErr: "unknown MAIL_PROVIDER"},
		{name: "zero burst with a rate", mutate: func(c *Config) {
			c.Admission.RateLimitRPS = 10
			c.Admission.RateLimitBurst = 0
		}, wantErr: "RATE_LIMIT_BURST must be at least 1"},
		{name: "non-positive reminder offset", mutate: func(c *Config) { c.Scheduler.ReminderOffset = 0 }, wantErr: "REMINDER_OFFSET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_RateLimitDisabled(t *testing.T) {
	t.Setenv("DEDUPE_SALT", "pepper")
	t.Setenv("RATE_LIMIT_RPS", "0")
	t.Setenv("RATE_LIMIT_BURST", "0")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate(), "no rate means no burst is needed")
}
