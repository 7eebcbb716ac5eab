// Package config loads the pipeline's runtime configuration from
// environment variables, an optional .env file, and CLI overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`

	KafkaBrokers string `env:"KAFKA_BROKERS,required" envDefault:"localhost:9092"`

	// Consumer group ids, one per stage.
	GroupTranscriptProjector string `env:"GROUP_TRANSCRIPT_PROJECTOR" envDefault:"dossier-transcript-proj"`
	GroupSentimentProjector  string `env:"GROUP_SENTIMENT_PROJECTOR" envDefault:"dossier-sentiment-proj"`
	GroupVocProjector        string `env:"GROUP_VOC_PROJECTOR" envDefault:"dossier-voc-proj"`
	GroupAuditCorrelator     string `env:"GROUP_AUDIT_CORRELATOR" envDefault:"dossier-audit-correlator"`
	GroupAggregator          string `env:"GROUP_AGGREGATOR" envDefault:"dossier-aggregator"`
	GroupAlertDispatcher     string `env:"GROUP_ALERT_DISPATCHER" envDefault:"dossier-alert-dispatcher"`

	DLQSuffix string `env:"DLQ_SUFFIX" envDefault:".dlq"`

	ConsumerMaxRetries  int           `env:"CONSUMER_MAX_RETRIES" envDefault:"5"`
	ConsumerRetryBase   time.Duration `env:"CONSUMER_RETRY_BASE" envDefault:"200ms"`
	ConsumerDrainPeriod time.Duration `env:"CONSUMER_DRAIN_PERIOD" envDefault:"30s"`

	// Correlation engine (C4).
	CorrelatorBackend string        `env:"CORRELATOR_BACKEND" envDefault:"memory"` // memory | redis
	PartialTTL        time.Duration `env:"PARTIAL_TTL" envDefault:"10m"`
	ExpectedLatency   time.Duration `env:"EXPECTED_LATENCY" envDefault:"5m"`

	// Compliance scorer (C5).
	RuleFile            string  `env:"RULE_FILE" envDefault:"./rules.json"`
	ExpectedPhrasesFile string  `env:"EXPECTED_PHRASES_FILE" envDefault:"./expected_phrases.json"`
	ScriptWeight        float64 `env:"SCORE_WEIGHT_SCRIPT" envDefault:"0.30"`
	ServiceWeight       float64 `env:"SCORE_WEIGHT_SERVICE" envDefault:"0.40"`
	ResolutionWeight    float64 `env:"SCORE_WEIGHT_RESOLUTION" envDefault:"0.30"`
	PassThreshold       float64 `env:"PASS_THRESHOLD" envDefault:"70"`
	FailThreshold       float64 `env:"FAIL_THRESHOLD" envDefault:"50"`

	// Metrics aggregator (C6).
	AggregatorMode string        `env:"AGGREGATOR_MODE" envDefault:"buffered"` // buffered | direct
	FlushPeriod    time.Duration `env:"FLUSH_PERIOD" envDefault:"5m"`
	DedupTTL       time.Duration `env:"AGGREGATOR_DEDUP_TTL" envDefault:"24h"`

	// Alert engine (C7).
	ChurnThreshold     float64 `env:"CHURN_THRESHOLD" envDefault:"0.7"`
	ChurnHighThreshold float64 `env:"CHURN_HIGH_THRESHOLD" envDefault:"0.8"`
	ComplianceFloor    float64 `env:"COMPLIANCE_FLOOR" envDefault:"0.6"`
	EscalationAlerts   bool    `env:"ESCALATION_ALERTS" envDefault:"true"`
	SupervisorEmail    string  `env:"SUPERVISOR_EMAIL" envDefault:"supervisor@example.com"`
	ManagerEmail       string  `env:"MANAGER_EMAIL" envDefault:"manager@example.com"`
	SlackToken         string  `env:"SLACK_TOKEN"`
	SlackChannel       string  `env:"SLACK_CHANNEL" envDefault:"#call-quality-alerts"`
	WebhookURL         string  `env:"WEBHOOK_URL"`

	// Ingestion / audio storage (C8).
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"` // local | s3
	AudioDir       string `env:"AUDIO_DIR" envDefault:"./audio"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8090"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
}

// Validate checks cross-field constraints that struct tags alone cannot express.
func (c *Config) Validate() error {
	if c.StorageBackend == "s3" && c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET must be set when STORAGE_BACKEND=s3")
	}
	if c.CorrelatorBackend != "memory" && c.CorrelatorBackend != "redis" {
		return fmt.Errorf("CORRELATOR_BACKEND must be memory or redis, got %q", c.CorrelatorBackend)
	}
	if c.AggregatorMode != "buffered" && c.AggregatorMode != "direct" {
		return fmt.Errorf("AGGREGATOR_MODE must be buffered or direct, got %q", c.AggregatorMode)
	}
	sum := c.ScriptWeight + c.ServiceWeight + c.ResolutionWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("score weights must sum to 1.0, got %.3f", sum)
	}
	if c.ChurnHighThreshold < c.ChurnThreshold {
		return fmt.Errorf("CHURN_HIGH_THRESHOLD (%.2f) must be >= CHURN_THRESHOLD (%.2f)", c.ChurnHighThreshold, c.ChurnThreshold)
	}
	return nil
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile      string
	HTTPAddr     string
	LogLevel     string
	DatabaseURL  string
	KafkaBrokers string
}

// Load reads configuration from an optional .env file, environment
// variables, and CLI overrides, in that ascending priority order.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.KafkaBrokers != "" {
		cfg.KafkaBrokers = overrides.KafkaBrokers
	}

	return cfg, nil
}
