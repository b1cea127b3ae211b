package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries the full configuration surface for both the capture agent
// and the collector service. All values come from the environment.
type Config struct {
	// Collector endpoints the agent delivers to.
	CollectorBaseURL string `env:"COLLECTOR_BASE_URL" envDefault:"http://127.0.0.1:8998"`
	PrimaryPath      string `env:"COLLECTOR_PRIMARY_PATH" envDefault:"/tag/add"`
	SecondaryPath    string `env:"COLLECTOR_SECONDARY_PATH" envDefault:"/sync/tags"`

	// SchemaEndpoint overrides the default schema candidate list when set.
	SchemaEndpoint string `env:"SCHEMA_ENDPOINT"`

	// RetryIntervalMinutes is the outbox flush period. Values below one
	// minute are clamped, not rejected.
	RetryIntervalMinutes int `env:"RETRY_INTERVAL_MINUTES" envDefault:"5"`

	OutboxPath string `env:"OUTBOX_PATH" envDefault:"outbox.db"`

	ChannelTimeout  time.Duration `env:"CHANNEL_TIMEOUT" envDefault:"5s"`
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"15s"`
	SchemaTimeout   time.Duration `env:"SCHEMA_TIMEOUT" envDefault:"10s"`

	// Collector service listen address and limits.
	Host               string `env:"HOST" envDefault:"127.0.0.1"`
	Port               string `env:"PORT" envDefault:"8998"`
	MaxRequestBodySize int64  `env:"MAX_REQUEST_BODY_SIZE" envDefault:"10485760"` // 10MB
	CollectorDBPath    string `env:"COLLECTOR_DB_PATH" envDefault:"collector.db"`

	// Optional blob archive of delivered images. Disabled when the account
	// name is empty.
	AzureAccountName string `env:"AZURE_ACCOUNT_NAME"`
	AzureAccountKey  string `env:"AZURE_ACCOUNT_KEY"`
	AzureContainer   string `env:"AZURE_CONTAINER" envDefault:"annotations"`

	// OCR pre-fill of the annotation text.
	OCREnabled  bool   `env:"OCR_ENABLED" envDefault:"false"`
	OCRLanguage string `env:"OCR_LANGUAGE" envDefault:"eng"`
}

// MinRetryInterval is the floor for the outbox flush period.
const MinRetryInterval = time.Minute

// LoadFromEnv parses and validates configuration from the environment.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.ChannelTimeout <= 0 || cfg.DeliveryTimeout <= 0 || cfg.SchemaTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got channel=%s, delivery=%s, schema=%s)",
			cfg.ChannelTimeout, cfg.DeliveryTimeout, cfg.SchemaTimeout)
	}
	if !strings.HasPrefix(cfg.CollectorBaseURL, "http://") && !strings.HasPrefix(cfg.CollectorBaseURL, "https://") {
		return nil, fmt.Errorf("COLLECTOR_BASE_URL must be an http(s) URL: %q", cfg.CollectorBaseURL)
	}
	return cfg, nil
}

// ServerAddress returns the collector service listen address.
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strings.TrimSpace(c.Port))
}

// RetryInterval returns the flush period with the one-minute floor applied.
func (c *Config) RetryInterval() time.Duration {
	d := time.Duration(c.RetryIntervalMinutes) * time.Minute
	if d < MinRetryInterval {
		return MinRetryInterval
	}
	return d
}

// PrimaryURL returns the full primary delivery endpoint.
func (c *Config) PrimaryURL() string {
	return strings.TrimRight(c.CollectorBaseURL, "/") + c.PrimaryPath
}

// SecondaryURL returns the full secondary delivery endpoint.
func (c *Config) SecondaryURL() string {
	return strings.TrimRight(c.CollectorBaseURL, "/") + c.SecondaryPath
}

// SchemaCandidates returns the ordered schema endpoints to try: the
// configured override first, then the fixed defaults under the collector
// base URL.
func (c *Config) SchemaCandidates() []string {
	base := strings.TrimRight(c.CollectorBaseURL, "/")
	defaults := []string{
		base + "/tag/schema",
		base + "/schema",
		base + "/tags/schema",
		base + "/sync/schema",
	}
	if strings.TrimSpace(c.SchemaEndpoint) == "" {
		return defaults
	}
	return append([]string{c.SchemaEndpoint}, defaults...)
}
