// Package config loads askdb settings from defaults, an optional YAML file
// and ASKDB_* environment variables, in increasing order of precedence.
// Command-line flags bound onto the same viper instance win over all three.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/nl2sql"
)

// EnvPrefix is prepended to every environment variable, e.g. ASKDB_SERVER_ADDR.
const EnvPrefix = "ASKDB"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// AllowedOrigin is the one browser origin allowed by CORS.
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	IntrospectTimeout time.Duration `mapstructure:"introspect_timeout"`
	DefaultDriver     string        `mapstructure:"default_driver"`
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint selects the object store; empty keeps history in memory.
	Endpoint         string `mapstructure:"endpoint"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Region           string `mapstructure:"region"`
	Bucket           string `mapstructure:"bucket"`
	Prefix           string `mapstructure:"prefix"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
	MemoryCapacity   int    `mapstructure:"memory_capacity"`
}

// New returns a viper instance with every default set and environment
// lookup enabled.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.allowed_origin", "http://localhost:3000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("database.query_timeout", 30*time.Second)
	v.SetDefault("database.introspect_timeout", 30*time.Second)
	v.SetDefault("database.default_driver", string(database.DialectMySQL))

	v.SetDefault("llm.provider", nl2sql.ProviderGemini)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_tokens", 1024)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.endpoint", "")
	v.SetDefault("audit.access_key", "")
	v.SetDefault("audit.secret_key", "")
	v.SetDefault("audit.use_ssl", false)
	v.SetDefault("audit.region", "")
	v.SetDefault("audit.bucket", "")
	v.SetDefault("audit.prefix", "history")
	v.SetDefault("audit.auto_create_bucket", false)
	v.SetDefault("audit.memory_capacity", 1000)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider-native variable names are accepted for the credential.
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY")

	return v
}

// Load reads path (when non-empty) into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings needed to serve requests.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "", nl2sql.ProviderGemini, nl2sql.ProviderAnthropic:
	default:
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required (set %s_LLM_API_KEY, GEMINI_API_KEY or ANTHROPIC_API_KEY)", EnvPrefix)
	}

	if c.Audit.Enabled && c.Audit.Endpoint != "" && strings.TrimSpace(c.Audit.Bucket) == "" {
		return fmt.Errorf("audit.bucket is required when audit.endpoint is set")
	}
	if c.Server.AllowedOrigin == "*" {
		return fmt.Errorf("server.allowed_origin must name a single origin")
	}
	return nil
}

// ValidateDatabase checks only the database section, for commands that
// never call the model.
func (c *Config) ValidateDatabase() error {
	switch database.Dialect(strings.ToLower(c.Database.DefaultDriver)) {
	case database.DialectMySQL, database.DialectPostgres:
	default:
		return fmt.Errorf("database.default_driver: unsupported driver %q", c.Database.DefaultDriver)
	}
	return nil
}

// Generator maps the llm section onto generator settings.
func (c *Config) Generator() nl2sql.Config {
	return nl2sql.Config{
		Provider:    c.LLM.Provider,
		APIKey:      c.LLM.APIKey,
		Model:       c.LLM.Model,
		BaseURL:     c.LLM.BaseURL,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		Timeout:     c.LLM.Timeout,
	}
}
