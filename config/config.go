package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the report engine
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Report    ReportConfig    `mapstructure:"report"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type    string        `mapstructure:"type"` // openai, gemini
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMRoutingConfig assigns a provider/model pair to each pipeline role.
// Fallback is the alternate pair substituted for the planner and writer
// roles when the active provider reports a transient failure.
type LLMRoutingConfig struct {
	Planner   LLMRoute `mapstructure:"planner"`
	Writer    LLMRoute `mapstructure:"writer"`
	Benchmark LLMRoute `mapstructure:"benchmark"`
	Fallback  LLMRoute `mapstructure:"fallback"`
}

// LLMRoute names a provider and a model for one role.
type LLMRoute struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

func (r LLMRoute) IsZero() bool { return r.Provider == "" && r.Model == "" }

// SearchConfig contains web search provider settings
type SearchConfig struct {
	Provider       string        `mapstructure:"provider"` // serper, tavily
	SerperAPIKey   string        `mapstructure:"serper_api_key"`
	TavilyAPIKey   string        `mapstructure:"tavily_api_key"`
	MaxResults     int           `mapstructure:"max_results"`
	Timeout        time.Duration `mapstructure:"timeout"`
	FetchReadable  bool          `mapstructure:"fetch_readable"`
	FetchTopKPages int           `mapstructure:"fetch_top_k_pages"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL        string        `mapstructure:"url"`
	Host       string        `mapstructure:"host"`
	Port       string        `mapstructure:"port"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	DBName     string        `mapstructure:"dbname"`
	SSLMode    string        `mapstructure:"sslmode"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Migrations string        `mapstructure:"migrations"`
}

// DSN builds a postgres connection string from the individual fields
// unless an explicit URL is configured.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPort int    `mapstructure:"metrics_port"`
	LogFile     string `mapstructure:"log_file"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// ReportConfig contains report generation defaults
type ReportConfig struct {
	DefaultType      string  `mapstructure:"default_type"`
	DefaultTone      string  `mapstructure:"default_tone"`
	DefaultLength    string  `mapstructure:"default_length"`
	QueryCount       int     `mapstructure:"query_count"`
	MaxConcurrent    int     `mapstructure:"max_concurrent"` // concurrent section drafts per writer pass
	SourcesPerDraft  int     `mapstructure:"sources_per_draft"`
	Temperature      float64 `mapstructure:"temperature"`
	BenchmarkDefault bool    `mapstructure:"benchmark_default"`
}

func (l LLMConfig) Validate() error {
	if len(l.Providers) == 0 {
		return fmt.Errorf("llm.providers must not be empty")
	}
	for _, route := range []struct {
		name string
		r    LLMRoute
	}{
		{"llm.routing.planner", l.Routing.Planner},
		{"llm.routing.writer", l.Routing.Writer},
		{"llm.routing.fallback", l.Routing.Fallback},
	} {
		if route.r.IsZero() {
			return fmt.Errorf("%s is required", route.name)
		}
		if _, ok := l.Providers[route.r.Provider]; !ok {
			return fmt.Errorf("%s references unknown provider %q", route.name, route.r.Provider)
		}
	}
	return nil
}

// LoadConfig loads config from file, applying defaults and MAINOS_* env overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", 90*time.Second)
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("search.timeout", 15*time.Second)
	viper.SetDefault("search.fetch_top_k_pages", 3)
	viper.SetDefault("llm.routing.planner.provider", "openai")
	viper.SetDefault("llm.routing.planner.model", "gpt-4o")
	viper.SetDefault("llm.routing.writer.provider", "openai")
	viper.SetDefault("llm.routing.writer.model", "gpt-4o")
	viper.SetDefault("llm.routing.benchmark.provider", "openai")
	viper.SetDefault("llm.routing.benchmark.model", "gpt-4o")
	viper.SetDefault("llm.routing.fallback.provider", "gemini")
	viper.SetDefault("llm.routing.fallback.model", "gemini-1.5-pro")
	viper.SetDefault("report.default_type", "market_analysis")
	viper.SetDefault("report.default_tone", "professional")
	viper.SetDefault("report.default_length", "medium")
	viper.SetDefault("report.query_count", 3)
	viper.SetDefault("report.max_concurrent", 4)
	viper.SetDefault("report.sources_per_draft", 5)
	viper.SetDefault("report.temperature", 0.7)
	viper.SetDefault("storage.postgres.migrations", "file://migrations")
	viper.SetDefault("report.benchmark_default", false)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("MAINOS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	return &config
}
