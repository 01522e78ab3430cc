package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	domainconfig "citegraph/domain/config"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

// Config holds all application configuration. Values come from defaults,
// then the optional YAML file named by CONFIG_FILE, then environment
// variables, each layer overriding the previous one.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Events     EventsConfig     `yaml:"events"`
	Visibility VisibilityConfig `yaml:"visibility"`
	Graph      GraphConfig      `yaml:"graph"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Cache      CacheConfig      `yaml:"cache"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Features   FeatureConfig    `yaml:"features"`

	// ConfigFile is the YAML file the configuration was read from, if any
	ConfigFile string `yaml:"-"`
}

// ServerConfig configures the HTTP server and process
type ServerConfig struct {
	Address     string `yaml:"address"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	IsLambda    bool   `yaml:"-"`
}

// StoreConfig selects and configures the storage backend
type StoreConfig struct {
	Type        string         `yaml:"type"`
	SQLitePath  string         `yaml:"sqlite_path"`
	FixturePath string         `yaml:"fixture"`
	Breaker     bool           `yaml:"breaker"`
	DynamoDB    DynamoDBConfig `yaml:"dynamodb"`
}

// DynamoDBConfig configures the DynamoDB backend
type DynamoDBConfig struct {
	Table       string `yaml:"table"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	CreateTable bool   `yaml:"create_table"`
}

// EventsConfig configures domain event publishing. An empty bus name logs
// events instead of sending them to EventBridge.
type EventsConfig struct {
	BusName string `yaml:"bus_name"`
	Source  string `yaml:"source"`
}

// VisibilityConfig holds the hide threshold. It is the only setting the
// config watcher applies without a restart.
type VisibilityConfig struct {
	HideThreshold float64 `yaml:"hide_threshold"`
}

// GraphConfig bounds graph expansion
type GraphConfig struct {
	DefaultDepth     int    `yaml:"default_depth"`
	MaxDepth         int    `yaml:"max_depth"`
	DefaultDirection string `yaml:"default_direction"`
}

// RateLimitConfig limits vote requests per user. Zero disables the limiter.
// Distributed keeps the counters in the DynamoDB table so that Lambda
// instances share one budget; it only applies to the dynamodb store.
type RateLimitConfig struct {
	VotesPerMinute int  `yaml:"votes_per_minute"`
	Distributed    bool `yaml:"distributed"`
}

// CacheConfig configures the paper read cache. Zero disables it.
type CacheConfig struct {
	PaperTTLSeconds int `yaml:"paper_ttl_seconds"`
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// FeatureConfig toggles optional HTTP features
type FeatureConfig struct {
	EnableMetrics  bool     `yaml:"metrics"`
	EnableCORS     bool     `yaml:"cors"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	domain := domainconfig.DefaultDomainConfig()
	return &Config{
		Server: ServerConfig{
			Address:     ":8080",
			Environment: "development",
			LogLevel:    "info",
		},
		Store: StoreConfig{
			Type:       StoreMemory,
			SQLitePath: "citegraph.db",
			Breaker:    true,
			DynamoDB: DynamoDBConfig{
				Table:  "citegraph",
				Region: "us-west-2",
			},
		},
		Visibility: VisibilityConfig{HideThreshold: domain.HideThreshold},
		Graph: GraphConfig{
			DefaultDepth:     domain.DefaultExpandDepth,
			MaxDepth:         domain.MaxExpandDepth,
			DefaultDirection: domain.DefaultDirection,
		},
		RateLimit: RateLimitConfig{VotesPerMinute: 60},
		Cache:     CacheConfig{PaperTTLSeconds: 300},
		Tracing:   TracingConfig{SampleRatio: 1},
		Features: FeatureConfig{
			EnableMetrics:  true,
			EnableCORS:     true,
			AllowedOrigins: []string{"*"},
		},
	}
}

// LoadConfig loads configuration from CONFIG_FILE and environment variables
func LoadConfig() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// LoadFrom loads configuration from the given YAML file, which may be
// empty, and environment variables
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)
	c.Server.Environment = getEnv("ENVIRONMENT", c.Server.Environment)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)
	c.Server.IsLambda = getEnv("AWS_LAMBDA_FUNCTION_NAME", "") != ""

	c.Store.Type = getEnv("STORE_TYPE", c.Store.Type)
	c.Store.SQLitePath = getEnv("SQLITE_PATH", c.Store.SQLitePath)
	c.Store.FixturePath = getEnv("FIXTURE_FILE", c.Store.FixturePath)
	c.Store.Breaker = getEnvBool("STORE_BREAKER", c.Store.Breaker)
	c.Store.DynamoDB.Table = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.Store.DynamoDB.Table))
	c.Store.DynamoDB.Region = getEnv("AWS_REGION", c.Store.DynamoDB.Region)
	c.Store.DynamoDB.Endpoint = getEnv("DYNAMODB_ENDPOINT", c.Store.DynamoDB.Endpoint)
	c.Store.DynamoDB.CreateTable = getEnvBool("DYNAMODB_CREATE_TABLE", c.Store.DynamoDB.CreateTable)

	c.Events.BusName = getEnv("EVENT_BUS_NAME", c.Events.BusName)
	c.Events.Source = getEnv("EVENT_SOURCE", c.Events.Source)

	c.Visibility.HideThreshold = getEnvFloat("HIDE_THRESHOLD", c.Visibility.HideThreshold)

	c.Graph.DefaultDepth = getEnvInt("GRAPH_DEFAULT_DEPTH", c.Graph.DefaultDepth)
	c.Graph.MaxDepth = getEnvInt("GRAPH_MAX_DEPTH", c.Graph.MaxDepth)
	c.Graph.DefaultDirection = getEnv("GRAPH_DEFAULT_DIRECTION", c.Graph.DefaultDirection)

	c.RateLimit.VotesPerMinute = getEnvInt("VOTE_RATE_LIMIT", c.RateLimit.VotesPerMinute)
	c.RateLimit.Distributed = getEnvBool("VOTE_RATE_LIMIT_DISTRIBUTED", c.RateLimit.Distributed)
	c.Cache.PaperTTLSeconds = getEnvInt("PAPER_CACHE_TTL", c.Cache.PaperTTLSeconds)

	c.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)
	c.Tracing.SampleRatio = getEnvFloat("TRACE_SAMPLE_RATIO", c.Tracing.SampleRatio)

	c.Features.EnableMetrics = getEnvBool("ENABLE_METRICS", c.Features.EnableMetrics)
	c.Features.EnableCORS = getEnvBool("ENABLE_CORS", c.Features.EnableCORS)
	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		c.Features.AllowedOrigins = strings.Split(origins, ",")
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	switch c.Store.Type {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StoreDynamoDB:
		if c.Store.DynamoDB.Table == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb store")
		}
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}

	if math.IsNaN(c.Visibility.HideThreshold) || math.IsInf(c.Visibility.HideThreshold, 0) {
		return fmt.Errorf("hide threshold must be a finite number")
	}
	if c.Graph.MaxDepth < 0 {
		return fmt.Errorf("graph max depth cannot be negative")
	}
	if c.Graph.DefaultDepth < 0 || c.Graph.DefaultDepth > c.Graph.MaxDepth {
		return fmt.Errorf("graph default depth must be between 0 and %d", c.Graph.MaxDepth)
	}
	switch c.Graph.DefaultDirection {
	case "both", "outgoing", "incoming":
	default:
		return fmt.Errorf("unknown graph direction %q", c.Graph.DefaultDirection)
	}
	if c.RateLimit.VotesPerMinute < 0 {
		return fmt.Errorf("vote rate limit cannot be negative")
	}
	if c.Cache.PaperTTLSeconds < 0 {
		return fmt.Errorf("paper cache ttl cannot be negative")
	}
	if c.IsProduction() && c.Store.Type == StoreMemory && c.Store.FixturePath == "" {
		return fmt.Errorf("production requires a persistent store or a fixture")
	}

	return nil
}

// Domain returns the business rules derived from this configuration
func (c *Config) Domain() *domainconfig.DomainConfig {
	d := domainconfig.DefaultDomainConfig()
	d.HideThreshold = c.Visibility.HideThreshold
	d.DefaultExpandDepth = c.Graph.DefaultDepth
	d.MaxExpandDepth = c.Graph.MaxDepth
	d.DefaultDirection = c.Graph.DefaultDirection
	return d
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
