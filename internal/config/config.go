package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Store     StoreConfig     `mapstructure:"store"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Listings  ListingsConfig  `mapstructure:"listings"`
	Storage   StorageConfig   `mapstructure:"storage"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Email     EmailConfig     `mapstructure:"email"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	BaseURL  string `mapstructure:"base_url"`
	LogLevel string `mapstructure:"log_level"`
	RunMode  string `mapstructure:"-"` // set via flag, not env
}

// IsProduction reports whether internal error text must be hidden from clients.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	ServicePort     string        `mapstructure:"service_port"` // empty disables the service API
	CORSOrigin      string        `mapstructure:"cors_origin"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the repository implementation: "mongo" or "memory".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTTTL        time.Duration `mapstructure:"jwt_ttl"`
	EmailTokenTTL time.Duration `mapstructure:"email_token_ttl"`
	ResetTokenTTL time.Duration `mapstructure:"reset_token_ttl"`
	PhoneCodeTTL  time.Duration `mapstructure:"phone_code_ttl"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// CacheConfig selects the keyed TTL cache: "memory" or "redis".
type CacheConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type ListingsConfig struct {
	TTLDays      int           `mapstructure:"ttl_days"`
	Moderation   bool          `mapstructure:"moderation"`
	ViewDedupTTL time.Duration `mapstructure:"view_dedup_ttl"`
}

// TTL is the lifetime granted on creation and on every extension.
func (l ListingsConfig) TTL() time.Duration {
	return time.Duration(l.TTLDays) * 24 * time.Hour
}

// StorageConfig selects the image store: "s3", "minio" or "file".
type StorageConfig struct {
	Driver          string `mapstructure:"driver"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	LocalDir        string `mapstructure:"local_dir"`
	MaxDimension    int    `mapstructure:"max_dimension"`
	MaxSizeMB       int    `mapstructure:"max_size_mb"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type EmailConfig struct {
	MockServices bool   `mapstructure:"mock_services"`
	LogFile      string `mapstructure:"log_file"`
}

type NATSConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TasksConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// binding ties a nested config key to its environment variable and default.
type binding struct {
	key string
	env string
	def any
}

var bindings = []binding{
	{"app.name", "APP_NAME", "Cyboard"},
	{"app.env", "APP_ENV", "development"},
	{"app.base_url", "APP_BASE_URL", "http://localhost:8080"},
	{"app.log_level", "LOG_LEVEL", "info"},

	{"http.port", "PORT", "8080"},
	{"http.service_port", "SERVICE_PORT", ""},
	{"http.cors_origin", "CORS_ORIGIN", "*"},
	{"http.shutdown_timeout", "SHUTDOWN_TIMEOUT", 15 * time.Second},

	{"store.driver", "STORE_DRIVER", "mongo"},

	{"mongo.uri", "MONGO_URI", ""},
	{"mongo.database", "MONGO_DB_NAME", "cyboard"},
	{"mongo.connect_timeout", "MONGO_CONNECT_TIMEOUT", 10 * time.Second},

	{"redis.addr", "REDIS_ADDR", "localhost:6379"},
	{"redis.password", "REDIS_PASSWORD", ""},
	{"redis.db", "REDIS_DB", 0},

	{"auth.jwt_secret", "JWT_SECRET", ""},
	{"auth.jwt_ttl", "JWT_TTL", 30 * 24 * time.Hour},
	{"auth.email_token_ttl", "EMAIL_TOKEN_TTL", 24 * time.Hour},
	{"auth.reset_token_ttl", "RESET_TOKEN_TTL", time.Hour},
	{"auth.phone_code_ttl", "PHONE_CODE_TTL", 10 * time.Minute},
	{"auth.bcrypt_cost", "BCRYPT_COST", 10},

	{"ratelimit.requests", "RATE_LIMIT_REQUESTS", 100},
	{"ratelimit.window", "RATE_LIMIT_WINDOW", 15 * time.Minute},

	{"cache.driver", "CACHE_DRIVER", "memory"},
	{"cache.ttl", "CACHE_TTL", time.Hour},

	{"listings.ttl_days", "LISTING_TTL_DAYS", 30},
	{"listings.moderation", "LISTING_MODERATION", false},
	{"listings.view_dedup_ttl", "VIEW_DEDUP_TTL", 365 * 24 * time.Hour},

	{"storage.driver", "STORAGE_DRIVER", "file"},
	{"storage.bucket", "STORAGE_BUCKET", "cyboard"},
	{"storage.region", "AWS_REGION", "eu-central-1"},
	{"storage.access_key_id", "STORAGE_ACCESS_KEY_ID", ""},
	{"storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY", ""},
	{"storage.endpoint", "STORAGE_ENDPOINT", ""},
	{"storage.use_ssl", "STORAGE_USE_SSL", true},
	{"storage.public_base_url", "STORAGE_PUBLIC_BASE_URL", "/uploads"},
	{"storage.local_dir", "STORAGE_LOCAL_DIR", "./uploads"},
	{"storage.max_dimension", "IMAGE_MAX_DIMENSION", 2048},
	{"storage.max_size_mb", "IMAGE_MAX_SIZE_MB", 10},

	{"smtp.host", "SMTP_HOST", ""},
	{"smtp.port", "SMTP_PORT", 587},
	{"smtp.username", "SMTP_USERNAME", ""},
	{"smtp.password", "SMTP_PASSWORD", ""},
	{"smtp.from", "SMTP_FROM_ADDRESS", "noreply@cyboard.example.com"},

	{"email.mock_services", "MOCK_SERVICES", false},
	{"email.log_file", "LOG_EMAILS", ""},

	{"nats.url", "NATS_URL", ""},
	{"nats.timeout", "NATS_TIMEOUT", 5 * time.Second},

	{"tasks.enabled", "TASKS_ENABLED", false},
	{"tasks.concurrency", "TASKS_CONCURRENCY", 10},

	{"metrics.enabled", "METRICS_ENABLED", true},

	{"tracing.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT", ""},
	{"tracing.service_name", "OTEL_SERVICE_NAME", "cyboard-api"},
}

// Load configuration from environment variables (and .env if present).
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", b.env, err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.App.RunMode = runMode

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the keys without which the process cannot start.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("missing required environment variable: JWT_SECRET")
	}
	switch c.Store.Driver {
	case "mongo":
		if c.Mongo.URI == "" {
			return fmt.Errorf("missing required environment variable: MONGO_URI")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid STORE_DRIVER: %q", c.Store.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid CACHE_DRIVER: %q", c.Cache.Driver)
	}
	switch c.Storage.Driver {
	case "s3", "minio", "file":
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER: %q", c.Storage.Driver)
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("invalid rate limit: %d per %s", c.RateLimit.Requests, c.RateLimit.Window)
	}
	if c.Listings.TTLDays <= 0 {
		return fmt.Errorf("invalid LISTING_TTL_DAYS: %d", c.Listings.TTLDays)
	}
	return nil
}
