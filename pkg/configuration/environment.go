package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/pkg/logging"
)

const Production = "production"

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
	StorageRedis    = "redis"
)

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"labx"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type LokiOptions struct {
	LogPath string `env:"LOG_PATH" envDefault:"./logs/app.log"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"labx-testbed"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	GlobalRPS int    `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"1000"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL  string `env:"RATE_LIMIT_REDIS_URL"`
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if r.GlobalRPS < 0 {
		return fmt.Errorf("rate limit GlobalRPS must be non-negative, got %d", r.GlobalRPS)
	}
	if r.GlobalRPS > 1000000 {
		return fmt.Errorf("rate limit GlobalRPS too high, maximum is 1,000,000, got %d", r.GlobalRPS)
	}
	if r.Storage != StorageMemory && r.Storage != StorageRedis {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == StorageRedis && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type StorageOptions struct {
	TestCases         string `env:"TESTCASE_STORAGE" envDefault:"memory"`
	Executions        string `env:"EXECUTION_STORAGE" envDefault:"memory"`
	MigrationsEnabled bool   `env:"MIGRATIONS_ENABLED" envDefault:"true"`
	SeedCatalog       bool   `env:"SEED_CATALOG" envDefault:"true"`
}

func (s *StorageOptions) Validate() error {
	for name, v := range map[string]string{"TESTCASE_STORAGE": s.TestCases, "EXECUTION_STORAGE": s.Executions} {
		switch v {
		case StoragePostgres, StorageMemory:
		default:
			return fmt.Errorf("invalid %s=%q (expected postgres|memory)", name, v)
		}
	}
	return nil
}

// UsesPostgres reports whether any repository needs a database pool.
func (s *StorageOptions) UsesPostgres() bool {
	return s.TestCases == StoragePostgres || s.Executions == StoragePostgres
}

type ExecutionOptions struct {
	TimeAcceleration float64       `env:"EXECUTION_TIME_ACCELERATION" envDefault:"1"`
	MessageInterval  time.Duration `env:"EXECUTION_MESSAGE_INTERVAL" envDefault:"1s"`
	EventCache       string        `env:"EVENT_CACHE" envDefault:"memory"`
	EventCacheSize   int           `env:"EVENT_CACHE_SIZE" envDefault:"1000"`

	CellSearchStepInterval time.Duration `env:"CELL_SEARCH_STEP_INTERVAL" envDefault:"2s"`

	WSUpdateInterval    time.Duration `env:"WS_UPDATE_INTERVAL" envDefault:"1s"`
	WSMaxStream         time.Duration `env:"WS_MAX_STREAM" envDefault:"10m"`
	WSHeartbeatInterval time.Duration `env:"WS_HEARTBEAT_INTERVAL" envDefault:"30s"`
	WSIdleTimeout       time.Duration `env:"WS_IDLE_TIMEOUT" envDefault:"5m"`
}

func (e *ExecutionOptions) Validate() error {
	if e.TimeAcceleration <= 0 {
		return fmt.Errorf("EXECUTION_TIME_ACCELERATION must be positive, got %v", e.TimeAcceleration)
	}
	if e.EventCache != StorageMemory && e.EventCache != StorageRedis {
		return fmt.Errorf("invalid EVENT_CACHE=%q (expected memory|redis)", e.EventCache)
	}
	if e.EventCacheSize <= 0 {
		return fmt.Errorf("EVENT_CACHE_SIZE must be positive, got %d", e.EventCacheSize)
	}
	return nil
}

type DeploymentOptions struct {
	StepDelay  time.Duration `env:"DEPLOY_STEP_DELAY" envDefault:"500ms"`
	WebhookURL string        `env:"DEPLOY_WEBHOOK_URL"`
}

type Configuration struct {
	Database      DatabaseOptions
	Loki          LokiOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	Storage       StorageOptions
	Execution     ExecutionOptions
	Deployment    DeploymentOptions

	RedisURL         string `env:"REDIS_URL"`
	MigrationsDir    string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	Domain           string `env:"DOMAIN" envDefault:"localhost"`
	Origin           string `env:"ORIGIN" envDefault:"http://localhost:3200"`
	AllowedOrigins   string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000,ws://localhost:3000"`
	PageSize         int    `env:"PAGE_SIZE" envDefault:"50"`
	MaxPageSize      int    `env:"MAX_PAGE_SIZE" envDefault:"500"`
	MaxUploadSize    int64  `env:"MAX_UPLOAD_SIZE" envDefault:"33554432"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	ServiceName      string `env:"SERVICE_NAME" envDefault:"labx-testbed"`
	ServiceVersion   string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
	// Looked up on every request; a random uuidv4 is generated when absent.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	// Falls back to request.RemoteAddr when absent.
	RealIPHeader string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`

	// Ops endpoints guard (/health, /debug/prometheus). Enforced only in production.
	OpsGuardEnabled       bool   `env:"OPS_GUARD_ENABLED" envDefault:"true"`
	OpsGuardCIDRs         string `env:"OPS_GUARD_CIDRS" envDefault:""`
	OpsGuardToken         string `env:"OPS_GUARD_TOKEN" envDefault:""`
	OpsGuardBasicAuthUser string `env:"OPS_GUARD_BASIC_AUTH_USER" envDefault:""`
	OpsGuardBasicAuthPass string `env:"OPS_GUARD_BASIC_AUTH_PASS" envDefault:""`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) Scheme() string {
	if c.GoAppEnvironment == Production { // assume 'https' on production mode
		return "https"
	}
	return "http"
}

// CORSOrigins splits AllowedOrigins on commas.
func (c *Configuration) CORSOrigins() []string {
	out := []string{}
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.Loki.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.finalize()
	return nil
}

func (c *Configuration) validate() error {
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage configuration error: %w", err)
	}
	if err := c.Execution.Validate(); err != nil {
		return fmt.Errorf("execution configuration error: %w", err)
	}
	if c.Execution.EventCache == StorageRedis && c.RedisURL == "" {
		return fmt.Errorf("EVENT_CACHE=redis requires REDIS_URL")
	}
	if c.MaxPageSize < c.PageSize {
		return fmt.Errorf("MAX_PAGE_SIZE (%d) must not be lower than PAGE_SIZE (%d)", c.MaxPageSize, c.PageSize)
	}
	return nil
}

func (c *Configuration) finalize() {
	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	// Keep Origin in sync with PORT unless set explicitly.
	if os.Getenv("ORIGIN") == "" {
		if c.GoAppEnvironment == "development" {
			c.Origin = fmt.Sprintf("%s://%s:%d", c.Scheme(), c.Domain, c.ServerPort)
		} else {
			c.Origin = fmt.Sprintf("%s://%s", c.Scheme(), c.Domain)
		}
	}
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
