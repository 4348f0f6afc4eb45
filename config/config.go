package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Session    SessionConfig
	RateLimit  RateLimitConfig
	Chunking   ChunkingConfig
	LLM        LLMConfig
	Transcript TranscriptConfig
	Spaces     SpacesConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver      string // "sqlite" or "redis"
	Path        string
	BusyTimeout time.Duration
}

type RedisConfig struct {
	URL       string
	Namespace string
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	// CacheTTL bounds how long a session is served from memory before it is
	// reloaded from the database.
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration
}

type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
	// GlobalRPM and Burst size the HTTP-wide token bucket; zero disables it.
	GlobalRPM int
	Burst     int
}

type ChunkingConfig struct {
	MaxChunkChars   int
	OverlapChars    int
	TopK            int
	SinglePassChars int
}

type LLMConfig struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	Temperature       float64
	MaxTokens         int
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

type TranscriptConfig struct {
	PythonPath  string
	PythonArgs  []string
	ScriptsPath string
	Languages   []string
	Timeout     time.Duration
}

type SpacesConfig struct {
	Enabled   bool
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
	Prefix    string
}

type LogConfig struct {
	Level  string
	Format string
	Dir    string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            GetEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 5*time.Minute),
			IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 4*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:      strings.ToLower(GetEnv("DB_DRIVER", "sqlite")),
			Path:        GetEnv("DB_PATH", "./data/bot.db"),
			BusyTimeout: getEnvAsDuration("DB_BUSY_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:       GetEnv("REDIS_URL", "redis://localhost:6379/0"),
			Namespace: GetEnv("REDIS_NAMESPACE", "ytchat"),
		},
		Session: SessionConfig{
			TTL:                  getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			SweepInterval:        getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Hour),
			CacheTTL:             getEnvAsDuration("SESSION_CACHE_TTL", time.Minute),
			CacheCleanupInterval: getEnvAsDuration("SESSION_CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Window:      getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			MaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 30),
			GlobalRPM:   getEnvAsInt("GLOBAL_RATE_LIMIT_RPM", 600),
			Burst:       getEnvAsInt("GLOBAL_RATE_LIMIT_BURST", 50),
		},
		Chunking: ChunkingConfig{
			MaxChunkChars:   getEnvAsInt("MAX_CHUNK_CHARS", 4000),
			OverlapChars:    getEnvAsInt("OVERLAP_CHARS", 400),
			TopK:            getEnvAsInt("CONTEXT_TOP_K", 2),
			SinglePassChars: getEnvAsInt("SUMMARY_SINGLE_PASS_CHARS", 12000),
		},
		LLM: LLMConfig{
			Provider:          strings.ToLower(GetEnv("LLM_PROVIDER", "googleai")),
			Model:             GetEnv("LLM_MODEL", "gemini-2.5-flash"),
			APIKey:            GetEnv("LLM_API_KEY", ""),
			BaseURL:           GetEnv("LLM_BASE_URL", ""),
			Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0.2),
			MaxTokens:         getEnvAsInt("LLM_MAX_TOKENS", 2048),
			RequestsPerSecond: getEnvAsFloat("LLM_REQUESTS_PER_SECOND", 2),
			Burst:             getEnvAsInt("LLM_BURST", 4),
			Timeout:           getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
		},
		Transcript: TranscriptConfig{
			PythonPath:  GetEnv("PYTHON_PATH", "uv"),
			PythonArgs:  getEnvAsSlice("PYTHON_ARGS", []string{"run"}),
			ScriptsPath: GetEnv("SCRIPTS_PATH", "./scripts"),
			Languages:   getEnvAsSlice("TRANSCRIPT_LANGUAGES", []string{"en", "hi"}),
			Timeout:     getEnvAsDuration("TRANSCRIPT_TIMEOUT", 2*time.Minute),
		},
		Spaces: SpacesConfig{
			Enabled:   getEnvAsBool("SPACES_ENABLED", false),
			AccessKey: GetEnv("SPACES_ACCESS_KEY", ""),
			SecretKey: GetEnv("SPACES_SECRET_KEY", ""),
			Region:    GetEnv("SPACES_REGION", "nyc3"),
			Endpoint:  GetEnv("SPACES_ENDPOINT", "https://nyc3.digitaloceanspaces.com"),
			Bucket:    GetEnv("SPACES_BUCKET", ""),
			Prefix:    GetEnv("SPACES_PREFIX", "transcripts"),
		},
		Log: LogConfig{
			Level:  GetEnv("LOG_LEVEL", "info"),
			Format: GetEnv("LOG_FORMAT", "text"),
			Dir:    GetEnv("LOG_DIR", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		warnInvalid(key, value, defaultValue, "Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		warnInvalid(key, value, defaultValue, "Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		warnInvalid(key, value, defaultValue, "Invalid float, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		warnInvalid(key, value, defaultValue, "Invalid boolean, using default")
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated value, dropping empty items.
func getEnvAsSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		warnInvalid(key, value, defaultValue, "Empty list, using default")
		return defaultValue
	}
	return items
}

func warnInvalid(key, value string, defaultValue interface{}, msg string) {
	logrus.WithFields(logrus.Fields{
		"key":          key,
		"value":        value,
		"defaultValue": defaultValue,
	}).Warn(msg)
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return errors.New("server timeouts must be greater than 0")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis url is required when DB_DRIVER=redis")
		}
	default:
		return errors.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be greater than 0")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("session sweep interval must be greater than 0")
	}
	if c.Session.CacheTTL <= 0 || c.Session.CacheCleanupInterval <= 0 {
		return errors.New("session cache ttl and cleanup interval must be greater than 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be greater than 0")
	}
	if c.RateLimit.MaxRequests < 1 {
		return errors.New("rate limit max requests must be at least 1")
	}

	if c.Chunking.MaxChunkChars <= 0 {
		return errors.New("max chunk chars must be greater than 0")
	}
	if c.Chunking.OverlapChars < 0 || c.Chunking.OverlapChars >= c.Chunking.MaxChunkChars {
		return errors.Errorf("overlap chars must be in [0, %d)", c.Chunking.MaxChunkChars)
	}
	if c.Chunking.TopK < 1 {
		return errors.New("context top k must be at least 1")
	}
	if c.Chunking.SinglePassChars < 0 {
		return errors.New("summary single pass chars must not be negative")
	}

	if c.LLM.Provider == "" || c.LLM.Model == "" {
		return errors.New("llm provider and model are required")
	}
	if c.LLM.Timeout <= 0 {
		return errors.New("llm timeout must be greater than 0")
	}
	if c.Transcript.Timeout <= 0 {
		return errors.New("transcript timeout must be greater than 0")
	}

	if c.Spaces.Enabled && c.Spaces.Bucket == "" {
		return errors.New("spaces bucket is required when SPACES_ENABLED=true")
	}
	return nil
}
