package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	Mongo     MongoConfig
	RateLimit RateLimitConfig
	Reaper    ReaperConfig

	EngineConfigPath string
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	SensorRate    float64
	SensorBurst   int
	EndpointRate  float64
	EndpointBurst int
}

type ReaperConfig struct {
	Enabled     bool
	Interval    time.Duration
	GracePeriod time.Duration
	LockTTL     time.Duration
	BatchSize   int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "sensorhub"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       getenvInt64("SNOWFLAKE_NODE_ID", 1),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "sensors"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "sensorhub.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Addr:         strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			Password:     strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:           getenvInt("REDIS_DB", 0),
			KeyPrefix:    getenv("REDIS_KEY_PREFIX", ""),
			DialTimeout:  getenvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("REDIS_READ_TIMEOUT", time.Second),
			WriteTimeout: getenvDuration("REDIS_WRITE_TIMEOUT", time.Second),
		},
		Mongo: MongoConfig{
			URI:        strings.TrimSpace(getenv("MONGO_URI", "mongodb://localhost:27017")),
			Database:   getenv("MONGO_DATABASE", "sensors"),
			Collection: getenv("MONGO_COLLECTION", "sensors"),
			Timeout:    getenvDuration("MONGO_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("TELEMETRY_RATE_LIMIT_ENABLED", false),
			SensorRate:    getenvFloat("TELEMETRY_RATE_LIMIT_SENSOR_RATE", 1),
			SensorBurst:   getenvInt("TELEMETRY_RATE_LIMIT_SENSOR_BURST", 5),
			EndpointRate:  getenvFloat("TELEMETRY_RATE_LIMIT_ENDPOINT_RATE", 500),
			EndpointBurst: getenvInt("TELEMETRY_RATE_LIMIT_ENDPOINT_BURST", 1000),
		},
		Reaper: ReaperConfig{
			Enabled:     getenvBool("REAPER_ENABLED", true),
			Interval:    getenvDuration("REAPER_INTERVAL", 5*time.Minute),
			GracePeriod: getenvDuration("REAPER_GRACE_PERIOD", 10*time.Minute),
			LockTTL:     getenvDuration("REAPER_LOCK_TTL", 2*time.Minute),
			BatchSize:   getenvInt("REAPER_BATCH_SIZE", 200),
		},

		EngineConfigPath: strings.TrimSpace(getenv("ENGINE_CONFIG_PATH", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
