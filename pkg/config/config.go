package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string
	Port int

	Database DatabaseConfig
	Redis    RedisConfig
	Remote   RemoteConfig
	Store    StoreConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Studio   StudioConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration
}

// RemoteConfig points the catalog at its optional remote document store.
type RemoteConfig struct {
	Enabled    bool
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// StoreConfig locates the local ledger store.
type StoreConfig struct {
	DataDir string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StudioConfig carries business policy knobs for the studio.
type StudioConfig struct {
	Currency        string
	InstructorShare float64
	UpcomingLimit   int
	TopClassesLimit int
	SeedCatalog     bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isFileMissing(err) {
			return nil, err
		}
	}

	cfg := &Config{
		Env:  v.GetString("APP_ENV"),
		Port: v.GetInt("PORT"),
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			CacheTTL: v.GetDuration("REDIS_CACHE_TTL"),
		},
		Remote: RemoteConfig{
			Enabled:    v.GetBool("REMOTE_ENABLED"),
			URI:        v.GetString("REMOTE_MONGO_URI"),
			Database:   v.GetString("REMOTE_MONGO_DB"),
			Collection: v.GetString("REMOTE_MONGO_COLLECTION"),
			Timeout:    v.GetDuration("REMOTE_TIMEOUT"),
		},
		Store: StoreConfig{
			DataDir: v.GetString("STORE_DATA_DIR"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Expiration: v.GetDuration("JWT_EXPIRATION"),
			Issuer:     v.GetString("JWT_ISSUER"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Studio: StudioConfig{
			Currency:        v.GetString("STUDIO_CURRENCY"),
			InstructorShare: v.GetFloat64("STUDIO_INSTRUCTOR_SHARE"),
			UpcomingLimit:   v.GetInt("STUDIO_UPCOMING_LIMIT"),
			TopClassesLimit: v.GetInt("STUDIO_TOP_CLASSES_LIMIT"),
			SeedCatalog:     v.GetBool("STUDIO_SEED_CATALOG"),
		},
	}

	if cfg.Studio.InstructorShare <= 0 || cfg.Studio.InstructorShare > 1 {
		return nil, errors.New("STUDIO_INSTRUCTOR_SHARE must be within (0, 1]")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "moodstudio")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", "30m")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CACHE_TTL", "60s")

	v.SetDefault("REMOTE_ENABLED", false)
	v.SetDefault("REMOTE_MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("REMOTE_MONGO_DB", "moodstudio")
	v.SetDefault("REMOTE_MONGO_COLLECTION", "classes")
	v.SetDefault("REMOTE_TIMEOUT", "5s")

	v.SetDefault("STORE_DATA_DIR", "data")

	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "moodyoga-studio")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STUDIO_CURRENCY", "USD")
	v.SetDefault("STUDIO_INSTRUCTOR_SHARE", 0.7)
	v.SetDefault("STUDIO_UPCOMING_LIMIT", 3)
	v.SetDefault("STUDIO_TOP_CLASSES_LIMIT", 5)
	v.SetDefault("STUDIO_SEED_CATALOG", true)
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func isFileMissing(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file")
}
