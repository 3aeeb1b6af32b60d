package config

import (
	"errors"
	"io/fs"
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

	Database     DatabaseConfig
	Redis        RedisConfig
	CORS         CORSConfig
	Log          LogConfig
	Uploads      UploadsConfig
	Reports      ReportsConfig
	Snapshots    SnapshotsConfig
	PreviewCache PreviewCacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// UploadsConfig bounds spreadsheet uploads.
type UploadsConfig struct {
	MaxFileSizeBytes int64
	MaxFiles         int
}

// ReportsConfig configures report rendering and artifact storage.
type ReportsConfig struct {
	StorageDir          string
	WorkerConcurrency   int
	WorkerRetries       int
	InstitutionName     string
	InstitutionSubtitle string
	InstitutionNotes    []string
	LogoPath            string
}

// SnapshotsConfig toggles Postgres persistence of the ledger.
type SnapshotsConfig struct {
	Enabled bool
	Key     string
}

// PreviewCacheConfig toggles the Redis cache for subject previews.
type PreviewCacheConfig struct {
	Enabled bool
	TTL     time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUpload := v.GetInt64("UPLOAD_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		MaxFileSizeBytes: maxUpload,
		MaxFiles:         v.GetInt("UPLOAD_MAX_FILES"),
	}

	cfg.Reports = ReportsConfig{
		StorageDir:          v.GetString("REPORTS_STORAGE_DIR"),
		WorkerConcurrency:   v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:       v.GetInt("REPORTS_WORKER_RETRIES"),
		InstitutionName:     v.GetString("REPORTS_INSTITUTION_NAME"),
		InstitutionSubtitle: v.GetString("REPORTS_INSTITUTION_SUBTITLE"),
		InstitutionNotes:    splitOn(v.GetString("REPORTS_INSTITUTION_LINES"), ";"),
		LogoPath:            v.GetString("REPORTS_LOGO_PATH"),
	}

	cfg.Snapshots = SnapshotsConfig{
		Enabled: v.GetBool("ENABLE_SNAPSHOTS"),
		Key:     v.GetString("SNAPSHOT_KEY"),
	}

	cfg.PreviewCache = PreviewCacheConfig{
		Enabled: v.GetBool("ENABLE_PREVIEW_CACHE"),
		TTL:     parseDuration(v.GetString("PREVIEW_CACHE_TTL"), 10*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8000)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "progress_reports")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("UPLOAD_MAX_FILES", 50)

	v.SetDefault("REPORTS_STORAGE_DIR", "./generated_reports")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 4)
	v.SetDefault("REPORTS_WORKER_RETRIES", 1)
	v.SetDefault("REPORTS_INSTITUTION_NAME", "LORDS INSTITUTE OF ENGINEERING & TECHNOLOGY")
	v.SetDefault("REPORTS_INSTITUTION_SUBTITLE", "(Autonomous)")
	v.SetDefault("REPORTS_INSTITUTION_LINES", "Approved by AICTE | Affiliated to Osmania University | Estd. 2003.;Accredited with 'A' grade by NAAC | Accredited by NBA")
	v.SetDefault("REPORTS_LOGO_PATH", "")

	v.SetDefault("ENABLE_SNAPSHOTS", false)
	v.SetDefault("SNAPSHOT_KEY", "default")
	v.SetDefault("ENABLE_PREVIEW_CACHE", false)
	v.SetDefault("PREVIEW_CACHE_TTL", "10m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	return splitOn(raw, ",")
}

func splitOn(raw, sep string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
