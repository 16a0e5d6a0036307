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

// Store drivers.
const (
	StoreDriverEndpoint = "endpoint"
	StoreDriverSheets   = "sheets"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Timezone  string

	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Google   GoogleConfig
	Uploads  UploadsConfig
	Exports  ExportsConfig
	Cron     CronConfig
	Mail     MailConfig
	Admin    AdminConfig
}

// StoreConfig selects and tunes the record store backend.
type StoreConfig struct {
	Driver        string
	EndpointURL   string
	Timeout       time.Duration
	SpreadsheetID string
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
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig governs read-through caching of store collections.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	DashboardTTL time.Duration
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

// GoogleConfig holds service account access for Sheets and Drive.
type GoogleConfig struct {
	CredentialsFile string
	CredentialsJSON string
	DriveFolderID   string
	UploadChunkSize int
	OAuthClientID   string
}

// HasCredentials reports whether any service account material is configured.
func (g GoogleConfig) HasCredentials() bool {
	return g.CredentialsFile != "" || g.CredentialsJSON != ""
}

// UploadsConfig controls document staging and the upload worker.
type UploadsConfig struct {
	StagingDir       string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	Workers          int
	Retries          int
}

// ExportsConfig configures generated export files and their signed links.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	PDFFontFile     string
}

// CronConfig holds the schedules of periodic maintenance jobs.
type CronConfig struct {
	Enabled      bool
	CleanupSpec  string
	ReminderSpec string
	FileTTL      time.Duration
}

// MailConfig configures outgoing reminder mail.
type MailConfig struct {
	SendGridKey string
	FromEmail   string
	AppName     string
}

// AdminConfig names the main administrators and the optional bootstrap account.
type AdminConfig struct {
	Usernames         []string
	BootstrapUsername string
	BootstrapPassword string
	BootstrapName     string
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

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("SCHOOL_TIMEZONE")

	cfg.Store = StoreConfig{
		Driver:        strings.ToLower(v.GetString("STORE_DRIVER")),
		EndpointURL:   v.GetString("STORE_ENDPOINT_URL"),
		Timeout:       parseDuration(v.GetString("STORE_TIMEOUT"), 15*time.Second),
		SpreadsheetID: v.GetString("STORE_SPREADSHEET_ID"),
	}

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
		URL:      v.GetString("REDIS_URL"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled:      v.GetBool("ENABLE_CACHE"),
		TTL:          parseDuration(v.GetString("CACHE_TTL"), 30*time.Second),
		DashboardTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 15*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Google = GoogleConfig{
		CredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
		CredentialsJSON: v.GetString("GOOGLE_CREDENTIALS_JSON"),
		DriveFolderID:   v.GetString("DRIVE_FOLDER_ID"),
		UploadChunkSize: v.GetInt("DRIVE_UPLOAD_CHUNK_SIZE"),
		OAuthClientID:   v.GetString("GOOGLE_OAUTH_CLIENT_ID"),
	}

	maxUpload := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 25 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StagingDir:       v.GetString("UPLOADS_STAGING_DIR"),
		MaxFileSizeBytes: maxUpload,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
		Workers:          v.GetInt("UPLOADS_WORKERS"),
		Retries:          v.GetInt("UPLOADS_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), time.Hour),
		PDFFontFile:     v.GetString("EXPORTS_PDF_FONT_FILE"),
	}

	cfg.Cron = CronConfig{
		Enabled:      v.GetBool("ENABLE_CRON"),
		CleanupSpec:  v.GetString("CRON_CLEANUP_SPEC"),
		ReminderSpec: v.GetString("CRON_REMINDER_SPEC"),
		FileTTL:      parseDuration(v.GetString("CRON_FILE_TTL"), 24*time.Hour),
	}

	cfg.Mail = MailConfig{
		SendGridKey: v.GetString("SENDGRID_API_KEY"),
		FromEmail:   v.GetString("MAIL_FROM"),
		AppName:     v.GetString("APP_NAME"),
	}

	cfg.Admin = AdminConfig{
		Usernames:         splitAndTrim(v.GetString("ADMIN_USERNAMES")),
		BootstrapUsername: v.GetString("ADMIN_BOOTSTRAP_USERNAME"),
		BootstrapPassword: v.GetString("ADMIN_BOOTSTRAP_PASSWORD"),
		BootstrapName:     v.GetString("ADMIN_BOOTSTRAP_NAME"),
	}
	if cfg.Admin.BootstrapUsername != "" && !contains(cfg.Admin.Usernames, cfg.Admin.BootstrapUsername) {
		cfg.Admin.Usernames = append(cfg.Admin.Usernames, cfg.Admin.BootstrapUsername)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverEndpoint:
		if c.Store.EndpointURL == "" {
			return errors.New("STORE_ENDPOINT_URL is required for the endpoint store")
		}
	case StoreDriverSheets:
		if c.Store.SpreadsheetID == "" || !c.Google.HasCredentials() {
			return errors.New("STORE_SPREADSHEET_ID and Google credentials are required for the sheets store")
		}
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return errors.New("unknown STORE_DRIVER " + c.Store.Driver)
	}
	if c.Env == EnvProduction && c.JWT.Secret == "dev_secret" {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("SCHOOL_TIMEZONE", "Asia/Ho_Chi_Minh")

	v.SetDefault("STORE_DRIVER", StoreDriverMemory)
	v.SetDefault("STORE_ENDPOINT_URL", "")
	v.SetDefault("STORE_TIMEOUT", "15s")
	v.SetDefault("STORE_SPREADSHEET_ID", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dept_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("DASHBOARD_CACHE_TTL", "15s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "dept-portal-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GOOGLE_CREDENTIALS_FILE", "")
	v.SetDefault("GOOGLE_CREDENTIALS_JSON", "")
	v.SetDefault("DRIVE_FOLDER_ID", "")
	v.SetDefault("DRIVE_UPLOAD_CHUNK_SIZE", 8*1024*1024)
	v.SetDefault("GOOGLE_OAUTH_CLIENT_ID", "")

	v.SetDefault("UPLOADS_STAGING_DIR", "./staging")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 25*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "application/pdf,application/msword,application/vnd.openxmlformats-officedocument.wordprocessingml.document,application/vnd.ms-powerpoint,application/vnd.openxmlformats-officedocument.presentationml.presentation,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,application/zip,image/png,image/jpeg")
	v.SetDefault("UPLOADS_WORKERS", 2)
	v.SetDefault("UPLOADS_RETRIES", 3)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "1h")
	v.SetDefault("EXPORTS_PDF_FONT_FILE", "")

	v.SetDefault("ENABLE_CRON", true)
	v.SetDefault("CRON_CLEANUP_SPEC", "0 3 * * *")
	v.SetDefault("CRON_REMINDER_SPEC", "*/10 * * * *")
	v.SetDefault("CRON_FILE_TTL", "24h")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM", "no-reply@example.edu.vn")
	v.SetDefault("APP_NAME", "Tổ Toán - Tin")

	v.SetDefault("ADMIN_USERNAMES", "")
	v.SetDefault("ADMIN_BOOTSTRAP_USERNAME", "")
	v.SetDefault("ADMIN_BOOTSTRAP_PASSWORD", "")
	v.SetDefault("ADMIN_BOOTSTRAP_NAME", "Tổ trưởng chuyên môn")
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
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
