package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverMinio    = "minio"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type WorkflowConfig struct {
	MatchTTL      time.Duration
	InvitationTTL time.Duration
	SweepInterval time.Duration
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type FilesConfig struct {
	Driver         string
	MaxUploadBytes int64
	Minio          MinioConfig
}

type Config struct {
	Environment   string
	LogLevel      string
	StorageDriver string
	HTTP          HTTPConfig
	DB            DBConfig
	Auth          AuthConfig
	Workflow      WorkflowConfig
	Files         FilesConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment:   v.GetString("APP_ENV"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		StorageDriver: strings.ToLower(v.GetString("STORAGE_DRIVER")),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Workflow: WorkflowConfig{
			MatchTTL:      v.GetDuration("MATCH_TTL"),
			InvitationTTL: v.GetDuration("INVITATION_TTL"),
			SweepInterval: v.GetDuration("SWEEP_INTERVAL"),
		},
		Files: FilesConfig{
			Driver:         strings.ToLower(v.GetString("FILES_DRIVER")),
			MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
			Minio: MinioConfig{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: v.GetString("MINIO_SECRET_KEY"),
				Bucket:    v.GetString("MINIO_BUCKET"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
			},
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = DriverPostgres
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7091
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.Workflow.MatchTTL == 0 {
		cfg.Workflow.MatchTTL = 7 * 24 * time.Hour
	}
	if cfg.Workflow.InvitationTTL == 0 {
		cfg.Workflow.InvitationTTL = 72 * time.Hour
	}
	if cfg.Workflow.SweepInterval == 0 {
		cfg.Workflow.SweepInterval = 5 * time.Minute
	}
	if cfg.Files.Driver == "" {
		cfg.Files.Driver = DriverMinio
	}
	if cfg.Files.MaxUploadBytes == 0 {
		cfg.Files.MaxUploadBytes = 10 << 20
	}
	if cfg.Files.Minio.Bucket == "" {
		cfg.Files.Minio.Bucket = "contract-documents"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.StorageDriver {
	case DriverPostgres:
		if cfg.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q", DriverPostgres, DriverMemory)
	}
	switch cfg.Files.Driver {
	case DriverMinio:
		if cfg.Files.Minio.Endpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("FILES_DRIVER must be %q or %q", DriverMinio, DriverMemory)
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Workflow.MatchTTL < 0 || cfg.Workflow.InvitationTTL < 0 || cfg.Workflow.SweepInterval < 0 {
		return fmt.Errorf("workflow durations must be positive")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
