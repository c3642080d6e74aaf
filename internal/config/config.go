package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agrilink/usermgmt/internal/store"
)

// EnvPrefix is prepended to every environment variable, e.g. UMS_LISTEN_ADDR.
const EnvPrefix = "UMS"

type SMTP struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Enabled reports whether outgoing mail should go through SMTP.
func (s SMTP) Enabled() bool { return s.Host != "" }

type Config struct {
	ListenAddr string
	DataDir    string
	LogDir     string
	LogLevel   string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration

	StorageDriver string

	ImageAnalysisURL string
	EducationURL     string
	UpstreamTimeout  time.Duration
	UpstreamRetries  int

	SMTP         SMTP
	MailWorkers  int
	MailQueueLen int

	AlertThreshold    int
	PageSize          int
	ExpertAutoApprove bool
	CORSOrigins       []string

	MetricsInterval      time.Duration
	MetricsRetentionDays int
}

func Default() *Config {
	return &Config{
		ListenAddr:           ":8002",
		DataDir:              "./data",
		LogLevel:             "info",
		AccessTokenTTL:       5 * time.Minute,
		RefreshTokenTTL:      24 * time.Hour,
		ResetTokenTTL:        time.Hour,
		StorageDriver:        store.DriverBolt,
		ImageAnalysisURL:     "http://localhost:8000",
		EducationURL:         "http://localhost:8001",
		UpstreamTimeout:      10 * time.Second,
		UpstreamRetries:      2,
		SMTP:                 SMTP{Port: 587, From: "from@example.com"},
		MailWorkers:          2,
		MailQueueLen:         100,
		AlertThreshold:       3,
		PageSize:             10,
		ExpertAutoApprove:    true,
		CORSOrigins:          []string{"*"},
		MetricsInterval:      30 * time.Second,
		MetricsRetentionDays: 7,
	}
}

// Load builds the configuration: defaults, then envFile (if any), then
// configFile (YAML/JSON/TOML, if any), then UMS_* environment variables.
func Load(envFile, configFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	def := Default()
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, def)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		ListenAddr:           v.GetString("listen_addr"),
		DataDir:              v.GetString("data_dir"),
		LogDir:               v.GetString("log_dir"),
		LogLevel:             v.GetString("log_level"),
		JWTSecret:            v.GetString("jwt_secret"),
		AccessTokenTTL:       v.GetDuration("access_token_ttl"),
		RefreshTokenTTL:      v.GetDuration("refresh_token_ttl"),
		ResetTokenTTL:        v.GetDuration("reset_token_ttl"),
		StorageDriver:        v.GetString("storage_driver"),
		ImageAnalysisURL:     strings.TrimRight(v.GetString("image_analysis_url"), "/"),
		EducationURL:         strings.TrimRight(v.GetString("education_url"), "/"),
		UpstreamTimeout:      v.GetDuration("upstream_timeout"),
		UpstreamRetries:      v.GetInt("upstream_retries"),
		MailWorkers:          v.GetInt("mail_workers"),
		MailQueueLen:         v.GetInt("mail_queue_len"),
		AlertThreshold:       v.GetInt("alert_threshold"),
		PageSize:             v.GetInt("page_size"),
		ExpertAutoApprove:    v.GetBool("expert_auto_approve"),
		CORSOrigins:          splitList(v.GetStringSlice("cors_origins")),
		MetricsInterval:      v.GetDuration("metrics_interval"),
		MetricsRetentionDays: v.GetInt("metrics_retention_days"),
		SMTP: SMTP{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
			From:     v.GetString("smtp.from"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("jwt_secret", d.JWTSecret)
	v.SetDefault("access_token_ttl", d.AccessTokenTTL)
	v.SetDefault("refresh_token_ttl", d.RefreshTokenTTL)
	v.SetDefault("reset_token_ttl", d.ResetTokenTTL)
	v.SetDefault("storage_driver", d.StorageDriver)
	v.SetDefault("image_analysis_url", d.ImageAnalysisURL)
	v.SetDefault("education_url", d.EducationURL)
	v.SetDefault("upstream_timeout", d.UpstreamTimeout)
	v.SetDefault("upstream_retries", d.UpstreamRetries)
	v.SetDefault("mail_workers", d.MailWorkers)
	v.SetDefault("mail_queue_len", d.MailQueueLen)
	v.SetDefault("alert_threshold", d.AlertThreshold)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("expert_auto_approve", d.ExpertAutoApprove)
	v.SetDefault("cors_origins", d.CORSOrigins)
	v.SetDefault("metrics_interval", d.MetricsInterval)
	v.SetDefault("metrics_retention_days", d.MetricsRetentionDays)
	v.SetDefault("smtp.host", d.SMTP.Host)
	v.SetDefault("smtp.port", d.SMTP.Port)
	v.SetDefault("smtp.username", d.SMTP.Username)
	v.SetDefault("smtp.password", d.SMTP.Password)
	v.SetDefault("smtp.from", d.SMTP.From)
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	switch c.StorageDriver {
	case store.DriverBolt:
		if c.DataDir == "" {
			errs = append(errs, errors.New("data_dir is required for the bolt driver"))
		}
	case store.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage_driver must be %q or %q, got %q", store.DriverBolt, store.DriverMemory, c.StorageDriver))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.AccessTokenTTL > c.RefreshTokenTTL {
		errs = append(errs, errors.New("access_token_ttl must not exceed refresh_token_ttl"))
	}
	if c.AlertThreshold < 1 {
		errs = append(errs, errors.New("alert_threshold must be >= 1"))
	}
	if c.PageSize < 1 {
		errs = append(errs, errors.New("page_size must be >= 1"))
	}
	if c.UpstreamRetries < 0 {
		errs = append(errs, errors.New("upstream_retries must be >= 0"))
	}
	if c.MailWorkers < 1 || c.MailQueueLen < 1 {
		errs = append(errs, errors.New("mail_workers and mail_queue_len must be >= 1"))
	}
	if c.MetricsInterval < time.Second {
		errs = append(errs, errors.New("metrics_interval must be at least 1s"))
	}
	return errors.Join(errs...)
}
