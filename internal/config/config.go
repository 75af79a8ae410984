// Package config loads service settings from the environment, an optional
// config.yaml and defaults.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration.
type Config struct {
	Server struct {
		Port int
	}
	Log struct {
		Level  string
		Format string
	}
	Database struct {
		URL string
	}
	Postgres struct {
		User     string
		Password string
		Host     string
		DB       string
	}
	Gemini struct {
		Model  string
		APIKey string `mapstructure:"api_key"`
	}
	Extraction struct {
		RatePerSecond float64 `mapstructure:"rate_per_second"`
		Burst         int
	}
	Notion struct {
		Token      string
		DatabaseID string `mapstructure:"database_id"`
	}
	BigQuery struct {
		Project         string
		Dataset         string
		CredentialsFile string `mapstructure:"credentials_file"`
	}
	GCS struct {
		Bucket string
	}
	Health struct {
		ProbeInterval time.Duration `mapstructure:"probe_interval"`
	}
	Bootstrap struct {
		CreateAPIKey bool `mapstructure:"create_api_key"`
	}
	Jobs struct {
		Workers int
	}
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory.
func Load() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("database.url", "")
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.host", "")
	v.SetDefault("postgres.db", "")
	v.SetDefault("gemini.model", "")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("extraction.rate_per_second", 2.0)
	v.SetDefault("extraction.burst", 4)
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")
	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "expenses")
	v.SetDefault("bigquery.credentials_file", "")
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("health.probe_interval", 30*time.Second)
	v.SetDefault("bootstrap.create_api_key", true)
	v.SetDefault("jobs.workers", 5)

	// Names kept from the docker-compose setup.
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("notion.token", "NOTION_TOKEN", "NOTION_API_KEY")
	_ = v.BindEnv("bigquery.credentials_file", "BIGQUERY_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("Load: %w: read config file: %w", common.ErrConfiguration, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("Load: %w: unmarshal: %w", common.ErrConfiguration, err)
	}
	return cfg, nil
}

// DatabaseURL returns database.url, or builds one from the POSTGRES_*
// settings when it is unset. It returns "" when neither is configured.
func (c Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	p := c.Postgres
	if p.Host == "" || p.DB == "" {
		return ""
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   p.Host,
		Path:   "/" + p.DB,
	}
	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}
	return u.String()
}

// LoggerOptions returns the logger settings for every binary.
func (c Config) LoggerOptions() logger.Options {
	return logger.Options{Level: c.Log.Level, Format: logger.Format(c.Log.Format)}
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// NotionEnabled reports whether expense mirroring is configured.
func (c Config) NotionEnabled() bool {
	return c.Notion.Token != "" && c.Notion.DatabaseID != ""
}

// BigQueryEnabled reports whether the model output audit is configured.
func (c Config) BigQueryEnabled() bool {
	return c.BigQuery.Project != ""
}

// Validate checks the settings every process needs.
func (c Config) Validate() error {
	if c.DatabaseURL() == "" {
		return fmt.Errorf("Validate: %w: DATABASE_URL or POSTGRES_HOST and POSTGRES_DB must be set", common.ErrConfiguration)
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("Validate: %w: GEMINI_MODEL must be set", common.ErrConfiguration)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("Validate: %w: invalid server port %d", common.ErrConfiguration, c.Server.Port)
	}
	if c.Extraction.RatePerSecond <= 0 {
		return fmt.Errorf("Validate: %w: extraction rate must be positive", common.ErrConfiguration)
	}
	return nil
}
