package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tasman/usajobs-digest/internal/errs"
)

// Default search terms, matching the operator's standing query.
var (
	DefaultTitles   = []string{"Data Analyst", "Data Scientist", "Data Engineer"}
	DefaultKeywords = []string{"data", "analysis", "analytics"}
)

// Config holds all configuration for one run
type Config struct {
	API     APIConfig
	Search  SearchConfig
	Storage StorageConfig
	Report  ReportConfig
	Mail    MailConfig
}

// APIConfig holds USAJobs API access settings
type APIConfig struct {
	BaseURL   string
	Key       string // Authorization-Key header; required
	UserAgent string // registered email; required by the API's contract
}

// SearchConfig holds the standing search terms
type SearchConfig struct {
	Titles   []string
	Keywords []string
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	Driver      string // "sqlite" or "postgres"
	Path        string // sqlite database file
	PostgresURI string
	TableName   string
}

// ReportConfig holds report artifact settings
type ReportConfig struct {
	Path string
}

// MailConfig holds SMTP delivery settings
type MailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	TLS       string // "none", "starttls", "tls"
	From      string
	Recipient string
}

// criteriaFile is the optional YAML file overriding default search terms.
type criteriaFile struct {
	Titles   []string `yaml:"titles"`
	Keywords []string `yaml:"keywords"`
}

// Load loads configuration from the environment (plus an optional .env
// file) with defaults. Flag overrides are applied by the caller after Load.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		API: APIConfig{
			BaseURL:   getEnv("USAJOBS_BASE_URL", "https://data.usajobs.gov/api"),
			Key:       getEnv("USAJOBS_API_KEY", ""),
			UserAgent: getEnv("USAJOBS_USER_AGENT", ""),
		},
		Search: SearchConfig{
			Titles:   getEnvList("SEARCH_TITLES", DefaultTitles),
			Keywords: getEnvList("SEARCH_KEYWORDS", DefaultKeywords),
		},
		Storage: StorageConfig{
			Driver:      getEnv("STORAGE_DRIVER", "sqlite"),
			Path:        getEnv("DB_PATH", "tasman.db"),
			PostgresURI: getEnv("POSTGRES_URI", ""),
			TableName:   getEnv("TABLE_NAME", "positions"),
		},
		Report: ReportConfig{
			Path: getEnv("REPORT_PATH", "reports/digest.txt"),
		},
		Mail: MailConfig{
			Host:      getEnv("SMTP_HOST", "localhost"),
			Port:      getEnvInt("SMTP_PORT", 1025),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			TLS:       getEnv("SMTP_TLS", "none"),
			From:      getEnv("MAIL_FROM", "digest@localhost"),
			Recipient: getEnv("MAIL_RECIPIENT", "test@example.com"),
		},
	}

	return cfg, nil
}

// LoadCriteriaFile overrides the configured search terms from a YAML file.
func (c *Config) LoadCriteriaFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Mark(errs.Wrapf(err, "reading criteria file %s", path), errs.ErrConfig)
	}
	var cf criteriaFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return errs.Mark(errs.Wrapf(err, "parsing criteria file %s", path), errs.ErrConfig)
	}
	if len(cf.Titles) > 0 {
		c.Search.Titles = cf.Titles
	}
	if len(cf.Keywords) > 0 {
		c.Search.Keywords = cf.Keywords
	}
	return nil
}

// Validate checks required settings. The API rejects unauthenticated and
// anonymous requests, so both credentials must be present up front.
func (c *Config) Validate() error {
	if c.API.Key == "" {
		return errs.Mark(errs.New("USAJOBS_API_KEY is required"), errs.ErrConfig)
	}
	if c.API.UserAgent == "" {
		return errs.Mark(errs.New("USAJOBS_USER_AGENT is required"), errs.ErrConfig)
	}
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresURI == "" {
			return errs.Mark(errs.New("POSTGRES_URI is required for the postgres driver"), errs.ErrConfig)
		}
	default:
		return errs.Mark(errs.Newf("unsupported storage driver: %s", c.Storage.Driver), errs.ErrConfig)
	}
	if c.Mail.Recipient == "" {
		return errs.Mark(errs.New("recipient address is required"), errs.ErrConfig)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
