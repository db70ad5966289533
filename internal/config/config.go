package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/models"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	DocuSign  DocuSignConfig  `yaml:"docusign"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Tasks     TaskConfig      `yaml:"tasks"`
	Documents DocumentsConfig `yaml:"documents"`
	// DocumentRequirements overrides the built-in service type -> document
	// types table when non-empty.
	DocumentRequirements map[string][]string `yaml:"document_requirements"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	// Driver is sqlite or postgres.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	// URLExpiryMinutes bounds presigned upload and download links.
	URLExpiryMinutes int `yaml:"url_expiry_minutes"`
}

type DocuSignConfig struct {
	BaseURL        string `yaml:"base_url"`
	AuthServer     string `yaml:"auth_server"`
	IntegrationKey string `yaml:"integration_key"`
	UserID         string `yaml:"user_id"`
	AccountID      string `yaml:"account_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
	ConnectSecret  string `yaml:"connect_secret"`
	ReturnURL      string `yaml:"return_url"`
}

type AuthConfig struct {
	JWKSURI   string `yaml:"jwks_uri"`
	JWTSecret string `yaml:"jwt_secret"`
	// Audience is the resource identifier tokens must be issued for.
	Audience string `yaml:"audience"`
	// AuthorizationServer is advertised to MCP clients in the protected
	// resource metadata.
	AuthorizationServer string `yaml:"authorization_server"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TaskConfig struct {
	Workers       int `yaml:"workers"`
	MaxAttempts   int `yaml:"max_attempts"`
	BaseBackoffMS int `yaml:"base_backoff_ms"`
	QueueCapacity int `yaml:"queue_capacity"`
}

type DocumentsConfig struct {
	ExpireAfterDays      int `yaml:"expire_after_days"`
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
}

// Load reads the optional YAML file at path, applies environment overrides
// and fills defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Storage.Endpoint, "S3_ENDPOINT")
	setString(&c.Storage.AccessKey, "S3_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "S3_SECRET_KEY")
	setString(&c.Storage.Bucket, "S3_BUCKET")
	setString(&c.Storage.Region, "S3_REGION")
	setString(&c.DocuSign.BaseURL, "DOCUSIGN_BASE_URL")
	setString(&c.DocuSign.AuthServer, "DOCUSIGN_AUTH_SERVER")
	setString(&c.DocuSign.IntegrationKey, "DOCUSIGN_INTEGRATION_KEY")
	setString(&c.DocuSign.UserID, "DOCUSIGN_USER_ID")
	setString(&c.DocuSign.AccountID, "DOCUSIGN_ACCOUNT_ID")
	setString(&c.DocuSign.PrivateKeyPath, "DOCUSIGN_PRIVATE_KEY_PATH")
	setString(&c.DocuSign.ConnectSecret, "DOCUSIGN_CONNECT_SECRET")
	setString(&c.DocuSign.ReturnURL, "DOCUSIGN_RETURN_URL")
	setString(&c.Auth.JWKSURI, "JWKS_URI")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.Audience, "AUTH_AUDIENCE")
	setString(&c.Auth.AuthorizationServer, "AUTH_SERVER_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if err := setInt(&c.Server.Port, "PORT"); err != nil {
		return err
	}
	if v := os.Getenv("S3_USE_SSL"); v != "" {
		useSSL, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid S3_USE_SSL: %w", err)
		}
		c.Storage.UseSSL = useSSL
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "pharmalink-documents"
	}
	if c.Storage.URLExpiryMinutes == 0 {
		c.Storage.URLExpiryMinutes = 15
	}
	if c.DocuSign.AuthServer == "" {
		c.DocuSign.AuthServer = "account-d.docusign.com"
	}
	if c.DocuSign.BaseURL == "" {
		c.DocuSign.BaseURL = "https://demo.docusign.net/restapi"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Tasks.Workers == 0 {
		c.Tasks.Workers = 4
	}
	if c.Tasks.MaxAttempts == 0 {
		c.Tasks.MaxAttempts = 3
	}
	if c.Tasks.BaseBackoffMS == 0 {
		c.Tasks.BaseBackoffMS = 500
	}
	if c.Tasks.QueueCapacity == 0 {
		c.Tasks.QueueCapacity = 100
	}
	if c.Documents.ExpireAfterDays == 0 {
		c.Documents.ExpireAfterDays = 30
	}
	if c.Documents.SweepIntervalMinutes == 0 {
		c.Documents.SweepIntervalMinutes = 60
	}
}

// RequirementTable returns the configured document requirements, or the
// built-in table when the file does not define any.
func (c *Config) RequirementTable() (models.RequirementTable, error) {
	if len(c.DocumentRequirements) == 0 {
		return models.DefaultDocumentRequirements, nil
	}
	return models.ParseRequirementTable(c.DocumentRequirements)
}

// DocuSignEnabled reports whether enough credentials are present to talk to
// DocuSign.
func (c *Config) DocuSignEnabled() bool {
	return c.DocuSign.IntegrationKey != "" && c.DocuSign.UserID != "" && c.DocuSign.AccountID != ""
}

func (c *Config) StorageEnabled() bool {
	return c.Storage.Endpoint != ""
}

func (c StorageConfig) URLExpiry() time.Duration {
	return time.Duration(c.URLExpiryMinutes) * time.Minute
}

func (c TaskConfig) BaseBackoff() time.Duration {
	return time.Duration(c.BaseBackoffMS) * time.Millisecond
}

func (c DocumentsConfig) ExpireAfter() time.Duration {
	return time.Duration(c.ExpireAfterDays) * 24 * time.Hour
}

func (c DocumentsConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}
