package catalogue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the settings of the catalogue data layer and its commands.
type Config struct {
	Database    DatabaseConfig    `json:"database"`
	Transaction TransactionConfig `json:"transaction"`
	Storage     StorageConfig     `json:"storage"`
	Attributes  AttributeConfig   `json:"attributes"`
	Logging     LoggingConfig     `json:"logging"`
	Server      ServerConfig      `json:"server"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `json:"host" envconfig:"DB_HOST" default:"localhost"`
	Port            int           `json:"port" envconfig:"DB_PORT" default:"5432"`
	Database        string        `json:"database" envconfig:"DB_NAME" default:"catalogue"`
	Username        string        `json:"username" envconfig:"DB_USER" default:"postgres"`
	Password        string        `json:"password" envconfig:"DB_PASSWORD"`
	SSLMode         string        `json:"sslMode" envconfig:"DB_SSL_MODE" default:"disable"`
	MaxConnections  int           `json:"maxConnections" envconfig:"DB_MAX_CONNECTIONS" default:"25"`
	MaxIdleConns    int           `json:"maxIdleConns" envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" envconfig:"DB_CONN_MAX_IDLE_TIME" default:"5m"`
	Timeout         time.Duration `json:"timeout" envconfig:"DB_TIMEOUT" default:"30s"`

	// UseIAMAuth replaces Password with an AWS DSQL IAM token at connect time.
	UseIAMAuth bool       `json:"useIamAuth" envconfig:"DB_USE_IAM_AUTH"`
	Region     string     `json:"region" envconfig:"DB_REGION"`
	TableNames TableNames `json:"tableNames"`
}

// TableNames lists the tables used by the Postgres stores.
type TableNames struct {
	ProductTypes      string `json:"productTypes" envconfig:"PRODUCT_TYPE_TABLE" default:"catalogue_product_type"`
	Products          string `json:"products" envconfig:"PRODUCT_TABLE" default:"catalogue_product"`
	Categories        string `json:"categories" envconfig:"CATEGORY_TABLE" default:"catalogue_category"`
	ProductCategories string `json:"productCategories" envconfig:"PRODUCT_CATEGORY_TABLE" default:"catalogue_product_category"`
	OptionGroups      string `json:"optionGroups" envconfig:"OPTION_GROUP_TABLE" default:"catalogue_attribute_option_group"`
	Options           string `json:"options" envconfig:"OPTION_TABLE" default:"catalogue_attribute_option"`
	Attributes        string `json:"attributes" envconfig:"ATTRIBUTE_TABLE" default:"catalogue_product_attribute"`
	Values            string `json:"values" envconfig:"VALUE_TABLE" default:"catalogue_product_attribute_value"`
	ValueMultiOptions string `json:"valueMultiOptions" envconfig:"VALUE_MULTI_OPTION_TABLE" default:"catalogue_product_attribute_value_multi_option"`
}

// DefaultTableNames returns the table names used when none are configured.
func DefaultTableNames() TableNames {
	return TableNames{
		ProductTypes:      "catalogue_product_type",
		Products:          "catalogue_product",
		Categories:        "catalogue_category",
		ProductCategories: "catalogue_product_category",
		OptionGroups:      "catalogue_attribute_option_group",
		Options:           "catalogue_attribute_option",
		Attributes:        "catalogue_product_attribute",
		Values:            "catalogue_product_attribute_value",
		ValueMultiOptions: "catalogue_product_attribute_value_multi_option",
	}
}

// All returns every table name, parents first.
func (t TableNames) All() []string {
	return []string{
		t.ProductTypes,
		t.Products,
		t.Categories,
		t.ProductCategories,
		t.OptionGroups,
		t.Options,
		t.Attributes,
		t.Values,
		t.ValueMultiOptions,
	}
}

// TransactionConfig contains transaction settings for value writes.
type TransactionConfig struct {
	IsolationLevel   string        `json:"isolationLevel" envconfig:"TX_ISOLATION_LEVEL" default:"SERIALIZABLE"`
	MaxRetryAttempts int           `json:"maxRetryAttempts" envconfig:"TX_MAX_RETRY_ATTEMPTS" default:"3"`
	RetryDelay       time.Duration `json:"retryDelay" envconfig:"TX_RETRY_DELAY" default:"50ms"`
}

// StorageConfig configures the S3 file store backing file and image attributes.
type StorageConfig struct {
	Enabled         bool          `json:"enabled" envconfig:"S3_ENABLED"`
	Bucket          string        `json:"bucket" envconfig:"S3_BUCKET"`
	Prefix          string        `json:"prefix" envconfig:"S3_PREFIX" default:"attributes"`
	Region          string        `json:"region" envconfig:"S3_REGION" default:"us-east-1"`
	Endpoint        string        `json:"endpoint" envconfig:"S3_ENDPOINT"`
	AccessKey       string        `json:"accessKey" envconfig:"S3_ACCESS_KEY"`
	SecretKey       string        `json:"secretKey" envconfig:"S3_SECRET_KEY"`
	UsePathStyle    bool          `json:"usePathStyle" envconfig:"S3_USE_PATH_STYLE"`
	PublicBaseURL   string        `json:"publicBaseUrl" envconfig:"S3_PUBLIC_BASE_URL"`
	BreakerFailures int           `json:"breakerFailures" envconfig:"S3_BREAKER_FAILURES" default:"5"`
	BreakerWindow   time.Duration `json:"breakerWindow" envconfig:"S3_BREAKER_WINDOW" default:"30s"`
	BreakerOpenFor  time.Duration `json:"breakerOpenFor" envconfig:"S3_BREAKER_OPEN_FOR" default:"1m"`
}

// AttributeConfig contains attribute definition settings.
type AttributeConfig struct {
	// ReservedIdentifiers replaces the default keyword denylist when set.
	ReservedIdentifiers []string `json:"reservedIdentifiers" envconfig:"ATTRIBUTE_RESERVED_IDENTIFIERS"`

	// ExtraReserved is added to the denylist.
	ExtraReserved []string `json:"extraReserved" envconfig:"ATTRIBUTE_EXTRA_RESERVED"`
}

// Reserved returns the effective denylist.
func (c AttributeConfig) Reserved() ReservedIdentifiers {
	base := c.ReservedIdentifiers
	if len(base) == 0 {
		base = DefaultReservedIdentifiers()
	}
	words := make([]string, 0, len(base)+len(c.ExtraReserved))
	words = append(words, base...)
	words = append(words, c.ExtraReserved...)
	return NewReservedIdentifiers(words...)
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `json:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format string `json:"format" envconfig:"LOG_FORMAT" default:"json"`
}

// ServerConfig contains HTTP server settings for cmd/server.
type ServerConfig struct {
	Port         string        `json:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout  time.Duration `json:"readTimeout" envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `json:"writeTimeout" envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout  time.Duration `json:"idleTimeout" envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	MaxUploadMB  int64         `json:"maxUploadMb" envconfig:"HTTP_MAX_UPLOAD_MB" default:"32"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "catalogue",
			Username:        "postgres",
			SSLMode:         "disable",
			MaxConnections:  25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
			TableNames:      DefaultTableNames(),
		},
		Transaction: TransactionConfig{
			IsolationLevel:   "SERIALIZABLE",
			MaxRetryAttempts: 3,
			RetryDelay:       50 * time.Millisecond,
		},
		Storage: StorageConfig{
			Prefix:          "attributes",
			Region:          "us-east-1",
			BreakerFailures: 5,
			BreakerWindow:   30 * time.Second,
			BreakerOpenFor:  time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxUploadMB:  32,
		},
	}
}

// LoadConfig reads the configuration from the environment. Variables may be
// given with or without the prefix, e.g. CATALOGUE_DATABASE_DB_HOST or DB_HOST.
func LoadConfig(prefix string) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(prefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var isolationLevels = map[string]bool{
	"SERIALIZABLE":     true,
	"REPEATABLE READ":  true,
	"READ COMMITTED":   true,
	"READ UNCOMMITTED": true,
}

// NormalizedIsolationLevel returns the isolation level in SQL spelling,
// accepting underscores in place of spaces.
func (c TransactionConfig) NormalizedIsolationLevel() string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(c.IsolationLevel), "_", " "))
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.MaxConnections <= 0 {
		return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return &ConfigError{Field: "database.port", Message: "must be a valid TCP port"}
	}
	if c.Database.UseIAMAuth && c.Database.Region == "" {
		return &ConfigError{Field: "database.region", Message: "is required when useIamAuth is set"}
	}
	for _, name := range c.Database.TableNames.All() {
		if name == "" {
			return &ConfigError{Field: "database.tableNames", Message: "table names cannot be empty"}
		}
	}

	if level := c.Transaction.NormalizedIsolationLevel(); level != "" && !isolationLevels[level] {
		return &ConfigError{Field: "transaction.isolationLevel", Message: "unknown isolation level " + c.Transaction.IsolationLevel}
	}
	if c.Transaction.MaxRetryAttempts < 0 {
		return &ConfigError{Field: "transaction.maxRetryAttempts", Message: "must not be negative"}
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return &ConfigError{Field: "storage.bucket", Message: "is required when storage is enabled"}
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be json or console"}
	}

	for _, word := range c.Attributes.ExtraReserved {
		if !codePattern.MatchString(word) {
			return &ConfigError{Field: "attributes.extraReserved", Message: fmt.Sprintf("%q is not an identifier", word)}
		}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
