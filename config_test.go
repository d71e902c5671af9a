package catalogue

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Database.Host != "localhost" {
		t.Errorf("Expected database host to be 'localhost', got %s", config.Database.Host)
	}
	if config.Database.Port != 5432 {
		t.Errorf("Expected database port to be 5432, got %d", config.Database.Port)
	}
	if config.Database.TableNames.Values != "catalogue_product_attribute_value" {
		t.Errorf("Expected value table 'catalogue_product_attribute_value', got %s", config.Database.TableNames.Values)
	}
	if config.Transaction.IsolationLevel != "SERIALIZABLE" {
		t.Errorf("Expected SERIALIZABLE isolation, got %s", config.Transaction.IsolationLevel)
	}
	if config.Transaction.MaxRetryAttempts != 3 {
		t.Errorf("Expected 3 retry attempts, got %d", config.Transaction.MaxRetryAttempts)
	}
	if config.Storage.Enabled {
		t.Error("Expected storage to be disabled by default")
	}
	if config.Server.MaxUploadMB != 32 {
		t.Errorf("Expected 32MB upload limit, got %d", config.Server.MaxUploadMB)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got: %v", err)
	}
}

func TestConfigValidationDetailed(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
		errorField  string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:        "invalid max connections",
			mutate:      func(c *Config) { c.Database.MaxConnections = 0 },
			expectError: true,
			errorField:  "database.maxConnections",
		},
		{
			name:        "invalid port",
			mutate:      func(c *Config) { c.Database.Port = 0 },
			expectError: true,
			errorField:  "database.port",
		},
		{
			name:        "iam auth without region",
			mutate:      func(c *Config) { c.Database.UseIAMAuth = true },
			expectError: true,
			errorField:  "database.region",
		},
		{
			name:        "empty table name",
			mutate:      func(c *Config) { c.Database.TableNames.Options = "" },
			expectError: true,
			errorField:  "database.tableNames",
		},
		{
			name:   "isolation level with underscores",
			mutate: func(c *Config) { c.Transaction.IsolationLevel = "repeatable_read" },
		},
		{
			name:        "unknown isolation level",
			mutate:      func(c *Config) { c.Transaction.IsolationLevel = "SNAPSHOT" },
			expectError: true,
			errorField:  "transaction.isolationLevel",
		},
		{
			name:        "negative retries",
			mutate:      func(c *Config) { c.Transaction.MaxRetryAttempts = -1 },
			expectError: true,
			errorField:  "transaction.maxRetryAttempts",
		},
		{
			name:        "storage without bucket",
			mutate:      func(c *Config) { c.Storage.Enabled = true },
			expectError: true,
			errorField:  "storage.bucket",
		},
		{
			name:        "unknown log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			expectError: true,
			errorField:  "logging.format",
		},
		{
			name:        "reserved word that is not an identifier",
			mutate:      func(c *Config) { c.Attributes.ExtraReserved = []string{"not-a-word"} },
			expectError: true,
			errorField:  "attributes.extraReserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Error("Expected validation error but got none")
				} else if configErr, ok := err.(*ConfigError); ok {
					if configErr.Field != tt.errorField {
						t.Errorf("Expected error field %s, got %s", tt.errorField, configErr.Field)
					}
				} else {
					t.Errorf("Expected ConfigError, got %T", err)
				}
			} else {
				if err != nil {
					t.Errorf("Expected no validation error but got: %v", err)
				}
			}
		})
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{
		Field:   "test.field",
		Message: "test message",
	}

	expected := "config validation error for field 'test.field': test message"
	if err.Error() != expected {
		t.Errorf("Expected error message %s, got %s", expected, err.Error())
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("CATALOGUE_DATABASE_DB_PORT", "6543")
	t.Setenv("TX_RETRY_DELAY", "10ms")
	t.Setenv("S3_ENABLED", "true")
	t.Setenv("S3_BUCKET", "media")
	t.Setenv("ATTRIBUTE_EXTRA_RESERVED", "sku,price")

	config, err := LoadConfig("catalogue")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Database.Host != "db.internal" {
		t.Errorf("Expected host db.internal, got %s", config.Database.Host)
	}
	if config.Database.Port != 6543 {
		t.Errorf("Expected port 6543, got %d", config.Database.Port)
	}
	if config.Database.TableNames.Products != "catalogue_product" {
		t.Errorf("Expected default product table, got %s", config.Database.TableNames.Products)
	}
	if config.Transaction.RetryDelay != 10*time.Millisecond {
		t.Errorf("Expected 10ms retry delay, got %s", config.Transaction.RetryDelay)
	}
	if !config.Storage.Enabled || config.Storage.Bucket != "media" {
		t.Errorf("Expected storage enabled with bucket media, got %+v", config.Storage)
	}
	reserved := config.Attributes.Reserved()
	if !reserved.Contains("price") || !reserved.Contains("func") {
		t.Errorf("Expected extra and default reserved words, got %v", reserved.Words())
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("S3_ENABLED", "true")
	t.Setenv("S3_BUCKET", "")

	if _, err := LoadConfig("catalogue"); err == nil {
		t.Error("Expected storage without bucket to be rejected")
	}
}

func TestTransactionIsolationLevel(t *testing.T) {
	cases := map[string]string{
		"serializable":     "SERIALIZABLE",
		" read_committed ": "READ COMMITTED",
		"":                 "",
	}
	for in, want := range cases {
		got := TransactionConfig{IsolationLevel: in}.NormalizedIsolationLevel()
		if got != want {
			t.Errorf("NormalizedIsolationLevel(%q) = %q, want %q", in, got, want)
		}
	}
}
