// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"csv-ingest/internal/domain"
)

// Supported warehouse backends.
const (
	WarehouseBigQuery = "bigquery"
	WarehouseDuckDB   = "duckdb"
)

// Supported storage schemes.
const (
	SchemeGCS   = "gs"
	SchemeS3    = "s3"
	SchemeAzure = "az"
	SchemeLocal = "file"
)

// S3Config holds S3 or S3-compatible storage settings.
type S3Config struct {
	Endpoint string
	Region   string
	KeyID    string
	Secret   string
	URLStyle string // "path" or "vhost"
}

// AzureConfig holds Azure Blob Storage settings.
type AzureConfig struct {
	AccountName string
	AccountKey  string
	Endpoint    string // service URL override (e.g. Azurite)
}

// Config holds the configuration for the ingest service.
type Config struct {
	// Destination table. Any of the three may be empty; the service then
	// answers every matching notification with a configuration error.
	ProjectID string
	DatasetID string
	TableID   string

	Prefix        string // object name prefix to ingest (default "raw_data/")
	Extension     string // object extension to ingest (default ".csv")
	StorageScheme string // gs (default), s3, az, file
	LocalRoot     string // root directory for the file scheme (default ".")

	Warehouse  string // bigquery (default) or duckdb
	BQLocation string // BigQuery job location (optional)
	DuckDBPath string // DuckDB database file; empty means in-memory
	GCPKeyFile string // service account key for GCS/BigQuery (optional)

	S3    S3Config
	Azure AzureConfig

	ListenAddr string // HTTP listen address (default ":8080", or ":$PORT")
	LogLevel   string // debug, info, warn, error (default "info")

	// Rate limiting on the event endpoint.
	RateLimitRPS   float64 // sustained requests per second (default 50)
	RateLimitBurst int     // burst capacity (default 100)

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// Target returns the destination table reference.
func (c *Config) Target() domain.TableRef {
	return domain.TableRef{Project: c.ProjectID, Dataset: c.DatasetID, Table: c.TableID}
}

// TargetComplete reports whether all three table identifiers are set.
func (c *Config) TargetComplete() bool {
	return len(c.missingTarget()) == 0
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ProjectID:     os.Getenv("BQ_PROJECT_ID"),
		DatasetID:     os.Getenv("BQ_DATASET_ID"),
		TableID:       os.Getenv("BQ_TABLE_ID"),
		Prefix:        os.Getenv("INGEST_PREFIX"),
		Extension:     os.Getenv("INGEST_EXTENSION"),
		StorageScheme: strings.ToLower(os.Getenv("STORAGE_SCHEME")),
		LocalRoot:     os.Getenv("STORAGE_LOCAL_ROOT"),
		Warehouse:     strings.ToLower(os.Getenv("WAREHOUSE")),
		BQLocation:    os.Getenv("BQ_LOCATION"),
		DuckDBPath:    os.Getenv("DUCKDB_PATH"),
		GCPKeyFile:    os.Getenv("GCP_KEY_FILE"),
		S3: S3Config{
			Endpoint: os.Getenv("S3_ENDPOINT"),
			Region:   os.Getenv("S3_REGION"),
			KeyID:    os.Getenv("S3_KEY_ID"),
			Secret:   os.Getenv("S3_SECRET"),
			URLStyle: os.Getenv("S3_URL_STYLE"),
		},
		Azure: AzureConfig{
			AccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
			AccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
			Endpoint:    os.Getenv("AZURE_BLOB_ENDPOINT"),
		},
		ListenAddr: os.Getenv("LISTEN_ADDR"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimitRPS = f
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimitBurst = n
	}

	// Defaults
	if cfg.Prefix == "" {
		cfg.Prefix = "raw_data/"
	}
	if cfg.Extension == "" {
		cfg.Extension = ".csv"
	}
	if !strings.HasPrefix(cfg.Extension, ".") {
		cfg.Extension = "." + cfg.Extension
	}
	if cfg.StorageScheme == "" {
		cfg.StorageScheme = SchemeGCS
	}
	if cfg.LocalRoot == "" {
		cfg.LocalRoot = "."
	}
	if cfg.Warehouse == "" {
		cfg.Warehouse = WarehouseBigQuery
	}
	if cfg.ListenAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.ListenAddr = ":" + port
		} else {
			cfg.ListenAddr = ":8080"
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 100
	}

	switch cfg.StorageScheme {
	case SchemeGCS, SchemeS3, SchemeAzure, SchemeLocal:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_SCHEME %q (want gs, s3, az or file)", cfg.StorageScheme)
	}
	switch cfg.Warehouse {
	case WarehouseBigQuery, WarehouseDuckDB:
	default:
		return nil, fmt.Errorf("unsupported WAREHOUSE %q (want bigquery or duckdb)", cfg.Warehouse)
	}
	if cfg.StorageScheme == SchemeAzure && (cfg.Azure.AccountName == "" || cfg.Azure.AccountKey == "") {
		return nil, fmt.Errorf("AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY are required when STORAGE_SCHEME=az")
	}
	if (cfg.S3.KeyID == "") != (cfg.S3.Secret == "") {
		return nil, fmt.Errorf("both S3_KEY_ID and S3_SECRET must be set together")
	}

	if missing := cfg.missingTarget(); len(missing) > 0 {
		cfg.Warnings = append(cfg.Warnings,
			fmt.Sprintf("destination table not fully configured (missing %s); matching objects will be rejected", strings.Join(missing, ", ")))
	}

	return cfg, nil
}

func (c *Config) missingTarget() []string {
	var missing []string
	if c.ProjectID == "" {
		missing = append(missing, "BQ_PROJECT_ID")
	}
	if c.DatasetID == "" {
		missing = append(missing, "BQ_DATASET_ID")
	}
	if c.TableID == "" {
		missing = append(missing, "BQ_TABLE_ID")
	}
	return missing
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
