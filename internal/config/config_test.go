package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csv-ingest/internal/domain"
)

var envKeys = []string{
	"BQ_PROJECT_ID", "BQ_DATASET_ID", "BQ_TABLE_ID",
	"INGEST_PREFIX", "INGEST_EXTENSION", "STORAGE_SCHEME", "STORAGE_LOCAL_ROOT",
	"WAREHOUSE", "BQ_LOCATION", "DUCKDB_PATH", "GCP_KEY_FILE",
	"S3_ENDPOINT", "S3_REGION", "S3_KEY_ID", "S3_SECRET", "S3_URL_STYLE",
	"AZURE_ACCOUNT_NAME", "AZURE_ACCOUNT_KEY", "AZURE_BLOB_ENDPOINT",
	"LISTEN_ADDR", "PORT", "LOG_LEVEL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "raw_data/", cfg.Prefix)
	assert.Equal(t, ".csv", cfg.Extension)
	assert.Equal(t, SchemeGCS, cfg.StorageScheme)
	assert.Equal(t, ".", cfg.LocalRoot)
	assert.Equal(t, WarehouseBigQuery, cfg.Warehouse)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.InDelta(t, 50, cfg.RateLimitRPS, 0)
	assert.Equal(t, 100, cfg.RateLimitBurst)
	assert.False(t, cfg.Target().Complete())
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "BQ_PROJECT_ID, BQ_DATASET_ID, BQ_TABLE_ID")
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("BQ_PROJECT_ID", "proj")
	t.Setenv("BQ_DATASET_ID", "sales")
	t.Setenv("BQ_TABLE_ID", "orders")
	t.Setenv("INGEST_PREFIX", "incoming/")
	t.Setenv("INGEST_EXTENSION", "tsv")
	t.Setenv("STORAGE_SCHEME", "S3")
	t.Setenv("WAREHOUSE", "duckdb")
	t.Setenv("DUCKDB_PATH", "/tmp/ingest.duckdb")
	t.Setenv("S3_KEY_ID", "AKID")
	t.Setenv("S3_SECRET", "secret")
	t.Setenv("S3_ENDPOINT", "s3.example.com")
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, domain.TableRef{Project: "proj", Dataset: "sales", Table: "orders"}, cfg.Target())
	assert.Equal(t, "incoming/", cfg.Prefix)
	assert.Equal(t, ".tsv", cfg.Extension)
	assert.Equal(t, SchemeS3, cfg.StorageScheme)
	assert.Equal(t, WarehouseDuckDB, cfg.Warehouse)
	assert.Equal(t, "/tmp/ingest.duckdb", cfg.DuckDBPath)
	assert.Equal(t, "s3.example.com", cfg.S3.Endpoint)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 0)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_ListenAddrBeatsPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTEN_ADDR", "127.0.0.1:7070")
	t.Setenv("PORT", "9000")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7070", cfg.ListenAddr)
}

func TestLoadFromEnv_PartialTarget(t *testing.T) {
	clearEnv(t)
	t.Setenv("BQ_PROJECT_ID", "proj")
	t.Setenv("BQ_TABLE_ID", "orders")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "missing BQ_DATASET_ID")
	assert.NotContains(t, cfg.Warnings[0], "BQ_PROJECT_ID")
	assert.False(t, cfg.TargetComplete())

	t.Setenv("BQ_DATASET_ID", "sales")
	cfg, err = LoadFromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.Warnings)
	assert.True(t, cfg.TargetComplete())
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "unknown scheme", env: map[string]string{"STORAGE_SCHEME": "ftp"}, wantErr: "unsupported STORAGE_SCHEME"},
		{name: "unknown warehouse", env: map[string]string{"WAREHOUSE": "snowflake"}, wantErr: "unsupported WAREHOUSE"},
		{name: "bad rps", env: map[string]string{"RATE_LIMIT_RPS": "fast"}, wantErr: "invalid RATE_LIMIT_RPS"},
		{name: "bad burst", env: map[string]string{"RATE_LIMIT_BURST": "1.5"}, wantErr: "invalid RATE_LIMIT_BURST"},
		{name: "azure without key", env: map[string]string{"STORAGE_SCHEME": "az", "AZURE_ACCOUNT_NAME": "acct"}, wantErr: "AZURE_ACCOUNT_KEY"},
		{name: "s3 key without secret", env: map[string]string{"S3_KEY_ID": "AKID"}, wantErr: "S3_KEY_ID and S3_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	} {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), "level %q", in)
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	if err != nil {
		t.Errorf("expected no error for missing .env, got: %v", err)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("# target\nTEST_BQ_TABLE=\"orders\"\nTEST_BQ_DATASET='sales'\nnot a pair\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_BQ_TABLE"); val != "orders" {
		t.Errorf("TEST_BQ_TABLE = %q, want %q", val, "orders")
	}
	if val := os.Getenv("TEST_BQ_DATASET"); val != "sales" {
		t.Errorf("TEST_BQ_DATASET = %q, want %q", val, "sales")
	}
	_ = os.Unsetenv("TEST_BQ_TABLE")
	_ = os.Unsetenv("TEST_BQ_DATASET")
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("TEST_PRECEDENCE_KEY", "from_env")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_PRECEDENCE_KEY=from_file\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_PRECEDENCE_KEY"); val != "from_env" {
		t.Errorf("TEST_PRECEDENCE_KEY = %q, want %q (env precedence)", val, "from_env")
	}
}
