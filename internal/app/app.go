// Package app wires the ingest service from configuration: it constructs the
// long-lived storage and warehouse clients once and injects them into the
// ingestion service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"csv-ingest/internal/config"
	"csv-ingest/internal/domain"
	"csv-ingest/internal/service/ingestion"
	"csv-ingest/internal/storage"
	"csv-ingest/internal/warehouse"
)

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Ingestion *ingestion.Service
	Warehouse domain.Warehouse
	Storage   *storage.Router

	closers []func() error
}

// New builds the storage router, the warehouse client, and the ingestion
// service. The caller must Close the App.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	a := &App{}

	router, err := a.buildStorage(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Storage = router

	wh, err := a.buildWarehouse(ctx, cfg, deps.Logger.With("component", "warehouse"))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Warehouse = wh

	a.Ingestion = ingestion.NewService(ingestion.Config{
		Prefix:    cfg.Prefix,
		Extension: cfg.Extension,
		Scheme:    cfg.StorageScheme,
		Target:    cfg.Target(),
	}, router, wh, deps.Logger.With("component", "ingestion"))

	deps.Logger.Info("ingest service wired",
		"storage", cfg.StorageScheme, "warehouse", cfg.Warehouse,
		"prefix", cfg.Prefix, "extension", cfg.Extension,
		"target", cfg.Target().String())
	return a, nil
}

// buildStorage registers the local reader plus the backend for the
// configured scheme. Cloud clients are only created when selected.
func (a *App) buildStorage(ctx context.Context, cfg *config.Config) (*storage.Router, error) {
	router := storage.NewRouter()
	router.Register(config.SchemeLocal, storage.NewLocalReader(cfg.LocalRoot))

	switch cfg.StorageScheme {
	case config.SchemeGCS:
		gcs, err := storage.NewGCSReader(ctx, cfg.GCPKeyFile)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gcs.Close)
		router.Register(config.SchemeGCS, gcs)
	case config.SchemeS3:
		s3, err := storage.NewS3Reader(ctx, storage.S3Config{
			Endpoint: cfg.S3.Endpoint,
			Region:   cfg.S3.Region,
			KeyID:    cfg.S3.KeyID,
			Secret:   cfg.S3.Secret,
			URLStyle: cfg.S3.URLStyle,
		})
		if err != nil {
			return nil, err
		}
		router.Register(config.SchemeS3, s3)
	case config.SchemeAzure:
		az, err := storage.NewAzureReader(cfg.Azure.AccountName, cfg.Azure.AccountKey, cfg.Azure.Endpoint)
		if err != nil {
			return nil, err
		}
		router.Register(config.SchemeAzure, az)
	case config.SchemeLocal:
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", cfg.StorageScheme)
	}
	return router, nil
}

func (a *App) buildWarehouse(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.Warehouse, error) {
	switch cfg.Warehouse {
	case config.WarehouseBigQuery:
		bq, err := warehouse.NewBigQuery(ctx, warehouse.BigQueryConfig{
			Project:  cfg.ProjectID,
			Location: cfg.BQLocation,
			KeyFile:  cfg.GCPKeyFile,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bq.Close)
		return bq, nil
	case config.WarehouseDuckDB:
		duck, err := warehouse.OpenDuckDB(cfg.DuckDBPath, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, duck.Close)
		return duck, nil
	default:
		return nil, fmt.Errorf("unsupported warehouse %q", cfg.Warehouse)
	}
}

// Close releases every client created by New, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
