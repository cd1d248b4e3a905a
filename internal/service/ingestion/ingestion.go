// Package ingestion implements the storage-notification to warehouse-load
// transition for CSV objects.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"csv-ingest/internal/domain"
	"csv-ingest/internal/metrics"
)

// maxLoggedColumns bounds the column list written to the log after parsing.
const maxLoggedColumns = 50

// Config holds the per-process settings the service needs. It is resolved
// once at startup and never mutated.
type Config struct {
	Prefix    string          // object name prefix to accept (e.g. "raw_data/")
	Extension string          // object extension to accept, compared case-insensitively
	Scheme    string          // storage URI scheme (e.g. "gs")
	Target    domain.TableRef // destination table; may be incomplete
}

// Service handles one notification at a time. It holds no per-invocation
// state and is safe for concurrent use when its collaborators are.
type Service struct {
	cfg       Config
	objects   domain.ObjectReader
	warehouse domain.Warehouse
	logger    *slog.Logger
}

// NewService creates a new Service.
func NewService(cfg Config, objects domain.ObjectReader, warehouse domain.Warehouse, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		objects:   objects,
		warehouse: warehouse,
		logger:    logger,
	}
}

// Handle processes a single storage notification.
//
// A notification that is filtered out returns a skipped Result and a nil
// error. Validation failures return *domain.BadPayloadError or
// *domain.ConfigurationError. Anything that goes wrong after that is logged
// with its stack and returned as *domain.FatalError.
func (s *Service) Handle(ctx context.Context, n domain.Notification) (*domain.Result, error) {
	log := s.logger.With("bucket", n.Bucket, "object", n.Name)
	log.Info("notification received",
		"event_id", n.EventID, "event_type", n.EventType,
		"subject", n.Subject, "source", n.Source)

	if n.Bucket == "" || n.Name == "" {
		log.Error("missing bucket or name in notification")
		metrics.NotificationCount.WithLabelValues(metrics.ResultBadPayload).Inc()
		return nil, domain.ErrBadPayload("bad event payload: missing bucket or name")
	}

	if reason, skip := s.filter(n.Name); skip {
		log.Info("skipping object", "reason", reason)
		metrics.NotificationCount.WithLabelValues(metrics.ResultSkipped).Inc()
		return &domain.Result{Skipped: true, SkipReason: reason}, nil
	}

	ref := s.cfg.Target
	log.Info("target configuration",
		"project", ref.Project, "dataset", ref.Dataset, "table", ref.Table)
	if !ref.Complete() {
		log.Error("destination table is not fully configured")
		metrics.NotificationCount.WithLabelValues(metrics.ResultConfigError).Inc()
		return nil, domain.ErrConfiguration("missing configuration: BQ_PROJECT_ID, BQ_DATASET_ID, BQ_TABLE_ID")
	}
	log = log.With("table_ref", ref.String())

	uri := fmt.Sprintf("%s://%s/%s", s.cfg.Scheme, n.Bucket, n.Name)
	log.Info("reading object", "uri", uri)
	payload, err := s.readPayload(ctx, uri)
	if err != nil {
		return nil, s.fail(log, domain.KindIngestParse, err)
	}
	columns := payload.Columns
	if len(columns) > maxLoggedColumns {
		columns = columns[:maxLoggedColumns]
	}
	log.Info("CSV parsed", "rows", payload.RowCount(), "cols", len(payload.Columns), "columns", columns)

	before, err := s.warehouse.Lookup(ctx, ref)
	if err != nil {
		return nil, s.fail(log, domain.KindWarehouseQuery, errors.Wrapf(err, "look up table %s", ref))
	}
	mode := domain.WriteModeFor(before.Found)
	if before.Found {
		log.Info("table exists", "rows", before.NumRows)
	} else {
		log.Info("table does not exist yet; it will be created by the load")
	}

	log.Info("starting load job", "mode", mode)
	start := time.Now()
	job, err := s.warehouse.Load(ctx, ref, payload, mode)
	if err != nil {
		return nil, s.fail(log, domain.KindLoadJob, errors.Wrap(err, "submit load job"))
	}
	log = log.With("job_id", job.ID())
	log.Info("load job submitted")

	if err := job.Wait(ctx); err != nil {
		return nil, s.fail(log, domain.KindLoadJob, errors.Wrapf(err, "load job %s", job.ID()))
	}
	metrics.LoadDuration.WithLabelValues(ref.String()).Observe(time.Since(start).Seconds())
	metrics.RowsLoaded.WithLabelValues(ref.String(), string(mode)).Add(float64(payload.RowCount()))
	log.Info("load job finished", "state", "DONE", "elapsed", time.Since(start))

	outcome := &domain.LoadOutcome{
		Status:       "success",
		File:         n.Name,
		RowsLoaded:   payload.RowCount(),
		TableRef:     ref.String(),
		TableCreated: !before.Found,
		JobID:        job.ID(),
	}

	// Diagnostic only; the parsed row count above is authoritative.
	after, err := s.warehouse.Lookup(ctx, ref)
	switch {
	case err != nil:
		log.Warn("post-load row count unavailable", "error", err)
	case !after.Found:
		log.Warn("destination table not visible after load")
	default:
		outcome.DestinationRows = after.NumRows
		log.Info("destination table row count (approx)", "rows", after.NumRows)
	}

	metrics.NotificationCount.WithLabelValues(metrics.ResultLoaded).Inc()
	return &domain.Result{Outcome: outcome}, nil
}

// filter reports whether name falls outside the accepted prefix/extension.
func (s *Service) filter(name string) (string, bool) {
	if !strings.HasPrefix(name, s.cfg.Prefix) {
		return fmt.Sprintf("not in %s", s.cfg.Prefix), true
	}
	if !strings.HasSuffix(strings.ToLower(name), strings.ToLower(s.cfg.Extension)) {
		return fmt.Sprintf("not a %s", s.cfg.Extension), true
	}
	return "", false
}

func (s *Service) readPayload(ctx context.Context, uri string) (*domain.Payload, error) {
	rc, err := s.objects.Open(ctx, uri)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", uri)
	}
	defer rc.Close() //nolint:errcheck

	payload, err := ParsePayload(rc)
	if err != nil {
		return nil, errors.WithMessagef(err, "parse %s", uri)
	}
	return payload, nil
}

// fail logs a downstream failure with its stack and converts it to a
// FatalError for the boundary adapter.
func (s *Service) fail(log *slog.Logger, kind domain.FatalKind, err error) error {
	metrics.NotificationCount.WithLabelValues(resultLabel(kind)).Inc()
	log.Error("ingestion failed",
		"kind", kind,
		"error", err.Error(),
		"stack", fmt.Sprintf("%+v", err))
	return domain.Fatal(kind, err)
}

func resultLabel(kind domain.FatalKind) string {
	switch kind {
	case domain.KindIngestParse:
		return metrics.ResultIngestParse
	case domain.KindWarehouseQuery:
		return metrics.ResultWarehouseQuery
	case domain.KindLoadJob:
		return metrics.ResultLoadJob
	default:
		return string(kind)
	}
}
