// Package warehouse implements domain.Warehouse for the supported analytical
// stores.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"csv-ingest/internal/domain"
)

// Compile-time checks.
var (
	_ domain.Warehouse = (*BigQuery)(nil)
	_ domain.Warehouse = (*DuckDB)(nil)
)

// BigQuery loads CSV payloads into BigQuery tables. One instance is shared by
// all invocations; the underlying client is safe for concurrent use.
type BigQuery struct {
	client *bigquery.Client
}

// BigQueryConfig holds client settings.
type BigQueryConfig struct {
	Project  string // billing project for load jobs
	Location string // job location, e.g. "EU"; empty lets BigQuery decide
	KeyFile  string // service account key; empty uses Application Default Credentials
}

// errNoProject is returned by every call on a BigQuery built without a
// project.
var errNoProject = errors.New("BigQuery project is not configured")

// NewBigQuery creates the BigQuery client. With an empty Project no client is
// created and every call fails with errNoProject, so a process with an
// incomplete destination still starts and reports the problem per request.
func NewBigQuery(ctx context.Context, cfg BigQueryConfig) (*BigQuery, error) {
	if cfg.Project == "" {
		return &BigQuery{}, nil
	}
	var opts []option.ClientOption
	if cfg.KeyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.KeyFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, fmt.Errorf("create BigQuery client: %w", err)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}
	return &BigQuery{client: client}, nil
}

// Close releases the client.
func (b *BigQuery) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func (b *BigQuery) table(ref domain.TableRef) *bigquery.Table {
	return b.client.DatasetInProject(ref.Project, ref.Dataset).Table(ref.Table)
}

// Lookup implements domain.Warehouse.
func (b *BigQuery) Lookup(ctx context.Context, ref domain.TableRef) (domain.TableLookup, error) {
	if b.client == nil {
		return domain.TableLookup{}, errNoProject
	}
	md, err := b.table(ref).Metadata(ctx)
	if err != nil {
		if isNotFound(err) {
			return domain.TableLookup{}, nil
		}
		return domain.TableLookup{}, fmt.Errorf("get table metadata %s: %w", ref, err)
	}
	return domain.TableLookup{Found: true, NumRows: md.NumRows}, nil
}

// Load implements domain.Warehouse.
func (b *BigQuery) Load(ctx context.Context, ref domain.TableRef, payload *domain.Payload, mode domain.WriteMode) (domain.LoadJob, error) {
	if b.client == nil {
		return nil, errNoProject
	}
	loader, err := newLoader(b.table(ref), payload, mode)
	if err != nil {
		return nil, err
	}
	job, err := loader.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("start load job into %s: %w", ref, err)
	}
	return &bigQueryJob{job: job}, nil
}

// newLoader configures a CSV load of payload into t: header row skipped,
// schema auto-detected, table created when missing.
func newLoader(t *bigquery.Table, payload *domain.Payload, mode domain.WriteMode) (*bigquery.Loader, error) {
	r, err := payload.Reader()
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	src := bigquery.NewReaderSource(r)
	src.SourceFormat = bigquery.CSV
	src.SkipLeadingRows = 1
	src.AutoDetect = true
	src.AllowQuotedNewlines = true

	loader := t.LoaderFrom(src)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.WriteDisposition = writeDisposition(mode)
	return loader, nil
}

func writeDisposition(mode domain.WriteMode) bigquery.TableWriteDisposition {
	if mode == domain.WriteAppend {
		return bigquery.WriteAppend
	}
	return bigquery.WriteTruncate
}

// isNotFound reports whether err is a 404 from the BigQuery API.
func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

type bigQueryJob struct {
	job *bigquery.Job
}

func (j *bigQueryJob) ID() string { return j.job.ID() }

// Wait blocks until the job is done. A job that finished with errors is
// reported through status.Err().
func (j *bigQueryJob) Wait(ctx context.Context) error {
	status, err := j.job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job %s: %w", j.job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job %s failed: %w", j.job.ID(), err)
	}
	return nil
}
