package domain

import (
	"encoding/csv"
	"io"
	"strings"
)

// Notification describes a newly created storage object. Only Bucket and Name
// drive behaviour; the remaining fields are carried for logging.
type Notification struct {
	Bucket string
	Name   string

	EventID   string
	EventType string
	Subject   string
	Source    string
}

// TableRef identifies the destination table.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

// String returns the fully-qualified "project.dataset.table" identifier.
func (r TableRef) String() string {
	return r.Project + "." + r.Dataset + "." + r.Table
}

// Complete reports whether all three identifiers are set.
func (r TableRef) Complete() bool {
	return r.Project != "" && r.Dataset != "" && r.Table != ""
}

// WriteMode governs whether a load replaces or appends to the destination.
type WriteMode string

// Write modes understood by every warehouse adapter.
const (
	WriteAppend   WriteMode = "APPEND"
	WriteTruncate WriteMode = "TRUNCATE"
)

// WriteModeFor derives the write mode from the result of the existence check.
// It is the only input to the decision.
func WriteModeFor(tableExisted bool) WriteMode {
	if tableExisted {
		return WriteAppend
	}
	return WriteTruncate
}

// TableLookup is the result of a table existence check. A missing table is a
// normal outcome (Found == false), not an error.
type TableLookup struct {
	Found   bool
	NumRows uint64
}

// Payload is a parsed, headered CSV file held in memory for one invocation.
type Payload struct {
	Columns []string
	Rows    [][]string
}

// RowCount returns the number of data rows (the header is not counted).
func (p *Payload) RowCount() int { return len(p.Rows) }

// Encode writes the payload back out as headered CSV.
func (p *Payload) Encode(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(p.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(p.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// Reader returns a reader over the encoded payload.
func (p *Payload) Reader() (io.Reader, error) {
	var sb strings.Builder
	if err := p.Encode(&sb); err != nil {
		return nil, err
	}
	return strings.NewReader(sb.String()), nil
}

// LoadOutcome is returned to the caller after a successful load.
type LoadOutcome struct {
	Status       string `json:"status"`
	File         string `json:"file"`
	RowsLoaded   int    `json:"rows_loaded"`
	TableRef     string `json:"bq_table"`
	TableCreated bool   `json:"table_created_now"`
	JobID        string `json:"job_id"`

	// DestinationRows is the post-load row count reported by the warehouse.
	// Diagnostic only; zero when the follow-up lookup failed.
	DestinationRows uint64 `json:"-"`
}

// Result is what the ingestion service hands to its boundary adapter.
// Exactly one of Skipped or Outcome is meaningful.
type Result struct {
	Skipped    bool
	SkipReason string
	Outcome    *LoadOutcome
}
