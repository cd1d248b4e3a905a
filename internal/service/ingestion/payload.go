package ingestion

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"

	"csv-ingest/internal/domain"
)

// ParsePayload reads a headered CSV stream into memory. Blank lines are
// ignored. Records shorter than the header are padded with empty fields,
// which the warehouse loads as NULL; longer records are an error.
func ParsePayload(r io.Reader) (*domain.Payload, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty CSV: no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read CSV header")
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read CSV rows")
	}
	if rows == nil {
		rows = [][]string{}
	}
	for i, row := range rows {
		switch {
		case len(row) > len(header):
			return nil, errors.Errorf("read CSV rows: record %d has %d fields, header has %d", i+1, len(row), len(header))
		case len(row) < len(header):
			rows[i] = append(row, make([]string, len(header)-len(row))...)
		}
	}
	return &domain.Payload{Columns: header, Rows: rows}, nil
}
