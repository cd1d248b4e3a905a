package ingestion

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"csv-ingest/internal/domain"
)

// fakeObjects serves objects from memory, keyed by full URI.
type fakeObjects struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
	opened  []string
}

func (f *fakeObjects) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, uri)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[uri]
	if !ok {
		return nil, fmt.Errorf("object %s: not found", uri)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeObjects) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

type loadCall struct {
	ref  domain.TableRef
	mode domain.WriteMode
	rows int
}

// fakeWarehouse keeps table row counts in memory and applies loads on Wait.
type fakeWarehouse struct {
	mu        sync.Mutex
	tables    map[string]uint64
	lookups   int
	loads     []loadCall
	lookupErr error
	// lookupErrAfter fails only lookups after the first n when > 0.
	lookupErrAfter int
	submitErr      error
	waitErr        error
}

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{tables: map[string]uint64{}}
}

func (w *fakeWarehouse) Lookup(_ context.Context, ref domain.TableRef) (domain.TableLookup, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lookups++
	if w.lookupErr != nil && (w.lookupErrAfter == 0 || w.lookups > w.lookupErrAfter) {
		return domain.TableLookup{}, w.lookupErr
	}
	rows, ok := w.tables[ref.String()]
	if !ok {
		return domain.TableLookup{}, nil
	}
	return domain.TableLookup{Found: true, NumRows: rows}, nil
}

func (w *fakeWarehouse) Load(_ context.Context, ref domain.TableRef, payload *domain.Payload, mode domain.WriteMode) (domain.LoadJob, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitErr != nil {
		return nil, w.submitErr
	}
	w.loads = append(w.loads, loadCall{ref: ref, mode: mode, rows: payload.RowCount()})
	return &fakeJob{
		id: fmt.Sprintf("job-%d", len(w.loads)),
		apply: func() error {
			if w.waitErr != nil {
				return w.waitErr
			}
			w.mu.Lock()
			defer w.mu.Unlock()
			if mode == domain.WriteTruncate {
				w.tables[ref.String()] = 0
			}
			w.tables[ref.String()] += uint64(payload.RowCount())
			return nil
		},
	}, nil
}

func (w *fakeWarehouse) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lookups + len(w.loads)
}

type fakeJob struct {
	id    string
	apply func() error
}

func (j *fakeJob) ID() string                   { return j.id }
func (j *fakeJob) Wait(_ context.Context) error { return j.apply() }
