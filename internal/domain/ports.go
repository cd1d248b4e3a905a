package domain

import (
	"context"
	"io"
)

// ObjectReader opens storage objects addressed by "scheme://bucket/name".
type ObjectReader interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// Warehouse is the analytical store that receives loads.
// Implementations must be safe for concurrent use.
type Warehouse interface {
	// Lookup reports whether the table exists. A missing table returns
	// TableLookup{Found: false} and a nil error.
	Lookup(ctx context.Context, ref TableRef) (TableLookup, error)
	// Load submits a load of payload into ref. The destination is created
	// when it does not exist.
	Load(ctx context.Context, ref TableRef, payload *Payload, mode WriteMode) (LoadJob, error)
}

// LoadJob is a submitted load operation.
type LoadJob interface {
	ID() string
	// Wait blocks until the job reaches a terminal state and returns the
	// job's failure, if any.
	Wait(ctx context.Context) error
}
