package store

import (
	"context"
	"iter"
	"time"

	"github.com/ajitpratap0/synergy/pkg/config"
)

// State is the lifecycle state of a Manager.
type State int

const (
	// StateUninitialized means no backend has been selected yet
	StateUninitialized State = iota
	// StateLive means the manager is bound to a real remote connection
	StateLive
	// StateMock means the manager is bound to the in-process store
	StateMock
	// StateFailed means initialization could establish no backend; operations fail fast
	StateFailed
)

// String returns the state name used in logs and metric labels.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLive:
		return "live"
	case StateMock:
		return "mock"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var allStates = []string{
	StateUninitialized.String(),
	StateLive.String(),
	StateMock.String(),
	StateFailed.String(),
}

// Backend is the generic document-store contract the manager drives. Any
// implementation is interchangeable.
//
// Implementations should report transient failures as connection, timeout
// or authentication errors from pkg/errors; the manager degrades to the
// in-memory store on those and surfaces everything else.
type Backend interface {
	// Write stores fields under key, replacing any existing record.
	Write(ctx context.Context, collection, key string, fields Fields, ts time.Time) error
	// ReadOne returns the record at key and whether it exists.
	ReadOne(ctx context.Context, collection, key string) (Record, bool, error)
	// ReadMany yields every record in collection matching filter. A failure
	// is yielded once as the final element. ctx spans the whole scan;
	// implementations bound each of their own round trips instead, so a
	// slow consumer does not time the scan out.
	ReadMany(ctx context.Context, collection string, filter Filter) iter.Seq2[Record, error]
	// Close releases the backend's connection handle.
	Close(ctx context.Context) error
}

// Dialer opens a Backend for a connection configuration.
type Dialer interface {
	Open(ctx context.Context, cfg config.ConnectionConfig) (Backend, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, cfg config.ConnectionConfig) (Backend, error)

// Open calls f
func (f DialerFunc) Open(ctx context.Context, cfg config.ConnectionConfig) (Backend, error) {
	return f(ctx, cfg)
}
