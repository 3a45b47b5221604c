package store

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/synergy/pkg/config"
	"github.com/ajitpratap0/synergy/pkg/errors"
)

// fakeBackend is a live backend double. It stores records in a MemoryStore
// and fails every call once failWith is set.
type fakeBackend struct {
	data   *MemoryStore
	calls  atomic.Int64
	closes atomic.Int64

	mu       sync.Mutex
	failWith error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: NewMemoryStore()}
}

func (f *fakeBackend) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeBackend) err() error {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failWith
}

func (f *fakeBackend) Write(ctx context.Context, collection, key string, fields Fields, ts time.Time) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.data.Write(ctx, collection, key, fields, ts)
}

func (f *fakeBackend) ReadOne(ctx context.Context, collection, key string) (Record, bool, error) {
	if err := f.err(); err != nil {
		return Record{}, false, err
	}
	return f.data.ReadOne(ctx, collection, key)
}

func (f *fakeBackend) ReadMany(ctx context.Context, collection string, filter Filter) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if err := f.err(); err != nil {
			yield(Record{}, err)
			return
		}
		for rec, err := range f.data.ReadMany(ctx, collection, filter) {
			if !yield(rec, err) {
				return
			}
		}
	}
}

func (f *fakeBackend) Close(context.Context) error {
	f.closes.Add(1)
	return nil
}

// fakeDialer hands out one fakeBackend, or fails with openErr. The last
// configuration it was asked to open is kept in cfg.
type fakeDialer struct {
	backend *fakeBackend
	openErr error
	opens   atomic.Int64
	cfg     config.ConnectionConfig
}

func (d *fakeDialer) Open(_ context.Context, cfg config.ConnectionConfig) (Backend, error) {
	d.opens.Add(1)
	d.cfg = cfg
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.backend, nil
}

func liveConfig() config.ConnectionConfig {
	cfg := config.Default().Connection
	cfg.URI = "mongodb://fake:27017"
	return cfg
}

var errUnreachable = errors.New(errors.ErrorTypeConnection, "connection refused")
