// Package memqueue provides an in-memory storage engine for backedqueue.
// The engine locks internally, so several transactions may be open at once:
// each write transaction stages its records privately and publishes them as
// one atomic batch on Commit, isolated from every other transaction. It is
// mainly intended for tests and ephemeral queues.
package memqueue

import (
	"bytes"
	"errors"
	"io"
	"sync"

	backedqueue "github.com/timzifer/backed_queue"
	"github.com/timzifer/backed_queue/internal/records"
)

type engineOptions struct {
	maxRecords int
}

type Option func(*engineOptions)

// WithMaxRecords bounds the number of stored records. Committing a batch that
// would exceed the bound fails with backedqueue.ErrQueueFull.
func WithMaxRecords(n int) Option {
	return func(opts *engineOptions) {
		opts.maxRecords = n
	}
}

// Engine is an in-memory implementation of backedqueue.Storage.
type Engine struct {
	store *records.Store

	mu     sync.Mutex
	closed bool
}

func New(options ...Option) *Engine {
	var opts engineOptions
	for _, opt := range options {
		opt(&opts)
	}
	return &Engine{store: records.New(records.WithMaxRecords(opts.maxRecords))}
}

func (e *Engine) Size() int {
	return e.store.Len()
}

// BeginWrite opens a write transaction. Transactions stage their records
// independently; any number may be open concurrently, and discarding one
// never affects another.
func (e *Engine) BeginWrite() (backedqueue.ElementWriter, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return &writer{store: e.store}, nil
}

func (e *Engine) Front() (io.ReadCloser, bool, error) {
	if err := e.checkOpen(); err != nil {
		return nil, false, err
	}
	record, ok := e.store.Get(0)
	if !ok {
		return nil, false, nil
	}
	return io.NopCloser(bytes.NewReader(record)), true, nil
}

func (e *Engine) Iterate() (backedqueue.Iterator, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return &iterator{store: e.store}, nil
}

func (e *Engine) Remove(n int) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.store.DropFront(n)
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return backedqueue.ErrClosed
	}
	return nil
}

// writer collects records for one transaction. Staging is writer-local;
// nothing reaches the shared store before Commit hands the batch over in one
// publish. It tracks whether the current record was started so that a
// transaction that never wrote commits nothing.
type writer struct {
	store    *records.Store
	current  bytes.Buffer
	staged   [][]byte
	started  bool
	finished bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.finished {
		return 0, backedqueue.ErrClosed
	}
	if len(p) > 0 {
		w.started = true
	}
	return w.current.Write(p)
}

func (w *writer) Next() error {
	if w.finished {
		return backedqueue.ErrClosed
	}
	record := make([]byte, w.current.Len())
	copy(record, w.current.Bytes())
	w.staged = append(w.staged, record)
	w.current.Reset()
	w.started = false
	return nil
}

func (w *writer) Commit() error {
	if w.finished {
		return backedqueue.ErrClosed
	}
	if w.started {
		if err := w.Next(); err != nil {
			return err
		}
	}
	w.finished = true
	if err := w.store.Publish(w.staged); err != nil {
		w.staged = nil
		if errors.Is(err, records.ErrCapacity) {
			return backedqueue.ErrQueueFull
		}
		return err
	}
	w.staged = nil
	return nil
}

func (w *writer) Discard() {
	w.finished = true
	w.current.Reset()
	w.staged = nil
}

// iterator walks committed records by index. It copies each record on access,
// so concurrent removals at most shorten the walk.
type iterator struct {
	store *records.Store
	index int
}

func (it *iterator) HasNext() bool {
	return it.index < it.store.Len()
}

func (it *iterator) Next() (io.ReadCloser, error) {
	record, ok := it.store.Get(it.index)
	if !ok {
		return nil, io.EOF
	}
	it.index++
	return io.NopCloser(bytes.NewReader(record)), nil
}
