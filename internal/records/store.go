package records

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eapache/queue"
)

// ErrCapacity is returned by Publish when the batch does not fit into the
// configured maximum number of committed records.
var ErrCapacity = errors.New("records: capacity exceeded")

type storeOptions struct {
	maxRecords int
}

type Option func(*storeOptions)

// WithMaxRecords bounds the number of committed records. A non-positive value
// means the store can grow without bound.
func WithMaxRecords(n int) Option {
	return func(opts *storeOptions) {
		opts.maxRecords = n
	}
}

// Store keeps committed byte records in a ring buffer. Batches are published
// atomically; staging a batch is the caller's concern, which keeps concurrent
// transactions isolated from one another.
type Store struct {
	mu        sync.Mutex
	committed *queue.Queue
	opts      storeOptions
}

func New(options ...Option) *Store {
	s := &Store{committed: queue.New()}
	for _, opt := range options {
		opt(&s.opts)
	}
	return s
}

// Len returns the number of committed records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed.Length()
}

// Publish atomically appends the batch to the committed segment, in order.
// When a maximum is configured and the batch would exceed it, nothing is
// appended and ErrCapacity is returned.
func (s *Store) Publish(batch [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.maxRecords > 0 && s.committed.Length()+len(batch) > s.opts.maxRecords {
		return ErrCapacity
	}

	for _, record := range batch {
		s.committed.Add(record)
	}
	return nil
}

// Get returns a copy of the i-th committed record, oldest first. The second
// return value is false when i is out of range.
func (s *Store) Get(i int) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= s.committed.Length() {
		return nil, false
	}

	record := s.committed.Get(i).([]byte)
	out := make([]byte, len(record))
	copy(out, record)
	return out, true
}

// DropFront removes the oldest n committed records. It fails, removing
// nothing, when n is negative or exceeds the committed length.
func (s *Store) DropFront(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 0 || n > s.committed.Length() {
		return fmt.Errorf("records: cannot drop %d of %d records", n, s.committed.Length())
	}
	for i := 0; i < n; i++ {
		s.committed.Remove()
	}
	return nil
}
