package backedqueue

import (
	"github.com/pkg/errors"

	"github.com/timzifer/backed_queue/internal/telemetry"
)

// BackedQueue is a typed FIFO queue backed by a byte-record storage engine.
// It owns the storage handle it was created with and releases it on Close.
//
// A BackedQueue performs no locking of its own. It assumes a single writer
// and a single reader at a time per instance; concurrent use requires either
// external synchronisation or an engine that locks internally.
type BackedQueue[T any] struct {
	storage   Storage
	converter Converter[T]
	closed    bool
}

// New creates a queue over an already-open storage engine and a converter for
// the element type. The queue takes ownership of the engine; the converter is
// only referenced.
func New[T any](storage Storage, converter Converter[T]) (*BackedQueue[T], error) {
	if storage == nil {
		return nil, errors.New("backedqueue: storage must not be nil")
	}
	if converter == nil {
		return nil, errors.New("backedqueue: converter must not be nil")
	}
	return &BackedQueue[T]{storage: storage, converter: converter}, nil
}

// Size returns the number of elements in the queue.
func (q *BackedQueue[T]) Size() int {
	return q.storage.Size()
}

// IsEmpty reports whether the queue contains no elements.
func (q *BackedQueue[T]) IsEmpty() bool {
	return q.Size() == 0
}

// Add appends a single element. On any serialization or storage failure the
// transaction is discarded and the queue is left unchanged.
func (q *BackedQueue[T]) Add(value T) (err error) {
	if q.closed {
		return ErrClosed
	}

	finish := telemetry.TraceWrite()
	defer func() { finish(1, err) }()

	w, err := q.storage.BeginWrite()
	if err != nil {
		return errors.Wrap(err, "add: begin write")
	}
	defer w.Discard()

	if err = q.converter.Serialize(value, w); err != nil {
		return errors.Wrap(err, "add: serialize element")
	}
	if err = w.Commit(); err != nil {
		return errors.Wrap(err, "add: commit")
	}
	return nil
}

// AddAll appends all given elements within a single write transaction.
// Either every element is committed, in order, or none is: a failure while
// serializing the k-th element leaves the queue exactly as it was before the
// call. An empty call commits nothing and is a legal no-op.
func (q *BackedQueue[T]) AddAll(values ...T) (err error) {
	if q.closed {
		return ErrClosed
	}

	finish := telemetry.TraceWrite()
	defer func() { finish(len(values), err) }()

	w, err := q.storage.BeginWrite()
	if err != nil {
		return errors.Wrap(err, "add all: begin write")
	}
	defer w.Discard()

	for i, value := range values {
		if err = q.converter.Serialize(value, w); err != nil {
			return errors.Wrapf(err, "add all: serialize element %d", i)
		}
		// The final element is committed by the transaction itself,
		// not by an explicit boundary after it.
		if i < len(values)-1 {
			if err = w.Next(); err != nil {
				return errors.Wrapf(err, "add all: finish element %d", i)
			}
		}
	}
	if err = w.Commit(); err != nil {
		return errors.Wrap(err, "add all: commit")
	}
	return nil
}

// Peek returns the oldest element without removing it. The second return
// value is false when the queue is empty; emptiness is not an error.
func (q *BackedQueue[T]) Peek() (value T, ok bool, err error) {
	if q.closed {
		return value, false, ErrClosed
	}

	r, ok, err := q.storage.Front()
	if err != nil {
		return value, false, errors.Wrap(err, "peek: open front record")
	}
	if !ok {
		return value, false, nil
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "peek: release record")
		}
	}()

	value, err = q.converter.Deserialize(r)
	if err != nil {
		return value, false, errors.Wrap(err, "peek: deserialize element")
	}
	return value, true, nil
}

// PeekN returns up to n oldest elements in queue order without removing them.
// A queue holding fewer than n elements yields fewer, not an error. Each
// record handle is fully consumed and released before the next is opened.
func (q *BackedQueue[T]) PeekN(n int) ([]T, error) {
	if q.closed {
		return nil, ErrClosed
	}
	if n <= 0 {
		return []T{}, nil
	}

	iter, err := q.storage.Iterate()
	if err != nil {
		return nil, errors.Wrap(err, "peek n: open iterator")
	}

	results := make([]T, 0, n)
	for i := 0; i < n && iter.HasNext(); i++ {
		value, err := q.peekNext(iter, i)
		if err != nil {
			return nil, err
		}
		results = append(results, value)
	}
	return results, nil
}

func (q *BackedQueue[T]) peekNext(iter Iterator, i int) (value T, err error) {
	r, err := iter.Next()
	if err != nil {
		return value, errors.Wrapf(err, "peek n: open record %d", i)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "peek n: release record %d", i)
		}
	}()

	value, err = q.converter.Deserialize(r)
	if err != nil {
		return value, errors.Wrapf(err, "peek n: deserialize element %d", i)
	}
	return value, nil
}

// Remove drops the oldest n elements. Whether an oversized n is rejected is
// the storage engine's policy; both bundled engines fail and leave the queue
// unchanged.
func (q *BackedQueue[T]) Remove(n int) error {
	if q.closed {
		return ErrClosed
	}
	if err := q.storage.Remove(n); err != nil {
		return errors.Wrapf(err, "remove %d elements", n)
	}
	return nil
}

// Close releases the storage engine. The transition is one-way: every later
// operation fails with ErrClosed without touching storage. Closing an
// already-closed queue is a no-op.
func (q *BackedQueue[T]) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true
	if err := q.storage.Close(); err != nil {
		return errors.Wrap(err, "close storage")
	}
	return nil
}
