package backedqueue

import (
	"errors"
	"io"
)

// ErrQueueFull is returned when committing a write transaction would exceed
// the storage engine's configured capacity.
var ErrQueueFull = errors.New("backedqueue: queue is full")

// ErrClosed is returned when an operation is invoked on a closed queue.
var ErrClosed = errors.New("backedqueue: queue is closed")

// Storage is the byte-record store a BackedQueue runs on. Records are opaque
// byte spans kept in strict FIFO order; the engine owns durability, framing
// and the atomicity of write transactions.
type Storage interface {
	// Size returns the number of committed, not yet removed records.
	Size() int

	// BeginWrite opens a write transaction. Transactions are isolated from
	// one another: discarding one must never affect records staged by
	// another. Whether more than one transaction may be open at a time is
	// the engine's policy; the file engine expects a single writer, the
	// memory engine locks internally and allows concurrent transactions.
	BeginWrite() (ElementWriter, error)

	// Front opens a read handle for the oldest record. The second return
	// value is false when the store is empty; that is not an error.
	Front() (io.ReadCloser, bool, error)

	// Iterate returns a forward-only cursor over all records, oldest first.
	Iterate() (Iterator, error)

	// Remove drops the oldest n records. It fails, leaving the store
	// unchanged, when n is negative or exceeds Size.
	Remove(n int) error

	// Close releases the engine. Closing twice is a no-op.
	Close() error
}

// ElementWriter is a write transaction. Records are written sequentially:
// bytes written since the last boundary form the current record, Next closes
// that record and starts the next one, and Commit atomically publishes every
// closed record plus a trailing in-progress one. Nothing becomes visible to
// readers before Commit returns nil.
//
// A record only exists once at least one byte was written into it or a
// boundary was demarcated after it; committing a transaction that never wrote
// publishes zero records.
type ElementWriter interface {
	io.Writer

	// Next marks the end of the current record and begins the next.
	Next() error

	// Commit durably publishes all records of this transaction as one
	// atomic operation. Returns ErrQueueFull when the engine's capacity
	// would be exceeded; in that case nothing is published.
	Commit() error

	// Discard abandons everything not yet committed and releases the
	// transaction. It is a no-op after a successful Commit. The writer
	// must not be used afterwards.
	Discard()
}

// Iterator walks records oldest to newest. Each handle returned by Next must
// be closed before Next is called again; handles are never held open
// concurrently.
type Iterator interface {
	HasNext() bool
	Next() (io.ReadCloser, error)
}
