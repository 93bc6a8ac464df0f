// Package backedqueue provides a typed, persistent FIFO object queue. A
// BackedQueue wraps a byte-record storage engine and a Converter for the
// element type, so application code works with values instead of bytes and
// file offsets.
//
// Batches added through AddAll are committed as a single durable transaction:
// either every element becomes visible, in order, or none does. Peeks
// deserialize lazily through scoped read handles and never mutate the queue.
//
// Storage engines are pluggable behind the Storage interface; the storage/
// subpackages provide an in-memory engine and a durable file-backed one.
package backedqueue
