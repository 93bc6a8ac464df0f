package backedqueue

import (
	"encoding/json"
	"io"
)

// Converter translates between a typed value and its byte-stream
// representation. Implementations supply exactly these two operations and are
// expected to be stateless from the queue's point of view; configuration such
// as a schema may live inside the implementation.
type Converter[T any] interface {
	// Serialize writes the byte representation of value to w.
	//
	// A record only exists once at least one byte was written into it or
	// a boundary was demarcated after it. A Serialize that emits no bytes
	// therefore commits no record when it fills the trailing slot of a
	// write transaction; every representation must be at least one byte.
	Serialize(value T, w io.Writer) error

	// Deserialize reads one value from r. The reader spans exactly one
	// record; reading past its end yields io.EOF.
	Deserialize(r io.Reader) (T, error)
}

// JSONConverter is a Converter that stores values as JSON documents.
type JSONConverter[T any] struct{}

func (JSONConverter[T]) Serialize(value T, w io.Writer) error {
	return json.NewEncoder(w).Encode(value)
}

func (JSONConverter[T]) Deserialize(r io.Reader) (T, error) {
	var value T
	err := json.NewDecoder(r).Decode(&value)
	return value, err
}
