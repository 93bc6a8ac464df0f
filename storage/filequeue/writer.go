package filequeue

import (
	"bytes"
	"io"

	backedqueue "github.com/timzifer/backed_queue"
)

// writer is a write transaction. It stages framed records in memory and hands
// the whole batch to the engine on Commit. The zero byte count case matters:
// a transaction that never wrote commits no record at all.
type writer struct {
	engine   *Engine
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
	return w.engine.appendRecords(w.staged)
}

func (w *writer) Discard() {
	w.finished = true
	w.current.Reset()
	w.staged = nil
}

// iterator walks the data region record by record, starting at the head
// offset captured when the iterator was created.
type iterator struct {
	engine    *Engine
	cursor    int64
	remaining int64
}

func (it *iterator) HasNext() bool {
	return it.remaining > 0
}

func (it *iterator) Next() (io.ReadCloser, error) {
	if it.remaining <= 0 {
		return nil, io.EOF
	}
	payload, next, err := it.engine.readRecordAt(it.cursor)
	if err != nil {
		return nil, err
	}
	it.cursor = next
	it.remaining--
	return newRecordReader(payload), nil
}

// recordReader serves one record from memory. Close is a no-op but keeps the
// scoped-handle contract uniform across engines.
type recordReader struct {
	*bytes.Reader
}

func newRecordReader(payload []byte) io.ReadCloser {
	return &recordReader{Reader: bytes.NewReader(payload)}
}

func (*recordReader) Close() error { return nil }
