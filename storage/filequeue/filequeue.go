// Package filequeue provides a durable, file-backed storage engine for
// backedqueue.
//
// Records are framed as a 4-byte length, the payload and an additive
// checksum byte. A fixed header keeps the record count and the head and tail
// offsets of the live data region. A write transaction appends its records
// after the current tail, syncs the data, and only then publishes the new
// header; a crash in between leaves the previous header valid, so a partial
// batch is never observable after reopening.
package filequeue

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	backedqueue "github.com/timzifer/backed_queue"
)

var log = logging.MustGetLogger("backedqueue.filequeue")

const (
	fileMagicNumber uint32 = 0x42514646 // "BQFF"
	fileVersion     uint16 = 1

	headerSize       = 4 + 2 + 8 + 8 + 8 + 1
	recordHeaderSize = 4
	recordTrailerLen = 1
)

var (
	ErrMagicNumber    = errors.New("filequeue: store file magic number mismatch")
	ErrVersion        = errors.New("filequeue: store file version mismatch")
	ErrHeaderChecksum = errors.New("filequeue: store file header checksum mismatch")
	ErrRecordChecksum = errors.New("filequeue: record checksum mismatch")
	ErrRecordLength   = errors.New("filequeue: record length exceeds data region")
)

type engineOptions struct {
	maxRecords  int
	syncEveryOp bool
}

type Option func(*engineOptions)

// WithMaxRecords bounds the number of stored records. Committing a batch that
// would exceed the bound fails with backedqueue.ErrQueueFull.
func WithMaxRecords(n int) Option {
	return func(opts *engineOptions) {
		opts.maxRecords = n
	}
}

// WithSyncEveryOp controls whether commits and removals force the data to
// disk before returning. Disabling it trades durability for throughput; the
// write ordering and atomicity of the header publish are unaffected.
func WithSyncEveryOp(enabled bool) Option {
	return func(opts *engineOptions) {
		opts.syncEveryOp = enabled
	}
}

// Engine is a file-backed implementation of backedqueue.Storage.
//
// The engine itself performs no locking; it inherits the single-writer,
// single-reader-at-a-time assumption of the queue it backs.
type Engine struct {
	file   *os.File
	path   string
	opts   engineOptions
	closed bool

	count int64
	head  int64
	tail  int64
}

// Open opens the queue file at path, creating it when it does not exist.
func Open(path string, options ...Option) (*Engine, error) {
	opts := engineOptions{syncEveryOp: true}
	for _, opt := range options {
		opt(&opts)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open store file %s", path)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "stat store file %s", path)
	}

	e := &Engine{file: file, path: path, opts: opts}
	if info.Size() == 0 {
		e.head = headerSize
		e.tail = headerSize
		if err := e.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
		log.Infof("created queue store %s", path)
		return e, nil
	}

	if err := e.readHeader(info.Size()); err != nil {
		file.Close()
		return nil, err
	}
	log.Infof("opened queue store %s with %d records", path, e.count)
	return e, nil
}

func (e *Engine) Size() int {
	return int(e.count)
}

// BeginWrite opens a write transaction. The transaction stages records in
// memory; nothing touches the file before Commit.
func (e *Engine) BeginWrite() (backedqueue.ElementWriter, error) {
	if e.closed {
		return nil, backedqueue.ErrClosed
	}
	return &writer{engine: e}, nil
}

func (e *Engine) Front() (io.ReadCloser, bool, error) {
	if e.closed {
		return nil, false, backedqueue.ErrClosed
	}
	if e.count == 0 {
		return nil, false, nil
	}
	payload, _, err := e.readRecordAt(e.head)
	if err != nil {
		return nil, false, err
	}
	return newRecordReader(payload), true, nil
}

func (e *Engine) Iterate() (backedqueue.Iterator, error) {
	if e.closed {
		return nil, backedqueue.ErrClosed
	}
	return &iterator{engine: e, cursor: e.head, remaining: e.count}, nil
}

// Remove drops the oldest n records by advancing the head offset. When the
// queue drains empty the data region is truncated back to the header.
func (e *Engine) Remove(n int) error {
	if e.closed {
		return backedqueue.ErrClosed
	}
	if n < 0 || int64(n) > e.count {
		return errors.Errorf("filequeue: cannot remove %d of %d records", n, e.count)
	}
	if n == 0 {
		return nil
	}

	head := e.head
	for i := 0; i < n; i++ {
		_, next, err := e.readRecordAt(head)
		if err != nil {
			return errors.Wrapf(err, "skip record %d", i)
		}
		head = next
	}

	count := e.count - int64(n)
	tail := e.tail
	if count == 0 {
		head = headerSize
		tail = headerSize
	}

	if err := e.publishHeader(count, head, tail); err != nil {
		return err
	}

	if count == 0 {
		if err := e.file.Truncate(headerSize); err != nil {
			return errors.Wrap(err, "truncate drained store file")
		}
		log.Debugf("queue store %s drained, truncated to header", e.path)
	}
	return nil
}

// Close releases the store file. Closing twice is a no-op.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	log.Infof("closing queue store %s with %d records", e.path, e.count)
	if err := e.file.Close(); err != nil {
		return errors.Wrapf(err, "close store file %s", e.path)
	}
	return nil
}

func (e *Engine) readHeader(fileSize int64) error {
	buf := make([]byte, headerSize)
	if _, err := e.file.ReadAt(buf, 0); err != nil {
		return errors.Wrap(err, "read store file header")
	}

	magic := binary.BigEndian.Uint32(buf[0:4])
	if magic != fileMagicNumber {
		return ErrMagicNumber
	}
	version := binary.BigEndian.Uint16(buf[4:6])
	if version != fileVersion {
		return ErrVersion
	}

	count := int64(binary.BigEndian.Uint64(buf[6:14]))
	head := int64(binary.BigEndian.Uint64(buf[14:22]))
	tail := int64(binary.BigEndian.Uint64(buf[22:30]))
	if buf[30] != checksum(buf[:30]) {
		return ErrHeaderChecksum
	}
	if head < headerSize || head > tail {
		return errors.Errorf("filequeue: corrupt offsets head=%d tail=%d", head, tail)
	}
	if tail > fileSize {
		return errors.Errorf("filequeue: store file shorter than tail offset (%d < %d)", fileSize, tail)
	}

	e.count = count
	e.head = head
	e.tail = tail
	return nil
}

func (e *Engine) writeHeader() error {
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint32(buf[0:4], fileMagicNumber)
	binary.BigEndian.PutUint16(buf[4:6], fileVersion)
	binary.BigEndian.PutUint64(buf[6:14], uint64(e.count))
	binary.BigEndian.PutUint64(buf[14:22], uint64(e.head))
	binary.BigEndian.PutUint64(buf[22:30], uint64(e.tail))
	buf[30] = checksum(buf[:30])

	if _, err := e.file.WriteAt(buf, 0); err != nil {
		return errors.Wrap(err, "write store file header")
	}
	if e.opts.syncEveryOp {
		if err := fdatasync(e.file); err != nil {
			return errors.Wrap(err, "sync store file header")
		}
	}
	return nil
}

// publishHeader is the commit point: once the new header is durable the new
// count and offsets are what a reopen will see.
func (e *Engine) publishHeader(count, head, tail int64) error {
	prevCount, prevHead, prevTail := e.count, e.head, e.tail
	e.count, e.head, e.tail = count, head, tail
	if err := e.writeHeader(); err != nil {
		e.count, e.head, e.tail = prevCount, prevHead, prevTail
		return err
	}
	return nil
}

func (e *Engine) readRecordAt(offset int64) (payload []byte, next int64, err error) {
	lengthBuf := make([]byte, recordHeaderSize)
	if _, err := e.file.ReadAt(lengthBuf, offset); err != nil {
		return nil, 0, errors.Wrapf(err, "read record length at %d", offset)
	}
	length := int64(binary.BigEndian.Uint32(lengthBuf))

	next = offset + recordHeaderSize + length + recordTrailerLen
	if next > e.tail {
		return nil, 0, ErrRecordLength
	}

	body := make([]byte, length+recordTrailerLen)
	if _, err := e.file.ReadAt(body, offset+recordHeaderSize); err != nil {
		return nil, 0, errors.Wrapf(err, "read record body at %d", offset)
	}

	payload = body[:length]
	if body[length] != checksum(payload) {
		return nil, 0, ErrRecordChecksum
	}
	return payload, next, nil
}

// appendRecords writes the framed batch after the current tail and syncs it,
// then publishes the new header. Used by writer.Commit.
func (e *Engine) appendRecords(staged [][]byte) error {
	if e.closed {
		return backedqueue.ErrClosed
	}
	if len(staged) == 0 {
		return nil
	}
	if e.opts.maxRecords > 0 && e.count+int64(len(staged)) > int64(e.opts.maxRecords) {
		return backedqueue.ErrQueueFull
	}

	var frame []byte
	for _, record := range staged {
		header := make([]byte, recordHeaderSize)
		binary.BigEndian.PutUint32(header, uint32(len(record)))
		frame = append(frame, header...)
		frame = append(frame, record...)
		frame = append(frame, checksum(record))
	}

	if _, err := e.file.WriteAt(frame, e.tail); err != nil {
		return errors.Wrap(err, "append records")
	}
	if e.opts.syncEveryOp {
		if err := fdatasync(e.file); err != nil {
			return errors.Wrap(err, "sync appended records")
		}
	}

	return e.publishHeader(e.count+int64(len(staged)), e.head, e.tail+int64(len(frame)))
}

// checksum is an additive checksum over the given bytes, folded to one byte.
func checksum(data []byte) byte {
	var sum int64
	for _, b := range data {
		sum += int64(b)
	}
	return byte(sum & 0xFF)
}
