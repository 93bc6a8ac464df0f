package backedqueue_test

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"testing"

	backedqueue "github.com/timzifer/backed_queue"
	"github.com/timzifer/backed_queue/storage/memqueue"
)

func newStringQueue(t *testing.T, options ...memqueue.Option) *backedqueue.BackedQueue[string] {
	t.Helper()
	q, err := backedqueue.New[string](memqueue.New(options...), backedqueue.JSONConverter[string]{})
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	return q
}

func TestBackedQueueFIFOOrder(t *testing.T) {
	q := newStringQueue(t)

	values := []string{"v1", "v2", "v3", "v4", "v5"}
	for _, v := range values {
		if err := q.Add(v); err != nil {
			t.Fatalf("add %q failed: %v", v, err)
		}
	}

	if got := q.Size(); got != len(values) {
		t.Fatalf("expected size %d, got %d", len(values), got)
	}

	for n := 0; n <= len(values); n++ {
		got, err := q.PeekN(n)
		if err != nil {
			t.Fatalf("peek %d failed: %v", n, err)
		}
		if len(got) != n {
			t.Fatalf("expected %d elements, got %d", n, len(got))
		}
		for i, v := range got {
			if v != values[i] {
				t.Fatalf("peek %d: expected %q at %d, got %q", n, values[i], i, v)
			}
		}
	}

	if got := q.Size(); got != len(values) {
		t.Fatalf("expected peeks to leave size at %d, got %d", len(values), got)
	}
}

func TestBackedQueuePeekEmpty(t *testing.T) {
	q := newStringQueue(t)

	value, ok, err := q.Peek()
	if err != nil {
		t.Fatalf("peek on empty queue must not fail, got %v", err)
	}
	if ok || value != "" {
		t.Fatalf("expected no value on empty queue, got %q,%v", value, ok)
	}
	if !q.IsEmpty() {
		t.Fatalf("expected queue to report empty")
	}
}

func TestBackedQueueAddAllEmptyIsNoOp(t *testing.T) {
	q := newStringQueue(t)
	if err := q.Add("a"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := q.AddAll(); err != nil {
		t.Fatalf("empty AddAll failed: %v", err)
	}
	if got := q.Size(); got != 1 {
		t.Fatalf("expected size to stay at 1, got %d", got)
	}
}

// failingConverter delegates to the JSON converter until the configured
// serialize call, which fails instead.
type failingConverter struct {
	inner  backedqueue.JSONConverter[string]
	failAt int
	calls  int
}

func (c *failingConverter) Serialize(value string, w io.Writer) error {
	c.calls++
	if c.calls == c.failAt {
		return fmt.Errorf("serialize rejected call %d", c.calls)
	}
	return c.inner.Serialize(value, w)
}

func (c *failingConverter) Deserialize(r io.Reader) (string, error) {
	return c.inner.Deserialize(r)
}

func TestBackedQueueAddAllIsAtomic(t *testing.T) {
	engine := memqueue.New()
	conv := &failingConverter{failAt: 3}
	q, err := backedqueue.New[string](engine, conv)
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	if err := q.AddAll("a", "b"); err != nil {
		t.Fatalf("first batch failed: %v", err)
	}

	if err := q.AddAll("c", "d", "e"); err == nil {
		t.Fatalf("expected batch with failing converter to fail")
	}

	if got := q.Size(); got != 2 {
		t.Fatalf("expected failed batch to leave size at 2, got %d", got)
	}
	elements, err := q.PeekN(2)
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	if elements[0] != "a" || elements[1] != "b" {
		t.Fatalf("expected queue contents unchanged, got %v", elements)
	}
}

func TestBackedQueueRemoveShiftsFront(t *testing.T) {
	q := newStringQueue(t)
	for i := 0; i < 5; i++ {
		if err := q.Add(strconv.Itoa(i)); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	if err := q.Remove(2); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if got := q.Size(); got != 3 {
		t.Fatalf("expected size 3 after removing 2, got %d", got)
	}

	value, ok, err := q.Peek()
	if err != nil || !ok {
		t.Fatalf("peek failed: %q,%v,%v", value, ok, err)
	}
	if value != "2" {
		t.Fatalf("expected element previously at position 2, got %q", value)
	}
}

func TestBackedQueueRemoveTooManyFails(t *testing.T) {
	q := newStringQueue(t)
	if err := q.AddAll("a", "b"); err != nil {
		t.Fatalf("add all failed: %v", err)
	}

	if err := q.Remove(3); err == nil {
		t.Fatalf("expected oversized remove to fail")
	}
	if got := q.Size(); got != 2 {
		t.Fatalf("expected failed remove to leave queue unchanged, got size %d", got)
	}
}

func TestBackedQueueScenario(t *testing.T) {
	q := newStringQueue(t)

	if err := q.AddAll("a", "b", "c"); err != nil {
		t.Fatalf("add all failed: %v", err)
	}
	if got := q.Size(); got != 3 {
		t.Fatalf("expected size 3, got %d", got)
	}

	elements, err := q.PeekN(2)
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	if len(elements) != 2 || elements[0] != "a" || elements[1] != "b" {
		t.Fatalf("expected [a b], got %v", elements)
	}

	if err := q.Remove(1); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if got := q.Size(); got != 2 {
		t.Fatalf("expected size 2, got %d", got)
	}

	value, ok, err := q.Peek()
	if err != nil || !ok || value != "b" {
		t.Fatalf("expected peek to return b, got %q,%v,%v", value, ok, err)
	}
}

func TestBackedQueuePeekNShortQueue(t *testing.T) {
	q := newStringQueue(t)
	if err := q.AddAll("a", "b"); err != nil {
		t.Fatalf("add all failed: %v", err)
	}

	elements, err := q.PeekN(10)
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	if len(elements) != 2 {
		t.Fatalf("expected short queue to yield 2 elements, got %d", len(elements))
	}

	elements, err = q.PeekN(0)
	if err != nil {
		t.Fatalf("peek 0 failed: %v", err)
	}
	if len(elements) != 0 {
		t.Fatalf("expected no elements for n=0, got %v", elements)
	}
}

func TestBackedQueueFullSignal(t *testing.T) {
	q := newStringQueue(t, memqueue.WithMaxRecords(1))

	if err := q.Add("a"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	err := q.Add("b")
	if !errors.Is(err, backedqueue.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if got := q.Size(); got != 1 {
		t.Fatalf("expected rejected add to leave size at 1, got %d", got)
	}
}

func TestBackedQueueClosed(t *testing.T) {
	q := newStringQueue(t)
	if err := q.Add("x"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if err := q.Add("y"); !errors.Is(err, backedqueue.ErrClosed) {
		t.Fatalf("expected ErrClosed from Add, got %v", err)
	}
	if _, _, err := q.Peek(); !errors.Is(err, backedqueue.ErrClosed) {
		t.Fatalf("expected ErrClosed from Peek, got %v", err)
	}
	if _, err := q.PeekN(1); !errors.Is(err, backedqueue.ErrClosed) {
		t.Fatalf("expected ErrClosed from PeekN, got %v", err)
	}
	if err := q.Remove(1); !errors.Is(err, backedqueue.ErrClosed) {
		t.Fatalf("expected ErrClosed from Remove, got %v", err)
	}
	if err := q.AddAll("z"); !errors.Is(err, backedqueue.ErrClosed) {
		t.Fatalf("expected ErrClosed from AddAll, got %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
}

// emptyConverter emits no bytes at all, which the Converter contract calls
// out as unable to occupy the trailing record of a transaction.
type emptyConverter struct{}

func (emptyConverter) Serialize(string, io.Writer) error { return nil }

func (emptyConverter) Deserialize(io.Reader) (string, error) { return "", nil }

func TestBackedQueueZeroByteRepresentationCommitsNothing(t *testing.T) {
	q, err := backedqueue.New[string](memqueue.New(), emptyConverter{})
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	if err := q.Add("x"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if got := q.Size(); got != 0 {
		t.Fatalf("expected zero-byte representation to commit no record, got size %d", got)
	}
}

func TestBackedQueueConcurrentAdds(t *testing.T) {
	const writers = 16

	q := newStringQueue(t)
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		value := strconv.Itoa(i)
		go func() {
			defer wg.Done()
			if err := q.Add(value); err != nil {
				t.Errorf("concurrent add failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := q.Size(); got != writers {
		t.Fatalf("expected %d elements after concurrent adds, got %d", writers, got)
	}

	elements, err := q.PeekN(writers)
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	seen := make(map[string]bool, writers)
	for _, v := range elements {
		if seen[v] {
			t.Fatalf("element %q appeared twice", v)
		}
		seen[v] = true
	}
	if len(seen) != writers {
		t.Fatalf("expected %d distinct elements, got %d", writers, len(seen))
	}
}
