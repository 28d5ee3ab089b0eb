package sink

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestQueueWriteRead(t *testing.T) {
	q := NewQueue(8)

	n, err := q.Write(context.Background(), []byte{1, 2, 3, 4, 5})
	if err != nil || n != 5 {
		t.Fatalf("Write = (%d, %v), want (5, nil)", n, err)
	}
	if q.Buffered() != 5 {
		t.Errorf("Buffered = %d, want 5", q.Buffered())
	}

	p := make([]byte, 3)
	if n, _ := q.Read(p); n != 3 || !bytes.Equal(p, []byte{1, 2, 3}) {
		t.Fatalf("Read = %d %v", n, p)
	}

	// wraps around the end of the ring
	if _, err := q.Write(context.Background(), []byte{6, 7, 8, 9, 10}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	p = make([]byte, 7)
	q.Read(p)
	if !bytes.Equal(p, []byte{4, 5, 6, 7, 8, 9, 10}) {
		t.Errorf("Read after wrap = %v", p)
	}
}

func TestQueueReadPadsWithSilence(t *testing.T) {
	q := NewQueue(8)
	q.Write(context.Background(), []byte{9, 9})

	p := []byte{1, 1, 1, 1, 1}
	n, err := q.Read(p)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != len(p) {
		t.Errorf("Read should always fill the buffer, got %d", n)
	}
	if !bytes.Equal(p, []byte{9, 9, 0, 0, 0}) {
		t.Errorf("expected silence padding, got %v", p)
	}
}

func TestQueueWriteBlocksUntilRead(t *testing.T) {
	q := NewQueue(4)
	done := make(chan error, 1)

	go func() {
		_, err := q.Write(context.Background(), []byte{1, 2, 3, 4, 5, 6})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("Write should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	q.Read(make([]byte, 4))

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Write did not resume after Read")
	}
	if q.Buffered() != 2 {
		t.Errorf("Buffered = %d, want 2", q.Buffered())
	}
}

func TestQueueWriteCancelled(t *testing.T) {
	q := NewQueue(2)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		_, err := q.Write(ctx, []byte{1, 2, 3})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled Write did not return")
	}
}

func TestQueueCloseUnblocksWriter(t *testing.T) {
	q := NewQueue(2)
	done := make(chan error, 1)

	go func() {
		_, err := q.Write(context.Background(), []byte{1, 2, 3})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrLineClosed) {
			t.Errorf("expected ErrLineClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Write")
	}

	// drains what is left, then reports EOF
	p := make([]byte, 4)
	if n, err := q.Read(p); n != 4 || err != nil {
		t.Errorf("Read after Close = (%d, %v)", n, err)
	}
	if _, err := q.Read(p); err != io.EOF {
		t.Errorf("expected io.EOF on drained closed queue, got %v", err)
	}
}

func TestQueueDiscard(t *testing.T) {
	q := NewQueue(4)
	q.Write(context.Background(), []byte{1, 2, 3, 4})
	q.Discard()

	if q.Buffered() != 0 {
		t.Errorf("Buffered after Discard = %d", q.Buffered())
	}
	p := []byte{7, 7}
	q.Read(p)
	if !bytes.Equal(p, []byte{0, 0}) {
		t.Errorf("expected silence after Discard, got %v", p)
	}
}
