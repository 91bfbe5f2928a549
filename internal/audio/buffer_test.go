package audio

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestChunkBufferAccounting(t *testing.T) {
	sizes := []int{100, 320, 16000, 4096, 777}
	buf := NewChunkBuffer()
	now := time.Now()

	want := 0
	for i, size := range sizes {
		if err := buf.Append(bytes.Repeat([]byte{byte(i)}, size), now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Append(%d) failed: %v", size, err)
		}
		want += size

		snap := buf.Snapshot()
		if snap.TotalBytes != want {
			t.Errorf("after %d chunks TotalBytes = %d, want %d", i+1, snap.TotalBytes, want)
		}
		if snap.Len() != i+1 {
			t.Errorf("after %d chunks Len = %d", i+1, snap.Len())
		}
	}

	if got := len(buf.Snapshot().Bytes()); got != want {
		t.Errorf("concatenated length = %d, want %d", got, want)
	}

	buf.Clear()
	snap := buf.Snapshot()
	if !snap.Empty() || snap.TotalBytes != 0 {
		t.Errorf("expected empty snapshot after Clear, got %d chunks and %d bytes", snap.Len(), snap.TotalBytes)
	}
}

func TestChunkBufferRejectsImplausibleChunks(t *testing.T) {
	buf := NewChunkBuffer()

	if err := buf.Append(nil, time.Now()); !errors.Is(err, ErrEmptyChunk) {
		t.Errorf("expected ErrEmptyChunk, got %v", err)
	}
	if err := buf.Append(make([]byte, MinChunkSize-1), time.Now()); !errors.Is(err, ErrChunkTooSmall) {
		t.Errorf("expected ErrChunkTooSmall, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("rejected chunks must not be stored, got %d", buf.Len())
	}
}

func TestChunkBufferSnapshotDoesNotMutate(t *testing.T) {
	buf := NewChunkBuffer()
	_ = buf.Append(make([]byte, 200), time.Now())

	snap := buf.Snapshot()
	snap.Chunks[0].Data = nil

	if buf.Len() != 1 || buf.Snapshot().TotalBytes != 200 {
		t.Error("snapshot must not alias buffer state")
	}
}

func TestChunkBufferDrain(t *testing.T) {
	buf := NewChunkBuffer()
	_ = buf.Append(make([]byte, 200), time.Now())
	_ = buf.Append(make([]byte, 300), time.Now())

	snap := buf.Drain()
	if snap.Len() != 2 || snap.TotalBytes != 500 {
		t.Errorf("unexpected drained snapshot: %d chunks, %d bytes", snap.Len(), snap.TotalBytes)
	}
	if buf.Len() != 0 {
		t.Error("expected buffer to be empty after Drain")
	}
}

func TestChunkBufferAges(t *testing.T) {
	buf := NewChunkBuffer()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if _, ok := buf.SinceNewest(base); ok {
		t.Error("empty buffer must not report an age")
	}

	_ = buf.Append(make([]byte, 200), base)
	_ = buf.Append(make([]byte, 200), base.Add(20*time.Second))

	now := base.Add(25 * time.Second)
	newest, _ := buf.SinceNewest(now)
	oldest, _ := buf.SinceOldest(now)
	if newest != 5*time.Second {
		t.Errorf("SinceNewest = %v, want 5s", newest)
	}
	if oldest != 25*time.Second {
		t.Errorf("SinceOldest = %v, want 25s", oldest)
	}
}

func TestChunkBufferStreamingFlag(t *testing.T) {
	buf := NewChunkBuffer()
	if buf.IsStreaming() {
		t.Error("new buffer should not be streaming")
	}
	buf.SetStreaming(true)
	if !buf.IsStreaming() {
		t.Error("expected streaming after SetStreaming(true)")
	}
}
