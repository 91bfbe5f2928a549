package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// MinChunkSize is the smallest fragment accepted as plausible audio
const MinChunkSize = 100

var (
	ErrEmptyChunk    = errors.New("empty audio chunk")
	ErrChunkTooSmall = errors.New("audio chunk too small")
)

// Chunk is one audio fragment as received from the transport
type Chunk struct {
	Data       []byte
	ReceivedAt time.Time
}

// Snapshot is a point-in-time view of a ChunkBuffer
type Snapshot struct {
	Chunks     []Chunk
	TotalBytes int
}

// Len returns the number of chunks in the snapshot
func (s Snapshot) Len() int {
	return len(s.Chunks)
}

// Empty reports whether the snapshot holds no chunks
func (s Snapshot) Empty() bool {
	return len(s.Chunks) == 0
}

// Bytes concatenates every chunk in arrival order
func (s Snapshot) Bytes() []byte {
	out := make([]byte, 0, s.TotalBytes)
	for _, c := range s.Chunks {
		out = append(out, c.Data...)
	}
	return out
}

// Oldest returns the arrival time of the first chunk
func (s Snapshot) Oldest() time.Time {
	if len(s.Chunks) == 0 {
		return time.Time{}
	}
	return s.Chunks[0].ReceivedAt
}

// Newest returns the arrival time of the last chunk
func (s Snapshot) Newest() time.Time {
	if len(s.Chunks) == 0 {
		return time.Time{}
	}
	return s.Chunks[len(s.Chunks)-1].ReceivedAt
}

// ChunkBuffer accumulates the audio fragments of one session until they are
// flushed into a transcription attempt.
type ChunkBuffer struct {
	chunks       []Chunk
	totalBytes   int
	streaming    bool
	lastActivity time.Time

	mu sync.RWMutex
}

// NewChunkBuffer creates an empty buffer
func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{
		lastActivity: time.Now(),
	}
}

// Append adds a fragment. Empty and undersized fragments are rejected.
func (b *ChunkBuffer) Append(data []byte, at time.Time) error {
	if len(data) == 0 {
		return ErrEmptyChunk
	}
	if len(data) < MinChunkSize {
		return fmt.Errorf("%w: %d bytes", ErrChunkTooSmall, len(data))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, Chunk{Data: data, ReceivedAt: at})
	b.totalBytes += len(data)
	b.lastActivity = at
	return nil
}

// Snapshot returns the buffered chunks without mutating the buffer
func (b *ChunkBuffer) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	chunks := make([]Chunk, len(b.chunks))
	copy(chunks, b.chunks)
	return Snapshot{Chunks: chunks, TotalBytes: b.totalBytes}
}

// Drain returns the buffered chunks and empties the buffer in one step
func (b *ChunkBuffer) Drain() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{Chunks: b.chunks, TotalBytes: b.totalBytes}
	b.chunks = nil
	b.totalBytes = 0
	return snap
}

// Clear empties the buffer
func (b *ChunkBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.totalBytes = 0
}

// Len returns the number of buffered chunks
func (b *ChunkBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks)
}

// SinceNewest returns the time elapsed since the most recent chunk arrived.
// ok is false when the buffer is empty.
func (b *ChunkBuffer) SinceNewest(now time.Time) (age time.Duration, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.chunks) == 0 {
		return 0, false
	}
	return now.Sub(b.chunks[len(b.chunks)-1].ReceivedAt), true
}

// SinceOldest returns the time elapsed since the oldest pending chunk arrived.
// ok is false when the buffer is empty.
func (b *ChunkBuffer) SinceOldest(now time.Time) (age time.Duration, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.chunks) == 0 {
		return 0, false
	}
	return now.Sub(b.chunks[0].ReceivedAt), true
}

// SetStreaming flips the streaming flag
func (b *ChunkBuffer) SetStreaming(streaming bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streaming = streaming
	b.lastActivity = time.Now()
}

// IsStreaming reports whether the owning connection is streaming
func (b *ChunkBuffer) IsStreaming() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.streaming
}

// LastActivity returns the time of the last append or streaming change
func (b *ChunkBuffer) LastActivity() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastActivity
}
