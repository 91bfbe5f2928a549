package audio

import "time"

// BytesPerSecond of 16 kHz mono 16-bit PCM
const BytesPerSecond = SampleRate * Channels * BitsPerSample / 8

// DefaultStaleAfter is how long buffered audio may wait before a flush is forced
const DefaultStaleAfter = 30 * time.Second

// FlushReason explains why a flush was (or was not) triggered
type FlushReason string

const (
	FlushNone      FlushReason = ""
	FlushThreshold FlushReason = "threshold"
	FlushStale     FlushReason = "stale"
	FlushForced    FlushReason = "forced"
)

// FlushPolicy decides when buffered audio is transcribed
type FlushPolicy struct {
	// ChunkLengthMs is the expected duration of one client chunk
	ChunkLengthMs int
	// ChunkThreshold is the chunk count that triggers a flush
	ChunkThreshold int
	// StaleAfter forces a flush once the oldest pending chunk is this old
	StaleAfter time.Duration
}

// NewFlushPolicy builds a policy with the default staleness window
func NewFlushPolicy(chunkLengthMs, chunkThreshold int) FlushPolicy {
	return FlushPolicy{
		ChunkLengthMs:  chunkLengthMs,
		ChunkThreshold: chunkThreshold,
		StaleAfter:     DefaultStaleAfter,
	}
}

// BytesPerChunk estimates the size of one chunk of ChunkLengthMs audio
func (p FlushPolicy) BytesPerChunk() int {
	return p.ChunkLengthMs * BytesPerSecond / 1000
}

// ByteThreshold is the buffered size that triggers a flush
func (p FlushPolicy) ByteThreshold() int {
	return p.ChunkThreshold * p.BytesPerChunk()
}

// ShouldFlush applies the count, size and force rules. An empty buffer never flushes.
func (p FlushPolicy) ShouldFlush(chunkCount, totalBytes int, force bool) bool {
	if chunkCount == 0 {
		return false
	}
	return force || chunkCount >= p.ChunkThreshold || totalBytes >= p.ByteThreshold()
}

// Evaluate applies ShouldFlush and then the staleness rule to a snapshot
func (p FlushPolicy) Evaluate(snap Snapshot, force bool, now time.Time) (bool, FlushReason) {
	if snap.Empty() {
		return false, FlushNone
	}
	if force {
		return true, FlushForced
	}
	if p.ShouldFlush(snap.Len(), snap.TotalBytes, false) {
		return true, FlushThreshold
	}
	if p.StaleAfter > 0 && now.Sub(snap.Oldest()) > p.StaleAfter {
		return true, FlushStale
	}
	return false, FlushNone
}

// BufferedSeconds estimates the audio duration of n chunks
func (p FlushPolicy) BufferedSeconds(n int) float64 {
	return float64(n*p.ChunkLengthMs) / 1000
}

// TargetSeconds is the audio duration a threshold flush waits for
func (p FlushPolicy) TargetSeconds() float64 {
	return p.BufferedSeconds(p.ChunkThreshold)
}
