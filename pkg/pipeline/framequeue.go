package pipeline

import (
	"time"

	"github.com/memoradio/memo-agent/pkg/audio"
)

// FrameQueue is the bounded capture queue of spec §5: "An audio capture
// producer thread enqueues frames into an MPSC queue bounded by a small
// constant (e.g., 100); overflow drops the oldest." Grounded on the
// teacher's channel-based audio-chunk queues in
// pkg/orchestrator/managed_stream.go, generalized from byte chunks to
// audio.Frame values.
type FrameQueue struct {
	ch chan audio.Frame
}

// NewFrameQueue creates a queue holding at most capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &FrameQueue{ch: make(chan audio.Frame, capacity)}
}

// Push enqueues f, dropping the oldest queued frame when full. Safe to
// call from the capture callback's own goroutine.
func (q *FrameQueue) Push(f audio.Frame) {
	select {
	case q.ch <- f:
		return
	default:
	}
	select {
	case <-q.ch:
	default:
	}
	select {
	case q.ch <- f:
	default:
	}
}

// Pop waits up to timeout for a frame, implementing spec §4.4 step 1's
// "read one frame; on failure, sleep briefly and retry."
func (q *FrameQueue) Pop(timeout time.Duration) (audio.Frame, bool) {
	select {
	case f := <-q.ch:
		return f, true
	case <-time.After(timeout):
		return audio.Frame{}, false
	}
}

// Flush discards any buffered frames, used when the orchestrator returns
// to IdleListening after a transmission (spec §4.4 step 3).
func (q *FrameQueue) Flush() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
