// Package tx implements the half-duplex transmit controller: playback
// queueing, max-transmission-length truncation, the channel-clear handoff,
// and the "is a response still pending" bookkeeping described in spec §4.3.
package tx

import (
	"sync"
	"time"

	"github.com/memoradio/memo-agent/pkg/audio"
)

// Sink is the audio output boundary the controller drives. audioio.Device
// satisfies it; tests use an in-memory fake.
type Sink interface {
	Enqueue(pcm []byte)
	Flush()
	Pending() int
}

// Options configures the controller per the `tx` section of spec §6.
type Options struct {
	SampleRate int

	// MaxTransmitMS truncates any transmitted buffer when > 0. Zero means
	// unbounded.
	MaxTransmitMS int

	// ChannelClearSilenceMS is the silence-since-last-SpeechEnd duration
	// required before a pending response is released from
	// WaitingForChannelClear (spec §4.3).
	ChannelClearSilenceMS int
}

// Controller is the owner of the playback queue. It is not safe for
// concurrent use from multiple goroutines beyond the single orchestrator
// thread plus the sink's own playback callback, which only reads queue
// depth through Sink.Pending.
type Controller struct {
	opts Options
	sink Sink

	mu            sync.Mutex
	transmitting  bool
	bytesSent     int
	pendingBuffer *audio.Buffer
}

// New creates a controller writing to sink.
func New(opts Options, sink Sink) *Controller {
	return &Controller{opts: opts, sink: sink}
}

func (c *Controller) bytesPerMS() int {
	// 16-bit mono: 2 bytes/sample.
	return c.opts.SampleRate * 2 / 1000
}

func (c *Controller) truncate(buf *audio.Buffer) *audio.Buffer {
	if c.opts.MaxTransmitMS <= 0 {
		return buf
	}
	maxSamples := c.opts.SampleRate * c.opts.MaxTransmitMS / 1000
	if buf.Len() <= maxSamples {
		return buf
	}
	out := audio.NewBuffer(buf.SampleRate)
	out.Append(buf.Samples[:maxSamples])
	return out
}

// Transmit enqueues buffer for playback, truncating to max_transmit_ms when
// configured. Starts a fresh transmission.
func (c *Controller) Transmit(buf *audio.Buffer) {
	buf = c.truncate(buf)
	pcm := buf.PCM()

	c.mu.Lock()
	c.transmitting = true
	c.bytesSent = len(pcm)
	c.mu.Unlock()

	c.sink.Enqueue(pcm)
}

// TransmitAppend extends the currently playing stream, used by streaming
// TTS. It is a no-op on truncation bounds beyond what Transmit already
// enforced for the turn.
func (c *Controller) TransmitAppend(buf *audio.Buffer) {
	pcm := buf.PCM()
	c.mu.Lock()
	c.transmitting = true
	c.bytesSent += len(pcm)
	c.mu.Unlock()
	c.sink.Enqueue(pcm)
}

// Stop aborts playback immediately.
func (c *Controller) Stop() {
	c.sink.Flush()
	c.mu.Lock()
	c.transmitting = false
	c.bytesSent = 0
	c.mu.Unlock()
}

// IsTransmitting reports true iff playback has not drained. Once the sink
// reports an empty queue the controller clears its own transmitting flag:
// the true source of "has playback drained" is the sink, not a timer.
func (c *Controller) IsTransmitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.transmitting {
		return false
	}
	if c.sink.Pending() == 0 {
		c.transmitting = false
		return false
	}
	return true
}

// QueueForChannelClear stores a response awaiting a clear channel, entered
// when the state machine moves to WaitingForChannelClear (spec §4.2/4.3).
// It replaces any previously queued (unsent) response.
func (c *Controller) QueueForChannelClear(buf *audio.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingBuffer = buf
}

// HasPendingResponse reports whether a response is waiting for the channel
// to clear.
func (c *Controller) HasPendingResponse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingBuffer != nil
}

// TryRelease checks the channel-clear rule: every audio frame, the
// controller is polled with how much silence has elapsed since the last
// detected SpeechEnd on the channel; once that silence reaches
// ChannelClearSilenceMS, the pending response is transmitted exactly once
// and TryRelease returns true. Calling TryRelease with no pending response
// is a no-op that returns false.
func (c *Controller) TryRelease(silenceSinceLastSpeechMS int) bool {
	c.mu.Lock()
	buf := c.pendingBuffer
	if buf == nil || silenceSinceLastSpeechMS < c.opts.ChannelClearSilenceMS {
		c.mu.Unlock()
		return false
	}
	c.pendingBuffer = nil
	c.mu.Unlock()

	c.Transmit(buf)
	return true
}

// ElapsedPlaybackDuration estimates how long has been played back based on
// bytes sent minus bytes still pending, for logging/progress purposes only.
func (c *Controller) ElapsedPlaybackDuration() time.Duration {
	c.mu.Lock()
	sent := c.bytesSent
	c.mu.Unlock()
	played := sent - c.sink.Pending()
	if played < 0 {
		played = 0
	}
	bpms := c.bytesPerMS()
	if bpms == 0 {
		return 0
	}
	return time.Duration(played/bpms) * time.Millisecond
}
