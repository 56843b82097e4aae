package tx

import (
	"sync"
	"testing"

	"github.com/memoradio/memo-agent/pkg/audio"
)

type fakeSink struct {
	mu     sync.Mutex
	queued []byte
}

func (f *fakeSink) Enqueue(pcm []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, pcm...)
}

func (f *fakeSink) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = nil
}

func (f *fakeSink) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queued)
}

func (f *fakeSink) drain() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = nil
}

func buf(samples int, rate int) *audio.Buffer {
	b := audio.NewBuffer(rate)
	b.Append(make([]int16, samples))
	return b
}

func TestTransmitSetsTransmitting(t *testing.T) {
	sink := &fakeSink{}
	c := New(Options{SampleRate: 16000}, sink)

	c.Transmit(buf(160, 16000))
	if !c.IsTransmitting() {
		t.Fatalf("expected transmitting after Transmit")
	}

	sink.drain()
	if c.IsTransmitting() {
		t.Errorf("expected not transmitting once sink drains")
	}
}

func TestTransmitTruncatesToMaxLength(t *testing.T) {
	sink := &fakeSink{}
	c := New(Options{SampleRate: 16000, MaxTransmitMS: 10}, sink)

	c.Transmit(buf(16000, 16000)) // 1 second, truncate to 10ms = 160 samples
	if got := sink.Pending(); got != 160*2 {
		t.Errorf("expected truncated to %d bytes, got %d", 160*2, got)
	}
}

func TestStopFlushesAndClearsState(t *testing.T) {
	sink := &fakeSink{}
	c := New(Options{SampleRate: 16000}, sink)
	c.Transmit(buf(1600, 16000))
	c.Stop()

	if c.IsTransmitting() {
		t.Errorf("expected not transmitting after Stop")
	}
	if sink.Pending() != 0 {
		t.Errorf("expected sink flushed after Stop")
	}
}

func TestChannelClearReleasesPendingResponseOnce(t *testing.T) {
	sink := &fakeSink{}
	c := New(Options{SampleRate: 16000, ChannelClearSilenceMS: 500}, sink)
	c.QueueForChannelClear(buf(160, 16000))

	if c.TryRelease(100) {
		t.Fatalf("expected no release before silence threshold met")
	}
	if !c.HasPendingResponse() {
		t.Errorf("expected pending response to remain queued")
	}

	if !c.TryRelease(600) {
		t.Fatalf("expected release once silence threshold met")
	}
	if c.HasPendingResponse() {
		t.Errorf("expected pending response cleared after release")
	}
	if c.TryRelease(600) {
		t.Errorf("expected second TryRelease to be a no-op")
	}
}

func TestTransmitAppendExtendsStream(t *testing.T) {
	sink := &fakeSink{}
	c := New(Options{SampleRate: 16000}, sink)
	c.Transmit(buf(160, 16000))
	c.TransmitAppend(buf(160, 16000))

	if got := sink.Pending(); got != 160*2*2 {
		t.Errorf("expected appended bytes, got %d", got)
	}
}
