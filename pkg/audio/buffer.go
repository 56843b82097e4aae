package audio

// Buffer is an ordered, resizable sequence of 16-bit mono samples
// representing an in-progress utterance, a synthesized response, or a tone.
// Ownership transfers explicitly between components (VAD → STT → TX); a
// Buffer has no internal locking, matching the "exclusively owned by whoever
// is currently operating on it" invariant of spec §3.
type Buffer struct {
	Samples    []int16
	SampleRate int
}

// NewBuffer creates an empty buffer at the given sample rate.
func NewBuffer(sampleRate int) *Buffer {
	return &Buffer{SampleRate: sampleRate}
}

// Append adds samples to the end of the buffer.
func (b *Buffer) Append(samples []int16) {
	b.Samples = append(b.Samples, samples...)
}

// AppendFrame appends a frame's samples.
func (b *Buffer) AppendFrame(f Frame) {
	b.Append(f.Samples)
}

// Len returns the number of samples currently buffered.
func (b *Buffer) Len() int {
	return len(b.Samples)
}

// DurationMS returns the buffered duration in milliseconds.
func (b *Buffer) DurationMS() int {
	if b.SampleRate == 0 {
		return 0
	}
	return len(b.Samples) * 1000 / b.SampleRate
}

// Reset clears the buffer, keeping the underlying array for reuse.
func (b *Buffer) Reset() {
	b.Samples = b.Samples[:0]
}

// Take atomically hands off ownership of the accumulated samples and resets
// the buffer to empty, mirroring the VAD's finalize_segment contract.
func (b *Buffer) Take() *Buffer {
	taken := &Buffer{Samples: b.Samples, SampleRate: b.SampleRate}
	b.Samples = nil
	return taken
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	cp := make([]int16, len(b.Samples))
	copy(cp, b.Samples)
	return &Buffer{Samples: cp, SampleRate: b.SampleRate}
}

// PCM encodes the buffer as little-endian 16-bit PCM bytes.
func (b *Buffer) PCM() []byte {
	return Frame{Samples: b.Samples, SampleRate: b.SampleRate}.PCM()
}

// Concat returns a new buffer containing a's samples followed by b's.
// Used to build synth_vox output (pre-roll tone concatenated with speech).
func Concat(a, b *Buffer) *Buffer {
	rate := a.SampleRate
	if rate == 0 {
		rate = b.SampleRate
	}
	out := &Buffer{SampleRate: rate}
	out.Samples = make([]int16, 0, len(a.Samples)+len(b.Samples))
	out.Samples = append(out.Samples, a.Samples...)
	out.Samples = append(out.Samples, b.Samples...)
	return out
}

// Ring is a fixed-capacity ring buffer of samples used for the VAD's
// pre-speech lead-in (spec §4.1 "Pre-speech buffer").
type Ring struct {
	data []int16
	cap  int
}

// NewRing creates a ring buffer capable of holding capSamples samples.
func NewRing(capSamples int) *Ring {
	return &Ring{cap: capSamples}
}

// Write appends samples, discarding the oldest ones beyond capacity.
func (r *Ring) Write(samples []int16) {
	r.data = append(r.data, samples...)
	if len(r.data) > r.cap {
		r.data = r.data[len(r.data)-r.cap:]
	}
}

// Snapshot returns a copy of the currently buffered samples, oldest first.
func (r *Ring) Snapshot() []int16 {
	cp := make([]int16, len(r.data))
	copy(cp, r.data)
	return cp
}

// Reset empties the ring.
func (r *Ring) Reset() {
	r.data = r.data[:0]
}
