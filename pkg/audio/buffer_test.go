package audio

import "testing"

func TestBufferAppendAndTake(t *testing.T) {
	b := NewBuffer(16000)
	b.Append([]int16{1, 2, 3})
	b.AppendFrame(NewFrame([]int16{4, 5}, 16000))
	if b.Len() != 5 {
		t.Fatalf("expected 5 samples, got %d", b.Len())
	}

	taken := b.Take()
	if taken.Len() != 5 {
		t.Errorf("expected taken buffer to hold 5 samples, got %d", taken.Len())
	}
	if b.Len() != 0 {
		t.Errorf("expected source buffer emptied after Take, got %d", b.Len())
	}
}

func TestBufferDurationMS(t *testing.T) {
	b := NewBuffer(16000)
	b.Append(make([]int16, 320))
	if b.DurationMS() != 20 {
		t.Errorf("expected 20ms, got %d", b.DurationMS())
	}

	zeroRate := NewBuffer(0)
	zeroRate.Append(make([]int16, 10))
	if zeroRate.DurationMS() != 0 {
		t.Errorf("expected 0ms for zero sample rate, got %d", zeroRate.DurationMS())
	}
}

func TestConcat(t *testing.T) {
	a := NewBuffer(8000)
	a.Append([]int16{1, 2})
	b := NewBuffer(8000)
	b.Append([]int16{3, 4})

	out := Concat(a, b)
	want := []int16{1, 2, 3, 4}
	if out.Len() != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), out.Len())
	}
	for i, s := range want {
		if out.Samples[i] != s {
			t.Errorf("index %d: expected %d, got %d", i, s, out.Samples[i])
		}
	}
}

func TestRing(t *testing.T) {
	r := NewRing(4)
	r.Write([]int16{1, 2, 3})
	r.Write([]int16{4, 5})

	snap := r.Snapshot()
	want := []int16{2, 3, 4, 5}
	if len(snap) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(snap))
	}
	for i, s := range want {
		if snap[i] != s {
			t.Errorf("index %d: expected %d, got %d", i, s, snap[i])
		}
	}

	r.Reset()
	if len(r.Snapshot()) != 0 {
		t.Errorf("expected empty ring after reset")
	}
}
