package turn

import "testing"

func TestInitialStateIsIdleListening(t *testing.T) {
	m := New()
	if m.Current() != IdleListening {
		t.Fatalf("expected IdleListening, got %s", m.Current())
	}
}

func TestFullHappyPathCycle(t *testing.T) {
	m := New()

	if s, err := m.Apply(EventSpeechStart); err != nil || s != ReceivingSpeech {
		t.Fatalf("SpeechStart: got %s, err %v", s, err)
	}
	if s, err := m.Apply(EventSpeechEndNoPendingTX); err != nil || s != Thinking {
		t.Fatalf("SpeechEnd: got %s, err %v", s, err)
	}
	if s, err := m.Apply(EventResponseReady); err != nil || s != Transmitting {
		t.Fatalf("ResponseReady: got %s, err %v", s, err)
	}
	if s, err := m.Apply(EventPlaybackComplete); err != nil || s != IdleListening {
		t.Fatalf("PlaybackComplete: got %s, err %v", s, err)
	}
	if !m.GuardJustArmed() {
		t.Errorf("expected guard timer armed after Transmitting -> IdleListening")
	}
}

func TestChannelClearPath(t *testing.T) {
	m := New()
	m.Apply(EventSpeechStart)
	if s, err := m.Apply(EventSpeechEndResponsePrepared); err != nil || s != WaitingForChannelClear {
		t.Fatalf("expected WaitingForChannelClear, got %s, err %v", s, err)
	}
	if s, err := m.Apply(EventChannelClear); err != nil || s != Transmitting {
		t.Fatalf("expected Transmitting, got %s, err %v", s, err)
	}
	if m.GuardJustArmed() {
		t.Errorf("guard timer must only arm on Transmitting -> IdleListening")
	}
}

func TestWaitingForChannelClearInterruptedBySpeech(t *testing.T) {
	m := New()
	m.Apply(EventSpeechStart)
	m.Apply(EventSpeechEndResponsePrepared)
	if s, err := m.Apply(EventSpeechStart); err != nil || s != ReceivingSpeech {
		t.Fatalf("expected ReceivingSpeech, got %s, err %v", s, err)
	}
}

func TestWakeWordDropsToIdle(t *testing.T) {
	m := New()
	m.Apply(EventSpeechStart)
	if s, err := m.Apply(EventSpeechEndWakeWordCommandAbsent); err != nil || s != IdleListening {
		t.Fatalf("expected IdleListening, got %s, err %v", s, err)
	}
}

func TestEmergencyBargeIn(t *testing.T) {
	m := New()
	m.Apply(EventSpeechStart)
	m.Apply(EventSpeechEndNoPendingTX)
	m.Apply(EventResponseReady)
	if s, err := m.Apply(EventEmergencyBargeIn); err != nil || s != ReceivingSpeech {
		t.Fatalf("expected ReceivingSpeech, got %s, err %v", s, err)
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	m := New()
	if _, err := m.Apply(EventPlaybackComplete); err == nil {
		t.Fatalf("expected error for PlaybackComplete from IdleListening")
	}
	if m.Current() != IdleListening {
		t.Errorf("state must not change on rejected transition")
	}
}

func TestVADSampledInvariant(t *testing.T) {
	cases := []struct {
		state State
		want  bool
	}{
		{IdleListening, true},
		{ReceivingSpeech, true},
		{WaitingForChannelClear, true},
		{Thinking, false},
		{Transmitting, false},
	}
	for _, c := range cases {
		m := &Machine{state: c.state}
		if got := m.VADSampled(); got != c.want {
			t.Errorf("state %s: VADSampled() = %v, want %v", c.state, got, c.want)
		}
	}
}
