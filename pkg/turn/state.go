// Package turn holds the canonical turn state machine: the single source
// of truth for what the agent is currently doing (spec §4.2).
package turn

import "fmt"

// State is one of the five turn states.
type State int

const (
	IdleListening State = iota
	ReceivingSpeech
	Thinking
	Transmitting
	WaitingForChannelClear
)

func (s State) String() string {
	switch s {
	case IdleListening:
		return "idle_listening"
	case ReceivingSpeech:
		return "receiving_speech"
	case Thinking:
		return "thinking"
	case Transmitting:
		return "transmitting"
	case WaitingForChannelClear:
		return "waiting_for_channel_clear"
	default:
		return "unknown"
	}
}

// Event is one of the inputs that can move the state machine, per the
// transition table of §4.2.
type Event int

const (
	EventSpeechStart Event = iota
	EventSpeechEndNoPendingTX
	EventSpeechEndWakeWordCommandAbsent
	EventSpeechEndResponsePrepared
	EventResponseReady
	EventChannelClear
	EventPlaybackComplete
	EventEmergencyBargeIn
)

func (e Event) String() string {
	switch e {
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechEndNoPendingTX:
		return "speech_end_no_pending_tx"
	case EventSpeechEndWakeWordCommandAbsent:
		return "speech_end_wake_word_command_absent"
	case EventSpeechEndResponsePrepared:
		return "speech_end_response_prepared"
	case EventResponseReady:
		return "response_ready"
	case EventChannelClear:
		return "channel_clear"
	case EventPlaybackComplete:
		return "playback_complete"
	case EventEmergencyBargeIn:
		return "emergency_barge_in"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned by Machine.Apply when the requested
// event has no edge from the current state in the table below.
type ErrInvalidTransition struct {
	From  State
	Event Event
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("turn: no transition for event %s from state %s", e.Event, e.From)
}

// transitions encodes the table in spec §4.2 exactly: (from, event) -> to.
var transitions = map[State]map[Event]State{
	IdleListening: {
		EventSpeechStart: ReceivingSpeech,
	},
	ReceivingSpeech: {
		EventSpeechEndNoPendingTX:            Thinking,
		EventSpeechEndWakeWordCommandAbsent:  IdleListening,
		EventSpeechEndResponsePrepared:       WaitingForChannelClear,
	},
	Thinking: {
		EventResponseReady: Transmitting,
	},
	WaitingForChannelClear: {
		EventChannelClear: Transmitting,
		EventSpeechStart:  ReceivingSpeech,
	},
	Transmitting: {
		EventPlaybackComplete: IdleListening,
		EventEmergencyBargeIn: ReceivingSpeech,
	},
}

// Machine is the turn state machine. It is not safe for concurrent use;
// the pipeline orchestrator is its sole owner (spec §3 Lifecycle: "all
// shared mutable state is owned by the orchestrator").
type Machine struct {
	state State

	// guardArmed is set only by the Transmitting -> IdleListening
	// transition, per §4.2's invariant that this is the only edge which
	// arms the guard timer.
	guardArmed bool
}

// New creates a machine starting in IdleListening.
func New() *Machine {
	return &Machine{state: IdleListening}
}

// Current returns the current state.
func (m *Machine) Current() State {
	return m.state
}

// Apply attempts the given event from the current state. On success it
// returns the new state; on an undefined edge it returns
// ErrInvalidTransition and leaves the state unchanged.
func (m *Machine) Apply(event Event) (State, error) {
	edges, ok := transitions[m.state]
	if !ok {
		return m.state, &ErrInvalidTransition{From: m.state, Event: event}
	}
	to, ok := edges[event]
	if !ok {
		return m.state, &ErrInvalidTransition{From: m.state, Event: event}
	}

	m.guardArmed = m.state == Transmitting && to == IdleListening
	m.state = to
	return m.state, nil
}

// GuardJustArmed reports whether the most recent Apply call was the
// Transmitting -> IdleListening edge, which is the only edge that arms the
// guard timer (spec §4.2).
func (m *Machine) GuardJustArmed() bool {
	return m.guardArmed
}

// VADSampled reports whether the endpointer should be run in the current
// state, per §4.2's invariant: VAD is only sampled in
// {IdleListening, ReceivingSpeech, WaitingForChannelClear}.
func (m *Machine) VADSampled() bool {
	switch m.state {
	case IdleListening, ReceivingSpeech, WaitingForChannelClear:
		return true
	default:
		return false
	}
}
