// Package dialog routes user text through the single-shot mode machine:
// a menu selection arms a mode, the next text message consumes it.
package dialog

import "github.com/m3rciful/assistbot/core/telegram/state"

// State is a node of the dialog machine.
type State int

const (
	// Idle means no mode is armed.
	Idle State = iota
	// AwaitingCrypto means the next text is a coin query.
	AwaitingCrypto
	// AwaitingAI means the next text is a question for the providers.
	AwaitingAI
)

func (s State) String() string {
	switch s {
	case AwaitingCrypto:
		return "awaiting_crypto"
	case AwaitingAI:
		return "awaiting_ai"
	default:
		return "idle"
	}
}

// Event drives a transition.
type Event int

const (
	// SelectCrypto is the crypto menu button.
	SelectCrypto Event = iota
	// SelectAI is the AI assistant menu button.
	SelectAI
	// SelectKnowledge is the general knowledge menu button; it arms the AI mode with its own prompt.
	SelectKnowledge
	// Text is any plain text message.
	Text
)

func (e Event) String() string {
	switch e {
	case SelectCrypto:
		return "select_crypto"
	case SelectAI:
		return "select_ai"
	case SelectKnowledge:
		return "select_knowledge"
	default:
		return "text"
	}
}

type action int

const (
	promptCrypto action = iota
	promptAI
	promptKnowledge
	lookupCoin
	askProviders
	promptChoose
)

type transition struct {
	next   State
	action action
}

// selections apply from every state; re-selecting switches the armed mode.
var selections = map[Event]transition{
	SelectCrypto:    {AwaitingCrypto, promptCrypto},
	SelectAI:        {AwaitingAI, promptAI},
	SelectKnowledge: {AwaitingAI, promptKnowledge},
}

var transitions = map[State]map[Event]transition{
	Idle: {
		Text: {Idle, promptChoose},
	},
	AwaitingCrypto: {
		Text: {Idle, lookupCoin},
	},
	AwaitingAI: {
		Text: {Idle, askProviders},
	},
}

// next returns the transition for ev in s.
func next(s State, ev Event) transition {
	if t, ok := selections[ev]; ok {
		return t
	}
	if t, ok := transitions[s][ev]; ok {
		return t
	}
	return transition{Idle, promptChoose}
}

func stateOf(m state.Mode) State {
	switch m {
	case state.ModeCrypto:
		return AwaitingCrypto
	case state.ModeAI:
		return AwaitingAI
	default:
		return Idle
	}
}

func modeOf(s State) state.Mode {
	switch s {
	case AwaitingCrypto:
		return state.ModeCrypto
	case AwaitingAI:
		return state.ModeAI
	default:
		return state.ModeNone
	}
}
