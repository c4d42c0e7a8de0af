package xr

// SessionState is the platform's lifecycle state of a session
type SessionState int

// Session states, in the order a session normally goes through them
const (
	SessionUnknown SessionState = iota
	SessionIdle
	SessionReady
	SessionSynchronized
	SessionVisible
	SessionFocused
	SessionStopping
	SessionLossPending
	SessionExiting
)

var sessionStateNames = [...]string{
	SessionUnknown:      "unknown",
	SessionIdle:         "idle",
	SessionReady:        "ready",
	SessionSynchronized: "synchronized",
	SessionVisible:      "visible",
	SessionFocused:      "focused",
	SessionStopping:     "stopping",
	SessionLossPending:  "loss-pending",
	SessionExiting:      "exiting",
}

func (s SessionState) String() string {
	if s < 0 || int(s) >= len(sessionStateNames) {
		return "invalid"
	}
	return sessionStateNames[s]
}

// Usable reports whether resources may be created in this state
func (s SessionState) Usable() bool {
	return s >= SessionReady && s <= SessionFocused
}

// EventKind is the kind of a platform event
type EventKind int

// Platform events
const (
	EventSessionStateChanged EventKind = iota + 1
	EventInstanceLossPending
	EventEventsLost
)

// Event is a platform event polled from the session
type Event struct {
	Kind EventKind

	// State is set for EventSessionStateChanged
	State SessionState

	// Lost is the number of dropped events for EventEventsLost
	Lost int
}

// StateChanged is a session state change event
func StateChanged(s SessionState) Event {
	return Event{Kind: EventSessionStateChanged, State: s}
}
