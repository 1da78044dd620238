// Package session keeps the in-memory lock state of the wallet and locks it
// after a period of inactivity.
//
// All state changes go through Transition, a pure function over State and
// Event. Guard owns the single live State and the inactivity checker.
package session

import "time"

type Status int

const (
	Locked Status = iota
	Unlocked
)

func (s Status) String() string {
	if s == Unlocked {
		return "unlocked"
	}
	return "locked"
}

type EventKind int

const (
	EventActivity EventKind = iota
	EventUnlock
	EventLock
	EventTimeoutFired
)

// State is the session snapshot.
type State struct {
	Status         Status
	LastActivity   time.Time
	TimeoutMinutes int
}

// Timeout returns the inactivity window.
func (s State) Timeout() time.Duration {
	return time.Duration(s.TimeoutMinutes) * time.Minute
}

// Event is an input to Transition. TimeoutMinutes is read only by EventUnlock.
type Event struct {
	Kind           EventKind
	At             time.Time
	TimeoutMinutes int
}

// Transition returns the state that follows s on e.
//
//	Locked   + Unlock       -> Unlocked (activity = e.At)
//	Unlocked + Activity     -> Unlocked (activity = e.At)
//	Unlocked + Lock         -> Locked
//	Unlocked + TimeoutFired -> Locked, if the window has elapsed at e.At
//
// Every other pair leaves s unchanged.
func Transition(s State, e Event) State {
	switch e.Kind {
	case EventUnlock:
		return State{Status: Unlocked, LastActivity: e.At, TimeoutMinutes: e.TimeoutMinutes}
	case EventActivity:
		if s.Status == Unlocked && e.At.After(s.LastActivity) {
			s.LastActivity = e.At
		}
	case EventLock:
		s.Status = Locked
	case EventTimeoutFired:
		// a stale tick after fresh activity must not lock
		if s.Status == Unlocked && e.At.Sub(s.LastActivity) >= s.Timeout() {
			s.Status = Locked
		}
	}
	return s
}
