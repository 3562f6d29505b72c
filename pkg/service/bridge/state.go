package bridge

import (
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

type State int

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateStopped
}

var transitions = map[State][]State{
	StateUninitialized: {StateStarting, StateFailed, StateStopped},
	StateStarting:      {StateReady, StateFailed},
	StateReady:         {StateStopped, StateFailed},
}

// Lifecycle tracks the state of one bridge instance and the most recent
// error it degraded on. It is safe for concurrent use.
type Lifecycle struct {
	mu      sync.RWMutex
	state   State
	lastErr error
}

func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Lifecycle) LastError() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// Record stores err as the last error. nil is ignored.
func (l *Lifecycle) Record(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastErr = err
}

// Transition moves to next, rejecting moves the state machine does not allow.
func (l *Lifecycle) Transition(next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, allowed := range transitions[l.state] {
		if allowed == next {
			l.state = next
			return nil
		}
	}
	return goerr.New("invalid state transition",
		goerr.V("from", l.state.String()),
		goerr.V("to", next.String()))
}

// Fail records err and moves to StateFailed.
func (l *Lifecycle) Fail(err error) error {
	l.Record(err)
	if terr := l.Transition(StateFailed); terr != nil {
		return terr
	}
	return err
}

// Usable returns nil when calls may proceed, or the error describing why
// they may not.
func (l *Lifecycle) Usable() error {
	switch s := l.State(); s {
	case StateReady:
		return nil
	case StateStopped:
		return ErrStopped
	default:
		return goerr.Wrap(ErrNotReady, "bridge cannot serve calls", goerr.V("state", s.String()))
	}
}

// BeginStart decides what Start should do in the current state. proceed is
// true only when the caller should acquire the transport now.
func (l *Lifecycle) BeginStart() (proceed bool, err error) {
	switch s := l.State(); s {
	case StateReady:
		return false, nil
	case StateStopped:
		return false, ErrStopped
	case StateFailed:
		return false, goerr.Wrap(ErrTransportUnavailable, "bridge failed to start earlier", goerr.V("cause", l.LastError()))
	}
	if err := l.Transition(StateStarting); err != nil {
		return false, err
	}
	return true, nil
}
