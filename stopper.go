package flow

import "time"

// TimeoutGrace is added to the shared deadline each time an Engine stops on
// it, so that an enclosing loop does not stop again right after a nested run
// returns.
const TimeoutGrace = 20 * time.Millisecond

// Stopper bounds the total execution time of one invocation. A single Stopper
// is shared by every Engine of the invocation, nested ones included.
type Stopper struct {
	duration time.Duration
	deadline time.Time
	armed    bool
	now      func() time.Time
}

// NewStopper returns an unarmed Stopper for the given duration. A duration of
// zero or less never expires.
func NewStopper(d time.Duration) *Stopper {
	return &Stopper{duration: d, now: time.Now}
}

// Arm fixes the deadline to now + duration. Only the first call has an effect.
func (s *Stopper) Arm() {
	if s.armed {
		return
	}
	s.armed = true
	if s.duration > 0 {
		s.deadline = s.now().Add(s.duration)
	}
}

// Expired reports whether the deadline has passed.
func (s *Stopper) Expired() bool {
	if !s.armed || s.deadline.IsZero() {
		return false
	}
	return !s.now().Before(s.deadline)
}

// Extend pushes the deadline back by d.
func (s *Stopper) Extend(d time.Duration) {
	if s.deadline.IsZero() {
		return
	}
	s.deadline = s.deadline.Add(d)
}

// Deadline returns the absolute deadline, zero when unarmed or unbounded.
func (s *Stopper) Deadline() time.Time { return s.deadline }

// Duration returns the configured duration.
func (s *Stopper) Duration() time.Duration { return s.duration }
