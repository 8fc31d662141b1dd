package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStopper(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := NewStopper(100 * time.Millisecond)
	s.now = clock.now

	assert.False(t, s.Expired(), "unarmed stopper never expires")
	assert.True(t, s.Deadline().IsZero())

	s.Arm()
	assert.Equal(t, clock.t.Add(100*time.Millisecond), s.Deadline())

	clock.advance(50 * time.Millisecond)
	s.Arm()
	assert.Equal(t, time.Unix(1000, 0).Add(100*time.Millisecond), s.Deadline(), "only the first Arm sets the deadline")
	assert.False(t, s.Expired())

	clock.advance(50 * time.Millisecond)
	assert.True(t, s.Expired())

	s.Extend(TimeoutGrace)
	assert.False(t, s.Expired())
	clock.advance(TimeoutGrace)
	assert.True(t, s.Expired())
	assert.Equal(t, 100*time.Millisecond, s.Duration())
}

func TestStopperWithoutDuration(t *testing.T) {
	s := NewStopper(0)
	s.Arm()
	s.Extend(time.Second)
	assert.False(t, s.Expired())
	assert.True(t, s.Deadline().IsZero())
}
