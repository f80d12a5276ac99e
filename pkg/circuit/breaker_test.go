package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerClosedAllowsRequests(t *testing.T) {
	b := NewBreaker(Config{Name: "test", MaxFailures: 3, Timeout: time.Second, HalfOpenMax: 2})

	assert.Equal(t, StateClosed, b.State())

	err := b.Execute(context.Background(), func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(Config{Name: "test", MaxFailures: 2, Timeout: time.Minute, HalfOpenMax: 1})

	failing := errors.New("upstream duration service unavailable")
	for i := 0; i < 2; i++ {
		err := b.Execute(context.Background(), func() error { return failing })
		assert.ErrorIs(t, err, failing)
	}

	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(Config{Name: "test", MaxFailures: 1, Timeout: 10 * time.Millisecond, HalfOpenMax: 1})

	_ = b.Execute(context.Background(), func() error { return errors.New("fetch failed") })
	assert.Equal(t, StateOpen, b.State())

	time.Sleep(15 * time.Millisecond)

	err := b.Execute(context.Background(), func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerGroupIsolatesNamedBreakers(t *testing.T) {
	g := NewBreakerGroup(Config{MaxFailures: 1, Timeout: time.Minute, HalfOpenMax: 1})

	_ = g.Execute(context.Background(), "planner.solve", func() error { return errors.New("solve failed") })
	_ = g.Execute(context.Background(), "matrixfeed.fetch", func() error { return nil })

	states := g.States()
	assert.Equal(t, StateOpen, states["planner.solve"])
	assert.Equal(t, StateClosed, states["matrixfeed.fetch"])
}
