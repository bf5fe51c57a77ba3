package countdown

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remaining(t *testing.T, c *Controller) (int, bool) {
	t.Helper()
	return c.Remaining()
}

// advanceAndWait moves the fake clock one second and waits for the controller
// to absorb the tick.
func advanceOneSecond(t *testing.T, fc *clockwork.FakeClock, c *Controller, want int) {
	t.Helper()
	fc.Advance(time.Second)
	require.Eventually(t, func() bool {
		got, ok := c.Remaining()
		return ok && got == want
	}, time.Second, time.Millisecond, "remaining never reached %d", want)
}

func TestStartSetsWholeSeconds(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(fc, nil)
	defer c.Dispose()

	c.Start(3 * time.Second)
	got, ok := remaining(t, c)
	require.True(t, ok)
	assert.Equal(t, 3, got)
}

func TestThreeTicksReachZeroExactly(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(fc, nil)
	defer c.Dispose()

	c.Start(3 * time.Second)
	for want := 2; want >= 0; want-- {
		advanceOneSecond(t, fc, c, want)
	}

	got, ok := remaining(t, c)
	require.True(t, ok)
	assert.Equal(t, 0, got)
}

func TestTicksBelowZeroAreNotClamped(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(fc, nil)
	defer c.Dispose()

	c.Start(1 * time.Second)
	advanceOneSecond(t, fc, c, 0)
	advanceOneSecond(t, fc, c, -1)
}

func TestCancelBeforeFirstTickNeverFires(t *testing.T) {
	fc := clockwork.NewFakeClock()
	var changes atomic.Int32
	c := New(fc, func() { changes.Add(1) })
	defer c.Dispose()

	c.Start(5 * time.Second)
	c.Cancel()

	_, ok := remaining(t, c)
	assert.False(t, ok)

	before := changes.Load()
	fc.Advance(3 * time.Second)
	// Give the tick goroutine a chance to misbehave.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, before, changes.Load())
}

func TestCancelWhenIdleIsSafe(t *testing.T) {
	c := New(clockwork.NewFakeClock(), nil)
	defer c.Dispose()

	c.Cancel()
	c.Cancel()
	_, ok := remaining(t, c)
	assert.False(t, ok)
}

func TestStartRestartsExistingCountdown(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(fc, nil)
	defer c.Dispose()

	c.Start(9 * time.Second)
	c.Start(2 * time.Second)

	got, ok := remaining(t, c)
	require.True(t, ok)
	assert.Equal(t, 2, got)

	advanceOneSecond(t, fc, c, 1)
}

func TestMillisecondsTruncateToSeconds(t *testing.T) {
	c := New(clockwork.NewFakeClock(), nil)
	defer c.Dispose()

	c.Start(3500 * time.Millisecond)
	got, ok := remaining(t, c)
	require.True(t, ok)
	assert.Equal(t, 3, got)
}

func TestDisposeStopsEverything(t *testing.T) {
	fc := clockwork.NewFakeClock()
	var changes atomic.Int32
	c := New(fc, func() { changes.Add(1) })

	c.Start(5 * time.Second)
	c.Dispose()

	before := changes.Load()
	fc.Advance(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, before, changes.Load())

	// Post-dispose calls are no-ops.
	c.Start(5 * time.Second)
	_, ok := remaining(t, c)
	assert.False(t, ok)
	c.Cancel()
	c.Dispose()
}

func TestOnChangeFiresOnTick(t *testing.T) {
	fc := clockwork.NewFakeClock()
	var changes atomic.Int32
	c := New(fc, func() { changes.Add(1) })
	defer c.Dispose()

	c.Start(2 * time.Second)
	require.EqualValues(t, 1, changes.Load())

	fc.Advance(time.Second)
	require.Eventually(t, func() bool { return changes.Load() == 2 }, time.Second, time.Millisecond)
}

// Guards against a stale tick from a replaced run touching fresh state.
func TestRestartRace(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(fc, nil)
	defer c.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c.Start(3 * time.Second)
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	c.Start(3 * time.Second)
	advanceOneSecond(t, fc, c, 2)
}
