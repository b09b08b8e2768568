package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	c, err := NewController(testParams(31), nil)
	require.NoError(t, err)
	c.Interval = 0
	return c
}

func TestController_StepRecordsFrames(t *testing.T) {
	c := newTestController(t)
	var seen []int
	c.OnFrame = func(r *Result) { seen = append(seen, r.Step) }

	for i := 0; i < 3; i++ {
		r, err := c.Step()
		require.NoError(t, err)
		require.NotNil(t, r)
	}
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Len(t, c.Frames(), 3)
	assert.Equal(t, 3, c.CurrentStep())

	f, ok := c.Frame(2)
	require.True(t, ok)
	assert.Equal(t, 2, f.Step)
	_, ok = c.Frame(4)
	assert.False(t, ok)

	latest, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, 3, latest.Step)
}

func TestController_StepBeyondHorizon(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.Seek(c.Params().Years*2))
	assert.True(t, c.Done())

	r, err := c.Step()
	assert.NoError(t, err)
	assert.Nil(t, r)
	assert.Len(t, c.Frames(), c.Params().Years*2)
}

func TestController_SeekBackReplaysSameFrames(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.Seek(6))
	first := c.Frames()
	id := c.RunID()

	require.NoError(t, c.Seek(3))
	assert.Equal(t, 3, c.CurrentStep())
	assert.Equal(t, id, c.RunID())
	replayed := c.Frames()
	require.Len(t, replayed, 3)
	for i := range replayed {
		assert.Equal(t, first[i].Metrics, replayed[i].Metrics)
	}

	r, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, first[3].Metrics, r.Metrics)
}

func TestController_ResetKeepsSeedButNewRun(t *testing.T) {
	c := newTestController(t)
	r1, err := c.Step()
	require.NoError(t, err)
	id := c.RunID()

	require.NoError(t, c.Reset())
	assert.NotEqual(t, id, c.RunID())
	assert.Empty(t, c.Frames())
	assert.Equal(t, 0, c.CurrentStep())

	r2, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, r1.Metrics, r2.Metrics)
}

func TestController_FailedStepRecordsNoFrame(t *testing.T) {
	c := newTestController(t)
	_, err := c.Step()
	require.NoError(t, err)

	c.View(func(s *Simulation) { s.Market = nil })
	_, err = c.Step()
	assert.ErrorIs(t, err, ErrStepFailed)
	assert.Len(t, c.Frames(), 1)

	_, err = c.Step()
	assert.ErrorIs(t, err, ErrTainted)

	require.NoError(t, c.Reset())
	_, err = c.Step()
	assert.NoError(t, err)
}

func TestController_PauseResume(t *testing.T) {
	c := newTestController(t)
	c.Pause()
	assert.True(t, c.Paused())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Run(ctx))
	assert.Zero(t, c.CurrentStep(), "a paused controller does not step")

	c.Resume()
	assert.False(t, c.Paused())
	require.NoError(t, c.Run(context.Background()))
	assert.True(t, c.Done())
	assert.Len(t, c.Frames(), c.Params().Years*2)
}
