package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFrameTimer_NeedsTenFrames(t *testing.T) {
	timer := NewFrameTimer(30)
	for i := 0; i < 9; i++ {
		require.Zero(t, timer.Add(100*time.Millisecond))
	}
	require.InDelta(t, 10.0, timer.Add(100*time.Millisecond), 1e-9)
}

func TestFrameTimer_RollingWindow(t *testing.T) {
	timer := NewFrameTimer(10)
	for i := 0; i < 10; i++ {
		timer.Add(time.Second)
	}
	require.InDelta(t, 1.0, timer.FPS(), 1e-9)

	for i := 0; i < 10; i++ {
		timer.Add(50 * time.Millisecond)
	}
	require.InDelta(t, 20.0, timer.FPS(), 1e-9)
}

func TestRing(t *testing.T) {
	r := newRing[int](3)
	_, ok := r.last()
	require.False(t, ok)

	for i := 1; i <= 5; i++ {
		r.push(i)
	}
	require.Equal(t, []int{3, 4, 5}, r.snapshot())
	last, ok := r.last()
	require.True(t, ok)
	require.Equal(t, 5, last)
}
