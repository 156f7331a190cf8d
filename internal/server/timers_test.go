package server

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerTableGraceFires(t *testing.T) {
	mock := quartz.NewMock(t)
	tt := NewTimerTable(mock)

	fired := make(chan struct{})
	tt.StartGrace("p1", 30*time.Second, func() { close(fired) })
	require.True(t, tt.HasActive("p1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mock.Advance(30 * time.Second).MustWait(ctx)

	select {
	case <-fired:
	default:
		t.Fatal("grace timer did not fire")
	}
	assert.False(t, tt.HasActive("p1"))
}

func TestTimerTableCancelStopsTimers(t *testing.T) {
	mock := quartz.NewMock(t)
	tt := NewTimerTable(mock)

	tt.StartGrace("p1", 30*time.Second, func() { t.Error("cancelled grace timer fired") })
	tt.StartRemoval("p1", time.Minute, func() { t.Error("cancelled removal timer fired") })
	require.True(t, tt.HasActive("p1"))

	tt.Cancel("p1")
	assert.False(t, tt.HasActive("p1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mock.Advance(2 * time.Minute).MustWait(ctx)
}

func TestTimerTableRestartResetsDeadline(t *testing.T) {
	mock := quartz.NewMock(t)
	tt := NewTimerTable(mock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fires := 0
	tt.StartGrace("p1", 30*time.Second, func() { fires++ })

	mock.Advance(20 * time.Second).MustWait(ctx)
	// Re-arming pushes the deadline back out to a full period.
	tt.StartGrace("p1", 30*time.Second, func() { fires++ })

	mock.Advance(20 * time.Second).MustWait(ctx)
	assert.Equal(t, 0, fires, "timer fired before the reset deadline")

	mock.Advance(10 * time.Second).MustWait(ctx)
	assert.Equal(t, 1, fires, "timer should fire exactly once")
}

func TestTimerTableCancelAfterFireIsNoop(t *testing.T) {
	mock := quartz.NewMock(t)
	tt := NewTimerTable(mock)

	fired := false
	tt.StartGrace("p1", time.Second, func() { fired = true })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mock.Advance(time.Second).MustWait(ctx)

	require.True(t, fired)
	tt.Cancel("p1")
	assert.False(t, tt.HasActive("p1"))
}

func TestTimerTableIndependentPlayers(t *testing.T) {
	mock := quartz.NewMock(t)
	tt := NewTimerTable(mock)

	var firedP1, firedP2 bool
	tt.StartGrace("p1", 10*time.Second, func() { firedP1 = true })
	tt.StartGrace("p2", 20*time.Second, func() { firedP2 = true })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mock.Advance(10 * time.Second).MustWait(ctx)

	assert.True(t, firedP1)
	assert.False(t, firedP2)
	assert.True(t, tt.HasActive("p2"))
}
