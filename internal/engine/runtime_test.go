package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoxlabs/growthworker/internal/models"
)

func TestRuntimeMarkProcessedDeduplicates(t *testing.T) {
	rt := newRuntime(&models.Account{Name: "alpha"})

	assert.True(t, rt.MarkProcessed("u1"))
	assert.False(t, rt.MarkProcessed("u1"))
	assert.True(t, rt.MarkProcessed("u2"))
}

func TestRuntimeDiscoveredQueueBoundedAndDeduplicated(t *testing.T) {
	rt := newRuntime(&models.Account{Name: "alpha"})

	assert.True(t, rt.PushDiscovered("a", 2))
	assert.False(t, rt.PushDiscovered("a", 2), "duplicate must be rejected")
	assert.True(t, rt.PushDiscovered("b", 2))
	assert.False(t, rt.PushDiscovered("c", 2), "queue at capacity must reject")
	assert.Equal(t, 2, rt.DiscoveredLen())

	got, ok := rt.PopDiscovered()
	require.True(t, ok)
	assert.Equal(t, "a", got, "queue must be FIFO")

	assert.True(t, rt.PushDiscovered("c", 2), "capacity frees up after pop")
}

func TestRuntimeHistoryReverseAndCompact(t *testing.T) {
	rt := newRuntime(&models.Account{Name: "alpha"})
	rt.RecordFollow("u1", "one")
	rt.RecordFollow("u2", "two")
	rt.RecordFollow("u3", "three")
	require.Equal(t, 3, rt.HistoryLen())
	require.Equal(t, 3, rt.FollowCount())

	rt.MarkReversed("u2")
	unreversed := rt.UnreversedHistory()
	require.Len(t, unreversed, 2)
	assert.Equal(t, "u1", unreversed[0].UID)
	assert.Equal(t, "u3", unreversed[1].UID)

	reversed := rt.CompactHistory()
	assert.Equal(t, 1, reversed)
	assert.Equal(t, 2, rt.HistoryLen())
}

func TestRuntimeLifecycle(t *testing.T) {
	rt := newRuntime(&models.Account{Name: "alpha"})
	assert.Equal(t, StateStopped, rt.State())

	_, cancel := context.WithCancel(context.Background())
	require.True(t, rt.start(cancel))
	assert.Equal(t, StateRunning, rt.State())
	assert.False(t, rt.start(cancel), "second start must be refused while running")

	rt.SetPaused(true)
	assert.Equal(t, StatePaused, rt.State())
	rt.SetPaused(false)

	rt.stop()
	rt.markStopped()
	assert.Equal(t, StateStopped, rt.State())

	_, cancel2 := context.WithCancel(context.Background())
	require.True(t, rt.start(cancel2), "stopped runtime must be restartable")
	assert.False(t, rt.IsPaused(), "restart must clear the stop-induced pause")
	cancel2()
	rt.markStopped()
}

func TestRuntimeMirrorsPersistedProgress(t *testing.T) {
	initial := 120
	rt := newRuntime(&models.Account{
		Name:             "alpha",
		InitialFollowers: initial,
		NetFollowBacks:   7,
	})
	assert.Equal(t, 120, rt.InitialFollowers())
	assert.Equal(t, 7, rt.NetFollowBacks())
}
