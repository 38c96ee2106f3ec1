package messaging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
	})
}

func TestInMemoryEventBus_PublishToSubscriber(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var received []shared.EventType
	err := bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error {
		received = append(received, e.EventType())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("s1", 50, 150, "quiz_completion")))
	require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("s1", 2, 2, 10, false)))

	// Only the subscribed type arrives.
	assert.Equal(t, []shared.EventType{shared.EventXPAwarded}, received)
}

func TestInMemoryEventBus_SubscribeAll(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var count int
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("s1", 1, 2, "Learner", 120)))
	require.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("s1", "first_login", "First Steps", "👋")))

	assert.Equal(t, 2, count)
}

func TestInMemoryEventBus_SyncModePreservesOrder(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var order []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		order = append(order, e.EventType())
		return nil
	}))

	// XP gain, then level-up, then badge: the dispatch contract.
	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("s1", 500, 800, "session_attended")))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("s1", 3, 4, "Scholar", 800)))
	require.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("s1", "level_5", "Honor Roll", "⭐")))

	assert.Equal(t, []shared.EventType{
		shared.EventXPAwarded,
		shared.EventLevelUp,
		shared.EventBadgeUnlocked,
	}, order)
}

func TestInMemoryEventBus_HandlerErrorDoesNotPropagate(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		return errors.New("subscriber exploded")
	}))

	assert.NoError(t, bus.Publish(shared.NewXPAwardedEvent("s1", 10, 10, "bonus")))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalHandlerExecs)
	assert.Equal(t, 0.0, snap.HandlerSuccessRate)
}

func TestInMemoryEventBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewXPAwardedEvent("s1", 10, 10, "bonus"))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventXPAwarded, func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryEventBus_AsyncModeCompletesBeforeClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
		EnableMetrics:  true,
	})

	var mu sync.Mutex
	var count int
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("s1", 10, 10, "bonus")))
	}

	// Close waits for pending handlers.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, count)
}
