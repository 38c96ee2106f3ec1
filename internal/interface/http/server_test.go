package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d", i+1)
	}
	assert.False(t, rl.Allow("10.0.0.1"))

	// Other clients are counted separately.
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimiter_CloseStopsEviction(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)

	rl.Close()
	rl.Close()

	select {
	case <-rl.stop:
	case <-time.After(time.Second):
		t.Fatal("stop channel not closed")
	}

	// The limiter itself keeps working after Close.
	assert.True(t, rl.Allow("10.0.0.1"))
}
