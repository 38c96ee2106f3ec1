package gamification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		name      string
		xp        XP
		wantLevel int
		wantTitle string
	}{
		{"zero XP is level 1", 0, 1, "Newcomer"},
		{"below first threshold", 99, 1, "Newcomer"},
		{"exactly at threshold", 100, 2, "Learner"},
		{"one above threshold", 101, 2, "Learner"},
		{"mid table", 300, 3, "Dedicated Student"},
		{"exact crossing into level 4", 800, 4, "Scholar"},
		{"one below level 4", 799, 3, "Dedicated Student"},
		{"top threshold", 12000, 10, "Legend"},
		{"clamps above top threshold", 1000000, 10, "Legend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := CalculateLevel(tt.xp)
			assert.Equal(t, tt.wantLevel, info.Level)
			assert.Equal(t, tt.wantTitle, info.Title)
		})
	}
}

func TestCalculateLevel_Monotonic(t *testing.T) {
	prev := CalculateLevel(0).Level
	for xp := XP(1); xp <= 13000; xp++ {
		level := CalculateLevel(xp).Level
		require.GreaterOrEqual(t, level, prev, "level dropped at xp=%d", xp)
		prev = level
	}
}

func TestLevelTable_StrictlyIncreasing(t *testing.T) {
	for i := 1; i < len(levelTable); i++ {
		assert.Greater(t, levelTable[i].MinXP, levelTable[i-1].MinXP)
		assert.Equal(t, levelTable[i-1].Level+1, levelTable[i].Level)
	}
	assert.Equal(t, XP(0), levelTable[0].MinXP, "level 1 must start at 0")
	assert.Equal(t, MaxLevel, levelTable[len(levelTable)-1].Level)
}

func TestCalculateProgress(t *testing.T) {
	t.Run("halfway through level 2", func(t *testing.T) {
		p := CalculateProgress(200)
		assert.Equal(t, 2, p.Current.Level)
		assert.Equal(t, XP(100), p.CurrentThreshold)
		assert.Equal(t, XP(300), p.NextThreshold)
		assert.InDelta(t, 50.0, p.Percent, 0.001)
		assert.False(t, p.AtMax)
	})

	t.Run("at level floor", func(t *testing.T) {
		p := CalculateProgress(800)
		assert.Equal(t, 4, p.Current.Level)
		assert.InDelta(t, 0.0, p.Percent, 0.001)
	})

	t.Run("at max level", func(t *testing.T) {
		p := CalculateProgress(50000)
		assert.True(t, p.AtMax)
		assert.Equal(t, MaxLevel, p.Current.Level)
		assert.InDelta(t, 100.0, p.Percent, 0.001)
	})
}
