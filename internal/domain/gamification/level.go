package gamification

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// LevelInfo is the derived level of a student. It is computed from XP and
// never persisted.
type LevelInfo struct {
	// Level is the numeric level (1..MaxLevel).
	Level int

	// Title is the display title for the level.
	Title string
}

// levelThreshold is one row of the static level table.
type levelThreshold struct {
	Level int
	Title string
	MinXP XP
}

// levelTable maps XP thresholds to levels, ordered by ascending MinXP.
// Level 1 starts at 0 so every valid XP value resolves to a level.
var levelTable = []levelThreshold{
	{1, "Newcomer", 0},
	{2, "Learner", 100},
	{3, "Dedicated Student", 300},
	{4, "Scholar", 800},
	{5, "Honor Student", 1500},
	{6, "Knowledge Seeker", 2500},
	{7, "Rising Star", 4000},
	{8, "Academic Ace", 6000},
	{9, "Master Learner", 8500},
	{10, "Legend", 12000},
}

// MaxLevel is the highest reachable level. XP beyond its threshold keeps the
// student at MaxLevel.
const MaxLevel = 10

// CalculateLevel resolves XP into a level and title. It is total: any
// non-negative XP maps to exactly one level, and XP above the top threshold
// clamps to MaxLevel.
func CalculateLevel(xp XP) LevelInfo {
	for i := len(levelTable) - 1; i >= 0; i-- {
		if xp >= levelTable[i].MinXP {
			return LevelInfo{Level: levelTable[i].Level, Title: levelTable[i].Title}
		}
	}
	// Unreachable for valid XP: level 1 starts at 0.
	return LevelInfo{Level: levelTable[0].Level, Title: levelTable[0].Title}
}

// LevelThreshold returns the minimum XP for the given level.
// Returns false for levels outside the table.
func LevelThreshold(level int) (XP, bool) {
	for _, row := range levelTable {
		if row.Level == level {
			return row.MinXP, true
		}
	}
	return 0, false
}

// LevelProgress describes how far a student is into their current level.
type LevelProgress struct {
	// Current is the resolved level.
	Current LevelInfo

	// CurrentThreshold is the XP floor of the current level.
	CurrentThreshold XP

	// NextThreshold is the XP floor of the next level.
	// Zero when AtMax is true.
	NextThreshold XP

	// Percent is progress from CurrentThreshold to NextThreshold (0..100).
	// 100 when AtMax is true.
	Percent float64

	// AtMax reports whether the student is at the top level.
	AtMax bool
}

// CalculateProgress resolves XP into level progress for dashboards.
func CalculateProgress(xp XP) LevelProgress {
	info := CalculateLevel(xp)
	current, _ := LevelThreshold(info.Level)

	if info.Level >= MaxLevel {
		return LevelProgress{
			Current:          info,
			CurrentThreshold: current,
			Percent:          100,
			AtMax:            true,
		}
	}

	next, _ := LevelThreshold(info.Level + 1)
	span := next - current
	percent := float64(xp-current) / float64(span) * 100

	return LevelProgress{
		Current:          info,
		CurrentThreshold: current,
		NextThreshold:    next,
		Percent:          percent,
	}
}
