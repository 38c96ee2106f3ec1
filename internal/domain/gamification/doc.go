// Package gamification contains the core engine of the TutorLink gamification
// system: the per-student record (XP, streak, badges, counters), the level
// resolver, the streak update rules, and the badge catalog.
//
// Levels and titles are never stored. They are derived from XP on every read
// so the threshold table can change without a data migration.
//
// All day math uses UTC calendar days (see pkg/timeutil).
package gamification
