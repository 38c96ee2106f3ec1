package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/gamification"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeRepo struct {
	mu      sync.Mutex
	records map[gamification.StudentID]*gamification.Record
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[gamification.StudentID]*gamification.Record)}
}

func (r *fakeRepo) Get(_ context.Context, id gamification.StudentID) (*gamification.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, shared.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (r *fakeRepo) Create(_ context.Context, rec *gamification.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.StudentID]; ok {
		return shared.ErrRecordAlreadyExists
	}
	r.records[rec.StudentID] = rec.Clone()
	return nil
}

func (r *fakeRepo) Update(_ context.Context, id gamification.StudentID, fn func(*gamification.Record) error) (*gamification.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, shared.ErrRecordNotFound
	}
	work := rec.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	r.records[id] = work
	return work.Clone(), nil
}

func (r *fakeRepo) Leaderboard(_ context.Context, limit int) ([]*gamification.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*gamification.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if gamification.CompareForLeaderboard(out[j], out[i]) < 0 {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) LastActiveOn(_ context.Context, day time.Time) ([]*gamification.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*gamification.Record
	for _, rec := range r.records {
		if rec.LastActiveDate.Equal(day) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (r *fakeRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records), nil
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []gamification.HistoryEntry
}

func (h *fakeHistory) AppendHistory(_ context.Context, entry gamification.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

func (h *fakeHistory) History(_ context.Context, id gamification.StudentID, limit int) ([]gamification.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []gamification.HistoryEntry
	for i := len(h.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if h.entries[i].StudentID == id {
			out = append(out, h.entries[i])
		}
	}
	return out, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordingBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) types() []shared.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.EventType, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventType()
	}
	return out
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func newLoginHandler(t *testing.T) (*RecordLoginHandler, *fakeRepo, *recordingBus, *countingInvalidator) {
	t.Helper()
	repo := newFakeRepo()
	bus := &recordingBus{}
	inv := &countingInvalidator{}
	return NewRecordLoginHandler(repo, &fakeHistory{}, bus, inv, nil), repo, bus, inv
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestRecordLogin_FirstLoginCreatesRecord(t *testing.T) {
	handler, repo, bus, inv := newLoginHandler(t)

	res, err := handler.Handle(context.Background(), RecordLoginCommand{
		StudentID: "stu-1",
		At:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.True(t, res.Counted())
	assert.True(t, res.Login.FirstLogin)
	assert.Equal(t, 1, res.Login.Streak)
	assert.Equal(t, gamification.DailyLoginXP, res.Login.XPAwarded)

	stored, err := repo.Get(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, gamification.DailyLoginXP, stored.XP)
	assert.Equal(t, 1, stored.TotalLogins)

	assert.Equal(t, []shared.EventType{
		shared.EventRecordCreated,
		shared.EventStreakUpdated,
		shared.EventXPAwarded,
		shared.EventBadgeUnlocked, // first_login
	}, bus.types())
	assert.Equal(t, 1, inv.calls)
}

func TestRecordLogin_SameDayRepeatIsNoOp(t *testing.T) {
	handler, repo, bus, inv := newLoginHandler(t)
	morning := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)

	_, err := handler.Handle(context.Background(), RecordLoginCommand{StudentID: "stu-1", At: morning})
	require.NoError(t, err)

	eventsAfterFirst := len(bus.types())
	callsAfterFirst := inv.calls

	res, err := handler.Handle(context.Background(), RecordLoginCommand{StudentID: "stu-1", At: evening})
	require.NoError(t, err)

	assert.False(t, res.Counted())
	assert.Equal(t, 1, res.Login.Streak)
	assert.Len(t, bus.types(), eventsAfterFirst, "repeat login must not publish events")
	assert.Equal(t, callsAfterFirst, inv.calls, "repeat login must not invalidate the cache")

	stored, err := repo.Get(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalLogins)
}

func TestRecordLogin_NextDayExtendsStreak(t *testing.T) {
	handler, _, _, _ := newLoginHandler(t)

	_, err := handler.Handle(context.Background(), RecordLoginCommand{
		StudentID: "stu-1",
		At:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	res, err := handler.Handle(context.Background(), RecordLoginCommand{
		StudentID: "stu-1",
		At:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, 2, res.Login.Streak)
	assert.Equal(t, 2, res.Login.BestStreak)
}

func TestRecordLogin_GapPublishesStreakBrokenFirst(t *testing.T) {
	handler, _, bus, _ := newLoginHandler(t)

	_, err := handler.Handle(context.Background(), RecordLoginCommand{
		StudentID: "stu-1",
		At:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = handler.Handle(context.Background(), RecordLoginCommand{
		StudentID: "stu-1",
		At:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	before := len(bus.events)

	res, err := handler.Handle(context.Background(), RecordLoginCommand{
		StudentID: "stu-1",
		At:        time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.True(t, res.Login.StreakBroken)
	assert.Equal(t, 2, res.Login.PreviousStreak)
	assert.Equal(t, 4, res.Login.DaysMissed)
	assert.Equal(t, 1, res.Login.Streak)
	assert.Equal(t, 2, res.Login.BestStreak)

	types := bus.types()[before:]
	require.NotEmpty(t, types)
	assert.Equal(t, shared.EventStreakBroken, types[0])
	assert.Equal(t, shared.EventStreakUpdated, types[1])
}

func TestRecordLogin_LosingCreateRaceIsTolerated(t *testing.T) {
	handler, repo, _, _ := newLoginHandler(t)

	// Another writer creates the record between Get and Create.
	rec, err := gamification.NewRecord("stu-1", time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), rec))

	res, err := handler.Handle(context.Background(), RecordLoginCommand{
		StudentID: "stu-1",
		At:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 1, res.Login.Streak)
}

func TestRecordLogin_InvalidStudentID(t *testing.T) {
	handler, _, _, _ := newLoginHandler(t)

	_, err := handler.Handle(context.Background(), RecordLoginCommand{StudentID: "  "})
	assert.ErrorIs(t, err, shared.ErrInvalidStudentID)
}
