package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/harrisonrobin/taskquest/pkg/colors"
	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/overdue"
	"github.com/harrisonrobin/taskquest/pkg/store"
)

type fixture struct {
	release model.Task
	a1, a2  model.Subtask
	album   model.Task
	b1      model.Subtask
}

// seed stores an urgent programming task with two subtasks and a relaxed
// music task with one.
func seed(t *testing.T, s *Service) fixture {
	t.Helper()
	var f fixture
	f.release = mustTask(t, s, NewTask{
		Title:      "Ship release",
		Category:   "programming",
		Priority:   5,
		Due:        day.Add(17 * time.Hour),
		ValueScore: 8,
	})
	f.a1 = mustSubtask(t, s, f.release.ID, "Changelog", 45)
	f.a2 = mustSubtask(t, s, f.release.ID, "Tag build", 45, "energy:low")
	f.album = mustTask(t, s, NewTask{Title: "Album", Category: "music", Priority: 2})
	f.b1 = mustSubtask(t, s, f.album.ID, "Mix drums", 50)
	return f
}

func subtaskIDs(slots []model.Slot) []string {
	var ids []string
	for _, s := range slots {
		ids = append(ids, s.SubtaskID)
	}
	return ids
}

func TestPlanDayKeepsLockedSlots(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	f := seed(t, s)

	reserved, err := s.ReserveSlot(ctx, day.Add(10*time.Hour), day.Add(10*time.Hour+50*time.Minute), f.b1.ID)
	require.NoError(t, err)
	assert.True(t, reserved.Locked)
	assert.Equal(t, model.SourceUser, reserved.Source)

	plan, report, err := s.PlanDay(ctx, day, PlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, SyncReport{}, report)
	assert.Equal(t, "2026-03-02", plan.Date)
	require.Len(t, plan.Locked, 1)
	assert.Empty(t, plan.Open)
	assert.Empty(t, plan.Replaced)

	// the locked 10:00 slot pushes the second block to 10:50
	require.Len(t, plan.Slots, 2)
	require.Len(t, plan.Assignments, 2)
	assert.Equal(t, []string{f.a1.ID, f.a2.ID}, subtaskIDs(plan.Slots))
	for i, slot := range plan.Slots {
		assert.Equal(t, plan.Assignments[i].SubtaskID, slot.SubtaskID)
		assert.NotEmpty(t, slot.ID)
		assert.False(t, slot.Locked)
	}
	assert.True(t, plan.Slots[1].Start.Equal(day.Add(10*time.Hour+50*time.Minute)))

	stored, err := s.Day(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []string{f.a1.ID, f.b1.ID, f.a2.ID}, subtaskIDs(stored))
	assert.Equal(t, reserved.ID, stored[1].ID)

	again, _, err := s.PlanDay(ctx, day, PlanOptions{})
	require.NoError(t, err)
	require.Len(t, again.Replaced, 2)
	assert.Equal(t, plan.Slots[0].ID, again.Replaced[0].ID)
	assert.Equal(t, plan.Slots[1].ID, again.Replaced[1].ID)

	stored, err = s.Day(ctx, day)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, reserved.ID, stored[1].ID)

	require.NoError(t, s.UnlockSlot(ctx, reserved.ID))
	_, _, err = s.PlanDay(ctx, day, PlanOptions{})
	require.NoError(t, err)

	stored, err = s.Day(ctx, day)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.ElementsMatch(t, []string{f.a1.ID, f.a2.ID, f.b1.ID}, subtaskIDs(stored))
	for _, slot := range stored {
		assert.NotEqual(t, reserved.ID, slot.ID)
		assert.False(t, slot.Locked)
	}

	require.NoError(t, s.LockSlot(ctx, stored[0].ID))
	locked, err := s.Day(ctx, day)
	require.NoError(t, err)
	assert.True(t, locked[0].Locked)
}

func TestPlanDaySkipsUnschedulableWork(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	f := seed(t, s)

	require.NoError(t, s.SetSubtaskStatus(ctx, f.a1.ID, model.SubtaskDone))
	require.NoError(t, s.SetSubtaskStatus(ctx, f.a2.ID, model.SubtaskBlocked))
	_, err := s.Fail(ctx, f.album.ID, "shelved")
	require.NoError(t, err)

	plan, _, err := s.PlanDay(ctx, day, PlanOptions{})
	require.NoError(t, err)
	assert.Empty(t, plan.Assignments)
	assert.Empty(t, plan.Slots)
	assert.Len(t, plan.Open, 3)

	stored, err := s.Day(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestReserveSlotValidation(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	f := seed(t, s)

	_, err := s.ReserveSlot(ctx, day.Add(10*time.Hour), day.Add(10*time.Hour), "")
	assert.Error(t, err)

	_, err = s.ReserveSlot(ctx, day.Add(10*time.Hour), day.Add(11*time.Hour), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.ReserveSlot(ctx, day.Add(10*time.Hour), day.Add(11*time.Hour), f.a1.ID)
	require.NoError(t, err)
	_, err = s.ReserveSlot(ctx, day.Add(10*time.Hour+30*time.Minute), day.Add(11*time.Hour+30*time.Minute), "")
	assert.ErrorIs(t, err, ErrSlotConflict)

	// touching intervals do not overlap
	_, err = s.ReserveSlot(ctx, day.Add(11*time.Hour), day.Add(11*time.Hour+30*time.Minute), "")
	assert.NoError(t, err)

	assert.ErrorIs(t, s.LockSlot(ctx, "missing"), store.ErrNotFound)
}

func TestPlanDayContinuesPinnedCategory(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	prog := mustTask(t, s, NewTask{Title: "Refactor", Category: "programming", Priority: 3, ValueScore: 31})
	p1 := mustSubtask(t, s, prog.ID, "Extract parser", 30)
	music := mustTask(t, s, NewTask{Title: "Album", Category: "music", Priority: 3, ValueScore: 30})
	rehearse := mustSubtask(t, s, music.ID, "Rehearse", 50)
	m1 := mustSubtask(t, s, music.ID, "Mix drums", 30)

	// the pinned subtask is already done, so only the slot carries its category
	require.NoError(t, s.SetSubtaskStatus(ctx, rehearse.ID, model.SubtaskDone))
	_, err := s.ReserveSlot(ctx, day.Add(9*time.Hour), day.Add(9*time.Hour+50*time.Minute), rehearse.ID)
	require.NoError(t, err)

	plan, _, err := s.PlanDay(ctx, day, PlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{m1.ID, p1.ID}, subtaskIDs(plan.Slots))
}

func TestReserveSlotConcurrentOverlap(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	var (
		mu        sync.Mutex
		reserved  int
		conflicts int
		g         errgroup.Group
	)
	for i := range 8 {
		start := day.Add(10*time.Hour + time.Duration(i)*time.Minute)
		g.Go(func() error {
			_, err := s.ReserveSlot(ctx, start, start.Add(30*time.Minute), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				reserved++
			case errors.Is(err, ErrSlotConflict):
				conflicts++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, reserved)
	assert.Equal(t, 7, conflicts)

	stored, err := s.Day(ctx, day)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

// gatedCalendar holds BusySlots until released and records whether the
// planning context was cancelled by then.
type gatedCalendar struct {
	*fakeCalendar
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	ctxErr  error
}

func (g *gatedCalendar) BusySlots(ctx context.Context, date string, start, end time.Time) ([]model.Slot, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	g.mu.Lock()
	if err := ctx.Err(); err != nil {
		g.ctxErr = err
	}
	g.mu.Unlock()
	return g.fakeCalendar.BusySlots(ctx, date, start, end)
}

func TestPlanDaySurvivesCancelledCaller(t *testing.T) {
	cal := &gatedCalendar{
		fakeCalendar: newFakeCalendar(),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	s, _ := setup(t, WithCalendar(cal))
	seed(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, _, err := s.PlanDay(ctx, day, PlanOptions{})
		errc <- err
	}()
	<-cal.entered
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(cal.release)
	plan, _, err := s.PlanDay(context.Background(), day, PlanOptions{})
	require.NoError(t, err)
	assert.Len(t, plan.Slots, 3)

	cal.mu.Lock()
	defer cal.mu.Unlock()
	assert.NoError(t, cal.ctxErr)
}

func TestPlanDayConcurrent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	st := openStore(t)
	defer st.Close()
	s, _ := newService(t, st)
	ctx := context.Background()
	seed(t, s)

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			_, _, err := s.PlanDay(ctx, day, PlanOptions{})
			return err
		})
	}
	require.NoError(t, g.Wait())

	stored, err := s.Day(ctx, day)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	seen := make(map[string]bool)
	for i, slot := range stored {
		assert.False(t, seen[slot.SubtaskID], "subtask %s booked twice", slot.SubtaskID)
		seen[slot.SubtaskID] = true
		if i > 0 {
			assert.False(t, stored[i-1].Overlaps(slot))
		}
	}
}

func TestPlanDaySyncAndSweep(t *testing.T) {
	dir := t.TempDir()
	cache, err := colors.NewColorCache(dir)
	require.NoError(t, err)
	table, err := overdue.NewTable(dir)
	require.NoError(t, err)

	cal := newFakeCalendar()
	cal.busy = []model.Slot{{
		ID:     "gcal:standup",
		Date:   "2026-03-02",
		Start:  day.Add(9 * time.Hour),
		End:    day.Add(9*time.Hour + 50*time.Minute),
		Locked: true,
		Source: model.SourceCalendar,
	}}
	s, clk := setup(t, WithCalendar(cal), WithColors(cache), WithOverdueTable(table))
	ctx := context.Background()
	f := seed(t, s)

	plan, report, err := s.PlanDay(ctx, day, PlanOptions{Sync: true})
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Published: 2}, report)
	require.Len(t, plan.Locked, 1)
	assert.Equal(t, []string{f.a1.ID, f.a2.ID}, subtaskIDs(plan.Slots))

	ev, ok := cal.event(plan.Slots[0].ID)
	require.True(t, ok)
	assert.Equal(t, "Ship release: Changelog", ev.Summary)
	assert.Equal(t, "9", ev.ColorId)
	assert.Len(t, table.Entries, 2)

	// calendar busy time is respected but never stored
	stored, err := s.Day(ctx, day)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	again, report, err := s.PlanDay(ctx, day, PlanOptions{Sync: true})
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Published: 2, Removed: 2}, report)
	assert.Equal(t, 2, cal.count())
	_, ok = cal.event(plan.Slots[0].ID)
	assert.False(t, ok)
	assert.Len(t, table.Entries, 2)

	clk.Set(day.Add(11*time.Hour + 45*time.Minute))
	require.NoError(t, s.SetSubtaskStatus(ctx, f.a1.ID, model.SubtaskDone))

	swept, err := s.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, swept.Missed, 1)
	assert.Equal(t, f.a2.ID, swept.Missed[0].SubtaskID)
	assert.Equal(t, 1, swept.Flagged)

	missed, ok := cal.event(again.Slots[1].ID)
	require.True(t, ok)
	assert.Equal(t, "! Ship release: Tag build", missed.Summary)
	finished, ok := cal.event(again.Slots[0].ID)
	require.True(t, ok)
	assert.False(t, strings.HasPrefix(finished.Summary, "!"))

	reloaded, err := overdue.NewTable(dir)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Entries)

	swept, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Len(t, swept.Missed, 1)
	assert.Zero(t, swept.Flagged)
}

func TestSyncRequiresCalendar(t *testing.T) {
	s, _ := setup(t)
	seed(t, s)

	_, _, err := s.PlanDay(context.Background(), day, PlanOptions{Sync: true})
	assert.ErrorIs(t, err, ErrNoCalendar)

	swept, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, swept.Missed)
}
