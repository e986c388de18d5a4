package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskquest/pkg/lifecycle"
	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/scheduler"
	"github.com/harrisonrobin/taskquest/pkg/store"
	"github.com/harrisonrobin/taskquest/pkg/util"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

// three 50 minute slots: 09:00, 10:00, 11:00
var testWindow = scheduler.Window{
	DayStart: 9 * time.Hour,
	DayEnd:   12 * time.Hour,
	Sprint:   50 * time.Minute,
	Break:    10 * time.Minute,
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *clock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "data", "taskquest.db"), zap.NewNop())
	require.NoError(t, err)
	return st
}

func newService(t *testing.T, st *store.Store, opts ...Option) (*Service, *clock) {
	t.Helper()
	clk := &clock{now: day.Add(9 * time.Hour)}
	opts = append([]Option{WithTracker(lifecycle.NewTracker(lifecycle.WithClock(clk.Now)))}, opts...)
	return New(st, testWindow, zap.NewNop(), opts...), clk
}

func setup(t *testing.T, opts ...Option) (*Service, *clock) {
	t.Helper()
	st := openStore(t)
	t.Cleanup(func() { st.Close() })
	return newService(t, st, opts...)
}

// fakeCalendar keeps published events in memory, keyed by slot id.
type fakeCalendar struct {
	mu     sync.Mutex
	events map[string]*calendar.Event
	busy   []model.Slot
	nextID int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: make(map[string]*calendar.Event)}
}

func (f *fakeCalendar) PublishSlot(_ context.Context, se util.SlotEvent, now time.Time) (*calendar.Event, error) {
	ev, err := util.ConvertSlotToEvent(se, now)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.events[se.SlotID]; ok {
		ev.Id = existing.Id
	} else {
		f.nextID++
		ev.Id = fmt.Sprintf("ev%d", f.nextID)
	}
	f.events[se.SlotID] = ev
	return ev, nil
}

func (f *fakeCalendar) UnpublishSlot(_ context.Context, slotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, slotID)
	return nil
}

func (f *fakeCalendar) PatchEvent(_ context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.Id == eventID {
			ev.Summary = patch.Summary
			return ev, nil
		}
	}
	return nil, fmt.Errorf("event %s not found", eventID)
}

func (f *fakeCalendar) BusySlots(_ context.Context, date string, _, _ time.Time) ([]model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Slot
	for _, b := range f.busy {
		if b.Date == date {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeCalendar) event(slotID string) (*calendar.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[slotID]
	return ev, ok
}

func (f *fakeCalendar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func mustTask(t *testing.T, s *Service, in NewTask) model.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), in)
	require.NoError(t, err)
	return task
}

func mustSubtask(t *testing.T, s *Service, taskID, title string, minutes int, tags ...string) model.Subtask {
	t.Helper()
	st, err := s.AddSubtask(context.Background(), NewSubtask{TaskID: taskID, Title: title, EstimatedMinutes: minutes, Tags: tags})
	require.NoError(t, err)
	return st
}
