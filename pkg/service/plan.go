package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/scheduler"
	"github.com/harrisonrobin/taskquest/pkg/store"
)

// ErrSlotConflict is returned when a reserved slot overlaps an existing locked one.
var ErrSlotConflict = errors.New("slot overlaps a locked slot")

// DayPlan is the stored outcome of planning one date.
type DayPlan struct {
	Date string
	// Locked holds the user-locked and calendar busy slots planning respected.
	Locked []model.Slot
	// Slots are the stored assigned slots, aligned index by index with Assignments.
	Slots       []model.Slot
	Assignments []model.Assignment
	// Open are generated slots that received no candidate; they are not stored.
	Open []model.Slot
	// Replaced are the unlocked slots of the previous run that were dropped.
	Replaced []model.Slot
}

type PlanOptions struct {
	// Sync publishes the plan to the calendar after it is stored.
	Sync bool
}

// PlanDay regenerates the unlocked slots of date. Concurrent calls for the
// same date share a single planning run. The run is detached from the caller
// that started it: a cancelled caller stops waiting but the others still get
// the result.
func (s *Service) PlanDay(ctx context.Context, date time.Time, opts PlanOptions) (DayPlan, SyncReport, error) {
	key := date.Format(model.DateLayout)
	run := context.WithoutCancel(ctx)
	ch := s.plans.DoChan(key, func() (any, error) {
		return s.planDay(run, scheduler.Midnight(date))
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return DayPlan{}, SyncReport{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return DayPlan{}, SyncReport{}, res.Err
	}
	plan := res.Val.(DayPlan)
	if res.Shared {
		s.log.Debug("Joined in-flight planning run", zap.String("date", key))
	}

	if !opts.Sync {
		return plan, SyncReport{}, nil
	}
	report, err := s.Publish(ctx, plan)
	return plan, report, err
}

func (s *Service) planDay(ctx context.Context, day time.Time) (DayPlan, error) {
	date := day.Format(model.DateLayout)

	var busy []model.Slot
	if s.cal != nil {
		start, end := s.window.Bounds(day)
		var err error
		busy, err = s.cal.BusySlots(ctx, date, start, end)
		if err != nil {
			s.log.Warn("Could not load calendar busy time, planning without it", zap.Error(err))
			busy = nil
		}
	}

	s.slots.Lock()
	defer s.slots.Unlock()

	locked, err := s.store.LockedSlots(ctx, date)
	if err != nil {
		return DayPlan{}, err
	}
	pinned, err := s.pinnedCategories(ctx, locked)
	if err != nil {
		return DayPlan{}, err
	}
	locked = append(locked, busy...)

	candidates, err := s.candidates(ctx)
	if err != nil {
		return DayPlan{}, err
	}

	plan, err := s.sched.Plan(scheduler.Request{
		Date:       day,
		Window:     s.window,
		Locked:     locked,
		Candidates: candidates,
		Pinned:     pinned,
	})
	if err != nil {
		return DayPlan{}, err
	}

	previous, err := s.store.ListSlots(ctx, date)
	if err != nil {
		return DayPlan{}, err
	}
	var replaced []model.Slot
	for _, p := range previous {
		if !p.Locked {
			replaced = append(replaced, p)
		}
	}

	var assigned []model.Slot
	for _, slot := range plan.Slots {
		if slot.SubtaskID != "" {
			assigned = append(assigned, slot)
		}
	}
	stored, err := s.store.ReplacePlannedSlots(ctx, date, assigned)
	if err != nil {
		return DayPlan{}, err
	}

	s.log.Info("Day planned",
		zap.String("date", date),
		zap.Int("candidates", len(candidates)),
		zap.Int("assigned", len(stored)),
		zap.Int("open", len(plan.Open())),
		zap.Int("locked", len(locked)))
	return DayPlan{
		Date:        date,
		Locked:      locked,
		Slots:       stored,
		Assignments: plan.Assignments,
		Open:        plan.Open(),
		Replaced:    replaced,
	}, nil
}

// candidates joins schedulable subtasks with their parent task's weight, in
// task creation order and subtask sequence order.
func (s *Service) candidates(ctx context.Context) ([]scheduler.Candidate, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	subtasks, err := s.store.ListSubtasks(ctx, "")
	if err != nil {
		return nil, err
	}
	byTask := make(map[string][]model.Subtask)
	for _, st := range subtasks {
		byTask[st.TaskID] = append(byTask[st.TaskID], st)
	}

	var out []scheduler.Candidate
	for _, t := range tasks {
		if t.Terminal() {
			continue
		}
		for _, st := range byTask[t.ID] {
			if !st.Schedulable() {
				continue
			}
			out = append(out, scheduler.Candidate{
				SubtaskID:        st.ID,
				TaskID:           t.ID,
				Title:            st.Title,
				Category:         t.Category,
				Priority:         t.Priority,
				Due:              t.Due,
				ValueScore:       t.ValueScore,
				EstimatedMinutes: st.EstimatedMinutes,
				Energy:           energy(st.Tags),
			})
		}
	}
	return out, nil
}

// pinnedCategories resolves the category of every subtask pinned in a locked
// slot. Pins whose subtask no longer exists are ignored.
func (s *Service) pinnedCategories(ctx context.Context, locked []model.Slot) (map[string]model.Category, error) {
	out := make(map[string]model.Category)
	for _, l := range locked {
		if l.SubtaskID == "" {
			continue
		}
		if _, ok := out[l.SubtaskID]; ok {
			continue
		}
		st, err := s.store.GetSubtask(ctx, l.SubtaskID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		t, err := s.store.GetTask(ctx, st.TaskID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[l.SubtaskID] = t.Category
	}
	return out, nil
}

// Day returns the stored slots of date without planning.
func (s *Service) Day(ctx context.Context, date time.Time) ([]model.Slot, error) {
	return s.store.ListSlots(ctx, date.Format(model.DateLayout))
}

// ReserveSlot stores a user-locked slot, optionally pinned to a subtask, that
// later planning runs will route around.
func (s *Service) ReserveSlot(ctx context.Context, start, end time.Time, subtaskID string) (model.Slot, error) {
	if !end.After(start) {
		return model.Slot{}, fmt.Errorf("slot end %s is not after start %s", end.Format("15:04"), start.Format("15:04"))
	}
	if subtaskID != "" {
		if _, err := s.store.GetSubtask(ctx, subtaskID); err != nil {
			return model.Slot{}, err
		}
	}

	slot := model.Slot{
		Date:      start.Format(model.DateLayout),
		Start:     start,
		End:       end,
		Locked:    true,
		SubtaskID: subtaskID,
		Source:    model.SourceUser,
	}
	s.slots.Lock()
	defer s.slots.Unlock()

	existing, err := s.store.LockedSlots(ctx, slot.Date)
	if err != nil {
		return model.Slot{}, err
	}
	for _, l := range existing {
		if l.Overlaps(slot) {
			return model.Slot{}, fmt.Errorf("%w: %s-%s", ErrSlotConflict, l.Start.Format("15:04"), l.End.Format("15:04"))
		}
	}

	slot, err = s.store.InsertSlot(ctx, slot)
	if err != nil {
		return model.Slot{}, err
	}
	s.log.Info("Slot reserved", zap.String("id", slot.ID), zap.String("date", slot.Date))
	return slot, nil
}

// LockSlot protects a stored slot from the next planning run.
func (s *Service) LockSlot(ctx context.Context, id string) error {
	s.slots.Lock()
	defer s.slots.Unlock()
	return s.store.SetSlotLocked(ctx, id, true)
}

// UnlockSlot hands a slot back to the planner; the next run replaces it.
func (s *Service) UnlockSlot(ctx context.Context, id string) error {
	s.slots.Lock()
	defer s.slots.Unlock()
	return s.store.SetSlotLocked(ctx, id, false)
}
