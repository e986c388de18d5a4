package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/overdue"
	"github.com/harrisonrobin/taskquest/pkg/util"
)

type SyncReport struct {
	Published int
	Removed   int
	Failed    int
}

// Publish mirrors a stored plan into the calendar: events of replaced slots
// are removed and every assigned slot is created or patched in place.
func (s *Service) Publish(ctx context.Context, plan DayPlan) (SyncReport, error) {
	if s.cal == nil {
		return SyncReport{}, ErrNoCalendar
	}
	s.publish.Lock()
	defer s.publish.Unlock()
	defer s.flush()

	var report SyncReport
	for _, slot := range plan.Replaced {
		if err := s.cal.UnpublishSlot(ctx, slot.ID); err != nil {
			s.log.Warn("Failed to remove replaced slot", zap.String("slot", slot.ID), zap.Error(err))
			report.Failed++
			continue
		}
		if s.pending != nil {
			s.pending.Remove(slot.ID)
		}
		report.Removed++
	}

	tasks := make(map[string]model.Task)
	for i, slot := range plan.Slots {
		a := plan.Assignments[i]
		st, err := s.store.GetSubtask(ctx, slot.SubtaskID)
		if err != nil {
			return report, err
		}
		t, ok := tasks[st.TaskID]
		if !ok {
			if t, err = s.store.GetTask(ctx, st.TaskID); err != nil {
				return report, err
			}
			tasks[st.TaskID] = t
		}

		se := util.SlotEvent{
			SlotID:     slot.ID,
			Assignment: a,
			TaskTitle:  t.Title,
			Status:     st.Status,
			Tags:       st.Tags,
		}
		if s.colors != nil {
			se.ColorID = s.colors.CategoryColorID(a.Category)
		}

		ev, err := s.cal.PublishSlot(ctx, se, s.Now())
		if err != nil {
			s.log.Warn("Failed to publish slot", zap.String("slot", slot.ID), zap.String("title", se.Title()), zap.Error(err))
			report.Failed++
			continue
		}
		report.Published++

		if s.pending == nil {
			continue
		}
		if st.Status == model.SubtaskDone {
			s.pending.Remove(slot.ID)
			continue
		}
		s.pending.Update(overdue.Entry{
			SlotID:    slot.ID,
			SubtaskID: st.ID,
			EventID:   ev.Id,
			Summary:   se.Title(),
			End:       a.End,
		})
	}

	s.log.Info("Plan published",
		zap.String("date", plan.Date),
		zap.Int("published", report.Published),
		zap.Int("removed", report.Removed),
		zap.Int("failed", report.Failed))
	if report.Failed > 0 {
		return report, fmt.Errorf("%d calendar updates failed", report.Failed)
	}
	return report, nil
}

type SweepReport struct {
	// Missed are assigned slots that ended before their subtask was done.
	Missed []model.Slot
	// Flagged counts calendar events marked as missed during this sweep.
	Flagged int
}

// Sweep reports missed slots and, with a calendar, prefixes their events.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	now := s.Now()
	subtasks, err := s.store.ListSubtasks(ctx, "")
	if err != nil {
		return SweepReport{}, err
	}
	status := make(map[string]model.SubtaskStatus, len(subtasks))
	for _, st := range subtasks {
		status[st.ID] = st.Status
	}

	slots, err := s.store.ListAssignedSlots(ctx)
	if err != nil {
		return SweepReport{}, err
	}
	var report SweepReport
	for _, slot := range slots {
		st, ok := status[slot.SubtaskID]
		if ok && st != model.SubtaskDone && slot.End.Before(now) {
			report.Missed = append(report.Missed, slot)
		}
	}

	if s.cal == nil || s.pending == nil {
		return report, nil
	}
	s.publish.Lock()
	defer s.publish.Unlock()
	defer s.flush()

	for _, e := range s.pending.Sweep(now) {
		if status[e.SubtaskID] == model.SubtaskDone {
			continue
		}
		patch := &calendar.Event{Summary: util.PrefixOverdue + " " + e.Summary}
		if _, err := s.cal.PatchEvent(ctx, e.EventID, patch); err != nil {
			s.log.Warn("Failed to flag missed slot", zap.String("slot", e.SlotID), zap.Error(err))
			// keep it for the next sweep
			s.pending.Update(e)
			continue
		}
		report.Flagged++
	}
	s.log.Info("Sweep finished", zap.Int("missed", len(report.Missed)), zap.Int("flagged", report.Flagged))
	return report, nil
}
