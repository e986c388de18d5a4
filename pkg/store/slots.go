package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

const slotColumns = `id, date, start_at, end_at, locked, subtask_id, source`

// ListSlots returns every stored slot for date in chronological order.
func (s *Store) ListSlots(ctx context.Context, date string) ([]model.Slot, error) {
	return s.querySlots(ctx, `SELECT `+slotColumns+` FROM slots WHERE date = ? ORDER BY start_at`, date)
}

// LockedSlots returns the user-locked slots for date.
func (s *Store) LockedSlots(ctx context.Context, date string) ([]model.Slot, error) {
	return s.querySlots(ctx, `SELECT `+slotColumns+` FROM slots WHERE date = ? AND locked = 1 ORDER BY start_at`, date)
}

// ListAssignedSlots returns slots carrying a subtask, across all dates.
func (s *Store) ListAssignedSlots(ctx context.Context) ([]model.Slot, error) {
	return s.querySlots(ctx, `SELECT `+slotColumns+` FROM slots WHERE subtask_id IS NOT NULL AND subtask_id != '' ORDER BY start_at`)
}

// ReplacePlannedSlots drops every unlocked slot of date and stores slots in
// their place, atomically. Locked slots are untouched.
func (s *Store) ReplacePlannedSlots(ctx context.Context, date string, slots []model.Slot) ([]model.Slot, error) {
	out := make([]model.Slot, len(slots))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE date = ? AND locked = 0`, date)
		if err != nil {
			return fmt.Errorf("failed to clear planned slots: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			s.log.Debug("Cleared planned slots", zap.String("date", date), zap.Int64("count", n))
		}
		for i, slot := range slots {
			slot.Date = date
			slot.Locked = false
			if err := insertSlot(ctx, tx, &slot); err != nil {
				return err
			}
			out[i] = slot
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InsertSlot stores a single slot, typically a user-locked one.
func (s *Store) InsertSlot(ctx context.Context, slot model.Slot) (model.Slot, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return insertSlot(ctx, tx, &slot)
	})
	return slot, err
}

func (s *Store) SetSlotLocked(ctx context.Context, id string, locked bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE slots SET locked = ? WHERE id = ?`, boolInt(locked), id)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	return expectOne(res, "slot", id)
}

func (s *Store) DeleteSlot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	return expectOne(res, "slot", id)
}

func insertSlot(ctx context.Context, tx *sql.Tx, slot *model.Slot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	var subtask sql.NullString
	if slot.SubtaskID != "" {
		subtask = sql.NullString{String: slot.SubtaskID, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO slots (`+slotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		slot.ID, slot.Date, formatTime(slot.Start), formatTime(slot.End), boolInt(slot.Locked), subtask, slot.Source)
	if err != nil {
		return fmt.Errorf("failed to insert slot: %w", err)
	}
	return nil
}

func (s *Store) querySlots(ctx context.Context, query string, args ...any) ([]model.Slot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		var slot model.Slot
		var start, end, subtask sql.NullString
		var locked int
		if err := rows.Scan(&slot.ID, &slot.Date, &start, &end, &locked, &subtask, &slot.Source); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if slot.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if slot.End, err = parseTime(end); err != nil {
			return nil, err
		}
		slot.Locked = locked != 0
		slot.SubtaskID = subtask.String
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
