package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

const taskColumns = `id, title, category, difficulty, priority, estimated_minutes, due_at, value_score,
	created_at, state, started_at, resumed_at, active_ns, actual_minutes, scoring`

// CreateTask inserts a new task and returns it with its ID and creation time set.
func (s *Store) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.State == "" {
		t.State = model.StateCreated
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertTask(ctx, tx, t); err != nil {
			return err
		}
		return appendRecords(ctx, tx, t.ID, 0, t.Records)
	})
	if err != nil {
		return model.Task{}, err
	}
	s.log.Debug("Task created", zap.String("id", t.ID), zap.String("title", t.Title))
	return t, nil
}

// SaveTask writes the task row and appends lifecycle records that are not yet
// stored. Stored records are never rewritten.
func (s *Store) SaveTask(ctx context.Context, t model.Task) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return saveTask(ctx, tx, t)
	})
}

// SaveTaskWithProfile saves a task and the profile in one transaction, so a
// completion and its award land together.
func (s *Store) SaveTaskWithProfile(ctx context.Context, t model.Task, p model.Profile) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveTask(ctx, tx, t); err != nil {
			return err
		}
		return saveProfile(ctx, tx, p)
	})
}

func saveTask(ctx context.Context, tx *sql.Tx, t model.Task) error {
	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM lifecycle_records WHERE task_id = ?`, t.ID).Scan(&stored); err != nil {
		return fmt.Errorf("failed to count lifecycle records: %w", err)
	}
	if stored > len(t.Records) {
		return fmt.Errorf("task %s has %d stored records but snapshot carries %d", t.ID, stored, len(t.Records))
	}
	if err := upsertTask(ctx, tx, t); err != nil {
		return err
	}
	return appendRecords(ctx, tx, t.ID, stored, t.Records[stored:])
}

func upsertTask(ctx context.Context, tx *sql.Tx, t model.Task) error {
	var scoring sql.NullString
	if t.Scoring != nil {
		b, err := json.Marshal(t.Scoring)
		if err != nil {
			return fmt.Errorf("failed to encode scoring inputs: %w", err)
		}
		scoring = sql.NullString{String: string(b), Valid: true}
	}
	var actual sql.NullInt64
	if t.ActualMinutes != nil {
		actual = sql.NullInt64{Int64: int64(*t.ActualMinutes), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			difficulty = excluded.difficulty,
			priority = excluded.priority,
			estimated_minutes = excluded.estimated_minutes,
			due_at = excluded.due_at,
			value_score = excluded.value_score,
			state = excluded.state,
			started_at = excluded.started_at,
			resumed_at = excluded.resumed_at,
			active_ns = excluded.active_ns,
			actual_minutes = excluded.actual_minutes,
			scoring = excluded.scoring`,
		t.ID, t.Title, string(t.Category), string(t.Difficulty), t.Priority, t.EstimatedMinutes,
		formatTime(t.Due), t.ValueScore, formatTime(t.CreatedAt), string(t.State),
		formatTime(t.StartedAt), formatTime(t.ResumedAt), int64(t.ActiveTime), actual, scoring,
	)
	if err != nil {
		return fmt.Errorf("failed to write task %s: %w", t.ID, err)
	}
	return nil
}

func appendRecords(ctx context.Context, tx *sql.Tx, taskID string, offset int, records []model.LifecycleRecord) error {
	for i, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode record metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lifecycle_records (task_id, seq, from_state, to_state, at, metadata)
			VALUES (?, ?, ?, ?, ?, ?)`,
			taskID, offset+i, string(r.From), string(r.To), formatTime(r.At), string(meta))
		if err != nil {
			return fmt.Errorf("failed to append lifecycle record: %w", err)
		}
	}
	return nil
}

// GetTask loads a task with its full lifecycle log.
func (s *Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Task{}, err
	}
	if t.Records, err = s.records(ctx, id); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// ListTasks returns all tasks ordered by creation time, without their logs.
func (s *Store) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) records(ctx context.Context, taskID string) ([]model.LifecycleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_state, to_state, at, metadata FROM lifecycle_records
		WHERE task_id = ? ORDER BY seq`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lifecycle records: %w", err)
	}
	defer rows.Close()

	var records []model.LifecycleRecord
	for rows.Next() {
		var r model.LifecycleRecord
		var from, to, meta string
		var at sql.NullString
		if err := rows.Scan(&from, &to, &at, &meta); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		r.From, r.To = model.State(from), model.State(to)
		if r.At, err = parseTime(at); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode record metadata: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (model.Task, error) {
	var (
		t                              model.Task
		category, difficulty, state    string
		due, created, started, resumed sql.NullString
		activeNS                       int64
		actual                         sql.NullInt64
		scoring                        sql.NullString
	)
	err := row.Scan(&t.ID, &t.Title, &category, &difficulty, &t.Priority, &t.EstimatedMinutes, &due,
		&t.ValueScore, &created, &state, &started, &resumed, &activeNS, &actual, &scoring)
	if err != nil {
		return model.Task{}, err
	}
	t.Category = model.Category(category)
	t.Difficulty = model.Difficulty(difficulty)
	t.State = model.State(state)
	t.ActiveTime = time.Duration(activeNS)
	for _, f := range []struct {
		dst *time.Time
		src sql.NullString
	}{{&t.Due, due}, {&t.CreatedAt, created}, {&t.StartedAt, started}, {&t.ResumedAt, resumed}} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return model.Task{}, err
		}
	}
	if actual.Valid {
		v := int(actual.Int64)
		t.ActualMinutes = &v
	}
	if scoring.Valid {
		var in model.ScoringInputs
		if err := json.Unmarshal([]byte(scoring.String), &in); err != nil {
			return model.Task{}, fmt.Errorf("failed to decode scoring inputs: %w", err)
		}
		t.Scoring = &in
	}
	return t, nil
}
