package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

// CreateSubtask inserts a subtask. A zero Seq places it after its siblings.
func (s *Store) CreateSubtask(ctx context.Context, st model.Subtask) (model.Subtask, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.Status == "" {
		st.Status = model.SubtaskTodo
	}
	tags, err := json.Marshal(st.Tags)
	if err != nil {
		return model.Subtask{}, fmt.Errorf("failed to encode tags: %w", err)
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if st.Seq == 0 {
			if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM subtasks WHERE task_id = ?`, st.TaskID).Scan(&st.Seq); err != nil {
				return fmt.Errorf("failed to compute subtask sequence: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO subtasks (id, task_id, title, estimated_minutes, status, seq, tags)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			st.ID, st.TaskID, st.Title, st.EstimatedMinutes, string(st.Status), st.Seq, string(tags))
		if err != nil {
			return fmt.Errorf("failed to insert subtask: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Subtask{}, err
	}
	return st, nil
}

func (s *Store) GetSubtask(ctx context.Context, id string) (model.Subtask, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, title, estimated_minutes, status, seq, tags FROM subtasks WHERE id = ?`, id)
	st, err := scanSubtask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Subtask{}, fmt.Errorf("subtask %s: %w", id, ErrNotFound)
	}
	return st, err
}

// ListSubtasks returns subtasks of one task, or of all tasks when taskID is empty.
func (s *Store) ListSubtasks(ctx context.Context, taskID string) ([]model.Subtask, error) {
	query := `SELECT id, task_id, title, estimated_minutes, status, seq, tags FROM subtasks`
	var args []any
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY task_id, seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	defer rows.Close()

	var subtasks []model.Subtask
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			return nil, err
		}
		subtasks = append(subtasks, st)
	}
	return subtasks, rows.Err()
}

func (s *Store) SetSubtaskStatus(ctx context.Context, id string, status model.SubtaskStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE subtasks SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update subtask: %w", err)
	}
	return expectOne(res, "subtask", id)
}

func scanSubtask(row scanner) (model.Subtask, error) {
	var st model.Subtask
	var status string
	var tags sql.NullString
	if err := row.Scan(&st.ID, &st.TaskID, &st.Title, &st.EstimatedMinutes, &status, &st.Seq, &tags); err != nil {
		return model.Subtask{}, err
	}
	st.Status = model.SubtaskStatus(status)
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &st.Tags); err != nil {
			return model.Subtask{}, fmt.Errorf("failed to decode tags for subtask %s: %w", st.ID, err)
		}
	}
	return st, nil
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
