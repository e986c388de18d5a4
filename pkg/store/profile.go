package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

// GetProfile returns the single user profile, zero-valued before the first save.
func (s *Store) GetProfile(ctx context.Context) (model.Profile, error) {
	var p model.Profile
	var pillars, achievements string
	err := s.db.QueryRowContext(ctx, `
		SELECT total_xp, current_streak, longest_streak, last_active_day, tasks_completed, sessions, pillars, achievements
		FROM profile WHERE id = 1`).
		Scan(&p.TotalXP, &p.CurrentStreak, &p.LongestStreak, &p.LastActiveDay, &p.TasksCompleted, &p.Sessions, &pillars, &achievements)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, nil
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	if err := json.Unmarshal([]byte(pillars), &p.Pillars); err != nil {
		return model.Profile{}, fmt.Errorf("failed to decode pillars: %w", err)
	}
	if err := json.Unmarshal([]byte(achievements), &p.Achievements); err != nil {
		return model.Profile{}, fmt.Errorf("failed to decode achievements: %w", err)
	}
	return p, nil
}

func (s *Store) SaveProfile(ctx context.Context, p model.Profile) error {
	return saveProfile(ctx, s.db, p)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveProfile(ctx context.Context, db execer, p model.Profile) error {
	pillars, err := json.Marshal(p.Pillars)
	if err != nil {
		return fmt.Errorf("failed to encode pillars: %w", err)
	}
	if p.Achievements == nil {
		p.Achievements = []string{}
	}
	achievements, err := json.Marshal(p.Achievements)
	if err != nil {
		return fmt.Errorf("failed to encode achievements: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO profile (id, total_xp, current_streak, longest_streak, last_active_day, tasks_completed, sessions, pillars, achievements)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_xp = excluded.total_xp,
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_active_day = excluded.last_active_day,
			tasks_completed = excluded.tasks_completed,
			sessions = excluded.sessions,
			pillars = excluded.pillars,
			achievements = excluded.achievements`,
		p.TotalXP, p.CurrentStreak, p.LongestStreak, p.LastActiveDay, p.TasksCompleted, p.Sessions, string(pillars), string(achievements))
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
