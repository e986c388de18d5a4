package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskquest/pkg/lifecycle"
	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/progress"
	"github.com/harrisonrobin/taskquest/pkg/xp"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewTask is the user input for creating a task.
type NewTask struct {
	Title            string `validate:"required"`
	Category         string
	Difficulty       string
	Priority         int `validate:"min=1,max=5"`
	EstimatedMinutes int `validate:"gte=0"`
	Due              time.Time
	ValueScore       int `validate:"gte=0"`
}

func (s *Service) CreateTask(ctx context.Context, in NewTask) (model.Task, error) {
	if err := validate.Struct(in); err != nil {
		return model.Task{}, fmt.Errorf("invalid task: %w", err)
	}
	difficulty, err := model.ParseDifficulty(in.Difficulty)
	if err != nil {
		return model.Task{}, err
	}

	t, err := s.store.CreateTask(ctx, model.Task{
		Title:            in.Title,
		Category:         model.ParseCategory(in.Category),
		Difficulty:       difficulty,
		Priority:         in.Priority,
		EstimatedMinutes: in.EstimatedMinutes,
		Due:              in.Due,
		ValueScore:       in.ValueScore,
		CreatedAt:        s.Now(),
		State:            model.StateCreated,
	})
	if err != nil {
		return model.Task{}, err
	}
	s.log.Info("Task created", zap.String("id", t.ID), zap.String("category", string(t.Category)))
	return t, nil
}

func (s *Service) GetTask(ctx context.Context, id string) (model.Task, error) {
	return s.store.GetTask(ctx, id)
}

func (s *Service) ListTasks(ctx context.Context) ([]model.Task, error) {
	return s.store.ListTasks(ctx)
}

// Start moves a CREATED task into IN_PROGRESS.
func (s *Service) Start(ctx context.Context, id string) (model.Task, error) {
	return s.transition(ctx, id, model.StateCreated, model.StateInProgress, model.RecordMetadata{})
}

// Pause closes the active window of an IN_PROGRESS task.
func (s *Service) Pause(ctx context.Context, id, reason string) (model.Task, error) {
	return s.transition(ctx, id, model.StateInProgress, model.StatePaused, model.RecordMetadata{PauseReason: reason})
}

// Resume reopens an active window on a PAUSED task.
func (s *Service) Resume(ctx context.Context, id string) (model.Task, error) {
	return s.transition(ctx, id, model.StatePaused, model.StateInProgress, model.RecordMetadata{})
}

func (s *Service) Fail(ctx context.Context, id, note string) (model.Task, error) {
	return s.transition(ctx, id, "", model.StateFailed, model.RecordMetadata{Note: note})
}

// Restart returns a FAILED task to CREATED, discarding its accrued time.
func (s *Service) Restart(ctx context.Context, id string) (model.Task, error) {
	return s.transition(ctx, id, model.StateFailed, model.StateCreated, model.RecordMetadata{})
}

// transition applies one lifecycle move. A non-empty from additionally pins
// the state the task must be in, so that start and resume stay distinct.
func (s *Service) transition(ctx context.Context, id string, from, to model.State, meta model.RecordMetadata) (model.Task, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if from != "" && t.State != from {
		return model.Task{}, &lifecycle.InvalidTransitionError{From: t.State, To: to}
	}
	next, err := s.tracker.Transition(t, to, meta)
	if err != nil {
		return model.Task{}, err
	}
	if err := s.store.SaveTask(ctx, next); err != nil {
		return model.Task{}, err
	}
	s.log.Info("Task transitioned", zap.String("id", id), zap.String("from", string(t.State)), zap.String("to", string(to)))
	return next, nil
}

// CompleteOptions are the completion modifiers supplied by the user.
type CompleteOptions struct {
	FocusScore  int
	DungeonMode bool
	Note        string
}

// Award is the outcome of applying a scored unit of work to the profile.
type Award struct {
	Breakdown xp.Breakdown
	Streak    progress.StreakUpdate
	Unlocked  []progress.Achievement
	Summary   progress.Summary
	LeveledUp bool
}

// Complete finishes a task, scores it against its frozen scoring inputs and
// applies the award to the profile in the same transaction.
func (s *Service) Complete(ctx context.Context, id string, opts CompleteOptions) (model.Task, Award, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, Award{}, err
	}
	if !lifecycle.Allowed(t.State, model.StateCompleted) {
		return model.Task{}, Award{}, &lifecycle.InvalidTransitionError{From: t.State, To: model.StateCompleted}
	}
	profile, err := s.store.GetProfile(ctx)
	if err != nil {
		return model.Task{}, Award{}, err
	}

	now := s.Now()
	before := progress.Summarize(profile)
	profile, streak := progress.ObserveActivity(profile, now)

	in := t.Inputs()
	b := xp.ScoreTaskCompletion(xp.Completion{
		Difficulty:       in.Difficulty,
		Priority:         in.Priority,
		EstimatedMinutes: in.EstimatedMinutes,
		ActualMinutes:    lifecycle.ActiveMinutesAt(t, now),
		FocusScore:       opts.FocusScore,
		ReturnedAfterGap: streak.ReturnedAfterGap,
		StreakDays:       streak.StreakDays,
		DungeonMode:      opts.DungeonMode,
	})

	awarded := b.CappedXP
	next, err := lifecycle.TransitionAt(t, model.StateCompleted, model.RecordMetadata{XPAwarded: &awarded, Note: opts.Note}, now)
	if err != nil {
		return model.Task{}, Award{}, err
	}

	profile = progress.ApplyTask(profile, b, opts.FocusScore)
	profile, unlocked := progress.Award(profile)
	if err := s.store.SaveTaskWithProfile(ctx, next, profile); err != nil {
		return model.Task{}, Award{}, err
	}

	award := newAward(before, profile, b, streak, unlocked)
	s.log.Info("Task completed",
		zap.String("id", id),
		zap.Int("xp", b.CappedXP),
		zap.Int("actual_minutes", *next.ActualMinutes),
		zap.Int("streak", streak.StreakDays))
	return next, award, nil
}

func newAward(before progress.Summary, after model.Profile, b xp.Breakdown, streak progress.StreakUpdate, unlocked []progress.Achievement) Award {
	summary := progress.Summarize(after)
	return Award{
		Breakdown: b,
		Streak:    streak,
		Unlocked:  unlocked,
		Summary:   summary,
		LeveledUp: summary.Level > before.Level,
	}
}

// Replay rebuilds a task from its lifecycle log, for verifying stored state.
func (s *Service) Replay(ctx context.Context, id string) (model.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	return lifecycle.Replay(t, t.Records)
}
