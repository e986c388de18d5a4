// Package lifecycle implements the per-task state machine. It operates on
// in-memory Task snapshots and returns updated copies; the caller loads and
// saves them.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

var transitions = map[model.State][]model.State{
	model.StateCreated:    {model.StateInProgress, model.StateFailed},
	model.StateInProgress: {model.StatePaused, model.StateCompleted, model.StateFailed},
	model.StatePaused:     {model.StateInProgress, model.StateCompleted, model.StateFailed},
	model.StateCompleted:  {},
	model.StateFailed:     {model.StateCreated},
}

// Allowed reports whether from -> to is in the transition table.
func Allowed(from, to model.State) bool {
	for _, s := range transitions[normalize(from)] {
		if s == to {
			return true
		}
	}
	return false
}

// Tracker applies transitions using an injectable clock.
type Tracker struct {
	now func() time.Time
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now returns the tracker's current time.
func (tr *Tracker) Now() time.Time {
	return tr.now()
}

// Transition moves task to the target state at the tracker's current time.
func (tr *Tracker) Transition(task model.Task, to model.State, meta model.RecordMetadata) (model.Task, error) {
	return TransitionAt(task, to, meta, tr.now())
}

// TransitionAt moves task to the target state as of at. The input snapshot is
// never modified.
func TransitionAt(task model.Task, to model.State, meta model.RecordMetadata, at time.Time) (model.Task, error) {
	from := normalize(task.State)
	if !Allowed(from, to) {
		return task, &InvalidTransitionError{From: from, To: to}
	}

	next := task.Clone()
	if from == model.StateCreated && to != model.StateCreated {
		in := task.Inputs()
		next.Scoring = &in
	}

	switch to {
	case model.StateInProgress:
		if next.StartedAt.IsZero() {
			next.StartedAt = at
		}
		next.ResumedAt = at
	case model.StatePaused, model.StateCompleted, model.StateFailed:
		if from == model.StateInProgress {
			next.ActiveTime += elapsed(anchor(task), at)
		}
		if to != model.StatePaused {
			minutes := int(next.ActiveTime / time.Minute)
			recorded := minutes
			next.ActualMinutes = &minutes
			meta.ActualMinutes = &recorded
		}
	case model.StateCreated:
		next.StartedAt = time.Time{}
		next.ResumedAt = time.Time{}
		next.ActiveTime = 0
		next.ActualMinutes = nil
		next.Scoring = nil
	}

	next.State = to
	next.Records = append(next.Records, model.LifecycleRecord{From: from, To: to, At: at, Metadata: meta})
	return next, nil
}

// Replay rebuilds a task snapshot from its lifecycle log. seed supplies the
// descriptive fields; its lifecycle fields are ignored.
func Replay(seed model.Task, records []model.LifecycleRecord) (model.Task, error) {
	task := seed.Clone()
	task.State = model.StateCreated
	task.StartedAt = time.Time{}
	task.ResumedAt = time.Time{}
	task.ActiveTime = 0
	task.ActualMinutes = nil
	task.Scoring = nil
	task.Records = nil

	for i, r := range records {
		if normalize(r.From) != task.State {
			return task, fmt.Errorf("record %d starts from %s but task is %s", i, r.From, task.State)
		}
		next, err := TransitionAt(task, r.To, r.Metadata, r.At)
		if err != nil {
			return task, fmt.Errorf("record %d: %w", i, err)
		}
		task = next
	}
	return task, nil
}

func IsActive(t model.Task) bool    { return t.State == model.StateInProgress }
func IsPaused(t model.Task) bool    { return t.State == model.StatePaused }
func IsCompleted(t model.Task) bool { return t.State == model.StateCompleted }

// CurrentActiveMinutes is the accrued active time plus the open window, if
// any, in whole minutes. It does not modify the task.
func (tr *Tracker) CurrentActiveMinutes(t model.Task) int {
	return ActiveMinutesAt(t, tr.now())
}

func ActiveMinutesAt(t model.Task, at time.Time) int {
	return int(ActiveTimeAt(t, at) / time.Minute)
}

func ActiveTimeAt(t model.Task, at time.Time) time.Duration {
	active := t.ActiveTime
	if IsActive(t) {
		active += elapsed(anchor(t), at)
	}
	return active
}

// EfficiencyRatio is actual/estimated minutes. ok is false when either is unset.
func EfficiencyRatio(t model.Task) (ratio float64, ok bool) {
	est := t.Inputs().EstimatedMinutes
	if t.ActualMinutes == nil || est <= 0 {
		return 0, false
	}
	return float64(*t.ActualMinutes) / float64(est), true
}

func normalize(s model.State) model.State {
	if s == "" {
		return model.StateCreated
	}
	return s
}

func anchor(t model.Task) time.Time {
	if !t.ResumedAt.IsZero() {
		return t.ResumedAt
	}
	return t.StartedAt
}

func elapsed(from, to time.Time) time.Duration {
	if from.IsZero() || to.Before(from) {
		return 0
	}
	return to.Sub(from)
}
