package scheduler

import (
	"slices"
	"time"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

// DefaultTolerance is how far a candidate's estimate may exceed a slot.
const DefaultTolerance = 5 * time.Minute

// Request is the full input of one planning run.
type Request struct {
	Date       time.Time
	Window     Window
	Locked     []model.Slot
	Candidates []Candidate
	// Pinned maps subtasks pinned in locked slots to their category when
	// they are not among the candidates.
	Pinned map[string]model.Category
}

// Plan is the result of a planning run. Slots holds every generated slot in
// order, with SubtaskID set where one was assigned.
type Plan struct {
	Date        string
	Slots       []model.Slot
	Assignments []model.Assignment
}

// Open returns generated slots that received no assignment.
func (p Plan) Open() []model.Slot {
	var open []model.Slot
	for _, s := range p.Slots {
		if s.SubtaskID == "" {
			open = append(open, s)
		}
	}
	return open
}

// Scheduler runs the greedy assignment loop with a pluggable score function.
type Scheduler struct {
	score     ScoreFunc
	tolerance time.Duration
}

type Option func(*Scheduler)

func WithScoreFunc(f ScoreFunc) Option {
	return func(s *Scheduler) { s.score = f }
}

func WithTolerance(d time.Duration) Option {
	return func(s *Scheduler) { s.tolerance = d }
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{score: DefaultScore, tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan generates the day's slots and assigns at most one candidate to each.
// An empty candidate pool yields an empty plan, not an error.
func (s *Scheduler) Plan(req Request) (Plan, error) {
	slots, err := GenerateSlots(req.Date, req.Window, req.Locked)
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{Date: Midnight(req.Date).Format(model.DateLayout), Slots: slots}

	booked := make(map[string]bool)
	for _, l := range req.Locked {
		if l.SubtaskID != "" {
			booked[l.SubtaskID] = true
		}
	}
	pool := make([]Candidate, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		if !booked[c.SubtaskID] {
			pool = append(pool, c)
		}
	}

	pinned := pinnedSlots(req)
	next := 0

	sc := SlotContext{seen: make(map[model.Category]bool)}
	for i := range plan.Slots {
		slot := plan.Slots[i]
		sc.Slot = slot
		for ; next < len(pinned) && pinned[next].Start.Before(slot.Start); next++ {
			sc.Previous, sc.HasPrevious = pinned[next].Category, true
			sc.seen[pinned[next].Category] = true
		}

		best, bestScore := -1, 0.0
		for j, c := range pool {
			if c.Estimate() > slot.Duration()+s.tolerance {
				continue
			}
			// strict comparison keeps the earliest candidate on ties
			if score := s.score(c, sc); best < 0 || score > bestScore {
				best, bestScore = j, score
			}
		}
		if best < 0 {
			continue
		}

		c := pool[best]
		pool = append(pool[:best], pool[best+1:]...)
		plan.Slots[i].SubtaskID = c.SubtaskID
		plan.Assignments = append(plan.Assignments, model.Assignment{
			Start:     slot.Start,
			End:       slot.End,
			SubtaskID: c.SubtaskID,
			TaskID:    c.TaskID,
			Category:  c.Category,
			Title:     c.Title,
			Score:     bestScore,
		})
		sc.Previous, sc.HasPrevious = c.Category, true
		sc.seen[c.Category] = true
	}
	return plan, nil
}

// pinnedSlots returns the locked slots whose subtask category is known, as
// assignments in start order.
func pinnedSlots(req Request) []model.Assignment {
	categories := make(map[string]model.Category, len(req.Candidates)+len(req.Pinned))
	for id, c := range req.Pinned {
		categories[id] = c
	}
	for _, c := range req.Candidates {
		categories[c.SubtaskID] = c.Category
	}

	var out []model.Assignment
	for _, l := range req.Locked {
		c, ok := categories[l.SubtaskID]
		if l.SubtaskID == "" || !ok {
			continue
		}
		out = append(out, model.Assignment{Start: l.Start, End: l.End, SubtaskID: l.SubtaskID, Category: c})
	}
	slices.SortFunc(out, func(a, b model.Assignment) int { return a.Start.Compare(b.Start) })
	return out
}
