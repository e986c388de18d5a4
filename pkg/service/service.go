// Package service wires the pure cores to storage and the calendar: it loads
// snapshots, runs the lifecycle, scoring and scheduling code on them and
// persists the results.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskquest/pkg/colors"
	"github.com/harrisonrobin/taskquest/pkg/lifecycle"
	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/overdue"
	"github.com/harrisonrobin/taskquest/pkg/scheduler"
	"github.com/harrisonrobin/taskquest/pkg/store"
	"github.com/harrisonrobin/taskquest/pkg/util"
)

// ErrNoCalendar is returned by calendar operations when no calendar is configured.
var ErrNoCalendar = errors.New("calendar not configured")

// Calendar publishes slots and reports external busy time.
type Calendar interface {
	PublishSlot(ctx context.Context, se util.SlotEvent, now time.Time) (*calendar.Event, error)
	UnpublishSlot(ctx context.Context, slotID string) error
	PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error)
	BusySlots(ctx context.Context, date string, start, end time.Time) ([]model.Slot, error)
}

type Service struct {
	store   *store.Store
	tracker *lifecycle.Tracker
	sched   *scheduler.Scheduler
	window  scheduler.Window
	cal     Calendar
	colors  *colors.ColorCache
	pending *overdue.Table
	log     *zap.Logger

	// writes serialises read-modify-write cycles on tasks and the profile
	writes  sync.Mutex
	// publish guards the color cache and the overdue table
	publish sync.Mutex
	// slots serialises check-then-write cycles on the slot table
	slots   sync.Mutex
	plans   singleflight.Group
}

type Option func(*Service)

func WithCalendar(c Calendar) Option {
	return func(s *Service) { s.cal = c }
}

func WithColors(c *colors.ColorCache) Option {
	return func(s *Service) { s.colors = c }
}

// WithOverdueTable enables tracking of published slots for the missed-slot sweep.
func WithOverdueTable(t *overdue.Table) Option {
	return func(s *Service) { s.pending = t }
}

func WithScheduler(sched *scheduler.Scheduler) Option {
	return func(s *Service) { s.sched = sched }
}

func WithTracker(tr *lifecycle.Tracker) Option {
	return func(s *Service) { s.tracker = tr }
}

func New(st *store.Store, window scheduler.Window, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		tracker: lifecycle.NewTracker(),
		sched:   scheduler.New(),
		window:  window,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.tracker.Now()
}

// flush persists the local caches the calendar side effects touched.
func (s *Service) flush() {
	if s.pending != nil {
		if err := s.pending.Save(); err != nil {
			s.log.Warn("Failed to save overdue table", zap.Error(err))
		}
	}
	if s.colors != nil {
		if err := s.colors.Save(); err != nil {
			s.log.Warn("Failed to save color cache", zap.Error(err))
		}
	}
}
