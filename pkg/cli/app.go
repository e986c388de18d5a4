package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskquest/pkg/auth"
	"github.com/harrisonrobin/taskquest/pkg/colors"
	"github.com/harrisonrobin/taskquest/pkg/config"
	"github.com/harrisonrobin/taskquest/pkg/google"
	"github.com/harrisonrobin/taskquest/pkg/index"
	"github.com/harrisonrobin/taskquest/pkg/logging"
	"github.com/harrisonrobin/taskquest/pkg/overdue"
	"github.com/harrisonrobin/taskquest/pkg/service"
	"github.com/harrisonrobin/taskquest/pkg/store"
)

type calendarMode int

const (
	noCalendar calendarMode = iota
	// optionalCalendar continues without the calendar when it cannot be reached
	optionalCalendar
	requireCalendar
)

// app holds everything a command needs for one invocation.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
	svc   *service.Service
	index *index.EventIndex
}

func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.calendar != "" {
		cfg.Calendar = o.calendar
	}
	return cfg, nil
}

func (o *options) logger(cfg *config.Config) (*zap.Logger, error) {
	lc := logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}
	if o.verbose {
		lc.Level = "debug"
	}
	return logging.New(lc)
}

func (o *options) open(ctx context.Context, mode calendarMode) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := o.logger(cfg)
	if err != nil {
		return nil, err
	}
	window, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: st}
	var opts []service.Option
	if mode != noCalendar {
		calOpts, err := a.connectCalendar(ctx)
		switch {
		case err != nil && mode == requireCalendar:
			st.Close()
			return nil, err
		case err != nil:
			log.Warn("Calendar unavailable, continuing without it", zap.Error(err))
		default:
			opts = append(opts, calOpts...)
		}
	}
	a.svc = service.New(st, window, log, opts...)
	return a, nil
}

func (a *app) connectCalendar(ctx context.Context) ([]service.Option, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, fmt.Errorf("could not find configuration directory: %w", err)
	}
	idx, err := index.NewEventIndex(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load event index: %w", err)
	}
	client, err := google.NewClient(ctx, auth.New(dir, a.log), a.cfg.Calendar, idx, a.log)
	if err != nil {
		return nil, err
	}
	cache, err := colors.NewColorCache(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load color cache: %w", err)
	}
	table, err := overdue.NewTable(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load overdue table: %w", err)
	}
	a.index = idx
	return []service.Option{
		service.WithCalendar(client),
		service.WithColors(cache),
		service.WithOverdueTable(table),
	}, nil
}

func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Save(); err != nil {
			a.log.Warn("Failed to save event index", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}

// with opens the app for one command run and closes it afterwards.
func (o *options) with(cmd *cobra.Command, mode calendarMode, fn func(context.Context, *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.open(ctx, mode)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
