package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskquest/pkg/progress"
	"github.com/harrisonrobin/taskquest/pkg/xp"
)

// Session is a timed focus session reported by the user.
type Session struct {
	Minutes     int
	FocusScore  int
	DungeonMode bool
}

// LogSession scores a focus session and applies it to the profile.
func (s *Service) LogSession(ctx context.Context, in Session) (Award, error) {
	if in.Minutes <= 0 {
		return Award{}, fmt.Errorf("session must last at least one minute, got %d", in.Minutes)
	}

	s.writes.Lock()
	defer s.writes.Unlock()

	profile, err := s.store.GetProfile(ctx)
	if err != nil {
		return Award{}, err
	}
	before := progress.Summarize(profile)

	profile, streak := progress.ObserveActivity(profile, s.Now())
	b := xp.ScoreFocusSession(xp.Session{
		Minutes:     in.Minutes,
		FocusScore:  in.FocusScore,
		StreakDays:  streak.StreakDays,
		DungeonMode: in.DungeonMode,
	})
	profile = progress.ApplySession(profile, b, in.FocusScore)
	profile, unlocked := progress.Award(profile)
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return Award{}, err
	}

	s.log.Info("Session logged", zap.Int("minutes", in.Minutes), zap.Int("xp", b.CappedXP))
	return newAward(before, profile, b, streak, unlocked), nil
}

// Profile returns the profile with its derived level and rank.
func (s *Service) Profile(ctx context.Context) (progress.Summary, error) {
	p, err := s.store.GetProfile(ctx)
	if err != nil {
		return progress.Summary{}, err
	}
	return progress.Summarize(p), nil
}
