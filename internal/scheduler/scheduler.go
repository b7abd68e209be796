package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"

	"github.com/mstanic/courtside/internal/service"
	"github.com/mstanic/courtside/internal/timezone"
)

const (
	expireBatchSize   = 500
	dispatchBatchSize = 100
	sweepTimeout      = 2 * time.Minute

	notificationRetention = 30 * 24 * time.Hour
)

// Scheduler owns the background sweeps: challenge expiry, notification
// dispatch, block generation, vacation reactivation and weekly cleanup.
// Calendar-based jobs run in league time so "2 AM" means 2 AM on the
// league's wall clock.
type Scheduler struct {
	cron          *cron.Cron
	matches       *service.MatchService
	notifications *service.NotificationService
	availability  *service.AvailabilityService
	users         *service.UserService
	clock         *timezone.LeagueClock
	log           *zap.Logger
}

func New(
	matches *service.MatchService,
	notifications *service.NotificationService,
	availability *service.AvailabilityService,
	users *service.UserService,
	clock *timezone.LeagueClock,
	log *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cron:          cron.NewWithLocation(clock.Location()),
		matches:       matches,
		notifications: notifications,
		availability:  availability,
		users:         users,
		clock:         clock,
		log:           log,
	}
}

func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context) error
	}{
		{"@every 5m", "expire stale challenges", s.expireChallenges},
		{"@every 30s", "dispatch notifications", s.dispatchNotifications},
		// 2 AM league time, after the day has settled.
		{"0 0 2 * * *", "generate availability blocks", s.generateBlocks},
		{"0 0 0 * * *", "reactivate vacations", s.reactivateVacations},
		// Sunday 3 AM league time.
		{"0 0 3 * * 0", "weekly cleanup", s.weeklyCleanup},
	}

	for _, job := range jobs {
		job := job
		err := s.cron.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			defer cancel()
			if err := job.run(ctx); err != nil {
				s.log.Error("sweep failed", zap.String("job", job.name), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("scheduling %s: %w", job.name, err)
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.String("timezone", s.clock.Location().String()))
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) expireChallenges(ctx context.Context) error {
	_, err := s.matches.ExpireDue(ctx, s.clock.Now(), expireBatchSize)
	return err
}

func (s *Scheduler) dispatchNotifications(ctx context.Context) error {
	_, err := s.notifications.ProcessDue(ctx, s.clock.Now(), dispatchBatchSize)
	return err
}

func (s *Scheduler) generateBlocks(ctx context.Context) error {
	_, err := s.availability.GenerateAll(ctx)
	return err
}

func (s *Scheduler) reactivateVacations(ctx context.Context) error {
	_, err := s.users.ReactivateExpiredVacations(ctx)
	return err
}

func (s *Scheduler) weeklyCleanup(ctx context.Context) error {
	if _, err := s.availability.CleanupOldBlocks(ctx); err != nil {
		return err
	}
	_, err := s.notifications.CleanupTerminal(ctx, notificationRetention)
	return err
}
