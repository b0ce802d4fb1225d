package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic snapshot cleanup sweep, independent of
// and non-blocking toward per-interaction traffic.
type Scheduler struct {
	cron        *cron.Cron
	ctx         context.Context
	cancel      context.CancelFunc
	spec        string
	cleanupFunc func(ctx context.Context) (int, error)
}

func New(spec string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		spec:   spec,
	}
}

// SetCleanupFunction installs the sweep to run on each tick.
func (s *Scheduler) SetCleanupFunction(f func(ctx context.Context) (int, error)) {
	s.cleanupFunc = f
}

// Start schedules the sweep.
func (s *Scheduler) Start() error {
	if s.cleanupFunc == nil {
		log.Println("⚠️ Cleanup function not set, scheduler will not sweep")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		log.Printf("🧹 Triggered cleanup sweep (%s UTC)", s.spec)
		removed, err := s.cleanupFunc(s.ctx)
		if err != nil {
			log.Printf("❌ Cleanup sweep failed: %v", err)
			return
		}
		log.Printf("🧹 Cleanup sweep removed %d interaction(s)", removed)
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("📅 Scheduler started - cleanup sweep on %q UTC", s.spec)
	return nil
}

// Stop drains running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

// IsRunning reports whether any job is scheduled.
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
