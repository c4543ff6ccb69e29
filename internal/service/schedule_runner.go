package service

import (
	"context"
	"sync"

	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ScheduleRunner drives the persisted payout schedule with a cron engine.
// It registers exactly one entry, replaced whenever the schedule changes.
type ScheduleRunner struct {
	cron      *cron.Cron
	scheduler ports.PayoutScheduler
	log       zerolog.Logger

	mu      sync.Mutex
	entryID cron.EntryID
}

// NewScheduleRunner creates the runner and subscribes it to schedule updates
// when the scheduler supports them.
func NewScheduleRunner(scheduler ports.PayoutScheduler, log zerolog.Logger) *ScheduleRunner {
	r := &ScheduleRunner{
		cron:      cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		scheduler: scheduler,
		log:       log,
	}
	if s, ok := scheduler.(*SchedulerService); ok {
		s.OnScheduleChange(r.Apply)
	}
	return r
}

// Start loads the persisted schedule, applies it, and starts the cron loop.
func (r *ScheduleRunner) Start(ctx context.Context) error {
	sched, err := r.scheduler.GetSchedule(ctx)
	if err != nil {
		return err
	}
	r.Apply(sched)
	r.cron.Start()
	return nil
}

// Apply swaps the cron entry to match the given schedule. A disabled
// schedule leaves no entry registered.
func (r *ScheduleRunner) Apply(sched *domain.PayoutSchedule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryID != 0 {
		r.cron.Remove(r.entryID)
		r.entryID = 0
	}
	if sched == nil || !sched.IsEnabled {
		r.log.Info().Msg("payout schedule disabled, no cron entry registered")
		return
	}

	id, err := r.cron.AddFunc(sched.CronExpression, r.runBatch)
	if err != nil {
		// UpdateSchedule validates expressions, so this only fires for a
		// corrupted stored value.
		r.log.Error().Err(err).Str("cron", sched.CronExpression).Msg("failed to register payout cron entry")
		return
	}
	r.entryID = id
	r.log.Info().Str("cron", sched.CronExpression).Msg("payout cron entry registered")
}

// Stop stops the cron loop and returns once running jobs finish.
func (r *ScheduleRunner) Stop() {
	<-r.cron.Stop().Done()
}

func (r *ScheduleRunner) runBatch() {
	batch, err := r.scheduler.RunScheduled(context.Background())
	if err != nil {
		r.log.Error().Err(err).Msg("scheduled payout batch could not start")
		return
	}
	r.log.Info().Int("created", batch.Created).Int("total", batch.Total).Msg("scheduled payout batch ran")
}
