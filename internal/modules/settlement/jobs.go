// README: Weekly settlement jobs and their scheduler. Jobs take an explicit
// now so tests and manual triggers can replay any week; every write they do
// is idempotent, so a re-run for the same week is harmless.
package settlement

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Jobs struct {
	store *Store
	loc   *time.Location
	log   *zap.Logger
}

func NewJobs(store *Store, loc *time.Location, log *zap.Logger) *Jobs {
	return &Jobs{store: store, loc: loc, log: log}
}

// RunCreateWeeklySettlements sweeps last week's UNPAID commissions into one
// settlement per driver. A failing driver is logged and skipped; the rest of
// the batch proceeds.
func (j *Jobs) RunCreateWeeklySettlements(ctx context.Context, now time.Time) error {
	start, end := PreviousWeekRange(now, j.loc)
	totals, err := j.store.DriverTotals(ctx, start, end)
	if err != nil {
		return err
	}

	created := 0
	for _, dt := range totals {
		if _, err := j.store.UpsertWeekly(ctx, dt.DriverID, start, end, dt.Amount, now); err != nil {
			j.log.Error("settlement upsert failed",
				zap.String("driverId", string(dt.DriverID)),
				zap.Time("weekStart", start),
				zap.Error(err))
			continue
		}
		created++
	}
	j.log.Info("weekly settlements created",
		zap.Time("weekStart", start),
		zap.Time("weekEnd", end),
		zap.Int("drivers", len(totals)),
		zap.Int("ok", created))
	return nil
}

// RunSuspendOverdueSettlements marks last week's unverified settlements
// OVERDUE and suspends their drivers.
func (j *Jobs) RunSuspendOverdueSettlements(ctx context.Context, now time.Time) error {
	start, end := PreviousWeekRange(now, j.loc)
	candidates, err := j.store.OverdueCandidates(ctx, start, end)
	if err != nil {
		return err
	}

	suspended := 0
	for _, st := range candidates {
		if err := j.store.MarkOverdueAndSuspend(ctx, st.ID, st.DriverID, now); err != nil {
			j.log.Error("overdue suspension failed",
				zap.String("settlementId", string(st.ID)),
				zap.String("driverId", string(st.DriverID)),
				zap.Error(err))
			continue
		}
		suspended++
	}
	j.log.Info("overdue settlements suspended",
		zap.Time("weekStart", start),
		zap.Int("candidates", len(candidates)),
		zap.Int("ok", suspended))
	return nil
}

// Scheduler fires the settlement jobs on the local wall clock: settlement
// creation Sunday from 00:05, overdue suspension Monday from 00:00. A
// per-calendar-day marker keeps each job to one run per day even with a
// short tick.
type Scheduler struct {
	jobs *Jobs
	loc  *time.Location
	tick time.Duration
	log  *zap.Logger

	mu      sync.Mutex
	lastRun map[string]string // job name -> local date of last run
}

func NewScheduler(jobs *Jobs, loc *time.Location, tick time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:    jobs,
		loc:     loc,
		tick:    tick,
		log:     log,
		lastRun: make(map[string]string),
	}
}

// Run blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.log.Info("settlement scheduler started", zap.Duration("tick", s.tick))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("settlement scheduler stopped")
			return
		case <-ticker.C:
			s.fire(ctx, time.Now())
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, now time.Time) {
	local := now.In(s.loc)

	if local.Weekday() == time.Sunday && local.Hour() == 0 && local.Minute() >= 5 {
		if s.claim("create", local) {
			if err := s.jobs.RunCreateWeeklySettlements(ctx, now); err != nil {
				s.log.Error("create settlements job failed", zap.Error(err))
				s.release("create")
			}
		}
	}
	if local.Weekday() == time.Monday && local.Hour() == 0 {
		if s.claim("suspend", local) {
			if err := s.jobs.RunSuspendOverdueSettlements(ctx, now); err != nil {
				s.log.Error("suspend overdue job failed", zap.Error(err))
				s.release("suspend")
			}
		}
	}
}

// claim marks the job as run for the local calendar day; false when it
// already ran today.
func (s *Scheduler) claim(job string, local time.Time) bool {
	day := local.Format("2006-01-02")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun[job] == day {
		return false
	}
	s.lastRun[job] = day
	return true
}

// release clears the day marker so a failed run retries on the next tick.
func (s *Scheduler) release(job string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastRun, job)
}
