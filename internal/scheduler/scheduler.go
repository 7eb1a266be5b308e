// Package scheduler provides cron-based background job scheduling for docpipe.
//
// It drives periodic maintenance such as purging expired sessions.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/docpipe/docpipe/internal/store"
)

// CleanupSchedule runs expired-session cleanup at the top of every hour.
const CleanupSchedule = "0 * * * *"

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler. Panics in scheduled jobs
// are recovered so one failing run cannot kill the process.
func NewScheduler() *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// ScheduleSessionCleanup registers the hourly job that deletes sessions
// whose advisory TTL has lapsed.
func (s *Scheduler) ScheduleSessionCleanup(st store.Store) error {
	return s.AddJob(CleanupSchedule, func() {
		removed, err := st.DeleteExpiredSessions(time.Now())
		if err != nil {
			slog.Error("Scheduler session cleanup failed", "error", err)
			return
		}
		if removed > 0 {
			slog.Info("Scheduler session cleanup removed expired sessions", "count", removed)
		}
	})
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
