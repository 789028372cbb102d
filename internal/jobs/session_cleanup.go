// File: internal/jobs/session_cleanup.go
package jobs

import (
	"context"
	"time"

	"starterkit_backend/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sessionCleanupTimeout = 5 * time.Minute

// SessionPurger deletes persisted sessions that expired before a cutoff.
// user.Repository satisfies it.
type SessionPurger interface {
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// SessionCleanupJob periodically removes expired session rows.
type SessionCleanupJob struct {
	purger        SessionPurger
	logger        *zap.Logger
	schedule      string
	cronScheduler *cron.Cron
	now           func() time.Time
}

// NewSessionCleanupJob creates a new SessionCleanupJob.
func NewSessionCleanupJob(purger SessionPurger, logger *zap.Logger, cfg *config.Config) *SessionCleanupJob {
	scheduler := cron.New(cron.WithLogger(NewCronLogger(logger.Named("cron"))))

	return &SessionCleanupJob{
		purger:        purger,
		logger:        logger.Named("SessionCleanupJob"),
		schedule:      cfg.SessionCleanupJobSchedule,
		cronScheduler: scheduler,
		now:           time.Now,
	}
}

// SetupAndStart schedules and starts the cron job. An empty schedule disables it.
func (j *SessionCleanupJob) SetupAndStart() error {
	if j.schedule == "" {
		j.logger.Warn("Session cleanup job schedule not defined (SESSION_CLEANUP_JOB_SCHEDULE). Job will not run.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(j.schedule, j.runJob)
	if err != nil {
		j.logger.Error("Failed to schedule session cleanup job", zap.String("schedule", j.schedule), zap.Error(err))
		return err
	}

	j.logger.Info("Session cleanup job scheduled", zap.String("schedule", j.schedule), zap.Any("jobID", jobID))
	j.cronScheduler.Start()
	return nil
}

func (j *SessionCleanupJob) runJob() {
	j.logger.Info("Starting session cleanup job run...")
	ctx, cancel := context.WithTimeout(context.Background(), sessionCleanupTimeout)
	defer cancel()

	if _, err := j.RunOnce(ctx); err != nil {
		j.logger.Error("Session cleanup job run failed", zap.Error(err))
	}
}

// RunOnce deletes every session that has already expired and returns how many went.
func (j *SessionCleanupJob) RunOnce(ctx context.Context) (int64, error) {
	deleted, err := j.purger.DeleteExpiredSessions(ctx, j.now())
	if err != nil {
		return 0, err
	}
	j.logger.Info("Session cleanup job run completed", zap.Int64("sessions_deleted", deleted))
	return deleted, nil
}

// Stop gracefully stops the cron scheduler.
func (j *SessionCleanupJob) Stop() {
	if j.cronScheduler == nil {
		return
	}
	j.logger.Info("Stopping session cleanup job scheduler...")
	stopCtx := j.cronScheduler.Stop()
	select {
	case <-stopCtx.Done():
		j.logger.Info("Session cleanup job scheduler stopped gracefully.")
	case <-time.After(10 * time.Second):
		j.logger.Warn("Session cleanup job scheduler stop timed out.")
	}
}
