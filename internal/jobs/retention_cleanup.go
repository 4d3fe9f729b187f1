package jobs

import (
	"context"
	"log"
	"time"

	"partsagent/internal/services"
)

// RetentionCleanupJob deletes conversation sessions older than the
// configured retention window. A retention of zero days disables it.
type RetentionCleanupJob struct {
	sessions      *services.SessionService
	retentionDays int
}

// NewRetentionCleanupJob creates a new retention cleanup job
func NewRetentionCleanupJob(sessions *services.SessionService, retentionDays int) *RetentionCleanupJob {
	return &RetentionCleanupJob{
		sessions:      sessions,
		retentionDays: retentionDays,
	}
}

// Run deletes sessions whose last activity is past the retention cutoff
func (j *RetentionCleanupJob) Run(ctx context.Context) error {
	if j.retentionDays <= 0 {
		log.Println("[RETENTION] Session retention cleanup disabled")
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -j.retentionDays)
	log.Printf("[RETENTION] Deleting sessions untouched since %s...", cutoff.Format(time.RFC3339))

	deleted, err := j.sessions.DeleteOlderThan(cutoff)
	if err != nil {
		log.Printf("[RETENTION] Cleanup failed: %v", err)
		return err
	}

	log.Printf("[RETENTION] Cleanup complete: deleted %d sessions", deleted)
	return nil
}

// GetNextRunTime returns the next run time (daily at 2 AM UTC)
func (j *RetentionCleanupJob) GetNextRunTime() time.Time {
	now := time.Now().UTC()

	nextRun := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, time.UTC)
	if now.After(nextRun) {
		nextRun = nextRun.Add(24 * time.Hour)
	}

	return nextRun
}
