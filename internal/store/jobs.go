package store

import (
	"context"
	"fmt"
	"time"

	"whatsapp-assistant/internal/models"

	"gorm.io/gorm"
)

func (s *Store) EnqueueReplyJob(ctx context.Context, job *models.ReplyJob) error {
	job.NotBefore = job.NotBefore.UTC()
	if job.Status == "" {
		job.Status = models.JobPending
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("enqueue reply job for %s: %w", job.MessageID, err)
	}
	return nil
}

// DueReplyJobs returns pending jobs whose not-before time has passed.
func (s *Store) DueReplyJobs(ctx context.Context, now time.Time, limit int) ([]models.ReplyJob, error) {
	var jobs []models.ReplyJob
	err := s.db.WithContext(ctx).
		Where("status = ? AND not_before <= ?", models.JobPending, now.UTC()).
		Order("not_before ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("due reply jobs: %w", err)
	}
	return jobs, nil
}

// ClaimReplyJob moves a pending job to running. Only one caller wins.
func (s *Store) ClaimReplyJob(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.ReplyJob{}).
		Where("id = ? AND status = ?", id, models.JobPending).
		Updates(map[string]interface{}{
			"status":   models.JobRunning,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim reply job %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) FinishReplyJob(ctx context.Context, id uint, status models.JobStatus, lastError string) error {
	err := s.db.WithContext(ctx).Model(&models.ReplyJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "last_error": lastError}).Error
	if err != nil {
		return fmt.Errorf("finish reply job %d: %w", id, err)
	}
	return nil
}

// SupersedeReplyJobs retires pending jobs for a message that is being handled elsewhere.
func (s *Store) SupersedeReplyJobs(ctx context.Context, messageID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.ReplyJob{}).
		Where("message_id = ? AND status = ?", messageID, models.JobPending).
		Update("status", models.JobSuperseded)
	if res.Error != nil {
		return 0, fmt.Errorf("supersede reply jobs for %s: %w", messageID, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) ReplyJobsForMessage(ctx context.Context, messageID string) ([]models.ReplyJob, error) {
	var jobs []models.ReplyJob
	err := s.db.WithContext(ctx).Where("message_id = ?", messageID).Order("id ASC").Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("reply jobs for %s: %w", messageID, err)
	}
	return jobs, nil
}
