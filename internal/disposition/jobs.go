package disposition

import (
	"context"
	"errors"
	"log"

	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/store"
)

// DueReplyJobs lists reply jobs whose delay has elapsed.
func (e *Engine) DueReplyJobs(ctx context.Context, limit int) ([]models.ReplyJob, error) {
	return e.store.DueReplyJobs(ctx, e.now(), limit)
}

// ProcessJob claims a due reply job and answers its message. A job another
// worker already claimed is left alone and reported as AlreadyResolved.
func (e *Engine) ProcessJob(ctx context.Context, job models.ReplyJob) (Outcome, error) {
	claimed, err := e.store.ClaimReplyJob(ctx, job.ID)
	if err != nil {
		return OutcomeFailed, err
	}
	if !claimed {
		return OutcomeAlreadyResolved, nil
	}

	msg, err := e.store.GetMessage(ctx, job.MessageID)
	if errors.Is(err, store.ErrNotFound) {
		e.finishJob(ctx, job.ID, models.JobSkipped, "message not found")
		return OutcomeSkipped, nil
	}
	if err != nil {
		e.finishJob(ctx, job.ID, models.JobFailed, err.Error())
		return OutcomeFailed, err
	}

	outcome := e.respond(ctx, msg)
	switch outcome {
	case OutcomeSent, OutcomeSentForReview, OutcomeEscalated:
		e.finishJob(ctx, job.ID, models.JobDone, "")
	case OutcomeFailed:
		e.finishJob(ctx, job.ID, models.JobFailed, "reply not sent")
	default:
		e.finishJob(ctx, job.ID, models.JobSkipped, string(outcome))
	}
	log.Printf("Reply job %d for %s: %s", job.ID, job.MessageID, outcome)
	return outcome, nil
}

func (e *Engine) finishJob(ctx context.Context, id uint, status models.JobStatus, reason string) {
	if err := e.store.FinishReplyJob(ctx, id, status, reason); err != nil {
		log.Printf("Error finishing reply job %d: %v", id, err)
	}
}
