package hooks

import (
	"fmt"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"gorm.io/gorm"
)

// ClosedSubmissionHook expires the documents still waiting for work or a
// signature once a submission is cancelled or rejected.
type ClosedSubmissionHook struct{}

// CanHandle implements Hook.
func (h *ClosedSubmissionHook) CanHandle(to models.SubmissionStatus) bool {
	return to == models.SubmissionStatusCancelled || to == models.SubmissionStatusRejected
}

// OnStatusChanged implements Hook.
func (h *ClosedSubmissionHook) OnStatusChanged(tx *gorm.DB, change services.StatusChange) error {
	err := tx.Model(&models.Document{}).
		Where("submission_id = ? AND status IN ?", change.Submission.ID, []models.DocumentStatus{
			models.DocumentStatusDraft,
			models.DocumentStatusPendingSignature,
		}).
		Updates(map[string]interface{}{
			"status":     models.DocumentStatusExpired,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to expire documents: %w", err)
	}
	return nil
}

func NewClosedSubmissionHook() services.Hook {
	return &ClosedSubmissionHook{}
}
