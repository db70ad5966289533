package hooks

import (
	"fmt"

	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"gorm.io/gorm"
)

// StatusHistoryHook writes the audit row for every submission transition.
type StatusHistoryHook struct{}

// CanHandle implements Hook.
func (h *StatusHistoryHook) CanHandle(to models.SubmissionStatus) bool {
	return to.IsValid()
}

// OnStatusChanged implements Hook.
func (h *StatusHistoryHook) OnStatusChanged(tx *gorm.DB, change services.StatusChange) error {
	entry := models.SubmissionStatusHistory{
		SubmissionID: change.Submission.ID,
		FromStatus:   change.From,
		ToStatus:     change.To,
		ActorID:      change.Actor.UserID,
		Reason:       change.Reason,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record status history: %w", err)
	}
	return nil
}

func NewStatusHistoryHook() services.Hook {
	return &StatusHistoryHook{}
}
