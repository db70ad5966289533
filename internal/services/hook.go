package services

import (
	"github.com/rxtech-lab/pharmalink/internal/models"
	"gorm.io/gorm"
)

// StatusChange describes one successful submission transition.
type StatusChange struct {
	Submission models.Submission
	From       models.SubmissionStatus
	To         models.SubmissionStatus
	Actor      models.Actor
	Reason     string
}

// Hook is used to perform actions when a submission changes status
type Hook interface {
	// CanHandle is used to check if the hook cares about the target status
	CanHandle(to models.SubmissionStatus) bool
	// OnStatusChanged runs inside the transaction that saved the change
	OnStatusChanged(tx *gorm.DB, change StatusChange) error
}
