package services

import (
	"fmt"

	"gorm.io/gorm"
)

type HookService interface {
	AddHook(hook Hook) error
	OnStatusChanged(tx *gorm.DB, change StatusChange) error
}

type hookService struct {
	hooks []Hook
}

func NewHookService() HookService {
	return &hookService{
		hooks: []Hook{},
	}
}

func (h *hookService) AddHook(hook Hook) error {
	if hook == nil {
		return fmt.Errorf("hook must not be nil")
	}
	h.hooks = append(h.hooks, hook)
	return nil
}

// OnStatusChanged runs the matching hooks in registration order and stops at
// the first error, which rolls back the surrounding transaction.
func (h *hookService) OnStatusChanged(tx *gorm.DB, change StatusChange) error {
	for _, hook := range h.hooks {
		if hook.CanHandle(change.To) {
			if err := hook.OnStatusChanged(tx, change); err != nil {
				return err
			}
		}
	}
	return nil
}
