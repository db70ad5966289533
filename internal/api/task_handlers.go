package api

import (
	"github.com/gofiber/fiber/v2"
)

// handleListTasks is an administrative view of the task queue.
func (s *APIServer) handleListTasks(c *fiber.Ctx) error {
	if !currentActor(c).Role.IsAdmin() {
		return respondError(c, fiber.NewError(fiber.StatusForbidden, "only administrators list tasks"))
	}
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	page, err := s.svc.Tasks.ListTasks(f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// handleGetTask returns a task to the parties of its submission. Tasks that
// belong to no submission are visible to administrators only.
func (s *APIServer) handleGetTask(c *fiber.Ctx) error {
	task, err := s.svc.Tasks.GetTask(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	actor := currentActor(c)
	if !actor.Role.IsAdmin() {
		if task.SubmissionID == nil {
			return respondError(c, fiber.NewError(fiber.StatusNotFound, "task not found"))
		}
		if _, err := s.svc.Submissions.GetSubmissionForActor(actor, *task.SubmissionID); err != nil {
			return respondError(c, err)
		}
	}
	return c.JSON(task)
}
