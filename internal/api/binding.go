package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pharmalink/internal/api/middleware"
	"github.com/rxtech-lab/pharmalink/internal/models"
)

var validate = validator.New()

// bindJSON decodes the request body into dst and runs its validate tags. An
// empty body leaves dst untouched when optional is set.
func bindJSON(c *fiber.Ctx, dst interface{}, optional bool) error {
	if len(c.Body()) == 0 {
		if optional {
			return nil
		}
		return badRequest("request body is required")
	}
	if err := c.BodyParser(dst); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return badRequest(err.Error())
	}
	return nil
}

// currentActor returns the caller stored by the auth middleware. Routes
// without the middleware get the zero Actor, which no rule authorizes.
func currentActor(c *fiber.Ctx) models.Actor {
	actor, _ := middleware.GetActor(c)
	return actor
}

func (s *APIServer) handleMe(c *fiber.Ctx) error {
	actor := currentActor(c)
	user, err := s.svc.Users.GetUser(actor.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"user":      user,
		"role_kind": user.Role.Kind(),
	})
}
