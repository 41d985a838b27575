package server

import (
	"inspiro/internal/middleware"
	"inspiro/internal/models"

	"github.com/gofiber/fiber/v2"
)

// requireFlag answers 404 when the flag is off for the current viewer.
func (s *Server) requireFlag(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.flags.Enabled(name, middleware.ViewerID(c)) {
			return s.respondError(c, &models.AppError{Code: models.CodeNotFound, Message: "Feature not available"})
		}
		return c.Next()
	}
}

// GetFeatures reports which feature flags are on for the viewer
// @Summary Feature flags
// @Tags users
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /me/features [get]
func (s *Server) GetFeatures(c *fiber.Ctx) error {
	return c.JSON(s.flags.Snapshot(middleware.ViewerID(c)))
}
