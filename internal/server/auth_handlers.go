package server

import (
	"time"

	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new user account with an empty profile
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string,name=string} true "Signup request"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.accountService.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	resp, err := s.issue(user)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.accountService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return s.respondError(c, err)
	}
	resp, err := s.issue(user)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(resp)
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the current access token
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := middleware.RevokeToken(c.UserContext(), s.redis, middleware.Claims(c)); err != nil {
		return s.respondError(c, models.NewInternalError(err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) issue(user *models.User) (*AuthResponse, error) {
	token, claims, err := middleware.IssueToken(s.config.JWTSecret, user.ID, user.Username, time.Now())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResponse{Token: token, ExpiresAt: claims.ExpiresAt, User: user}, nil
}
