package server

import (
	"strings"

	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMe handles GET /api/me
// @Summary Get current user
// @Description Returns the viewer with their profile, or null when anonymous
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Router /me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.accountService.Me(c.UserContext(), middleware.ViewerID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	if user == nil {
		return c.JSON(nil)
	}
	return c.JSON(user)
}

// GetMyLikes handles GET /api/me/likes
// @Summary Posts the viewer liked
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Post
// @Router /me/likes [get]
func (s *Server) GetMyLikes(c *fiber.Ctx) error {
	posts, err := s.engagementService.LikedPosts(c.UserContext(), middleware.ViewerID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// GetMySaves handles GET /api/me/saves
// @Summary Posts the viewer saved
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Post
// @Router /me/saves [get]
func (s *Server) GetMySaves(c *fiber.Ctx) error {
	posts, err := s.engagementService.SavedPosts(c.UserContext(), middleware.ViewerID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// GetAccountData handles GET /api/me/account
// @Summary Account credential state
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.AccountData
// @Router /me/account [get]
func (s *Server) GetAccountData(c *fiber.Ctx) error {
	data, err := s.accountService.RequestUserData(c.UserContext(), middleware.ViewerID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(data)
}

// CreateProfile handles PUT /api/me/profile
// @Summary Complete the profile after signup
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param username formData string false "New username"
// @Param bio formData string false "Bio"
// @Param avatar formData file false "Avatar"
// @Param banner formData file false "Banner"
// @Success 200 {object} models.User
// @Failure 409 {object} models.ErrorResponse
// @Router /me/profile [put]
func (s *Server) CreateProfile(c *fiber.Ctx) error {
	in, err := profileInput(c)
	if err != nil {
		return s.respondError(c, err)
	}
	user, err := s.accountService.CreateProfile(c.UserContext(), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateProfile handles PATCH /api/me/profile
// @Summary Update the profile
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param name formData string false "Display name"
// @Param bio formData string false "Bio"
// @Param avatar formData file false "Avatar"
// @Param banner formData file false "Banner"
// @Success 200 {object} models.User
// @Router /me/profile [patch]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	in, err := profileInput(c)
	if err != nil {
		return s.respondError(c, err)
	}
	user, err := s.accountService.UpdateProfile(c.UserContext(), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

// UpdatePassword handles PUT /api/me/password
// @Summary Change or set the password
// @Tags users
// @Accept json
// @Security BearerAuth
// @Param request body object{old_password=string,new_password=string,confirm_password=string} true "Passwords"
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Router /me/password [put]
func (s *Server) UpdatePassword(c *fiber.Ctx) error {
	var req struct {
		OldPassword     string `json:"old_password"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, models.NewValidationError("Invalid request body"))
	}
	err := s.accountService.UpdatePassword(c.UserContext(), service.UpdatePasswordInput{
		UserID:          middleware.ViewerID(c),
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteAccount handles DELETE /api/me
// @Summary Delete the account
// @Description Requires the confirmation phrase in the body
// @Tags users
// @Accept json
// @Security BearerAuth
// @Param request body object{confirmation=string} true "Confirmation"
// @Success 204
// @Router /me [delete]
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	var req struct {
		Confirmation string `json:"confirmation"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, models.NewValidationError("Invalid request body"))
	}
	if err := s.accountService.DeleteAccount(c.UserContext(), middleware.ViewerID(c), req.Confirmation); err != nil {
		return s.respondError(c, err)
	}
	s.revokeAfterDelete(c, middleware.ViewerID(c))
	return c.SendStatus(fiber.StatusNoContent)
}

// GetUserProfile handles GET /api/users/:username
// @Summary Public profile
// @Description Private posts and engagement lists are only visible to the owner
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} models.ProfileView
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{username} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	view, err := s.profileService.GetProfile(c.UserContext(), c.Params("username"), middleware.ViewerID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(view)
}

// profileInput accepts a JSON body with data URL images or a multipart form.
func profileInput(c *fiber.Ctx) (service.ProfileInput, error) {
	in := service.ProfileInput{UserID: middleware.ViewerID(c)}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var req profileRequest
		if err := c.BodyParser(&req); err != nil {
			return in, models.NewValidationError("Invalid request body")
		}
		return req.toInput(in.UserID)
	}

	var err error
	in.Username = formString(c, "username")
	in.Name = formString(c, "name")
	in.Bio = formString(c, "bio")
	if in.Avatar, err = formImage(c, "avatar"); err != nil {
		return in, err
	}
	if in.Banner, err = formImage(c, "banner"); err != nil {
		return in, err
	}
	return in, nil
}

type profileRequest struct {
	Username *string `json:"username"`
	Name     *string `json:"name"`
	Bio      *string `json:"bio"`
	Avatar   string  `json:"avatar"`
	Banner   string  `json:"banner"`
}

func (r profileRequest) toInput(userID uint) (service.ProfileInput, error) {
	in := service.ProfileInput{UserID: userID, Username: r.Username, Name: r.Name, Bio: r.Bio}
	var err error
	if r.Avatar != "" {
		if in.Avatar, err = service.ImageFromDataURL(r.Avatar); err != nil {
			return in, err
		}
	}
	if r.Banner != "" {
		if in.Banner, err = service.ImageFromDataURL(r.Banner); err != nil {
			return in, err
		}
	}
	return in, nil
}
