package server

import (
	"encoding/json"
	"errors"
	"strings"

	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/service"

	"github.com/gofiber/fiber/v2"
)

type procedureFunc func(c *fiber.Ctx, viewerID uint, input json.RawMessage) (any, error)

// procedure is a named query or mutation exposed under /api/rpc.
type procedure struct {
	mutation bool
	auth     bool
	call     procedureFunc
}

type rpcResult struct {
	Result any `json:"result"`
}

func query(call procedureFunc) procedure     { return procedure{call: call} }
func authQuery(call procedureFunc) procedure { return procedure{auth: true, call: call} }
func mutation(call procedureFunc) procedure  { return procedure{mutation: true, auth: true, call: call} }

type idInput struct {
	ID uint `json:"id"`
}

type searchInput struct {
	Q      string `json:"q"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type postInput struct {
	ID        uint     `json:"id"`
	Title     *string  `json:"title"`
	Tags      []string `json:"tags"`
	Softwares []string `json:"softwares"`
	IsPrivate *bool    `json:"is_private"`
	Image     string   `json:"image"`
}

func (s *Server) registerProcedures() map[string]procedure {
	return map[string]procedure{
		"posts.allPosts": query(func(c *fiber.Ctx, viewerID uint, raw json.RawMessage) (any, error) {
			var in searchInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return s.postService.SearchPosts(c.UserContext(), in.Q, in.Limit, in.Offset, viewerID)
		}),
		"posts.post": query(func(c *fiber.Ctx, viewerID uint, raw json.RawMessage) (any, error) {
			var in idInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return s.postService.GetPost(c.UserContext(), in.ID, viewerID)
		}),
		"posts.getAllTags": query(func(c *fiber.Ctx, viewerID uint, _ json.RawMessage) (any, error) {
			return s.postService.ListTags(c.UserContext(), viewerID)
		}),
		"posts.likedPosts": authQuery(func(c *fiber.Ctx, viewerID uint, _ json.RawMessage) (any, error) {
			return s.engagementService.LikedPosts(c.UserContext(), viewerID)
		}),
		"posts.savedPosts": authQuery(func(c *fiber.Ctx, viewerID uint, _ json.RawMessage) (any, error) {
			return s.engagementService.SavedPosts(c.UserContext(), viewerID)
		}),
		"posts.newPost": mutation(func(c *fiber.Ctx, viewerID uint, raw json.RawMessage) (any, error) {
			var in postInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			create := service.CreatePostInput{AuthorID: viewerID, Tags: in.Tags, Softwares: in.Softwares}
			if in.Title != nil {
				create.Title = *in.Title
			}
			if in.IsPrivate != nil {
				create.IsPrivate = *in.IsPrivate
			}
			if in.Image != "" {
				img, err := service.ImageFromDataURL(in.Image)
				if err != nil {
					return nil, err
				}
				create.Image = img
			}
			return s.postService.CreatePost(c.UserContext(), create)
		}),
		"posts.updatePost": mutation(func(c *fiber.Ctx, viewerID uint, raw json.RawMessage) (any, error) {
			var in postInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			update := service.UpdatePostInput{
				ActorID:   viewerID,
				PostID:    in.ID,
				Title:     in.Title,
				Tags:      in.Tags,
				Softwares: in.Softwares,
				IsPrivate: in.IsPrivate,
			}
			if in.Image != "" {
				img, err := service.ImageFromDataURL(in.Image)
				if err != nil {
					return nil, err
				}
				update.Image = img
			}
			return s.postService.UpdatePost(c.UserContext(), update)
		}),
		"posts.deletePost": mutation(func(c *fiber.Ctx, viewerID uint, raw json.RawMessage) (any, error) {
			var in idInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			if err := s.postService.DeletePost(c.UserContext(), viewerID, in.ID); err != nil {
				return nil, err
			}
			return fiber.Map{"id": in.ID, "deleted": true}, nil
		}),
		"posts.likePost": mutation(func(c *fiber.Ctx, viewerID uint, raw json.RawMessage) (any, error) {
			var in idInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return s.engagementService.ToggleLike(c.UserContext(), viewerID, in.ID)
		}),
		"posts.savePost": mutation(func(c *fiber.Ctx, viewerID uint, raw json.RawMessage) (any, error) {
			var in idInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return s.engagementService.ToggleSave(c.UserContext(), viewerID, in.ID)
		}),
		"users.me": query(func(c *fiber.Ctx, viewerID uint, _ json.RawMessage) (any, error) {
			return s.accountService.Me(c.UserContext(), viewerID)
		}),
		"users.user": query(func(c *fiber.Ctx, viewerID uint, raw json.RawMessage) (any, error) {
			var in struct {
				Username string `json:"username"`
			}
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return s.profileService.GetProfile(c.UserContext(), in.Username, viewerID)
		}),
		"users.requestUserData": authQuery(func(c *fiber.Ctx, viewerID uint, _ json.RawMessage) (any, error) {
			return s.accountService.RequestUserData(c.UserContext(), viewerID)
		}),
		"users.signup": {mutation: true, call: func(c *fiber.Ctx, _ uint, raw json.RawMessage) (any, error) {
			var in struct {
				Username string `json:"username"`
				Email    string `json:"email"`
				Password string `json:"password"`
				Name     string `json:"name"`
			}
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			user, err := s.accountService.Signup(c.UserContext(), service.SignupInput{
				Username: in.Username,
				Email:    in.Email,
				Password: in.Password,
				Name:     in.Name,
			})
			if err != nil {
				return nil, err
			}
			return s.issue(user)
		}},
		"users.createProfile": mutation(func(c *fiber.Ctx, viewerID uint, raw json.RawMessage) (any, error) {
			var in profileRequest
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			profile, err := in.toInput(viewerID)
			if err != nil {
				return nil, err
			}
			return s.accountService.CreateProfile(c.UserContext(), profile)
		}),
		"users.updateProfile": mutation(func(c *fiber.Ctx, viewerID uint, raw json.RawMessage) (any, error) {
			var in profileRequest
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			profile, err := in.toInput(viewerID)
			if err != nil {
				return nil, err
			}
			return s.accountService.UpdateProfile(c.UserContext(), profile)
		}),
		"users.updatePassword": mutation(func(c *fiber.Ctx, viewerID uint, raw json.RawMessage) (any, error) {
			var in struct {
				OldPassword     string `json:"old_password"`
				NewPassword     string `json:"new_password"`
				ConfirmPassword string `json:"confirm_password"`
			}
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			err := s.accountService.UpdatePassword(c.UserContext(), service.UpdatePasswordInput{
				UserID:          viewerID,
				OldPassword:     in.OldPassword,
				NewPassword:     in.NewPassword,
				ConfirmPassword: in.ConfirmPassword,
			})
			if err != nil {
				return nil, err
			}
			return fiber.Map{"updated": true}, nil
		}),
		"users.deleteAccount": mutation(func(c *fiber.Ctx, viewerID uint, raw json.RawMessage) (any, error) {
			var in struct {
				Confirmation string `json:"confirmation"`
			}
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			if err := s.accountService.DeleteAccount(c.UserContext(), viewerID, in.Confirmation); err != nil {
				return nil, err
			}
			s.revokeAfterDelete(c, viewerID)
			return fiber.Map{"deleted": true}, nil
		}),
	}
}

// HandleRPC dispatches GET /api/rpc/:procedure?input= and POST /api/rpc/:procedure.
// @Summary Named procedure call
// @Description Queries use GET with a JSON input query parameter, mutations use POST with a JSON body
// @Tags rpc
// @Accept json
// @Produce json
// @Param procedure path string true "Procedure name, e.g. posts.allPosts"
// @Param input query string false "JSON encoded input for queries"
// @Success 200 {object} rpcResult
// @Failure 404 {object} models.ErrorResponse
// @Failure 405 {object} models.ErrorResponse
// @Router /rpc/{procedure} [get]
// @Router /rpc/{procedure} [post]
func (s *Server) HandleRPC(c *fiber.Ctx) error {
	name := c.Params("procedure")
	proc, ok := s.procedures[name]
	if !ok {
		return s.respondError(c, &models.AppError{Code: models.CodeNotFound, Message: "Unknown procedure " + name})
	}

	var raw json.RawMessage
	switch c.Method() {
	case fiber.MethodGet:
		if proc.mutation {
			return s.methodNotAllowed(c, name, fiber.MethodPost)
		}
		if in := strings.TrimSpace(c.Query("input")); in != "" {
			raw = json.RawMessage(in)
		}
	case fiber.MethodPost:
		if !proc.mutation {
			return s.methodNotAllowed(c, name, fiber.MethodGet)
		}
		if body := c.Body(); len(body) > 0 {
			raw = append(json.RawMessage(nil), body...)
		}
	}

	viewerID := middleware.ViewerID(c)
	if proc.auth && viewerID == 0 {
		return s.respondError(c, models.NewUnauthorizedError("Authentication required"))
	}

	result, err := proc.call(c, viewerID, raw)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(rpcResult{Result: result})
}

func (s *Server) methodNotAllowed(c *fiber.Ctx, name, allow string) error {
	c.Set(fiber.HeaderAllow, allow)
	return s.respondError(c, &models.AppError{Code: models.CodeMethodNotAllowed, Message: name + " must be called with " + allow})
}

func decodeInput(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return models.NewValidationError("Input is not valid JSON")
		}
		return models.NewValidationError("Invalid input: " + err.Error())
	}
	return nil
}
