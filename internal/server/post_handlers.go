package server

import (
	"strings"

	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts?q=&limit=&offset=
// @Summary Browse or search posts
// @Description Public posts whose author name or title contains q, or that carry q as a tag or software
// @Tags posts
// @Produce json
// @Param q query string false "Search term"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c)
	posts, err := s.postService.SearchPosts(c.UserContext(), c.Query("q"), page.Limit, page.Offset, middleware.ViewerID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPostTags handles GET /api/posts/tags
// @Summary List known tags
// @Description Distinct tags of every post the viewer can see
// @Tags posts
// @Produce json
// @Success 200 {array} string
// @Router /posts/tags [get]
func (s *Server) GetPostTags(c *fiber.Ctx) error {
	tags, err := s.postService.ListTags(c.UserContext(), middleware.ViewerID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(tags)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, middleware.ViewerID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// GetPostLikers handles GET /api/posts/:id/likes
// @Summary List users who liked a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.User
// @Router /posts/{id}/likes [get]
func (s *Server) GetPostLikers(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	users, err := s.engagementService.ListLikers(c.UserContext(), id, middleware.ViewerID(c), c.QueryInt("limit", 0))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(users)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param tags formData string false "Comma separated tags"
// @Param softwares formData string false "Comma separated softwares"
// @Param is_private formData bool false "Private post"
// @Param image formData file true "Image"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	img, err := formImage(c, "image")
	if err != nil {
		return s.respondError(c, err)
	}
	private, err := formBool(c, "is_private")
	if err != nil {
		return s.respondError(c, err)
	}
	tags, _ := formLabels(c, "tags")
	softwares, _ := formLabels(c, "softwares")

	in := service.CreatePostInput{
		AuthorID:  middleware.ViewerID(c),
		Title:     c.FormValue("title"),
		Tags:      tags,
		Softwares: softwares,
		Image:     img,
	}
	if private != nil {
		in.IsPrivate = *private
	}

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PATCH /api/posts/:id
// @Summary Update a post
// @Description Partial update; omitted fields keep their value
// @Tags posts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	in := service.UpdatePostInput{ActorID: middleware.ViewerID(c), PostID: id}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var req struct {
			Title     *string  `json:"title"`
			Tags      []string `json:"tags"`
			Softwares []string `json:"softwares"`
			IsPrivate *bool    `json:"is_private"`
			Image     string   `json:"image"`
		}
		if err := c.BodyParser(&req); err != nil {
			return s.respondError(c, models.NewValidationError("Invalid request body"))
		}
		in.Title, in.Tags, in.Softwares, in.IsPrivate = req.Title, req.Tags, req.Softwares, req.IsPrivate
		if req.Image != "" {
			if in.Image, err = service.ImageFromDataURL(req.Image); err != nil {
				return s.respondError(c, err)
			}
		}
	} else {
		if in.Image, err = formImage(c, "image"); err != nil {
			return s.respondError(c, err)
		}
		if in.IsPrivate, err = formBool(c, "is_private"); err != nil {
			return s.respondError(c, err)
		}
		in.Title = formString(c, "title")
		if tags, ok := formLabels(c, "tags"); ok {
			in.Tags = tags
		}
		if softwares, ok := formLabels(c, "softwares"); ok {
			in.Softwares = softwares
		}
	}

	post, err := s.postService.UpdatePost(c.UserContext(), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post and its image
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), middleware.ViewerID(c), id); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /api/posts/:id/like
// @Summary Toggle like
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.EngagementState
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	state, err := s.engagementService.ToggleLike(c.UserContext(), middleware.ViewerID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(state)
}

// SavePost handles POST /api/posts/:id/save
// @Summary Toggle save
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.EngagementState
// @Router /posts/{id}/save [post]
func (s *Server) SavePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	state, err := s.engagementService.ToggleSave(c.UserContext(), middleware.ViewerID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(state)
}
