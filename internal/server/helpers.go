package server

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/service"
	"inspiro/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts limit and offset; the repository clamps them.
func parsePagination(c *fiber.Ctx) Pagination {
	return Pagination{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
}

// mapServiceError maps an AppError code onto an HTTP status.
func mapServiceError(err error) int {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Status()
	}
	return fiber.StatusInternalServerError
}

// respondError writes the error envelope. Internal causes are only exposed
// outside production.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	appErr := models.AsAppError(err)
	return models.RespondWithError(c, mapServiceError(appErr), appErr, !s.config.IsProduction())
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = s.respondError(c, models.NewValidationError("Invalid "+strings.ToUpper(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// formImage reads an optional image upload from a multipart field. A
// "<field>_data_url" form value is accepted as well.
func formImage(c *fiber.Ctx, field string) (*service.ImageInput, error) {
	if file, err := c.FormFile(field); err == nil {
		src, err := file.Open()
		if err != nil {
			return nil, models.NewValidationError("Unable to read uploaded file")
		}
		defer func() { _ = src.Close() }()

		content, err := io.ReadAll(src)
		if err != nil {
			return nil, models.NewValidationError("Unable to read uploaded file")
		}
		return &service.ImageInput{
			Filename:    file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Data:        content,
		}, nil
	}
	if raw := strings.TrimSpace(c.FormValue(field + "_data_url")); raw != "" {
		img, err := service.ImageFromDataURL(raw)
		if err != nil {
			return nil, models.AsAppError(err)
		}
		return img, nil
	}
	return nil, nil
}

// formLabels reads a label set sent either as repeated fields or as one
// comma separated value. ok is false when the field is absent.
func formLabels(c *fiber.Ctx, field string) ([]string, bool) {
	form, err := c.MultipartForm()
	if err == nil && form != nil {
		if values, present := form.Value[field]; present {
			return joinLabelValues(values), true
		}
	}
	if !c.Request().PostArgs().Has(field) {
		return nil, false
	}
	var values []string
	for _, v := range c.Request().PostArgs().PeekMulti(field) {
		values = append(values, string(v))
	}
	return joinLabelValues(values), true
}

func joinLabelValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, validation.SplitLabels(v)...)
	}
	return out
}

// formBool parses an optional boolean form value.
func formBool(c *fiber.Ctx, field string) (*bool, error) {
	raw := strings.TrimSpace(c.FormValue(field))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, models.NewValidationError(field + " must be a boolean")
	}
	return &v, nil
}

// formString returns a pointer to the value when the field was sent.
func formString(c *fiber.Ctx, field string) *string {
	form, err := c.MultipartForm()
	if err == nil && form != nil {
		if values, ok := form.Value[field]; ok && len(values) > 0 {
			return &values[0]
		}
		return nil
	}
	if c.Request().PostArgs().Has(field) {
		v := string(c.Request().PostArgs().Peek(field))
		return &v
	}
	return nil
}

// revokeAfterDelete retires the caller's token once the account is gone. The
// account no longer exists, so a failure only leaves a dangling token.
func (s *Server) revokeAfterDelete(c *fiber.Ctx, userID uint) {
	if err := middleware.RevokeToken(c.UserContext(), s.redis, middleware.Claims(c)); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "failed to revoke token of deleted account",
			slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}
