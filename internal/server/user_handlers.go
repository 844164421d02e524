package server

import (
	"io"

	"keystone/internal/models"
	"keystone/internal/service"

	"github.com/gofiber/fiber/v2"
)

type upsertProfileRequest struct {
	Name       string `json:"name"`
	Username   string `json:"username"`
	Phone      string `json:"phone" validate:"max=32"`
	AvatarURL  string `json:"avatarUrl" validate:"max=512"`
	IsComplete bool   `json:"isComplete"`
}

// GetMe handles GET /api/users/me
// @Summary Get the current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.userService.Me(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(user)
}

// UpsertProfile handles POST /api/users/upsert. Every field is replaced.
// @Summary Create or replace the current user's profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body upsertProfileRequest true "Profile"
// @Success 200 {object} models.Profile
// @Failure 409 {object} models.ErrorResponse
// @Router /users/upsert [post]
func (s *Server) UpsertProfile(c *fiber.Ctx) error {
	var req upsertProfileRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.userService.UpsertProfile(c.UserContext(), service.UpsertProfileInput{
		UserID:     currentUserID(c),
		Name:       req.Name,
		Username:   req.Username,
		Phone:      req.Phone,
		AvatarURL:  req.AvatarURL,
		IsComplete: req.IsComplete,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(profile)
}

// GetProfile handles GET /api/users/profile and returns {} when no profile was saved.
// @Summary Get the current user's profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile
// @Router /users/profile [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	profile, err := s.userService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	if profile == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(profile)
}

// UploadAvatar handles POST /api/users/avatar (multipart field "avatar").
// @Summary Upload an avatar image
// @Tags users
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Image (jpeg, png, gif or webp)"
// @Success 200 {object} object{avatarUrl=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	file, err := c.FormFile("avatar")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	url, err := s.avatarService.Upload(c.UserContext(), service.UploadAvatarInput{
		UserID:      currentUserID(c),
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"avatarUrl": url})
}
