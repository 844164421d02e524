package server

import (
	"strings"
	"time"

	"keystone/internal/auth"
	"keystone/internal/models"
	"keystone/internal/service"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone" validate:"max=32"`
	Name      string `json:"name" validate:"max=100"`
	AvatarURL string `json:"avatarUrl" validate:"max=512"`
}

func (r registerRequest) input() service.RegisterInput {
	return service.RegisterInput{
		Username:  r.Username,
		Email:     r.Email,
		Password:  r.Password,
		Phone:     r.Phone,
		Name:      r.Name,
		AvatarURL: r.AvatarURL,
	}
}

// loginRequest accepts the store's identifier field and the tracker's username field.
type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (r loginRequest) identifier() string {
	for _, v := range []string{r.Identifier, r.Username, r.Email} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Register handles POST /api/auth/register
// @Summary Register a store account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string,phone=string,name=string,avatarUrl=string} true "Register request"
// @Success 201 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	in := req.input()
	in.TTL = s.config.StoreTokenTTL
	res, err := s.authService.Register(c.UserContext(), in)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// Login handles POST /api/auth/login
// @Summary Log in with a username or email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{identifier=string,password=string} true "Login credentials"
// @Success 200 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	return s.login(c, s.config.StoreTokenTTL)
}

// Signup handles POST /auth/signup and its /auth/register alias on the tracker surface.
// Tracker sessions use the shorter tracker token lifetime.
func (s *Server) Signup(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	in := req.input()
	in.TTL = s.config.TrackerTokenTTL
	res, err := s.authService.Register(c.UserContext(), in)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"token":   res.Token,
		"user":    res.User,
	})
}

// TrackerLogin handles POST /auth/login
func (s *Server) TrackerLogin(c *fiber.Ctx) error {
	return s.login(c, s.config.TrackerTokenTTL)
}

func (s *Server) login(c *fiber.Ctx, ttl time.Duration) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.authService.Login(c.UserContext(), service.LoginInput{
		Identifier: req.identifier(),
		Password:   req.Password,
		TTL:        ttl,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(res)
}

// Logout handles POST /api/auth/logout
// @Summary Revoke the current token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*auth.Claims)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Missing token"))
	}
	if err := s.authService.Logout(c.UserContext(), claims); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}
