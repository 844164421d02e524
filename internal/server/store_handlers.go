package server

import (
	"keystone/internal/models"
	"keystone/internal/service"

	"github.com/gofiber/fiber/v2"
)

type cartItemRequest struct {
	GameID   models.GameID `json:"gameId"`
	Name     string        `json:"name" validate:"max=200"`
	CoverURL string        `json:"coverUrl" validate:"max=1024"`
	Price    float64       `json:"price"`
}

// GetCart handles GET /api/cart
// @Summary List the cart
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.CartItem
// @Router /cart [get]
func (s *Server) GetCart(c *fiber.Ctx) error {
	items, err := s.cartService.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(items)
}

// CreateCartItem handles POST /api/cart
// @Summary Add a game to the cart
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body cartItemRequest true "Game"
// @Success 201 {object} models.CartItem
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /cart [post]
func (s *Server) CreateCartItem(c *fiber.Ctx) error {
	return s.addToCart(c, fiber.StatusCreated)
}

// AddToCart handles POST /api/cart/add. Unlike POST /api/cart it answers 200.
func (s *Server) AddToCart(c *fiber.Ctx) error {
	return s.addToCart(c, fiber.StatusOK)
}

func (s *Server) addToCart(c *fiber.Ctx, status int) error {
	var req cartItemRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	item, err := s.cartService.Add(c.UserContext(), service.AddToCartInput{
		UserID:   currentUserID(c),
		GameID:   string(req.GameID),
		Name:     req.Name,
		CoverURL: req.CoverURL,
		Price:    req.Price,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(status).JSON(item)
}

// RemoveFromCart handles POST /api/cart/remove
// @Summary Remove a game from the cart
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{gameId=string} true "Game"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} models.ErrorResponse
// @Router /cart/remove [post]
func (s *Server) RemoveFromCart(c *fiber.Ctx) error {
	var req struct {
		GameID models.GameID `json:"gameId"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.cartService.Remove(c.UserContext(), currentUserID(c), string(req.GameID)); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetSponsoredGames handles GET /api/games/sponsored
// @Summary Sponsored games
// @Tags games
// @Produce json
// @Success 200 {array} models.Game
// @Router /games/sponsored [get]
func (s *Server) GetSponsoredGames(c *fiber.Ctx) error {
	games, err := s.catalogService.Sponsored()
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(games)
}

// GetPopularGames handles GET /api/games/popular
// @Summary Popular games from RAWG
// @Tags games
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 10, max 40)"
// @Param ordering query string false "RAWG ordering (default -rating)"
// @Param publisher query string false "RAWG publisher slug or id"
// @Success 200 {array} models.Game
// @Failure 500 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /games/popular [get]
func (s *Server) GetPopularGames(c *fiber.Ctx) error {
	games, err := s.catalogService.Popular(c.UserContext(), service.PopularQuery{
		Page:      c.QueryInt("page", 1),
		PageSize:  c.QueryInt("page_size", service.DefaultPageSize),
		Ordering:  c.Query("ordering"),
		Publisher: c.Query("publisher"),
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(games)
}
