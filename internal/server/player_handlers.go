package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

func (s *FiberServer) createPlayerHandler(c *fiber.Ctx) error {
	if s.players == nil {
		return unavailable(c, "player store")
	}

	var body struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		return badRequest(c, "Username is required")
	}

	player, err := s.players.CreatePlayer(c.UserContext(), username, s.defaultBalance)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(player)
}

func (s *FiberServer) getPlayerHandler(c *fiber.Ctx) error {
	if s.players == nil {
		return unavailable(c, "player store")
	}

	player, err := s.players.GetPlayer(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(player)
}

func (s *FiberServer) historyHandler(c *fiber.Ctx) error {
	if s.players == nil {
		return unavailable(c, "player store")
	}

	results, err := s.players.History(c.UserContext(), c.Params("id"), c.QueryInt("limit", 50))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id": c.Params("id"),
		"results": results,
	})
}

func (s *FiberServer) leaderboardHandler(c *fiber.Ctx) error {
	if s.players == nil {
		return unavailable(c, "player store")
	}

	entries, err := s.players.Leaderboard(c.UserContext(), c.QueryInt("limit", 10))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"leaderboard": entries})
}
