package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"scratch2x/internal/game"
)

type gameRequest struct {
	UserID string `json:"user_id"`
	// Bet is accepted as a JSON number or string.
	Bet   betValue `json:"bet"`
	Index *int     `json:"index"`
}

type betValue string

func (b *betValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = ""
		return nil
	}
	*b = betValue(strings.Trim(string(data), `"`))
	return nil
}

func (s *FiberServer) parseGameRequest(c *fiber.Ctx) (gameRequest, error) {
	var req gameRequest
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.UserID == "" {
		return req, fiber.NewError(fiber.StatusBadRequest, "User ID is required")
	}
	return req, nil
}

func (s *FiberServer) gameSnapshotHandler(c *fiber.Ctx) error {
	snap, err := s.gameManager.Snapshot(c.UserContext(), c.Params("userId"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(snap)
}

func (s *FiberServer) startRoundHandler(c *fiber.Ctx) error {
	req, err := s.parseGameRequest(c)
	if err != nil {
		return err
	}
	raw := string(req.Bet)
	if raw == "" {
		raw = game.DefaultBet.String()
	}
	bet, err := game.ParseBet(raw)
	if err != nil {
		return s.writeError(c, err)
	}

	snap, err := s.gameManager.StartRound(c.UserContext(), req.UserID, bet)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(snap)
}

func (s *FiberServer) selectCardHandler(c *fiber.Ctx) error {
	req, err := s.parseGameRequest(c)
	if err != nil {
		return err
	}
	if req.Index == nil {
		return badRequest(c, "Card index is required")
	}

	snap, err := s.gameManager.SelectCard(c.UserContext(), req.UserID, *req.Index)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(snap)
}

func (s *FiberServer) dismissHandler(c *fiber.Ctx) error {
	req, err := s.parseGameRequest(c)
	if err != nil {
		return err
	}

	snap, err := s.gameManager.Dismiss(c.UserContext(), req.UserID)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(snap)
}

func (s *FiberServer) revealHandler(c *fiber.Ctx) error {
	req, err := s.parseGameRequest(c)
	if err != nil {
		return err
	}

	snap, st, err := s.gameManager.Reveal(c.UserContext(), req.UserID)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"snapshot":   snap,
		"settlement": st,
	})
}

func (s *FiberServer) resetHandler(c *fiber.Ctx) error {
	req, err := s.parseGameRequest(c)
	if err != nil {
		return err
	}

	snap, err := s.gameManager.Reset(c.UserContext(), req.UserID)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(snap)
}

func (s *FiberServer) getUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return badRequest(c, "User ID is required")
	}

	balance, err := s.gameManager.Balance(c.UserContext(), userID)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"user_id":         userID,
		"balance":         balance,
		"balance_display": game.FormatAmount(balance),
	})
}
