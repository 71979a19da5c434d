package server

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"scratch2x/internal/game"
	"scratch2x/internal/metrics"
	"scratch2x/internal/payment"
	"scratch2x/internal/repository"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)
	s.App.Get("/metrics", metrics.Handler())

	api := s.App.Group("/api/v1")

	g := api.Group("/game")
	g.Get("/:userId", s.gameSnapshotHandler)
	g.Post("/start", s.startRoundHandler)
	g.Post("/select", s.selectCardHandler)
	g.Post("/dismiss", s.dismissHandler)
	g.Post("/reveal", s.revealHandler)
	g.Post("/reset", s.resetHandler)

	api.Get("/user/:userId/balance", s.getUserBalanceHandler)

	api.Post("/players", s.createPlayerHandler)
	api.Get("/players/:id", s.getPlayerHandler)
	api.Get("/players/:id/history", s.historyHandler)
	api.Get("/leaderboard", s.leaderboardHandler)

	pay := api.Group("/payments")
	pay.Get("/", s.listPaymentsHandler)
	pay.Post("/deposits", s.depositHandler)
	pay.Post("/withdrawals", s.withdrawHandler)
	pay.Get("/:id", s.getPaymentHandler)
	pay.Post("/:id/status", s.paymentStatusHandler)

	api.Get("/wallet/:userId", s.walletHandler)

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"database": fiber.Map{"status": "disabled"},
		"cache":    fiber.Map{"status": "disabled"},
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.gameHub.GetClientCount(),
		},
	}
	if s.db != nil {
		health["database"] = s.db.Health()
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	}
	return c.JSON(health)
}

func unavailable(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": what + " is not configured",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// writeError maps domain errors onto HTTP statuses. Validation failures carry
// the player-facing message.
func (s *FiberServer) writeError(c *fiber.Ctx, err error) error {
	var pv *payment.ValidationError
	switch {
	case game.IsValidation(err):
		return badRequest(c, game.UserMessage(err))
	case errors.As(err, &pv):
		return badRequest(c, pv.Message)
	case errors.Is(err, payment.ErrInvalidStatus):
		return badRequest(c, "Status must be completed or failed")
	case errors.Is(err, game.ErrQueueFull), errors.Is(err, game.ErrTimeout):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": game.UserMessage(err)})
	case errors.Is(err, game.ErrUnknownPlayer), errors.Is(err, repository.ErrPlayerNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Player not found"})
	case errors.Is(err, payment.ErrPaymentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
	case errors.Is(err, payment.ErrAlreadyFinal):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Payment already finalised"})
	case errors.Is(err, repository.ErrUsernameTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Username already taken"})
	}

	s.log.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "internal error",
		"message": game.UserMessage(err),
	})
}
