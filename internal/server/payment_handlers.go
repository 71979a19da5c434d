package server

import (
	"github.com/gofiber/fiber/v2"

	"scratch2x/internal/payment"
)

func (s *FiberServer) depositHandler(c *fiber.Ctx) error {
	if s.payments == nil {
		return unavailable(c, "payment gateway")
	}

	var req payment.DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := s.payments.Deposit(c.UserContext(), req)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":      true,
		"payment":      res.Payment,
		"instructions": res.Instructions,
	})
}

func (s *FiberServer) withdrawHandler(c *fiber.Ctx) error {
	if s.payments == nil {
		return unavailable(c, "payment gateway")
	}

	var req payment.WithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := s.payments.Withdraw(c.UserContext(), req)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":        true,
		"payment":        res.Payment,
		"estimated_time": res.EstimatedTime,
		"balance":        res.Balance,
	})
}

func (s *FiberServer) getPaymentHandler(c *fiber.Ctx) error {
	if s.payments == nil {
		return unavailable(c, "payment gateway")
	}

	p, err := s.payments.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(p)
}

// paymentStatusHandler is the provider callback that finalises a payment.
func (s *FiberServer) paymentStatusHandler(c *fiber.Ctx) error {
	if s.payments == nil {
		return unavailable(c, "payment gateway")
	}

	var body struct {
		Status payment.Status `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	p, err := s.payments.UpdateStatus(c.UserContext(), c.Params("id"), body.Status)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(p)
}

func (s *FiberServer) listPaymentsHandler(c *fiber.Ctx) error {
	if s.payments == nil {
		return unavailable(c, "payment gateway")
	}

	userID := c.Query("user_id")
	if userID == "" {
		return badRequest(c, "User ID is required")
	}

	list, err := s.payments.Transactions(c.UserContext(), userID, c.QueryInt("limit", 50))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id":      userID,
		"transactions": list,
	})
}

func (s *FiberServer) walletHandler(c *fiber.Ctx) error {
	if s.payments == nil {
		return unavailable(c, "payment gateway")
	}

	view, err := s.payments.Wallet(c.UserContext(), c.Params("userId"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(view)
}
