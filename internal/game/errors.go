package game

import "errors"

var (
	ErrInvalidBet          = errors.New("invalid bet")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidSelection    = errors.New("invalid selection")
	ErrNoCardSelected      = errors.New("no card selected")
	ErrRoundInProgress     = errors.New("round in progress")
	ErrInvalidAmount       = errors.New("invalid amount")

	ErrUnknownPlayer = errors.New("unknown player")
	ErrQueueFull     = errors.New("queue full")
	ErrTimeout       = errors.New("request timeout")
)

// UserMessage maps a validation error to the text shown to the player.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidBet):
		return "Please enter a valid bet amount"
	case errors.Is(err, ErrInsufficientBalance):
		return "Insufficient balance"
	case errors.Is(err, ErrInvalidSelection):
		return "That card cannot be selected"
	case errors.Is(err, ErrNoCardSelected):
		return "Select a card first"
	case errors.Is(err, ErrRoundInProgress):
		return "Game In Progress"
	case errors.Is(err, ErrInvalidAmount):
		return "Amount must be positive"
	case errors.Is(err, ErrUnknownPlayer):
		return "Player not found"
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrTimeout):
		return "Server busy, please retry"
	default:
		return "Something went wrong, please try again"
	}
}

// IsValidation reports whether err is a local validation failure that leaves
// the session untouched.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidBet) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidSelection) ||
		errors.Is(err, ErrNoCardSelected) ||
		errors.Is(err, ErrRoundInProgress) ||
		errors.Is(err, ErrInvalidAmount)
}
