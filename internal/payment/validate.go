package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError carries a message that is safe to show the player.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

var (
	minDeposit = map[Currency]decimal.Decimal{
		INR: decimal.NewFromInt(100),
		USD: decimal.NewFromInt(1),
		EUR: decimal.NewFromInt(1),
		GBP: decimal.NewFromInt(1),
	}
	maxDeposit = map[Currency]decimal.Decimal{
		INR: decimal.NewFromInt(1000000),
		USD: decimal.NewFromInt(10000),
		EUR: decimal.NewFromInt(10000),
		GBP: decimal.NewFromInt(10000),
	}

	MinWithdrawal = decimal.NewFromInt(1000)

	UPIApps = []string{"gpay", "phonepe", "paytm", "bhim"}
	Banks   = []string{"sbi", "hdfc", "icici", "axis", "kotak"}
)

func supportedMethod(m Method) bool {
	for _, s := range Methods {
		if s == m {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	v = strings.ToLower(v)
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ValidateDeposit checks a deposit against the per-currency limits and the
// method's required fields.
func ValidateDeposit(req DepositRequest) error {
	if req.PlayerID == "" || req.Amount.IsZero() || req.SourceCurrency == "" || req.Method == "" {
		return invalid("Missing required fields")
	}
	if !supportedMethod(req.Method) {
		return invalid("Unsupported payment method")
	}
	if !req.SourceCurrency.IsFiat() {
		return invalid("Unsupported currency %s", req.SourceCurrency)
	}

	if lo := minDeposit[req.SourceCurrency]; req.Amount.LessThan(lo) {
		return invalid("Minimum deposit amount is %s %s", req.SourceCurrency, lo)
	}
	if hi := maxDeposit[req.SourceCurrency]; req.Amount.GreaterThan(hi) {
		return invalid("Maximum deposit amount is %s %s", req.SourceCurrency, hi)
	}

	switch req.Method {
	case MethodUPI:
		if !contains(UPIApps, req.UPIApp) {
			return invalid("Please select a UPI app")
		}
	case MethodBank:
		if !contains(Banks, req.BankName) {
			return invalid("Please select a bank")
		}
	}
	return nil
}

// ValidateWithdrawal checks the fields a payout needs. The balance check
// happens against the ledger at debit time.
func ValidateWithdrawal(req WithdrawalRequest) error {
	if req.PlayerID == "" || req.Amount.IsZero() || req.Method == "" {
		return invalid("Missing required parameters")
	}
	if !supportedMethod(req.Method) || req.Method == MethodCard {
		return invalid("Unsupported withdrawal method")
	}
	if req.Amount.LessThan(MinWithdrawal) {
		return invalid("Minimum withdrawal amount is ₹%s", MinWithdrawal)
	}

	switch {
	case req.Method == MethodUPI:
		if strings.TrimSpace(req.UPIID) == "" {
			return invalid("Please enter your UPI ID")
		}
	case req.Method == MethodBank:
		if strings.TrimSpace(req.AccountNumber) == "" {
			return invalid("Please enter your account number")
		}
		if strings.TrimSpace(req.IFSCCode) == "" {
			return invalid("Please enter IFSC code")
		}
		if strings.TrimSpace(req.AccountHolderName) == "" {
			return invalid("Please enter account holder name")
		}
	case req.Method.IsCrypto():
		if strings.TrimSpace(req.Address) == "" {
			return invalid("Please enter a withdrawal address")
		}
	}
	return nil
}
