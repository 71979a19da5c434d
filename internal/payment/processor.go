package payment

import (
	"net/url"
	"strings"
)

type MerchantConfig struct {
	UPIID              string
	Name               string
	BankAccountName    string
	BankAccountNumber  string
	BankIFSCCode       string
	BankName           string
	OwnerWalletAddress string
}

var upiSchemes = map[string]string{
	"gpay":    "gpay://upi/pay",
	"phonepe": "phonepe://pay",
	"paytm":   "paytmmp://pay",
}

// UPIURL builds the deep link for the player's UPI app. Unknown apps get the
// generic upi:// scheme every app registers for.
func UPIURL(m MerchantConfig, p *Payment, app string) string {
	base, ok := upiSchemes[strings.ToLower(app)]
	if !ok {
		base = "upi://pay"
	}

	params := [][2]string{
		{"pa", m.UPIID},
		{"pn", m.Name},
		{"tn", "Payment for order " + p.ID},
		{"am", p.Amount.StringFixed(2)},
		{"cu", string(p.Currency)},
		{"tr", p.ID},
	}
	var b strings.Builder
	b.WriteString(base)
	for i, kv := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(kv[0])
		b.WriteByte('=')
		b.WriteString(strings.ReplaceAll(url.QueryEscape(kv[1]), "+", "%20"))
	}
	return b.String()
}

// instructionsFor renders what the player must do to fund a pending deposit.
func instructionsFor(m MerchantConfig, p *Payment) Instructions {
	switch {
	case p.Method == MethodUPI:
		return Instructions{PaymentURL: UPIURL(m, p, p.Details[DetailUPIApp])}
	case p.Method == MethodBank:
		return Instructions{BankDetails: &BankDetails{
			AccountName:   m.BankAccountName,
			AccountNumber: m.BankAccountNumber,
			IFSCCode:      m.BankIFSCCode,
			BankName:      m.BankName,
			Reference:     p.ID,
		}}
	case p.Method == MethodCard:
		return Instructions{ProviderReference: "card_" + strings.ReplaceAll(p.ID, "-", "")}
	case p.Method.IsCrypto():
		return Instructions{
			WalletAddress:  m.OwnerWalletAddress,
			CryptoAmount:   p.CryptoAmount,
			CryptoCurrency: Currency(p.Details[DetailTargetCurrency]),
		}
	}
	return Instructions{}
}

// EstimatedTime is what the player is told to expect for a payout.
func EstimatedTime(m Method) string {
	if m.IsCrypto() {
		return "10-30 minutes"
	}
	return "1-3 business days"
}
