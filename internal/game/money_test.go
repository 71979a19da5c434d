package game

import (
	"errors"
	"testing"
)

func TestParseBet(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"10", "10", false},
		{" 2.50 ", "2.5", false},
		{"", "", true},
		{"abc", "", true},
		{"0", "", true},
		{"-1", "", true},
		{"10.555", "", true},
		{"0.001", "", true},
		{"10.550", "10.55", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseBet(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidBet) {
					t.Errorf("ParseBet(%q) error = %v, want ErrInvalidBet", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBet(%q) unexpected error: %v", tt.raw, err)
			}
			if !got.Equal(amount(tt.want)) {
				t.Errorf("ParseBet(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(amount("30")); got != "₹30.00" {
		t.Errorf("FormatAmount() = %q", got)
	}
	if got := FormatAmount(amount("0.125")); got != "₹0.13" {
		t.Errorf("FormatAmount() = %q", got)
	}
}

func TestFormatINR(t *testing.T) {
	tests := []struct {
		in     string
		places int32
		want   string
	}{
		{"0", 0, "₹0"},
		{"999", 0, "₹999"},
		{"2000", 0, "₹2,000"},
		{"100000", 0, "₹1,00,000"},
		{"1000000", 2, "₹10,00,000.00"},
		{"12345678.9", 2, "₹1,23,45,678.90"},
		{"-1500", 0, "-₹1,500"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatINR(amount(tt.in), tt.places); got != tt.want {
				t.Errorf("FormatINR(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	if UserMessage(nil) != "" {
		t.Error("nil error should have no message")
	}
	if got := UserMessage(ErrInsufficientBalance); got != "Insufficient balance" {
		t.Errorf("UserMessage() = %q", got)
	}
	if !IsValidation(ErrNoCardSelected) || IsValidation(ErrTimeout) {
		t.Error("IsValidation misclassifies errors")
	}
}
