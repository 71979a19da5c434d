package game

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

// fixed returns a source that always lands in the same table band:
// 0.10 -> 0.00x, 0.96 -> 2.00x, 0.999 -> 3.00x.
func fixed(r float64) RandomSource {
	return RandomFunc(func() float64 { return r })
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSession_WinScenario(t *testing.T) {
	s := NewSession("p1", amount("1000"))

	if err := s.StartRound(amount("10"), DefaultTable(), fixed(0.96)); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	if !s.Ledger.Balance().Equal(amount("990")) {
		t.Errorf("balance after start = %s, want 990", s.Ledger.Balance())
	}
	if err := s.SelectCard(7); err != nil {
		t.Fatalf("SelectCard: %v", err)
	}

	st, err := s.Reveal()
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if !s.Ledger.Balance().Equal(amount("1020")) {
		t.Errorf("balance after reveal = %s, want 1020", s.Ledger.Balance())
	}
	if !st.Won || !st.Win.Equal(amount("20")) || !st.Credited.Equal(amount("30")) {
		t.Errorf("unexpected settlement %+v", st)
	}
	if !strings.Contains(s.Message, "Won ₹30.00 (Bet: ₹10.00 + Win: ₹20.00)") {
		t.Errorf("message = %q", s.Message)
	}
	if s.Round.Status != StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", s.Round.Status)
	}
	if !s.Round.Cards[7].Revealed {
		t.Error("selected card not revealed")
	}
	if !st.Profit().Equal(amount("20")) {
		t.Errorf("profit = %s, want 20", st.Profit())
	}
}

func TestSession_LossScenario(t *testing.T) {
	s := NewSession("p1", amount("1000"))

	if err := s.StartRound(amount("10"), DefaultTable(), fixed(0.10)); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	if err := s.SelectCard(0); err != nil {
		t.Fatalf("SelectCard: %v", err)
	}
	before := s.Ledger.Balance()

	st, err := s.Reveal()
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if st.Won || !st.Credited.IsZero() {
		t.Errorf("unexpected settlement %+v", st)
	}
	if !s.Ledger.Balance().Equal(before) || !s.Ledger.Balance().Equal(amount("990")) {
		t.Errorf("balance = %s, want 990", s.Ledger.Balance())
	}
	if s.Message != LOSS_MESSAGE {
		t.Errorf("message = %q, want %q", s.Message, LOSS_MESSAGE)
	}
	if s.Round.Status != StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", s.Round.Status)
	}
}

func TestSession_StartRoundRejections(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		bet     string
		want    error
	}{
		{"zero bet", "1000", "0", ErrInvalidBet},
		{"negative bet", "1000", "-5", ErrInvalidBet},
		{"fraction of a paisa", "1000", "10.555", ErrInvalidBet},
		{"bet above balance", "100", "100.01", ErrInsufficientBalance},
		{"empty balance", "0", "1", ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("p1", amount(tt.balance))
			err := s.StartRound(amount(tt.bet), DefaultTable(), fixed(0.5))
			if !errors.Is(err, tt.want) {
				t.Fatalf("StartRound() error = %v, want %v", err, tt.want)
			}
			if !s.Ledger.Balance().Equal(amount(tt.balance)) {
				t.Errorf("balance changed to %s", s.Ledger.Balance())
			}
			if s.Round.Status != StatusIdle {
				t.Errorf("status changed to %s", s.Round.Status)
			}
			if s.Message == "" {
				t.Error("expected a user-facing message")
			}
		})
	}
}

func TestSession_StartRoundWhilePlaying(t *testing.T) {
	s := NewSession("p1", amount("1000"))
	if err := s.StartRound(amount("10"), DefaultTable(), fixed(0.5)); err != nil {
		t.Fatal(err)
	}
	roundID := s.Round.ID

	err := s.StartRound(amount("10"), DefaultTable(), fixed(0.5))
	if !errors.Is(err, ErrRoundInProgress) {
		t.Fatalf("expected ErrRoundInProgress, got %v", err)
	}
	if !s.Ledger.Balance().Equal(amount("990")) || s.Round.ID != roundID {
		t.Error("second start mutated the session")
	}
}

func TestSession_BetEqualToBalance(t *testing.T) {
	s := NewSession("p1", amount("10"))
	if err := s.StartRound(amount("10"), DefaultTable(), fixed(0.5)); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	if !s.Ledger.Balance().IsZero() {
		t.Errorf("balance = %s, want 0", s.Ledger.Balance())
	}
}

func TestSession_CardsAreDealtUnrevealed(t *testing.T) {
	s := NewSession("p1", amount("1000"))
	calls := 0
	src := RandomFunc(func() float64 {
		calls++
		return 0.5
	})
	if err := s.StartRound(amount("10"), DefaultTable(), src); err != nil {
		t.Fatal(err)
	}
	if calls != CARD_COUNT {
		t.Errorf("sampled %d times, want %d", calls, CARD_COUNT)
	}
	for i, c := range s.Round.Cards {
		if c.Revealed {
			t.Errorf("card %d revealed at start", i)
		}
		if c.Tag == "" {
			t.Errorf("card %d has no outcome", i)
		}
	}
	if s.Round.Status != StatusPlaying {
		t.Errorf("status = %s, want PLAYING", s.Round.Status)
	}
}

func TestSession_SelectCard(t *testing.T) {
	newPlaying := func(t *testing.T) *Session {
		s := NewSession("p1", amount("1000"))
		if err := s.StartRound(amount("10"), DefaultTable(), fixed(0.5)); err != nil {
			t.Fatal(err)
		}
		return s
	}

	t.Run("out of range", func(t *testing.T) {
		s := newPlaying(t)
		for _, idx := range []int{-1, CARD_COUNT} {
			if err := s.SelectCard(idx); !errors.Is(err, ErrInvalidSelection) {
				t.Errorf("SelectCard(%d) = %v", idx, err)
			}
		}
	})

	t.Run("already revealed", func(t *testing.T) {
		s := newPlaying(t)
		s.Round.Cards[3].Revealed = true

		err := s.SelectCard(3)
		if !errors.Is(err, ErrInvalidSelection) {
			t.Fatalf("expected ErrInvalidSelection, got %v", err)
		}
		if s.Round.Selected != nil || s.Round.Status != StatusPlaying {
			t.Error("rejected selection mutated the round")
		}
	})

	t.Run("reselect while awaiting reveal", func(t *testing.T) {
		s := newPlaying(t)
		if err := s.SelectCard(1); err != nil {
			t.Fatal(err)
		}
		if err := s.SelectCard(2); !errors.Is(err, ErrInvalidSelection) {
			t.Fatalf("expected ErrInvalidSelection, got %v", err)
		}
		if *s.Round.Selected != 1 {
			t.Errorf("selected = %d, want 1", *s.Round.Selected)
		}
	})

	t.Run("dismiss then reselect", func(t *testing.T) {
		s := newPlaying(t)
		if err := s.SelectCard(1); err != nil {
			t.Fatal(err)
		}
		cards := s.Round.Cards
		if err := s.Dismiss(); err != nil {
			t.Fatalf("Dismiss: %v", err)
		}
		if s.Round.Status != StatusPlaying || s.Round.Selected != nil {
			t.Error("dismiss did not return to PLAYING")
		}
		if s.Round.Cards != cards {
			t.Error("dismiss changed card state")
		}
		if err := s.SelectCard(2); err != nil {
			t.Errorf("SelectCard after dismiss: %v", err)
		}
	})

	t.Run("idle", func(t *testing.T) {
		s := NewSession("p1", amount("1000"))
		if err := s.SelectCard(0); !errors.Is(err, ErrInvalidSelection) {
			t.Errorf("expected ErrInvalidSelection, got %v", err)
		}
	})
}

func TestSession_RevealWithoutSelection(t *testing.T) {
	s := NewSession("p1", amount("1000"))
	if _, err := s.Reveal(); !errors.Is(err, ErrNoCardSelected) {
		t.Errorf("Reveal() from idle = %v", err)
	}

	if err := s.StartRound(amount("10"), DefaultTable(), fixed(0.96)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Reveal(); !errors.Is(err, ErrNoCardSelected) {
		t.Errorf("Reveal() while playing = %v", err)
	}
	if !s.Ledger.Balance().Equal(amount("990")) {
		t.Errorf("balance = %s, want 990", s.Ledger.Balance())
	}
	if err := s.Dismiss(); !errors.Is(err, ErrNoCardSelected) {
		t.Errorf("Dismiss() while playing = %v", err)
	}
}

func TestSession_Reset(t *testing.T) {
	setups := map[string]func(s *Session){
		"idle": func(s *Session) {},
		"playing": func(s *Session) {
			_ = s.StartRound(amount("10"), DefaultTable(), fixed(0.5))
		},
		"awaiting reveal": func(s *Session) {
			_ = s.StartRound(amount("10"), DefaultTable(), fixed(0.5))
			_ = s.SelectCard(4)
		},
		"completed": func(s *Session) {
			_ = s.StartRound(amount("10"), DefaultTable(), fixed(0.96))
			_ = s.SelectCard(4)
			_, _ = s.Reveal()
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			s := NewSession("p1", amount("1000"))
			setup(s)
			balance := s.Ledger.Balance()

			s.Reset()
			if s.Round.Status != StatusIdle {
				t.Errorf("status = %s, want IDLE", s.Round.Status)
			}
			for i, c := range s.Round.Cards {
				if c.Revealed {
					t.Errorf("card %d still revealed", i)
				}
			}
			if s.Round.Selected != nil {
				t.Error("selection survived reset")
			}
			if !s.Round.Bet.Equal(DefaultBet) {
				t.Errorf("bet = %s, want %s", s.Round.Bet, DefaultBet)
			}
			if !s.Ledger.Balance().Equal(balance) {
				t.Error("reset touched the balance")
			}
		})
	}
}

func TestSession_Snapshot(t *testing.T) {
	s := NewSession("p1", amount("1000"))
	if err := s.StartRound(amount("10"), DefaultTable(), fixed(0.999)); err != nil {
		t.Fatal(err)
	}
	if err := s.SelectCard(5); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if len(snap.Cards) != CARD_COUNT {
		t.Fatalf("snapshot has %d cards", len(snap.Cards))
	}
	for _, c := range snap.Cards {
		if c.Multiplier != "" || c.Tag != "" {
			t.Errorf("hidden card %d leaks its outcome", c.Index)
		}
	}
	if snap.Selected == nil || *snap.Selected != 5 {
		t.Error("selected index missing from snapshot")
	}
	if snap.BalanceDisplay != "₹990.00" {
		t.Errorf("balance display = %q", snap.BalanceDisplay)
	}

	if _, err := s.Reveal(); err != nil {
		t.Fatal(err)
	}
	snap = s.Snapshot()
	if snap.Cards[5].Multiplier != "3.00x" || snap.Cards[5].Tag != "x3_00" {
		t.Errorf("revealed card view = %+v", snap.Cards[5])
	}

	// snapshot must not alias session state
	*snap.Selected = 9
	if *s.Round.Selected != 5 {
		t.Error("snapshot aliases the session's selection")
	}
}

func TestSession_WinRounding(t *testing.T) {
	s := NewSession("p1", amount("100"))
	table, err := NewTable([]Multiplier{{Tag: "x0_10", Value: dec("0.10"), Probability: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.StartRound(amount("0.05"), table, fixed(0.5)); err != nil {
		t.Fatal(err)
	}
	_ = s.SelectCard(0)
	st, err := s.Reveal()
	if err != nil {
		t.Fatal(err)
	}
	// 0.05 * 0.10 = 0.005 rounds half away from zero to 0.01
	if !st.Win.Equal(amount("0.01")) || !st.Credited.Equal(amount("0.06")) {
		t.Errorf("win = %s credited = %s", st.Win, st.Credited)
	}
}
