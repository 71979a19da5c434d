package main

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"scratch2x/internal/config"
	"scratch2x/internal/game"
)

type simResult struct {
	Rounds   int
	Wins     int
	Wagered  decimal.Decimal
	Returned decimal.Decimal
	ByTag    map[string]int
}

func (r simResult) RTP() float64 {
	if r.Wagered.IsZero() {
		return 0
	}
	return r.Returned.Div(r.Wagered).InexactFloat64()
}

func (r simResult) HitRate() float64 {
	if r.Rounds == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Rounds)
}

// simulate plays rounds through a real session: stake, pick a card, reveal.
// The session starts with enough balance to lose every round.
func simulate(table *game.Table, src game.RandomSource, rounds int, bet decimal.Decimal) (simResult, error) {
	res := simResult{ByTag: make(map[string]int)}
	sess := game.NewSession("simulator", bet.Mul(decimal.NewFromInt(int64(rounds))))

	for i := 0; i < rounds; i++ {
		if err := sess.StartRound(bet, table, src); err != nil {
			return res, fmt.Errorf("round %d: %w", i, err)
		}
		if err := sess.SelectCard(i % game.CARD_COUNT); err != nil {
			return res, fmt.Errorf("round %d: %w", i, err)
		}
		st, err := sess.Reveal()
		if err != nil {
			return res, fmt.Errorf("round %d: %w", i, err)
		}
		sess.Reset()

		res.Rounds++
		res.Wagered = res.Wagered.Add(st.Bet)
		res.Returned = res.Returned.Add(st.Credited)
		res.ByTag[st.Tag]++
		if st.Won {
			res.Wins++
		}
	}
	return res, nil
}

func printSimulation(w io.Writer, table *game.Table, r simResult) {
	fmt.Fprintf(w, "rounds:    %d\n", r.Rounds)
	fmt.Fprintf(w, "wagered:   %s\n", game.FormatINR(r.Wagered, 2))
	fmt.Fprintf(w, "returned:  %s\n", game.FormatINR(r.Returned, 2))
	fmt.Fprintf(w, "RTP:       %.4f (table %.4f)\n", r.RTP(), table.ExpectedReturn())
	fmt.Fprintf(w, "hit rate:  %.4f (table %.4f)\n", r.HitRate(), table.HitRate())
	for _, m := range table.Entries() {
		share := 0.0
		if r.Rounds > 0 {
			share = float64(r.ByTag[m.Tag]) / float64(r.Rounds)
		}
		fmt.Fprintf(w, "  %-8s %7.4f (p=%.4f)\n", m.Label(), share, m.Probability)
	}
}

func newSimulateCmd() *cobra.Command {
	var (
		rounds    int
		betRaw    string
		tablePath string
		seed      string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play many rounds and report return-to-player and hit rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rounds <= 0 {
				return fmt.Errorf("--rounds must be positive")
			}
			bet, err := game.ParseBet(betRaw)
			if err != nil {
				return fmt.Errorf("--bet: %w", err)
			}
			if !cmd.Flags().Changed("table") {
				tablePath = config.Load().MultiplierTablePath
			}
			table, err := game.LoadTable(tablePath)
			if err != nil {
				return err
			}

			var src game.RandomSource = game.NewCryptoSource()
			if seed != "" {
				src = game.NewSeededSource(seed, "simulate", 0)
			}

			res, err := simulate(table, src, rounds, bet)
			if err != nil {
				return err
			}
			printSimulation(cmd.OutOrStdout(), table, res)
			return nil
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", 100000, "number of rounds to play")
	cmd.Flags().StringVar(&betRaw, "bet", game.DefaultBet.String(), "stake per round")
	cmd.Flags().StringVar(&tablePath, "table", "", "YAML multiplier table (default: MULTIPLIER_TABLE_PATH or the built-in table)")
	cmd.Flags().StringVar(&seed, "seed", "", "server seed for a reproducible run")
	return cmd
}
