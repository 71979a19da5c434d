package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scratch2x/internal/game"
)

func newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Inspect multiplier tables",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a YAML multiplier table and print its odds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := game.LoadTable(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, m := range table.Entries() {
				fmt.Fprintf(w, "%-8s %-8s p=%.4f\n", m.Tag, m.Label(), m.Probability)
			}
			fmt.Fprintf(w, "expected return: %.4f\n", table.ExpectedReturn())
			fmt.Fprintf(w, "hit rate:        %.4f\n", table.HitRate())
			fmt.Fprintln(w, "table is valid")
			return nil
		},
	})
	return cmd
}
