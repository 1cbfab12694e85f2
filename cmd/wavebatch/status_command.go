package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"wavebatch/internal/ledger"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	var showFailures bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show ledger progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg.LedgerDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderCountTable("State", "Tasks", [][2]string{
				{"recorded success", strconv.Itoa(stats.RecordedSuccess)},
				{"recorded failure", strconv.Itoa(stats.RecordedFailure)},
				{"unattempted", strconv.Itoa(stats.Unattempted)},
				{"total", strconv.Itoa(stats.Total)},
			}))

			if showFailures {
				return printFailures(cmd, store)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFailures, "failures", false, "List recorded failures grouped by error")
	return cmd
}

func printFailures(cmd *cobra.Command, store *ledger.Store) error {
	entries, err := store.All(cmd.Context())
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, entry := range entries {
		if entry.Error == "" {
			continue
		}
		counts[errorClass(entry.Error)]++
	}
	if len(counts) == 0 {
		return nil
	}

	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	rows := make([][2]string, 0, len(classes))
	for _, class := range classes {
		rows = append(rows, [2]string{class, strconv.Itoa(counts[class])})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderCountTable("Error", "Tasks", rows))
	return nil
}

// errorClass collapses a recorded error message to its leading label so
// failures group usefully: "ConversionError: ..." becomes "ConversionError".
func errorClass(message string) string {
	if before, _, found := strings.Cut(message, ":"); found {
		return strings.TrimSpace(before)
	}
	return message
}
