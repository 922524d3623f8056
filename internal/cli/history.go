package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/layerforge/internal/ledger"
)

var (
	historyLimit int
	historyRun   int64
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded generation runs",
	Long: `History reads the run ledger of the configured output directory.

Example:
  layerforge history --limit 5
  layerforge history --run 3`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
	historyCmd.Flags().Int64Var(&historyRun, "run", 0, "list the artifacts of one run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := ledger.Open(cfg.OutputPath(cfg.Ledger.Path))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := cmd.OutOrStdout()
	if historyRun != 0 {
		entries, err := store.Artifacts(ctx, historyRun)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-6s  %-24s  %8s  %s\n", "#", "Name", "Rarity", "Combination")
		for _, e := range entries {
			fmt.Fprintf(out, "%-6d  %-24s  %7.2f%%  %s\n", e.Number, e.Name, e.Rarity, e.Combination)
			if e.ImageURI != "" {
				fmt.Fprintf(out, "        %s\n", e.ImageURI)
			}
		}
		return nil
	}

	runs, err := store.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	fmt.Fprintf(out, "%-5s  %-20s  %-16s  %6s  %20s  %8s\n", "Run", "Created", "Project", "Amount", "Seed", "Average")
	for _, r := range runs {
		fmt.Fprintf(out, "%-5d  %-20s  %-16s  %6d  %20d  %7.2f%%\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Project, r.Amount, r.Seed, r.Average)
	}
	return nil
}
