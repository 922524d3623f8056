package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/layerforge/internal/model"
	"github.com/ppiankov/layerforge/internal/pipeline"
)

var (
	amount     int
	seed       uint64
	workers    int
	outputDir  string
	doUpload   bool
	doPreview  bool
	noLedger   bool
	noCache    bool
	genTimeout time.Duration
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a collection of unique artifacts",
	Long: `Generate draws unique trait combinations and composites them:
- Scan one directory per configured category
- Draw combinations without replacement, weighted by rarity
- Composite each combination into a PNG in parallel
- Write per-artifact metadata and a rarity report
- Optionally pin images and metadata to IPFS and build a GIF preview

Example:
  layerforge generate
  layerforge generate --amount 100 --seed 42 -o ./collection
  LAYERFORGE_PINATA_JWT=... layerforge generate --upload`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVarP(&amount, "amount", "n", 0, "number of artifacts to generate (overrides config)")
	generateCmd.Flags().Uint64Var(&seed, "seed", 0, "PRNG seed for a reproducible run (0 picks one)")
	generateCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "number of concurrent compositing workers")
	generateCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (overrides config)")
	generateCmd.Flags().BoolVar(&doUpload, "upload", false, "pin images and metadata to IPFS")
	generateCmd.Flags().BoolVar(&doPreview, "preview", false, "assemble an animated GIF preview")
	generateCmd.Flags().BoolVar(&noLedger, "no-ledger", false, "do not record the run in the ledger")
	generateCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable layer and upload receipt caches")
	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 30*time.Minute, "overall timeout for the run")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyGenerateFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, genTimeout)
	defer cancel()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Project:    %s\n", cfg.ProjectName)
		fmt.Fprintf(os.Stderr, "Amount:     %d\n", cfg.Amount)
		fmt.Fprintf(os.Stderr, "Workers:    %d\n", cfg.Concurrency.Workers)
		fmt.Fprintf(os.Stderr, "Output dir: %s\n", cfg.OutputDir)
		fmt.Fprintf(os.Stderr, "Cache:      %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	start := time.Now()
	result, err := pipeline.New(cfg).Run(ctx)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}

	pipeline.RenderSummary(cmd.OutOrStdout(), &result.Report)

	if cfg.Output.Verbose {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "✓ Done in %v\n", time.Since(start).Round(time.Millisecond))
		if result.RunID != 0 {
			fmt.Fprintf(os.Stderr, "  Ledger run: %d\n", result.RunID)
		}
		if result.Publication != nil {
			fmt.Fprintf(os.Stderr, "  Images:     %s\n", result.Publication.Images.IpfsHash)
			fmt.Fprintf(os.Stderr, "  Metadata:   %s\n", result.Publication.Metadata.IpfsHash)
		}
	}
	return nil
}

// applyGenerateFlags lets explicitly set flags win over every other source
func applyGenerateFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("amount") {
		cfg.Amount = amount
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("workers") {
		cfg.Concurrency.Workers = workers
	}
	if flags.Changed("output") {
		cfg.OutputDir = outputDir
	}
	if doUpload {
		cfg.Upload.Enabled = true
	}
	if doPreview {
		cfg.Preview.Enabled = true
	}
	if noLedger {
		cfg.Ledger.Enabled = false
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if verbose {
		cfg.Output.Verbose = true
	}
}
