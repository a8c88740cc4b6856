package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/laurenamos/sustainable-model-chooser/internal/catalog"
	"github.com/laurenamos/sustainable-model-chooser/internal/config"
	"github.com/laurenamos/sustainable-model-chooser/internal/diff"
	"github.com/laurenamos/sustainable-model-chooser/internal/pipeline"
	"github.com/laurenamos/sustainable-model-chooser/internal/validate"
)

var cfgFile string

func main() {
	syncCommand := syncCmd()

	rootCmd := &cobra.Command{
		Use:   "openrouter-sync",
		Short: "Sync OpenRouter model metadata into the local catalog",
		Long: "Fetches the OpenRouter model list and refreshes the \"openrouter\" block of every " +
			"catalog entry that declares an OpenRouter id. Runs sync when no command is given.",
		SilenceUsage: true,
		RunE:         syncCommand.RunE,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("catalog-path", "", "Path to models.json (default: from config)")
	rootCmd.PersistentFlags().String("source-url", "", "OpenRouter models endpoint (default: from config)")
	rootCmd.PersistentFlags().Bool("revalidate", false, "Send conditional requests using validators stored in cache_dir")
	rootCmd.Flags().Bool("dry-run", false, "Run the full sync without writing the catalog")

	rootCmd.AddCommand(
		syncCommand,
		diffCmd(),
		discoverCmd(),
		validateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(pipeline.ExitFailure)
	}
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Full pipeline: load → fetch → merge → write (→ PR)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			src, err := pipeline.NewSource(cfg)
			if err != nil {
				return err
			}

			res, err := pipeline.New(cfg, src).Sync(cmd.Context())
			if res == nil {
				return err
			}

			if !res.Written {
				fmt.Printf("Would update %d model(s) in %s\n", res.Merge.Updated, res.Path)
				return nil
			}
			// A publishing failure still leaves the catalog written.
			fmt.Printf("Updated %d model(s) in %s\n", res.Merge.Updated, res.Path)
			if err != nil {
				return err
			}
			if res.PRNumber > 0 {
				slog.Info("sync published", "pr", res.PRNumber, "draft", res.PRDraft)
			}
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Run the full sync without writing the catalog")

	return cmd
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show what a sync would change (no writes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			src, err := pipeline.NewSource(cfg)
			if err != nil {
				return err
			}

			cs, err := pipeline.New(cfg, src).Diff(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Print(diff.RenderDiffSummary(cs))

			if cs.HasChanges() {
				os.Exit(pipeline.ExitChanges)
			}
			return nil
		},
	}
}

func discoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Fetch the OpenRouter index and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			filter, _ := cmd.Flags().GetString("filter")

			src, err := pipeline.NewSource(cfg)
			if err != nil {
				return err
			}

			idx, err := src.FetchIndex(cmd.Context())
			if err != nil {
				return err
			}

			return renderDiscover(os.Stdout, discoverRecords(idx, filter), output)
		},
	}

	cmd.Flags().StringP("output", "o", "table", "Output format: table, json or yaml")
	cmd.Flags().String("filter", "", "Only show ids containing this substring")

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the catalog's openrouter blocks (CI check)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			doc, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return fmt.Errorf("loading catalog: %w", err)
			}

			result := validate.ValidateDocument(doc)
			fmt.Println(validate.FormatResult(result))

			if result.HasErrors() {
				os.Exit(pipeline.ExitFailure)
			}
			return nil
		},
	}
}

// loadConfig reads the config and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("catalog-path") {
		cfg.CatalogPath, _ = flags.GetString("catalog-path")
	}
	if flags.Changed("source-url") {
		cfg.SourceURL, _ = flags.GetString("source-url")
	}
	if flags.Changed("revalidate") {
		cfg.Revalidate, _ = flags.GetBool("revalidate")
	}
	if flags.Changed("dry-run") {
		cfg.DryRun, _ = flags.GetBool("dry-run")
	}

	setupLogging(cfg)
	return cfg, nil
}

// setupLogging installs the default slog logger on stderr.
func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
