// Package main provides the AgriMind CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/config"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/kb"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/observability"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/pipeline"
)

const version = "0.1.0"

var (
	// Global flags
	cfgFile    string
	dataset    string
	outputJSON bool
	noColor    bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// newRootCmd builds the command tree. A fresh tree per call keeps flag state
// out of package globals between executions.
func newRootCmd() *cobra.Command {
	cfgFile, dataset, outputJSON, noColor, verbose = "", "", false, false, false

	root := &cobra.Command{
		Use:   "agrimind-cli",
		Short: "AgriMind CLI for asking questions and checking datasets",
		Long: `AgriMind CLI runs the question answering pipeline locally.

Use this tool to:
- Ask a farming question and inspect the matched KB entry
- Debug field extraction and matching
- Validate a dataset before deploying it
- Measure top-1 accuracy on the dataset's example questions

All commands support --json for automation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dataset != "" {
				cfg.Dataset.Source = dataset
			}
			// One-shot commands never publish events.
			cfg.Events.Driver = "none"

			level := "warn"
			if verbose {
				level = "debug"
			}
			logFormat := "console"
			if outputJSON {
				logFormat = "json"
			}
			logger = observability.NewLogger(observability.LogConfig{
				Level:       level,
				Format:      logFormat,
				ServiceName: "agrimind-cli",
			})
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	root.PersistentFlags().StringVarP(&dataset, "dataset", "d", "", "dataset path or sqlite:/postgres:// URI (overrides config)")
	root.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(newAskCmd())
	root.AddCommand(newExtractCmd())
	root.AddCommand(newMatchCmd())
	root.AddCommand(newCheckDatasetCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newUI(cmd *cobra.Command) *UI {
	return NewUI(cmd.OutOrStdout(), outputJSON, noColor)
}

// withService builds the pipeline for one command and closes it afterwards.
func withService(ctx context.Context, fn func(*pipeline.Service) error) error {
	svc, err := pipeline.Build(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close pipeline")
		}
	}()
	return fn(svc)
}

func questionArg(args []string) (string, error) {
	q := strings.TrimSpace(strings.Join(args, " "))
	if q == "" {
		return "", fmt.Errorf("question is required")
	}
	return q, nil
}

// newAskCmd creates the ask subcommand.
func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question with the full pipeline",
		Long: `Ask extracts species, season, disease and symptoms from the question,
matches the KB, applies the safety rules and prints the answer.`,
		Example: `  agrimind-cli ask "Heo con bị tiêu chảy, bỏ ăn"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := questionArg(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			return withService(ctx, func(svc *pipeline.Service) error {
				start := time.Now()
				res, err := svc.Run(ctx, question)
				if err != nil {
					return err
				}
				ui := newUI(cmd)
				if outputJSON {
					return ui.JSON(res)
				}
				printResult(ui, res, time.Since(start))
				return nil
			})
		},
	}
}

func printResult(ui *UI, res *pipeline.Result, took time.Duration) {
	ui.Section("Extracted")
	printFields(ui, res.Extracted.DomainHint, res.Extracted.Specie, res.Extracted.Season,
		res.Extracted.Disease, res.Extracted.Symptoms)

	ui.Section("Answer")
	if res.Entry == nil {
		ui.Warning("No matching entry")
	} else {
		ui.KeyValue("Entry", res.Entry.ID)
		ui.KeyValue("Disease", res.Entry.Disease)
		ui.List("Causes", res.Entry.Causes)
		ui.List("Advice", res.Entry.Advice)
	}
	ui.KeyValue("Confidence", fmt.Sprintf("%.2f", res.Confidence))
	ui.KeyValue("Branch", res.Branch.String())
	if res.Prediction != nil {
		ui.KeyValue("Classifier", fmt.Sprintf("%s (%.2f)", res.Prediction.EntryID, res.Prediction.Probability))
	}

	ui.Section("Safety")
	if res.Decision.AllowAnswer {
		ui.Success("Answer allowed")
	} else {
		ui.Error("Answer withheld")
	}
	for _, w := range res.Decision.Warnings {
		ui.Warning("%s", w)
	}
	ui.List("Actions", res.Decision.Actions)
	if res.NextQuestion != "" {
		ui.Info("%s", res.NextQuestion)
	}
	ui.KeyValue("Took", FormatDuration(took))
}

func printFields(ui *UI, domain, specie, season, disease string, symptoms []string) {
	ui.KeyValue("Domain", domain)
	ui.KeyValue("Specie", specie)
	ui.KeyValue("Season", season)
	ui.KeyValue("Disease", disease)
	if len(symptoms) > 0 {
		ui.KeyValue("Symptoms", strings.Join(symptoms, ", "))
	}
}

// newExtractCmd creates the extract subcommand.
func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <question>",
		Short: "Show the fields extracted from a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := questionArg(args)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(svc *pipeline.Service) error {
				fields, err := svc.ExtractOnly(question)
				if err != nil {
					return err
				}
				ui := newUI(cmd)
				if outputJSON {
					return ui.JSON(fields)
				}
				ui.Section("Extracted")
				printFields(ui, fields.DomainHint, fields.Specie, fields.Season, fields.Disease, fields.Symptoms)
				if !fields.HasStrongSignal() {
					ui.Warning("No disease or symptom found")
				}
				return nil
			})
		},
	}
}

// newMatchCmd creates the match subcommand.
func newMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <question>",
		Short: "Show the rule-based match for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := questionArg(args)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(svc *pipeline.Service) error {
				view, err := svc.MatchOnly(question)
				if err != nil {
					return err
				}
				ui := newUI(cmd)
				if outputJSON {
					return ui.JSON(view)
				}
				ui.Section("Match")
				if view.Entry == nil {
					ui.Warning("No matching entry")
				} else {
					ui.KeyValue("Entry", view.Entry.ID)
					ui.KeyValue("Disease", view.Entry.Disease)
				}
				ui.KeyValue("Score", fmt.Sprintf("%.1f", view.Score))
				ui.KeyValue("Confidence", fmt.Sprintf("%.2f", view.Confidence))
				ui.KeyValue("Scored", view.Scored)
				ui.KeyValue("Full scan", view.FullScan)
				return nil
			})
		},
	}
}

// DatasetReportDTO is the check-dataset output.
type DatasetReportDTO struct {
	Source   string         `json:"source"`
	Valid    bool           `json:"valid"`
	Entries  int            `json:"entries"`
	Domains  map[string]int `json:"domains,omitempty"`
	Urgent   int            `json:"urgent"`
	Examples int            `json:"examples"`
	Error    string         `json:"error,omitempty"`
}

// newCheckDatasetCmd creates the check-dataset subcommand.
func newCheckDatasetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-dataset",
		Short: "Validate the configured dataset",
		Long: `Check-dataset loads the dataset exactly as the server would and reports
missing required fields and duplicated ids.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := kb.OpenSource(cfg.Dataset.Source, cfg.Dataset.Table)
			if err != nil {
				return err
			}
			defer src.Close()

			ui := newUI(cmd)
			report := DatasetReportDTO{Source: src.Name()}
			entries, loadErr := kb.Load(cmd.Context(), src)
			if loadErr != nil {
				report.Error = loadErr.Error()
			} else {
				report.Valid = true
				report.Entries = len(entries)
				report.Domains = make(map[string]int)
				for i := range entries {
					report.Domains[entries[i].Domain]++
					report.Examples += len(entries[i].Examples)
					if entries[i].Safety.Urgent {
						report.Urgent++
					}
				}
			}

			if outputJSON {
				if err := ui.JSON(report); err != nil {
					return err
				}
			} else if report.Valid {
				ui.Success("Dataset %s is valid", report.Source)
				ui.KeyValue("Entries", report.Entries)
				for domain, n := range report.Domains {
					ui.KeyValue("Domain "+domain, n)
				}
				ui.KeyValue("Urgent", report.Urgent)
				ui.KeyValue("Examples", report.Examples)
			} else {
				ui.Error("%s", report.Error)
			}
			return loadErr
		},
	}
}

// newEvalCmd creates the eval subcommand.
func newEvalCmd() *cobra.Command {
	var (
		workers  int
		limit    int
		minScore float64
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure top-1 accuracy on the dataset's example questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *pipeline.Service) error {
				opts := pipeline.EvalOptions{Workers: workers, Limit: limit}
				var bar *progressbar.ProgressBar
				if !outputJSON {
					opts.Progress = func(done, total int) {
						if bar == nil {
							bar = NewProgressBar(cmd.ErrOrStderr(), total, "Evaluating")
						}
						_ = bar.Set(done)
					}
				}

				start := time.Now()
				report, err := svc.Evaluate(cmd.Context(), opts)
				if err != nil {
					if bar != nil {
						_ = bar.Clear()
					}
					return err
				}
				if bar != nil {
					_ = bar.Finish()
				}

				ui := newUI(cmd)
				if outputJSON {
					if err := ui.JSON(report); err != nil {
						return err
					}
				} else {
					ui.Section("Evaluation")
					ui.KeyValue("Snapshot", report.SnapshotID)
					ui.KeyValue("Samples", report.Samples)
					ui.KeyValue("Correct", report.Correct)
					ui.KeyValue("Accuracy", fmt.Sprintf("%.3f", report.Accuracy))
					for branch, n := range report.Branches {
						ui.KeyValue("Branch "+branch, n)
					}
					for _, m := range report.Misses {
						ui.Warning("%q expected %s got %s (%s, %.2f)", m.Question, m.Expected, orNone(m.Got), m.Branch, m.Conf)
					}
					ui.KeyValue("Took", FormatDuration(time.Since(start)))
				}

				if minScore > 0 && report.Accuracy < minScore {
					return fmt.Errorf("accuracy %.3f below --min-accuracy %.3f", report.Accuracy, minScore)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&workers, "workers", runtime.GOMAXPROCS(0), "parallel workers")
	cmd.Flags().IntVar(&limit, "limit", 0, "max example questions (0 = all)")
	cmd.Flags().Float64Var(&minScore, "min-accuracy", 0, "fail when accuracy is below this value")
	return cmd
}

func orNone(id string) string {
	if id == "" {
		return "none"
	}
	return id
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputJSON {
				return newUI(cmd).JSON(map[string]string{
					"version": version,
					"go":      runtime.Version(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "agrimind-cli v%s\n", version)
			return nil
		},
	}
}
