package queuecmd

import (
	"github.com/spf13/cobra"

	"github.com/bean-lens/beanlens/internal/analyzer"
)

// NewReportCmd creates the report command, the weekly review summary
func NewReportCmd() *cobra.Command {
	var src sourceOptions
	var dict dictionaryOptions
	var out outputOptions
	cfg := analyzer.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a window of unknown queue events",
		Long: `Aggregates unknown queue events into a review report: events per domain,
reasons, match kinds, the most frequent unknown raw values and alias candidates.

Exactly one source is required: a local queue file or the receiver database.`,
		Example: `  # Weekly markdown report from the local queue
  beanlens queue report --input data/unknown_queue.jsonl

  # Last 30 days from the receiver database as JSON
  beanlens queue report --database-url "$DATABASE_URL" --days 30 --format json

  # Explicit window written to a file
  beanlens queue report --input queue.parquet --since 2026-03-01 --until 2026-03-08 --output reports/week10.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeReport(cmd, src, dict, out.resolve(cmd, "markdown"), cfg)
		},
	}

	src.bind(cmd)
	dict.bind(cmd)
	out.bind(cmd, "markdown", "Output format (markdown, json, yaml)")
	cmd.Flags().IntVar(&cfg.TopN, "top", analyzer.DefaultTopN, "Top values per domain (0 for all)")
	bindCandidateFlags(cmd, &cfg)

	return cmd
}

// NewCandidatesCmd creates the candidates command for typo alias hints
func NewCandidatesCmd() *cobra.Command {
	var src sourceOptions
	var dict dictionaryOptions
	var out outputOptions
	cfg := analyzer.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Suggest aliases for unknown values close to existing terms",
		Long: `Compares frequent unknown raw values with every term and alias of the
same domain and lists the close ones as alias candidates.

Candidates are advisory. Nothing is written to the dictionary; review each
suggestion before adding it to the dictionary data.`,
		Example: `  # Candidates from the last week as CSV
  beanlens queue candidates --input data/unknown_queue.jsonl --format csv

  # Stricter thresholds against v2
  beanlens queue candidates --input queue.jsonl --dictionary-version v2 --min-count 5 --min-score 0.8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeCandidates(cmd, src, dict, out.resolve(cmd, "json"), cfg)
		},
	}

	src.bind(cmd)
	dict.bind(cmd)
	out.bind(cmd, "json", "Output format (json, yaml, csv)")
	bindCandidateFlags(cmd, &cfg)

	return cmd
}

// NewTermsCmd creates the terms command for new term suggestions
func NewTermsCmd() *cobra.Command {
	var src sourceOptions
	var dict dictionaryOptions
	var out outputOptions
	cfg := analyzer.DefaultTermConfig()

	cmd := &cobra.Command{
		Use:   "terms",
		Short: "Suggest new terms for frequent unknown values",
		Long: `Lists frequent single unknown values that do not resemble any existing term,
each with a template entry to start a dictionary addition from.`,
		Example: `  beanlens queue terms --input data/unknown_queue.jsonl --min-count 3 --output reports/terms.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeTerms(cmd, src, dict, out.resolve(cmd, "json"), cfg)
		},
	}

	src.bind(cmd)
	dict.bind(cmd)
	out.bind(cmd, "json", "Output format (json, yaml, csv)")
	cmd.Flags().IntVar(&cfg.MinCount, "min-count", analyzer.DefaultTermMinCount, "Minimum occurrences of a raw value")
	cmd.Flags().Float64Var(&cfg.MaxBestScore, "max-best-score", analyzer.DefaultTermMaxBestScore, "Skip values more similar than this to an existing term")
	cmd.Flags().IntVar(&cfg.TopN, "top", analyzer.DefaultTermTopN, "Maximum number of candidates (0 for all)")

	return cmd
}

// NewExportCmd creates the export command that archives events to Parquet
func NewExportCmd() *cobra.Command {
	var src sourceOptions
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Archive a window of unknown queue events to Parquet",
		Example: `  # Archive last week's events
  beanlens queue export --input data/unknown_queue.jsonl --output archive/2026-w10.parquet

  # Archive everything in the receiver database
  beanlens queue export --database-url "$DATABASE_URL" --days 0 --output archive/all.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeExport(cmd, src, output)
		},
	}

	src.bind(cmd)
	cmd.Flags().StringVar(&output, "output", "", "Parquet file to write (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func bindCandidateFlags(cmd *cobra.Command, cfg *analyzer.Config) {
	cmd.Flags().IntVar(&cfg.MinCount, "min-count", analyzer.DefaultMinCount, "Minimum occurrences for an alias candidate")
	cmd.Flags().IntVar(&cfg.MaxCount, "max-count", 0, "Skip raw values seen more often than this (0 for no limit)")
	cmd.Flags().Float64Var(&cfg.MinScore, "min-score", analyzer.DefaultMinScore, "Minimum similarity for an alias candidate")
	cmd.Flags().BoolVar(&cfg.IncludeLowConfidence, "include-low-confidence", false, "Let low_confidence events feed alias candidates")
}

type outputOptions struct {
	format string
	path   string
}

func (o *outputOptions) bind(cmd *cobra.Command, defaultFormat, usage string) {
	cmd.Flags().StringVar(&o.format, "format", defaultFormat, usage)
	cmd.Flags().StringVarP(&o.path, "output", "o", "", "Output file (defaults to stdout)")
}

// resolve lets the output extension pick the format unless --format was given
func (o outputOptions) resolve(cmd *cobra.Command, fallback string) outputOptions {
	if !cmd.Flags().Changed("format") && o.path != "" {
		o.format = formatFromPath(o.path, fallback)
	}
	return o
}
