package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bean-lens/beanlens/internal/matcher"
	"github.com/bean-lens/beanlens/internal/models"
	"github.com/bean-lens/beanlens/internal/normalizer"
)

func newNormalizeCmd(a *app) *cobra.Command {
	var input string
	var output string
	var version string
	var locale string
	var concurrency int
	var records bool
	var noQueue bool

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize extracted bean records against the dictionary",
		Long: `Reads extracted bean records as JSON lines, a JSON array or a single JSON
document and writes one normalized record per line, in input order.

Values that are unknown or below the confidence threshold are appended to the
unknown queue, and forwarded to the webhook when one is configured.`,
		Example: `  # Normalize a file of extracted records
  beanlens normalize --input extracted.jsonl --output normalized.jsonl

  # Pipe one record through the v2 dictionary with Korean labels
  echo '{"process":"워시드","flavor_notes":["자스민, 적포도"]}' | beanlens normalize --dictionary-version v2 --locale ko

  # Generic domain records, without touching the queue
  beanlens normalize --records --no-queue --input records.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("dictionary-version") {
				a.cfg.DictionaryVersion = version
			}
			if cmd.Flags().Changed("locale") {
				a.cfg.Locale = locale
			}
			return executeNormalize(cmd, a, input, output, concurrency, records, noQueue)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "Input file, - for stdin")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to stdout)")
	cmd.Flags().StringVar(&version, "dictionary-version", "", "Dictionary version (defaults to the configured version)")
	cmd.Flags().StringVar(&locale, "locale", "", "Preferred label locale, e.g. en or ko")
	cmd.Flags().IntVar(&concurrency, "concurrency", normalizer.DefaultConcurrency, "Number of records normalized in parallel")
	cmd.Flags().BoolVar(&records, "records", false, "Input holds generic domain records instead of bean records")
	cmd.Flags().BoolVar(&noQueue, "no-queue", false, "Do not record unknown values")

	return cmd
}

func executeNormalize(cmd *cobra.Command, a *app, input, output string, concurrency int, records, noQueue bool) error {
	catalog, err := a.catalog()
	if err != nil {
		return err
	}
	dict, err := catalog.Get(a.cfg.DictionaryVersion)
	if err != nil {
		return err
	}

	var emitter normalizer.Emitter
	if !noQueue {
		emitter = a.emitter(nil, nil)
	}
	n := normalizer.New(matcher.New(dict, a.cfg.MatcherConfig()), emitter, nil, a.cfg.NormalizerConfig())

	var r io.Reader = cmd.InOrStdin()
	if input != "-" && input != "" {
		file, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer file.Close()
		r = file
	}

	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer file.Close()
		w = file
	}

	start := time.Now()
	var results []any
	if records {
		recs, err := models.DecodeStream[normalizer.Record](r)
		if err != nil {
			return err
		}
		out, err := n.NormalizeRecords(cmd.Context(), recs, concurrency)
		if err != nil {
			return err
		}
		for _, res := range out {
			results = append(results, res)
		}
	} else {
		beans, err := models.DecodeBeans(r)
		if err != nil {
			return err
		}
		out, err := n.NormalizeBeans(cmd.Context(), beans, concurrency)
		if err != nil {
			return err
		}
		for _, res := range out {
			results = append(results, res)
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for _, res := range results {
		if err := encoder.Encode(res); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	slog.Info("Normalization complete", "records", len(results), "dictionary_version", dict.Version(), "duration", time.Since(start))
	return nil
}
