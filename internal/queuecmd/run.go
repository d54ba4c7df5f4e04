package queuecmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bean-lens/beanlens/internal/analyzer"
	"github.com/bean-lens/beanlens/internal/queue"
)

func executeReport(cmd *cobra.Command, src sourceOptions, dictOpts dictionaryOptions, out outputOptions, cfg analyzer.Config) error {
	format, err := analyzer.ParseFormat(out.format)
	if err != nil {
		return err
	}
	dict, err := dictOpts.load()
	if err != nil {
		return fmt.Errorf("failed to load dictionary: %w", err)
	}
	events, window, err := src.load(cmd.Context())
	if err != nil {
		return err
	}
	slog.Info("Loaded unknown queue events", "source", src.describe(), "events", len(events))

	report := analyzer.Analyze(dict, events, cfg)
	report.GeneratedAt = now().UTC()
	report.Window = window
	report.Source = src.describe()

	w, closeOut, err := openOutput(cmd, out.path)
	if err != nil {
		return err
	}
	if err := analyzer.Render(w, report, format); err != nil {
		_ = closeOut()
		return fmt.Errorf("failed to render report: %w", err)
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if out.path != "" {
		slog.Info("Report written", "output", out.path, "candidates", len(report.Candidates))
	}
	return nil
}

func executeCandidates(cmd *cobra.Command, src sourceOptions, dictOpts dictionaryOptions, out outputOptions, cfg analyzer.Config) error {
	format, err := analyzer.ParseFormat(out.format)
	if err != nil {
		return err
	}
	dict, err := dictOpts.load()
	if err != nil {
		return fmt.Errorf("failed to load dictionary: %w", err)
	}
	events, _, err := src.load(cmd.Context())
	if err != nil {
		return err
	}

	candidates := analyzer.Candidates(dict, events, cfg)
	slog.Info("Generated alias candidates", "events", len(events), "candidates", len(candidates))

	w, closeOut, err := openOutput(cmd, out.path)
	if err != nil {
		return err
	}
	if err := analyzer.RenderCandidates(w, candidates, format); err != nil {
		_ = closeOut()
		return fmt.Errorf("failed to write candidates: %w", err)
	}
	return closeOut()
}

func executeTerms(cmd *cobra.Command, src sourceOptions, dictOpts dictionaryOptions, out outputOptions, cfg analyzer.TermConfig) error {
	format, err := analyzer.ParseFormat(out.format)
	if err != nil {
		return err
	}
	dict, err := dictOpts.load()
	if err != nil {
		return fmt.Errorf("failed to load dictionary: %w", err)
	}
	events, _, err := src.load(cmd.Context())
	if err != nil {
		return err
	}

	candidates := analyzer.TermCandidates(dict, events, cfg)
	slog.Info("Generated term candidates", "events", len(events), "candidates", len(candidates))

	w, closeOut, err := openOutput(cmd, out.path)
	if err != nil {
		return err
	}
	if err := analyzer.RenderTermCandidates(w, candidates, format); err != nil {
		_ = closeOut()
		return fmt.Errorf("failed to write term candidates: %w", err)
	}
	return closeOut()
}

func executeExport(cmd *cobra.Command, src sourceOptions, output string) error {
	events, _, err := src.load(cmd.Context())
	if err != nil {
		return err
	}
	if err := queue.WriteParquet(output, events); err != nil {
		return err
	}
	slog.Info("Exported unknown queue events", "source", src.describe(), "output", output, "events", len(events))
	return nil
}
