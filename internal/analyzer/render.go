package analyzer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format selects a report renderer
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatCSV      Format = "csv"
)

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatMarkdown, FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", name)
	}
}

// Render writes r in format. CSV is only offered for candidate lists.
func Render(w io.Writer, r Report, format Format) error {
	switch format {
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(r))
		return err
	case FormatJSON:
		return writeJSON(w, r)
	case FormatYAML:
		return writeYAML(w, r)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// RenderCandidates writes the candidate list as structured data for review
func RenderCandidates(w io.Writer, candidates []AliasCandidate, format Format) error {
	if candidates == nil {
		candidates = []AliasCandidate{}
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, candidates)
	case FormatYAML:
		return writeYAML(w, candidates)
	case FormatCSV:
		return writeCandidatesCSV(w, candidates)
	default:
		return fmt.Errorf("unsupported candidate format: %s", format)
	}
}

// RenderTermCandidates writes new-term candidates for review
func RenderTermCandidates(w io.Writer, candidates []TermCandidate, format Format) error {
	if candidates == nil {
		candidates = []TermCandidate{}
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, candidates)
	case FormatYAML:
		return writeYAML(w, candidates)
	case FormatCSV:
		return writeTermsCSV(w, candidates)
	default:
		return fmt.Errorf("unsupported candidate format: %s", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

func writeCandidatesCSV(w io.Writer, candidates []AliasCandidate) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"domain", "raw", "suggested_canonical_key", "score", "supporting_count"}); err != nil {
		return err
	}
	for _, c := range candidates {
		row := []string{
			string(c.Domain),
			c.Raw,
			c.SuggestedKey,
			fmt.Sprintf("%.4f", c.Score),
			fmt.Sprintf("%d", c.SupportingCount),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// Markdown renders the weekly review layout
func Markdown(r Report) string {
	var b strings.Builder

	b.WriteString("# Unknown Queue Weekly Report\n\n")
	fmt.Fprintf(&b, "- Window: %s\n", describeWindow(r))
	if r.Source != "" {
		fmt.Fprintf(&b, "- Source: `%s`\n", r.Source)
	}
	fmt.Fprintf(&b, "- Dictionary version: %s\n", r.DictionaryVersion)
	fmt.Fprintf(&b, "- Total events: %d\n", r.TotalEvents)
	fmt.Fprintf(&b, "- Unique raw values: %d\n\n", r.UniqueRaw)

	b.WriteString("## Domain Breakdown\n\n")
	b.WriteString("domain | events | compound_raw_events\n--- | --- | ---\n")
	for _, d := range r.Domains {
		fmt.Fprintf(&b, "%s | %d | %d\n", d.Domain, d.Events, d.CompoundRawEvents)
	}
	b.WriteString("\n")

	b.WriteString("## Reasons\n\n")
	b.WriteString("reason | count\n--- | ---\n")
	for _, c := range r.Reasons {
		fmt.Fprintf(&b, "%s | %d\n", c.Name, c.Count)
	}
	if len(r.Reasons) == 0 {
		b.WriteString("(none)\n")
	}
	b.WriteString("\n")

	if len(r.MatchKinds) > 0 {
		b.WriteString("## Match Kinds\n\n")
		b.WriteString("match_kind | count\n--- | ---\n")
		for _, c := range r.MatchKinds {
			fmt.Fprintf(&b, "%s | %d\n", c.Name, c.Count)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Top Unknown Values\n\n")
	for _, dv := range r.TopValues {
		fmt.Fprintf(&b, "### %s\n\n", dv.Domain)
		b.WriteString("count | raw | top_reason | latest\n--- | --- | --- | ---\n")
		for _, v := range dv.Values {
			fmt.Fprintf(&b, "%d | %s | %s | %s\n", v.Count, escapeCell(v.Raw), v.TopReason, formatTime(v.LatestAt))
		}
		b.WriteString("\n")
	}
	if len(r.TopValues) == 0 {
		b.WriteString("(none)\n\n")
	}

	b.WriteString("## Alias Candidates (Review Required)\n\n")
	b.WriteString("domain | raw | suggested_canonical_key | score | supporting_count\n--- | --- | --- | --- | ---\n")
	for _, c := range r.Candidates {
		fmt.Fprintf(&b, "%s | %s | %s | %.4f | %d\n", c.Domain, escapeCell(c.Raw), c.SuggestedKey, c.Score, c.SupportingCount)
	}
	if len(r.Candidates) == 0 {
		b.WriteString("(none)\n")
	}
	b.WriteString("\n")

	b.WriteString("## Recommended Actions\n\n")
	b.WriteString("- Split compound values at the extraction stage when `compound_raw_events` grows.\n")
	b.WriteString("- For `flavor_note`, only add typo aliases after manual review.\n")
	b.WriteString("- Promote frequent unknown values to new terms when they are new canonical concepts.\n")
	return b.String()
}

func describeWindow(r Report) string {
	switch {
	case r.Window.Since.IsZero() && r.Window.Until.IsZero():
		return "all events"
	case r.Window.Until.IsZero():
		return "since " + formatTime(r.Window.Since)
	case r.Window.Since.IsZero():
		return "until " + formatTime(r.Window.Until)
	default:
		return formatTime(r.Window.Since) + " to " + formatTime(r.Window.Until)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// escapeCell keeps a raw value from breaking a markdown table row
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func writeTermsCSV(w io.Writer, candidates []TermCandidate) error {
	writer := csv.NewWriter(w)

	header := []string{"domain", "raw", "count", "avg_confidence", "top_reason", "best_key", "best_score", "suggested_key"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, c := range candidates {
		row := []string{
			string(c.Domain),
			c.Raw,
			fmt.Sprintf("%d", c.Count),
			fmt.Sprintf("%.4f", c.AvgConfidence),
			c.TopReason,
			c.BestMatch.Key,
			fmt.Sprintf("%.4f", c.BestMatch.Score),
			c.Template.Key,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
