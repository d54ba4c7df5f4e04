package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/matcher"
)

func newDictCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dict",
		Short: "Inspect and validate the canonical dictionary",
	}

	cmd.AddCommand(newDictVersionsCmd(a))
	cmd.AddCommand(newDictValidateCmd(a))
	cmd.AddCommand(newDictShowCmd(a))
	cmd.AddCommand(newDictMatchCmd(a))

	return cmd
}

func newDictVersionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List the available dictionary versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			versions, err := dictionary.Versions(a.dictionaryTree())
			if err != nil {
				return err
			}
			for _, v := range versions {
				marker := ""
				if v == a.cfg.DictionaryVersion {
					marker = " (default)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", v, marker)
			}
			return nil
		},
	}
}

func newDictValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [version...]",
		Short: "Check dictionary data for structural problems",
		Long: `Loads each version and reports every problem found: duplicate term keys,
aliases that reference unknown keys, conflicting aliases and malformed files.

Without arguments every version is validated.`,
		Example: `  beanlens dict validate
  beanlens dict validate v2 --config beanlens.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys := a.dictionaryTree()
			versions := args
			if len(versions) == 0 {
				var err error
				if versions, err = dictionary.Versions(fsys); err != nil {
					return err
				}
			}

			failed := 0
			for _, v := range versions {
				if err := dictionary.Validate(fsys, v); err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: FAIL\n%v\n", v, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", v)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d dictionary versions are invalid", failed, len(versions))
			}
			return nil
		},
	}
}

// domainView is the printable form of one domain of a dictionary version
type domainView struct {
	Version string             `json:"version" yaml:"version"`
	Domain  dictionary.Domain  `json:"domain" yaml:"domain"`
	Terms   []dictionary.Term  `json:"terms" yaml:"terms"`
	Aliases []dictionary.Alias `json:"aliases" yaml:"aliases"`
}

func newDictShowCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <version> [domain...]",
		Short: "Print the terms and aliases of a dictionary version",
		Args:  cobra.MinimumNArgs(1),
		Example: `  beanlens dict show v1 process
  beanlens dict show v2 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dict, err := dictionary.LoadFS(a.dictionaryTree(), args[0])
			if err != nil {
				return err
			}
			domains := dictionary.Domains
			if len(args) > 1 {
				domains = nil
				for _, name := range args[1:] {
					d, err := dictionary.ParseDomain(name)
					if err != nil {
						return err
					}
					domains = append(domains, d)
				}
			}

			views := make([]domainView, 0, len(domains))
			for _, d := range domains {
				views = append(views, domainView{
					Version: dict.Version(),
					Domain:  d,
					Terms:   dict.Terms(d),
					Aliases: dict.Aliases(d),
				})
			}
			return writeStructured(cmd.OutOrStdout(), views, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Output format (yaml, json)")
	return cmd
}

func newDictMatchCmd(a *app) *cobra.Command {
	var version string
	var locale string

	cmd := &cobra.Command{
		Use:   "match <domain> <raw>",
		Short: "Match one raw value and print the result",
		Long: `Runs the matcher on a single raw value without splitting it and without
recording anything in the unknown queue.`,
		Args: cobra.ExactArgs(2),
		Example: `  beanlens dict match process 워시드
  beanlens dict match roast_level "Midium-Light Roast"
  beanlens dict match flavor_note Jasmin --dictionary-version v2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := dictionary.ParseDomain(args[0])
			if err != nil {
				return err
			}
			if version == "" {
				version = a.cfg.DictionaryVersion
			}
			if locale == "" {
				locale = a.cfg.Locale
			}
			dict, err := dictionary.LoadFS(a.dictionaryTree(), version)
			if err != nil {
				return err
			}
			m := matcher.New(dict, a.cfg.MatcherConfig())
			field := m.Match(matcher.RawValue{Domain: domain, Raw: args[1], LocaleHint: locale})
			return writeStructured(cmd.OutOrStdout(), field, "json")
		},
	}

	cmd.Flags().StringVar(&version, "dictionary-version", "", "Dictionary version (defaults to the configured version)")
	cmd.Flags().StringVar(&locale, "locale", "", "Preferred label locale")
	return cmd
}

func writeStructured(w io.Writer, v any, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		return encoder.Encode(v)
	case "yaml", "yml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
