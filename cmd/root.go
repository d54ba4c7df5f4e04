package cmd

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bean-lens/beanlens/internal/config"
	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/logging"
	"github.com/bean-lens/beanlens/internal/metrics"
	"github.com/bean-lens/beanlens/internal/queue"
)

// app carries the settings resolved in the root pre-run to every subcommand
type app struct {
	configPath string
	logLevel   string
	logJSON    bool
	cfg        config.Config
}

func NewRootCmd() *cobra.Command {
	a := &app{cfg: config.Default()}

	cmd := &cobra.Command{
		Use:   "beanlens",
		Short: "Coffee bean metadata normalization engine",
		Long: `Beanlens maps noisy, multilingual metadata extracted from coffee packages onto a
versioned canonical dictionary.

Values that do not resolve confidently are recorded in an unknown queue, which the
queue commands turn into review reports and dictionary suggestions.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			logging.Setup(logging.Config{Level: a.logLevel, JSON: a.logJSON, Output: os.Stderr})

			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("BEANLENS_CONFIG"), "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "Log as JSON")

	cmd.AddCommand(newNormalizeCmd(a))
	cmd.AddCommand(newDictCmd(a))
	cmd.AddCommand(newQueueCmd())
	cmd.AddCommand(newServeCmd(a))

	return cmd
}

// dictionaryTree is the configured dictionary directory, or the embedded tree
func (a *app) dictionaryTree() fs.FS {
	if a.cfg.DictionaryDir != "" {
		return os.DirFS(a.cfg.DictionaryDir)
	}
	return dictionary.Embedded()
}

// catalog loads every dictionary version of the dictionary tree
func (a *app) catalog() (*dictionary.Catalog, error) {
	catalog, err := dictionary.OpenCatalog(a.dictionaryTree())
	if err != nil {
		return nil, fmt.Errorf("failed to load dictionaries: %w", err)
	}
	return catalog, nil
}

// emitter builds the unknown queue emitter over local, falling back to the
// configured queue file, plus the remote webhook when one is configured.
func (a *app) emitter(local queue.Sink, rec *metrics.Recorder) *queue.Emitter {
	if local == nil && a.cfg.Queue.Path != "" {
		local = queue.NewFileSink(a.cfg.Queue.Path)
	}
	var remote queue.Deliverer
	if a.cfg.Queue.RemoteURL != "" {
		remote = queue.NewRemoteSink(a.cfg.Queue.RemoteURL, a.cfg.Queue.RemoteToken, a.cfg.RemoteTimeout())
	}
	return queue.NewEmitter(local, remote, rec)
}
