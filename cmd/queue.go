package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bean-lens/beanlens/internal/queuecmd"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Unknown queue review tools",
		Long: `Review tools for the unknown queue: weekly reports, alias and new term
suggestions, and Parquet archives.

Every suggestion is advisory. Dictionary data only changes through review.`,
	}

	cmd.AddCommand(queuecmd.NewReportCmd())
	cmd.AddCommand(queuecmd.NewCandidatesCmd())
	cmd.AddCommand(queuecmd.NewTermsCmd())
	cmd.AddCommand(queuecmd.NewExportCmd())

	return cmd
}
