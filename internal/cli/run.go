package cli

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig    string
	flagRunID     string
	flagSignalDir string
	flagReference string
	flagOutput    string
	flagThreads   int
	flagTimeout   string
	flagAttempts  int
	flagVerbose   bool
)

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Run the m6A pipeline from the beginning (or resume an existing run id)",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executePipeline(cmd, false)
	},
}

var resumeCmd = &cobra.Command{
	Use:          "resume",
	Short:        "Resume a checkpointed run from its first incomplete stage",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executePipeline(cmd, true)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, resumeCmd} {
		cmd.Flags().StringVarP(&flagConfig, "config", "c", "", "Path to run configuration YAML")
		cmd.Flags().StringVar(&flagRunID, "run-id", "", "Run identifier (generated if empty)")
		cmd.Flags().StringVar(&flagSignalDir, "signal-dir", "", "Raw signal (fast5) input directory")
		cmd.Flags().StringVar(&flagReference, "reference", "", "Reference transcriptome FASTA")
		cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output directory root")
		cmd.Flags().IntVar(&flagThreads, "threads", 0, "Worker threads passed to the external tools")
		cmd.Flags().StringVar(&flagTimeout, "stage-timeout", "", "Wall-clock timeout per stage (e.g. 2h)")
		cmd.Flags().IntVar(&flagAttempts, "max-attempts", 0, "Maximum attempts per stage")
		cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose output")
	}
}
