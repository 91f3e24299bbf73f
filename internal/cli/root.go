// Package cli wires the cobra command tree and maps run outcomes to the
// documented exit codes: 0 succeeded, 1 failed, 2 configuration error,
// 3 partially completed (resumable).
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZhaohnNwafu/Autom6A/internal/pipeline"
	"github.com/ZhaohnNwafu/Autom6A/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "autom6a",
	Short: "Nanopore m6A modification pipeline orchestrator",
	Long: `Autom6A drives the five-stage nanopore m6A workflow (pod5 conversion,
dorado basecalling, minimap2 alignment, nanopolish eventalign, m6anet
inference) as external tools under isolated runtime contexts, with
checkpointed resume after partial failure.`,
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	switch {
	case errors.As(err, new(*pipeline.ConfigError)):
		return 2
	case errors.As(err, new(*pipeline.CanceledError)), errors.Is(err, context.Canceled):
		return 3
	default:
		return 1
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("autom6a %s\n", version.Version)
	},
}
