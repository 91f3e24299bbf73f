package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZhaohnNwafu/Autom6A/internal/checkpoint"
	"github.com/ZhaohnNwafu/Autom6A/internal/pipeline"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:          "status",
	Short:        "Show the checkpointed state of a run",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := checkpoint.NewStore(statusOutput)
		st, err := store.Load("")
		if err != nil {
			return err
		}
		if st == nil {
			fmt.Printf("no run recorded under %s\n", statusOutput)
			return nil
		}
		pipeline.WriteReport(os.Stdout, st)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", ".", "Output directory root of the run")
}
