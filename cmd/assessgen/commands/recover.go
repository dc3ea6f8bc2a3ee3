package commands

import (
	"fmt"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/jsonrecovery"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/spf13/cobra"
)

// RecoverCommand returns the recover command
func RecoverCommand() *cobra.Command {
	var showStage bool

	cmd := &cobra.Command{
		Use:   "recover [file]",
		Short: "Recover JSON from raw model output",
		Long: `Recover a JSON document from raw model output read from a file, or from
stdin when the argument is omitted or "-".

Reasoning blocks and code fences are removed first. The recovered JSON is
written to stdout; --stage reports the recovery step that produced it on stderr.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRecover(&showStage),
	}

	cmd.Flags().BoolVar(&showStage, "stage", false, "Report the recovery stage on stderr")

	return cmd
}

func runRecover(showStage *bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) > 0 {
			path = args[0]
		}
		data, err := readInput(path, cmd.InOrStdin())
		if err != nil {
			return err
		}

		result, stage := jsonrecovery.ExtractWithStage(jsonrecovery.CleanModelText(string(data)))
		if *showStage {
			fmt.Fprintf(cmd.ErrOrStderr(), "stage: %s\n", stage)
		}
		if stage == jsonrecovery.StageNone {
			return contextutils.WrapError(contextutils.ErrAIResponseInvalid, "no JSON could be recovered")
		}
		fmt.Fprintln(cmd.OutOrStdout(), result)
		return nil
	}
}
