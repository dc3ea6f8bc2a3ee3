package commands

import (
	"fmt"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/tokens"

	"github.com/spf13/cobra"
)

// EstimateCommand returns the estimate command
func EstimateCommand() *cobra.Command {
	var maxTokens int

	cmd := &cobra.Command{
		Use:   "estimate [file]",
		Short: "Estimate the token count of a text",
		Long: `Estimate the token count of a text file, or of stdin when the argument is
omitted or "-".

With --max the text is truncated to that many tokens and written to stdout,
followed by the estimate on stderr.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runEstimate(&maxTokens),
	}

	cmd.Flags().IntVar(&maxTokens, "max", 0, "Truncate the text to this many tokens")

	return cmd
}

func runEstimate(maxTokens *int) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) > 0 {
			path = args[0]
		}
		data, err := readInput(path, cmd.InOrStdin())
		if err != nil {
			return err
		}
		text := string(data)

		if *maxTokens <= 0 {
			fmt.Fprintln(cmd.OutOrStdout(), tokens.Estimate(text))
			return nil
		}

		truncated := tokens.Truncate(text, *maxTokens)
		fmt.Fprintln(cmd.OutOrStdout(), truncated)
		fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d -> %d\n", tokens.Estimate(text), tokens.Estimate(truncated))
		return nil
	}
}
