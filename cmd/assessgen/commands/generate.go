package commands

import (
	"encoding/json"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/di"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/spf13/cobra"
)

// GenerateCommand returns the generate command. opts are applied to the service
// container after the chunks file option.
func GenerateCommand(cfg *config.Config, logger *observability.Logger, opts ...di.Option) *cobra.Command {
	var (
		chunksFile string
		pretty     bool
	)

	cmd := &cobra.Command{
		Use:   "generate [request.json]",
		Short: "Generate an assessment from a request document",
		Long: `Generate an assessment from a request document.

The request is read from the named file, or from stdin when the argument is
omitted or "-". Source chunks come from Postgres when a database is configured,
otherwise from the --chunks file. The response is written to stdout as JSON.

Generation failures are reported in the response's error field and make the
command exit non-zero.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runGenerate(cfg, logger, &chunksFile, &pretty, opts),
	}

	cmd.Flags().StringVar(&chunksFile, "chunks", "", "JSON file of source chunks, used when no database is configured")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")

	return cmd
}

func runGenerate(cfg *config.Config, logger *observability.Logger, chunksFile *string, pretty *bool, opts []di.Option) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var path string
		if len(args) > 0 {
			path = args[0]
		}
		data, err := readInput(path, cmd.InOrStdin())
		if err != nil {
			return err
		}

		var req models.AssessmentRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid request JSON: %v", err)
		}

		containerOpts := append([]di.Option{di.WithChunksFile(*chunksFile)}, opts...)
		container := di.NewServiceContainer(cfg, logger, containerOpts...)
		if err := container.Initialize(ctx); err != nil {
			return err
		}
		defer func() {
			if err := container.Shutdown(ctx); err != nil {
				logger.Warn(ctx, "Error shutting down services", map[string]interface{}{"error": err.Error()})
			}
		}()

		svc, err := container.GetAssessmentService()
		if err != nil {
			return err
		}

		resp := svc.GenerateAssessment(ctx, &req)
		if err := writeJSON(cmd.OutOrStdout(), resp, *pretty); err != nil {
			return err
		}
		if resp.Error != nil {
			return contextutils.NewAppError(contextutils.ErrorCode(resp.Error.Code), contextutils.SeverityError, resp.Error.Message, resp.Error.Trace)
		}
		return nil
	}
}
