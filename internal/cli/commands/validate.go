package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcql/internal/cli/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file.cql...>",
		Short: "Check CQL libraries without writing ELM",
		Long: `Parse and resolve CQL libraries, reporting diagnostics without
producing any output files. Exits non-zero when any library has
error-severity diagnostics.`,
		Example: `  leapcql validate measures/*.cql
  leapcql validate --lib-dir shared measure.cql`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetCurrentConfig()
			logger := config.GetLogger(cmd.Context())
			opts := emissionOptions(cmd, cfg)

			tc, err := newToolchain(cmd.Context(), cfg, logger, opts, inputDirs(args))
			if err != nil {
				return err
			}
			defer tc.Close()

			errCount := 0
			for _, path := range args {
				res, err := compileOne(cmd.Context(), tc, path)
				if err != nil {
					return err
				}
				errCount += printDiagnostics(cmd.ErrOrStderr(), path, res.Diagnostics)
			}

			if errCount > 0 {
				return fmt.Errorf("validation failed with %d error(s)", errCount)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d librar%s validated\n", len(args), pluralYies(len(args)))
			return nil
		},
	}

	addEmissionFlags(cmd)
	return cmd
}
