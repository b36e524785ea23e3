package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapcql/internal/cli/config"
	"github.com/leapstack-labs/leapcql/internal/loader"
)

// NewLibsCommand creates the libs command.
func NewLibsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "libs",
		Short: "List libraries and their include graph",
		Long: `Index the library directory and render every library with its
includes and dependents, in compile order.`,
		Example: `  leapcql libs
  leapcql libs --lib-dir shared`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetCurrentConfig()
			logger := config.GetLogger(cmd.Context())

			tc, err := newToolchain(cmd.Context(), cfg, logger, cfg.CompilerOptions(), nil)
			if err != nil {
				return err
			}
			defer tc.Close()

			graph := tc.registry.Graph()
			sorted, err := graph.TopologicalSort()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Library", "Version", "Includes", "Included By", "File"})

			for _, lib := range sorted {
				src, _ := lib.Data.(*loader.Source)
				if src == nil {
					continue
				}
				t.AppendRow(table.Row{
					src.Name,
					src.Version,
					strings.Join(graph.Includes(lib.ID), ", "),
					strings.Join(graph.Dependents(lib.ID), ", "),
					relativeTo(cfg.LibDir, src.Path),
				})
			}
			t.Render()

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "(%d libraries)\n", graph.Size())
			return nil
		},
	}
}

// relativeTo shortens path against base for display when possible.
func relativeTo(base, path string) string {
	if base == "" {
		return path
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(abs, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
