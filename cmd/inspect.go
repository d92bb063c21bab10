package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/rowloom-cli/internal/dataimport"
	"github.com/KaramelBytes/rowloom-cli/internal/mapping"
)

var (
	insContentType string
	insSampleRows  int
	insStrict      bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.csv>",
	Short: "Show headers, the guessed column mapping and sample rows of a CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		c := effectiveConfig()
		im := dataimport.NewImporter(logger, mapping.Options{Strict: insStrict || c.StrictMapping}, c.SampleRows)
		t, err := im.LoadFile(path, insContentType)
		if err != nil {
			return err
		}
		plan, err := im.Build(t, nil)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Parsed %s: %d columns, %d rows\n", filepath.Base(path), len(t.Headers), len(t.Rows))
		renderMapping(out, plan.Mapping)
		if len(plan.Unmapped) > 0 {
			fmt.Fprintf(out, "Unmapped columns: %s\n", strings.Join(plan.Unmapped, ", "))
		} else {
			fmt.Fprintln(out, "Unmapped columns: (none)")
		}
		if plan.NullCasts > 0 {
			fmt.Fprintf(out, "⚠ %d numeric cells could not be parsed and would be null\n", plan.NullCasts)
		}
		if insSampleRows > 0 {
			fmt.Fprintln(out, "Sample rows:")
			renderSample(out, t.Headers, t.Rows, insSampleRows)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&insContentType, "content-type", "", "declared content type, for files without a .csv extension")
	inspectCmd.Flags().IntVar(&insSampleRows, "sample", 5, "number of sample rows to show (0 = none)")
	inspectCmd.Flags().BoolVar(&insStrict, "strict", false, "never assign one column to more than one role")
}
