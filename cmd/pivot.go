package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/rowloom-cli/internal/dataimport"
	"github.com/KaramelBytes/rowloom-cli/internal/mapping"
	"github.com/KaramelBytes/rowloom-cli/internal/pivot"
	"github.com/KaramelBytes/rowloom-cli/internal/utils"
)

var (
	pivRows        []string
	pivCols        []string
	pivValue       string
	pivFormat      string
	pivTotals      bool
	pivOutputPath  string
	pivContentType string
)

var pivotCmd = &cobra.Command{
	Use:   "pivot <file.csv|file.json>",
	Short: "Sum a value field grouped by row and column fields",
	Long: `Pivot groups records by the --rows fields and the --cols fields and sums the
--value field in each cell. Values that are not numbers count as 0, and
combinations that never occur are shown as 0.

Input is a CSV file, or a JSON array of objects when the file ends in .json.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if strings.TrimSpace(pivValue) == "" {
			return fmt.Errorf("--value is required")
		}
		rows, err := loadPivotRows(path)
		if err != nil {
			return err
		}
		tbl := pivot.Aggregate(rows, pivRows, pivCols, pivValue)
		logger.Debug("pivoted rows",
			zap.Int("records", len(rows)),
			zap.Int("row_keys", len(tbl.RowHeaders)),
			zap.Int("col_keys", len(tbl.ColHeaders)))

		opt := pivot.RenderOptions{
			Format: pivFormat,
			Totals: pivTotals,
			Corner: strings.Join(pivRows, pivot.KeySeparator),
		}
		if pivOutputPath == "" {
			return pivot.Render(cmd.OutOrStdout(), tbl, opt)
		}
		var buf bytes.Buffer
		if err := pivot.Render(&buf, tbl, opt); err != nil {
			return err
		}
		if err := utils.SafeWriteFile(pivOutputPath, buf.Bytes()); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d x %d pivot to %s\n", len(tbl.RowHeaders), len(tbl.ColHeaders), pivOutputPath)
		return nil
	},
}

func loadPivotRows(path string) ([]pivot.Row, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		return pivot.LoadJSONRows(f)
	}
	im := dataimport.NewImporter(logger, mapping.Options{}, 0)
	t, err := im.LoadFile(path, pivContentType)
	if err != nil {
		return nil, err
	}
	return pivot.RowsFromTable(t), nil
}

func init() {
	rootCmd.AddCommand(pivotCmd)
	pivotCmd.Flags().StringSliceVar(&pivRows, "rows", nil, "comma-separated row grouping fields")
	pivotCmd.Flags().StringSliceVar(&pivCols, "cols", nil, "comma-separated column grouping fields")
	pivotCmd.Flags().StringVar(&pivValue, "value", "", "field to sum")
	pivotCmd.Flags().StringVarP(&pivFormat, "format", "f", pivot.FormatTable, "output format: table|markdown|csv|json")
	pivotCmd.Flags().BoolVar(&pivTotals, "totals", false, "append row and column totals")
	pivotCmd.Flags().StringVarP(&pivOutputPath, "output", "o", "", "write the rendered pivot to this path")
	pivotCmd.Flags().StringVar(&pivContentType, "content-type", "", "declared content type, for files without a .csv extension")
}
