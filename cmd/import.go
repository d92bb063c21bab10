package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/rowloom-cli/internal/dataimport"
	"github.com/KaramelBytes/rowloom-cli/internal/datasets"
	"github.com/KaramelBytes/rowloom-cli/internal/mapping"
	"github.com/KaramelBytes/rowloom-cli/internal/utils"
)

var (
	impMappingFile string
	impInput       string
	impExpected    string
	impMetadata    string
	impTypes       []string
	impStrict      bool
	impContentType string
	impOutputPath  string
	impDataset     string
	impDescription string
	impKeys        string
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Map CSV rows to dataset items and write or upload them",
	Long: `Import parses a CSV file, guesses which columns hold the input, the expected
output and the metadata, casts numeric columns, and emits one item per row.

The guess can be replaced with --mapping (a YAML file) or per role with
--input, --expected and --metadata. Pass "-" to leave a role unset.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		c := effectiveConfig()
		im := dataimport.NewImporter(logger, mapping.Options{Strict: impStrict || c.StrictMapping}, c.SampleRows)

		override, err := buildOverride(impMappingFile, map[mapping.Role]string{
			mapping.RoleInput:          impInput,
			mapping.RoleExpectedOutput: impExpected,
			mapping.RoleMetadata:       impMetadata,
		}, impTypes)
		if err != nil {
			return err
		}
		t, err := im.LoadFile(path, impContentType)
		if err != nil {
			return err
		}
		plan, err := im.Build(t, override)
		if err != nil {
			return err
		}
		if plan.NullCasts > 0 {
			fmt.Fprintf(os.Stderr, "⚠ Warning: %d numeric cells could not be parsed and were set to null\n", plan.NullCasts)
		}
		payload, err := itemsPayload(plan, impKeys)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		written := false
		if impOutputPath != "" {
			b, err := utils.PrettyJSON(payload)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(impOutputPath, b); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote %d items to %s\n", len(plan.Items), impOutputPath)
			written = true
		}
		if impDataset != "" {
			client, err := datasets.NewClient(c.DatasetConfig(), logger)
			if err != nil {
				return err
			}
			desc := impDescription
			if desc == "" {
				desc = "Imported from " + filepath.Base(path)
			}
			ds, err := client.CreateDataset(cmd.Context(), impDataset, desc)
			if err != nil {
				return fmt.Errorf("create dataset: %w", err)
			}
			n, err := client.AddItems(cmd.Context(), ds.ID, plan.Items)
			if err != nil {
				logger.Error("upload incomplete", zap.String("dataset", ds.ID), zap.Int("uploaded", n), zap.Error(err))
				return err
			}
			fmt.Fprintf(out, "✓ Uploaded %d items to dataset '%s' (%s)\n", n, ds.Name, ds.ID)
			written = true
		}
		if !written {
			b, err := utils.PrettyJSON(payload)
			if err != nil {
				return err
			}
			_, err = out.Write(b)
			return err
		}
		if len(plan.Unmapped) > 0 {
			fmt.Fprintf(out, "  unmapped columns: %s\n", strings.Join(plan.Unmapped, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&impMappingFile, "mapping", "m", "", "YAML mapping file overriding the guessed mapping")
	importCmd.Flags().StringVar(&impInput, "input", "", "column for the input role ('-' to unset)")
	importCmd.Flags().StringVar(&impExpected, "expected", "", "column for the expected output role ('-' to unset)")
	importCmd.Flags().StringVar(&impMetadata, "metadata", "", "column for the metadata role ('-' to unset)")
	importCmd.Flags().StringArrayVar(&impTypes, "type", nil, "column type override as column=string|number (repeatable)")
	importCmd.Flags().BoolVar(&impStrict, "strict", false, "reject a column assigned to more than one role")
	importCmd.Flags().StringVar(&impContentType, "content-type", "", "declared content type, for files without a .csv extension")
	importCmd.Flags().StringVarP(&impOutputPath, "output", "o", "", "write items as JSON to this path")
	importCmd.Flags().StringVar(&impDataset, "dataset", "", "create a dataset with this name and upload the items")
	importCmd.Flags().StringVar(&impDescription, "desc", "", "dataset description when uploading")
	importCmd.Flags().StringVar(&impKeys, "keys", keysRole, "item layout for JSON output: role|header")
}
