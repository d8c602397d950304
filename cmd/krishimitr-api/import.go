package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/krishimitr/assistant/internal/backend"
)

func newImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <knowledge_base.csv>",
		Short: "Replace the knowledge base with rows from a CSV file",
		Long: `Import knowledge base rows from a CSV file with a header row.

Required columns: source, content. Optional: content_hi, query_en.
Rows without content are skipped. Use --dry-run to validate without writing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if ext := strings.ToLower(filepath.Ext(input)); ext != ".csv" {
				return fmt.Errorf("unsupported file format: %s", ext)
			}

			file, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("open input file: %w", err)
			}
			defer file.Close()

			info, err := file.Stat()
			if err != nil {
				return fmt.Errorf("stat input file: %w", err)
			}

			logger.Info().
				Str("input", input).
				Bool("dry_run", dryRun).
				Msg("Importing knowledge base")

			var out io.Writer = cmd.ErrOrStderr()
			if !isTerminal(os.Stderr) {
				out = nil
			}
			progress := mpb.New(mpb.WithWidth(64), mpb.WithOutput(out))
			bar := progress.AddBar(info.Size(),
				mpb.PrependDecorators(
					decor.Name("read", decor.WC{W: 5, C: decor.DSyncSpaceR}),
					decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncWidth),
				),
				mpb.AppendDecorators(
					decor.Percentage(decor.WC{W: 5}),
					decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 8}),
				),
			)

			reader := bar.ProxyReader(file)
			records, stats, err := backend.ParseCSV(reader, nil)
			_ = reader.Close()
			bar.SetTotal(-1, true)
			progress.Wait()
			if err != nil {
				return fmt.Errorf("parse %s: %w", input, err)
			}

			if dryRun {
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Dry run: would import %d records (%d rows, %d skipped)\n",
					len(records), stats.Rows, stats.Skipped)
				return nil
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			svc := backend.NewService(store, nil, nil, logger)
			n, err := svc.Load(cmd.Context(), records)
			if err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Imported %d records from %s (%d rows, %d skipped)\n",
				n, input, stats.Rows, stats.Skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate without writing")

	return cmd
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
