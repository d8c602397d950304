package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/krishimitr/assistant/internal/backend"
	"github.com/krishimitr/assistant/internal/storage"
)

func newETLCmd() *cobra.Command {
	var (
		rawDir  string
		weather string
		market  string
		outPath string
		load    bool
	)

	cmd := &cobra.Command{
		Use:   "etl",
		Short: "Build knowledge_base.csv from raw weather and market data",
		Long: `Convert raw source data into knowledge base rows.

Reads imd_weather.csv (Date, City, Temperature, Humidity, Rainfall_mm) and
agmarknet.json (commodity, market, date, price_per_quintal) from --raw-dir,
adds the built-in policy rows and writes the result as CSV. Missing raw files
are skipped with a warning. With --load the rows also replace the knowledge
base.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := backend.RawSources{
				Weather: filepath.Join(rawDir, "imd_weather.csv"),
				Market:  filepath.Join(rawDir, "agmarknet.json"),
			}
			if weather != "" {
				src.Weather = weather
			}
			if market != "" {
				src.Market = market
			}

			records, err := backend.BuildKnowledgeBase(src, logger)
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := writeKnowledgeBase(outPath, records); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Wrote %d records to %s\n", len(records), outPath)
			}

			if !load {
				return nil
			}
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := backend.NewService(store, nil, nil, logger).Load(cmd.Context(), records)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Loaded %d records into the knowledge base\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&rawDir, "raw-dir", "raw_data", "directory holding imd_weather.csv and agmarknet.json")
	cmd.Flags().StringVar(&weather, "weather", "", "weather CSV path (overrides --raw-dir)")
	cmd.Flags().StringVar(&market, "market", "", "market price JSON path (overrides --raw-dir)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "knowledge_base.csv", "output CSV path (empty to skip)")
	cmd.Flags().BoolVar(&load, "load", false, "also replace the knowledge base with the generated rows")

	return cmd
}

func writeKnowledgeBase(path string, records []storage.Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := backend.WriteCSV(f, records); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
