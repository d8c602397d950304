package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/krishimitr/assistant/internal/app"
	"github.com/krishimitr/assistant/internal/assistant"
)

var statusJSON bool

// statusReport is what the status command prints.
type statusReport struct {
	API           string `json:"api"`
	Online        bool   `json:"online"`
	Database      string `json:"database"`
	SchemaVersion string `json:"schema_version"`
	Records       int    `json:"records"`
	Queued        int    `json:"queued"`
	Matcher       string `json:"matcher"`
	Cache         string `json:"cache"`
	Voice         bool   `json:"voice"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity and local knowledge base state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx, cfg, assistant.NopView{}, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		report := statusReport{
			API:      rt.client.BaseURL(),
			Online:   rt.monitor.IsOnline(),
			Database: rt.store.Driver(),
			Matcher:  cfg.Retrieval.Matcher,
			Cache:    "off",
			Voice:    cfg.VoiceEnabled(),
		}
		if cfg.Cache.Enabled {
			report.Cache = cfg.Cache.Driver
		}
		if report.Records, err = rt.store.Count(ctx); err != nil {
			return err
		}
		if report.SchemaVersion, err = rt.store.SchemaVersion(ctx); err != nil {
			return err
		}
		pending, err := rt.store.Pending(ctx)
		if err != nil {
			return err
		}
		report.Queued = len(pending)

		return writeStatus(cmd.OutOrStdout(), report, statusJSON)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "krishimitr v%s\n", app.Version)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func writeStatus(w io.Writer, r statusReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	connection := "offline"
	if r.Online {
		connection = "online"
	}
	voice := "off"
	if r.Voice {
		voice = "on"
	}

	rows := [][]string{
		{"API", r.API + " (" + connection + ")"},
		{"Database", r.Database + " (schema " + r.SchemaVersion + ")"},
		{"Records", fmt.Sprint(r.Records)},
		{"Queued questions", fmt.Sprint(r.Queued)},
		{"Offline matcher", r.Matcher},
		{"Answer cache", r.Cache},
		{"Voice input", voice},
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
