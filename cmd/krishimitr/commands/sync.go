package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/krishimitr/assistant/cmd/krishimitr/ui"
	"github.com/krishimitr/assistant/internal/assistant"
	"github.com/krishimitr/assistant/internal/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the local knowledge base from the API",
	Long: `Replace the knowledge base on this device with the server's copy and ask
the questions that were queued while offline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx, cfg, assistant.NopView{}, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		if !rt.monitor.IsOnline() {
			return domain.NewError(domain.ErrorTypeConnectivity, "api unreachable at "+rt.client.BaseURL(), nil)
		}

		bar := newStepBar(cmd.ErrOrStderr(), 2, "Syncing")

		bar.Describe("Downloading knowledge base")
		records, err := rt.assistant.Resync(ctx)
		if err != nil {
			return fmt.Errorf("resync: %w", err)
		}
		_ = bar.Add(1)

		bar.Describe("Replaying queued questions")
		replayed, err := rt.assistant.ReplayOutbox(ctx)
		if err != nil {
			return fmt.Errorf("replay outbox: %w", err)
		}
		_ = bar.Add(1)
		_ = bar.Finish()

		pending, err := rt.store.Pending(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		color.New(color.FgGreen).Fprintf(out, "✓ %d records synced, %d queued questions answered\n", records, replayed)
		if len(pending) > 0 {
			color.New(color.FgYellow).Fprintf(out, "⚠ %d questions still queued\n", len(pending))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

// newStepBar creates a progress bar over a fixed number of steps.
func newStepBar(w io.Writer, steps int64, description string) *progressbar.ProgressBar {
	if f, ok := w.(*os.File); !ok || !ui.IsTerminal(f) {
		w = io.Discard
	}
	return progressbar.NewOptions64(
		steps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}
