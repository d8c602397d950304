package commands

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/krishimitr/assistant/cmd/krishimitr/ui"
	"github.com/krishimitr/assistant/internal/assistant"
)

var askOffline bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and exit",
	Long: `Ask a single question. The answer comes from the API when it is reachable
and from this device's knowledge base otherwise. Use --offline to skip the API.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		term := ui.NewTerminal(cmd.OutOrStdout(), ui.Options{Animate: ui.IsTerminal(os.Stdout)})
		defer term.Close()

		rt, err := newRuntime(ctx, cfg, term, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		if askOffline {
			rt.monitor.Set(ctx, false)
		}
		if err := rt.assistant.Start(ctx); err != nil {
			return err
		}

		reply := rt.assistant.Handle(ctx, strings.Join(args, " "))
		if reply.Kind == assistant.KindFailed {
			return errors.New(strings.TrimPrefix(reply.Message.Text, "Error: "))
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askOffline, "offline", false, "answer from the local knowledge base only")
	rootCmd.AddCommand(askCmd)
}
