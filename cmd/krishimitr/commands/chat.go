package commands

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/krishimitr/assistant/cmd/krishimitr/ui"
	"github.com/krishimitr/assistant/internal/voice"
)

var errQuit = errors.New("quit")

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with KrishiMitr.

The connection to the API is checked in the background. When it drops, answers
come from the knowledge base cached on this device, and when it returns the
cache is refreshed from the server.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func chatCommands(voiceEnabled bool) []string {
	cmds := []string{"/sync", "/status", "/help", "/quit"}
	if voiceEnabled {
		cmds = append([]string{"/voice"}, cmds...)
	}
	return cmds
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	term := ui.NewTerminal(cmd.OutOrStdout(), ui.Options{Animate: ui.IsTerminal(os.Stdout)})
	defer term.Close()

	rt, err := newRuntime(ctx, cfg, term, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	term.Banner(chatCommands(rt.voice != nil))
	if err := rt.start(ctx); err != nil {
		return err
	}

	return chatLoop(ctx, rt, term, cmd.InOrStdin())
}

// chatLoop runs the REPL next to the connectivity monitor until the input
// ends, /quit is typed or ctx is cancelled.
func chatLoop(ctx context.Context, rt *runtime, term *ui.Terminal, in io.Reader) error {
	g, gctx := errgroup.WithContext(ctx)
	inputs := make(chan string)
	spoken := make(chan string)

	// Reading stdin cannot be interrupted, so the reader is not part of the
	// group; it exits with the process.
	go readLines(gctx, in, inputs)

	g.Go(func() error {
		return rt.monitor.Run(gctx)
	})

	g.Go(func() error {
		term.ShowPrompt()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case line, ok := <-inputs:
				if !ok {
					return errQuit
				}
				if err := handleLine(gctx, rt, term, line, spoken); err != nil {
					return err
				}
				term.ShowPrompt()
			case text := <-spoken:
				term.Println(text)
				rt.assistant.Handle(gctx, text)
				term.ShowPrompt()
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func readLines(ctx context.Context, in io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func handleLine(ctx context.Context, rt *runtime, term *ui.Terminal, line string, spoken chan<- string) error {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		rt.assistant.Handle(ctx, line)
		return nil
	}

	switch line {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		term.Info("Commands: %s", strings.Join(chatCommands(rt.voice != nil), ", "))
	case "/status":
		printStatus(ctx, rt, term)
	case "/sync":
		if !rt.monitor.IsOnline() {
			term.Info("Cannot sync while offline.")
			return nil
		}
		if _, err := rt.assistant.Resync(ctx); err != nil {
			term.Info("Sync failed: %v", err)
		}
	case "/voice":
		if rt.voice == nil {
			term.Info("Voice input is not configured.")
			return nil
		}
		state := rt.voice.Toggle(ctx, func(text string) {
			select {
			case spoken <- text:
			case <-ctx.Done():
			}
		})
		if state == voice.StateListening {
			term.Info("Listening... type /voice again to stop.")
		} else {
			term.Info("Stopped listening.")
		}
	default:
		term.Info("Unknown command %s. Try /help.", line)
	}
	return nil
}

func printStatus(ctx context.Context, rt *runtime, term *ui.Terminal) {
	records, _ := rt.store.Count(ctx)
	pending, _ := rt.store.Pending(ctx)

	connection := "offline"
	if rt.monitor.IsOnline() {
		connection = "online"
	}
	term.Info("API %s is %s. %d cached records, %d queued questions.",
		rt.client.BaseURL(), connection, records, len(pending))
	if status := rt.assistant.Status(); status != "" {
		term.Info("%s", status)
	}
}
