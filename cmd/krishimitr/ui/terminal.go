// Package ui renders the chat conversation in a terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/krishimitr/assistant/internal/assistant"
)

var (
	botLabel     = color.New(color.FgGreen, color.Bold)
	userLabel    = color.New(color.FgBlue, color.Bold)
	boldText     = color.New(color.Bold)
	errorText    = color.New(color.FgRed)
	noteText     = color.New(color.FgYellow, color.Italic)
	sourceText   = color.New(color.Faint)
	onlineBadge  = color.New(color.FgGreen)
	offlineBadge = color.New(color.FgRed)
	infoText     = color.New(color.FgCyan)
)

// Terminal implements assistant.View on a writer. Loading placeholders are
// shown as a spinner that the replacing message clears.
type Terminal struct {
	mu       sync.Mutex
	out      io.Writer
	echoUser bool
	spinner  *spinner.Spinner

	loadingID string
	online    bool
	status    string
}

// Options configures a Terminal.
type Options struct {
	// Animate enables the spinner; disable it when out is not a terminal.
	Animate bool
	// EchoUser prints user messages. The REPL leaves this off because the
	// terminal already shows what was typed.
	EchoUser bool
}

// NewTerminal creates a terminal view writing to out.
func NewTerminal(out io.Writer, opts Options) *Terminal {
	t := &Terminal{out: out, echoUser: opts.EchoUser}
	if opts.Animate {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Writer = out
		t.spinner = s
	}
	return t
}

// Show renders a newly appended message.
func (t *Terminal) Show(msg assistant.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.Loading {
		t.loadingID = msg.ID
		if t.spinner != nil {
			t.spinner.Suffix = " " + msg.Text
			t.spinner.Start()
		}
		return
	}
	t.render(msg)
}

// Update renders the message that replaced a loading placeholder.
func (t *Terminal) Update(msg assistant.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.ID == t.loadingID {
		t.stopSpinner()
	}
	t.render(msg)
}

// SetStatus renders the connectivity indicator and status text.
func (t *Terminal) SetStatus(online bool, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if online == t.online && text == t.status {
		return
	}
	t.online = online
	t.status = text
	fmt.Fprintln(t.out, t.statusLine())
}

// Status returns the last status line without color.
func (t *Terminal) Status() (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online, t.status
}

// Info prints an informational line.
func (t *Terminal) Info(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	infoText.Fprintf(t.out, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Banner prints the chat greeting and the available commands.
func (t *Terminal) Banner(commands []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	boldText.Fprintln(t.out, "KrishiMitr, your farming assistant")
	fmt.Fprintf(t.out, "Ask in English or Hindi. Commands: %s\n\n", strings.Join(commands, ", "))
}

// ShowPrompt prints the input prompt.
func (t *Terminal) ShowPrompt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, t.Prompt())
}

// Println prints text on its own line.
func (t *Terminal) Println(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, text)
}

// Prompt returns the input prompt.
func (t *Terminal) Prompt() string {
	return userLabel.Sprint("You › ")
}

// Close stops any running spinner.
func (t *Terminal) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopSpinner()
}

func (t *Terminal) stopSpinner() {
	t.loadingID = ""
	if t.spinner != nil {
		t.spinner.Stop()
	}
}

func (t *Terminal) statusLine() string {
	badge := offlineBadge.Sprint("● Offline")
	if t.online {
		badge = onlineBadge.Sprint("● Online")
	}
	if t.status == "" {
		return badge
	}
	return badge + "  " + t.status
}

func (t *Terminal) render(msg assistant.Message) {
	switch msg.Role {
	case assistant.RoleUser:
		if !t.echoUser {
			return
		}
		fmt.Fprintf(t.out, "%s%s\n", t.Prompt(), msg.Text)
	case assistant.RoleError:
		errorText.Fprintf(t.out, "✗ %s\n", msg.Text)
	default:
		botLabel.Fprint(t.out, "KrishiMitr › ")
		for _, seg := range assistant.Segments(msg.Text) {
			if seg.Bold {
				boldText.Fprint(t.out, seg.Text)
			} else {
				fmt.Fprint(t.out, seg.Text)
			}
		}
		fmt.Fprintln(t.out)
		if len(msg.Sources) > 0 {
			sourceText.Fprintf(t.out, "  Sources: %s\n", strings.Join(msg.Sources, ", "))
		}
		if msg.Hash != "" {
			sourceText.Fprintf(t.out, "  Verified Hash: %s\n", shortHash(msg.Hash))
		}
		if msg.OfflineNote != "" {
			noteText.Fprintf(t.out, "  %s\n", msg.OfflineNote)
		}
	}
	fmt.Fprintln(t.out)
}

const hashPreview = 20

func shortHash(h string) string {
	if len(h) <= hashPreview {
		return h
	}
	return h[:hashPreview] + "..."
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
