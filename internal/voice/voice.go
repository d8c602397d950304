// Package voice captures a single spoken query through an external
// speech-to-text command.
package voice

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/krishimitr/assistant/internal/domain"
	"github.com/krishimitr/assistant/internal/observability"
)

// ErrNoSpeech is returned when the recognizer produced no transcript.
var ErrNoSpeech = errors.New("no speech recognized")

// Recognizer turns one utterance into text.
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

// ExecRecognizer runs a command that prints transcripts to stdout and keeps
// the first non-empty line.
type ExecRecognizer struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// Listen runs the command once.
func (r *ExecRecognizer) Listen(ctx context.Context) (string, error) {
	if strings.TrimSpace(r.Command) == "" {
		return "", domain.VoiceError("speech recognition is not configured", nil)
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Command, r.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 500 * time.Millisecond

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", domain.VoiceError("speech capture stopped", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", domain.VoiceError("speech capture failed", fmt.Errorf("%s", msg))
	}

	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", domain.VoiceError("speech capture failed", ErrNoSpeech)
}

// State is the capture state shown next to the prompt.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
)

// Session enforces one capture at a time. Toggle starts a capture when idle
// and cancels it when one is running.
type Session struct {
	recognizer Recognizer
	logger     *observability.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession creates a session around recognizer.
func NewSession(recognizer Recognizer, logger *observability.Logger) *Session {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Session{recognizer: recognizer, logger: logger.WithComponent("voice")}
}

// State reports whether a capture is running.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return StateListening
	}
	return StateIdle
}

// Toggle starts a capture that delivers its transcript to onResult, or stops
// the running one. Failures are logged and only reset the state.
func (s *Session) Toggle(ctx context.Context, onResult func(text string)) State {
	s.mu.Lock()
	if s.cancel != nil {
		cancel := s.cancel
		s.mu.Unlock()
		cancel()
		return StateIdle
	}

	captureCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.cancel = nil
			s.mu.Unlock()
			cancel()
		}()

		text, err := s.recognizer.Listen(captureCtx)
		if err != nil {
			if captureCtx.Err() == nil {
				s.logger.Warn().Err(err).Msg("Speech capture failed")
			}
			return
		}
		onResult(text)
	}()

	return StateListening
}

// Wait blocks until the current capture, if any, has finished.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
