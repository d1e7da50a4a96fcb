// Package audio captures microphone PCM by running ffmpeg.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ergovoice/internal/logging"
	"ergovoice/internal/ports"
)

const (
	defaultStartupGrace = 250 * time.Millisecond
	defaultStopTimeout  = 1200 * time.Millisecond
	stderrTailLimit     = 4096
)

// Capture implements ports.AudioCapture with an ffmpeg child process that
// writes raw s16le samples to stdout.
type Capture struct {
	command      string
	startupGrace time.Duration
	stopTimeout  time.Duration
	logger       zerolog.Logger
}

func NewCapture(command string) *Capture {
	if command == "" {
		command = "ffmpeg"
	}
	return &Capture{
		command:      command,
		startupGrace: defaultStartupGrace,
		stopTimeout:  defaultStopTimeout,
		logger:       logging.Component("audio"),
	}
}

func captureArgs(cfg ports.AudioConfig) []string {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

// Start launches ffmpeg and returns once it survived the startup grace
// period, so a missing device fails here rather than on the first Read.
func (c *Capture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	args := captureArgs(cfg)
	cmd := exec.CommandContext(ctx, c.command, args...)
	stderr := &tailBuffer{limit: stderrTailLimit}
	cmd.Stderr = stderr
	cmd.WaitDelay = c.stopTimeout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		close(exited)
	}()

	select {
	case err := <-exited:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, stderr.String())
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(c.startupGrace):
	}

	c.logger.Debug().Strs("args", args).Int("pid", cmd.Process.Pid).Msg("capture started")
	return &session{
		stdout:      stdout,
		stderr:      stderr,
		process:     cmd.Process,
		exited:      exited,
		stopTimeout: c.stopTimeout,
		logger:      c.logger,
	}, nil
}

type session struct {
	stdout      io.ReadCloser
	stderr      *tailBuffer
	process     *os.Process
	exited      <-chan error
	stopTimeout time.Duration
	logger      zerolog.Logger

	stopOnce sync.Once
	stopErr  error
}

func (s *session) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *session) Close() error {
	return s.Stop()
}

// Stop interrupts ffmpeg, kills it after the stop timeout and reports any
// failure other than the exit status the interrupt causes.
func (s *session) Stop() error {
	s.stopOnce.Do(func() {
		_ = s.process.Signal(os.Interrupt)

		var waitErr error
		select {
		case waitErr = <-s.exited:
		case <-time.After(s.stopTimeout):
			s.logger.Warn().Int("pid", s.process.Pid).Msg("ffmpeg ignored interrupt, killing")
			_ = s.process.Kill()
			waitErr = <-s.exited
		}
		s.stopErr = ignoreExitStatus(waitErr)

		if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = err
		}
		if s.stopErr != nil {
			if tail := s.stderr.String(); tail != "" {
				s.stopErr = fmt.Errorf("%w: %s", s.stopErr, tail)
			}
		}
	})
	return s.stopErr
}

func ignoreExitStatus(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
