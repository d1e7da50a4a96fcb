// Package commands implements the ergovoice command line.
package commands

import (
	"io"
	"os"
	"sync"

	"ergovoice/internal/bootstrap"
	"ergovoice/internal/config"
)

// Flags holds the global flags shared by every command.
type Flags struct {
	ConfigPath string
	DataDir    string
	LogLevel   string
	LogFile    string

	// Stdin and Stdout are replaced in tests.
	Stdin  io.Reader
	Stdout io.Writer

	outMu sync.Mutex
}

// DefaultDataDir falls back to the current directory when the home
// directory cannot be resolved.
func DefaultDataDir() string {
	dir, err := config.DefaultDataDir()
	if err != nil {
		return ".ergovoice"
	}
	return dir
}

// Options returns the bootstrap options for the flags.
func (f *Flags) Options() bootstrap.Options {
	return bootstrap.Options{
		ConfigPath: f.ConfigPath,
		DataDir:    f.DataDir,
		Input:      f.stdin(),
		Output:     f.stdout(),
	}
}

func (f *Flags) stdin() io.Reader {
	if f.Stdin != nil {
		return f.Stdin
	}
	return os.Stdin
}

// stdout serializes writes so the printer and the console speech sink can
// share the terminal.
func (f *Flags) stdout() io.Writer {
	var w io.Writer = os.Stdout
	if f.Stdout != nil {
		w = f.Stdout
	}
	return &lockedWriter{mu: &f.outMu, w: w}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
