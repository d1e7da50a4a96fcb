// Package console provides a line-based recognizer and a printing speech
// sink for running the dialog in a terminal without a microphone.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"ergovoice/internal/domain"
	"ergovoice/internal/ports"
)

// Lines reads one utterance per input line. It is shared by the recognizers
// it creates.
type Lines struct {
	lines chan string
	done  chan struct{}
}

// NewLines starts reading r until EOF.
func NewLines(r io.Reader) *Lines {
	l := &Lines{lines: make(chan string), done: make(chan struct{})}
	go func() {
		defer close(l.done)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			l.lines <- text
		}
	}()
	return l
}

// Done is closed when the input reached EOF.
func (l *Lines) Done() <-chan struct{} {
	return l.done
}

// Next blocks for the next non-empty line. ok is false after EOF.
func (l *Lines) Next() (string, bool) {
	select {
	case line := <-l.lines:
		return line, true
	case <-l.done:
		return "", false
	}
}

// Factory returns a ports.RecognizerFactory whose recognizers read from l.
func (l *Lines) Factory() ports.RecognizerFactory {
	return func(handler ports.RecognitionHandler) (ports.Recognizer, error) {
		return &Recognizer{lines: l, handler: handler}, nil
	}
}

// Recognizer delivers each line read while it is started as one final
// result followed by the end of the stream.
type Recognizer struct {
	lines   *Lines
	handler ports.RecognitionHandler

	mu     sync.Mutex
	cancel chan struct{}
}

func (r *Recognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}
	cancel := make(chan struct{})
	r.cancel = cancel
	go r.listen(cancel)
	return nil
}

func (r *Recognizer) listen(cancel chan struct{}) {
	select {
	case <-cancel:
		return
	default:
	}

	var text string
	select {
	case <-cancel:
		return
	case <-r.lines.done:
		return
	case text = <-r.lines.lines:
	}

	r.mu.Lock()
	if r.cancel != cancel {
		r.mu.Unlock()
		return
	}
	r.cancel = nil
	r.mu.Unlock()

	r.handler.HandleResult(domain.RecognitionEvent{Text: text, IsFinal: true})
	r.handler.HandleEnded()
}

// Stop and Abort both detach the pending read; nothing is delivered.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		close(r.cancel)
		r.cancel = nil
	}
	return nil
}

func (r *Recognizer) Abort() error {
	return r.Stop()
}

// Speech prints prompts and completes them immediately.
type Speech struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSpeech(w io.Writer) *Speech {
	return &Speech{w: w}
}

func (s *Speech) Speak(text string, onDone func()) error {
	s.mu.Lock()
	_, err := fmt.Fprintf(s.w, "» %s\n", text)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if onDone != nil {
		onDone()
	}
	return nil
}

func (s *Speech) CancelAll() {}
