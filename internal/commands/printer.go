package commands

import (
	"fmt"
	"io"
	"sync"

	"ergovoice/internal/domain"
	"ergovoice/internal/presenter"
)

// printer writes dialog and task events to a terminal.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) DialogStateChanged(status domain.DialogStatus, reason domain.DialogReason) {
	switch reason {
	case domain.DialogReasonTitleHeard, domain.DialogReasonValuePending, domain.DialogReasonListeningResumed:
		return
	}
	if msg := presenter.DialogMessage(status, reason); msg != "" {
		p.line("· %s", msg)
	}
}

func (p *printer) ListeningChanged(bool) {}

func (p *printer) Transcript(text string, isFinal bool) {
	if isFinal {
		p.line("« %s »", text)
	}
}

func (p *printer) DialogError(code domain.ErrorCode, detail string) {
	msg := presenter.ErrorMessage(code, detail)
	if detail != "" && detail != msg {
		p.line("! %s (%s)", msg, detail)
		return
	}
	p.line("! %s", msg)
}

func (p *printer) TasksChanged(message string) {
	p.line("✓ %s", message)
}
