package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"ergovoice/internal/domain"
	"ergovoice/internal/logging"
	"ergovoice/internal/ports"
)

// dialogStarter is the part of DialogController the router drives.
type dialogStarter interface {
	BeginDialog(title string) error
}

// Router sits between a DialogController and the UI event sink. A final
// utterance heard while no dialog runs is executed as a command when it
// classifies to one; otherwise, with AutoBegin set, it becomes the title of
// a new capture dialog. Every event is forwarded to next unchanged.
type Router struct {
	ctx       context.Context
	commands  *CommandService
	next      ports.DialogEventSink
	autoBegin bool
	logger    zerolog.Logger

	mu        sync.Mutex
	idle      *sync.Cond
	dialog    dialogStarter
	lastFinal bool
	inflight  int
}

// NewRouter returns a router forwarding to next, which may be nil.
func NewRouter(ctx context.Context, commands *CommandService, next ports.DialogEventSink, autoBegin bool) *Router {
	r := &Router{
		ctx:       ctx,
		commands:  commands,
		next:      next,
		autoBegin: autoBegin,
		logger:    logging.Component("router"),
	}
	r.idle = sync.NewCond(&r.mu)
	return r
}

// Bind attaches the controller whose events the router receives.
func (r *Router) Bind(dialog dialogStarter) {
	r.mu.Lock()
	r.dialog = dialog
	r.mu.Unlock()
}

// Wait blocks until every routed utterance has been handled.
func (r *Router) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.inflight > 0 {
		r.idle.Wait()
	}
}

func (r *Router) DialogStateChanged(status domain.DialogStatus, reason domain.DialogReason) {
	if r.next != nil {
		r.next.DialogStateChanged(status, reason)
	}
	if reason != domain.DialogReasonTitleHeard {
		return
	}

	r.mu.Lock()
	if !r.lastFinal || status.PendingText == "" {
		r.mu.Unlock()
		return
	}
	dialog := r.dialog
	r.inflight++
	r.mu.Unlock()

	// Runs off the controller loop: commands touch the store.
	go func() {
		defer r.done()
		r.route(dialog, status.PendingText)
	}()
}

func (r *Router) done() {
	r.mu.Lock()
	r.inflight--
	if r.inflight == 0 {
		r.idle.Broadcast()
	}
	r.mu.Unlock()
}

func (r *Router) ListeningChanged(listening bool) {
	if r.next != nil {
		r.next.ListeningChanged(listening)
	}
}

func (r *Router) Transcript(text string, isFinal bool) {
	r.mu.Lock()
	r.lastFinal = isFinal
	r.mu.Unlock()
	if r.next != nil {
		r.next.Transcript(text, isFinal)
	}
}

func (r *Router) DialogError(code domain.ErrorCode, detail string) {
	if r.next != nil {
		r.next.DialogError(code, detail)
	}
}

func (r *Router) route(dialog dialogStarter, text string) {
	if r.commands != nil {
		if intent := r.commands.Classify(text); intent.Recognized() {
			outcome, err := r.commands.Execute(r.ctx, text)
			if err != nil {
				r.logger.Error().Err(err).Str("text", text).Msg("voice command failed")
				r.DialogError(domain.ErrorCodeTaskStore, err.Error())
				return
			}
			r.logger.Info().Str("intent", string(outcome.Intent.Kind)).Str("message", outcome.Message).Msg("voice command")
			return
		}
	}
	if !r.autoBegin || dialog == nil {
		return
	}
	if err := dialog.BeginDialog(text); err != nil {
		r.logger.Warn().Err(err).Str("text", text).Msg("dialog not started")
	}
}
