package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ergovoice/internal/clock"
	"ergovoice/internal/domain"
	"ergovoice/internal/logging"
	"ergovoice/internal/matcher"
	"ergovoice/internal/ports"
)

var (
	ErrEmptyTitle    = errors.New("task title is empty")
	ErrNoRecognizer  = errors.New("recognizer factory is required")
	ErrNoSpeechSink  = errors.New("speech sink is required")
	ErrNoTaskSink    = errors.New("task sink is required")
	ErrNoEventSink   = errors.New("dialog event sink is required")
	errNilRecognizer = errors.New("recognizer factory returned nil")
)

// DialogController drives the title → priority → category capture dialog
// from recognition events, prompt completions and timers. Every exported
// method may be called from any goroutine; the work itself runs serially
// on one loop.
type DialogController struct {
	ctx        context.Context
	recognizer ports.Recognizer
	speech     ports.SpeechSink
	tasks      ports.TaskSink
	rules      ports.RulesEngine
	events     ports.DialogEventSink
	clock      clock.Clock
	cfg        DialogConfig
	logger     zerolog.Logger

	loop serialLoop

	session            dialogSession
	listening          bool
	recognizing        bool
	permissionRequired bool
	autoRestarts       int
	speechGen          uint64

	debounce timerSlot
	settle   timerSlot
	resume   timerSlot
	watchdog timerSlot
	restart  timerSlot
	decay    timerSlot

	statusMu sync.Mutex
	status   domain.DialogStatus
}

// NewDialogController wires a controller. ctx bounds task submission.
// rules and clk may be nil.
func NewDialogController(
	ctx context.Context,
	recognizers ports.RecognizerFactory,
	speech ports.SpeechSink,
	tasks ports.TaskSink,
	rules ports.RulesEngine,
	events ports.DialogEventSink,
	clk clock.Clock,
	cfg DialogConfig,
) (*DialogController, error) {
	switch {
	case recognizers == nil:
		return nil, ErrNoRecognizer
	case speech == nil:
		return nil, ErrNoSpeechSink
	case tasks == nil:
		return nil, ErrNoTaskSink
	case events == nil:
		return nil, ErrNoEventSink
	}
	if clk == nil {
		clk = clock.Real()
	}
	if rules == nil {
		rules = identityRules{}
	}

	c := &DialogController{
		ctx:     ctx,
		speech:  speech,
		tasks:   tasks,
		rules:   rules,
		events:  events,
		clock:   clk,
		cfg:     cfg.withDefaults(),
		logger:  logging.Component("dialog"),
		session: newDialogSession(),
		status:  domain.DialogStatus{State: domain.DialogStateIdle},

		debounce: timerSlot{name: "debounce"},
		settle:   timerSlot{name: "settle"},
		resume:   timerSlot{name: "resume"},
		watchdog: timerSlot{name: "watchdog"},
		restart:  timerSlot{name: "restart"},
		decay:    timerSlot{name: "decay"},
	}

	recognizer, err := recognizers(c)
	if err != nil {
		return nil, fmt.Errorf("create recognizer: %w", err)
	}
	if recognizer == nil {
		return nil, errNilRecognizer
	}
	c.recognizer = recognizer
	return c, nil
}

// Status returns the last published dialog snapshot.
func (c *DialogController) Status() domain.DialogStatus {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

// SetListening turns the microphone on or off. Repeated calls are safe.
func (c *DialogController) SetListening(on bool) {
	c.loop.post(func() {
		if on {
			c.startListening()
			return
		}
		c.stopListening()
	})
}

// BeginDialog starts capturing a task titled title. The request is
// rejected, and reported with DialogReasonDialogRejected, unless the
// dialog is idle and not transitioning.
func (c *DialogController) BeginDialog(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	c.loop.post(func() { c.beginDialog(title) })
	return nil
}

// ConfirmHeard accepts the pending transcript for the current field using
// the looser matching reserved for explicit user confirmation.
func (c *DialogController) ConfirmHeard() {
	c.loop.post(c.confirmHeard)
}

// Cancel abandons the dialog from any state and returns to idle.
func (c *DialogController) Cancel() {
	c.loop.post(c.cancel)
}

// Shutdown releases recognition and speech and cancels every timer.
func (c *DialogController) Shutdown() {
	c.loop.post(func() {
		c.cancelTimers(&c.debounce, &c.settle, &c.resume, &c.watchdog, &c.restart, &c.decay)
		c.stopRecognition()
		c.cancelSpeech()
		c.setListening(false)
	})
}

// HandleResult implements ports.RecognitionHandler.
func (c *DialogController) HandleResult(event domain.RecognitionEvent) {
	c.loop.post(func() { c.handleResult(event) })
}

// HandleError implements ports.RecognitionHandler.
func (c *DialogController) HandleError(kind domain.RecognitionErrorKind, detail string) {
	c.loop.post(func() { c.handleError(kind, detail) })
}

// HandleEnded implements ports.RecognitionHandler.
func (c *DialogController) HandleEnded() {
	c.loop.post(c.handleEnded)
}

func (c *DialogController) startListening() {
	c.permissionRequired = false
	c.autoRestarts = 0
	c.setListening(true)

	if !c.session.transitioning && c.session.state != domain.DialogStateCompleted {
		c.startRecognition()
	}
	c.publish(domain.DialogReasonListeningStarted)
}

func (c *DialogController) stopListening() {
	c.session.transitioning = false
	c.cancelTimers(&c.debounce, &c.settle, &c.resume, &c.watchdog, &c.restart)
	c.stopRecognition()
	// The confirmation prompt of a completed dialog still owns submission.
	if c.session.state != domain.DialogStateCompleted {
		c.cancelSpeech()
	}
	c.setListening(false)
	c.publish(domain.DialogReasonListeningStopped)
}

// haltListening turns listening off after an environment error without
// touching the dialog itself.
func (c *DialogController) haltListening() {
	c.cancelTimers(&c.debounce, &c.watchdog, &c.restart)
	c.stopRecognition()
	c.setListening(false)
}

func (c *DialogController) beginDialog(title string) {
	if c.session.transitioning || c.session.state != domain.DialogStateIdle {
		c.logger.Debug().
			Str("state", string(c.session.state)).
			Bool("transitioning", c.session.transitioning).
			Msg("dialog start rejected")
		c.publish(domain.DialogReasonDialogRejected)
		return
	}

	c.cancelTimers(&c.debounce, &c.restart, &c.watchdog)
	c.stopRecognition()

	c.session.title = title
	c.session.priority = ""
	c.session.category = ""
	c.session.pendingText = ""
	c.session.state = domain.DialogStateCapturingPriority
	c.session.transitioning = true

	c.logger.Info().Str("title", title).Msg("dialog started")
	c.publish(domain.DialogReasonDialogStarted)
	c.speak(promptPriority, c.scheduleResume)
}

func (c *DialogController) handleResult(event domain.RecognitionEvent) {
	text := strings.TrimSpace(c.rules.Apply(event.Text))
	if text == "" {
		return
	}
	c.autoRestarts = 0

	switch {
	case c.session.state == domain.DialogStateIdle:
		if !c.listening {
			return
		}
		c.session.pendingText = text
		c.events.Transcript(text, event.IsFinal)
		c.publish(domain.DialogReasonTitleHeard)

	case c.session.state.Capturing():
		if c.session.transitioning {
			c.logger.Debug().Str("text", text).Bool("final", event.IsFinal).Msg("result ignored while transitioning")
			return
		}
		c.session.pendingText = text
		c.events.Transcript(text, event.IsFinal)

		kind, _ := c.session.fieldKind()
		value, ok := matcher.Match(kind, text)
		switch {
		case ok && event.IsFinal:
			c.accept(value)
		case ok:
			c.logger.Debug().Str("text", text).Str("value", value).Msg("interim match, debouncing")
			c.arm(&c.debounce, c.cfg.Debounce, c.debounceFired)
			c.publish(domain.DialogReasonValuePending)
		default:
			if event.IsFinal {
				c.cancelTimers(&c.debounce)
			}
			c.publish(domain.DialogReasonNoMatch)
		}

	default:
		c.logger.Debug().Str("state", string(c.session.state)).Msg("result ignored")
	}
}

func (c *DialogController) debounceFired() {
	if c.session.transitioning {
		return
	}
	kind, ok := c.session.fieldKind()
	if !ok {
		return
	}
	value, ok := matcher.Match(kind, c.session.pendingText)
	if !ok {
		c.logger.Debug().Str("text", c.session.pendingText).Msg("debounced text no longer matches")
		return
	}
	c.accept(value)
}

func (c *DialogController) confirmHeard() {
	kind, ok := c.session.fieldKind()
	if !ok || c.session.transitioning {
		c.logger.Debug().Str("state", string(c.session.state)).Msg("confirmation ignored")
		return
	}
	value, ok := matcher.MatchLoose(kind, c.session.pendingText)
	if !ok {
		c.publish(domain.DialogReasonNoMatch)
		return
	}
	c.accept(value)
}

// accept is the single guarded transition that freezes recognition and
// records a field value. It runs at most once per field per dialog cycle.
func (c *DialogController) accept(value string) bool {
	if c.session.transitioning || !c.session.state.Capturing() {
		return false
	}

	c.cancelTimers(&c.debounce, &c.restart, &c.resume, &c.watchdog)
	c.session.transitioning = true
	c.stopRecognition()

	from := c.session.state
	reason := domain.DialogReasonPriorityCaptured
	if from == domain.DialogStateCapturingPriority {
		c.session.priority = domain.Priority(value)
	} else {
		c.session.category = domain.Category(value)
		reason = domain.DialogReasonCategoryCaptured
	}
	c.session.pendingText = ""

	c.logger.Info().Str("state", string(from)).Str("value", value).Msg("value accepted")
	c.publish(reason)
	c.arm(&c.settle, c.cfg.Settle, func() { c.commit(from) })
	return true
}

func (c *DialogController) commit(from domain.DialogState) {
	if c.session.state != from || !c.session.transitioning {
		return
	}

	switch from {
	case domain.DialogStateCapturingPriority:
		c.session.state = domain.DialogStateCapturingCategory
		c.publish(domain.DialogReasonAwaitingCategory)
		c.speak(promptCategory(c.session.priority), c.scheduleResume)

	case domain.DialogStateCapturingCategory:
		c.session.state = domain.DialogStateCompleted
		c.setListening(false)
		cmd := domain.TaskCommand{
			Title:    c.session.title,
			Category: c.session.category,
			Priority: c.session.priority,
		}
		c.publish(domain.DialogReasonDialogCompleted)
		c.arm(&c.decay, c.cfg.Decay, c.decayFired)
		c.speak(promptConfirmation(cmd), func() { c.submit(cmd) })
	}
}

func (c *DialogController) submit(cmd domain.TaskCommand) {
	if err := c.tasks.CreateTask(c.ctx, cmd); err != nil {
		c.logger.Error().Err(err).Str("title", cmd.Title).Msg("task submission failed")
		c.events.DialogError(domain.ErrorCodeTaskStore, err.Error())
		return
	}
	c.logger.Info().
		Str("title", cmd.Title).
		Str("priority", string(cmd.Priority)).
		Str("category", string(cmd.Category)).
		Msg("task submitted")
	c.publish(domain.DialogReasonTaskSubmitted)
}

func (c *DialogController) decayFired() {
	c.cancelTimers(&c.debounce, &c.settle, &c.resume, &c.watchdog, &c.restart)
	c.session.reset()
	if c.listening {
		c.startRecognition()
	}
	c.publish(domain.DialogReasonDialogReset)
}

func (c *DialogController) cancel() {
	c.cancelTimers(&c.debounce, &c.settle, &c.resume, &c.watchdog, &c.restart, &c.decay)
	c.stopRecognition()
	c.cancelSpeech()
	c.session.reset()
	c.publish(domain.DialogReasonDialogCancelled)
}

func (c *DialogController) scheduleResume() {
	c.arm(&c.resume, c.cfg.Resume, c.resumeListening)
}

func (c *DialogController) resumeListening() {
	if !c.session.state.Capturing() {
		return
	}
	c.session.transitioning = false
	if c.permissionRequired {
		c.publish(domain.DialogReasonPermissionDenied)
		return
	}
	c.setListening(true)
	c.startRecognition()
	c.arm(&c.watchdog, c.cfg.Watchdog, c.watchdogFired)
	c.publish(domain.DialogReasonListeningResumed)
}

func (c *DialogController) watchdogFired() {
	if !c.session.state.Capturing() || c.session.transitioning || !c.listening || c.recognizing {
		return
	}
	c.logger.Warn().Str("state", string(c.session.state)).Msg("recognition not active after resume, restarting")
	c.startRecognition()
}

func (c *DialogController) handleError(kind domain.RecognitionErrorKind, detail string) {
	c.logger.Debug().Str("kind", string(kind)).Str("detail", detail).Msg("recognition error")
	// An error ends the current stream; the ended notification may follow.
	c.recognizing = false

	switch kind {
	case domain.RecognitionErrorPermissionDenied:
		c.permissionRequired = true
		c.haltListening()
		c.events.DialogError(domain.ErrorCodePermissionDenied, detailOr(detail, "microphone permission denied"))
		c.publish(domain.DialogReasonPermissionDenied)

	case domain.RecognitionErrorNoSpeech:
		if c.session.state.Capturing() && c.listening && !c.session.transitioning {
			c.scheduleRestart(c.cfg.NoSpeechRestart)
		}

	case domain.RecognitionErrorNetwork:
		c.haltListening()
		c.events.DialogError(domain.ErrorCodeNetwork, detailOr(detail, "network error during recognition"))
		c.publish(domain.DialogReasonNetworkError)

	default:
		c.events.DialogError(domain.ErrorCodeRecognition, detailOr(detail, "recognition error"))
	}
}

func (c *DialogController) handleEnded() {
	c.recognizing = false

	active := c.session.state.Capturing() || c.session.state == domain.DialogStateIdle
	if !active || !c.listening || c.session.transitioning {
		return
	}
	// A restart already scheduled by a no-speech error keeps its delay.
	if c.restart.armed() {
		return
	}
	c.scheduleRestart(c.cfg.EndRestart)
}

func (c *DialogController) scheduleRestart(delay time.Duration) {
	if c.cfg.MaxAutoRestarts > 0 && c.autoRestarts >= c.cfg.MaxAutoRestarts {
		c.logger.Warn().Int("restarts", c.autoRestarts).Msg("recognition keeps ending without results, giving up")
		c.haltListening()
		c.events.DialogError(domain.ErrorCodeRecognitionStalled,
			fmt.Sprintf("recognition restarted %d times without a result", c.autoRestarts))
		c.publish(domain.DialogReasonListeningStopped)
		return
	}
	c.autoRestarts++
	c.arm(&c.restart, delay, c.restartFired)
}

func (c *DialogController) restartFired() {
	if c.session.transitioning || !c.listening || c.session.state == domain.DialogStateCompleted {
		return
	}
	c.startRecognition()
}

func (c *DialogController) startRecognition() {
	if c.recognizing {
		return
	}
	if err := c.recognizer.Start(); err != nil {
		c.logger.Error().Err(err).Msg("failed to start recognition")
		c.haltListening()
		c.events.DialogError(domain.ErrorCodeRecognition, err.Error())
		return
	}
	c.recognizing = true
	c.logger.Debug().Str("state", string(c.session.state)).Msg("recognition started")
}

func (c *DialogController) stopRecognition() {
	if err := c.recognizer.Stop(); err != nil {
		c.logger.Debug().Err(err).Msg("recognizer stop")
	}
	if err := c.recognizer.Abort(); err != nil {
		c.logger.Debug().Err(err).Msg("recognizer abort")
	}
	c.recognizing = false
}

func (c *DialogController) setListening(on bool) {
	if c.listening == on {
		return
	}
	c.listening = on
	c.events.ListeningChanged(on)
}

// speak plays text and runs then on the loop once it finished. Completions
// of utterances that were replaced or cancelled are dropped.
func (c *DialogController) speak(text string, then func()) {
	c.speechGen++
	gen := c.speechGen
	done := func() {
		c.loop.post(func() {
			if gen != c.speechGen {
				return
			}
			then()
		})
	}
	if err := c.speech.Speak(text, done); err != nil {
		c.logger.Error().Err(err).Msg("speech output failed")
		c.events.DialogError(domain.ErrorCodeSpeech, err.Error())
		done()
	}
}

func (c *DialogController) cancelSpeech() {
	c.speechGen++
	c.speech.CancelAll()
}

func (c *DialogController) arm(slot *timerSlot, d time.Duration, fn func()) {
	slot.cancel()
	gen := slot.gen
	slot.timer = c.clock.AfterFunc(d, func() {
		c.loop.post(func() {
			if slot.gen != gen {
				return
			}
			slot.timer = nil
			c.logger.Debug().Str("timer", slot.name).Msg("timer fired")
			fn()
		})
	})
}

func (c *DialogController) cancelTimers(slots ...*timerSlot) {
	for _, slot := range slots {
		slot.cancel()
	}
}

func (c *DialogController) publish(reason domain.DialogReason) {
	state := c.session.state
	if state == domain.DialogStateIdle && c.listening {
		state = domain.DialogStateCapturingTitle
	}
	status := domain.DialogStatus{
		State:              state,
		Title:              c.session.title,
		Priority:           c.session.priority,
		Category:           c.session.category,
		PendingText:        c.session.pendingText,
		Listening:          c.listening,
		Transitioning:      c.session.transitioning,
		PermissionRequired: c.permissionRequired,
	}

	c.statusMu.Lock()
	c.status = status
	c.statusMu.Unlock()

	c.logger.Debug().
		Str("state", string(status.State)).
		Str("reason", string(reason)).
		Bool("listening", status.Listening).
		Bool("transitioning", status.Transitioning).
		Msg("dialog state")
	c.events.DialogStateChanged(status, reason)
}

func detailOr(detail, fallback string) string {
	if strings.TrimSpace(detail) == "" {
		return fallback
	}
	return detail
}

type identityRules struct{}

func (identityRules) Apply(text string) string { return text }
