package usecase

import (
	"time"

	"ergovoice/internal/clock"
	"ergovoice/internal/domain"
	"ergovoice/internal/matcher"
)

// dialogSession is the one task-capture dialog owned by a DialogController.
// It is only touched from the controller loop.
type dialogSession struct {
	state         domain.DialogState
	title         string
	priority      domain.Priority
	category      domain.Category
	pendingText   string
	transitioning bool
}

func newDialogSession() dialogSession {
	return dialogSession{state: domain.DialogStateIdle}
}

func (s *dialogSession) reset() {
	*s = newDialogSession()
}

// fieldKind returns the field the current state is waiting for.
func (s *dialogSession) fieldKind() (matcher.Kind, bool) {
	switch s.state {
	case domain.DialogStateCapturingPriority:
		return matcher.KindPriority, true
	case domain.DialogStateCapturingCategory:
		return matcher.KindCategory, true
	default:
		return "", false
	}
}

// timerSlot holds at most one pending timer. Every arm or cancel bumps the
// generation so a callback that raced a cancel is recognised as stale.
type timerSlot struct {
	name  string
	gen   uint64
	timer clock.Timer
}

func (s *timerSlot) armed() bool {
	return s.timer != nil
}

func (s *timerSlot) cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// DialogConfig holds the dialog timing constants.
type DialogConfig struct {
	Debounce        time.Duration
	Settle          time.Duration
	Resume          time.Duration
	Watchdog        time.Duration
	NoSpeechRestart time.Duration
	EndRestart      time.Duration
	Decay           time.Duration
	// MaxAutoRestarts caps consecutive automatic recognition restarts
	// without a result. Zero disables the cap.
	MaxAutoRestarts int
}

// DefaultDialogConfig returns the timings the dialog was tuned with.
func DefaultDialogConfig() DialogConfig {
	return DialogConfig{
		Debounce:        300 * time.Millisecond,
		Settle:          100 * time.Millisecond,
		Resume:          500 * time.Millisecond,
		Watchdog:        1500 * time.Millisecond,
		NoSpeechRestart: 1000 * time.Millisecond,
		EndRestart:      500 * time.Millisecond,
		Decay:           3000 * time.Millisecond,
		MaxAutoRestarts: 20,
	}
}

func (c DialogConfig) withDefaults() DialogConfig {
	d := DefaultDialogConfig()
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.Settle <= 0 {
		c.Settle = d.Settle
	}
	if c.Resume <= 0 {
		c.Resume = d.Resume
	}
	if c.Watchdog <= 0 {
		c.Watchdog = d.Watchdog
	}
	if c.NoSpeechRestart <= 0 {
		c.NoSpeechRestart = d.NoSpeechRestart
	}
	if c.EndRestart <= 0 {
		c.EndRestart = d.EndRestart
	}
	if c.Decay <= 0 {
		c.Decay = d.Decay
	}
	if c.MaxAutoRestarts < 0 {
		c.MaxAutoRestarts = 0
	}
	return c
}
