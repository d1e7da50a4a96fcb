// Package gtts speaks dialog prompts with Google Translate text-to-speech
// played through the default audio output.
package gtts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	google_translate_tts "github.com/GrailFinder/google-translate-tts"
	"github.com/GrailFinder/google-translate-tts/handlers"
	"github.com/rs/zerolog"

	"ergovoice/internal/logging"
)

var errEmptyText = errors.New("nothing to speak")

// Config selects the voice.
type Config struct {
	Language string
	Speed    float32
	CacheDir string
}

// synthesizer turns text into an mp3 stream.
type synthesizer func(text string) (io.Reader, error)

// output plays one mp3 stream and calls done when it ends by itself. The
// returned stop silences it without calling done.
type output interface {
	Play(mp3 io.Reader, speed float32, done func()) (stop func(), err error)
}

// Speaker implements ports.SpeechSink. Synthesis and playback run on a
// goroutine; Speak only schedules them.
type Speaker struct {
	synthesize synthesizer
	out        output
	speed      float32
	logger     zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	current *utterance
}

type utterance struct {
	gen    uint64
	once   sync.Once
	onDone func()
	stop   func()
}

func (u *utterance) finish() {
	u.once.Do(func() {
		if u.onDone != nil {
			u.onDone()
		}
	})
}

// New builds a speaker backed by Google Translate and the system speaker.
func New(cfg Config) *Speaker {
	if cfg.Language == "" {
		cfg.Language = "fr"
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "ergovoice-tts")
	}
	speech := &google_translate_tts.Speech{
		Folder:   cfg.CacheDir,
		Language: cfg.Language,
		Speed:    cfg.Speed,
		Handler:  &handlers.Beep{},
	}
	return newSpeaker(func(text string) (io.Reader, error) {
		return speech.GenerateSpeech(text)
	}, &beepOutput{}, cfg.Speed)
}

func newSpeaker(synthesize synthesizer, out output, speed float32) *Speaker {
	return &Speaker{
		synthesize: synthesize,
		out:        out,
		speed:      speed,
		logger:     logging.Component("tts"),
	}
}

// Speak cancels the current utterance and starts text. onDone runs exactly
// once, when text finished playing, failed or was cancelled.
func (s *Speaker) Speak(text string, onDone func()) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errEmptyText
	}

	s.mu.Lock()
	previous := s.current
	s.gen++
	u := &utterance{gen: s.gen, onDone: onDone}
	s.current = u
	s.mu.Unlock()

	if previous != nil {
		s.silence(previous)
	}
	go s.play(u, text)
	return nil
}

// CancelAll silences the current utterance and completes it.
func (s *Speaker) CancelAll() {
	s.mu.Lock()
	previous := s.current
	s.current = nil
	s.gen++
	s.mu.Unlock()

	if previous != nil {
		s.silence(previous)
	}
}

func (s *Speaker) silence(u *utterance) {
	s.mu.Lock()
	stop := u.stop
	u.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	u.finish()
}

func (s *Speaker) play(u *utterance, text string) {
	mp3, err := s.synthesize(text)
	if err != nil {
		s.logger.Error().Err(err).Msg("speech synthesis failed")
		s.release(u)
		return
	}

	s.mu.Lock()
	if s.current != u {
		s.mu.Unlock()
		return
	}
	stop, err := s.out.Play(mp3, s.speed, func() { s.release(u) })
	if err == nil {
		u.stop = stop
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(fmt.Errorf("play prompt: %w", err)).Msg("speech playback failed")
		s.release(u)
		return
	}
	s.logger.Debug().Uint64("gen", u.gen).Str("text", text).Msg("speaking")
}

// release completes u if it is still the current utterance.
func (s *Speaker) release(u *utterance) {
	s.mu.Lock()
	if s.current == u {
		s.current = nil
	}
	u.stop = nil
	s.mu.Unlock()
	u.finish()
}
