package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ergovoice/internal/clock"
	"ergovoice/internal/domain"
	"ergovoice/internal/logging"
	"ergovoice/internal/ports"
)

// StreamConfig controls microphone-to-provider recognition.
type StreamConfig struct {
	Audio           ports.AudioConfig
	Streaming       ports.StreamingConfig
	ChunkSize       int
	NoSpeechTimeout time.Duration
	StreamGrace     time.Duration
}

// StreamRecognizer implements ports.Recognizer on top of a microphone
// capture and a streaming transcription provider. Each Start opens one
// non-continuous session that ends after the first finished utterance,
// after NoSpeechTimeout of silence, or on a provider failure.
type StreamRecognizer struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	handler  ports.RecognitionHandler
	clock    clock.Clock
	cfg      StreamConfig
	logger   zerolog.Logger

	mu      sync.Mutex
	current *streamSession
}

// NewStreamRecognizerFactory returns a factory for the dialog controller.
func NewStreamRecognizerFactory(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	clk clock.Clock,
	cfg StreamConfig,
) ports.RecognizerFactory {
	return func(handler ports.RecognitionHandler) (ports.Recognizer, error) {
		return NewStreamRecognizer(audio, provider, handler, clk, cfg), nil
	}
}

// NewStreamRecognizer builds a recognizer that reports to handler.
func NewStreamRecognizer(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	handler ports.RecognitionHandler,
	clk clock.Clock,
	cfg StreamConfig,
) *StreamRecognizer {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.NoSpeechTimeout <= 0 {
		cfg.NoSpeechTimeout = 8 * time.Second
	}
	if cfg.StreamGrace <= 0 {
		cfg.StreamGrace = 4 * time.Second
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &StreamRecognizer{
		audio:    audio,
		provider: provider,
		handler:  handler,
		clock:    clk,
		cfg:      cfg,
		logger:   logging.Component("recognizer"),
	}
}

type streamSession struct {
	cancel     func()
	audio      ports.AudioSession
	stream     ports.StreamingSession
	aggregator *transcriptAggregator
	silence    clock.Timer
	pump       *audioPump
	eventsDone chan struct{}

	mu       sync.Mutex
	detached bool
	ending   bool
	noSpeech bool
	failure  error
}

// Start opens a session unless one is already running.
func (r *StreamRecognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := r.provider.StartStreaming(ctx, r.cfg.Streaming)
	if err != nil {
		cancel()
		return fmt.Errorf("start streaming: %w", err)
	}

	audioSession, err := r.audio.Start(ctx, r.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return fmt.Errorf("start audio capture: %w", err)
	}

	s := &streamSession{
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		aggregator: newTranscriptAggregator(),
		eventsDone: make(chan struct{}),
	}
	s.pump = newAudioPump(audioSession, stream, r.cfg.ChunkSize, s.fail)
	s.silence = r.clock.AfterFunc(r.cfg.NoSpeechTimeout, func() {
		s.mu.Lock()
		s.noSpeech = true
		s.mu.Unlock()
		s.endUtterance()
	})
	r.current = s

	go s.pump.run()
	go r.consume(s)

	r.logger.Debug().Msg("recognition session started")
	return nil
}

// Stop ends the running session gracefully. It never fails when no
// session is running.
func (r *StreamRecognizer) Stop() error {
	s := r.detach()
	if s == nil {
		return nil
	}
	s.endUtterance()
	return nil
}

// Abort tears the running session down immediately.
func (r *StreamRecognizer) Abort() error {
	s := r.detach()
	if s == nil {
		return nil
	}
	s.cancel()
	_ = s.audio.Stop()
	_ = s.stream.Close()
	return nil
}

func (r *StreamRecognizer) detach() *streamSession {
	r.mu.Lock()
	s := r.current
	r.current = nil
	r.mu.Unlock()

	if s != nil {
		s.mu.Lock()
		s.detached = true
		s.mu.Unlock()
	}
	return s
}

func (r *StreamRecognizer) consume(s *streamSession) {
	defer close(s.eventsDone)

	heard := false
	for event := range s.stream.Events() {
		result, ok := s.aggregator.Add(event)
		if !ok {
			continue
		}
		if !heard {
			heard = true
			s.silence.Stop()
		}
		if s.isDetached() {
			continue
		}
		r.handler.HandleResult(result)
		if result.IsFinal {
			s.endUtterance()
		}
	}
	s.silence.Stop()
	_ = s.audio.Stop()

	if result, ok := s.aggregator.Flush(); ok && !s.isDetached() {
		r.handler.HandleResult(result)
	}

	streamErr := drainStream(s.stream, r.cfg.StreamGrace)
	sent := s.pump.wait()
	r.logger.Debug().Int64("bytes", sent).Msg("recognition session drained")
	r.finish(s, streamErr)
}

func (r *StreamRecognizer) finish(s *streamSession, streamErr error) {
	s.cancel()
	_ = s.audio.Stop()

	r.mu.Lock()
	if r.current == s {
		r.current = nil
	}
	r.mu.Unlock()

	s.mu.Lock()
	detached, noSpeech, failure := s.detached, s.noSpeech, s.failure
	s.mu.Unlock()
	if detached {
		return
	}

	switch {
	case noSpeech:
		r.handler.HandleError(domain.RecognitionErrorNoSpeech, "no speech detected")
	case streamErr != nil:
		r.logger.Warn().Err(streamErr).Msg("recognition stream failed")
		r.handler.HandleError(domain.RecognitionErrorNetwork, streamErr.Error())
	case failure != nil:
		r.logger.Warn().Err(failure).Msg("audio capture failed")
		r.handler.HandleError(domain.RecognitionErrorOther, failure.Error())
	}
	r.handler.HandleEnded()
}

func (s *streamSession) isDetached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

func (s *streamSession) fail(err error) {
	s.mu.Lock()
	if s.failure == nil {
		s.failure = err
	}
	s.mu.Unlock()
	s.endUtterance()
}

// endUtterance stops capture and half-closes the stream so the provider
// flushes its last result and closes.
func (s *streamSession) endUtterance() {
	s.mu.Lock()
	if s.ending {
		s.mu.Unlock()
		return
	}
	s.ending = true
	s.mu.Unlock()

	_ = s.audio.Stop()
	_ = s.stream.CloseSend()
}
