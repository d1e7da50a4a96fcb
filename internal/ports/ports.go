package ports

import (
	"context"
	"io"

	"ergovoice/internal/domain"
)

// Recognizer controls one speech-to-text stream. Stop and Abort are
// idempotent and must not fail when the stream is already stopped.
type Recognizer interface {
	Start() error
	Stop() error
	Abort() error
}

// RecognitionHandler receives everything a Recognizer delivers. Calls may
// arrive from any goroutine.
type RecognitionHandler interface {
	HandleResult(event domain.RecognitionEvent)
	HandleError(kind domain.RecognitionErrorKind, detail string)
	HandleEnded()
}

// RecognizerFactory builds a recognizer bound to a handler.
type RecognizerFactory func(handler RecognitionHandler) (Recognizer, error)

// SpeechSink speaks prompts. Speak cancels whatever is playing and calls
// onDone exactly once when the new utterance finished or was cancelled.
type SpeechSink interface {
	Speak(text string, onDone func()) error
	CancelAll()
}

// TaskSink receives the finished command of a capture dialog.
type TaskSink interface {
	CreateTask(ctx context.Context, cmd domain.TaskCommand) error
}

// RulesEngine rewrites recognized text using deterministic substitutions.
type RulesEngine interface {
	Apply(text string) string
}

// DialogEventSink emits dialog state and errors to the UI.
type DialogEventSink interface {
	DialogStateChanged(status domain.DialogStatus, reason domain.DialogReason)
	ListeningChanged(listening bool)
	Transcript(text string, isFinal bool)
	DialogError(code domain.ErrorCode, detail string)
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	Language       string
	InterimResults bool
	Alternatives   int
}

// TranscriptEvent is incremental output from a streaming provider.
type TranscriptEvent struct {
	Text        string
	IsFinal     bool
	SpeechFinal bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// TaskEventSink is told after the task list or its view changed.
type TaskEventSink interface {
	TasksChanged(message string)
}
