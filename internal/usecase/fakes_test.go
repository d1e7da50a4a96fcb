package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"ergovoice/internal/domain"
	"ergovoice/internal/ports"
)

type fakeRecognizer struct {
	mu       sync.Mutex
	starts   int
	stops    int
	aborts   int
	startErr error
}

func (f *fakeRecognizer) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	return nil
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeRecognizer) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts++
	return nil
}

func (f *fakeRecognizer) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *fakeRecognizer) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *fakeRecognizer) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborts
}

// fakeSpeech holds each utterance until the test finishes it.
type fakeSpeech struct {
	mu        sync.Mutex
	spoken    []string
	pending   func()
	cancelled int
	err       error
}

func (f *fakeSpeech) Speak(text string, onDone func()) error {
	f.mu.Lock()
	if f.err != nil {
		f.mu.Unlock()
		return f.err
	}
	previous := f.pending
	f.spoken = append(f.spoken, text)
	f.pending = onDone
	f.mu.Unlock()

	if previous != nil {
		previous()
	}
	return nil
}

func (f *fakeSpeech) CancelAll() {
	f.mu.Lock()
	previous := f.pending
	f.pending = nil
	f.cancelled++
	f.mu.Unlock()

	if previous != nil {
		previous()
	}
}

// finish completes the utterance being played, if any.
func (f *fakeSpeech) finish() bool {
	f.mu.Lock()
	done := f.pending
	f.pending = nil
	f.mu.Unlock()

	if done == nil {
		return false
	}
	done()
	return true
}

func (f *fakeSpeech) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

func (f *fakeSpeech) last() string {
	spoken := f.snapshot()
	if len(spoken) == 0 {
		return ""
	}
	return spoken[len(spoken)-1]
}

type fakeTaskSink struct {
	mu   sync.Mutex
	cmds []domain.TaskCommand
	err  error
}

func (f *fakeTaskSink) CreateTask(_ context.Context, cmd domain.TaskCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cmds = append(f.cmds, cmd)
	return nil
}

func (f *fakeTaskSink) snapshot() []domain.TaskCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TaskCommand, len(f.cmds))
	copy(out, f.cmds)
	return out
}

type fakeDialogEvents struct {
	mu sync.Mutex

	states      []stateEvent
	listening   []bool
	transcripts []transcriptEvent
	errors      []errEvent
}

type stateEvent struct {
	status domain.DialogStatus
	reason domain.DialogReason
}

type transcriptEvent struct {
	text    string
	isFinal bool
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeDialogEvents) DialogStateChanged(status domain.DialogStatus, reason domain.DialogReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{status: status, reason: reason})
}

func (f *fakeDialogEvents) ListeningChanged(listening bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listening = append(f.listening, listening)
}

func (f *fakeDialogEvents) Transcript(text string, isFinal bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, transcriptEvent{text: text, isFinal: isFinal})
}

func (f *fakeDialogEvents) DialogError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeDialogEvents) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeDialogEvents) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeDialogEvents) snapshotTranscripts() []transcriptEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transcriptEvent, len(f.transcripts))
	copy(out, f.transcripts)
	return out
}

func (f *fakeDialogEvents) reasons() []domain.DialogReason {
	states := f.snapshotStates()
	out := make([]domain.DialogReason, 0, len(states))
	for _, s := range states {
		out = append(out, s.reason)
	}
	return out
}

func (f *fakeDialogEvents) lastReason() domain.DialogReason {
	reasons := f.reasons()
	if len(reasons) == 0 {
		return ""
	}
	return reasons[len(reasons)-1]
}

type fakeRules struct {
	replace map[string]string
}

func (f *fakeRules) Apply(text string) string {
	if out, ok := f.replace[text]; ok {
		return out
	}
	return text
}

// fakeHandler records what a recognizer delivers.
type fakeHandler struct {
	mu      sync.Mutex
	results []domain.RecognitionEvent
	errors  []domain.RecognitionErrorKind
	ended   chan struct{}
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{ended: make(chan struct{}, 8)}
}

func (f *fakeHandler) HandleResult(event domain.RecognitionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, event)
}

func (f *fakeHandler) HandleError(kind domain.RecognitionErrorKind, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, kind)
}

func (f *fakeHandler) HandleEnded() {
	f.ended <- struct{}{}
}

func (f *fakeHandler) snapshotResults() []domain.RecognitionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RecognitionEvent, len(f.results))
	copy(out, f.results)
	return out
}

func (f *fakeHandler) snapshotErrors() []domain.RecognitionErrorKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RecognitionErrorKind, len(f.errors))
	copy(out, f.errors)
	return out
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

// fakeAudioSession serves its chunks and then blocks until stopped, like a
// live microphone.
type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
	stopped   chan struct{}
	once      sync.Once
}

func newFakeAudioSession(chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, stopped: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.index < len(f.chunks) {
		n := copy(p, f.chunks[f.index])
		f.index++
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()
	<-f.stopped
	return 0, io.EOF
}

func (f *fakeAudioSession) Close() error { return f.Stop() }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.once.Do(func() { close(f.stopped) })
	return nil
}

type fakeProvider struct {
	mu       sync.Mutex
	sessions []ports.StreamingSession
	err      error
	calls    int
}

func (f *fakeProvider) StartStreaming(_ context.Context, _ ports.StreamingConfig) (ports.StreamingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeStreamingSession struct {
	events     chan ports.TranscriptEvent
	waitErr    error
	closeSend  int
	closeCalls int
	closed     bool
	mu         sync.Mutex
}

func newFakeStreamingSession() *fakeStreamingSession {
	return &fakeStreamingSession{events: make(chan ports.TranscriptEvent, 16)}
}

func (f *fakeStreamingSession) SendAudio(_ []byte) error { return nil }

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSend++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeStreamingSession) Events() <-chan ports.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	time.Sleep(5 * time.Millisecond)
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeStreamingSession) closeSendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeSend
}
