package gtts

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutput struct {
	mu      sync.Mutex
	played  []string
	dones   []func()
	stopped int
	err     error
}

func (f *fakeOutput) Play(r io.Reader, _ float32, done func()) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, string(data))
	f.dones = append(f.dones, done)
	return func() {
		f.mu.Lock()
		f.stopped++
		f.mu.Unlock()
	}, nil
}

func (f *fakeOutput) playing() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.played)
}

func (f *fakeOutput) end(i int) {
	f.mu.Lock()
	done := f.dones[i]
	f.mu.Unlock()
	done()
}

func echoSynth(text string) (io.Reader, error) {
	return strings.NewReader("mp3:" + text), nil
}

type doneRecorder struct {
	mu    sync.Mutex
	calls map[string]int
	ch    chan string
}

func newDoneRecorder() *doneRecorder {
	return &doneRecorder{calls: map[string]int{}, ch: make(chan string, 16)}
}

func (d *doneRecorder) fn(name string) func() {
	return func() {
		d.mu.Lock()
		d.calls[name]++
		d.mu.Unlock()
		d.ch <- name
	}
}

func (d *doneRecorder) wait(t *testing.T) string {
	t.Helper()
	select {
	case name := <-d.ch:
		return name
	case <-time.After(2 * time.Second):
		t.Fatal("onDone never called")
		return ""
	}
}

func (d *doneRecorder) count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[name]
}

func TestSpeakerCompletesWhenPlaybackEnds(t *testing.T) {
	t.Parallel()

	out := &fakeOutput{}
	s := newSpeaker(echoSynth, out, 1)
	done := newDoneRecorder()

	require.NoError(t, s.Speak("Quelle est la priorité ?", done.fn("prompt")))
	require.Eventually(t, func() bool { return out.playing() == 1 }, 2*time.Second, 5*time.Millisecond)

	out.end(0)
	assert.Equal(t, "prompt", done.wait(t))
	out.end(0)
	assert.Equal(t, 1, done.count("prompt"))
	assert.Equal(t, []string{"mp3:Quelle est la priorité ?"}, out.played)
}

func TestSpeakerNewPromptCancelsPrevious(t *testing.T) {
	t.Parallel()

	out := &fakeOutput{}
	s := newSpeaker(echoSynth, out, 1)
	done := newDoneRecorder()

	require.NoError(t, s.Speak("premier", done.fn("first")))
	require.Eventually(t, func() bool { return out.playing() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Speak("second", done.fn("second")))
	assert.Equal(t, "first", done.wait(t))
	require.Eventually(t, func() bool { return out.playing() == 2 }, 2*time.Second, 5*time.Millisecond)

	out.end(0)
	out.end(1)
	assert.Equal(t, "second", done.wait(t))
	assert.Equal(t, 1, done.count("first"))
	assert.Equal(t, 1, done.count("second"))
}

func TestSpeakerCancelAll(t *testing.T) {
	t.Parallel()

	out := &fakeOutput{}
	s := newSpeaker(echoSynth, out, 1)
	done := newDoneRecorder()

	require.NoError(t, s.Speak("annule-moi", done.fn("prompt")))
	require.Eventually(t, func() bool { return out.playing() == 1 }, 2*time.Second, 5*time.Millisecond)

	s.CancelAll()
	assert.Equal(t, "prompt", done.wait(t))
	s.CancelAll()
	assert.Equal(t, 1, done.count("prompt"))
	assert.Equal(t, 1, out.stopped)
}

func TestSpeakerFailuresStillComplete(t *testing.T) {
	t.Parallel()

	done := newDoneRecorder()
	failing := newSpeaker(func(string) (io.Reader, error) { return nil, errors.New("offline") }, &fakeOutput{}, 1)
	require.NoError(t, failing.Speak("bonjour", done.fn("synth")))
	assert.Equal(t, "synth", done.wait(t))

	broken := newSpeaker(echoSynth, &fakeOutput{err: errors.New("no device")}, 1)
	require.NoError(t, broken.Speak("bonjour", done.fn("play")))
	assert.Equal(t, "play", done.wait(t))

	assert.ErrorIs(t, broken.Speak("  ", done.fn("empty")), errEmptyText)
}
