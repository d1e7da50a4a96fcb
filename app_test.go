package main

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ergovoice/internal/bootstrap"
	"ergovoice/internal/domain"
	"ergovoice/internal/tasks"
)

type emitted struct {
	name string
	data any
}

type emitRecorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *emitRecorder) emit(name string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{name: name, data: data})
}

func (r *emitRecorder) named(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.name == name {
			out = append(out, e.data)
		}
	}
	return out
}

type recordingHandler struct {
	mu      sync.Mutex
	results []domain.RecognitionEvent
	errors  []domain.RecognitionErrorKind
	ended   int
}

func (h *recordingHandler) HandleResult(event domain.RecognitionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, event)
}

func (h *recordingHandler) HandleError(kind domain.RecognitionErrorKind, _ string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, kind)
}

func (h *recordingHandler) HandleEnded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ended++
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := NewApp(bootstrap.Options{})
	assert.ErrorIs(t, app.requireReady(), errNotInitialized)
	assert.ErrorIs(t, app.SetListening(true), errNotInitialized)

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	assert.ErrorIs(t, app.requireReady(), bootErr)
	assert.Equal(t, map[string]string{"error": "boot"}, app.GetRuntimeInfo())
	assert.Equal(t, domain.DialogStateIdle, app.GetStatus().State)
}

func TestAppEventsAreEmitted(t *testing.T) {
	t.Parallel()

	rec := &emitRecorder{}
	app := NewApp(bootstrap.Options{})
	app.DialogStateChanged(domain.DialogStatus{}, domain.DialogReasonReady)

	app.emit = rec.emit
	app.ListeningChanged(true)
	app.Transcript("haute", true)
	app.TasksChanged("Tâche cochée")
	app.DialogError(domain.ErrorCodeNetwork, "offline")

	assert.Empty(t, rec.named(eventDialog))
	assert.Equal(t, []any{map[string]bool{"listening": true}}, rec.named(eventListening))
	assert.Equal(t, []any{map[string]any{"text": "haute", "isFinal": true}}, rec.named(eventTranscript))
	assert.Equal(t, []any{map[string]string{"message": "Tâche cochée"}}, rec.named(eventTasks))
	assert.Equal(t, []any{map[string]string{
		"code":    "network",
		"message": "Reconnaissance vocale indisponible (réseau)",
		"detail":  "offline",
	}}, rec.named(eventError))
}

func TestWebviewBridgeRecognizer(t *testing.T) {
	t.Parallel()

	rec := &emitRecorder{}
	bridge := newWebviewBridge()
	bridge.setEmitter(rec.emit)
	bridge.configure("fr-FR", 3)

	handler := &recordingHandler{}
	recognizer, err := bridge.factory(handler)
	require.NoError(t, err)

	require.NoError(t, recognizer.Start())
	require.NoError(t, recognizer.Abort())
	commands := rec.named(eventRecognizer)
	require.Len(t, commands, 2)
	start := commands[0].(map[string]any)
	assert.Equal(t, "start", start["action"])
	assert.Equal(t, "fr-FR", start["lang"])
	assert.Equal(t, 3, start["maxAlternatives"])
	assert.Equal(t, false, start["continuous"])
	assert.Equal(t, "abort", commands[1].(map[string]any)["action"])

	bridge.result("priorité haute", true)
	bridge.recognitionError("not-allowed", "")
	bridge.ended()
	assert.Equal(t, []domain.RecognitionEvent{{Text: "priorité haute", IsFinal: true}}, handler.results)
	assert.Equal(t, []domain.RecognitionErrorKind{domain.RecognitionErrorPermissionDenied}, handler.errors)
	assert.Equal(t, 1, handler.ended)
}

func TestWebviewBridgeSpeechCompletesOnce(t *testing.T) {
	t.Parallel()

	rec := &emitRecorder{}
	bridge := newWebviewBridge()
	bridge.setEmitter(rec.emit)

	done := map[string]int{}
	require.NoError(t, bridge.Speak("Quelle priorité ?", func() { done["first"]++ }))
	require.NoError(t, bridge.Speak("Quelle catégorie ?", func() { done["second"]++ }))
	assert.Equal(t, 1, done["first"], "a new prompt completes the previous one")

	spoken := rec.named(eventSpeak)
	require.Len(t, spoken, 2)
	secondID := spoken[1].(map[string]string)["id"]
	firstID := spoken[0].(map[string]string)["id"]

	bridge.speechDone(firstID)
	assert.Equal(t, 1, done["first"])
	bridge.speechDone(secondID)
	bridge.speechDone(secondID)
	assert.Equal(t, 1, done["second"])

	require.NoError(t, bridge.Speak("Tâche prête", func() { done["third"]++ }))
	bridge.CancelAll()
	bridge.CancelAll()
	assert.Equal(t, 1, done["third"])
	assert.Len(t, rec.named(eventSpeechCancel), 2)
}

func TestWebviewBridgeSpeakCutsOffPlayingUtterance(t *testing.T) {
	t.Parallel()

	rec := &emitRecorder{}
	bridge := newWebviewBridge()
	bridge.setEmitter(rec.emit)

	require.NoError(t, bridge.Speak("Quelle priorité ?", nil))
	assert.Empty(t, rec.named(eventSpeechCancel))

	require.NoError(t, bridge.Speak("Quelle catégorie ?", nil))
	rec.mu.Lock()
	names := make([]string, 0, len(rec.events))
	for _, e := range rec.events {
		names = append(names, e.name)
	}
	rec.mu.Unlock()
	assert.Equal(t, []string{eventSpeak, eventSpeechCancel, eventSpeak}, names)

	// Nothing is playing once the frontend reported the end.
	id := rec.named(eventSpeak)[1].(map[string]string)["id"]
	bridge.speechDone(id)
	require.NoError(t, bridge.Speak("Tâche ajoutée", nil))
	assert.Len(t, rec.named(eventSpeechCancel), 1)
}

func TestTaskPatchAndParsers(t *testing.T) {
	t.Parallel()

	title, category, priority, due := "Réviser", "Études", "basse", "2025-10-07"
	update, err := TaskPatch{Title: &title, Category: &category, Priority: &priority, DueDate: &due}.update()
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryStudy, *update.Category)
	assert.Equal(t, domain.PriorityLow, *update.Priority)
	require.NotNil(t, update.DueDate)
	assert.Equal(t, time.October, update.DueDate.Month())

	empty := ""
	update, err = TaskPatch{DueDate: &empty}.update()
	require.NoError(t, err)
	assert.True(t, update.ClearDue)

	bad := "urgent"
	_, err = TaskPatch{Priority: &bad}.update()
	assert.Error(t, err)

	cmd, err := parseTaskCommand(" Acheter du pain ", "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCommand{Title: "Acheter du pain", Category: domain.CategoryPersonal, Priority: domain.PriorityMedium}, cmd)
	_, err = parseTaskCommand("  ", "", "")
	assert.ErrorIs(t, err, tasks.ErrEmptyTitle)

	view, err := tasks.ParseView(tasks.DefaultView(), "completed", "", " pain ")
	require.NoError(t, err)
	assert.Equal(t, domain.FilterCompleted, view.Filter)
	assert.Equal(t, tasks.DefaultView().Sort, view.Sort)
	assert.Equal(t, "pain", view.Search)
	_, err = tasks.ParseView(tasks.DefaultView(), "", "random", "")
	assert.Error(t, err)
}
