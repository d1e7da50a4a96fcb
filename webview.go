package main

import (
	"strconv"
	"strings"
	"sync"

	"ergovoice/internal/domain"
	"ergovoice/internal/ports"
)

const (
	eventRecognizer   = "ergovoice:recognizer"
	eventSpeak        = "ergovoice:speak"
	eventSpeechCancel = "ergovoice:speech-cancel"
)

// emitFunc sends one event to the frontend.
type emitFunc func(name string, data any)

// webviewBridge lets the frontend's Web Speech API act as the recognizer
// and the speech sink. Commands go out as events; results come back
// through the App's bound methods.
type webviewBridge struct {
	mu           sync.Mutex
	locale       string
	alternatives int
	emit         emitFunc
	handler      ports.RecognitionHandler
	nextID       uint64
	pending      map[string]func()
}

func newWebviewBridge() *webviewBridge {
	return &webviewBridge{locale: "fr-FR", alternatives: 1, pending: map[string]func(){}}
}

func (b *webviewBridge) configure(locale string, alternatives int) {
	b.mu.Lock()
	b.locale = locale
	b.alternatives = alternatives
	b.mu.Unlock()
}

func (b *webviewBridge) setEmitter(emit emitFunc) {
	b.mu.Lock()
	b.emit = emit
	b.mu.Unlock()
}

func (b *webviewBridge) send(name string, data any) {
	b.mu.Lock()
	emit := b.emit
	b.mu.Unlock()
	if emit != nil {
		emit(name, data)
	}
}

// factory is the ports.RecognizerFactory for the webview provider.
func (b *webviewBridge) factory(handler ports.RecognitionHandler) (ports.Recognizer, error) {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()
	return webviewRecognizer{bridge: b}, nil
}

func (b *webviewBridge) currentHandler() ports.RecognitionHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handler
}

type webviewRecognizer struct {
	bridge *webviewBridge
}

func (r webviewRecognizer) Start() error {
	r.bridge.mu.Lock()
	locale, alternatives := r.bridge.locale, r.bridge.alternatives
	r.bridge.mu.Unlock()
	r.bridge.send(eventRecognizer, map[string]any{
		"action":          "start",
		"lang":            locale,
		"continuous":      false,
		"interimResults":  true,
		"maxAlternatives": alternatives,
	})
	return nil
}

func (r webviewRecognizer) Stop() error {
	r.bridge.send(eventRecognizer, map[string]any{"action": "stop"})
	return nil
}

func (r webviewRecognizer) Abort() error {
	r.bridge.send(eventRecognizer, map[string]any{"action": "abort"})
	return nil
}

// Speak asks the frontend to utter text, cutting off any utterance still
// playing. The frontend answers with SpeechDone(id) when the utterance ends
// or fails.
func (b *webviewBridge) Speak(text string, onDone func()) error {
	b.mu.Lock()
	previous := b.takePendingLocked()
	b.nextID++
	id := strconv.FormatUint(b.nextID, 10)
	b.pending[id] = onDone
	locale := b.locale
	b.mu.Unlock()

	if len(previous) > 0 {
		b.send(eventSpeechCancel, nil)
	}
	finishAll(previous)
	b.send(eventSpeak, map[string]string{"id": id, "text": text, "lang": locale})
	return nil
}

func (b *webviewBridge) CancelAll() {
	b.mu.Lock()
	previous := b.takePendingLocked()
	b.mu.Unlock()

	if len(previous) > 0 {
		b.send(eventSpeechCancel, nil)
	}
	finishAll(previous)
}

func (b *webviewBridge) speechDone(id string) {
	b.mu.Lock()
	onDone, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()

	if ok && onDone != nil {
		onDone()
	}
}

func (b *webviewBridge) takePendingLocked() []func() {
	if len(b.pending) == 0 {
		return nil
	}
	out := make([]func(), 0, len(b.pending))
	for id, onDone := range b.pending {
		out = append(out, onDone)
		delete(b.pending, id)
	}
	return out
}

func finishAll(callbacks []func()) {
	for _, onDone := range callbacks {
		if onDone != nil {
			onDone()
		}
	}
}

func (b *webviewBridge) result(text string, isFinal bool) {
	if h := b.currentHandler(); h != nil {
		h.HandleResult(domain.RecognitionEvent{Text: text, IsFinal: isFinal})
	}
}

func (b *webviewBridge) recognitionError(name, detail string) {
	if h := b.currentHandler(); h != nil {
		h.HandleError(domain.ParseRecognitionErrorKind(name), strings.TrimSpace(detail))
	}
}

func (b *webviewBridge) ended() {
	if h := b.currentHandler(); h != nil {
		h.HandleEnded()
	}
}
