package usecase

import (
	"strings"

	"ergovoice/internal/domain"
	"ergovoice/internal/ports"
)

// transcriptAggregator folds provider segments into utterance-level
// recognition events. Finalized segments accumulate until the provider
// marks the end of speech; only then is a final event produced.
type transcriptAggregator struct {
	finals []string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

// Add returns the event to deliver for one provider segment, if any.
func (a *transcriptAggregator) Add(event ports.TranscriptEvent) (domain.RecognitionEvent, bool) {
	text := strings.TrimSpace(event.Text)
	if text == "" && !event.SpeechFinal {
		return domain.RecognitionEvent{}, false
	}

	if event.IsFinal && text != "" {
		a.finals = append(a.finals, text)
	}
	current := a.joined()
	if !event.IsFinal {
		current = strings.TrimSpace(current + " " + text)
	}

	if event.SpeechFinal {
		a.finals = nil
		return domain.RecognitionEvent{Text: current, IsFinal: true}, current != ""
	}
	return domain.RecognitionEvent{Text: current}, current != ""
}

// Flush finalizes segments left over when the stream closed before the
// provider signalled the end of speech.
func (a *transcriptAggregator) Flush() (domain.RecognitionEvent, bool) {
	joined := a.joined()
	a.finals = nil
	return domain.RecognitionEvent{Text: joined, IsFinal: true}, joined != ""
}

func (a *transcriptAggregator) joined() string {
	return strings.TrimSpace(strings.Join(a.finals, " "))
}
