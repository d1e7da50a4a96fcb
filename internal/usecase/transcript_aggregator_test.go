package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ergovoice/internal/domain"
	"ergovoice/internal/ports"
)

func TestTranscriptAggregatorJoinsSegmentsUntilSpeechFinal(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator()

	got, ok := agg.Add(ports.TranscriptEvent{Text: "acheter"})
	assert.True(t, ok)
	assert.Equal(t, domain.RecognitionEvent{Text: "acheter"}, got)

	got, ok = agg.Add(ports.TranscriptEvent{Text: "acheter du", IsFinal: true})
	assert.True(t, ok)
	assert.Equal(t, domain.RecognitionEvent{Text: "acheter du"}, got)

	got, ok = agg.Add(ports.TranscriptEvent{Text: "lait"})
	assert.True(t, ok)
	assert.Equal(t, domain.RecognitionEvent{Text: "acheter du lait"}, got)

	got, ok = agg.Add(ports.TranscriptEvent{Text: "lait", IsFinal: true, SpeechFinal: true})
	assert.True(t, ok)
	assert.Equal(t, domain.RecognitionEvent{Text: "acheter du lait", IsFinal: true}, got)

	_, ok = agg.Flush()
	assert.False(t, ok)
}

func TestTranscriptAggregatorIgnoresEmpty(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator()
	_, ok := agg.Add(ports.TranscriptEvent{Text: "   "})
	assert.False(t, ok)

	_, ok = agg.Add(ports.TranscriptEvent{IsFinal: true, SpeechFinal: true})
	assert.False(t, ok)
}

func TestTranscriptAggregatorFlushFinalizesLeftovers(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator()
	agg.Add(ports.TranscriptEvent{Text: "haute", IsFinal: true})

	got, ok := agg.Flush()
	assert.True(t, ok)
	assert.Equal(t, domain.RecognitionEvent{Text: "haute", IsFinal: true}, got)
}
