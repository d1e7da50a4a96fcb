package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ergovoice/internal/domain"
	"ergovoice/internal/ports"
)

type routerHarness struct {
	*dialogHarness
	router   *Router
	commands *CommandService
	forward  *fakeDialogEvents
}

func newRouterHarness(t *testing.T, autoBegin bool) *routerHarness {
	t.Helper()

	commands, _, _ := newCommandHarness(t,
		seedTask(t, "Réviser pour l'examen", domain.CategoryStudy, domain.PriorityHigh, false),
	)
	forward := &fakeDialogEvents{}
	router := NewRouter(context.Background(), commands, forward, autoBegin)

	h := &dialogHarness{
		recognizer: &fakeRecognizer{},
		speech:     &fakeSpeech{},
		tasks:      &fakeTaskSink{},
		events:     forward,
	}
	factory := func(ports.RecognitionHandler) (ports.Recognizer, error) { return h.recognizer, nil }
	controller, err := NewDialogController(context.Background(), factory, h.speech, h.tasks, nil, router, nil, DefaultDialogConfig())
	require.NoError(t, err)
	h.controller = controller
	router.Bind(controller)

	return &routerHarness{dialogHarness: h, router: router, commands: commands, forward: forward}
}

func TestRouterExecutesRecognizedCommands(t *testing.T) {
	t.Parallel()

	h := newRouterHarness(t, true)
	h.controller.SetListening(true)
	h.final("Coche réviser")
	h.router.Wait()

	visible, err := h.commands.Visible(context.Background())
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.True(t, visible[0].Completed)
	assert.Equal(t, domain.DialogStateCapturingTitle, h.controller.Status().State)
	assert.Empty(t, h.speech.snapshot())
}

func TestRouterBeginsDialogFromUnrecognizedFinal(t *testing.T) {
	t.Parallel()

	h := newRouterHarness(t, true)
	h.controller.SetListening(true)

	h.interim("acheter du")
	h.router.Wait()
	assert.Empty(t, h.speech.snapshot())

	h.final("acheter du pain")
	h.router.Wait()
	require.Eventually(t, func() bool {
		return h.controller.Status().State == domain.DialogStateCapturingPriority
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "acheter du pain", h.controller.Status().Title)
	assert.Equal(t, promptPriority, h.speech.last())
	assert.Contains(t, h.forward.reasons(), domain.DialogReasonTitleHeard)
}

func TestRouterWithoutAutoBeginOnlyForwards(t *testing.T) {
	t.Parallel()

	h := newRouterHarness(t, false)
	h.controller.SetListening(true)
	h.final("acheter du pain")
	h.router.Wait()

	assert.Equal(t, domain.DialogStateCapturingTitle, h.controller.Status().State)
	assert.Empty(t, h.speech.snapshot())
	assert.Equal(t, []transcriptEvent{{text: "acheter du pain", isFinal: true}}, h.forward.snapshotTranscripts())
}
