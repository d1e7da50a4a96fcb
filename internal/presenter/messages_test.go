package presenter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ergovoice/internal/domain"
)

func TestDialogMessage(t *testing.T) {
	t.Parallel()

	status := domain.DialogStatus{
		Title:       "Acheter du pain",
		Priority:    domain.PriorityHigh,
		Category:    domain.CategoryStudy,
		PendingText: "bof",
	}
	cases := map[domain.DialogReason]string{
		domain.DialogReasonReady:            "Prêt",
		domain.DialogReasonDialogStarted:    `Nouvelle tâche : "Acheter du pain"`,
		domain.DialogReasonPriorityCaptured: "Priorité Haute",
		domain.DialogReasonCategoryCaptured: "Catégorie Études",
		domain.DialogReasonNoMatch:          `Je n'ai pas compris "bof"`,
		domain.DialogReasonListeningStopped: "Micro coupé",
		domain.DialogReasonPermissionDenied: "Accès au micro refusé",
	}
	for reason, want := range cases {
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, want, DialogMessage(status, reason))
		})
	}

	assert.Equal(t, "Je n'ai pas compris", DialogMessage(domain.DialogStatus{}, domain.DialogReasonNoMatch))
	assert.Empty(t, DialogMessage(status, "unknown"))
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Échec du démarrage", ErrorMessage(domain.ErrorCodeStartup, "ignored"))
	assert.Equal(t, "Synthèse vocale indisponible", ErrorMessage(domain.ErrorCodeSpeech, ""))
	assert.Equal(t, "detail", ErrorMessage("unknown", "detail"))
	assert.Equal(t, "Erreur inconnue", ErrorMessage("unknown", ""))
}
