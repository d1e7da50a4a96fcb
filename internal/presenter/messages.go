// Package presenter turns dialog events into the French lines shown by the
// desktop UI and the terminal.
package presenter

import (
	"fmt"

	"ergovoice/internal/domain"
)

// DialogMessage is the French status line shown for a dialog update.
func DialogMessage(status domain.DialogStatus, reason domain.DialogReason) string {
	switch reason {
	case domain.DialogReasonReady:
		return "Prêt"
	case domain.DialogReasonTitleHeard:
		return fmt.Sprintf("Entendu : %q", status.PendingText)
	case domain.DialogReasonDialogStarted:
		return fmt.Sprintf("Nouvelle tâche : %q", status.Title)
	case domain.DialogReasonDialogRejected:
		return "Une tâche est déjà en cours de création"
	case domain.DialogReasonPriorityCaptured:
		return "Priorité " + status.Priority.Label()
	case domain.DialogReasonCategoryCaptured:
		return "Catégorie " + status.Category.Label()
	case domain.DialogReasonValuePending:
		return "Vérification…"
	case domain.DialogReasonAwaitingCategory:
		return "Quelle catégorie ?"
	case domain.DialogReasonDialogCompleted:
		return "Tâche prête"
	case domain.DialogReasonTaskSubmitted:
		return "Tâche ajoutée"
	case domain.DialogReasonListeningStarted, domain.DialogReasonListeningResumed:
		return "J'écoute…"
	case domain.DialogReasonListeningStopped:
		return "Micro coupé"
	case domain.DialogReasonDialogReset:
		return "Prêt pour une nouvelle tâche"
	case domain.DialogReasonDialogCancelled:
		return "Création annulée"
	case domain.DialogReasonNoMatch:
		if status.PendingText == "" {
			return "Je n'ai pas compris"
		}
		return fmt.Sprintf("Je n'ai pas compris %q", status.PendingText)
	case domain.DialogReasonPermissionDenied:
		return "Accès au micro refusé"
	case domain.DialogReasonNetworkError:
		return "Erreur réseau de la reconnaissance vocale"
	default:
		return ""
	}
}

// ErrorMessage is the French text shown for an environment error. Unknown
// codes fall back to detail.
func ErrorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Échec du démarrage"
	case domain.ErrorCodePermissionDenied:
		return "Autorisez l'accès au micro pour continuer"
	case domain.ErrorCodeNetwork:
		return "Reconnaissance vocale indisponible (réseau)"
	case domain.ErrorCodeRecognition:
		return "Erreur de reconnaissance vocale"
	case domain.ErrorCodeRecognitionStalled:
		return "La reconnaissance vocale ne répond plus"
	case domain.ErrorCodeSpeech:
		return "Synthèse vocale indisponible"
	case domain.ErrorCodeTaskStore:
		return "Impossible d'enregistrer la tâche"
	default:
		if detail == "" {
			return "Erreur inconnue"
		}
		return detail
	}
}
