package domain

import "strings"

// DialogState models the task-capture dialog lifecycle.
type DialogState string

const (
	DialogStateIdle              DialogState = "idle"
	DialogStateCapturingTitle    DialogState = "capturing-title"
	DialogStateCapturingPriority DialogState = "capturing-priority"
	DialogStateCapturingCategory DialogState = "capturing-category"
	DialogStateCompleted         DialogState = "completed"
)

// Capturing reports whether the state waits for a spoken field value.
func (s DialogState) Capturing() bool {
	return s == DialogStateCapturingPriority || s == DialogStateCapturingCategory
}

// DialogReason provides a structured reason for state transitions.
type DialogReason string

const (
	DialogReasonReady            DialogReason = "ready"
	DialogReasonTitleHeard       DialogReason = "title_heard"
	DialogReasonDialogStarted    DialogReason = "dialog_started"
	DialogReasonDialogRejected   DialogReason = "dialog_rejected"
	DialogReasonPriorityCaptured DialogReason = "priority_captured"
	DialogReasonCategoryCaptured DialogReason = "category_captured"
	DialogReasonValuePending     DialogReason = "value_pending"
	DialogReasonAwaitingCategory DialogReason = "awaiting_category"
	DialogReasonDialogCompleted  DialogReason = "dialog_completed"
	DialogReasonListeningResumed DialogReason = "listening_resumed"
	DialogReasonListeningStarted DialogReason = "listening_started"
	DialogReasonListeningStopped DialogReason = "listening_stopped"
	DialogReasonTaskSubmitted    DialogReason = "task_submitted"
	DialogReasonDialogReset      DialogReason = "dialog_reset"
	DialogReasonDialogCancelled  DialogReason = "dialog_cancelled"
	DialogReasonNoMatch          DialogReason = "no_match"
	DialogReasonPermissionDenied DialogReason = "permission_denied"
	DialogReasonNetworkError     DialogReason = "network_error"
)

// ErrorCode identifies non-fatal environment errors.
type ErrorCode string

const (
	ErrorCodeStartup            ErrorCode = "startup"
	ErrorCodePermissionDenied   ErrorCode = "permission_denied"
	ErrorCodeNetwork            ErrorCode = "network"
	ErrorCodeRecognition        ErrorCode = "recognition"
	ErrorCodeRecognitionStalled ErrorCode = "recognition_stalled"
	ErrorCodeSpeech             ErrorCode = "speech"
	ErrorCodeTaskStore          ErrorCode = "task_store"
)

// RecognitionErrorKind classifies errors delivered by a recognizer in place
// of a result.
type RecognitionErrorKind string

const (
	RecognitionErrorPermissionDenied RecognitionErrorKind = "permission-denied"
	RecognitionErrorNoSpeech         RecognitionErrorKind = "no-speech"
	RecognitionErrorNetwork          RecognitionErrorKind = "network"
	RecognitionErrorOther            RecognitionErrorKind = "other"
)

// ParseRecognitionErrorKind maps recognizer error names, including the
// browser speech API spelling, onto a kind.
func ParseRecognitionErrorKind(name string) RecognitionErrorKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "permission-denied", "not-allowed", "service-not-allowed":
		return RecognitionErrorPermissionDenied
	case "no-speech":
		return RecognitionErrorNoSpeech
	case "network":
		return RecognitionErrorNetwork
	default:
		return RecognitionErrorOther
	}
}

// RecognitionEvent is one notification from the speech stream.
type RecognitionEvent struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Label returns the spoken French label.
func (p Priority) Label() string {
	switch p {
	case PriorityHigh:
		return "Haute"
	case PriorityMedium:
		return "Moyenne"
	case PriorityLow:
		return "Basse"
	default:
		return ""
	}
}

// Rank orders priorities from most to least urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Category groups tasks by life area.
type Category string

const (
	CategoryPersonal Category = "Personal"
	CategoryWork     Category = "Work"
	CategoryStudy    Category = "Study"
)

// Label returns the spoken French label.
func (c Category) Label() string {
	switch c {
	case CategoryPersonal:
		return "Perso"
	case CategoryWork:
		return "Travail"
	case CategoryStudy:
		return "Études"
	default:
		return ""
	}
}

// Filter selects which tasks are displayed.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
	FilterToday     Filter = "today"
)

// Sort orders displayed tasks.
type Sort string

const (
	SortDate         Sort = "date"
	SortPriority     Sort = "priority"
	SortCategory     Sort = "category"
	SortAlphabetical Sort = "alphabetical"
)

// ParsePriority accepts both the enum value and the French label.
func ParsePriority(value string) (Priority, bool) {
	for _, p := range []Priority{PriorityHigh, PriorityMedium, PriorityLow} {
		if strings.EqualFold(value, string(p)) || strings.EqualFold(value, p.Label()) {
			return p, true
		}
	}
	return "", false
}

// ParseCategory accepts both the enum value and the French label.
func ParseCategory(value string) (Category, bool) {
	for _, c := range []Category{CategoryPersonal, CategoryWork, CategoryStudy} {
		if strings.EqualFold(value, string(c)) || strings.EqualFold(value, c.Label()) {
			return c, true
		}
	}
	return "", false
}

// ParseFilter validates a filter name.
func ParseFilter(value string) (Filter, bool) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(value))); f {
	case FilterAll, FilterActive, FilterCompleted, FilterToday:
		return f, true
	case "":
		return FilterAll, true
	default:
		return "", false
	}
}

// ParseSort validates a sort name.
func ParseSort(value string) (Sort, bool) {
	switch s := Sort(strings.ToLower(strings.TrimSpace(value))); s {
	case SortDate, SortPriority, SortCategory, SortAlphabetical:
		return s, true
	case "":
		return SortDate, true
	default:
		return "", false
	}
}

// TaskCommand is the finished output of a task-capture dialog.
type TaskCommand struct {
	Title    string   `json:"title"`
	Category Category `json:"category"`
	Priority Priority `json:"priority"`
}

// DialogStatus summarizes the current dialog for the UI.
type DialogStatus struct {
	State              DialogState `json:"state"`
	Title              string      `json:"title,omitempty"`
	Priority           Priority    `json:"priority,omitempty"`
	Category           Category    `json:"category,omitempty"`
	PendingText        string      `json:"pendingText,omitempty"`
	Listening          bool        `json:"listening"`
	Transitioning      bool        `json:"transitioning"`
	PermissionRequired bool        `json:"permissionRequired"`
}
