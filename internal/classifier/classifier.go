// Package classifier maps one complete spoken utterance to a single-shot
// task-list action.
package classifier

import (
	"strings"
	"unicode"

	"ergovoice/internal/domain"
	"ergovoice/internal/textnorm"
)

// IntentKind tags the variant held by an Intent.
type IntentKind string

const (
	IntentToggleMatchingTask IntentKind = "toggle-matching-task"
	IntentDeleteAllCompleted IntentKind = "delete-all-completed"
	IntentSetFilter          IntentKind = "set-filter"
	IntentSetSort            IntentKind = "set-sort"
	IntentUnrecognized       IntentKind = "unrecognized"
)

// Intent is the action an utterance represents. Only the field matching
// Kind is set.
type Intent struct {
	Kind   IntentKind    `json:"kind"`
	Query  string        `json:"query,omitempty"`
	Filter domain.Filter `json:"filter,omitempty"`
	Sort   domain.Sort   `json:"sort,omitempty"`
	Rule   string        `json:"rule,omitempty"`
}

// Recognized reports whether the intent names an action.
func (i Intent) Recognized() bool {
	return i.Kind != IntentUnrecognized && i.Kind != ""
}

// rule is one guarded branch. The first rule whose guard holds builds the
// intent, even when the builder finds nothing to act on.
type rule struct {
	name  string
	guard func(folded string) bool
	build func(normalized, folded string) Intent
}

// Classifier evaluates its rules top to bottom.
type Classifier struct {
	rules []rule
}

// New returns the French command classifier.
func New() *Classifier {
	return &Classifier{rules: []rule{
		{name: "toggle", guard: isToggle, build: buildToggle},
		{
			name: "delete-completed",
			guard: func(folded string) bool {
				return hasStemmedWord(folded, deleteStems) && containsAny(folded, completedWords)
			},
			build: func(string, string) Intent { return Intent{Kind: IntentDeleteAllCompleted} },
		},
		{name: "filter", guard: func(folded string) bool { return hasStemmedWord(folded, showStems) }, build: buildFilter},
		{name: "sort", guard: func(folded string) bool { return hasStemmedWord(folded, sortStems) }, build: buildSort},
	}}
}

var defaultClassifier = New()

// Classify maps raw with the default classifier.
func Classify(raw string) Intent {
	return defaultClassifier.Classify(raw)
}

// Classify maps one utterance to an intent.
func (c *Classifier) Classify(raw string) Intent {
	normalized := textnorm.Normalize(raw)
	folded := textnorm.Fold(raw)
	if folded == "" {
		return Intent{Kind: IntentUnrecognized}
	}
	for _, r := range c.rules {
		if !r.guard(folded) {
			continue
		}
		intent := r.build(normalized, folded)
		if intent.Kind == "" {
			intent.Kind = IntentUnrecognized
		}
		intent.Rule = r.name
		return intent
	}
	return Intent{Kind: IntentUnrecognized}
}

// stem matches any word that starts with prefix, so every conjugated form
// of a verb is accepted, except words starting with one of except.
type stem struct {
	prefix string
	except []string
}

func (s stem) matches(word string) bool {
	if !strings.HasPrefix(word, s.prefix) {
		return false
	}
	for _, e := range s.except {
		if strings.HasPrefix(word, e) {
			return false
		}
	}
	return true
}

var (
	// "terminées" and "complétées" describe tasks, they are not orders.
	toggleStems = []stem{
		{prefix: "coch", except: []string{"cochon"}},
		{prefix: "termin", except: []string{"terminee", "terminal"}},
		{prefix: "complet", except: []string{"completee", "completement"}},
	}
	deleteStems    = []stem{{prefix: "supprim"}, {prefix: "effac"}}
	showStems      = []stem{{prefix: "affich"}, {prefix: "montr"}, {prefix: "voir"}}
	sortStems      = []stem{{prefix: "tri", except: []string{"triste"}}}
	completedWords = []string{"terminee", "completee"}
)

type subKeyword[T any] struct {
	needles []string
	value   T
}

var (
	filterKeywords = []subKeyword[domain.Filter]{
		{needles: []string{"aujourd"}, value: domain.FilterToday},
		{needles: []string{"terminee", "completee"}, value: domain.FilterCompleted},
		{needles: []string{"en cours", "active"}, value: domain.FilterActive},
		{needles: []string{"toute", "tout"}, value: domain.FilterAll},
	}
	sortKeywords = []subKeyword[domain.Sort]{
		{needles: []string{"priorite"}, value: domain.SortPriority},
		{needles: []string{"categorie"}, value: domain.SortCategory},
		{needles: []string{"date"}, value: domain.SortDate},
		{needles: []string{"alphabet"}, value: domain.SortAlphabetical},
	}
)

func isToggle(folded string) bool {
	return strings.Contains(folded, "marque comme termin") || hasStemmedWord(folded, toggleStems)
}

// buildToggle drops the command verbs, with a following "la tâche" or
// "tâche", and keeps the rest as the title query.
func buildToggle(normalized, _ string) Intent {
	tokens := strings.Fields(normalized)
	kept := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		switch {
		case i+2 < len(tokens) && foldedWord(tokens[i]) == "marque" && foldedWord(tokens[i+1]) == "comme" &&
			strings.HasPrefix(foldedWord(tokens[i+2]), "termin"):
			i += 2
		case matchesAny(foldedWord(tokens[i]), toggleStems):
		default:
			kept = append(kept, tokens[i])
			continue
		}
		switch {
		case i+2 < len(tokens) && foldedWord(tokens[i+1]) == "la" && isTaskWord(tokens[i+2]):
			i += 2
		case i+1 < len(tokens) && isTaskWord(tokens[i+1]):
			i++
		}
	}
	return Intent{Kind: IntentToggleMatchingTask, Query: strings.Join(kept, " ")}
}

func isTaskWord(token string) bool {
	w := foldedWord(token)
	return w == "tache" || w == "taches"
}

func buildFilter(_, folded string) Intent {
	if value, ok := firstSubKeyword(folded, filterKeywords); ok {
		return Intent{Kind: IntentSetFilter, Filter: value}
	}
	return Intent{Kind: IntentUnrecognized}
}

func buildSort(_, folded string) Intent {
	if value, ok := firstSubKeyword(folded, sortKeywords); ok {
		return Intent{Kind: IntentSetSort, Sort: value}
	}
	return Intent{Kind: IntentUnrecognized}
}

func firstSubKeyword[T any](folded string, keywords []subKeyword[T]) (T, bool) {
	for _, keyword := range keywords {
		for _, needle := range keyword.needles {
			if strings.Contains(folded, needle) {
				return keyword.value, true
			}
		}
	}
	var zero T
	return zero, false
}

// words splits folded text on every rune that is not a letter or digit.
func words(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func foldedWord(token string) string {
	if w := words(textnorm.Fold(token)); len(w) > 0 {
		return w[0]
	}
	return ""
}

func matchesAny(word string, stems []stem) bool {
	for _, s := range stems {
		if s.matches(word) {
			return true
		}
	}
	return false
}

func hasStemmedWord(folded string, stems []stem) bool {
	for _, w := range words(folded) {
		if matchesAny(w, stems) {
			return true
		}
	}
	return false
}

func containsAny(folded string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(folded, n) {
			return true
		}
	}
	return false
}
