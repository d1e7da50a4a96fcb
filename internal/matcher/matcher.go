// Package matcher decides whether a spoken phrase names one of the fixed
// priority or category values.
//
// Rules are evaluated in a fixed order and the first match wins, so an
// utterance that satisfies two rules resolves deterministically.
package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"ergovoice/internal/domain"
	"ergovoice/internal/textnorm"
)

// Kind is the dialog field a phrase is matched against.
type Kind string

const (
	KindPriority Kind = "priority"
	KindCategory Kind = "category"
)

// Rule describes how one field value may be spoken.
type Rule struct {
	Value    string
	Keywords []string // whole-word patterns
	Exact    []string
	Stem     string
	NotStem  string
	Loose    []string // substrings accepted on manual confirmation only
}

type compiledRule struct {
	value   string
	words   *regexp.Regexp
	exact   map[string]struct{}
	stem    string
	notStem string
	loose   []string
}

func (r compiledRule) matches(folded string) bool {
	if folded == "" {
		return false
	}
	if r.words != nil && r.words.MatchString(folded) {
		return true
	}
	if _, ok := r.exact[folded]; ok {
		return true
	}
	if r.stem != "" && strings.HasPrefix(folded, r.stem) {
		return r.notStem == "" || !strings.HasPrefix(folded, r.notStem)
	}
	return false
}

func (r compiledRule) matchesLoose(folded string) bool {
	for _, sub := range r.loose {
		if strings.Contains(folded, sub) {
			return true
		}
	}
	return false
}

// Set is an ordered, immutable list of rules for one kind.
type Set struct {
	kind      Kind
	rules     []compiledRule
	looseRank []int
}

// NewSet compiles rules in evaluation order. looseOrder lists rule values in
// the order the loose fallback should try them; nil keeps rule order.
func NewSet(kind Kind, rules []Rule, looseOrder []string) (*Set, error) {
	set := &Set{kind: kind}
	for _, rule := range rules {
		compiled, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("%s rule %q: %w", kind, rule.Value, err)
		}
		set.rules = append(set.rules, compiled)
	}

	if len(looseOrder) == 0 {
		for i := range set.rules {
			set.looseRank = append(set.looseRank, i)
		}
		return set, nil
	}
	for _, value := range looseOrder {
		index := -1
		for i, rule := range set.rules {
			if rule.value == value {
				index = i
				break
			}
		}
		if index < 0 {
			return nil, fmt.Errorf("%s loose order names unknown value %q", kind, value)
		}
		set.looseRank = append(set.looseRank, index)
	}
	return set, nil
}

func compileRule(rule Rule) (compiledRule, error) {
	compiled := compiledRule{
		value:   rule.Value,
		exact:   make(map[string]struct{}, len(rule.Exact)),
		stem:    textnorm.Fold(rule.Stem),
		notStem: textnorm.Fold(rule.NotStem),
	}
	for _, exact := range rule.Exact {
		compiled.exact[textnorm.Fold(exact)] = struct{}{}
	}
	for _, sub := range rule.Loose {
		compiled.loose = append(compiled.loose, textnorm.Fold(sub))
	}

	if len(rule.Keywords) > 0 {
		quoted := make([]string, 0, len(rule.Keywords))
		for _, keyword := range rule.Keywords {
			quoted = append(quoted, regexp.QuoteMeta(textnorm.Fold(keyword)))
		}
		pattern := `(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}])`
		re, err := regexp.Compile(pattern)
		if err != nil {
			return compiledRule{}, err
		}
		compiled.words = re
	}
	return compiled, nil
}

// Kind returns the field kind the set matches.
func (s *Set) Kind() Kind { return s.kind }

// Match returns the first rule value matching text.
func (s *Set) Match(text string) (string, bool) {
	folded := textnorm.Fold(text)
	for _, rule := range s.rules {
		if rule.matches(folded) {
			return rule.value, true
		}
	}
	return "", false
}

// MatchLoose tries Match and then the substring fallback used when the
// user explicitly confirms what was heard.
func (s *Set) MatchLoose(text string) (string, bool) {
	if value, ok := s.Match(text); ok {
		return value, true
	}
	folded := textnorm.Fold(text)
	if folded == "" {
		return "", false
	}
	for _, index := range s.looseRank {
		if s.rules[index].matchesLoose(folded) {
			return s.rules[index].value, true
		}
	}
	return "", false
}

var (
	prioritySet = mustSet(KindPriority, []Rule{
		{
			Value:    string(domain.PriorityHigh),
			Keywords: []string{"haute", "hot", "haut", "urgent", "urgente", "importante", "priorité haute", "haute priorité"},
			Exact:    []string{"haute", "haut"},
			Stem:     "haut",
			Loose:    []string{"haut", "urgent"},
		},
		{
			Value:    string(domain.PriorityLow),
			Keywords: []string{"basse", "bas", "faible", "low", "priorité basse", "basse priorité", "base"},
			Exact:    []string{"basse", "bas", "base"},
			Stem:     "bas",
			NotStem:  "bass",
			Loose:    []string{"bas", "base", "faible"},
		},
		{
			Value:    string(domain.PriorityMedium),
			Keywords: []string{"moyenne", "moyen", "normal", "normale", "medium", "priorité moyenne", "moyenne priorité"},
			Exact:    []string{"moyenne", "moyen", "normal"},
			Stem:     "moyen",
			Loose:    []string{"moyen", "normal"},
		},
	}, nil)

	categorySet = mustSet(KindCategory, []Rule{
		{
			Value:    string(domain.CategoryWork),
			Keywords: []string{"travail", "work", "boulot", "professionnel", "professionnelle", "bureau"},
			Exact:    []string{"travail", "boulot"},
			Loose:    []string{"travail", "boulot"},
		},
		{
			Value:    string(domain.CategoryStudy),
			Keywords: []string{"étude", "études", "study", "école", "scolaire", "éducation", "éducatif", "université"},
			Exact:    []string{"études", "étude", "école"},
			Loose:    []string{"étud", "école"},
		},
		{
			Value:    string(domain.CategoryPersonal),
			Keywords: []string{"perso", "personnel", "personal", "personnelle", "privé", "privée", "vie privée"},
			Exact:    []string{"perso", "personnel"},
			Loose:    []string{"perso", "personnel"},
		},
	}, []string{string(domain.CategoryStudy), string(domain.CategoryWork), string(domain.CategoryPersonal)})
)

func mustSet(kind Kind, rules []Rule, looseOrder []string) *Set {
	set, err := NewSet(kind, rules, looseOrder)
	if err != nil {
		panic(err)
	}
	return set
}

// For returns the built-in rule set of a kind.
func For(kind Kind) *Set {
	if kind == KindCategory {
		return categorySet
	}
	return prioritySet
}

// Match decides whether text unambiguously names a value of kind.
func Match(kind Kind, text string) (string, bool) {
	return For(kind).Match(text)
}

// MatchLoose is Match with the manual-confirmation substring fallback.
func MatchLoose(kind Kind, text string) (string, bool) {
	return For(kind).MatchLoose(text)
}

// MatchPriority is Match for the priority field.
func MatchPriority(text string) (domain.Priority, bool) {
	value, ok := Match(KindPriority, text)
	return domain.Priority(value), ok
}

// MatchCategory is Match for the category field.
func MatchCategory(text string) (domain.Category, bool) {
	value, ok := Match(KindCategory, text)
	return domain.Category(value), ok
}
