package tasks

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"ergovoice/internal/domain"
	"ergovoice/internal/textnorm"
)

// View is how the list is currently displayed.
type View struct {
	Filter domain.Filter `json:"filter"`
	Sort   domain.Sort   `json:"sort"`
	Search string        `json:"search,omitempty"`
}

// DefaultView shows every task, newest first.
func DefaultView() View {
	return View{Filter: domain.FilterAll, Sort: domain.SortDate}
}

// Apply filters, searches and sorts list without modifying it. now decides
// which tasks are due today, in now's location.
func (v View) Apply(list []Task, now time.Time) []Task {
	filtered := lo.Filter(list, func(t Task, _ int) bool {
		return v.keeps(t, now) && matchesSearch(t, v.Search)
	})
	slices.SortStableFunc(filtered, comparator(v.Sort))
	return filtered
}

func (v View) keeps(t Task, now time.Time) bool {
	switch v.Filter {
	case domain.FilterActive:
		return !t.Completed
	case domain.FilterCompleted:
		return t.Completed
	case domain.FilterToday:
		return t.DueDate != nil && sameDay(t.DueDate.In(now.Location()), now)
	default:
		return true
	}
}

func matchesSearch(t Task, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	return textnorm.ContainsFolded(t.Title, query) || textnorm.ContainsFolded(t.Description, query)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func comparator(sort domain.Sort) func(a, b Task) int {
	switch sort {
	case domain.SortPriority:
		return func(a, b Task) int { return a.Priority.Rank() - b.Priority.Rank() }
	case domain.SortCategory:
		return func(a, b Task) int {
			return strings.Compare(textnorm.Fold(a.Category.Label()), textnorm.Fold(b.Category.Label()))
		}
	case domain.SortAlphabetical:
		return func(a, b Task) int { return strings.Compare(textnorm.Fold(a.Title), textnorm.Fold(b.Title)) }
	default:
		return func(a, b Task) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
}

// Stats summarizes the whole list.
type Stats struct {
	Total          int `json:"total"`
	Active         int `json:"active"`
	Completed      int `json:"completed"`
	HighPriority   int `json:"highPriority"`
	CompletionRate int `json:"completionRate"`
}

// ComputeStats counts list. HighPriority only counts active tasks and
// CompletionRate is a rounded percentage.
func ComputeStats(list []Task) Stats {
	completed := lo.CountBy(list, func(t Task) bool { return t.Completed })
	stats := Stats{
		Total:     len(list),
		Completed: completed,
		Active:    len(list) - completed,
		HighPriority: lo.CountBy(list, func(t Task) bool {
			return !t.Completed && t.Priority == domain.PriorityHigh
		}),
	}
	if stats.Total > 0 {
		stats.CompletionRate = int(math.Round(float64(completed) * 100 / float64(stats.Total)))
	}
	return stats
}

// ParseView overrides current with the given names. Blank filter or sort
// keep the current value; search always replaces it.
func ParseView(current View, filter, sort, search string) (View, error) {
	view := current
	if filter != "" {
		f, ok := domain.ParseFilter(filter)
		if !ok {
			return View{}, fmt.Errorf("unknown filter %q", filter)
		}
		view.Filter = f
	}
	if sort != "" {
		s, ok := domain.ParseSort(sort)
		if !ok {
			return View{}, fmt.Errorf("unknown sort %q", sort)
		}
		view.Sort = s
	}
	view.Search = strings.TrimSpace(search)
	return view, nil
}
