// Package tasks holds the to-do list model, its stores and the list view
// (filter, search, sort and stats) shown by the UI and the CLI.
package tasks

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"ergovoice/internal/domain"
)

// ErrNotFound is returned when no task carries the requested id.
var ErrNotFound = errors.New("task not found")

// ErrEmptyTitle is returned when a task would be stored without a title.
var ErrEmptyTitle = errors.New("task title is empty")

// Task is one entry of the to-do list.
type Task struct {
	ID          string          `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description,omitempty" db:"description"`
	Completed   bool            `json:"completed" db:"completed"`
	Category    domain.Category `json:"category" db:"category"`
	Priority    domain.Priority `json:"priority" db:"priority"`
	DueDate     *time.Time      `json:"dueDate,omitempty" db:"due_date"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

// NewTask builds a task with a fresh id. Missing category and priority
// default to Personal and Medium.
func NewTask(title string, category domain.Category, priority domain.Priority, now time.Time) (Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, ErrEmptyTitle
	}
	if category == "" {
		category = domain.CategoryPersonal
	}
	if priority == "" {
		priority = domain.PriorityMedium
	}
	return Task{
		ID:        uuid.NewString(),
		Title:     title,
		Category:  category,
		Priority:  priority,
		CreatedAt: now.UTC(),
	}, nil
}

// FromCommand builds a task from a finished capture dialog.
func FromCommand(cmd domain.TaskCommand, now time.Time) (Task, error) {
	return NewTask(cmd.Title, cmd.Category, cmd.Priority, now)
}

// Update holds optional field changes; nil fields are left alone.
type Update struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Completed   *bool            `json:"completed,omitempty"`
	Category    *domain.Category `json:"category,omitempty"`
	Priority    *domain.Priority `json:"priority,omitempty"`
	DueDate     *time.Time       `json:"dueDate,omitempty"`
	ClearDue    bool             `json:"clearDue,omitempty"`
}

// Apply returns t with the update's fields set.
func (u Update) Apply(t Task) (Task, error) {
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return t, ErrEmptyTitle
		}
		t.Title = title
	}
	if u.Description != nil {
		t.Description = strings.TrimSpace(*u.Description)
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	switch {
	case u.ClearDue:
		t.DueDate = nil
	case u.DueDate != nil:
		due := u.DueDate.UTC()
		t.DueDate = &due
	}
	return t, nil
}

// Store persists tasks. List returns tasks newest first.
type Store interface {
	List(ctx context.Context) ([]Task, error)
	Get(ctx context.Context, id string) (Task, error)
	Add(ctx context.Context, task Task) error
	Update(ctx context.Context, id string, update Update) (Task, error)
	Delete(ctx context.Context, id string) error
	DeleteCompleted(ctx context.Context) (int, error)
}

// Toggle flips the completion flag of the task with id.
func Toggle(ctx context.Context, store Store, id string) (Task, error) {
	task, err := store.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	completed := !task.Completed
	return store.Update(ctx, id, Update{Completed: &completed})
}
