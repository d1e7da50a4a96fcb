package tasks

import (
	"context"
	"sync"

	"github.com/samber/lo"
)

// MemoryStore keeps tasks in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks []Task
}

// NewMemoryStore returns a store seeded with tasks, kept in the given order.
func NewMemoryStore(seed ...Task) *MemoryStore {
	return &MemoryStore{tasks: append([]Task(nil), seed...)}
}

func (s *MemoryStore) List(_ context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Task(nil), s.tasks...), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := lo.Find(s.tasks, func(t Task) bool { return t.ID == id })
	if !ok {
		return Task{}, ErrNotFound
	}
	return task, nil
}

func (s *MemoryStore) Add(_ context.Context, task Task) error {
	if task.Title == "" {
		return ErrEmptyTitle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append([]Task{task}, s.tasks...)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, update Update) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, index, ok := lo.FindIndexOf(s.tasks, func(t Task) bool { return t.ID == id })
	if !ok {
		return Task{}, ErrNotFound
	}
	updated, err := update.Apply(s.tasks[index])
	if err != nil {
		return Task{}, err
	}
	s.tasks[index] = updated
	return updated, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := lo.Reject(s.tasks, func(t Task, _ int) bool { return t.ID == id })
	if len(kept) == len(s.tasks) {
		return ErrNotFound
	}
	s.tasks = kept
	return nil
}

func (s *MemoryStore) DeleteCompleted(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := lo.Reject(s.tasks, func(t Task, _ int) bool { return t.Completed })
	removed := len(s.tasks) - len(kept)
	s.tasks = kept
	return removed, nil
}
