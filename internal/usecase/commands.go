package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"ergovoice/internal/classifier"
	"ergovoice/internal/clock"
	"ergovoice/internal/domain"
	"ergovoice/internal/logging"
	"ergovoice/internal/ports"
	"ergovoice/internal/tasks"
	"ergovoice/internal/textnorm"
)

var (
	ErrEmptyQuery  = errors.New("toggle query is empty")
	ErrNoTaskStore = errors.New("task store is required")
)

// Outcome reports what a spoken command did.
type Outcome struct {
	Intent  classifier.Intent `json:"intent"`
	Applied bool              `json:"applied"`
	Message string            `json:"message"`
	Task    *tasks.Task       `json:"task,omitempty"`
	Removed int               `json:"removed,omitempty"`
	View    tasks.View        `json:"view"`
}

// CommandService applies single-shot voice commands and finished capture
// dialogs to the task store. It also owns the current list view.
type CommandService struct {
	store      tasks.Store
	rules      ports.RulesEngine
	classifier *classifier.Classifier
	clock      clock.Clock
	notify     ports.TaskEventSink
	logger     zerolog.Logger

	mu   sync.Mutex
	view tasks.View
}

// NewCommandService builds a service over store. rules, clk and notify may
// be nil.
func NewCommandService(store tasks.Store, rules ports.RulesEngine, clk clock.Clock, notify ports.TaskEventSink) (*CommandService, error) {
	if store == nil {
		return nil, ErrNoTaskStore
	}
	if rules == nil {
		rules = identityRules{}
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &CommandService{
		store:      store,
		rules:      rules,
		classifier: classifier.New(),
		clock:      clk,
		notify:     notify,
		logger:     logging.Component("commands"),
		view:       tasks.DefaultView(),
	}, nil
}

// View returns the current list view.
func (s *CommandService) View() tasks.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetView replaces the current list view.
func (s *CommandService) SetView(view tasks.View) {
	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
	s.changed("")
}

// Visible lists the tasks matching the current view.
func (s *CommandService) Visible(ctx context.Context) ([]tasks.Task, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return s.View().Apply(list, s.clock.Now()), nil
}

// Stats summarizes every stored task.
func (s *CommandService) Stats(ctx context.Context) (tasks.Stats, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return tasks.Stats{}, fmt.Errorf("list tasks: %w", err)
	}
	return tasks.ComputeStats(list), nil
}

// CreateTask implements ports.TaskSink.
func (s *CommandService) CreateTask(ctx context.Context, cmd domain.TaskCommand) error {
	_, err := s.AddTask(ctx, cmd)
	return err
}

// AddTask stores a new task and returns it.
func (s *CommandService) AddTask(ctx context.Context, cmd domain.TaskCommand) (tasks.Task, error) {
	task, err := tasks.FromCommand(cmd, s.clock.Now())
	if err != nil {
		return tasks.Task{}, err
	}
	if err := s.store.Add(ctx, task); err != nil {
		return tasks.Task{}, fmt.Errorf("add task: %w", err)
	}
	message := fmt.Sprintf("Tâche ajoutée : %q (%s, priorité %s)", task.Title, task.Category.Label(), task.Priority.Label())
	s.logger.Info().Str("id", task.ID).Str("title", task.Title).Msg("task added")
	s.changed(message)
	return task, nil
}

// Toggle flips the completion flag of the task with id.
func (s *CommandService) Toggle(ctx context.Context, id string) (tasks.Task, error) {
	task, err := tasks.Toggle(ctx, s.store, id)
	if err != nil {
		return tasks.Task{}, err
	}
	s.changed("")
	return task, nil
}

// Update changes the task with id.
func (s *CommandService) Update(ctx context.Context, id string, update tasks.Update) (tasks.Task, error) {
	task, err := s.store.Update(ctx, id, update)
	if err != nil {
		return tasks.Task{}, err
	}
	s.changed("")
	return task, nil
}

// Delete removes the task with id.
func (s *CommandService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.changed("")
	return nil
}

// Classify maps utterance to an intent after applying substitution rules.
func (s *CommandService) Classify(utterance string) classifier.Intent {
	return s.classifier.Classify(s.rules.Apply(utterance))
}

// Execute classifies utterance and applies the resulting action. An
// unrecognized utterance is not an error; Outcome.Applied tells whether
// anything changed.
func (s *CommandService) Execute(ctx context.Context, utterance string) (Outcome, error) {
	intent := s.Classify(utterance)
	outcome := Outcome{Intent: intent}

	var err error
	switch intent.Kind {
	case classifier.IntentToggleMatchingTask:
		err = s.toggleMatching(ctx, intent.Query, &outcome)
	case classifier.IntentDeleteAllCompleted:
		err = s.deleteCompleted(ctx, &outcome)
	case classifier.IntentSetFilter:
		s.mu.Lock()
		s.view.Filter = intent.Filter
		s.mu.Unlock()
		outcome.Applied = true
		outcome.Message = filterMessage(intent.Filter)
	case classifier.IntentSetSort:
		s.mu.Lock()
		s.view.Sort = intent.Sort
		s.mu.Unlock()
		outcome.Applied = true
		outcome.Message = sortMessage(intent.Sort)
	default:
		outcome.Message = "Commande non reconnue"
	}
	outcome.View = s.View()

	s.logger.Info().
		Str("utterance", utterance).
		Str("intent", string(intent.Kind)).
		Bool("applied", outcome.Applied).
		Msg(outcome.Message)
	if err != nil {
		return outcome, err
	}
	if outcome.Applied {
		s.changed(outcome.Message)
	}
	return outcome, nil
}

// CompleteMatching completes the first unfinished task whose title
// contains query, ignoring case and accents.
func (s *CommandService) CompleteMatching(ctx context.Context, query string) (tasks.Task, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return tasks.Task{}, ErrEmptyQuery
	}
	list, err := s.store.List(ctx)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("list tasks: %w", err)
	}
	match, ok := lo.Find(list, func(t tasks.Task) bool {
		return !t.Completed && textnorm.ContainsFolded(t.Title, query)
	})
	if !ok {
		return tasks.Task{}, tasks.ErrNotFound
	}
	completed := true
	updated, err := s.store.Update(ctx, match.ID, tasks.Update{Completed: &completed})
	if err != nil {
		return tasks.Task{}, fmt.Errorf("complete task: %w", err)
	}
	return updated, nil
}

func (s *CommandService) toggleMatching(ctx context.Context, query string, outcome *Outcome) error {
	task, err := s.CompleteMatching(ctx, query)
	switch {
	case errors.Is(err, ErrEmptyQuery), errors.Is(err, tasks.ErrNotFound):
		outcome.Message = fmt.Sprintf("Aucune tâche trouvée contenant %q", strings.TrimSpace(query))
		return nil
	case err != nil:
		return err
	}
	outcome.Applied = true
	outcome.Task = &task
	outcome.Message = fmt.Sprintf("Tâche cochée : %q", task.Title)
	return nil
}

func (s *CommandService) deleteCompleted(ctx context.Context, outcome *Outcome) error {
	removed, err := s.store.DeleteCompleted(ctx)
	if err != nil {
		return fmt.Errorf("delete completed tasks: %w", err)
	}
	outcome.Removed = removed
	if removed == 0 {
		outcome.Message = "Aucune tâche terminée à supprimer"
		return nil
	}
	outcome.Applied = true
	outcome.Message = fmt.Sprintf("%d tâche(s) terminée(s) supprimée(s)", removed)
	return nil
}

func (s *CommandService) changed(message string) {
	if s.notify != nil {
		s.notify.TasksChanged(message)
	}
}

func filterMessage(filter domain.Filter) string {
	switch filter {
	case domain.FilterToday:
		return "Affichage : tâches du jour"
	case domain.FilterCompleted:
		return "Affichage : tâches terminées"
	case domain.FilterActive:
		return "Affichage : tâches en cours"
	default:
		return "Affichage : toutes les tâches"
	}
}

func sortMessage(sort domain.Sort) string {
	switch sort {
	case domain.SortPriority:
		return "Tri par priorité"
	case domain.SortCategory:
		return "Tri par catégorie"
	case domain.SortDate:
		return "Tri par date"
	default:
		return "Tri alphabétique"
	}
}
