package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ergovoice/internal/classifier"
	"ergovoice/internal/clock"
	"ergovoice/internal/domain"
	"ergovoice/internal/tasks"
)

type fakeTaskEvents struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeTaskEvents) TasksChanged(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
}

func (f *fakeTaskEvents) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type failingStore struct {
	tasks.Store
	err error
}

func (f failingStore) List(context.Context) ([]tasks.Task, error) { return nil, f.err }
func (f failingStore) DeleteCompleted(context.Context) (int, error) {
	return 0, f.err
}

var commandNow = time.Date(2025, 10, 6, 9, 0, 0, 0, time.UTC)

func seedTask(t *testing.T, title string, category domain.Category, priority domain.Priority, completed bool) tasks.Task {
	t.Helper()
	task, err := tasks.NewTask(title, category, priority, commandNow)
	require.NoError(t, err)
	task.Completed = completed
	return task
}

func newCommandHarness(t *testing.T, seed ...tasks.Task) (*CommandService, *tasks.MemoryStore, *fakeTaskEvents) {
	t.Helper()
	store := tasks.NewMemoryStore(seed...)
	events := &fakeTaskEvents{}
	svc, err := NewCommandService(store, nil, clock.NewFake(commandNow), events)
	require.NoError(t, err)
	return svc, store, events
}

func TestExecuteTogglesFirstMatchingTask(t *testing.T) {
	t.Parallel()

	exam := seedTask(t, "Réviser pour l'examen de mathématiques", domain.CategoryStudy, domain.PriorityHigh, false)
	bread := seedTask(t, "Acheter du pain", domain.CategoryPersonal, domain.PriorityMedium, false)
	svc, store, events := newCommandHarness(t, exam, bread)

	outcome, err := svc.Execute(context.Background(), "Coche réviser")
	require.NoError(t, err)
	assert.True(t, outcome.Applied)
	assert.Equal(t, classifier.IntentToggleMatchingTask, outcome.Intent.Kind)
	assert.Equal(t, `Tâche cochée : "Réviser pour l'examen de mathématiques"`, outcome.Message)
	require.NotNil(t, outcome.Task)
	assert.Equal(t, exam.ID, outcome.Task.ID)

	stored, err := store.Get(context.Background(), exam.ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed)
	assert.Equal(t, []string{outcome.Message}, events.snapshot())

	outcome, err = svc.Execute(context.Background(), "coche reviser")
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, `Aucune tâche trouvée contenant "reviser"`, outcome.Message)
}

func TestExecuteToggleWithoutQuery(t *testing.T) {
	t.Parallel()

	svc, _, events := newCommandHarness(t, seedTask(t, "Acheter du pain", domain.CategoryPersonal, domain.PriorityMedium, false))

	outcome, err := svc.Execute(context.Background(), "coche la tâche")
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, `Aucune tâche trouvée contenant ""`, outcome.Message)
	assert.Empty(t, events.snapshot())

	_, err = svc.CompleteMatching(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestExecuteDeletesCompletedTasks(t *testing.T) {
	t.Parallel()

	svc, store, _ := newCommandHarness(t,
		seedTask(t, "Préparer la présentation client", domain.CategoryWork, domain.PriorityHigh, true),
		seedTask(t, "Faire du sport", domain.CategoryPersonal, domain.PriorityLow, false),
		seedTask(t, "Répondre aux emails", domain.CategoryWork, domain.PriorityMedium, true),
	)

	outcome, err := svc.Execute(context.Background(), "Supprime les tâches terminées")
	require.NoError(t, err)
	assert.Equal(t, classifier.IntentDeleteAllCompleted, outcome.Intent.Kind)
	assert.True(t, outcome.Applied)
	assert.Equal(t, 2, outcome.Removed)
	assert.Equal(t, "2 tâche(s) terminée(s) supprimée(s)", outcome.Message)

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Faire du sport", list[0].Title)

	outcome, err = svc.Execute(context.Background(), "Supprime les tâches terminées")
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, "Aucune tâche terminée à supprimer", outcome.Message)
}

func TestExecuteChangesView(t *testing.T) {
	t.Parallel()

	svc, _, _ := newCommandHarness(t)
	cases := []struct {
		utterance string
		message   string
		view      tasks.View
	}{
		{"Affiche les tâches d'aujourd'hui", "Affichage : tâches du jour", tasks.View{Filter: domain.FilterToday, Sort: domain.SortDate}},
		{"Montre les tâches en cours", "Affichage : tâches en cours", tasks.View{Filter: domain.FilterActive, Sort: domain.SortDate}},
		{"Trie par priorité", "Tri par priorité", tasks.View{Filter: domain.FilterActive, Sort: domain.SortPriority}},
		{"Trier par ordre alphabétique", "Tri alphabétique", tasks.View{Filter: domain.FilterActive, Sort: domain.SortAlphabetical}},
		{"Affiche toutes les tâches", "Affichage : toutes les tâches", tasks.View{Filter: domain.FilterAll, Sort: domain.SortAlphabetical}},
	}
	for _, tc := range cases {
		outcome, err := svc.Execute(context.Background(), tc.utterance)
		require.NoError(t, err, tc.utterance)
		assert.True(t, outcome.Applied, tc.utterance)
		assert.Equal(t, tc.message, outcome.Message, tc.utterance)
		assert.Equal(t, tc.view, outcome.View, tc.utterance)
	}
	assert.Equal(t, tasks.View{Filter: domain.FilterAll, Sort: domain.SortAlphabetical}, svc.View())
}

func TestExecuteUnrecognized(t *testing.T) {
	t.Parallel()

	svc, _, events := newCommandHarness(t)
	outcome, err := svc.Execute(context.Background(), "quel temps fait-il")
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, "Commande non reconnue", outcome.Message)
	assert.Empty(t, events.snapshot())
}

func TestExecuteAppliesRulesBeforeClassifying(t *testing.T) {
	t.Parallel()

	store := tasks.NewMemoryStore()
	rules := &fakeRules{replace: map[string]string{"range par priorité": "trie par priorité"}}
	svc, err := NewCommandService(store, rules, clock.NewFake(commandNow), nil)
	require.NoError(t, err)

	outcome, err := svc.Execute(context.Background(), "range par priorité")
	require.NoError(t, err)
	assert.Equal(t, classifier.IntentSetSort, outcome.Intent.Kind)
	assert.Equal(t, domain.SortPriority, svc.View().Sort)
}

func TestExecuteReportsStoreFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	svc, err := NewCommandService(failingStore{err: boom}, nil, nil, nil)
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), "coche pain")
	assert.ErrorIs(t, err, boom)
	_, err = svc.Execute(context.Background(), "efface les tâches terminées")
	assert.ErrorIs(t, err, boom)
}

func TestCreateTaskFromDialog(t *testing.T) {
	t.Parallel()

	svc, store, events := newCommandHarness(t)
	require.NoError(t, svc.CreateTask(context.Background(), domain.TaskCommand{
		Title:    "Finir le rapport",
		Category: domain.CategoryWork,
		Priority: domain.PriorityHigh,
	}))

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Finir le rapport", list[0].Title)
	assert.Equal(t, commandNow, list[0].CreatedAt)
	assert.Equal(t, []string{`Tâche ajoutée : "Finir le rapport" (Travail, priorité Haute)`}, events.snapshot())

	assert.ErrorIs(t, svc.CreateTask(context.Background(), domain.TaskCommand{Title: " "}), tasks.ErrEmptyTitle)

	_, err = NewCommandService(nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoTaskStore)
}

func TestVisibleAndStatsFollowView(t *testing.T) {
	t.Parallel()

	svc, _, _ := newCommandHarness(t,
		seedTask(t, "Finir le rapport", domain.CategoryWork, domain.PriorityHigh, false),
		seedTask(t, "Répondre aux emails", domain.CategoryWork, domain.PriorityMedium, true),
	)
	svc.SetView(tasks.View{Filter: domain.FilterCompleted, Sort: domain.SortDate})

	visible, err := svc.Visible(context.Background())
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "Répondre aux emails", visible[0].Title)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tasks.Stats{Total: 2, Active: 1, Completed: 1, HighPriority: 1, CompletionRate: 50}, stats)
}
