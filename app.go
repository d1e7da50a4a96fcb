package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"ergovoice/internal/bootstrap"
	"ergovoice/internal/config"
	"ergovoice/internal/domain"
	"ergovoice/internal/presenter"
	"ergovoice/internal/tasks"
	"ergovoice/internal/usecase"
)

const (
	eventDialog     = "ergovoice:dialog"
	eventListening  = "ergovoice:listening"
	eventTranscript = "ergovoice:transcript"
	eventError      = "ergovoice:error"
	eventTasks      = "ergovoice:tasks"
)

var errNotInitialized = errors.New("application is not initialized")

// App is the Wails application root.
type App struct {
	ctx  context.Context
	opts bootstrap.Options

	bridge   *webviewBridge
	emit     emitFunc
	services *bootstrap.Services
	cfg      *config.Config
	bootErr  error
}

func NewApp(opts bootstrap.Options) *App {
	return &App{opts: opts, bridge: newWebviewBridge()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.emit = func(name string, data any) { runtime.EventsEmit(ctx, name, data) }
	a.bridge.setEmitter(a.emit)

	opts := a.opts
	opts.Events = a
	opts.TaskEvents = a
	opts.WebRecognizer = a.bridge.factory
	opts.WebSpeech = a.bridge

	services, err := bootstrap.Build(ctx, opts)
	if err != nil {
		a.bootErr = err
		a.DialogError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.bridge.configure(a.cfg.Recognizer.Locale, a.cfg.Recognizer.Alternatives)
	a.DialogStateChanged(services.Dialog.Status(), domain.DialogReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.services != nil {
		_ = a.services.Close()
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return errNotInitialized
	}
	return nil
}

// GetStatus returns the current dialog snapshot.
func (a *App) GetStatus() domain.DialogStatus {
	if a.services == nil {
		return domain.DialogStatus{State: domain.DialogStateIdle}
	}
	return a.services.Dialog.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.cfg == nil {
		return map[string]string{}
	}
	return map[string]string{
		"recognizer": a.cfg.Recognizer.Provider,
		"locale":     a.cfg.Recognizer.Locale,
		"speech":     a.cfg.Speech.Provider,
		"storage":    a.cfg.Storage.Driver,
		"rulesFile":  a.cfg.Rules.Path,
	}
}

// SetListening turns the microphone on or off.
func (a *App) SetListening(on bool) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Dialog.SetListening(on)
	return nil
}

// BeginDialog starts capturing a task with the given title.
func (a *App) BeginDialog(title string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Dialog.BeginDialog(title)
}

// ConfirmHeard accepts the pending transcript for the current field.
func (a *App) ConfirmHeard() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Dialog.ConfirmHeard()
	return nil
}

// CancelDialog abandons the current dialog.
func (a *App) CancelDialog() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Dialog.Cancel()
	return nil
}

// RecognitionResult is called by the frontend for every speech result.
func (a *App) RecognitionResult(text string, isFinal bool) {
	a.bridge.result(text, isFinal)
}

// RecognitionError is called by the frontend with the browser error name.
func (a *App) RecognitionError(name string, detail string) {
	a.bridge.recognitionError(name, detail)
}

// RecognitionEnded is called by the frontend when a recognition stream ends.
func (a *App) RecognitionEnded() {
	a.bridge.ended()
}

// SpeechDone is called by the frontend when utterance id ended or failed.
func (a *App) SpeechDone(id string) {
	a.bridge.speechDone(id)
}

// ExecuteCommand classifies and applies a typed or spoken command.
func (a *App) ExecuteCommand(utterance string) (usecase.Outcome, error) {
	if err := a.requireReady(); err != nil {
		return usecase.Outcome{}, err
	}
	return a.services.Commands.Execute(a.ctx, utterance)
}

// ListTasks returns the tasks of the current view.
func (a *App) ListTasks() ([]tasks.Task, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Commands.Visible(a.ctx)
}

// GetStats summarizes every stored task.
func (a *App) GetStats() (tasks.Stats, error) {
	if err := a.requireReady(); err != nil {
		return tasks.Stats{}, err
	}
	return a.services.Commands.Stats(a.ctx)
}

// GetView returns the current filter, sort and search.
func (a *App) GetView() (tasks.View, error) {
	if err := a.requireReady(); err != nil {
		return tasks.View{}, err
	}
	return a.services.Commands.View(), nil
}

// SetView replaces the list view. Blank filter or sort keep the current one.
func (a *App) SetView(filter, sort, search string) (tasks.View, error) {
	if err := a.requireReady(); err != nil {
		return tasks.View{}, err
	}
	view, err := tasks.ParseView(a.services.Commands.View(), filter, sort, search)
	if err != nil {
		return tasks.View{}, err
	}
	a.services.Commands.SetView(view)
	return view, nil
}

// AddTask stores a task typed into the form.
func (a *App) AddTask(title, category, priority string) (tasks.Task, error) {
	if err := a.requireReady(); err != nil {
		return tasks.Task{}, err
	}
	cmd, err := parseTaskCommand(title, category, priority)
	if err != nil {
		return tasks.Task{}, err
	}
	return a.services.Commands.AddTask(a.ctx, cmd)
}

// ToggleTask flips the completion of one task.
func (a *App) ToggleTask(id string) (tasks.Task, error) {
	if err := a.requireReady(); err != nil {
		return tasks.Task{}, err
	}
	return a.services.Commands.Toggle(a.ctx, id)
}

// TaskPatch is the editable part of a task as sent by the frontend.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
}

// UpdateTask applies an edit made in the task form.
func (a *App) UpdateTask(id string, patch TaskPatch) (tasks.Task, error) {
	if err := a.requireReady(); err != nil {
		return tasks.Task{}, err
	}
	update, err := patch.update()
	if err != nil {
		return tasks.Task{}, err
	}
	return a.services.Commands.Update(a.ctx, id, update)
}

// DeleteTask removes one task.
func (a *App) DeleteTask(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Commands.Delete(a.ctx, id)
}

// DialogStateChanged emits dialog updates to the frontend.
func (a *App) DialogStateChanged(status domain.DialogStatus, reason domain.DialogReason) {
	a.send(eventDialog, map[string]any{
		"status":  status,
		"reason":  string(reason),
		"message": presenter.DialogMessage(status, reason),
	})
}

// ListeningChanged emits the microphone toggle.
func (a *App) ListeningChanged(listening bool) {
	a.send(eventListening, map[string]bool{"listening": listening})
}

// Transcript emits recognized text.
func (a *App) Transcript(text string, isFinal bool) {
	a.send(eventTranscript, map[string]any{"text": text, "isFinal": isFinal})
}

// DialogError emits environment errors to the UI.
func (a *App) DialogError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": presenter.ErrorMessage(code, detail),
		"detail":  detail,
	})
}

// TasksChanged tells the UI to reload the list.
func (a *App) TasksChanged(message string) {
	a.send(eventTasks, map[string]string{"message": message})
}

func (a *App) send(name string, data any) {
	if a.emit == nil {
		return
	}
	a.emit(name, data)
}

func parseTaskCommand(title, category, priority string) (domain.TaskCommand, error) {
	cmd := domain.TaskCommand{
		Title:    strings.TrimSpace(title),
		Category: domain.CategoryPersonal,
		Priority: domain.PriorityMedium,
	}
	if cmd.Title == "" {
		return domain.TaskCommand{}, tasks.ErrEmptyTitle
	}
	if category != "" {
		c, ok := domain.ParseCategory(category)
		if !ok {
			return domain.TaskCommand{}, fmt.Errorf("unknown category %q", category)
		}
		cmd.Category = c
	}
	if priority != "" {
		p, ok := domain.ParsePriority(priority)
		if !ok {
			return domain.TaskCommand{}, fmt.Errorf("unknown priority %q", priority)
		}
		cmd.Priority = p
	}
	return cmd, nil
}

// update converts the patch. An empty dueDate clears it; otherwise it is a
// YYYY-MM-DD day in local time.
func (p TaskPatch) update() (tasks.Update, error) {
	update := tasks.Update{Title: p.Title, Description: p.Description}
	if p.Category != nil {
		c, ok := domain.ParseCategory(*p.Category)
		if !ok {
			return tasks.Update{}, fmt.Errorf("unknown category %q", *p.Category)
		}
		update.Category = &c
	}
	if p.Priority != nil {
		pr, ok := domain.ParsePriority(*p.Priority)
		if !ok {
			return tasks.Update{}, fmt.Errorf("unknown priority %q", *p.Priority)
		}
		update.Priority = &pr
	}
	if p.DueDate != nil {
		raw := strings.TrimSpace(*p.DueDate)
		if raw == "" {
			update.ClearDue = true
		} else {
			due, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
			if err != nil {
				return tasks.Update{}, fmt.Errorf("parse due date: %w", err)
			}
			update.DueDate = &due
		}
	}
	return update, nil
}
