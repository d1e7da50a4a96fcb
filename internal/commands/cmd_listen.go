package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"ergovoice/internal/bootstrap"
	"ergovoice/internal/domain"
	"ergovoice/internal/usecase"
)

// ListenCmd implements the headless voice loop.
type ListenCmd struct {
	flags *Flags

	recognizer string
	settle     time.Duration
}

// NewListenCmd creates a new listen command.
func NewListenCmd(flags *Flags) *ListenCmd {
	return &ListenCmd{flags: flags}
}

// Register adds the listen command to the application.
func (cmd *ListenCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "listen",
		Usage:     "Run the voice dialog in the terminal",
		UsageText: "ergovoice listen [--recognizer <provider>]",
		Description: `Listens continuously. A final utterance heard while no dialog runs is
executed when it is a command ("coche le pain", "affiche les tâches du jour")
and otherwise becomes the title of a new task; the dialog then asks for the
priority and the category.

With the console recognizer every line read from stdin is one utterance:

  printf 'acheter du pain\nhaute\ntravail\n' | ergovoice listen`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "recognizer",
				Aliases:     []string{"r"},
				Usage:       "recognizer provider (console, deepgram)",
				Destination: &cmd.recognizer,
			},
			&cli.DurationFlag{
				Name:        "settle-timeout",
				Usage:       "how long to wait for a running dialog after stdin ends",
				Value:       15 * time.Second,
				Destination: &cmd.settle,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ListenCmd) run(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := newPrinter(cmd.flags.stdout())
	opts := cmd.flags.Options()
	opts.Events = out
	opts.TaskEvents = out
	opts.AutoBegin = true
	opts.Headless = true
	opts.Recognizer = cmd.recognizer

	services, err := bootstrap.Build(ctx, opts)
	if err != nil {
		return fmt.Errorf("start voice dialog: %w", err)
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Error().Err(err).Msg("close services")
		}
	}()

	log.Info().Str("recognizer", services.Config.Recognizer.Provider).Msg("listening")
	services.Dialog.SetListening(true)

	var eof <-chan struct{}
	if services.Lines != nil {
		eof = services.Lines.Done()
	}
	select {
	case <-ctx.Done():
	case <-eof:
		waitSettled(ctx, services.Router, services.Dialog, cmd.settle)
	}
	return nil
}

// waitSettled returns once no dialog is running, or after timeout. The last
// line read may still be on its way to the controller, so it checks only
// after the first tick.
func waitSettled(ctx context.Context, router *usecase.Router, dialog *usecase.DialogController, timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			log.Warn().Str("state", string(dialog.Status().State)).Msg("dialog still running at exit")
			return
		case <-tick.C:
		}
		router.Wait()
		status := dialog.Status()
		if !status.Transitioning && (status.State == domain.DialogStateIdle || status.State == domain.DialogStateCapturingTitle) {
			return
		}
	}
}
