package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"ergovoice/internal/bootstrap"
	"ergovoice/internal/tasks"
)

// TasksCmd implements the classify, do and tasks commands, which work on
// the task store without a microphone.
type TasksCmd struct {
	flags *Flags

	filter string
	sort   string
	search string
	json   bool
}

// NewTasksCmd creates the task commands.
func NewTasksCmd(flags *Flags) *TasksCmd {
	return &TasksCmd{flags: flags}
}

// Register adds the task commands to the application.
func (cmd *TasksCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "classify",
			Usage:     "Show which command an utterance maps to",
			UsageText: "ergovoice classify <utterance>",
			Description: `Prints the intent as JSON without changing anything.

Examples:
  ergovoice classify "coche réviser"
  ergovoice classify "trie par priorité"`,
			Action: cmd.runClassify,
		},
		&cli.Command{
			Name:      "do",
			Usage:     "Apply a spoken command to the task list",
			UsageText: "ergovoice do <utterance>",
			Description: `Classifies the utterance and applies it.

Examples:
  ergovoice do "coche réviser"
  ergovoice do "supprime les tâches terminées"`,
			Action: cmd.runDo,
		},
		&cli.Command{
			Name:      "tasks",
			Aliases:   []string{"ls"},
			Usage:     "List tasks",
			UsageText: "ergovoice tasks [--filter <filter>] [--sort <sort>] [--search <text>] [--json]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "filter",
					Aliases:     []string{"f"},
					Usage:       "all, active, completed or today",
					Destination: &cmd.filter,
				},
				&cli.StringFlag{
					Name:        "sort",
					Aliases:     []string{"s"},
					Usage:       "date, priority, category or alphabetical",
					Destination: &cmd.sort,
				},
				&cli.StringFlag{
					Name:        "search",
					Aliases:     []string{"q"},
					Usage:       "accent-insensitive text in the title or description",
					Destination: &cmd.search,
				},
				&cli.BoolFlag{
					Name:        "json",
					Usage:       "print one JSON object per task",
					Destination: &cmd.json,
				},
			},
			Action: cmd.runList,
		},
	)
	return app
}

func utterance(c *cli.Command) (string, error) {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return "", fmt.Errorf("missing utterance")
	}
	return text, nil
}

func (cmd *TasksCmd) open(ctx context.Context) (*bootstrap.Services, error) {
	opts := cmd.flags.Options()
	opts.TaskEvents = newPrinter(cmd.flags.stdout())
	services, err := bootstrap.BuildCommands(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open tasks: %w", err)
	}
	return services, nil
}

func closeServices(services *bootstrap.Services) {
	if err := services.Close(); err != nil {
		log.Error().Err(err).Msg("close services")
	}
}

func (cmd *TasksCmd) runClassify(ctx context.Context, c *cli.Command) error {
	text, err := utterance(c)
	if err != nil {
		return err
	}
	services, err := cmd.open(ctx)
	if err != nil {
		return err
	}
	defer closeServices(services)

	return writeJSON(cmd.flags.stdout(), services.Commands.Classify(text))
}

func (cmd *TasksCmd) runDo(ctx context.Context, c *cli.Command) error {
	text, err := utterance(c)
	if err != nil {
		return err
	}
	services, err := cmd.open(ctx)
	if err != nil {
		return err
	}
	defer closeServices(services)

	outcome, err := services.Commands.Execute(ctx, text)
	if err != nil {
		return err
	}
	if !outcome.Applied {
		_, err = fmt.Fprintln(cmd.flags.stdout(), outcome.Message)
	}
	return err
}

func (cmd *TasksCmd) runList(ctx context.Context, _ *cli.Command) error {
	services, err := cmd.open(ctx)
	if err != nil {
		return err
	}
	defer closeServices(services)

	view, err := tasks.ParseView(services.Commands.View(), cmd.filter, cmd.sort, cmd.search)
	if err != nil {
		return err
	}
	services.Commands.SetView(view)

	list, err := services.Commands.Visible(ctx)
	if err != nil {
		return err
	}
	out := cmd.flags.stdout()
	if cmd.json {
		for _, task := range list {
			if err := writeJSON(out, task); err != nil {
				return err
			}
		}
		return nil
	}

	for _, task := range list {
		if _, err := fmt.Fprintln(out, formatTask(task)); err != nil {
			return err
		}
	}
	stats, err := services.Commands.Stats(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%d tâche(s), %d en cours, %d terminée(s), %d%% accomplies\n",
		stats.Total, stats.Active, stats.Completed, stats.CompletionRate)
	return err
}

func formatTask(task tasks.Task) string {
	mark := "[ ]"
	if task.Completed {
		mark = "[x]"
	}
	line := fmt.Sprintf("%s %s  (%s, %s)", mark, task.Title, task.Category.Label(), task.Priority.Label())
	if task.DueDate != nil {
		line += "  échéance " + task.DueDate.Local().Format("02/01/2006")
	}
	return line
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
