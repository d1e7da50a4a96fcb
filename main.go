package main

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"ergovoice/internal/bootstrap"
	"ergovoice/internal/commands"
	"ergovoice/internal/config"
	"ergovoice/internal/logging"
)

//go:embed all:frontend/dist
var assets embed.FS

// Populated at build time via -ldflags.
var (
	version = "dev"
	commit  = "HEAD"
)

func build() string {
	v, c := version, commit
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					c = s.Value
				}
			}
		}
	}
	if len(c) > 7 {
		c = c[:7]
	}
	return fmt.Sprintf("%s (%s)", v, c)
}

func main() {
	var logCloser func()
	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "ergovoice",
		Usage:     "Voice-driven French to-do list",
		UsageText: "ergovoice [global options] command [command options]",
		Description: `Dictate tasks in French: say the title, then answer the priority and
category questions. Single-shot commands such as "coche le pain" or
"trie par priorité" act on the list directly.

Run 'ergovoice' with no arguments to open the desktop app.
Run 'ergovoice listen' for the same dialog in a terminal.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal)",
				Sources:     cli.EnvVars("ERGOVOICE_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/ergovoice.log)",
				Sources:     cli.EnvVars("ERGOVOICE_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file (defaults to <data-dir>/config.yaml)",
				Sources:     cli.EnvVars("ERGOVOICE_CONFIG"),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("ERGOVOICE_HOME"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if flags.ConfigPath == "" {
				flags.ConfigPath = config.DefaultConfigPath(flags.DataDir)
			}
			level, logFile := flags.LogLevel, flags.LogFile
			if cfg, err := bootstrap.LoadConfig(flags.Options()); err == nil {
				if !c.IsSet("log-level") {
					level = cfg.Log.Level
				}
				if logFile == "" {
					logFile = cfg.Log.File
				}
			}
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "ergovoice.log")
			}

			logger, closer, err := logging.New(level, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	ui := &cli.Command{
		Name:   "ui",
		Usage:  "Open the desktop app",
		Action: func(ctx context.Context, c *cli.Command) error { return runUI(flags) },
	}
	app.Commands = append(app.Commands, ui)
	app = commands.NewListenCmd(flags).Register(app)
	app = commands.NewTasksCmd(flags).Register(app)

	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'ergovoice --help' for usage", c.Args().First())
		}
		return runUI(flags)
	}

	exitCode := 0
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		exitCode = 1
	}
	os.Exit(exitCode)
}

func runUI(flags *commands.Flags) error {
	app := NewApp(flags.Options())
	return wails.Run(&options.App{
		Title:     "ErgoVoice",
		Width:     960,
		Height:    720,
		MinWidth:  420,
		MinHeight: 520,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
}
