package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"

	"ergovoice/internal/audio"
	"ergovoice/internal/clock"
	"ergovoice/internal/config"
	"ergovoice/internal/logging"
	"ergovoice/internal/ports"
	"ergovoice/internal/providers/console"
	"ergovoice/internal/providers/deepgram"
	"ergovoice/internal/providers/gtts"
	"ergovoice/internal/rules"
	"ergovoice/internal/storage/sqlite"
	"ergovoice/internal/tasks"
	"ergovoice/internal/usecase"
)

var (
	ErrNoWebRecognizer = errors.New("webview recognizer is only available in the desktop app")
	ErrNoWebSpeech     = errors.New("webview speech is only available in the desktop app")
)

// Options selects where configuration comes from and supplies the adapters
// only the caller can provide.
type Options struct {
	ConfigPath string
	DataDir    string
	Fs         afero.Fs

	Events     ports.DialogEventSink
	TaskEvents ports.TaskEventSink

	// WebRecognizer and WebSpeech back the "webview" providers.
	WebRecognizer ports.RecognizerFactory
	WebSpeech     ports.SpeechSink

	// Input and Output back the "console" providers.
	Input  io.Reader
	Output io.Writer

	// AutoBegin starts a capture dialog from any unrecognized final
	// utterance heard while idle.
	AutoBegin bool

	// Headless replaces the webview providers with console ones.
	Headless bool
	// Recognizer overrides recognizer.provider when set.
	Recognizer string

	Clock clock.Clock
}

// Services is the assembled runtime graph.
type Services struct {
	Config   *config.Config
	Rules    *rules.Engine
	Store    tasks.Store
	Commands *usecase.CommandService
	Dialog   *usecase.DialogController
	Router   *usecase.Router
	Lines    *console.Lines

	closers []func() error
}

// Close shuts the dialog down and releases the store.
func (s *Services) Close() error {
	if s.Dialog != nil {
		s.Dialog.Shutdown()
	}
	if s.Router != nil {
		s.Router.Wait()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// LoadConfig resolves the configuration for opts.
func LoadConfig(opts Options) (*config.Config, error) {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		var err error
		if dataDir, err = config.DefaultDataDir(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(fsys, opts.ConfigPath, dataDir)
	if err != nil {
		return nil, err
	}
	if opts.Recognizer != "" {
		cfg.Recognizer.Provider = strings.ToLower(opts.Recognizer)
	}
	if opts.Headless {
		if cfg.Recognizer.Provider == config.ProviderWebview {
			cfg.Recognizer.Provider = config.ProviderConsole
		}
		if cfg.Speech.Provider == config.ProviderWebview {
			cfg.Speech.Provider = config.ProviderConsole
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// BuildCommands wires configuration, rules, the task store and the command
// service. It needs no recognizer or speech output.
func BuildCommands(ctx context.Context, opts Options) (*Services, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	engine, err := rules.Load(fsys, cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return nil, err
	}

	services := &Services{Config: cfg, Rules: engine}
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	services.Store = store
	if closer, ok := store.(io.Closer); ok {
		services.closers = append(services.closers, closer.Close)
	}

	commands, err := usecase.NewCommandService(store, engine, opts.Clock, opts.TaskEvents)
	if err != nil {
		_ = services.Close()
		return nil, err
	}
	services.Commands = commands

	logging.Component("bootstrap").Info().
		Str("storage", cfg.Storage.Driver).
		Int("rules", len(engine.Rules())).
		Msg("command services ready")
	return services, nil
}

// Build wires every backend dependency for a voice session.
func Build(ctx context.Context, opts Options) (*Services, error) {
	services, err := BuildCommands(ctx, opts)
	if err != nil {
		return nil, err
	}
	cfg := services.Config

	recognizers, err := services.recognizerFactory(opts)
	if err != nil {
		_ = services.Close()
		return nil, err
	}
	speech, err := speechSink(cfg, opts)
	if err != nil {
		_ = services.Close()
		return nil, err
	}

	services.Router = usecase.NewRouter(ctx, services.Commands, opts.Events, opts.AutoBegin)
	dialog, err := usecase.NewDialogController(
		ctx,
		recognizers,
		speech,
		services.Commands,
		services.Rules,
		services.Router,
		opts.Clock,
		dialogConfig(cfg.Dialog),
	)
	if err != nil {
		_ = services.Close()
		return nil, err
	}
	services.Router.Bind(dialog)
	services.Dialog = dialog

	logging.Component("bootstrap").Info().
		Str("recognizer", cfg.Recognizer.Provider).
		Str("speech", cfg.Speech.Provider).
		Msg("dialog ready")
	return services, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (tasks.Store, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return tasks.NewMemoryStore(), nil
	case config.StorageSQLite:
		store, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open task store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func (s *Services) recognizerFactory(opts Options) (ports.RecognizerFactory, error) {
	cfg := s.Config
	switch cfg.Recognizer.Provider {
	case config.ProviderWebview:
		if opts.WebRecognizer == nil {
			return nil, ErrNoWebRecognizer
		}
		return opts.WebRecognizer, nil
	case config.ProviderConsole:
		input := opts.Input
		if input == nil {
			input = os.Stdin
		}
		s.Lines = console.NewLines(input)
		return s.Lines.Factory(), nil
	case config.ProviderDeepgram:
		provider := deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			SmartFormat: cfg.Deepgram.SmartFormat,
			Endpointing: cfg.Deepgram.Endpointing,
		})
		return usecase.NewStreamRecognizerFactory(
			audio.NewCapture(cfg.Audio.RecorderCommand),
			provider,
			opts.Clock,
			usecase.StreamConfig{
				Audio: ports.AudioConfig{
					SampleRate:  cfg.Audio.SampleRate,
					Channels:    cfg.Audio.Channels,
					InputFormat: cfg.Audio.InputFormat,
					InputDevice: cfg.Audio.InputDevice,
				},
				Streaming: ports.StreamingConfig{
					SampleRate:     cfg.Audio.SampleRate,
					Channels:       cfg.Audio.Channels,
					Encoding:       "linear16",
					Language:       cfg.StreamingLanguage(),
					InterimResults: true,
					Alternatives:   cfg.Recognizer.Alternatives,
				},
				ChunkSize:       cfg.Recognizer.ChunkSize,
				NoSpeechTimeout: cfg.Recognizer.NoSpeechTimeout,
				StreamGrace:     cfg.Recognizer.StreamingGrace,
			},
		), nil
	default:
		return nil, fmt.Errorf("unknown recognizer provider %q", cfg.Recognizer.Provider)
	}
}

func speechSink(cfg *config.Config, opts Options) (ports.SpeechSink, error) {
	switch cfg.Speech.Provider {
	case config.ProviderWebview:
		if opts.WebSpeech == nil {
			return nil, ErrNoWebSpeech
		}
		return opts.WebSpeech, nil
	case config.ProviderConsole:
		output := opts.Output
		if output == nil {
			output = os.Stdout
		}
		return console.NewSpeech(output), nil
	case config.ProviderGoogle:
		return gtts.New(gtts.Config{
			Language: cfg.Speech.Language,
			Speed:    cfg.Speech.Speed,
			CacheDir: cfg.Speech.CacheDir,
		}), nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Speech.Provider)
	}
}

func dialogConfig(cfg config.DialogConfig) usecase.DialogConfig {
	return usecase.DialogConfig{
		Debounce:        cfg.Debounce,
		Settle:          cfg.Settle,
		Resume:          cfg.Resume,
		Watchdog:        cfg.Watchdog,
		NoSpeechRestart: cfg.NoSpeechRestart,
		EndRestart:      cfg.EndRestart,
		Decay:           cfg.Decay,
		MaxAutoRestarts: cfg.MaxAutoRestarts,
	}
}
