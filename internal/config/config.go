// Package config resolves runtime configuration: defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Recognizer and speech providers.
const (
	ProviderWebview  = "webview"
	ProviderDeepgram = "deepgram"
	ProviderConsole  = "console"
	ProviderGoogle   = "google"
)

// Storage drivers.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config stores runtime configuration.
type Config struct {
	DataDir    string           `yaml:"-"`
	Dialog     DialogConfig     `yaml:"dialog"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Deepgram   DeepgramConfig   `yaml:"deepgram"`
	Audio      AudioConfig      `yaml:"audio"`
	Speech     SpeechConfig     `yaml:"speech"`
	Rules      RulesConfig      `yaml:"rules"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
}

type DialogConfig struct {
	Debounce        time.Duration `yaml:"debounce"`
	Settle          time.Duration `yaml:"settle"`
	Resume          time.Duration `yaml:"resume"`
	Watchdog        time.Duration `yaml:"watchdog"`
	NoSpeechRestart time.Duration `yaml:"no_speech_restart"`
	EndRestart      time.Duration `yaml:"end_restart"`
	Decay           time.Duration `yaml:"decay"`
	MaxAutoRestarts int           `yaml:"max_auto_restarts"`
}

type RecognizerConfig struct {
	Provider        string        `yaml:"provider"`
	Locale          string        `yaml:"locale"`
	Alternatives    int           `yaml:"alternatives"`
	NoSpeechTimeout time.Duration `yaml:"no_speech_timeout"`
	ChunkSize       int           `yaml:"chunk_size"`
	StreamingGrace  time.Duration `yaml:"streaming_grace"`
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBaseURL  string `yaml:"api_base_url"`
	Model       string `yaml:"model"`
	SmartFormat bool   `yaml:"smart_format"`
	Endpointing int    `yaml:"endpointing_ms"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"recorder_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
}

type SpeechConfig struct {
	Provider string  `yaml:"provider"`
	Language string  `yaml:"language"`
	Speed    float32 `yaml:"speed"`
	CacheDir string  `yaml:"cache_dir"`
}

type RulesConfig struct {
	Path           string `yaml:"path"`
	IterationLimit int    `yaml:"iteration_limit"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir: dataDir,
		Dialog: DialogConfig{
			Debounce:        300 * time.Millisecond,
			Settle:          100 * time.Millisecond,
			Resume:          500 * time.Millisecond,
			Watchdog:        1500 * time.Millisecond,
			NoSpeechRestart: time.Second,
			EndRestart:      500 * time.Millisecond,
			Decay:           3 * time.Second,
			MaxAutoRestarts: 20,
		},
		Recognizer: RecognizerConfig{
			Provider:        ProviderWebview,
			Locale:          "fr-FR",
			Alternatives:    3,
			NoSpeechTimeout: 8 * time.Second,
			ChunkSize:       4096,
			StreamingGrace:  time.Second,
		},
		Deepgram: DeepgramConfig{
			APIBaseURL:  "https://api.deepgram.com/v1",
			Model:       "nova-2",
			SmartFormat: true,
			Endpointing: 300,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
		},
		Speech: SpeechConfig{
			Provider: ProviderWebview,
			Language: "fr",
			Speed:    1,
			CacheDir: filepath.Join(dataDir, "tts-cache"),
		},
		Rules: RulesConfig{
			Path:           filepath.Join(dataDir, "substitutions.rules"),
			IterationLimit: 30,
		},
		Storage: StorageConfig{
			Driver: StorageSQLite,
			Path:   filepath.Join(dataDir, "tasks.db"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultDataDir is ERGOVOICE_HOME, or ~/.config/ergovoice.
func DefaultDataDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("ERGOVOICE_HOME")); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("could not determine home directory")
	}
	return filepath.Join(home, ".config", "ergovoice"), nil
}

// DefaultConfigPath is config.yaml inside dataDir.
func DefaultConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// Load reads configuration from configPath on fsys, applies environment
// overrides and validates the result. A blank or missing configPath yields
// the defaults.
func Load(fsys afero.Fs, configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig(dataDir)

	if configPath != "" {
		data, err := afero.ReadFile(fsys, configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
			cfg.DataDir = dataDir
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Recognizer.Provider = envOrDefault("ERGOVOICE_RECOGNIZER", c.Recognizer.Provider)
	c.Recognizer.Locale = envOrDefault("ERGOVOICE_LOCALE", c.Recognizer.Locale)
	c.Recognizer.ChunkSize = envOrDefaultInt("ERGOVOICE_AUDIO_CHUNK_SIZE", c.Recognizer.ChunkSize)
	c.Dialog.MaxAutoRestarts = envOrDefaultInt("ERGOVOICE_MAX_AUTO_RESTARTS", c.Dialog.MaxAutoRestarts)

	c.Deepgram.APIKey = envOrDefault("DEEPGRAM_API_KEY", c.Deepgram.APIKey)
	c.Deepgram.APIBaseURL = envOrDefault("DEEPGRAM_API_BASE", c.Deepgram.APIBaseURL)
	c.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", c.Deepgram.Model)
	c.Deepgram.SmartFormat = envOrDefaultBool("DEEPGRAM_SMART_FORMAT", c.Deepgram.SmartFormat)

	c.Audio.RecorderCommand = envOrDefault("ERGOVOICE_FFMPEG_COMMAND", c.Audio.RecorderCommand)
	c.Audio.InputFormat = envOrDefault("ERGOVOICE_AUDIO_INPUT_FORMAT", c.Audio.InputFormat)
	c.Audio.InputDevice = envOrDefault("ERGOVOICE_AUDIO_INPUT_DEVICE", c.Audio.InputDevice)
	c.Audio.SampleRate = envOrDefaultInt("ERGOVOICE_SAMPLE_RATE", c.Audio.SampleRate)
	c.Audio.Channels = envOrDefaultInt("ERGOVOICE_CHANNELS", c.Audio.Channels)

	c.Speech.Provider = envOrDefault("ERGOVOICE_SPEECH", c.Speech.Provider)
	c.Speech.Language = envOrDefault("ERGOVOICE_SPEECH_LANGUAGE", c.Speech.Language)

	c.Rules.Path = envOrDefault("ERGOVOICE_RULES_FILE", c.Rules.Path)
	c.Rules.IterationLimit = envOrDefaultInt("ERGOVOICE_RULE_ITERATION_LIMIT", c.Rules.IterationLimit)

	c.Storage.Driver = envOrDefault("ERGOVOICE_STORAGE", c.Storage.Driver)
	c.Storage.Path = envOrDefault("ERGOVOICE_DB", c.Storage.Path)

	c.Log.Level = envOrDefault("ERGOVOICE_LOG_LEVEL", c.Log.Level)
	c.Log.File = envOrDefault("ERGOVOICE_LOG_FILE", c.Log.File)
}

// applyDefaults fills zero values a partial YAML file may have left.
func (c *Config) applyDefaults() {
	d := DefaultConfig(c.DataDir)
	defaultDuration(&c.Dialog.Debounce, d.Dialog.Debounce)
	defaultDuration(&c.Dialog.Settle, d.Dialog.Settle)
	defaultDuration(&c.Dialog.Resume, d.Dialog.Resume)
	defaultDuration(&c.Dialog.Watchdog, d.Dialog.Watchdog)
	defaultDuration(&c.Dialog.NoSpeechRestart, d.Dialog.NoSpeechRestart)
	defaultDuration(&c.Dialog.EndRestart, d.Dialog.EndRestart)
	defaultDuration(&c.Dialog.Decay, d.Dialog.Decay)
	defaultDuration(&c.Recognizer.NoSpeechTimeout, d.Recognizer.NoSpeechTimeout)
	defaultDuration(&c.Recognizer.StreamingGrace, d.Recognizer.StreamingGrace)

	if c.Recognizer.Alternatives <= 0 {
		c.Recognizer.Alternatives = d.Recognizer.Alternatives
	}
	if c.Recognizer.ChunkSize < 256 {
		c.Recognizer.ChunkSize = d.Recognizer.ChunkSize
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = d.Audio.SampleRate
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = d.Audio.Channels
	}
	if c.Speech.Speed <= 0 {
		c.Speech.Speed = d.Speech.Speed
	}
	if c.Rules.IterationLimit <= 0 {
		c.Rules.IterationLimit = d.Rules.IterationLimit
	}
	c.Recognizer.Provider = strings.ToLower(c.Recognizer.Provider)
	c.Speech.Provider = strings.ToLower(c.Speech.Provider)
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Recognizer.Provider {
	case ProviderWebview, ProviderDeepgram, ProviderConsole:
	default:
		return fmt.Errorf("recognizer.provider %q must be webview, deepgram or console", c.Recognizer.Provider)
	}
	switch c.Speech.Provider {
	case ProviderWebview, ProviderGoogle, ProviderConsole:
	default:
		return fmt.Errorf("speech.provider %q must be webview, google or console", c.Speech.Provider)
	}
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.Path == "" {
			return errors.New("storage.path cannot be empty")
		}
	default:
		return fmt.Errorf("storage.driver %q must be sqlite or memory", c.Storage.Driver)
	}
	if c.Dialog.MaxAutoRestarts < 1 {
		return errors.New("dialog.max_auto_restarts must be at least 1")
	}
	if !isFrench(c.Recognizer.Locale) {
		return fmt.Errorf("recognizer.locale %q must be a French locale such as fr-FR", c.Recognizer.Locale)
	}
	if !isFrench(c.Speech.Language) {
		return fmt.Errorf("speech.language %q must be French", c.Speech.Language)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// isFrench accepts "fr" and regional variants like "fr-CA". Keywords and
// prompts only exist in French.
func isFrench(locale string) bool {
	language, _, _ := strings.Cut(strings.ToLower(locale), "-")
	return language == "fr"
}

// StreamingLanguage is the provider language code derived from the locale,
// "fr" for "fr-FR".
func (c *Config) StreamingLanguage() string {
	language, _, _ := strings.Cut(c.Recognizer.Locale, "-")
	return strings.ToLower(language)
}

func defaultDuration(value *time.Duration, fallback time.Duration) {
	if *value <= 0 {
		*value = fallback
	}
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
