// Package config reads remy's settings from config.yaml, the environment
// and command-line flags, all merged by viper.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"

	"remy/audio"
	"remy/llm"
	"remy/pipeline"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Audio struct {
	Device           string        `mapstructure:"device"`
	Format           string        `mapstructure:"format"`
	SampleRate       int           `mapstructure:"sample_rate"`
	ChunkSize        int           `mapstructure:"chunk_size"`
	SilenceThreshold float64       `mapstructure:"silence_threshold"`
	SilenceDuration  time.Duration `mapstructure:"silence_duration"`
	MinSpeech        time.Duration `mapstructure:"min_speech"`
}

type Video struct {
	Device   string        `mapstructure:"device"`
	Format   string        `mapstructure:"format"`
	Width    int           `mapstructure:"width"`
	Height   int           `mapstructure:"height"`
	FPS      int           `mapstructure:"fps"`
	Interval time.Duration `mapstructure:"interval"`
}

type Pipeline struct {
	WakeWord       string        `mapstructure:"wake_word"`
	DedupThreshold float64       `mapstructure:"dedup_threshold"`
	CheckWait      time.Duration `mapstructure:"check_wait"`
	PollWait       time.Duration `mapstructure:"poll_wait"`
	History        int           `mapstructure:"history"`
}

type Config struct {
	Provider     string   `mapstructure:"provider"`
	Model        string   `mapstructure:"model"`
	OpenAIAPIKey string   `mapstructure:"openai_api_key"`
	GeminiAPIKey string   `mapstructure:"gemini_api_key"`
	HTTPPort     int      `mapstructure:"http_port"`
	SystemPrompt string   `mapstructure:"system_prompt"`
	Audio        Audio    `mapstructure:"audio"`
	Video        Video    `mapstructure:"video"`
	Pipeline     Pipeline `mapstructure:"pipeline"`
}

func defaultCaptureFormats() (audioFormat, videoFormat string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", "avfoundation"
	case "windows":
		return "dshow", "dshow"
	default:
		return "alsa", "v4l2"
	}
}

func SetDefaults(v *viper.Viper) {
	audioFormat, videoFormat := defaultCaptureFormats()
	seg := audio.DefaultSegmenterConfig
	opts := pipeline.DefaultOptions()

	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("model", "")
	v.SetDefault("http_port", 8000)
	v.SetDefault("system_prompt", llm.DefaultSystemPrompt)

	v.SetDefault("audio.device", "")
	v.SetDefault("audio.format", audioFormat)
	v.SetDefault("audio.sample_rate", seg.Format.SampleRate)
	v.SetDefault("audio.chunk_size", seg.Format.ChunkSize)
	v.SetDefault("audio.silence_threshold", seg.SilenceThreshold)
	v.SetDefault("audio.silence_duration", seg.SilenceDuration)
	v.SetDefault("audio.min_speech", seg.MinSpeech)

	v.SetDefault("video.device", "0")
	v.SetDefault("video.format", videoFormat)
	v.SetDefault("video.width", 1280)
	v.SetDefault("video.height", 720)
	v.SetDefault("video.fps", 10)
	v.SetDefault("video.interval", opts.SampleInterval)

	v.SetDefault("pipeline.wake_word", opts.WakeWord)
	v.SetDefault("pipeline.dedup_threshold", opts.DedupThreshold)
	v.SetDefault("pipeline.check_wait", opts.CheckWait)
	v.SetDefault("pipeline.poll_wait", opts.PollWait)
	v.SetDefault("pipeline.history", 10)
}

// Load applies defaults and decodes v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if c.Audio.SampleRate <= 0 || c.Audio.ChunkSize <= 0 {
		errs = append(errs, errors.New("audio sample_rate and chunk_size must be positive"))
	}
	if c.Audio.SilenceThreshold <= 0 {
		errs = append(errs, errors.New("audio.silence_threshold must be positive"))
	}
	if c.Audio.SilenceDuration <= 0 {
		errs = append(errs, errors.New("audio.silence_duration must be positive"))
	}
	if c.Audio.MinSpeech <= 0 {
		errs = append(errs, errors.New("audio.min_speech must be positive"))
	}
	if c.Video.Interval <= 0 {
		errs = append(errs, errors.New("video.interval must be positive"))
	}
	if c.Pipeline.CheckWait <= 0 || c.Pipeline.PollWait <= 0 {
		errs = append(errs, errors.New("pipeline check_wait and poll_wait must be positive"))
	}
	if c.Pipeline.DedupThreshold < 0 || c.Pipeline.DedupThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.dedup_threshold %v is outside [0, 1]", c.Pipeline.DedupThreshold))
	}
	return errors.Join(errs...)
}

// APIKey returns the key of the configured provider.
func (c *Config) APIKey() string {
	if c.Provider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

func (c *Config) AudioFormat() audio.Format {
	return audio.Format{SampleRate: c.Audio.SampleRate, ChunkSize: c.Audio.ChunkSize}
}

func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Segmenter: audio.SegmenterConfig{
			Format:           c.AudioFormat(),
			SilenceThreshold: c.Audio.SilenceThreshold,
			SilenceDuration:  c.Audio.SilenceDuration,
			MinSpeech:        c.Audio.MinSpeech,
		},
		WakeWord:       c.Pipeline.WakeWord,
		SampleInterval: c.Video.Interval,
		CheckWait:      c.Pipeline.CheckWait,
		PollWait:       c.Pipeline.PollWait,
		DedupThreshold: c.Pipeline.DedupThreshold,
		SystemPrompt:   c.SystemPrompt,
	}
}

// Set stores a value and persists it to the config file, creating
// config.yaml in the working directory if none was read.
func Set(v *viper.Viper, key string, value any) error {
	v.Set(key, value)
	if v.ConfigFileUsed() == "" {
		if err := v.WriteConfigAs("config.yaml"); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		return nil
	}
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
