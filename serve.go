package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"remy/audio"
	"remy/config"
	"remy/gemini"
	"remy/llm"
	"remy/pipeline"
	"remy/stt"
	"remy/video"
	"remy/www"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Capture audio and video and serve the control surface",
	Long: `Starts ffmpeg capture, the perception pipeline and the HTTP server.
The pipeline itself is started with POST /camera/start, "remy start", or --start.`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().Bool("start", false, "Start the pipeline immediately")
}

// provider is everything the configured model backend supplies.
type provider struct {
	collab    pipeline.Collaborators
	cautioner llm.Cautioner
	close     func()
}

func newProvider(ctx context.Context, cfg *config.Config, history llm.History, logs loggers) (*provider, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		g, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.Model, history, logs.think)
		if err != nil {
			return nil, err
		}
		return &provider{
			collab: pipeline.Collaborators{
				Transcriber: g,
				Checker:     g,
				Responder:   g,
				History:     history,
			},
			cautioner: g,
			close:     func() { g.Close() },
		}, nil

	default:
		model := llm.NewOpenAIModel(cfg.OpenAIAPIKey, cfg.Model, history, logs.think)
		return &provider{
			collab: pipeline.Collaborators{
				Transcriber: stt.NewWhisperClient(cfg.OpenAIAPIKey, logs.hear),
				Checker:     model,
				Responder:   model,
				History:     history,
			},
			cautioner: model,
			close:     func() {},
		}, nil
	}
}

func newSources(cfg *config.Config, logs loggers) pipeline.Sources {
	sources := pipeline.Sources{
		Video: video.NewFFmpegSource(
			cfg.Video.Format,
			cfg.Video.Device,
			cfg.Video.Width,
			cfg.Video.Height,
			cfg.Video.FPS,
			logs.see,
		),
	}
	if cfg.Audio.Device != "" {
		sources.Audio = audio.NewFFmpegSource(
			cfg.AudioFormat(),
			cfg.Audio.Format,
			cfg.Audio.Device,
			logs.hear,
		)
	}
	return sources
}

func requireAPIKey(mainLogger *log.Logger, cfg *config.Config) {
	if cfg.APIKey() != "" {
		return
	}
	if cfg.Provider == config.ProviderGemini {
		mainLogger.Fatal("missing GEMINI_API_KEY or --gemini-api-key=")
	}
	mainLogger.Fatal("missing OPENAI_API_KEY or --openai-api-key=")
}

func runServe(cmd *cobra.Command, args []string) {
	logs := createLoggers()
	cfg := loadConfig(logs.main)
	requireAPIKey(logs.main, cfg)
	startNow, _ := cmd.Flags().GetBool("start")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history := llm.NewRollingHistory(cfg.Pipeline.History)
	p, err := newProvider(ctx, cfg, history, logs)
	if err != nil {
		logs.main.Fatal("create model provider", "provider", cfg.Provider, "error", err)
	}
	defer p.close()

	sources := newSources(cfg, logs)
	if sources.Audio == nil {
		logs.main.Warn("no audio.device configured, speech is disabled")
	}

	ctrl := pipeline.New(
		cfg.PipelineOptions(),
		p.collab,
		sources,
		pipeline.Loggers{Hear: logs.hear, See: logs.see, Think: logs.think},
	)
	defer func() {
		ctrl.Stop()
		ctrl.Wait()
	}()

	hub := www.NewHub(logs.http)
	go hub.Run(ctx, ctrl.Results())

	if startNow {
		if err := ctrl.Start(ctx, ""); err != nil {
			logs.main.Fatal("start pipeline", "error", err)
		}
	}

	srv := www.NewServer(ctx, ctrl, hub, p.cautioner, logs.http)
	logs.main.Info("serving", "provider", cfg.Provider, "port", cfg.HTTPPort)
	if err := srv.ListenAndServe(ctx, cfg.HTTPPort); err != nil {
		logs.main.Error("http server", "error", err)
	}
}
