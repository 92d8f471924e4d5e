package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	grpcapi "voice-turn-service/internal/api/grpc"
	"voice-turn-service/internal/app"
	"voice-turn-service/internal/config"
	"voice-turn-service/internal/events"
	httpapi "voice-turn-service/internal/http"
	"voice-turn-service/internal/observability"
	"voice-turn-service/internal/observability/metrics"
	"voice-turn-service/internal/service/chat"
	"voice-turn-service/internal/service/synthesis"
	"voice-turn-service/internal/service/transcription"
	"voice-turn-service/internal/service/transcription/google"
	"voice-turn-service/internal/service/transcription/mock"
	"voice-turn-service/internal/service/transcription/whisper"
	"voice-turn-service/internal/service/turn"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load()
	application := app.New(cfg)
	logger := application.Logger

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transcriber, closeTranscriber, err := newTranscriber(ctx, cfg.Transcription)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.Transcription.Provider).Msg("Failed to create transcriber")
	}
	defer closeTranscriber()

	voice, err := synthesis.LoadReferenceVoice(synthesis.VoiceSource{
		Dir:       cfg.ReferenceVoice.Dir,
		Name:      cfg.ReferenceVoice.Name,
		AudioPath: cfg.ReferenceVoice.AudioPath,
		TextPath:  cfg.ReferenceVoice.TextPath,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load reference voice")
	}
	logger.Info().
		Str("voice", voice.Name()).
		Int("audioBytes", len(voice.Audio())).
		Msg("Reference voice loaded")

	synthesizer, err := synthesis.New(synthesis.Config{
		URL:      cfg.Synthesis.URL,
		Language: cfg.Synthesis.Language,
		Timeout:  cfg.Synthesis.Timeout,
	}, voice)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create synthesis client")
	}

	prompts, err := loadPrompts(cfg.Chat)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load chat prompts")
	}
	completer, err := chat.New(chat.Config{
		BaseURL:     cfg.Chat.BaseURL,
		APIKey:      cfg.Chat.APIKey,
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
		Timeout:     cfg.Chat.Timeout,
		Prompts:     prompts,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create chat client")
	}

	// Kafka publisher with separate topics for completed and failed turns
	publisher := events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicCompleted: cfg.Kafka.TopicCompleted,
		TopicFailed:    cfg.Kafka.TopicFailed,
		Principal:      cfg.Kafka.Principal,
	})
	defer publisher.Close()

	m := metrics.DefaultMetrics
	orch := turn.New(transcriber, completer, synthesizer,
		turn.WithPublisher(publisher),
		turn.WithMetrics(m),
		turn.WithLimits(turn.Limits{MaxAudioBytes: cfg.Turn.MaxAudioBytes}),
		turn.WithTranslate(cfg.Transcription.Translate),
		turn.WithTimeouts(turn.Timeouts{
			Transcription: cfg.Transcription.Timeout,
			Chat:          cfg.Chat.Timeout,
			Synthesis:     cfg.Synthesis.Timeout,
		}),
	)

	obsServer := observability.NewServer(cfg.Observability.MetricsAddr, application.Ready)
	obsServer.Start()

	grpcServer := grpcapi.New(m)
	if err := grpcServer.Listen(cfg.Service.GRPCPort); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start gRPC health server")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application, httpapi.NewTurnHandler(orch, m, cfg.Turn.MaxAudioBytes), m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Voice turn HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start application")
	}
	grpcServer.SetServing(true)

	logger.Info().
		Str("transcription", transcriber.Name()).
		Str("chatModel", cfg.Chat.Model).
		Str("synthesis", cfg.Synthesis.URL).
		Bool("kafka", publisher.Enabled()).
		Msg("Voice turn service ready")

	<-ctx.Done()

	application.Shutdown()
	grpcServer.SetServing(false)

	// In-flight turns may still be waiting on synthesis.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	grpcServer.Stop()
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Observability server shutdown failed")
	}
	log.Info().Msg("Voice turn service stopped")
}

// newTranscriber builds the configured transcription provider. The returned
// close func is always non-nil.
func newTranscriber(ctx context.Context, cfg config.TranscriptionConfig) (transcription.Transcriber, func(), error) {
	noop := func() {}
	switch cfg.Provider {
	case "google":
		gc := google.DefaultConfig()
		if cfg.LanguageCode != "" {
			gc.LanguageCode = cfg.LanguageCode
		}
		if cfg.SampleRateHz > 0 {
			gc.SampleRateHz = cfg.SampleRateHz
		}
		gc.AudioEncoding = cfg.AudioEncoding
		a, err := google.New(ctx, gc)
		if err != nil {
			return nil, noop, err
		}
		return a, func() { _ = a.Close() }, nil
	case "mock":
		return mock.New(), noop, nil
	default:
		wc := whisper.DefaultConfig()
		wc.URL = cfg.URL
		if cfg.Timeout > 0 {
			wc.Timeout = cfg.Timeout
		}
		c, err := whisper.New(wc)
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	}
}

// loadPrompts layers the defaults, the environment and the optional YAML
// profile, later sources winning.
func loadPrompts(cfg config.ChatConfig) (chat.Prompts, error) {
	p := chat.DefaultPrompts()
	if cfg.SystemPrompt != "" {
		p.System = cfg.SystemPrompt
	}
	if cfg.PrePrompt != "" {
		p.Pre = cfg.PrePrompt
	}
	if cfg.PostPrompt != "" {
		p.Post = cfg.PostPrompt
	}
	if cfg.PromptsFile == "" {
		return p, nil
	}
	return chat.LoadPrompts(cfg.PromptsFile, p)
}
