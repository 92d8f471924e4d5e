// Package app holds process-wide state for the service.
package app

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voice-turn-service/internal/config"
	"voice-turn-service/internal/observability/logging"
)

const serviceName = "voice-turn-service"

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	ready atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Voice turn service application created")
	return a
}

// setupLogger configures zerolog for the service. ENV=dev forces the console
// writer regardless of LOG_FORMAT.
func (a *Application) setupLogger() {
	lc := logging.DefaultConfig()
	if a.Cfg != nil {
		lc.Level = a.Cfg.Observability.LogLevel
		lc.Format = a.Cfg.Observability.LogFormat
	}
	if os.Getenv("ENV") == "dev" {
		lc.Format = "console"
	}
	logging.Init(lc)

	log.Logger = log.Logger.With().Str("service", serviceName).Logger()
	a.Logger = logging.WithComponent("application")

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", lc.Format).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Voice turn service starting")

	return nil
}

// Ready reports whether the service accepts turns.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown marks the service not ready before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	shutdownLogger.Info().
		Dur("uptime", time.Since(a.StartupTime)).
		Msg("Voice turn service shutting down")
}
