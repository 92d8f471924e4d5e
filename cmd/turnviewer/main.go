// Command turnviewer shows turn events from Kafka live in the browser.
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"voice-turn-service/internal/observability/logging"
)

//go:embed static
var staticFiles embed.FS

// Options are interpreted by github.com/jessevdk/go-flags.
type Options struct {
	Port           string        `short:"p" long:"port" default:"8081" description:"HTTP server port"`
	Brokers        string        `short:"b" long:"brokers" env:"KAFKA_BROKERS" default:"localhost:9092" description:"Kafka brokers (comma-separated)"`
	TopicCompleted string        `long:"topic-completed" env:"KAFKA_TOPIC_COMPLETED" default:"voice.turn.completed" description:"completed turn topic"`
	TopicFailed    string        `long:"topic-failed" env:"KAFKA_TOPIC_FAILED" default:"voice.turn.failed" description:"failed turn topic"`
	Lookback       time.Duration `long:"lookback" default:"1h" description:"replay events newer than this"`
}

func newMux(hub *Hub) http.Handler {
	mux := http.NewServeMux()
	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("/", http.FileServer(http.FS(static)))
	mux.HandleFunc("/ws", wsHandler(hub))
	return mux
}

func main() {
	opts := &Options{}
	if _, err := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash).Parse(); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lc := logging.DefaultConfig()
	lc.Format = "console"
	logging.Init(lc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := newHub()
	go hub.run(ctx.Done())

	brokers := strings.Split(opts.Brokers, ",")
	for _, topic := range []string{opts.TopicCompleted, opts.TopicFailed} {
		reader := newReader(ctx, brokers, topic, opts.Lookback)
		defer reader.Close()
		go consume(ctx, reader, topic, hub.broadcast)
	}

	srv := &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           newMux(hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", "http://localhost:"+opts.Port).
		Strs("brokers", brokers).
		Strs("topics", []string{opts.TopicCompleted, opts.TopicFailed}).
		Msg("Turn viewer starting")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server error")
	}
}
