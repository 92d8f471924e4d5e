// Command voiceclient records turns from WAV files, submits them to the voice
// turn service and plays the conversation back as files on disk.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"voice-turn-service/internal/client"
	"voice-turn-service/internal/observability/logging"
	"voice-turn-service/internal/service/history"
)

// Options are interpreted by github.com/jessevdk/go-flags.
type Options struct {
	Server   string        `short:"s" long:"server" default:"http://localhost:8080" description:"voice turn service base URL"`
	Mode     string        `short:"m" long:"mode" default:"single" description:"transport granularity: single or staged"`
	Audio    string        `short:"a" long:"audio" default:"testdata/sample.wav" description:"default WAV file used as the microphone"`
	Out      string        `short:"o" long:"out" default:"replies" description:"directory for reply audio"`
	Session  string        `long:"session" description:"session ID (random when empty)"`
	Realtime bool          `long:"realtime" description:"pace the recording like a live capture and stop on Enter"`
	Timeout  time.Duration `long:"timeout" default:"10m" description:"per-turn request timeout"`
	Verbose  bool          `short:"v" long:"verbose" description:"debug logging"`
}

func main() {
	opts := &Options{}
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
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
	if opts.Verbose {
		lc.Level = "debug"
	}
	logging.Init(lc)

	if opts.Session == "" {
		opts.Session = uuid.NewString()
	}

	sub, err := client.New(client.Config{
		BaseURL:   opts.Server,
		Mode:      opts.Mode,
		SessionID: opts.Session,
		Timeout:   opts.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create turn client")
	}
	if err := os.MkdirAll(opts.Out, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", opts.Out).Msg("Failed to create output directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := &session{
		submitter: sub,
		history:   history.New(),
		outDir:    opts.Out,
		realtime:  opts.Realtime,
		out:       os.Stdout,
	}

	fmt.Printf("Session %s (%s mode) against %s\n", opts.Session, opts.Mode, opts.Server)
	fmt.Println("Enter a WAV path (blank for the default), 'clear' to reset history, 'quit' to exit.")

	in := bufio.NewScanner(os.Stdin)
	s.stopSignal = func() { in.Scan() }
	for {
		fmt.Print("> ")
		if !in.Scan() || ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "quit", "exit":
			return
		case "clear":
			n := s.history.Clear()
			fmt.Printf("Cleared %d turns\n", n)
			continue
		case "":
			line = opts.Audio
		}

		if err := s.runTurn(ctx, line); err != nil {
			log.Error().Err(err).Str("file", line).Msg("Turn failed")
		}
	}
}
