package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"voice-turn-service/internal/client"
	"voice-turn-service/internal/service/history"
	"voice-turn-service/internal/service/recorder"
)

const wavMimeType = "audio/wav"

// session keeps the conversation of one client run.
type session struct {
	submitter client.Submitter
	history   *history.History
	outDir    string
	realtime  bool
	out       io.Writer

	// stopSignal blocks until the user ends a realtime recording.
	stopSignal func()
}

// runTurn records path through the RecordingController, submits the blob with
// the current history and stores the exchange.
func (s *session) runTurn(ctx context.Context, path string) error {
	encoder := recorder.NewPassthroughEncoder(wavMimeType)
	if !s.realtime {
		// One chunk holding the whole file, so stopping right away loses nothing.
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		encoder.ChunkSize = int(info.Size())
		encoder.Interval = 0
	}

	ctrl := recorder.NewController(
		recorder.NewFileDevice(path),
		encoder,
		recorder.WithMimePreferences([]string{wavMimeType}),
		recorder.WithLogger(log.With().Str("component", "recorder").Logger()),
	)

	if _, err := ctrl.Start(ctx); err != nil {
		var dae *recorder.DeviceAccessError
		if errors.As(err, &dae) {
			return fmt.Errorf("%s: %w", dae.Message(), err)
		}
		return err
	}

	if s.realtime && s.stopSignal != nil {
		fmt.Fprintln(s.out, "Recording... press Enter to stop.")
		s.stopSignal()
	}

	return ctrl.StopAndSubmit(ctx, func(ctx context.Context, blob recorder.Blob) error {
		res, err := s.submitter.SubmitTurn(ctx, blob, s.history.Entries(), func(stage string) {
			fmt.Fprintf(s.out, "  ... %s\n", stage)
		})
		if err != nil {
			return err
		}

		audio, err := base64.StdEncoding.DecodeString(res.AudioBase64)
		if err != nil {
			return fmt.Errorf("decode reply audio: %w", err)
		}
		if err := s.history.AppendExchange(res.Transcript, res.AssistantReply, audio); err != nil {
			return err
		}

		fmt.Fprintf(s.out, "you: %s\nassistant: %s\n", res.Transcript, res.AssistantReply)
		if len(audio) == 0 {
			return nil
		}
		name := filepath.Join(s.outDir, res.TurnID+".wav")
		if err := os.WriteFile(name, audio, 0o644); err != nil {
			return fmt.Errorf("write reply audio: %w", err)
		}
		fmt.Fprintf(s.out, "reply audio: %s\n", name)
		return nil
	})
}
