package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Stream is an open microphone session.
type Stream interface {
	io.Reader
	// Release frees the underlying device handle.
	Release() error
}

// Device grants access to a microphone.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Encoder turns a live stream into encoded chunks.
type Encoder interface {
	// IsTypeSupported reports whether the encoder can produce the given MIME type.
	IsTypeSupported(mimeType string) bool
	// Start begins encoding. An empty mimeType selects the encoder default.
	// Every produced chunk is passed to sink, in order.
	Start(stream Stream, mimeType string, sink func(chunk []byte)) (Recording, error)
}

// Recording is a running encoder.
type Recording interface {
	// MimeType returns the negotiated MIME type.
	MimeType() string
	// Stop asks the encoder to stop and returns only after the last chunk has
	// been delivered to the sink.
	Stop(ctx context.Context) error
}

// DefaultMimePreferences lists container/codec pairs from most to least preferred.
var DefaultMimePreferences = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/ogg;codecs=opus",
	"audio/mp4",
	"audio/wav",
}

// Blob is the single encoded recording handed to the submission channel.
type Blob struct {
	Data     []byte
	MimeType string
	Filename string
}

// SubmitFunc delivers a finished blob. Its error is returned by StopAndSubmit.
type SubmitFunc func(ctx context.Context, blob Blob) error

type session struct {
	stream    Stream
	recording Recording
	mimeType  string

	mu     sync.Mutex
	chunks [][]byte
}

func (s *session) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.mu.Lock()
	s.chunks = append(s.chunks, c)
	s.mu.Unlock()
}

func (s *session) blob() Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	mimeType := s.mimeType
	if s.recording != nil && s.recording.MimeType() != "" {
		mimeType = s.recording.MimeType()
	}
	return Blob{
		Data:     bytes.Join(s.chunks, nil),
		MimeType: mimeType,
		Filename: FilenameFor(mimeType),
	}
}

// Controller owns at most one recording session at a time.
//
// State transitions:
//
//	IDLE → REQUESTING → RECORDING → FINALIZING → IDLE
//	           │                        │
//	           └── device error ──→ IDLE └── submit (success or failure) ──→ IDLE
//
// Rules:
//   - Start outside IDLE is a no-op
//   - The device is released only after the encoder acknowledged stop
//   - Every path out of REQUESTING, RECORDING and FINALIZING ends in IDLE
type Controller struct {
	device      Device
	encoder     Encoder
	preferences []string
	logger      zerolog.Logger

	mu      sync.Mutex
	state   State
	session *session
}

// Option configures a Controller.
type Option func(*Controller)

// WithMimePreferences overrides DefaultMimePreferences.
func WithMimePreferences(prefs []string) Option {
	return func(c *Controller) {
		c.preferences = prefs
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates an idle controller.
func NewController(device Device, encoder Encoder, opts ...Option) *Controller {
	c := &Controller{
		device:      device,
		encoder:     encoder,
		preferences: DefaultMimePreferences,
		logger:      zerolog.Nop(),
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start acquires the device and begins recording. It returns false without
// touching the device when a session already exists. Device failures are
// returned as *DeviceAccessError and leave the controller IDLE.
func (c *Controller) Start(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug().Str("state", state.String()).Msg("Start ignored, recording already in progress")
		return false, nil
	}
	c.state = StateRequesting
	c.mu.Unlock()

	stream, err := c.device.Open(ctx)
	if err != nil {
		dae := classifyDeviceError(err)
		c.setIdle()
		c.logger.Warn().Err(err).Str("kind", dae.Kind.String()).Msg("Device access failed")
		return false, dae
	}

	mimeType := c.negotiateMimeType()
	s := &session{stream: stream, mimeType: mimeType}

	rec, err := c.encoder.Start(stream, mimeType, s.append)
	if err != nil {
		if relErr := stream.Release(); relErr != nil {
			c.logger.Warn().Err(relErr).Msg("Failed to release device after encoder error")
		}
		c.setIdle()
		return false, fmt.Errorf("start encoder: %w", err)
	}
	s.recording = rec

	c.mu.Lock()
	c.session = s
	c.state = StateRecording
	c.mu.Unlock()

	c.logger.Info().Str("mimeType", rec.MimeType()).Msg("Recording started")
	return true, nil
}

// StopAndSubmit stops the encoder, waits for its acknowledgement, releases the
// device, assembles the blob and hands it to submit. The controller is IDLE
// when it returns, whatever the outcome.
func (c *Controller) StopAndSubmit(ctx context.Context, submit SubmitFunc) error {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.state = StateFinalizing
	s := c.session
	c.mu.Unlock()

	defer c.setIdle()

	if err := c.finish(ctx, s); err != nil {
		return err
	}

	blob := s.blob()
	c.logger.Info().
		Int("bytes", len(blob.Data)).
		Int("chunks", len(s.chunks)).
		Str("mimeType", blob.MimeType).
		Msg("Recording finalized")

	if submit == nil {
		return nil
	}
	return submit(ctx, blob)
}

// Cancel aborts an in-progress recording without submitting anything.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.state = StateFinalizing
	s := c.session
	c.mu.Unlock()

	defer c.setIdle()
	c.logger.Info().Msg("Recording cancelled")
	return c.finish(ctx, s)
}

// finish stops the encoder before the device is released.
func (c *Controller) finish(ctx context.Context, s *session) error {
	stopErr := s.recording.Stop(ctx)
	if stopErr != nil {
		c.logger.Error().Err(stopErr).Msg("Encoder stop failed")
	}

	relErr := s.stream.Release()
	if relErr != nil {
		c.logger.Warn().Err(relErr).Msg("Failed to release device")
	}

	if stopErr != nil {
		return errors.Join(ErrEncoderStop, stopErr)
	}
	return nil
}

func (c *Controller) setIdle() {
	c.mu.Lock()
	c.state = StateIdle
	c.session = nil
	c.mu.Unlock()
}

func (c *Controller) negotiateMimeType() string {
	for _, mimeType := range c.preferences {
		if c.encoder.IsTypeSupported(mimeType) {
			return mimeType
		}
	}
	return ""
}

// FilenameFor returns the upload filename for a recording of the given MIME type.
func FilenameFor(mimeType string) string {
	base := strings.TrimSpace(strings.ToLower(mimeType))
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "audio/webm":
		return "recording.webm"
	case "audio/ogg":
		return "recording.ogg"
	case "audio/mp4":
		return "recording.m4a"
	case "audio/mpeg":
		return "recording.mp3"
	case "audio/wav", "audio/wave", "audio/x-wav":
		return "recording.wav"
	case "audio/flac":
		return "recording.flac"
	default:
		return "recording.webm"
	}
}
