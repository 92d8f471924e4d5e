// Package google provides a Google Cloud Speech-to-Text transcription adapter.
package google

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/status"

	"voice-turn-service/internal/service/transcription"
)

// Config holds Google STT configuration.
type Config struct {
	LanguageCode string
	SampleRateHz int
	// AudioEncoding forces a RecognitionConfig encoding name (e.g. "LINEAR16").
	// Empty derives the encoding from the recording MIME type.
	AudioEncoding string
}

// DefaultConfig returns sensible defaults for browser recordings.
func DefaultConfig() Config {
	return Config{
		LanguageCode: "en-US",
		SampleRateHz: 48000,
	}
}

// recognizer is the subset of speech.Client used by the adapter.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
}

type clientRecognizer struct {
	client *speech.Client
}

func (r clientRecognizer) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return r.client.Recognize(ctx, req)
}

// Adapter implements transcription.Transcriber using synchronous recognition.
type Adapter struct {
	client *speech.Client
	rec    recognizer
	cfg    Config
}

// New creates a new Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Adapter{client: c, rec: clientRecognizer{client: c}, cfg: cfg}, nil
}

// Name returns the provider name.
func (a *Adapter) Name() string { return "google" }

// Transcribe sends the whole utterance in one Recognize call and joins the
// top alternative of every result.
func (a *Adapter) Transcribe(ctx context.Context, req transcription.Request) (string, error) {
	resp, err := a.rec.Recognize(ctx, a.buildRequest(req))
	if err != nil {
		return "", recognizeError(ctx, err)
	}

	parts := make([]string, 0, len(resp.GetResults()))
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		if text := strings.TrimSpace(r.GetAlternatives()[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return transcription.SingleLine(strings.Join(parts, " ")), nil
}

// recognizeError keeps context errors intact and turns a gRPC status into a
// ServiceError carrying the status code.
func recognizeError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("google recognize: %w", ctxErr)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("google recognize: %w", err)
	}
	return &transcription.ServiceError{
		Status: int(st.Code()),
		Body:   st.Code().String() + ": " + st.Message(),
	}
}

// Close releases the underlying gRPC connection.
func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func (a *Adapter) buildRequest(req transcription.Request) *speechpb.RecognizeRequest {
	encoding, ok := parseAudioEncoding(a.cfg.AudioEncoding)
	if !ok {
		encoding = encodingForMime(req.MimeType)
	}

	config := &speechpb.RecognitionConfig{
		Encoding:     encoding,
		LanguageCode: a.cfg.LanguageCode,
	}
	// WAV and FLAC carry the rate in their header.
	if encoding != speechpb.RecognitionConfig_FLAC && !isWav(req.MimeType) {
		config.SampleRateHertz = int32(a.cfg.SampleRateHz)
	}

	return &speechpb.RecognizeRequest{
		Config: config,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: req.Audio},
		},
	}
}

// parseAudioEncoding converts an encoding name to the protobuf enum.
func parseAudioEncoding(name string) (speechpb.RecognitionConfig_AudioEncoding, bool) {
	if name == "" {
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, false
	}
	v, ok := speechpb.RecognitionConfig_AudioEncoding_value[name]
	if !ok || v == 0 {
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, false
	}
	return speechpb.RecognitionConfig_AudioEncoding(v), true
}

func encodingForMime(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	base := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "audio/webm":
		return speechpb.RecognitionConfig_WEBM_OPUS
	case "audio/ogg":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "audio/flac":
		return speechpb.RecognitionConfig_FLAC
	case "audio/wav", "audio/wave", "audio/x-wav":
		return speechpb.RecognitionConfig_LINEAR16
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func isWav(mimeType string) bool {
	return encodingForMime(mimeType) == speechpb.RecognitionConfig_LINEAR16
}
