package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// testStream records release order against its encoder.
type testStream struct {
	bytes.Reader
	mu       sync.Mutex
	released bool
	events   *[]string
}

func (s *testStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	*s.events = append(*s.events, "release")
	return nil
}

type testDevice struct {
	mu     sync.Mutex
	opens  int
	err    error
	events []string
	stream *testStream
}

func (d *testDevice) Open(ctx context.Context) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.err != nil {
		return nil, d.err
	}
	d.stream = &testStream{events: &d.events}
	return d.stream, nil
}

type testEncoder struct {
	supported map[string]bool
	chunks    [][]byte
	startErr  error
	stopErr   error
	device    *testDevice
	started   string
}

func (e *testEncoder) IsTypeSupported(mimeType string) bool {
	return e.supported[mimeType]
}

func (e *testEncoder) Start(stream Stream, mimeType string, sink func([]byte)) (Recording, error) {
	if e.startErr != nil {
		return nil, e.startErr
	}
	e.started = mimeType
	return &testRecording{encoder: e, sink: sink, mimeType: mimeType}, nil
}

type testRecording struct {
	encoder  *testEncoder
	sink     func([]byte)
	mimeType string
}

func (r *testRecording) MimeType() string {
	if r.mimeType == "" {
		return "audio/default"
	}
	return r.mimeType
}

// Stop delivers the buffered chunks late, as a browser encoder does on stop.
func (r *testRecording) Stop(ctx context.Context) error {
	time.Sleep(10 * time.Millisecond)
	for _, c := range r.encoder.chunks {
		r.sink(c)
	}
	r.encoder.device.events = append(r.encoder.device.events, "stop-ack")
	return r.encoder.stopErr
}

func newTestController(supported ...string) (*Controller, *testDevice, *testEncoder) {
	dev := &testDevice{}
	enc := &testEncoder{supported: map[string]bool{}, device: dev}
	for _, s := range supported {
		enc.supported[s] = true
	}
	return NewController(dev, enc), dev, enc
}

func TestController_InitialState(t *testing.T) {
	c, _, _ := newTestController()
	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}
}

func TestController_Start_TransitionsToRecording(t *testing.T) {
	c, dev, _ := newTestController("audio/webm")

	started, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !started {
		t.Error("expected Start to report started")
	}
	if c.State() != StateRecording {
		t.Errorf("expected StateRecording, got %v", c.State())
	}
	if dev.opens != 1 {
		t.Errorf("expected 1 device open, got %d", dev.opens)
	}
}

func TestController_Start_SingleFlight(t *testing.T) {
	c, dev, _ := newTestController("audio/webm")
	c.Start(context.Background())

	started, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started {
		t.Error("expected second Start to be a no-op")
	}
	if c.State() != StateRecording {
		t.Errorf("expected StateRecording unchanged, got %v", c.State())
	}
	if dev.opens != 1 {
		t.Errorf("expected no second device session, got %d opens", dev.opens)
	}
}

func TestController_Start_DeviceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind DeviceErrorKind
	}{
		{"denied", ErrPermissionDenied, DeviceDenied},
		{"absent", fmt.Errorf("mic: %w", ErrDeviceNotFound), DeviceAbsent},
		{"busy", ErrDeviceBusy, DeviceBusy},
		{"insecure", ErrInsecureContext, DeviceInsecureOrigin},
		{"other", errors.New("boom"), DeviceUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, dev, _ := newTestController("audio/webm")
			dev.err = tt.err

			started, err := c.Start(context.Background())
			if started {
				t.Error("expected Start to fail")
			}
			var dae *DeviceAccessError
			if !errors.As(err, &dae) {
				t.Fatalf("expected DeviceAccessError, got %v", err)
			}
			if dae.Kind != tt.kind {
				t.Errorf("expected kind %v, got %v", tt.kind, dae.Kind)
			}
			if dae.Message() == "" {
				t.Error("expected user-facing message")
			}
			if c.State() != StateIdle {
				t.Errorf("expected StateIdle after device error, got %v", c.State())
			}
		})
	}
}

func TestController_Start_EncoderErrorReleasesDevice(t *testing.T) {
	c, dev, enc := newTestController("audio/webm")
	enc.startErr = errors.New("no encoder")

	_, err := c.Start(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !dev.stream.released {
		t.Error("expected device to be released")
	}
	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}
}

func TestController_NegotiatesPreferredMimeType(t *testing.T) {
	tests := []struct {
		name      string
		supported []string
		want      string
	}{
		{"opus webm first", []string{"audio/webm;codecs=opus", "audio/webm", "audio/mp4"}, "audio/webm;codecs=opus"},
		{"ogg when no webm", []string{"audio/ogg;codecs=opus", "audio/mp4"}, "audio/ogg;codecs=opus"},
		{"mp4 safari", []string{"audio/mp4"}, "audio/mp4"},
		{"platform default", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, enc := newTestController(tt.supported...)
			c.Start(context.Background())
			if enc.started != tt.want {
				t.Errorf("expected %q, got %q", tt.want, enc.started)
			}
		})
	}
}

func TestController_StopAndSubmit_WaitsForStopBeforeRelease(t *testing.T) {
	c, dev, enc := newTestController("audio/webm")
	enc.chunks = [][]byte{[]byte("ab"), []byte("cd"), {}, []byte("ef")}
	c.Start(context.Background())

	var got Blob
	err := c.StopAndSubmit(context.Background(), func(ctx context.Context, blob Blob) error {
		got = blob
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dev.events) != 2 || dev.events[0] != "stop-ack" || dev.events[1] != "release" {
		t.Errorf("expected stop-ack before release, got %v", dev.events)
	}
	if string(got.Data) != "abcdef" {
		t.Errorf("expected all chunks assembled, got %q", got.Data)
	}
	if got.MimeType != "audio/webm" {
		t.Errorf("expected mime audio/webm, got %s", got.MimeType)
	}
	if got.Filename != "recording.webm" {
		t.Errorf("expected recording.webm, got %s", got.Filename)
	}
	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}
}

func TestController_StopAndSubmit_IdleAfterSubmitFailure(t *testing.T) {
	c, _, enc := newTestController("audio/webm")
	enc.chunks = [][]byte{[]byte("x")}
	c.Start(context.Background())

	submitErr := errors.New("pipeline failed")
	err := c.StopAndSubmit(context.Background(), func(ctx context.Context, blob Blob) error {
		if c.State() != StateFinalizing {
			t.Errorf("expected StateFinalizing during submit, got %v", c.State())
		}
		return submitErr
	})
	if !errors.Is(err, submitErr) {
		t.Errorf("expected submit error, got %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}

	// Can record again.
	started, err := c.Start(context.Background())
	if err != nil || !started {
		t.Errorf("expected restart to succeed, got started=%v err=%v", started, err)
	}
}

func TestController_StopAndSubmit_StartIgnoredWhileFinalizing(t *testing.T) {
	c, dev, _ := newTestController("audio/webm")
	c.Start(context.Background())

	c.StopAndSubmit(context.Background(), func(ctx context.Context, blob Blob) error {
		started, _ := c.Start(ctx)
		if started {
			t.Error("expected Start to be a no-op while finalizing")
		}
		return nil
	})
	if dev.opens != 1 {
		t.Errorf("expected 1 device open, got %d", dev.opens)
	}
}

func TestController_StopAndSubmit_EncoderStopError(t *testing.T) {
	c, dev, enc := newTestController("audio/webm")
	enc.stopErr = errors.New("encoder crashed")
	c.Start(context.Background())

	submitted := false
	err := c.StopAndSubmit(context.Background(), func(ctx context.Context, blob Blob) error {
		submitted = true
		return nil
	})
	if !errors.Is(err, ErrEncoderStop) {
		t.Errorf("expected ErrEncoderStop, got %v", err)
	}
	if submitted {
		t.Error("expected nothing submitted after encoder failure")
	}
	if !dev.stream.released {
		t.Error("expected device released after encoder failure")
	}
	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}
}

func TestController_StopAndSubmit_NotRecording(t *testing.T) {
	c, _, _ := newTestController()
	if err := c.StopAndSubmit(context.Background(), nil); !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording, got %v", err)
	}
}

func TestController_Cancel(t *testing.T) {
	c, dev, _ := newTestController("audio/webm")
	c.Start(context.Background())

	if err := c.Cancel(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dev.stream.released {
		t.Error("expected device released on cancel")
	}
	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}
}

func TestFilenameFor(t *testing.T) {
	tests := map[string]string{
		"audio/webm;codecs=opus": "recording.webm",
		"audio/ogg;codecs=opus":  "recording.ogg",
		"audio/mp4":              "recording.m4a",
		"audio/wav":              "recording.wav",
		"":                       "recording.webm",
	}
	for in, want := range tests {
		if got := FilenameFor(in); got != want {
			t.Errorf("FilenameFor(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestFileDevice_RecordsWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utterance.wav")
	payload := bytes.Repeat([]byte("pcm"), 1000)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatal(err)
	}

	enc := NewPassthroughEncoder("audio/wav")
	enc.Interval = 0
	c := NewController(NewFileDevice(path), enc)

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	var got Blob
	err := c.StopAndSubmit(context.Background(), func(ctx context.Context, blob Blob) error {
		got = blob
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got.Data, payload) {
		t.Errorf("expected %d bytes, got %d", len(payload), len(got.Data))
	}
	if got.MimeType != "audio/wav" {
		t.Errorf("expected audio/wav, got %s", got.MimeType)
	}
}

func TestFileDevice_Errors(t *testing.T) {
	missing := NewFileDevice(filepath.Join(t.TempDir(), "missing.wav"))
	_, err := missing.Open(context.Background())
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "a.wav")
	os.WriteFile(path, []byte("x"), 0o600)
	dev := NewFileDevice(path)
	s, err := dev.Open(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := dev.Open(context.Background()); !errors.Is(err, ErrDeviceBusy) {
		t.Errorf("expected ErrDeviceBusy, got %v", err)
	}
	s.Release()
	s2, err := dev.Open(context.Background())
	if err != nil {
		t.Errorf("expected reopen after release, got %v", err)
	} else {
		s2.Release()
	}
}
