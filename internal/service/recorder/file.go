package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"
)

// FileDevice plays back an audio file as if it were a microphone. Only one
// stream may be open at a time.
type FileDevice struct {
	Path string

	mu   sync.Mutex
	open bool
}

// NewFileDevice creates a device backed by the file at path.
func NewFileDevice(path string) *FileDevice {
	return &FileDevice{Path: path}
}

// Open returns a stream over the file contents.
func (d *FileDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return nil, fmt.Errorf("%s: %w", d.Path, ErrDeviceBusy)
	}

	f, err := os.Open(d.Path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%s: %w", d.Path, ErrDeviceNotFound)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%s: %w", d.Path, ErrPermissionDenied)
		default:
			return nil, err
		}
	}
	d.open = true
	return &fileStream{file: f, device: d}, nil
}

type fileStream struct {
	file   *os.File
	device *FileDevice
	once   sync.Once
}

func (s *fileStream) Read(p []byte) (int, error) {
	return s.file.Read(p)
}

func (s *fileStream) Release() error {
	var err error
	s.once.Do(func() {
		err = s.file.Close()
		s.device.mu.Lock()
		s.device.open = false
		s.device.mu.Unlock()
	})
	return err
}

// PassthroughEncoder forwards the stream bytes unchanged in fixed-size chunks,
// paced like a live capture.
type PassthroughEncoder struct {
	MimeTypeName string
	ChunkSize    int
	Interval     time.Duration
}

// NewPassthroughEncoder returns an encoder producing mimeType, with 100ms
// chunks of 8kHz 16-bit mono audio.
func NewPassthroughEncoder(mimeType string) *PassthroughEncoder {
	return &PassthroughEncoder{
		MimeTypeName: mimeType,
		ChunkSize:    1600,
		Interval:     100 * time.Millisecond,
	}
}

// IsTypeSupported reports whether mimeType is the one this encoder passes through.
func (e *PassthroughEncoder) IsTypeSupported(mimeType string) bool {
	return mimeType == e.MimeTypeName
}

// Start begins copying chunks from stream to sink until EOF or Stop.
func (e *PassthroughEncoder) Start(stream Stream, mimeType string, sink func(chunk []byte)) (Recording, error) {
	if mimeType != "" && !e.IsTypeSupported(mimeType) {
		return nil, fmt.Errorf("unsupported mime type %q", mimeType)
	}
	chunkSize := e.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1600
	}

	r := &passthroughRecording{
		mimeType: e.MimeTypeName,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(r.done)
		var tick <-chan time.Time
		if e.Interval > 0 {
			ticker := time.NewTicker(e.Interval)
			defer ticker.Stop()
			tick = ticker.C
		}
		buf := make([]byte, chunkSize)
		for {
			n, err := io.ReadFull(stream, buf)
			if n > 0 {
				sink(buf[:n])
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					r.err = err
				}
				<-r.stop
				return
			}
			select {
			case <-r.stop:
				return
			default:
			}
			if tick != nil {
				select {
				case <-r.stop:
					return
				case <-tick:
				}
			}
		}
	}()

	return r, nil
}

type passthroughRecording struct {
	mimeType string
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	err      error
}

func (r *passthroughRecording) MimeType() string {
	return r.mimeType
}

// Stop waits until the copy goroutine delivered its last chunk.
func (r *passthroughRecording) Stop(ctx context.Context) error {
	r.once.Do(func() { close(r.stop) })
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
