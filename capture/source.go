package capture

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

// DefaultFPS is used when a source can not report its frame rate.
const DefaultFPS = 30.0

var (
	// ErrSourceUnavailable means the media handle could not be opened or
	// stopped producing frames.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrNoFrame is returned by Capture when nothing has been published yet.
	ErrNoFrame = errors.New("no frame available")
	// ErrEmptyLedger is returned by Undo when there is nothing to remove.
	ErrEmptyLedger = errors.New("no captures")
)

// Source yields decoded frames from an opened media handle.
//
// Read returns more=false at end of stream; the engine then calls Rewind and
// keeps reading. The image returned by Read may be reused by the source on
// the next call.
type Source interface {
	Read() (img image.Image, more bool, err error)
	Rewind() error
	// FPS reports the nominal frame rate, or 0 when unknown.
	FPS() float64
	Close() error
}

// Opener opens a media handle. It is called from the capture goroutine.
type Opener func(ctx context.Context) (Source, error)

// Sink persists an encoded capture under the given file name.
type Sink interface {
	Write(ctx context.Context, filename string, data []byte) error
}
