//go:build !linux

package source

import (
	"image"

	"github.com/pkg/errors"
)

type Webcam struct{}

func OpenWebcam(device string, width, height int, fps float64) (*Webcam, error) {
	return nil, errors.New("webcam sources are only supported on linux")
}

func (c *Webcam) Read() (image.Image, bool, error) { return nil, false, nil }

func (c *Webcam) Rewind() error { return nil }

func (c *Webcam) FPS() float64 { return 0 }

func (c *Webcam) Close() error { return nil }
