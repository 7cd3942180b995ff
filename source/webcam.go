//go:build linux

package source

import (
	"bytes"
	"image"
	"image/jpeg"
	"log/slog"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
)

const (
	pixelFormatMJPEG  webcam.PixelFormat = 0x47504A4D // 'MJPG'
	webcamWaitSeconds                    = 1
	webcamMaxTimeouts                    = 5
)

// Webcam streams MJPEG frames from a V4L2 device.
type Webcam struct {
	cam *webcam.Webcam
	fps float64
}

func OpenWebcam(device string, width, height int, fps float64) (*Webcam, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, errors.Wrap(err, "Can not open device")
	}

	if _, ok := cam.GetSupportedFormats()[pixelFormatMJPEG]; !ok {
		cam.Close()
		return nil, errors.Errorf("%s does not support MJPEG", device)
	}
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}
	_, w, h, err := cam.SetImageFormat(pixelFormatMJPEG, uint32(width), uint32(height))
	if err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "Can not set image format")
	}
	slog.Debug("Webcam format set", "device", device, "width", w, "height", h)

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "Can not start streaming")
	}
	return &Webcam{cam: cam, fps: fps}, nil
}

func (c *Webcam) Read() (image.Image, bool, error) {
	timeouts := 0
	for {
		err := c.cam.WaitForFrame(webcamWaitSeconds)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			timeouts++
			if timeouts >= webcamMaxTimeouts {
				return nil, false, errors.New("webcam stopped delivering frames")
			}
			continue
		default:
			return nil, false, errors.Wrap(err, "Frame wait failed")
		}

		frame, err := c.cam.ReadFrame()
		if err != nil {
			return nil, false, errors.Wrap(err, "Read frame failed")
		}
		if len(frame) == 0 {
			continue
		}

		img, err := jpeg.Decode(bytes.NewReader(frame))
		if err != nil {
			return nil, false, errors.Wrap(err, "Can not decode image")
		}
		return img, true, nil
	}
}

// Rewind is a no-op: a live device has no beginning to return to.
func (c *Webcam) Rewind() error { return nil }

func (c *Webcam) FPS() float64 { return c.fps }

func (c *Webcam) Close() error {
	if err := c.cam.StopStreaming(); err != nil {
		slog.Debug("Can not stop webcam streaming", "error", err)
	}
	return c.cam.Close()
}
