package capture

import (
	"bytes"
	"image"
	"image/jpeg"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// DefaultMaxWidth is the widest frame the engine publishes without scaling.
const DefaultMaxWidth = 1280

// Frame is a published video frame. Its image is never written to after
// publication, so it can be shared freely between goroutines.
type Frame struct {
	Image image.Image
	Seq   uint64
	Time  time.Time
}

func (f *Frame) Width() int {
	return f.Image.Bounds().Dx()
}

func (f *Frame) Height() int {
	return f.Image.Bounds().Dy()
}

// EncodeJPEG compresses the frame at the given quality.
func (f *Frame) EncodeJPEG(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.Wrap(err, "Can not encode frame")
	}
	return buf.Bytes(), nil
}

// prepare copies src into a fresh image owned by the engine, downscaling it
// when it is wider than maxWidth.
func prepare(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth > 0 && w > maxWidth {
		nh := h * maxWidth / w
		if nh < 1 {
			nh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, nh))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		return dst
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Copy(dst, image.Point{}, src, b, draw.Src, nil)
	return dst
}
