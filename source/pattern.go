package source

import (
	"image"
	"image/color"
)

type PatternOptions struct {
	Width  int
	Height int
	FPS    float64
	// Length is the number of frames before end of stream. 0 never ends.
	Length int
}

// Pattern generates a gradient with a box moving across it. It needs no
// media and is the default source.
type Pattern struct {
	opt   PatternOptions
	frame int
	img   *image.RGBA
}

func NewPattern(opt PatternOptions) *Pattern {
	if opt.Width <= 0 {
		opt.Width = 640
	}
	if opt.Height <= 0 {
		opt.Height = 480
	}
	return &Pattern{
		opt: opt,
		img: image.NewRGBA(image.Rect(0, 0, opt.Width, opt.Height)),
	}
}

func (p *Pattern) Read() (image.Image, bool, error) {
	if p.opt.Length > 0 && p.frame >= p.opt.Length {
		return nil, false, nil
	}

	w, h := p.opt.Width, p.opt.Height
	box := h / 4
	if box < 1 {
		box = 1
	}
	span := w - box
	if span < 1 {
		span = 1
	}
	x0 := (p.frame * 4) % span
	y0 := (h - box) / 2
	shift := uint8(p.frame)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: shift,
				A: 255,
			}
			if x >= x0 && x < x0+box && y >= y0 && y < y0+box {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			p.img.SetRGBA(x, y, c)
		}
	}
	p.frame++
	return p.img, true, nil
}

func (p *Pattern) Rewind() error {
	p.frame = 0
	return nil
}

func (p *Pattern) FPS() float64 { return p.opt.FPS }

func (p *Pattern) Close() error { return nil }
