package source

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Sequence plays the images of a directory in name order.
type Sequence struct {
	files []string
	pos   int
	fps   float64
}

func OpenSequence(dir string, fps float64) (*Sequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "Can not read image directory")
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no images in %s", dir)
	}
	sort.Strings(files)

	return &Sequence{files: files, fps: fps}, nil
}

func (s *Sequence) Read() (image.Image, bool, error) {
	if s.pos >= len(s.files) {
		return nil, false, nil
	}
	name := s.files[s.pos]
	s.pos++

	f, err := os.Open(name)
	if err != nil {
		return nil, false, errors.Wrap(err, "Can not open image")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, false, errors.Wrapf(err, "Can not decode %s", filepath.Base(name))
	}
	return img, true, nil
}

func (s *Sequence) Rewind() error {
	s.pos = 0
	return nil
}

func (s *Sequence) FPS() float64 { return s.fps }

func (s *Sequence) Close() error { return nil }
