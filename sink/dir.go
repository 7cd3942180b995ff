package sink

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Dir writes captures as files into a directory.
type Dir struct {
	Path string
}

// NewDir creates the directory if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrap(err, "Can not create output directory")
	}
	return &Dir{Path: path}, nil
}

// Write stores data under filename. The file appears atomically: it is
// written to a temporary name first and renamed into place.
func (d *Dir) Write(ctx context.Context, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return errors.Errorf("invalid file name %q", filename)
	}

	tmp, err := os.CreateTemp(d.Path, ".capture-*")
	if err != nil {
		return errors.Wrap(err, "Can not create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "Can not write %s", filename)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "Can not write %s", filename)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.Path, filename)); err != nil {
		return errors.Wrapf(err, "Can not save %s", filename)
	}
	return nil
}
