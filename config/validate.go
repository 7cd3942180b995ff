package config

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/abihf/framecast/source"
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !slices.Contains(source.Kinds, c.Source.Kind) {
		return errors.Errorf("source.kind: unsupported value %q", c.Source.Kind)
	}
	if c.Source.Kind != source.KindPattern && c.Source.Path == "" {
		return errors.Errorf("source.path: required for %s sources", c.Source.Kind)
	}
	if c.Source.FPS < 0 {
		return errors.New("source.fps: must not be negative")
	}
	if c.Source.MaxWidth < 0 {
		return errors.New("source.max_width: must not be negative")
	}
	if c.Source.History < 0 {
		return errors.New("source.history: must not be negative")
	}
	for _, cpu := range c.Source.CPUs {
		if cpu < 0 {
			return errors.Errorf("source.cpus: invalid cpu %d", cpu)
		}
	}
	if c.Stream.FPS < 0 {
		return errors.New("stream.fps: must not be negative")
	}
	if c.Stream.Quality < 1 || c.Stream.Quality > 100 {
		return errors.Errorf("stream.quality: %d out of range 1-100", c.Stream.Quality)
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return errors.Errorf("output.quality: %d out of range 1-100", c.Output.Quality)
	}
	return nil
}
