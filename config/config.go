package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/abihf/framecast/source"
)

// DefaultPath is read when no config file is given.
const DefaultPath = "/etc/framecast/config.toml"

type Server struct {
	Bind string `toml:"bind"`
	Path string `toml:"path"`
}

type Source struct {
	Kind     string  `toml:"kind"`
	Path     string  `toml:"path"`
	FPS      float64 `toml:"fps"`
	Width    int     `toml:"width"`
	Height   int     `toml:"height"`
	MaxWidth int     `toml:"max_width"`
	History  int     `toml:"history"`
	CPUs     []int   `toml:"cpus"`
}

type Stream struct {
	FPS     float64 `toml:"fps"`
	Quality int     `toml:"quality"`
}

type Output struct {
	Dir      string `toml:"dir"`
	Quality  int    `toml:"quality"`
	Manifest string `toml:"manifest"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Config struct {
	Server   Server  `toml:"server"`
	Source   Source  `toml:"source"`
	Stream   Stream  `toml:"stream"`
	Output   Output  `toml:"output"`
	Logging  Logging `toml:"logging"`
	LockFile string  `toml:"lock_file"`
}

func Default() Config {
	return Config{
		Server: Server{
			Bind: "localhost:8000",
			Path: "/",
		},
		Source: Source{
			Kind:     source.KindPattern,
			MaxWidth: 1280,
			History:  30,
		},
		Stream: Stream{
			FPS:     30,
			Quality: 80,
		},
		Output: Output{
			Dir:      "captures",
			Quality:  95,
			Manifest: "captures/captures.db",
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
		LockFile: "/tmp/framecastd.lock",
	}
}

// Load reads the config file at path, DefaultPath when empty. A missing file
// is not an error: the defaults are used and a warning is logged.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	conf := Default()
	err := loadFromFile(path, &conf)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load config file", "path", path, "error", err)
	} else if err != nil {
		return nil, err
	}

	conf.normalize()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func loadFromFile(path string, conf *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := toml.NewDecoder(file).Decode(conf); err != nil {
		return errors.Wrapf(err, "Can not parse %s", path)
	}
	return nil
}

func (c *Config) normalize() {
	def := Default()
	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	if c.Source.Kind == "" {
		c.Source.Kind = def.Source.Kind
	}
	if c.Server.Bind == "" {
		c.Server.Bind = def.Server.Bind
	}
	if c.Server.Path == "" {
		c.Server.Path = def.Server.Path
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		c.Server.Path = "/" + c.Server.Path
	}
	if c.Source.MaxWidth == 0 {
		c.Source.MaxWidth = def.Source.MaxWidth
	}
	if c.Source.History == 0 {
		c.Source.History = def.Source.History
	}
	if c.Stream.FPS == 0 {
		c.Stream.FPS = def.Stream.FPS
	}
	if c.Stream.Quality == 0 {
		c.Stream.Quality = def.Stream.Quality
	}
	if c.Output.Dir == "" {
		c.Output.Dir = def.Output.Dir
	}
	if c.Output.Quality == 0 {
		c.Output.Quality = def.Output.Quality
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// SourceOptions converts the source section for the source package.
func (c *Config) SourceOptions() source.Options {
	return source.Options{
		Kind:   c.Source.Kind,
		Path:   c.Source.Path,
		FPS:    c.Source.FPS,
		Width:  c.Source.Width,
		Height: c.Source.Height,
	}
}
