package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/abihf/framecast/capture"
	"github.com/abihf/framecast/config"
	"github.com/abihf/framecast/logging"
	"github.com/abihf/framecast/server"
	"github.com/abihf/framecast/sink"
	"github.com/abihf/framecast/source"
)

type flags struct {
	config     string
	sourceKind string
	source     string
	bind       string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "framecastd",
		Short:         "Stream video frames to viewers and keep their captures",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, &f)
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&f.sourceKind, "source-kind", "", "Source kind: pattern, sequence, ffmpeg or webcam")
	cmd.Flags().StringVar(&f.source, "source", "", "Media handle: directory, video file or device")
	cmd.Flags().StringVar(&f.bind, "bind", "", "Listen address")
	return cmd
}

func loadConfig(f *flags) (*config.Config, error) {
	conf, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}
	if f.sourceKind != "" {
		conf.Source.Kind = strings.ToLower(f.sourceKind)
	}
	if f.source != "" {
		conf.Source.Path = f.source
	}
	if f.bind != "" {
		conf.Server.Bind = f.bind
	}
	return conf, conf.Validate()
}

func serve(ctx context.Context, f *flags) error {
	conf, err := loadConfig(f)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: conf.Logging.Level, Format: conf.Logging.Format})
	if err != nil {
		return errors.Wrap(err, "Can not initialize logger")
	}
	slog.SetDefault(logger)

	lock := flock.New(conf.LockFile)
	ok, err := lock.TryLock()
	if err != nil {
		return errors.Wrap(err, "Can not acquire lock")
	}
	if !ok {
		return errors.New("already run")
	}
	defer lock.Unlock() //nolint:errcheck

	out, err := sink.NewDir(conf.Output.Dir)
	if err != nil {
		return err
	}

	var recorder server.Recorder
	if conf.Output.Manifest != "" {
		manifest, err := sink.OpenManifest(conf.Output.Manifest)
		if err != nil {
			return err
		}
		defer manifest.Close()
		recorder = manifest
	}

	srcOpts := conf.SourceOptions()
	open, err := source.Opener(srcOpts)
	if err != nil {
		return err
	}

	engine := capture.NewEngine(capture.Option{
		Handle:      source.Handle(srcOpts),
		Open:        open,
		Sink:        out,
		MaxWidth:    conf.Source.MaxWidth,
		History:     conf.Source.History,
		SaveQuality: conf.Output.Quality,
		Affinity:    conf.Source.CPUs,
		Logger:      logger,
	})
	defer engine.Stop()

	srv := server.New(engine, server.Option{
		Bind:          conf.Server.Bind,
		Path:          conf.Server.Path,
		StreamFPS:     conf.Stream.FPS,
		StreamQuality: conf.Stream.Quality,
		Recorder:      recorder,
		Logger:        logger,
	})
	if err := srv.Start(); err != nil {
		return err
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("Can not notify systemd", "error", err)
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown", "error", err)
	}
	return nil
}
