// Package source provides the media sources the capture engine can read
// from: synthetic test patterns, image directories, video files decoded by
// ffmpeg and V4L2 webcams.
package source

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/abihf/framecast/capture"
)

const (
	KindPattern  = "pattern"
	KindSequence = "sequence"
	KindFFmpeg   = "ffmpeg"
	KindWebcam   = "webcam"
)

// Kinds lists the accepted source kinds.
var Kinds = []string{KindPattern, KindSequence, KindFFmpeg, KindWebcam}

type Options struct {
	Kind string
	// Path is the media handle: a directory, a video file or a device node.
	// Unused by the pattern source.
	Path string
	// FPS overrides the frame rate the source reports. 0 keeps the source's own.
	FPS    float64
	Width  int
	Height int
}

// Opener returns a function opening the configured source.
func Opener(opt Options) (capture.Opener, error) {
	kind := strings.ToLower(strings.TrimSpace(opt.Kind))
	switch kind {
	case "", KindPattern:
		return func(context.Context) (capture.Source, error) {
			return NewPattern(PatternOptions{Width: opt.Width, Height: opt.Height, FPS: opt.FPS}), nil
		}, nil
	case KindSequence:
		return func(context.Context) (capture.Source, error) {
			return OpenSequence(opt.Path, opt.FPS)
		}, nil
	case KindFFmpeg:
		return func(ctx context.Context) (capture.Source, error) {
			return OpenFFmpeg(ctx, opt.Path, opt.FPS)
		}, nil
	case KindWebcam:
		return func(context.Context) (capture.Source, error) {
			return OpenWebcam(opt.Path, opt.Width, opt.Height, opt.FPS)
		}, nil
	default:
		return nil, errors.Errorf("unknown source kind %q", opt.Kind)
	}
}

// Handle describes the source for logs and status replies.
func Handle(opt Options) string {
	kind := strings.ToLower(strings.TrimSpace(opt.Kind))
	if kind == "" {
		kind = KindPattern
	}
	if opt.Path == "" {
		return kind
	}
	return kind + ":" + opt.Path
}
