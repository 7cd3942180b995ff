package source

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FFmpeg decodes a video file with an ffmpeg subprocess emitting a stream of
// JPEG images on its stdout.
type FFmpeg struct {
	ctx  context.Context
	path string
	fps  float64

	cancel context.CancelFunc
	cmd    *exec.Cmd
	out    *bufio.Reader
}

func OpenFFmpeg(ctx context.Context, path string, fps float64) (*FFmpeg, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "Can not open video")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, errors.Wrap(err, "ffmpeg not found")
	}

	if fps <= 0 {
		fps = probeFPS(ctx, path)
	}
	f := &FFmpeg{ctx: ctx, path: path, fps: fps}
	if err := f.spawn(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FFmpeg) spawn() error {
	ctx, cancel := context.WithCancel(f.ctx)
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-nostdin",
		"-loglevel", "error",
		"-i", f.path,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return errors.Wrap(err, "ffmpeg stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return errors.Wrap(err, "Can not start ffmpeg")
	}

	f.cancel = cancel
	f.cmd = cmd
	f.out = bufio.NewReaderSize(stdout, 1<<20)
	return nil
}

func (f *FFmpeg) Read() (image.Image, bool, error) {
	data, err := readJPEG(f.out)
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, errors.Wrap(err, "Can not decode frame")
	}
	return img, true, nil
}

// Rewind restarts ffmpeg from the beginning of the file.
func (f *FFmpeg) Rewind() error {
	f.kill()
	return f.spawn()
}

func (f *FFmpeg) FPS() float64 { return f.fps }

func (f *FFmpeg) Close() error {
	f.kill()
	return nil
}

func (f *FFmpeg) kill() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	_ = f.cmd.Wait()
	f.cancel = nil
}

// readJPEG returns the next complete JPEG image (SOI through EOI) from r.
// Bytes before the start marker are skipped. io.EOF means no further image.
func readJPEG(r *bufio.Reader) ([]byte, error) {
	var prev byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, io.EOF
		}
		if prev == 0xFF && b == 0xD8 {
			break
		}
		prev = b
	}

	buf := []byte{0xFF, 0xD8}
	prev = 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, errors.New("truncated jpeg frame")
		}
		buf = append(buf, b)
		if prev == 0xFF && b == 0xD9 {
			return buf, nil
		}
		prev = b
	}
}

// probeFPS asks ffprobe for the average frame rate, 0 when it can not tell.
func probeFPS(ctx context.Context, path string) float64 {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate",
		"-of", "csv=p=0",
		path,
	).Output()
	if err != nil {
		return 0
	}
	return parseRate(string(out))
}

// parseRate understands ffprobe rates such as "30000/1001" or "25".
func parseRate(s string) float64 {
	s = strings.TrimSpace(s)
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
