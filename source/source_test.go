package source

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPattern_LoopsAfterLength(t *testing.T) {
	p := NewPattern(PatternOptions{Width: 64, Height: 48, Length: 2})

	img, more, err := p.Read()
	require.NoError(t, err)
	require.True(t, more)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())

	_, more, _ = p.Read()
	assert.True(t, more)
	_, more, _ = p.Read()
	assert.False(t, more)

	require.NoError(t, p.Rewind())
	_, more, _ = p.Read()
	assert.True(t, more)
	assert.Zero(t, p.FPS())
}

func TestPattern_Defaults(t *testing.T) {
	p := NewPattern(PatternOptions{})
	img, more, err := p.Read()
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestSequence_PlaysInNameOrder(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), color.RGBA{G: 255, A: 255})
	writePNG(t, filepath.Join(dir, "a.png"), color.RGBA{R: 255, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	s, err := OpenSequence(dir, 12)
	require.NoError(t, err)
	assert.Equal(t, 12.0, s.FPS())

	img, more, err := s.Read()
	require.NoError(t, err)
	require.True(t, more)
	r, g, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)

	_, more, _ = s.Read()
	assert.True(t, more)
	_, more, _ = s.Read()
	assert.False(t, more)

	require.NoError(t, s.Rewind())
	_, more, _ = s.Read()
	assert.True(t, more)
	assert.NoError(t, s.Close())
}

func TestOpenSequence_Errors(t *testing.T) {
	_, err := OpenSequence(filepath.Join(t.TempDir(), "missing"), 0)
	assert.Error(t, err)

	_, err = OpenSequence(t.TempDir(), 0)
	assert.ErrorContains(t, err, "no images")
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, 16)), nil))
	return buf.Bytes()
}

func TestReadJPEG_SplitsStream(t *testing.T) {
	one := encodeJPEG(t)
	var stream bytes.Buffer
	stream.WriteString("noise")
	stream.Write(one)
	stream.Write(one)

	r := bufio.NewReader(&stream)
	first, err := readJPEG(r)
	require.NoError(t, err)
	assert.Equal(t, one, first)

	second, err := readJPEG(r)
	require.NoError(t, err)
	_, err = jpeg.Decode(bytes.NewReader(second))
	assert.NoError(t, err)

	_, err = readJPEG(r)
	assert.Equal(t, io.EOF, err)
}

func TestReadJPEG_Truncated(t *testing.T) {
	one := encodeJPEG(t)
	r := bufio.NewReader(bytes.NewReader(one[:len(one)-10]))
	_, err := readJPEG(r)
	assert.ErrorContains(t, err, "truncated")
}

func TestParseRate(t *testing.T) {
	assert.InDelta(t, 29.97, parseRate("30000/1001\n"), 0.01)
	assert.Equal(t, 25.0, parseRate("25"))
	assert.Zero(t, parseRate("0/0"))
	assert.Zero(t, parseRate("N/A"))
}

func TestOpener(t *testing.T) {
	open, err := Opener(Options{Width: 32, Height: 16})
	require.NoError(t, err)
	src, err := open(context.Background())
	require.NoError(t, err)
	img, _, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())

	open, err = Opener(Options{Kind: "sequence", Path: filepath.Join(t.TempDir(), "none")})
	require.NoError(t, err)
	_, err = open(context.Background())
	assert.Error(t, err)

	_, err = Opener(Options{Kind: "rtsp"})
	assert.ErrorContains(t, err, "unknown source kind")
}

func TestOpenFFmpeg_MissingFile(t *testing.T) {
	_, err := OpenFFmpeg(context.Background(), filepath.Join(t.TempDir(), "VideoTest.mp4"), 0)
	assert.Error(t, err)
}

func TestHandle(t *testing.T) {
	assert.Equal(t, "pattern", Handle(Options{}))
	assert.Equal(t, "ffmpeg:/tmp/v.mp4", Handle(Options{Kind: "FFmpeg", Path: "/tmp/v.mp4"}))
}
