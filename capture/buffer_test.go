package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_LatestAndDepth(t *testing.T) {
	b := NewBuffer(3)
	assert.Nil(t, b.Latest())
	assert.Zero(t, b.Depth())

	for i := 1; i <= 5; i++ {
		f := testFrame(2, 2)
		f.Seq = uint64(i)
		b.Publish(f)
	}

	assert.Equal(t, uint64(5), b.Latest().Seq)
	assert.Equal(t, 3, b.Depth())
}

func TestNewBuffer_DefaultDepth(t *testing.T) {
	b := NewBuffer(0)
	for i := 0; i < DefaultHistory+10; i++ {
		b.Publish(testFrame(1, 1))
	}
	assert.Equal(t, DefaultHistory, b.Depth())
}

func TestPrepare_DownscalesWideFrames(t *testing.T) {
	src := testFrame(2560, 1440).Image

	img := prepare(src, DefaultMaxWidth)
	assert.Equal(t, 1280, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())
}

func TestPrepare_CopiesNarrowFrames(t *testing.T) {
	src := testFrame(640, 480).Image

	img := prepare(src, DefaultMaxWidth)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())
	assert.NotSame(t, src, img)
}
