package capture

import (
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(w, h int) *Frame {
	return &Frame{Image: image.NewRGBA(image.Rect(0, 0, w, h)), Seq: 1}
}

func TestLedger_SequencePerPair(t *testing.T) {
	var l Ledger
	f := testFrame(4, 4)

	_, e1 := l.Append(f, "F1", "C1")
	_, e2 := l.Append(f, "F1", "C2")
	_, e3 := l.Append(f, "F1", "C1")
	n, e4 := l.Append(f, "F2", "C1")

	assert.Equal(t, 1, e1.SequenceNumber)
	assert.Equal(t, 1, e2.SequenceNumber)
	assert.Equal(t, 2, e3.SequenceNumber)
	assert.Equal(t, 1, e4.SequenceNumber)
	assert.Equal(t, 4, n)
	assert.Equal(t, "C1_F1_2.jpg", e3.Filename)
	assert.Equal(t, "C1_F2_1.jpg", e4.Filename)
}

func TestLedger_PopReusesTrailingNumber(t *testing.T) {
	var l Ledger
	f := testFrame(4, 4)

	l.Append(f, "F1", "C1")
	l.Append(f, "F1", "C1")

	popped, remaining := l.Pop()
	require.NotNil(t, popped)
	assert.Equal(t, "C1_F1_2.jpg", popped.Filename)
	assert.Equal(t, 1, remaining)

	_, again := l.Append(f, "F1", "C1")
	assert.Equal(t, 2, again.SequenceNumber)
	assert.Equal(t, "C1_F1_2.jpg", again.Filename)
}

func TestLedger_PopEmpty(t *testing.T) {
	var l Ledger
	entry, remaining := l.Pop()
	assert.Nil(t, entry)
	assert.Zero(t, remaining)
}

func TestLedger_ListKeepsCaptureOrder(t *testing.T) {
	var l Ledger
	f := testFrame(4, 4)
	l.Append(f, "F1", "C1")
	l.Append(f, "F2", "C9")
	l.Append(f, "F1", "C1")

	list := l.List()
	require.Len(t, list, 3)
	assert.Equal(t, Info{FlightID: "F1", FieldID: "C1", SequenceNumber: 1, Filename: "C1_F1_1.jpg"}, list[0])
	assert.Equal(t, Info{FlightID: "F2", FieldID: "C9", SequenceNumber: 1, Filename: "C9_F2_1.jpg"}, list[1])
	assert.Equal(t, Info{FlightID: "F1", FieldID: "C1", SequenceNumber: 2, Filename: "C1_F1_2.jpg"}, list[2])
}

func TestLedger_ClearAndDetach(t *testing.T) {
	var l Ledger
	f := testFrame(4, 4)
	l.Append(f, "F1", "C1")
	l.Append(f, "F1", "C1")

	assert.Equal(t, 2, l.Clear())
	assert.Empty(t, l.List())
	assert.Zero(t, l.Clear())

	l.Append(f, "F1", "C1")
	batch := l.Detach()
	assert.Len(t, batch, 1)
	assert.Zero(t, l.Len())

	_, e := l.Append(f, "F1", "C1")
	assert.Equal(t, 1, e.SequenceNumber)
}

func TestLedger_ConcurrentAppendsStayGapless(t *testing.T) {
	var l Ledger
	f := testFrame(4, 4)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(f, "F1", "C1")
		}()
	}
	wg.Wait()

	list := l.List()
	require.Len(t, list, 50)
	for i, info := range list {
		assert.Equal(t, i+1, info.SequenceNumber)
	}
}

func TestLedger_RequeueGoesFirst(t *testing.T) {
	var l Ledger
	f := testFrame(4, 4)
	l.Append(f, "F1", "C1")
	l.Append(f, "F1", "C2")
	batch := l.Detach()

	l.Append(f, "F2", "C1")
	l.Requeue(batch[1:])
	l.Requeue(nil)

	list := l.List()
	require.Len(t, list, 2)
	assert.Equal(t, "C2_F1_1.jpg", list[0].Filename)
	assert.Equal(t, "C1_F2_1.jpg", list[1].Filename)

	_, e := l.Append(f, "F1", "C2")
	assert.Equal(t, 2, e.SequenceNumber)
}
