package capture

import (
	"context"
	"image"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/abihf/framecast/utils/thread"
)

// DefaultSaveQuality is the JPEG quality used when flushing captures.
const DefaultSaveQuality = 95

type Option struct {
	// Handle names the media source in status reports and logs.
	Handle string
	Open   Opener
	Sink   Sink

	MaxWidth    int
	History     int
	SaveQuality int
	// Affinity pins the capture goroutine to these cores when not empty.
	Affinity []int

	Logger *slog.Logger
}

// SourceError wraps a failure of the media source. It matches
// ErrSourceUnavailable with errors.Is.
type SourceError struct {
	Handle string
	Err    error
}

func (e *SourceError) Error() string {
	return "source " + e.Handle + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool { return target == ErrSourceUnavailable }

// Status is a snapshot of the engine's live state.
type Status struct {
	Running       bool    `json:"running"`
	FPS           float64 `json:"fps"`
	BufferDepth   int     `json:"bufferDepth"`
	CapturedCount int     `json:"capturedCount"`
	HasFrame      bool    `json:"hasFrame"`
	Source        string  `json:"source"`
	Error         string  `json:"error,omitempty"`
}

// Saved describes a capture written by Flush.
type Saved struct {
	Filename       string `json:"filename"`
	FieldID        string `json:"fieldId"`
	FlightID       string `json:"flightId"`
	SequenceNumber int    `json:"sequenceNumber"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

type FlushResult struct {
	Attempted int
	Saved     []Saved
	// Failed lists the file names the sink rejected. Those captures are gone.
	Failed []string
	// Requeued counts captures left in the ledger because ctx ended first.
	Requeued int
}

// Engine runs the capture loop of one media source and owns the ledger of
// captures taken from it.
type Engine struct {
	opt    Option
	log    *slog.Logger
	buffer *Buffer
	ledger Ledger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	running atomic.Bool
	fps     atomic.Uint64
	lastErr atomic.Pointer[string]
	seq     uint64

	flushMu sync.Mutex
}

func NewEngine(opt Option) *Engine {
	if opt.MaxWidth == 0 {
		opt.MaxWidth = DefaultMaxWidth
	}
	if opt.SaveQuality <= 0 || opt.SaveQuality > 100 {
		opt.SaveQuality = DefaultSaveQuality
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		opt:    opt,
		log:    logger.With("component", "capture", "source", opt.Handle),
		buffer: NewBuffer(opt.History),
	}
	e.fps.Store(math.Float64bits(DefaultFPS))
	return e
}

// Start launches the capture loop unless it is already running. Source
// failures are reported through Status, never by Start.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		return
	}
	if e.done != nil {
		// previous loop died on its own; make sure it released the source
		e.cancel()
		<-e.done
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.lastErr.Store(nil)
	e.running.Store(true)

	go e.run(ctx, e.done)
	e.log.Info("Capture started")
}

// Stop ends the capture loop and waits until the source is released.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil
	e.running.Store(false)
	e.log.Info("Capture stopped")
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer e.running.Store(false)

	if err := e.loop(ctx); err != nil {
		msg := err.Error()
		e.lastErr.Store(&msg)
		e.log.Error("Capture loop failed", "error", err)
	}
}

func (e *Engine) loop(ctx context.Context) error {
	if len(e.opt.Affinity) > 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := thread.SetCPUAffinity(e.opt.Affinity...); err != nil {
			e.log.Warn("Can not pin capture thread", "error", err)
		}
	}

	if e.opt.Open == nil {
		return &SourceError{Handle: e.opt.Handle, Err: errors.New("no opener configured")}
	}
	src, err := e.opt.Open(ctx)
	if err != nil {
		return &SourceError{Handle: e.opt.Handle, Err: errors.Wrap(err, "Can not open source")}
	}
	defer func() {
		if err := src.Close(); err != nil {
			e.log.Warn("Can not release source", "error", err)
		}
	}()

	fps := src.FPS()
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = DefaultFPS
	}
	e.fps.Store(math.Float64bits(fps))
	e.log.Info("Source opened", "fps", fps)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

	rewound := false
	for {
		if ctx.Err() != nil {
			return nil
		}

		img, more, err := src.Read()
		if ctx.Err() != nil {
			// sources bound to ctx end their stream when it is cancelled
			return nil
		}
		if err != nil {
			return &SourceError{Handle: e.opt.Handle, Err: errors.Wrap(err, "Read frame failed")}
		}
		if !more {
			if rewound {
				return &SourceError{Handle: e.opt.Handle, Err: errors.New("no frames after rewind")}
			}
			e.log.Debug("End of stream, rewinding")
			if err := src.Rewind(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return &SourceError{Handle: e.opt.Handle, Err: errors.Wrap(err, "Rewind failed")}
			}
			rewound = true
			continue
		}
		rewound = false
		e.publish(img)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (e *Engine) publish(img image.Image) {
	e.seq++
	e.buffer.Publish(&Frame{
		Image: prepare(img, e.opt.MaxWidth),
		Seq:   e.seq,
		Time:  time.Now(),
	})
}

// LatestFrame returns the most recent frame or nil. Frames stay readable
// after Stop.
func (e *Engine) LatestFrame() *Frame {
	return e.buffer.Latest()
}

// Capture retains the latest frame under (flightID, fieldID). It returns the
// ledger size after the append and the new entry, or ErrNoFrame.
func (e *Engine) Capture(flightID, fieldID string) (int, *Entry, error) {
	frame := e.buffer.Latest()
	if frame == nil {
		return 0, nil, ErrNoFrame
	}
	count, entry := e.ledger.Append(frame, flightID, fieldID)
	e.log.Info("Frame captured", "filename", entry.Filename, "count", count)
	return count, entry, nil
}

// Undo removes the most recent capture and returns it with the remaining
// ledger size, or ErrEmptyLedger.
func (e *Engine) Undo() (*Entry, int, error) {
	entry, remaining := e.ledger.Pop()
	if entry == nil {
		return nil, 0, ErrEmptyLedger
	}
	e.log.Info("Capture undone", "filename", entry.Filename, "count", remaining)
	return entry, remaining, nil
}

func (e *Engine) Captures() []Info {
	return e.ledger.List()
}

// Clear discards all captures without touching the sink.
func (e *Engine) Clear() int {
	n := e.ledger.Clear()
	e.log.Info("Captures cleared", "count", n)
	return n
}

// Flush writes every capture held at call time to the sink and removes them
// from the ledger. Captures the sink rejects are logged and dropped; the rest
// of the batch is still attempted. Once ctx ends, the captures not yet written
// go back to the ledger.
func (e *Engine) Flush(ctx context.Context) (*FlushResult, error) {
	if e.opt.Sink == nil {
		return nil, errors.New("no sink configured")
	}

	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	batch := e.ledger.Detach()
	res := &FlushResult{Attempted: len(batch), Saved: []Saved{}}
	var rest []*Entry
	for i, entry := range batch {
		if err := e.write(ctx, entry); err != nil {
			if ctx.Err() != nil {
				rest = batch[i:]
				break
			}
			e.log.Error("Can not save capture", "filename", entry.Filename, "error", err)
			res.Failed = append(res.Failed, entry.Filename)
			continue
		}
		res.Saved = append(res.Saved, Saved{
			Filename:       entry.Filename,
			FieldID:        entry.FieldID,
			FlightID:       entry.FlightID,
			SequenceNumber: entry.SequenceNumber,
			Width:          entry.Frame.Width(),
			Height:         entry.Frame.Height(),
		})
	}
	if len(rest) > 0 {
		e.ledger.Requeue(rest)
		res.Requeued = len(rest)
		e.log.Warn("Flush interrupted, captures kept", "count", len(rest), "error", ctx.Err())
	}
	if res.Attempted > 0 {
		e.log.Info("Captures flushed", "saved", len(res.Saved), "failed", len(res.Failed))
	}
	return res, nil
}

func (e *Engine) write(ctx context.Context, entry *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := entry.Frame.EncodeJPEG(e.opt.SaveQuality)
	if err != nil {
		return err
	}
	return e.opt.Sink.Write(ctx, entry.Filename, data)
}

func (e *Engine) Status() Status {
	st := Status{
		Running:       e.running.Load(),
		FPS:           math.Float64frombits(e.fps.Load()),
		BufferDepth:   e.buffer.Depth(),
		CapturedCount: e.ledger.Len(),
		HasFrame:      e.buffer.Latest() != nil,
		Source:        e.opt.Handle,
	}
	if msg := e.lastErr.Load(); msg != nil {
		st.Error = *msg
	}
	return st
}
