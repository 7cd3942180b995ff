package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/abihf/framecast/capture"
	"github.com/abihf/framecast/protocol"
)

type State int32

const (
	StateConnected State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Recorder keeps a record of flushed captures.
type Recorder interface {
	Record(ctx context.Context, saved []capture.Saved) error
}

// Session serves one viewer: a broadcast goroutine pushes frames while the
// read loop answers commands one at a time.
type Session struct {
	ID string

	conn   *websocket.Conn
	engine *capture.Engine
	opt    *Option
	log    *slog.Logger

	writeMu sync.Mutex
	state   atomic.Int32
}

func newSession(conn *websocket.Conn, engine *capture.Engine, opt *Option, logger *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:     id,
		conn:   conn,
		engine: engine,
		opt:    opt,
		log:    logger.With("session", id, "remote", conn.RemoteAddr().String()),
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	if prev := State(s.state.Swap(int32(st))); prev != st {
		s.log.Debug("Session state changed", "from", prev, "to", st)
	}
}

// Run blocks until the viewer disconnects or ctx is done. The broadcast
// goroutine has exited by the time Run returns.
func (s *Session) Run(ctx context.Context) {
	defer s.conn.Close()
	s.log.Info("Client connected")

	ctx, cancel := context.WithCancel(ctx)
	stopClose := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stopClose()

	s.engine.Start()
	s.setState(StateStreaming)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.broadcast(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
		s.setState(StateClosed)
		s.log.Info("Client disconnected")
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("Read failed", "error", err)
			}
			return
		}
		s.handle(ctx, data)
	}
}

func (s *Session) handle(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Command panicked", "panic", r)
			s.reply(protocol.Error(fmt.Sprintf("Error processing command: %v", r)))
		}
	}()

	req, err := protocol.ReadReq(data)
	if err != nil {
		s.log.Debug("Malformed message", "error", err)
		s.reply(protocol.Error(protocol.ErrMalformed.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		s.reply(protocol.Error(err.Error()))
		return
	}

	if res := s.dispatch(ctx, req); res != nil {
		s.reply(res)
	}
}

func (s *Session) dispatch(ctx context.Context, req *protocol.Req) any {
	switch req.Kind() {
	case protocol.CommandCapture:
		count, entry, err := s.engine.Capture(req.FlightID, req.FieldID)
		if err != nil {
			return protocol.NoFrames("No frame available to capture")
		}
		return protocol.Captured(count, entry)

	case protocol.CommandSave:
		res, err := s.engine.Flush(ctx)
		if err != nil {
			return protocol.Error("Can not save captures: " + err.Error())
		}
		if res.Attempted == 0 {
			return protocol.NoFrames("No captures to save")
		}
		s.record(ctx, res.Saved)
		return protocol.Saved(res)

	case protocol.CommandUndo:
		entry, remaining, err := s.engine.Undo()
		if err != nil {
			return protocol.NoFrames("No captures to undo")
		}
		return protocol.Undone(remaining, entry)

	case protocol.CommandList:
		return protocol.List(s.engine.Captures())

	case protocol.CommandClear:
		return protocol.Cleared(s.engine.Clear())

	case protocol.CommandStatus:
		return protocol.Running(s.engine.Status())

	case protocol.CommandProcess:
		return protocol.Processed()

	case protocol.CommandStop:
		s.log.Info("Stop requested")
		s.engine.Stop()
		return nil

	case protocol.CommandUnknown:
		return protocol.UnknownCommand(req.Command)
	}
	return protocol.UnknownCommand(req.Command)
}

func (s *Session) record(ctx context.Context, saved []capture.Saved) {
	if s.opt.Recorder == nil || len(saved) == 0 {
		return
	}
	if err := s.opt.Recorder.Record(ctx, saved); err != nil {
		s.log.Error("Can not record saved captures", "error", err)
	}
}

func (s *Session) reply(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("Can not encode reply", "error", err)
		return
	}
	if err := s.write(data); err != nil {
		s.log.Debug("Can not send reply", "error", err)
	}
}

func (s *Session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.opt.WriteTimeout)); err != nil {
		return errors.Wrap(err, "Set write deadline failed")
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// broadcast sends the latest frame at the stream rate until ctx is done.
// Nothing is sent before the engine publishes its first frame.
func (s *Session) broadcast(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.opt.StreamFPS))
	defer ticker.Stop()

	var (
		last *capture.Frame
		msg  []byte
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := s.engine.LatestFrame()
		if frame == nil {
			continue
		}
		if frame != last {
			data, err := frame.EncodeJPEG(s.opt.StreamQuality)
			if err != nil {
				s.log.Warn("Can not encode frame", "error", err)
				continue
			}
			msg, err = json.Marshal(protocol.Frame(base64.StdEncoding.EncodeToString(data)))
			if err != nil {
				s.log.Warn("Can not encode frame message", "error", err)
				continue
			}
			last = frame
		}

		if err := s.write(msg); err != nil {
			if ctx.Err() == nil {
				s.log.Debug("Frame send failed", "error", err)
			}
			return
		}
	}
}
