package protocol

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/abihf/framecast/capture"
)

// DefaultAddress is where framecastd listens unless configured otherwise.
const DefaultAddress = "localhost:8000"

// ErrMalformed is returned for messages that are not a JSON command object.
var ErrMalformed = errors.New("invalid message format")

type Command int

const (
	CommandUnknown Command = iota
	CommandCapture
	CommandSave
	CommandUndo
	CommandList
	CommandClear
	CommandStatus
	CommandProcess
	CommandStop
)

var commandNames = map[Command]string{
	CommandCapture: "capture",
	CommandSave:    "saveCaptures",
	CommandUndo:    "undo",
	CommandList:    "list_captures",
	CommandClear:   "clear",
	CommandStatus:  "status",
	CommandProcess: "process",
	CommandStop:    "stop",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

func ParseCommand(name string) Command {
	for c, n := range commandNames {
		if n == name {
			return c
		}
	}
	return CommandUnknown
}

// Req is a message sent by the viewer.
type Req struct {
	Command  string `json:"command"`
	FlightID string `json:"flightId,omitempty"`
	FieldID  string `json:"fieldId,omitempty"`
}

func (r *Req) Kind() Command {
	return ParseCommand(r.Command)
}

// Validate checks the fields the command needs.
func (r *Req) Validate() error {
	if r.Kind() != CommandCapture {
		return nil
	}
	var missing []string
	if strings.TrimSpace(r.FlightID) == "" {
		missing = append(missing, "flightId")
	}
	if strings.TrimSpace(r.FieldID) == "" {
		missing = append(missing, "fieldId")
	}
	if len(missing) > 0 {
		return errors.Errorf("capture requires %s", strings.Join(missing, " and "))
	}
	if err := checkID("flightId", r.FlightID); err != nil {
		return err
	}
	return checkID("fieldId", r.FieldID)
}

// checkID rejects ids that can not be part of a file name.
func checkID(name, id string) error {
	if strings.ContainsAny(id, "/\\\x00") || strings.HasPrefix(id, ".") {
		return errors.Errorf("invalid %s %q", name, id)
	}
	return nil
}

func ReadReq(data []byte) (*Req, error) {
	var req Req
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	return &req, nil
}

type Type string

const (
	TypeFrame        Type = "frame"
	TypeResponse     Type = "response"
	TypeCapturesList Type = "captures_list"
	TypeError        Type = "error"
)

type Status string

const (
	StatusCaptured  Status = "captured"
	StatusSaved     Status = "saved"
	StatusUndone    Status = "undone"
	StatusNoFrames  Status = "no_frames"
	StatusCleared   Status = "cleared"
	StatusRunning   Status = "running"
	StatusProcessed Status = "processed"
)

// Envelope holds the fields shared by every server message.
type Envelope struct {
	Type    Type   `json:"type"`
	Status  Status `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

type FrameMsg struct {
	Type Type `json:"type"`
	// Data is the base64 encoded JPEG image.
	Data string `json:"data"`
}

type CapturedRes struct {
	Envelope
	Count          int    `json:"count"`
	SequenceNumber int    `json:"sequenceNumber"`
	Filename       string `json:"filename"`
}

type SavedRes struct {
	Envelope
	Count    int             `json:"count"`
	Failed   []string        `json:"failed,omitempty"`
	Requeued int             `json:"requeued,omitempty"`
	Captures []capture.Saved `json:"captures"`
}

type UndoneRes struct {
	Envelope
	Count          int    `json:"count"`
	Filename       string `json:"filename"`
	SequenceNumber int    `json:"sequenceNumber"`
}

type ClearedRes struct {
	Envelope
	ClearedCount int `json:"clearedCount"`
}

type StatusRes struct {
	Envelope
	Engine capture.Status `json:"engine"`
}

type CapturesList struct {
	Type     Type           `json:"type"`
	Captures []capture.Info `json:"captures"`
}

func Frame(data string) *FrameMsg {
	return &FrameMsg{Type: TypeFrame, Data: data}
}

func response(status Status, message string) Envelope {
	return Envelope{Type: TypeResponse, Status: status, Message: message}
}

func Captured(count int, entry *capture.Entry) *CapturedRes {
	return &CapturedRes{
		Envelope:       response(StatusCaptured, ""),
		Count:          count,
		SequenceNumber: entry.SequenceNumber,
		Filename:       entry.Filename,
	}
}

func Saved(res *capture.FlushResult) *SavedRes {
	return &SavedRes{
		Envelope: response(StatusSaved, "Captures saved"),
		Count:    len(res.Saved),
		Failed:   res.Failed,
		Requeued: res.Requeued,
		Captures: res.Saved,
	}
}

func Undone(remaining int, entry *capture.Entry) *UndoneRes {
	return &UndoneRes{
		Envelope:       response(StatusUndone, ""),
		Count:          remaining,
		Filename:       entry.Filename,
		SequenceNumber: entry.SequenceNumber,
	}
}

func Cleared(n int) *ClearedRes {
	return &ClearedRes{Envelope: response(StatusCleared, ""), ClearedCount: n}
}

func Running(st capture.Status) *StatusRes {
	return &StatusRes{Envelope: response(StatusRunning, ""), Engine: st}
}

func NoFrames(message string) *Envelope {
	env := response(StatusNoFrames, message)
	return &env
}

// Processed answers the process command. Frame analysis is not implemented.
func Processed() *Envelope {
	env := response(StatusProcessed, "process command not implemented")
	return &env
}

func List(captures []capture.Info) *CapturesList {
	if captures == nil {
		captures = []capture.Info{}
	}
	return &CapturesList{Type: TypeCapturesList, Captures: captures}
}

func Error(message string) *Envelope {
	return &Envelope{Type: TypeError, Message: message}
}

func UnknownCommand(name string) *Envelope {
	return Error("unknown command: " + name)
}
