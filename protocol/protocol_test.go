package protocol

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abihf/framecast/capture"
)

func TestParseCommand(t *testing.T) {
	cases := map[string]Command{
		"capture":       CommandCapture,
		"saveCaptures":  CommandSave,
		"undo":          CommandUndo,
		"list_captures": CommandList,
		"clear":         CommandClear,
		"status":        CommandStatus,
		"process":       CommandProcess,
		"stop":          CommandStop,
		"bogus":         CommandUnknown,
		"":              CommandUnknown,
		"Capture":       CommandUnknown,
	}
	for name, want := range cases {
		assert.Equal(t, want, ParseCommand(name), name)
	}
	for c, name := range commandNames {
		assert.Equal(t, name, c.String())
	}
	assert.Equal(t, "unknown", CommandUnknown.String())
}

func TestReadReq(t *testing.T) {
	req, err := ReadReq([]byte(`{"command":"capture","flightId":"F1","fieldId":"C1"}`))
	require.NoError(t, err)
	assert.Equal(t, CommandCapture, req.Kind())
	assert.Equal(t, "F1", req.FlightID)
	assert.Equal(t, "C1", req.FieldID)
	assert.NoError(t, req.Validate())
}

func TestReadReq_Malformed(t *testing.T) {
	for _, raw := range []string{"not json", `{"command":`, `"capture"`, `[1,2]`} {
		_, err := ReadReq([]byte(raw))
		assert.True(t, errors.Is(err, ErrMalformed), raw)
	}
}

func TestReq_ValidateCapture(t *testing.T) {
	err := (&Req{Command: "capture", FlightID: "F1"}).Validate()
	require.Error(t, err)
	assert.Equal(t, "capture requires fieldId", err.Error())

	err = (&Req{Command: "capture"}).Validate()
	require.Error(t, err)
	assert.Equal(t, "capture requires flightId and fieldId", err.Error())

	assert.NoError(t, (&Req{Command: "undo"}).Validate())
}

func TestReq_ValidateCaptureRejectsPathIDs(t *testing.T) {
	cases := []struct {
		flight, field, want string
	}{
		{"F/1", "C1", `invalid flightId "F/1"`},
		{`F\1`, "C1", `invalid flightId "F\\1"`},
		{"F1", "..", `invalid fieldId ".."`},
		{"F1", ".hidden", `invalid fieldId ".hidden"`},
		{"F1", "C\x001", `invalid fieldId "C\x001"`},
	}
	for _, tc := range cases {
		err := (&Req{Command: "capture", FlightID: tc.flight, FieldID: tc.field}).Validate()
		require.Error(t, err, tc.flight+"/"+tc.field)
		assert.Equal(t, tc.want, err.Error())
	}

	assert.NoError(t, (&Req{Command: "capture", FlightID: "F1.a", FieldID: "C-1"}).Validate())
}

func TestReplyShapes(t *testing.T) {
	entry := &capture.Entry{FlightID: "F1", FieldID: "C1", SequenceNumber: 2, Filename: "C1_F1_2.jpg"}

	data, err := json.Marshal(Captured(3, entry))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"response","status":"captured","count":3,"sequenceNumber":2,"filename":"C1_F1_2.jpg"}`, string(data))

	data, err = json.Marshal(Undone(1, entry))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"response","status":"undone","count":1,"sequenceNumber":2,"filename":"C1_F1_2.jpg"}`, string(data))

	data, err = json.Marshal(List(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"captures_list","captures":[]}`, string(data))

	data, err = json.Marshal(UnknownCommand("bogus"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"unknown command: bogus"}`, string(data))

	data, err = json.Marshal(Cleared(0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"response","status":"cleared","clearedCount":0}`, string(data))

	data, err = json.Marshal(Saved(&capture.FlushResult{Attempted: 2, Saved: []capture.Saved{}, Requeued: 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"response","status":"saved","message":"Captures saved","count":0,"requeued":2,"captures":[]}`, string(data))
}
