// Package client talks to a framecastd server over websocket.
package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/abihf/framecast/protocol"
)

const defaultTimeout = 10 * time.Second

// Reply is a non-frame message from the server.
type Reply struct {
	protocol.Envelope
	Raw json.RawMessage
}

// Decode unmarshals the full reply into v.
func (r *Reply) Decode(v any) error {
	return errors.Wrap(json.Unmarshal(r.Raw, v), "Can not decode reply")
}

// Err turns an error reply into a Go error.
func (r *Reply) Err() error {
	if r.Type == protocol.TypeError {
		return errors.New(r.Message)
	}
	return nil
}

type Client struct {
	conn *websocket.Conn
}

func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "Can not connect to %s", url)
	}
	return &Client{conn: conn}, nil
}

// Send writes a request without waiting for a reply.
func (c *Client) Send(ctx context.Context, req *protocol.Req) error {
	if err := c.conn.SetWriteDeadline(deadline(ctx)); err != nil {
		return errors.Wrap(err, "Set write deadline failed")
	}
	return errors.Wrap(c.conn.WriteJSON(req), "Can not send request")
}

// Do sends a request and waits for its reply, skipping streamed frames.
func (c *Client) Do(ctx context.Context, req *protocol.Req) (*Reply, error) {
	if err := c.Send(ctx, req); err != nil {
		return nil, err
	}
	for {
		msg, err := c.read(ctx)
		if err != nil {
			return nil, err
		}
		if msg.Type != protocol.TypeFrame {
			return msg, nil
		}
	}
}

// NextFrame waits for the next streamed frame and returns its JPEG bytes.
func (c *Client) NextFrame(ctx context.Context) ([]byte, error) {
	for {
		msg, err := c.read(ctx)
		if err != nil {
			return nil, err
		}
		if msg.Type != protocol.TypeFrame {
			continue
		}
		var frame protocol.FrameMsg
		if err := msg.Decode(&frame); err != nil {
			return nil, err
		}
		data, err := base64.StdEncoding.DecodeString(frame.Data)
		return data, errors.Wrap(err, "Can not decode frame data")
	}
}

func (c *Client) read(ctx context.Context) (*Reply, error) {
	if err := c.conn.SetReadDeadline(deadline(ctx)); err != nil {
		return nil, errors.Wrap(err, "Set read deadline failed")
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "Can not read message")
	}

	reply := &Reply{Raw: data}
	if err := json.Unmarshal(data, &reply.Envelope); err != nil {
		return nil, errors.Wrap(err, "Can not decode message")
	}
	return reply, nil
}

func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(defaultTimeout)
}
