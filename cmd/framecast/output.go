package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/abihf/framecast/client"
	"github.com/abihf/framecast/protocol"
)

func printReply(w io.Writer, raw bool, reply *client.Reply) error {
	if raw {
		var buf bytes.Buffer
		if err := json.Indent(&buf, reply.Raw, "", "  "); err != nil {
			return err
		}
		fmt.Fprintln(w, buf.String())
		return nil
	}

	if reply.Type == protocol.TypeCapturesList {
		var list protocol.CapturesList
		if err := reply.Decode(&list); err != nil {
			return err
		}
		if len(list.Captures) == 0 {
			fmt.Fprintln(w, "No pending captures")
			return nil
		}
		rows := make([][]string, 0, len(list.Captures))
		for _, c := range list.Captures {
			rows = append(rows, []string{c.Filename, c.FlightID, c.FieldID, strconv.Itoa(c.SequenceNumber)})
		}
		fmt.Fprintln(w, pendingTable.render(rows))
		return nil
	}

	switch reply.Status {
	case protocol.StatusCaptured:
		var res protocol.CapturedRes
		if err := reply.Decode(&res); err != nil {
			return err
		}
		fmt.Fprintf(w, "Captured %s (%d pending)\n", res.Filename, res.Count)

	case protocol.StatusUndone:
		var res protocol.UndoneRes
		if err := reply.Decode(&res); err != nil {
			return err
		}
		fmt.Fprintf(w, "Removed %s (%d pending)\n", res.Filename, res.Count)

	case protocol.StatusSaved:
		var res protocol.SavedRes
		if err := reply.Decode(&res); err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved %d captures\n", res.Count)
		if len(res.Failed) > 0 {
			fmt.Fprintf(w, "Failed: %s\n", strings.Join(res.Failed, ", "))
		}
		if res.Requeued > 0 {
			fmt.Fprintf(w, "Interrupted, %d captures still pending\n", res.Requeued)
		}

	case protocol.StatusCleared:
		var res protocol.ClearedRes
		if err := reply.Decode(&res); err != nil {
			return err
		}
		fmt.Fprintf(w, "Cleared %d captures\n", res.ClearedCount)

	case protocol.StatusRunning:
		var res protocol.StatusRes
		if err := reply.Decode(&res); err != nil {
			return err
		}
		printStatus(w, &res)

	default:
		if reply.Message != "" {
			fmt.Fprintln(w, reply.Message)
		} else {
			fmt.Fprintln(w, reply.Status)
		}
	}
	return nil
}

func printStatus(w io.Writer, res *protocol.StatusRes) {
	st := res.Engine
	pairs := [][2]string{
		{"Source", st.Source},
		{"Running", strconv.FormatBool(st.Running)},
		{"FPS", strconv.FormatFloat(st.FPS, 'f', 1, 64)},
		{"Buffered frames", strconv.Itoa(st.BufferDepth)},
		{"Pending captures", strconv.Itoa(st.CapturedCount)},
		{"Has frame", strconv.FormatBool(st.HasFrame)},
	}
	if st.Error != "" {
		pairs = append(pairs, [2]string{"Error", st.Error})
	}
	fmt.Fprintln(w, renderDetails(pairs))
}
