package capture

import (
	"fmt"
	"sync"
)

// Entry is a frame retained by an explicit capture, waiting to be flushed.
type Entry struct {
	Frame          *Frame
	FlightID       string
	FieldID        string
	SequenceNumber int
	Filename       string
}

// Info describes a ledger entry without its frame.
type Info struct {
	FlightID       string `json:"flightId"`
	FieldID        string `json:"fieldId"`
	SequenceNumber int    `json:"sequenceNumber"`
	Filename       string `json:"filename"`
}

func (e *Entry) Info() Info {
	return Info{
		FlightID:       e.FlightID,
		FieldID:        e.FieldID,
		SequenceNumber: e.SequenceNumber,
		Filename:       e.Filename,
	}
}

// Filename builds the on-disk name of a capture.
func Filename(flightID, fieldID string, seq int) string {
	return fmt.Sprintf("%s_%s_%d.jpg", fieldID, flightID, seq)
}

// Ledger is the ordered list of captures. All methods are safe for
// concurrent use.
//
// For every (flight, field) pair the sequence numbers, read in ledger order,
// are 1..n without gaps. Removing entries only ever pops from the tail or
// empties the ledger, which keeps that true.
type Ledger struct {
	mu      sync.Mutex
	entries []*Entry
}

// Append records frame under the given pair and returns the new ledger size
// together with the stored entry.
func (l *Ledger) Append(frame *Frame, flightID, fieldID string) (int, *Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := 1
	for _, e := range l.entries {
		if e.FlightID == flightID && e.FieldID == fieldID {
			seq++
		}
	}

	entry := &Entry{
		Frame:          frame,
		FlightID:       flightID,
		FieldID:        fieldID,
		SequenceNumber: seq,
		Filename:       Filename(flightID, fieldID, seq),
	}
	l.entries = append(l.entries, entry)
	return len(l.entries), entry
}

// Pop removes the most recent entry. It returns nil when the ledger is empty.
func (l *Ledger) Pop() (*Entry, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if n == 0 {
		return nil, 0
	}
	entry := l.entries[n-1]
	l.entries[n-1] = nil
	l.entries = l.entries[:n-1]
	return entry, len(l.entries)
}

func (l *Ledger) List() []Info {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Info, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Info()
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops every entry and returns how many there were.
func (l *Ledger) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	l.entries = nil
	return n
}

// Detach empties the ledger and hands the removed entries to the caller.
func (l *Ledger) Detach() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.entries
	l.entries = nil
	return entries
}

// Requeue puts entries back at the front of the ledger, ahead of anything
// captured since they were detached.
func (l *Ledger) Requeue(entries []*Entry) {
	if len(entries) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(append(make([]*Entry, 0, len(entries)+len(l.entries)), entries...), l.entries...)
}
