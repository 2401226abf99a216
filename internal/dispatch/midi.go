package dispatch

import (
	"context"
	"io"
	"math"
	"slices"
	"sync"

	"gitlab.com/gomidi/midi/v2"

	"github.com/roach88/stochos/internal/ir"
)

// Message is one raw MIDI channel message at an output time.
type Message struct {
	At   float64
	Data []byte
}

// Decode parses Data back into a gomidi message.
func (m Message) Decode() midi.Message { return midi.Message(m.Data) }

// MIDIMessages encodes an event as raw MIDI messages. A note becomes a
// note-on at its timestamp and a note-off after its duration; a control
// event becomes one control change.
func MIDIMessages(ev ir.Event) []Message {
	ch := uint8(ev.Channel) & 0x0F
	value := data7(ev.Value)
	level := data7(ev.Velocity)

	switch ev.Kind {
	case ir.KindControl:
		return []Message{{At: ev.Timestamp, Data: midi.ControlChange(ch, value, level).Bytes()}}
	default:
		return []Message{
			{At: ev.Timestamp, Data: midi.NoteOn(ch, value, level).Bytes()},
			{At: ev.Timestamp + ev.Duration, Data: midi.NoteOff(ch, value).Bytes()},
		}
	}
}

func data7(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 127:
		return 127
	}
	return uint8(v)
}

// MIDITransport writes raw MIDI bytes to w, for example a device node or
// a pipe into a MIDI bridge. Note-offs are held until an event at or after
// their time arrives and are written before that event, so a note ending
// on the same tick another begins is released first.
type MIDITransport struct {
	mu      sync.Mutex
	w       io.Writer
	pending []Message // sorted by At
}

// NewMIDITransport creates a MIDI transport writing to w.
func NewMIDITransport(w io.Writer) *MIDITransport {
	return &MIDITransport{w: w}
}

// Send implements Transport.
func (t *MIDITransport) Send(_ context.Context, ev ir.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.release(ev.Timestamp); err != nil {
		return err
	}
	msgs := MIDIMessages(ev)
	if _, err := t.w.Write(msgs[0].Data); err != nil {
		return err
	}
	for _, m := range msgs[1:] {
		i, _ := slices.BinarySearchFunc(t.pending, m.At, func(p Message, at float64) int {
			if p.At <= at {
				return -1
			}
			return 1
		})
		t.pending = slices.Insert(t.pending, i, m)
	}
	return nil
}

// Flush writes every held note-off.
func (t *MIDITransport) Flush(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.release(math.Inf(1))
}

// Pending returns the number of held note-offs.
func (t *MIDITransport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *MIDITransport) release(until float64) error {
	n := 0
	for n < len(t.pending) && t.pending[n].At <= until {
		if _, err := t.w.Write(t.pending[n].Data); err != nil {
			t.pending = slices.Delete(t.pending, 0, n)
			return err
		}
		n++
	}
	t.pending = slices.Delete(t.pending, 0, n)
	return nil
}
