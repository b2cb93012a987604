package log

import (
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects a subset of a log stream. Zero-valued fields match
// everything; pointer fields are nil when unconstrained so that zero
// values like socket 0 or DirectionIn remain expressible.
type Filter struct {
	// ClientID matches the exact client id stamped on each event.
	ClientID string

	// Direction matches reads (in) or writes (out).
	Direction *Direction

	// Layer matches the capture layer.
	Layer *Layer

	// Category matches the event category.
	Category *Category

	// TimeStart keeps events at or after this instant.
	TimeStart *time.Time

	// TimeEnd keeps events strictly before this instant.
	TimeEnd *time.Time

	// Socket matches the target socket index.
	Socket *int

	// MessageID keeps only mailbox exchanges for one message id.
	MessageID *uint32
}

func (f *Filter) matches(event Event) bool {
	switch {
	case f.ClientID != "" && event.ClientID != f.ClientID:
		return false
	case f.Direction != nil && event.Direction != *f.Direction:
		return false
	case f.Layer != nil && event.Layer != *f.Layer:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	case f.Socket != nil && event.Socket != *f.Socket:
		return false
	}
	if f.MessageID != nil {
		if event.Mailbox == nil || event.Mailbox.MessageID != *f.MessageID {
			return false
		}
	}
	return true
}

// Reader iterates over the events in a .hlog file, streaming rather
// than loading the whole capture.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens path and yields every event in it.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and yields only events the filter keeps.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at end of stream.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if err == io.EOF {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
