package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ErrTruncated is returned by Reader.Next when the file ends inside an
// event, as happens when the writing process dies before flushing.
var ErrTruncated = errors.New("capture file truncated")

// Filter selects events. Zero fields match everything.
type Filter struct {
	ConnectionID string

	// Direction matches data events flowing this way. Other categories
	// never match a Direction filter.
	Direction *Direction

	Entity   *Entity
	Category *Category
	Role     *Role

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time

	// RemoteAddr matches the peer address exactly.
	RemoteAddr string
}

// Match reports whether event passes every criterion of f.
func (f *Filter) Match(event Event) bool {
	switch {
	case f.ConnectionID != "" && event.ConnectionID != f.ConnectionID:
	case f.Direction != nil && (event.Category != CategoryData || event.Direction != *f.Direction):
	case f.Entity != nil && event.Entity != *f.Entity:
	case f.Category != nil && event.Category != *f.Category:
	case f.Role != nil && event.Role != *f.Role:
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
	case f.RemoteAddr != "" && event.RemoteAddr != f.RemoteAddr:
	default:
		return true
	}
	return false
}

// Reader streams events from a capture file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
	decoded int
}

// NewReader opens path and reads every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and reads the events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return Event{}, io.EOF
			case errors.Is(err, io.ErrUnexpectedEOF):
				return Event{}, fmt.Errorf("after %d events: %w", r.decoded, ErrTruncated)
			default:
				return Event{}, fmt.Errorf("decode event %d: %w", r.decoded+1, err)
			}
		}
		r.decoded++

		if r.filter.Match(event) {
			return event, nil
		}
	}
}

// Decoded returns how many events have been read, matching or not.
func (r *Reader) Decoded() int {
	return r.decoded
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}
