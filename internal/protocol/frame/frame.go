// Package frame turns a raw byte stream into discrete newline-delimited JSON
// frames. It is pure: no I/O, no logging. Callers report drops themselves.
package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultMaxBufferBytes caps one connection's accumulation buffer.
const DefaultMaxBufferBytes = 1 << 20

const delimiter = '\n'

var ErrNotObject = errors.New("frame: payload is not a JSON object")

// Decoder reassembles frames for a single connection. Not safe for
// concurrent use; each connection owns exactly one Decoder.
type Decoder struct {
	max int
	buf []byte
}

// NewDecoder returns a Decoder with the given buffer ceiling.
// Non-positive values select DefaultMaxBufferBytes.
func NewDecoder(maxBufferBytes int) *Decoder {
	if maxBufferBytes <= 0 {
		maxBufferBytes = DefaultMaxBufferBytes
	}
	return &Decoder{max: maxBufferBytes}
}

// Feed appends raw bytes and extracts every complete frame in arrival order.
// Trailing bytes with no delimiter stay buffered for the next call. When the
// undelimited remainder exceeds the ceiling the buffer is discarded and its
// size is returned as dropped; the connection is not the Decoder's to close.
func (d *Decoder) Feed(raw []byte) (frames []string, dropped int) {
	d.buf = append(d.buf, raw...)
	for {
		idx := bytes.IndexByte(d.buf, delimiter)
		if idx < 0 {
			break
		}
		frames = append(frames, string(d.buf[:idx]))
		d.buf = d.buf[idx+1:]
	}
	if len(d.buf) > d.max {
		dropped = len(d.buf)
		d.buf = nil
	}
	return frames, dropped
}

// Buffered reports how many undelimited bytes are waiting.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any partially accumulated frame.
func (d *Decoder) Reset() {
	d.buf = nil
}

// Parse decodes one frame string as an independent JSON object. A failure
// affects only that frame.
func Parse(frame string) (map[string]any, error) {
	var msg map[string]any
	if err := json.Unmarshal([]byte(frame), &msg); err != nil {
		return nil, fmt.Errorf("frame: parse: %w", err)
	}
	if msg == nil {
		return nil, ErrNotObject
	}
	return msg, nil
}

// Encode marshals v and appends the frame delimiter.
func Encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("frame: encode: %w", err)
	}
	return append(payload, delimiter), nil
}
