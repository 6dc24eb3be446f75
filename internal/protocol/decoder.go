// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
)

// =============================================================================
// DECODER CONSTANTS
// =============================================================================

// dataPrefix marks a significant line; everything else is ignored framing.
const dataPrefix = "data: "

// MaxLineSize is the maximum allowed size for a single stream line (64KB).
// SECURITY: Line size limit prevents memory exhaustion from a hostile stream.
const MaxLineSize = 64 * 1024

// =============================================================================
// DROP OBSERVER
// =============================================================================

// DropObserver is notified when a malformed line is dropped. Decoding
// continues with the next line; a malformed record never aborts the stream.
type DropObserver func(line string, err error)

// logDrops is the default observer, matching the client's secure-logging
// policy: the line length is logged, never the payload.
func logDrops(line string, err error) {
	log.Printf("stream: dropped malformed line (%d bytes): %v", len(line), err)
}

// =============================================================================
// STREAM DECODER
// =============================================================================

// Decoder turns a raw chunked byte stream into a lazy sequence of Events.
//
// One Decoder serves exactly one request; create a new Decoder per stream.
// Input is logically split into lines, and a line is significant only if it
// begins with the "data: " prefix; the remainder is a self-contained JSON
// record. After a terminal event (completion, failure) the decoder yields
// io.EOF regardless of any buffered bytes.
type Decoder struct {
	reader  *bufio.Reader
	observe DropObserver

	// pending holds an event queued behind the one just returned, for
	// records that combine content with the done marker.
	pending  *Event
	terminal bool
}

// NewDecoder creates a decoder over the raw response body.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		reader:  bufio.NewReaderSize(r, 4096),
		observe: logDrops,
	}
}

// WithObserver sets the malformed-line observer.
func (d *Decoder) WithObserver(fn DropObserver) *Decoder {
	if fn != nil {
		d.observe = fn
	}
	return d
}

// Next returns the next decoded event.
//
// It returns io.EOF when the underlying stream ends or after a terminal
// event has been delivered. A caller that sees io.EOF without having observed
// a terminal event must treat the stream as an implicit failure (connection
// dropped mid-generation).
//
// Cancellation is cooperative: once ctx is done, Next stops yielding events
// even if bytes remain buffered.
func (d *Decoder) Next(ctx context.Context) (Event, error) {
	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		default:
		}

		if d.terminal {
			return Event{}, io.EOF
		}

		if d.pending != nil {
			ev := *d.pending
			d.pending = nil
			if ev.IsTerminal() {
				d.terminal = true
			}
			return ev, nil
		}

		line, err := d.readLine()
		if err != nil {
			if err == io.EOF && line != "" {
				// Final line without trailing newline: still decode it.
				if ev, ok := d.decodeLine(line); ok {
					if ev.IsTerminal() {
						d.terminal = true
					}
					return ev, nil
				}
			}
			return Event{}, err
		}

		ev, ok := d.decodeLine(line)
		if !ok {
			continue
		}
		if ev.IsTerminal() && d.pending == nil {
			d.terminal = true
		}
		return ev, nil
	}
}

// errLineTooLong reports a line exceeding MaxLineSize.
var errLineTooLong = errors.New("line exceeds maximum size")

// readLine reads one line, enforcing the size limit. Oversized lines are
// dropped like any other malformed input: discarded through the next newline
// while decoding continues.
func (d *Decoder) readLine() (string, error) {
	var buf strings.Builder
	discarding := false
	for {
		chunk, err := d.reader.ReadString('\n')
		if !discarding {
			buf.WriteString(chunk)
			if buf.Len() > MaxLineSize {
				d.observe("", errLineTooLong)
				buf.Reset()
				discarding = true
			}
		}
		if err != nil {
			if discarding {
				return "", err
			}
			return strings.TrimRight(buf.String(), "\r\n"), err
		}
		if discarding {
			// The oversized line has been fully consumed; resume with the
			// next line.
			discarding = false
			continue
		}
		return strings.TrimRight(buf.String(), "\r\n"), nil
	}
}

// decodeLine decodes a single significant line into at most two events.
// Returns false when the line is insignificant or was dropped as malformed.
func (d *Decoder) decodeLine(line string) (Event, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return Event{}, false
	}
	payload := line[len(dataPrefix):]

	var rec record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		d.observe(line, err)
		return Event{}, false
	}

	// A server-signaled error terminates the logical stream.
	if rec.Error != "" {
		return Event{Kind: EventFailure, Message: rec.Error}, true
	}

	if rec.Content != "" && rec.Done {
		// Deliver the delta now, the completion on the next call.
		d.pending = &Event{Kind: EventCompletion, ThreadID: rec.ThreadID}
		return Event{Kind: EventDelta, Content: rec.Content}, true
	}

	if rec.Done {
		return Event{Kind: EventCompletion, ThreadID: rec.ThreadID}, true
	}

	if rec.Content != "" {
		return Event{Kind: EventDelta, Content: rec.Content}, true
	}

	// Keep-alive or empty record: nothing to yield.
	return Event{}, false
}
