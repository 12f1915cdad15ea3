package chat

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/poiesic/plantdesk/core"
)

const (
	maxLineSize   = 1 << 20
	linePreview   = 64
	readerBufSize = 64 << 10
)

var errLineTooLong = errors.New("line exceeds limit")

// State is the lifecycle of a Stream.
type State int

const (
	// StateStreaming means more fragments may follow.
	StateStreaming State = iota
	// StateEnded means the stream finished, with or without message_end.
	StateEnded
	// StateFailed means reading the stream failed; see Err.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Fragment is one step of a streamed answer.
type Fragment struct {
	// Delta is the text added by this event.
	Delta string `json:"delta"`
	// Text is the answer accumulated so far.
	Text string `json:"text"`
	// Done marks the final fragment, produced by message_end.
	Done bool `json:"done,omitempty"`
	// ConversationID is the upstream conversation id carried by message_end.
	ConversationID string `json:"conversation_id,omitempty"`
}

// DecodeObserver is told about every data line that could not be decoded.
// err wraps core.ErrStreamDecodeSkipped.
type DecodeObserver func(line string, err error)

type event struct {
	Event          string `json:"event"`
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	Status         int    `json:"status"`
	Code           string `json:"code"`
	Message        string `json:"message"`
}

// Stream parses a server-sent-event chat response.
// It is not safe for concurrent use.
type Stream struct {
	reader         *bufio.Reader
	observer       DecodeObserver
	state          State
	text           []byte
	conversationID string
	completed      bool
	err            error
}

// NewStream creates a Stream reading events from r.
func NewStream(r io.Reader, observer DecodeObserver) *Stream {
	return &Stream{
		reader:   bufio.NewReaderSize(r, readerBufSize),
		observer: observer,
	}
}

// Next returns the next fragment. It returns false once the stream has ended
// or failed.
func (s *Stream) Next() (Fragment, bool) {
	if s.state != StateStreaming {
		return Fragment{}, false
	}

	for {
		line, tooLong, err := s.readLine()
		if errors.Is(err, io.EOF) {
			s.state = StateEnded
			return Fragment{}, false
		}
		if err != nil {
			s.fail(fmt.Errorf("reading chat stream: %w", err))
			return Fragment{}, false
		}
		if tooLong {
			s.skip(string(line), fmt.Errorf("%w: %d bytes", errLineTooLong, maxLineSize))
			continue
		}

		payload, ok := dataPayload(line)
		if !ok {
			continue
		}

		var ev event
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.skip(string(payload), err)
			continue
		}

		switch ev.Event {
		case "message", "agent_message":
			s.text = append(s.text, ev.Answer...)
			return Fragment{Delta: ev.Answer, Text: string(s.text)}, true
		case "message_end":
			s.state = StateEnded
			s.completed = true
			s.conversationID = ev.ConversationID
			return Fragment{Text: string(s.text), Done: true, ConversationID: ev.ConversationID}, true
		case "error":
			s.fail(&core.ChatRequestError{Status: ev.Status, Body: ev.Code + ": " + ev.Message})
			return Fragment{}, false
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// maxLineSize is consumed whole; only its first bytes are returned and
// tooLong is set. io.EOF is returned once no bytes remain.
func (s *Stream) readLine() (line []byte, tooLong bool, err error) {
	var buf []byte
	read := 0
	for {
		chunk, err := s.reader.ReadSlice('\n')
		read += len(chunk)
		switch {
		case read > maxLineSize && !tooLong:
			tooLong = true
			buf = append(buf, chunk...)
			if len(buf) > linePreview {
				buf = buf[:linePreview]
			}
		case !tooLong:
			buf = append(buf, chunk...)
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && (!errors.Is(err, io.EOF) || read == 0) {
			return nil, false, err
		}
		if !tooLong {
			buf = bytes.TrimRight(buf, "\r\n")
		}
		return buf, tooLong, nil
	}
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return s.state
}

// Err returns the error that moved the stream to StateFailed.
func (s *Stream) Err() error {
	return s.err
}

// Text returns the answer accumulated so far.
func (s *Stream) Text() string {
	return string(s.text)
}

// Completed reports whether message_end was received.
func (s *Stream) Completed() bool {
	return s.completed
}

// ConversationID returns the upstream id delivered by message_end.
func (s *Stream) ConversationID() string {
	return s.conversationID
}

func (s *Stream) fail(err error) {
	s.state = StateFailed
	s.err = err
}

func (s *Stream) skip(line string, err error) {
	if s.observer != nil {
		s.observer(line, fmt.Errorf("%w: %w", core.ErrStreamDecodeSkipped, err))
	}
}

// dataPayload returns the trimmed payload of a line starting with "data:".
// Indented lines do not count.
func dataPayload(line []byte) ([]byte, bool) {
	payload, found := bytes.CutPrefix(line, []byte("data:"))
	if !found {
		return nil, false
	}
	return bytes.TrimSpace(payload), true
}
