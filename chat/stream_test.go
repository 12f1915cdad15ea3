package chat

import (
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/plantdesk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func drain(s *Stream) []Fragment {
	var fragments []Fragment
	for {
		fragment, ok := s.Next()
		if !ok {
			return fragments
		}
		fragments = append(fragments, fragment)
	}
}

func TestStream_AccumulatesUntilMessageEnd(t *testing.T) {
	body := strings.Join([]string{
		`data: {"event":"workflow_started"}`,
		``,
		`data: {"event":"message","answer":"Hel"}`,
		`: keep-alive comment`,
		`data: {"event":"agent_message","answer":"lo"}`,
		`data: {"event":"message_end","conversation_id":"abc"}`,
		`data: {"event":"message","answer":"ignored"}`,
	}, "\n")

	stream := NewStream(strings.NewReader(body), nil)
	fragments := drain(stream)

	require.Len(t, fragments, 3)
	assert.Equal(t, Fragment{Delta: "Hel", Text: "Hel"}, fragments[0])
	assert.Equal(t, Fragment{Delta: "lo", Text: "Hello"}, fragments[1])
	assert.Equal(t, Fragment{Text: "Hello", Done: true, ConversationID: "abc"}, fragments[2])

	assert.Equal(t, StateEnded, stream.State())
	assert.True(t, stream.Completed())
	assert.Equal(t, "abc", stream.ConversationID())
	assert.NoError(t, stream.Err())
}

func TestStream_SkipsMalformedLines(t *testing.T) {
	body := "data: {\"event\":\"message\",\"answer\":\"a\"}\n" +
		"data: {not json\n" +
		"data:\n" +
		"data:{\"event\":\"message\",\"answer\":\"b\"}\n"

	var skipped []string
	stream := NewStream(strings.NewReader(body), func(line string, err error) {
		assert.ErrorIs(t, err, core.ErrStreamDecodeSkipped)
		skipped = append(skipped, line)
	})
	fragments := drain(stream)

	require.Len(t, fragments, 2)
	assert.Equal(t, "ab", fragments[1].Text)
	assert.Equal(t, []string{"{not json", ""}, skipped)
	assert.Equal(t, StateEnded, stream.State())
	assert.False(t, stream.Completed())
}

func TestStream_EOFWithoutMessageEnd(t *testing.T) {
	stream := NewStream(strings.NewReader(`data: {"event":"message","answer":"partial"}`), nil)
	fragments := drain(stream)

	require.Len(t, fragments, 1)
	assert.Equal(t, StateEnded, stream.State())
	assert.False(t, stream.Completed())
	assert.Equal(t, "partial", stream.Text())

	_, ok := stream.Next()
	assert.False(t, ok)
}

func TestStream_ErrorEventFails(t *testing.T) {
	body := `data: {"event":"error","status":400,"code":"invalid_param","message":"dataset missing"}`
	stream := NewStream(strings.NewReader(body), nil)
	assert.Empty(t, drain(stream))

	assert.Equal(t, StateFailed, stream.State())
	var chatErr *core.ChatRequestError
	require.ErrorAs(t, stream.Err(), &chatErr)
	assert.Equal(t, 400, chatErr.Status)
	assert.Contains(t, chatErr.Body, "dataset missing")
}

func TestStream_ReadErrorFails(t *testing.T) {
	stream := NewStream(failingReader{}, nil)
	assert.Empty(t, drain(stream))
	assert.Equal(t, StateFailed, stream.State())
	assert.ErrorContains(t, stream.Err(), "connection reset")
}

func TestStream_SkipsOversizedLines(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "comment", line: ": " + strings.Repeat("x", 2<<20)},
		{name: "data", line: `data: {"event":"message","answer":"` + strings.Repeat("y", 2<<20) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.Join([]string{
				`data: {"event":"message","answer":"Hel"}`,
				tt.line,
				`data: {"event":"message","answer":"lo"}`,
				`data: {"event":"message_end","conversation_id":"abc"}`,
			}, "\n")

			var skipped []error
			var previews []string
			s := NewStream(strings.NewReader(body), func(line string, err error) {
				previews = append(previews, line)
				skipped = append(skipped, err)
			})
			fragments := drain(s)

			require.NoError(t, s.Err())
			assert.Equal(t, StateEnded, s.State())
			assert.True(t, s.Completed())
			assert.Equal(t, "Hello", s.Text())
			require.Len(t, fragments, 3)
			require.Len(t, skipped, 1)
			assert.ErrorIs(t, skipped[0], core.ErrStreamDecodeSkipped)
			assert.LessOrEqual(t, len(previews[0]), linePreview)
		})
	}
}

func TestStream_IgnoresIndentedDataLines(t *testing.T) {
	body := strings.Join([]string{
		`data: {"event":"message","answer":"A"}`,
		`  data: {"event":"message","answer":"indented"}`,
		"\tdata: {\"event\":\"message\",\"answer\":\"tabbed\"}",
		"data: {\"event\":\"message\",\"answer\":\"B\"}\r",
		`data: {"event":"message_end"}`,
	}, "\n")

	s := NewStream(strings.NewReader(body), nil)
	drain(s)

	assert.Equal(t, "AB", s.Text())
	assert.True(t, s.Completed())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "ended", StateEnded.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
