package ingestion

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 3)

	tracker.Start()
	tracker.Record(BatchItem{Name: "a.pdf"})
	tracker.Record(BatchItem{Name: "b.pdf", Err: errors.New("boom")})
	tracker.Record(BatchItem{Name: "c.pdf"})
	tracker.Finish()

	done, failed := tracker.Counts()
	assert.Equal(t, 3, done)
	assert.Equal(t, 1, failed)

	output := buf.String()
	assert.Contains(t, output, "3/3")
	assert.Contains(t, output, "100.0%")
	assert.Contains(t, output, "1 failed")
	assert.True(t, strings.HasSuffix(output, "\n"))
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1)

	tracker.Start()
	tracker.Record(BatchItem{Name: "a.pdf"})
	tracker.Record(BatchItem{Name: "b.pdf"})

	done, _ := tracker.Counts()
	assert.Equal(t, 1, done)
	assert.NotContains(t, buf.String(), "2/1")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 2)

	tracker.Record(BatchItem{Name: "a.pdf"})
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())
}
