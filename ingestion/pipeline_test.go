package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/plantdesk/core"
	"github.com/poiesic/plantdesk/retry"
	"github.com/poiesic/plantdesk/storage"
	"github.com/poiesic/plantdesk/storage/badger"
	"github.com/poiesic/plantdesk/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTimeout = fmt.Errorf("run workflow: %w", context.DeadlineExceeded)

// testTransformer returns scripted errors before succeeding.
type testTransformer struct {
	mu       sync.Mutex
	failures []error
	artifact string
	calls    int
	texts    []string
}

func (m *testTransformer) RunWorkflow(ctx context.Context, text string) (*upstream.WorkflowResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.texts = append(m.texts, text)
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return nil, err
	}
	return &upstream.WorkflowResult{Status: "succeeded", ArtifactURL: m.artifact}, nil
}

type registration struct {
	datasetID string
	name      string
	text      string
	raw       []byte
}

// testRegistrar records registrations.
type testRegistrar struct {
	mu     sync.Mutex
	err    error
	byText []registration
	byFile []registration
}

func (m *testRegistrar) CreateDocumentByText(ctx context.Context, datasetID, name, text string) (*upstream.DocumentCreated, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.byText = append(m.byText, registration{datasetID: datasetID, name: name, text: text})
	return created(fmt.Sprintf("doc-%d", len(m.byText))), nil
}

func (m *testRegistrar) CreateDocumentByFile(ctx context.Context, datasetID, name string, content []byte) (*upstream.DocumentCreated, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.byFile = append(m.byFile, registration{datasetID: datasetID, name: name, raw: content})
	return created(fmt.Sprintf("raw-%d", len(m.byFile))), nil
}

func created(id string) *upstream.DocumentCreated {
	c := &upstream.DocumentCreated{Batch: "batch-" + id}
	c.Document.ID = id
	return c
}

// sleepRecorder replaces the retry sleep.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func setupTestHistory(t *testing.T) storage.IngestHistoryRepository {
	t.Helper()
	conversations, history, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		history.Close()
		conversations.Close()
		backend.Close()
	})
	return history
}

func setupTestPipeline(t *testing.T, transformer *testTransformer, registrar *testRegistrar, history storage.IngestHistoryRepository, opts ...Option) (*Pipeline, *sleepRecorder) {
	t.Helper()
	p, err := NewPipeline(transformer, registrar, history, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	recorder := &sleepRecorder{}
	p.retry.Sleep = recorder.sleep
	return p, recorder
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	_, err := NewPipeline(nil, &testRegistrar{}, nil)
	assert.ErrorIs(t, err, ErrTransformerRequired)

	_, err = NewPipeline(&testTransformer{}, nil, nil)
	assert.ErrorIs(t, err, ErrRegistrarRequired)

	_, err = NewPipeline(&testTransformer{}, &testRegistrar{}, nil, WithMaxSize(0))
	assert.Error(t, err)

	_, err = NewPipeline(&testTransformer{}, &testRegistrar{}, nil, WithRetryPolicy(&retry.Policy{}))
	assert.ErrorIs(t, err, retry.ErrInvalidMaxAttempts)
}

func TestNewPipeline_Defaults(t *testing.T) {
	p, err := NewPipeline(&testTransformer{}, &testRegistrar{}, nil)
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, DefaultMaxSize, p.maxSize)
	assert.Equal(t, 3, p.retry.MaxAttempts)
	assert.Equal(t, 5*time.Second, p.retry.Delay)
	assert.True(t, p.retry.Retryable(errTimeout))
	assert.False(t, p.retry.Retryable(errors.New("refused")))
	assert.Equal(t, 1, p.pool.Cap())
}

func TestIngest_Success(t *testing.T) {
	transformer := &testTransformer{artifact: "https://files/manual_processed.txt"}
	registrar := &testRegistrar{}
	p, recorder := setupTestPipeline(t, transformer, registrar, nil)

	doc := core.NewDocument("manual.txt", []byte("  pump start procedure  \n"))
	result, err := p.Ingest(context.Background(), doc, "ds-1")
	require.NoError(t, err)

	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Equal(t, "batch-doc-1", result.Batch)
	assert.Equal(t, "ds-1", result.DatasetID)
	assert.Equal(t, core.IngestModePipeline, result.Mode)
	assert.Equal(t, "https://files/manual_processed.txt", result.ArtifactURL)
	assert.Equal(t, "manual_processed.txt", result.ProcessedName)

	assert.Equal(t, 1, transformer.calls)
	assert.Equal(t, []string{"pump start procedure"}, transformer.texts)
	require.Len(t, registrar.byText, 1)
	assert.Equal(t, "pump start procedure", registrar.byText[0].text, "original extracted text is registered")
	assert.Equal(t, "manual.txt", registrar.byText[0].name)
	assert.Empty(t, recorder.delays)
}

func TestIngest_NoArtifact(t *testing.T) {
	p, _ := setupTestPipeline(t, &testTransformer{}, &testRegistrar{}, nil)

	result, err := p.Ingest(context.Background(), core.NewDocument("a.md", []byte("# A")), "ds")
	require.NoError(t, err)
	assert.Empty(t, result.ArtifactURL)
}

func TestIngest_TooLarge(t *testing.T) {
	transformer := &testTransformer{}
	registrar := &testRegistrar{}
	p, _ := setupTestPipeline(t, transformer, registrar, nil, WithMaxSize(10))

	_, err := p.Ingest(context.Background(), core.NewDocument("big.txt", make([]byte, 11)), "ds")
	require.ErrorIs(t, err, core.ErrTooLarge)

	var tooLarge *core.TooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(11), tooLarge.Size)
	assert.Equal(t, int64(10), tooLarge.Limit)

	assert.Zero(t, transformer.calls)
	assert.Empty(t, registrar.byText)
}

func TestIngest_ExtractionErrorsStopEarly(t *testing.T) {
	tests := []struct {
		name   string
		doc    *core.Document
		target error
	}{
		{"unsupported", core.NewDocument("plan.hwp", []byte("x")), core.ErrUnsupportedFormat},
		{"unknown extension", core.NewDocument("image.png", []byte("x")), core.ErrUnsupportedFormat},
		{"empty text", core.NewDocument("blank.txt", []byte("   ")), core.ErrExtractionFailed},
		{"corrupt docx", core.NewDocument("broken.docx", []byte("not a zip")), core.ErrExtractionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transformer := &testTransformer{}
			p, _ := setupTestPipeline(t, transformer, &testRegistrar{}, nil)

			_, err := p.Ingest(context.Background(), tt.doc, "ds")
			assert.ErrorIs(t, err, tt.target)
			assert.Zero(t, transformer.calls)
		})
	}
}

func TestIngest_TimeoutThenSuccess(t *testing.T) {
	transformer := &testTransformer{failures: []error{errTimeout, errTimeout}}
	registrar := &testRegistrar{}
	p, recorder := setupTestPipeline(t, transformer, registrar, nil)

	_, err := p.Ingest(context.Background(), core.NewDocument("a.txt", []byte("text")), "ds")
	require.NoError(t, err)

	assert.Equal(t, 3, transformer.calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, recorder.delays)
	assert.Len(t, registrar.byText, 1)
}

func TestIngest_TimeoutExhausted(t *testing.T) {
	transformer := &testTransformer{failures: []error{errTimeout, errTimeout, errTimeout}}
	registrar := &testRegistrar{}
	p, recorder := setupTestPipeline(t, transformer, registrar, nil)

	_, err := p.Ingest(context.Background(), core.NewDocument("a.txt", []byte("text")), "ds")
	require.ErrorIs(t, err, core.ErrUpstreamTimeout)
	assert.ErrorIs(t, err, retry.ErrExhausted)

	assert.Equal(t, 3, transformer.calls)
	assert.Len(t, recorder.delays, 2)
	assert.Empty(t, registrar.byText)
}

func TestIngest_UpstreamErrorNotRetried(t *testing.T) {
	upErr := &core.UpstreamError{Status: 500, Body: "boom"}
	transformer := &testTransformer{failures: []error{upErr}}
	p, recorder := setupTestPipeline(t, transformer, &testRegistrar{}, nil)

	_, err := p.Ingest(context.Background(), core.NewDocument("a.txt", []byte("text")), "ds")
	require.ErrorIs(t, err, core.ErrUpstream)
	assert.NotErrorIs(t, err, core.ErrUpstreamTimeout)
	assert.Equal(t, 1, transformer.calls)
	assert.Empty(t, recorder.delays)
}

func TestIngest_RegistrationError(t *testing.T) {
	registrar := &testRegistrar{err: &core.RegistrationError{Status: 400, Body: "bad"}}
	p, _ := setupTestPipeline(t, &testTransformer{}, registrar, nil)

	_, err := p.Ingest(context.Background(), core.NewDocument("a.txt", []byte("text")), "ds")
	var regErr *core.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, 400, regErr.Status)
}

func TestIngest_DatasetRequired(t *testing.T) {
	transformer := &testTransformer{}
	p, _ := setupTestPipeline(t, transformer, &testRegistrar{}, nil)

	_, err := p.Ingest(context.Background(), core.NewDocument("a.txt", []byte("text")), " ")
	assert.ErrorIs(t, err, ErrDatasetRequired)
	assert.Zero(t, transformer.calls)

	_, err = p.Ingest(context.Background(), nil, "ds")
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestIngest_CustomExtractor(t *testing.T) {
	transformer := &testTransformer{}
	p, _ := setupTestPipeline(t, transformer, &testRegistrar{}, nil,
		WithExtractor(func(content []byte, extension string) (string, error) {
			return "custom:" + extension, nil
		}))

	_, err := p.Ingest(context.Background(), core.NewDocument("x.bin", []byte{1}), "ds")
	require.NoError(t, err)
	assert.Equal(t, []string{"custom:bin"}, transformer.texts)
}

func TestIngest_RecordsHistory(t *testing.T) {
	history := setupTestHistory(t)
	p, _ := setupTestPipeline(t, &testTransformer{}, &testRegistrar{}, history)
	ctx := context.Background()

	content := []byte("same manual")
	_, err := p.Ingest(ctx, core.NewDocument("m.txt", content), "ds-1")
	require.NoError(t, err)
	_, err = p.Ingest(ctx, core.NewDocument("m.txt", content), "ds-1")
	require.NoError(t, err, "repeated content is registered again")

	records, err := history.IngestHistory(ctx, "ds-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, core.IDFromContent(content), records[0].ContentID)
	assert.Equal(t, "doc-2", records[0].DocumentID)
	assert.Equal(t, int64(len(content)), records[0].Size)
}

func TestUploadRaw(t *testing.T) {
	transformer := &testTransformer{}
	registrar := &testRegistrar{}
	p, _ := setupTestPipeline(t, transformer, registrar, nil)

	raw := []byte("%PDF-1.4 raw")
	result, err := p.UploadRaw(context.Background(), core.NewDocument("manual.pdf", raw), "ds-2")
	require.NoError(t, err)

	assert.Equal(t, "raw-1", result.DocumentID)
	assert.Equal(t, core.IngestModeRaw, result.Mode)
	assert.Empty(t, result.ArtifactURL)
	assert.Zero(t, transformer.calls)
	require.Len(t, registrar.byFile, 1)
	assert.Equal(t, raw, registrar.byFile[0].raw)
	assert.Equal(t, "ds-2", registrar.byFile[0].datasetID)
}

func TestUploadRaw_TooLarge(t *testing.T) {
	registrar := &testRegistrar{}
	p, _ := setupTestPipeline(t, &testTransformer{}, registrar, nil, WithMaxSize(4))

	_, err := p.UploadRaw(context.Background(), core.NewDocument("a.pdf", []byte("12345")), "ds")
	assert.ErrorIs(t, err, core.ErrTooLarge)
	assert.Empty(t, registrar.byFile)
}

func TestIngestBatch_InputOrder(t *testing.T) {
	for _, size := range []int{1, 4} {
		t.Run(fmt.Sprintf("pool %d", size), func(t *testing.T) {
			p, _ := setupTestPipeline(t, &testTransformer{}, &testRegistrar{}, nil, WithPoolSize(size))

			docs := []*core.Document{
				core.NewDocument("one.txt", []byte("1")),
				core.NewDocument("two.hwp", []byte("2")),
				core.NewDocument("three.md", []byte("3")),
				core.NewDocument("four.csv", []byte("a,b\n1,2")),
			}
			items := p.IngestBatch(context.Background(), docs, "ds")
			require.Len(t, items, 4)

			for i, item := range items {
				assert.Equal(t, docs[i].Name, item.Name)
			}
			assert.NoError(t, items[0].Err)
			assert.ErrorIs(t, items[1].Err, core.ErrUnsupportedFormat)
			assert.Nil(t, items[1].Result)
			assert.NoError(t, items[2].Err)
			assert.NoError(t, items[3].Err)
		})
	}
}

func TestUploadRawBatch(t *testing.T) {
	registrar := &testRegistrar{}
	p, _ := setupTestPipeline(t, &testTransformer{}, registrar, nil, WithPoolSize(2))

	docs := []*core.Document{
		core.NewDocument("a.pdf", []byte("a")),
		core.NewDocument("b.pdf", []byte("b")),
	}
	items := p.UploadRawBatch(context.Background(), docs, "ds")
	require.Len(t, items, 2)
	for _, item := range items {
		require.NoError(t, item.Err)
		assert.Equal(t, core.IngestModeRaw, item.Result.Mode)
	}
	assert.Len(t, registrar.byFile, 2)
}

func TestPreCheck(t *testing.T) {
	docs := []*core.Document{
		core.NewDocument("small.pdf", make([]byte, 10)),
		core.NewDocument("exact.pdf", make([]byte, 20)),
		core.NewDocument("big.pdf", make([]byte, 21)),
		nil,
	}

	assert.Equal(t, []string{"big.pdf"}, PreCheck(docs, 20))
	assert.Empty(t, PreCheck(docs, DefaultPreCheckSize))
}

func TestUploadRawBatch_ReportsProgress(t *testing.T) {
	var buf bytes.Buffer
	registrar := &testRegistrar{}
	p, _ := setupTestPipeline(t, &testTransformer{}, registrar, nil, WithProgressWriter(&buf), WithMaxSize(4))

	docs := []*core.Document{
		core.NewDocument("a.pdf", []byte("a")),
		core.NewDocument("big.pdf", []byte("12345")),
	}
	items := p.UploadRawBatch(context.Background(), docs, "ds")
	require.Len(t, items, 2)

	assert.Contains(t, buf.String(), "2/2")
	assert.Contains(t, buf.String(), "1 failed")
}
