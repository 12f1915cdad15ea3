package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/plantdesk/core"
	"github.com/poiesic/plantdesk/extract"
	"github.com/poiesic/plantdesk/retry"
	"github.com/poiesic/plantdesk/storage"
	"github.com/poiesic/plantdesk/upstream"
)

const (
	// DefaultMaxSize is the pipeline's hard size ceiling.
	DefaultMaxSize int64 = 200 << 20

	// DefaultPreCheckSize is the stricter limit the upload form applies
	// before calling the pipeline.
	DefaultPreCheckSize int64 = 50 << 20

	// DefaultAttempts and DefaultDelay make up the default transform retry policy.
	DefaultAttempts = 3
	DefaultDelay    = 5 * time.Second
)

// Transformer runs the remote preprocessing workflow.
type Transformer interface {
	RunWorkflow(ctx context.Context, text string) (*upstream.WorkflowResult, error)
}

// Registrar creates documents in a knowledge dataset.
type Registrar interface {
	CreateDocumentByText(ctx context.Context, datasetID, name, text string) (*upstream.DocumentCreated, error)
	CreateDocumentByFile(ctx context.Context, datasetID, name string, content []byte) (*upstream.DocumentCreated, error)
}

// ExtractFunc turns file bytes into plain text.
type ExtractFunc func(content []byte, extension string) (string, error)

// Pipeline orchestrates document ingestion.
type Pipeline struct {
	transformer Transformer
	registrar   Registrar
	history     storage.IngestHistoryRepository
	pool        *ants.Pool
	extract     ExtractFunc
	retry       *retry.Policy
	maxSize     int64
	progress    io.Writer
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for batch ingestion.
// Default is 1, which ingests a batch sequentially.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithMaxSize sets the size ceiling in bytes. Default is 200 MiB.
func WithMaxSize(size int64) Option {
	return func(p *Pipeline) error {
		if size <= 0 {
			return fmt.Errorf("max size must be positive, got %d", size)
		}
		p.maxSize = size
		return nil
	}
}

// WithRetryPolicy replaces the transform retry policy.
// Default is 3 attempts, 5s apart, retrying timeouts only.
func WithRetryPolicy(policy *retry.Policy) Option {
	return func(p *Pipeline) error {
		if policy == nil {
			return errors.New("retry policy required")
		}
		if policy.MaxAttempts <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		copied := *policy
		p.retry = &copied
		return nil
	}
}

// WithProgressWriter reports the progress of every batch to w.
func WithProgressWriter(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithExtractor replaces the text extractor. Default is extract.Extract.
func WithExtractor(fn ExtractFunc) Option {
	return func(p *Pipeline) error {
		if fn != nil {
			p.extract = fn
		}
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline. history may be nil.
func NewPipeline(
	transformer Transformer,
	registrar Registrar,
	history storage.IngestHistoryRepository,
	opts ...Option,
) (*Pipeline, error) {
	if transformer == nil {
		return nil, ErrTransformerRequired
	}
	if registrar == nil {
		return nil, ErrRegistrarRequired
	}

	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		transformer: transformer,
		registrar:   registrar,
		history:     history,
		pool:        pool,
		extract:     extract.Extract,
		retry:       retry.Fixed(DefaultAttempts, DefaultDelay, retry.IsTimeout),
		maxSize:     DefaultMaxSize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	p.logger = p.logger.With("component", "ingestion")
	if p.retry.Logger == nil {
		p.retry.Logger = p.logger
	}
	return p, nil
}

// Ingest extracts, transforms and registers one document.
// The registered text is the extracted text, not the workflow output.
func (p *Pipeline) Ingest(ctx context.Context, doc *core.Document, datasetID string) (*core.IngestResult, error) {
	if err := p.check(doc, datasetID); err != nil {
		return nil, err
	}

	text, err := p.extract(doc.Content, doc.Extension)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("extracted text", "name", doc.Name, "chars", len(text))

	workflow, err := p.transform(ctx, text)
	if err != nil {
		return nil, err
	}

	created, err := p.registrar.CreateDocumentByText(ctx, datasetID, doc.Name, text)
	if err != nil {
		return nil, err
	}

	result := &core.IngestResult{
		Name:          doc.Name,
		DatasetID:     datasetID,
		DocumentID:    created.Document.ID,
		Batch:         created.Batch,
		Mode:          core.IngestModePipeline,
		ArtifactURL:   workflow.ArtifactURL,
		ProcessedName: core.ProcessedName(doc.Name),
	}
	p.logger.Info("document registered", "name", doc.Name, "dataset", datasetID, "document", result.DocumentID)
	p.record(ctx, doc, result)
	return result, nil
}

// UploadRaw sends the document bytes straight to the dataset, which
// processes them with its automatic rules. It is not retried.
func (p *Pipeline) UploadRaw(ctx context.Context, doc *core.Document, datasetID string) (*core.IngestResult, error) {
	if err := p.check(doc, datasetID); err != nil {
		return nil, err
	}

	created, err := p.registrar.CreateDocumentByFile(ctx, datasetID, doc.Name, doc.Content)
	if err != nil {
		return nil, err
	}

	result := &core.IngestResult{
		Name:       doc.Name,
		DatasetID:  datasetID,
		DocumentID: created.Document.ID,
		Batch:      created.Batch,
		Mode:       core.IngestModeRaw,
	}
	p.logger.Info("document uploaded", "name", doc.Name, "dataset", datasetID, "document", result.DocumentID)
	p.record(ctx, doc, result)
	return result, nil
}

// BatchItem is the outcome for one document of a batch.
type BatchItem struct {
	Name   string
	Result *core.IngestResult
	Err    error
}

// IngestBatch runs Ingest for every document on the worker pool.
// Items are returned in input order.
func (p *Pipeline) IngestBatch(ctx context.Context, docs []*core.Document, datasetID string) []BatchItem {
	return p.batch(ctx, docs, datasetID, p.Ingest)
}

// UploadRawBatch runs UploadRaw for every document on the worker pool.
// Items are returned in input order.
func (p *Pipeline) UploadRawBatch(ctx context.Context, docs []*core.Document, datasetID string) []BatchItem {
	return p.batch(ctx, docs, datasetID, p.UploadRaw)
}

func (p *Pipeline) batch(
	ctx context.Context,
	docs []*core.Document,
	datasetID string,
	fn func(context.Context, *core.Document, string) (*core.IngestResult, error),
) []BatchItem {
	items := make([]BatchItem, len(docs))
	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, len(docs))
		tracker.Start()
		defer tracker.Finish()
	}

	var wg sync.WaitGroup
	for i, doc := range docs {
		if doc != nil {
			items[i].Name = doc.Name
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			items[i].Result, items[i].Err = fn(ctx, doc, datasetID)
			if tracker != nil {
				tracker.Record(items[i])
			}
		})
		if err != nil {
			wg.Done()
			items[i].Err = err
			if tracker != nil {
				tracker.Record(items[i])
			}
		}
	}
	wg.Wait()
	return items
}

// PreCheck returns the names of documents larger than limit.
func PreCheck(docs []*core.Document, limit int64) []string {
	var over []string
	for _, doc := range docs {
		if doc != nil && doc.Size() > limit {
			over = append(over, doc.Name)
		}
	}
	return over
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func (p *Pipeline) check(doc *core.Document, datasetID string) error {
	if doc == nil {
		return ErrNoDocument
	}
	if doc.Size() > p.maxSize {
		return &core.TooLargeError{Name: doc.Name, Size: doc.Size(), Limit: p.maxSize}
	}
	if strings.TrimSpace(datasetID) == "" {
		return ErrDatasetRequired
	}
	return nil
}

// transform runs the workflow through the retry policy. Exhausting the
// attempts on timeouts yields core.ErrUpstreamTimeout.
func (p *Pipeline) transform(ctx context.Context, text string) (*upstream.WorkflowResult, error) {
	var result *upstream.WorkflowResult
	attempts, err := p.retry.Do(ctx, func(ctx context.Context) error {
		r, err := p.transformer.RunWorkflow(ctx, text)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) && retry.IsTimeout(exhausted.Last) {
			return nil, fmt.Errorf("%w: %w", core.ErrUpstreamTimeout, err)
		}
		return nil, err
	}
	p.logger.Debug("workflow finished", "attempts", attempts, "artifact", result.ArtifactURL)
	return result, nil
}

// record writes the history entry. Failures are logged only.
func (p *Pipeline) record(ctx context.Context, doc *core.Document, result *core.IngestResult) {
	if p.history == nil {
		return
	}

	id := core.IDFromContent(doc.Content)
	seen, err := p.history.SeenContent(ctx, id)
	if err != nil {
		p.logger.Warn("error reading ingest history", "name", doc.Name, "err", err)
	} else if seen {
		p.logger.Info("same content was ingested before", "name", doc.Name, "dataset", result.DatasetID)
	}

	err = p.history.RecordIngest(ctx, &core.IngestRecord{
		ContentID:  id,
		Name:       doc.Name,
		DatasetID:  result.DatasetID,
		DocumentID: result.DocumentID,
		Mode:       result.Mode,
		Size:       doc.Size(),
	})
	if err != nil {
		p.logger.Warn("error recording ingest history", "name", doc.Name, "err", err)
	}
}
