// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plantdesk

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/poiesic/plantdesk/chat"
	"github.com/poiesic/plantdesk/config"
	"github.com/poiesic/plantdesk/ingestion"
	"github.com/poiesic/plantdesk/retry"
	"github.com/poiesic/plantdesk/storage"
	"github.com/poiesic/plantdesk/storage/badger"
	"github.com/poiesic/plantdesk/upstream"
)

// App holds the long-lived components of a plantdesk process.
type App struct {
	config        *config.Config
	backend       *badger.Backend
	conversations storage.ConversationRepository
	history       storage.IngestHistoryRepository
	client        *upstream.Client
	pipeline      *ingestion.Pipeline
	chat          *chat.Client
	logger        *slog.Logger
}

// AppOption configures an App.
type AppOption func(*appOptions)

type appOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
	pipeline   []ingestion.Option
	chat       []chat.Option
}

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(client *http.Client) AppOption {
	return func(o *appOptions) {
		o.httpClient = client
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) AppOption {
	return func(o *appOptions) {
		o.logger = logger
	}
}

// WithPipelineOptions appends ingestion options after the configured ones.
func WithPipelineOptions(opts ...ingestion.Option) AppOption {
	return func(o *appOptions) {
		o.pipeline = append(o.pipeline, opts...)
	}
}

// WithChatOptions appends chat client options.
func WithChatOptions(opts ...chat.Option) AppOption {
	return func(o *appOptions) {
		o.chat = append(o.chat, opts...)
	}
}

// Open validates cfg and builds the session store, upstream client,
// ingestion pipeline and chat client.
func Open(cfg *config.Config, opts ...AppOption) (*App, error) {
	options := &appOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := options.logger

	backend, err := badger.OpenBackend(cfg.Storage.Path, cfg.Storage.InMemory)
	if err != nil {
		return nil, err
	}

	conversations, err := badger.NewConversationRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	history, err := badger.NewIngestHistoryRepository(backend)
	if err != nil {
		conversations.Close()
		backend.Close()
		return nil, err
	}

	client, err := upstream.NewClient(upstream.NewConfig(
		upstream.WithBaseURL(cfg.API.BaseURL),
		upstream.WithTokens(cfg.Secrets.WorkflowKey, cfg.Secrets.DatasetKey, cfg.Secrets.ChatKey),
		upstream.WithWorkflowID(cfg.API.WorkflowID),
		upstream.WithUser(cfg.API.User),
		upstream.WithHTTPClient(options.httpClient),
		upstream.WithLogger(logger),
	))
	if err != nil {
		history.Close()
		conversations.Close()
		backend.Close()
		return nil, err
	}

	pipelineOpts := append([]ingestion.Option{
		ingestion.WithLogger(logger),
		ingestion.WithMaxSize(cfg.Ingest.MaxSize()),
		ingestion.WithPoolSize(cfg.Ingest.PoolSize),
		ingestion.WithRetryPolicy(retry.Fixed(cfg.Ingest.Retry.Attempts, cfg.Ingest.Retry.Delay, retry.IsTimeout)),
	}, options.pipeline...)
	pipeline, err := ingestion.NewPipeline(client, client, history, pipelineOpts...)
	if err != nil {
		history.Close()
		conversations.Close()
		backend.Close()
		return nil, err
	}

	chatClient, err := chat.NewClient(client, conversations, append([]chat.Option{chat.WithLogger(logger)}, options.chat...)...)
	if err != nil {
		pipeline.Release()
		history.Close()
		conversations.Close()
		backend.Close()
		return nil, err
	}

	if missing := cfg.Unconfigured(); len(missing) > 0 {
		logger.Warn("sites without a dataset id are not selectable", "sites", missing)
	}

	return &App{
		config:        cfg,
		backend:       backend,
		conversations: conversations,
		history:       history,
		client:        client,
		pipeline:      pipeline,
		chat:          chatClient,
		logger:        logger,
	}, nil
}

// Close releases every component in reverse order of creation. Closing an
// already closed app is a no-op.
func (a *App) Close() error {
	if a.backend.IsClosed() {
		return nil
	}
	a.pipeline.Release()

	var errs []error
	if err := a.history.Close(); err != nil {
		a.logger.Error("error closing ingest history", "err", err)
		errs = append(errs, err)
	}
	if err := a.conversations.Close(); err != nil {
		a.logger.Error("error closing conversation repository", "err", err)
		errs = append(errs, err)
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Config returns the configuration the app was opened with.
func (a *App) Config() *config.Config {
	return a.config
}

// Conversations returns the conversation repository.
func (a *App) Conversations() storage.ConversationRepository {
	return a.conversations
}

// History returns the ingest history repository.
func (a *App) History() storage.IngestHistoryRepository {
	return a.history
}

// Upstream returns the upstream API client.
func (a *App) Upstream() *upstream.Client {
	return a.client
}

// Pipeline returns the ingestion pipeline.
func (a *App) Pipeline() *ingestion.Pipeline {
	return a.pipeline
}

// Chat returns the chat client.
func (a *App) Chat() *chat.Client {
	return a.chat
}
