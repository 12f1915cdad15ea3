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

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/poiesic/plantdesk/core"
)

// Client talks to the workflow, dataset and chat endpoints.
type Client struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client from a validated configuration.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: config,
		http:   httpClient,
		logger: logger.With("component", "upstream-client"),
	}, nil
}

// WorkflowResult is the outcome of a blocking workflow run.
type WorkflowResult struct {
	WorkflowRunID string
	Status        string
	// ArtifactURL is data.outputs.result; empty when the workflow returned null.
	ArtifactURL string
}

type workflowRequest struct {
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
	Inputs       map[string]string `json:"inputs"`
	WorkflowID   string            `json:"workflow_id,omitempty"`
}

type workflowResponse struct {
	WorkflowRunID string `json:"workflow_run_id"`
	Data          struct {
		Status  string `json:"status"`
		Outputs struct {
			Result *string `json:"result"`
		} `json:"outputs"`
	} `json:"data"`
}

// RunWorkflow posts text to the preprocessing workflow in blocking mode.
// The call is bounded by the configured workflow timeout; a timeout is
// returned wrapped so retry.IsTimeout recognizes it.
func (c *Client) RunWorkflow(ctx context.Context, text string) (*WorkflowResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.WorkflowTimeout)
	defer cancel()

	body := workflowRequest{
		ResponseMode: "blocking",
		User:         c.config.User,
		Inputs:       map[string]string{"text": text},
		WorkflowID:   c.config.WorkflowID,
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/workflows/run", c.config.WorkflowToken, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("run workflow: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &core.UpstreamError{Status: resp.StatusCode, Body: readBody(resp.Body)}
	}

	var decoded workflowResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode workflow response: %w", err)
	}

	result := &WorkflowResult{
		WorkflowRunID: decoded.WorkflowRunID,
		Status:        decoded.Data.Status,
	}
	if decoded.Data.Outputs.Result != nil {
		result.ArtifactURL = *decoded.Data.Outputs.Result
	}
	c.logger.Debug("workflow run finished", "run", result.WorkflowRunID, "status", result.Status, "elapsed", time.Since(start))
	return result, nil
}

// DocumentCreated is the dataset's answer to a document registration.
type DocumentCreated struct {
	Document struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		IndexingStatus string `json:"indexing_status"`
	} `json:"document"`
	Batch string `json:"batch"`
}

// PreProcessingRule toggles one of the dataset's cleaning steps.
type PreProcessingRule struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// Segmentation controls how the dataset splits registered text.
type Segmentation struct {
	Separator string `json:"separator"`
	MaxTokens int    `json:"max_tokens"`
}

// ProcessRule is the process_rule object of a registration request.
type ProcessRule struct {
	Mode  string   `json:"mode"`
	Rules *RuleSet `json:"rules,omitempty"`
}

// RuleSet holds the custom processing rules.
type RuleSet struct {
	PreProcessingRules []PreProcessingRule `json:"pre_processing_rules"`
	Segmentation       Segmentation        `json:"segmentation"`
}

// DefaultProcessRule is the custom rule applied to pipeline registrations:
// collapse whitespace, strip URLs and e-mails, split on "####", cap segments
// at 1000 tokens.
func DefaultProcessRule() ProcessRule {
	return ProcessRule{
		Mode: "custom",
		Rules: &RuleSet{
			PreProcessingRules: []PreProcessingRule{
				{ID: "remove_extra_spaces", Enabled: true},
				{ID: "remove_urls_emails", Enabled: true},
			},
			Segmentation: Segmentation{
				Separator: "####",
				MaxTokens: 1000,
			},
		},
	}
}

type createByTextRequest struct {
	Name              string      `json:"name"`
	Text              string      `json:"text"`
	IndexingTechnique string      `json:"indexing_technique"`
	ProcessRule       ProcessRule `json:"process_rule"`
}

type createByFileData struct {
	IndexingTechnique string      `json:"indexing_technique"`
	ProcessRule       ProcessRule `json:"process_rule"`
}

// CreateDocumentByText registers extracted text in a dataset using the
// default custom process rule.
func (c *Client) CreateDocumentByText(ctx context.Context, datasetID, name, text string) (*DocumentCreated, error) {
	body := createByTextRequest{
		Name:              name,
		Text:              text,
		IndexingTechnique: "high_quality",
		ProcessRule:       DefaultProcessRule(),
	}
	path := "/datasets/" + url.PathEscape(datasetID) + "/document/create_by_text"
	req, err := c.newJSONRequest(ctx, http.MethodPost, path, c.config.DatasetToken, body)
	if err != nil {
		return nil, err
	}
	return c.doRegistration(req)
}

// CreateDocumentByFile uploads raw file bytes and lets the dataset process
// them automatically. The call is bounded by the upload timeout and is not
// retried.
func (c *Client) CreateDocumentByFile(ctx context.Context, datasetID, name string, content []byte) (*DocumentCreated, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.UploadTimeout)
	defer cancel()

	data, err := json.Marshal(createByFileData{
		IndexingTechnique: "high_quality",
		ProcessRule:       ProcessRule{Mode: "automatic"},
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%s`, strconv.Quote(name)))
	header.Set("Content-Type", "application/octet-stream")
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := mw.WriteField("data", string(data)); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	path := "/datasets/" + url.PathEscape(datasetID) + "/document/create_by_file"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.DatasetToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.doRegistration(req)
}

func (c *Client) doRegistration(req *http.Request) (*DocumentCreated, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("register document: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &core.RegistrationError{Status: resp.StatusCode, Body: readBody(resp.Body)}
	}

	var created DocumentCreated
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode registration response: %w", err)
	}
	return &created, nil
}

type listDocumentsResponse struct {
	Data []struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		CreatedAt      int64  `json:"created_at"`
		IndexingStatus string `json:"indexing_status"`
		WordCount      int    `json:"word_count"`
	} `json:"data"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// ListDocuments returns one page of a dataset's documents.
// Non-positive page and limit default to 1 and 1000.
func (c *Client) ListDocuments(ctx context.Context, datasetID string, page, limit int) ([]core.DatasetDocument, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 1000
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	path := "/datasets/" + url.PathEscape(datasetID) + "/documents?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.DatasetToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &core.UpstreamError{Status: resp.StatusCode, Body: readBody(resp.Body)}
	}

	var decoded listDocumentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode document list: %w", err)
	}

	docs := make([]core.DatasetDocument, len(decoded.Data))
	for i, d := range decoded.Data {
		docs[i] = core.DatasetDocument{
			ID:             d.ID,
			Name:           d.Name,
			CreatedAt:      time.Unix(d.CreatedAt, 0),
			IndexingStatus: d.IndexingStatus,
			WordCount:      d.WordCount,
		}
	}
	return docs, nil
}

// ChatRequest is one streaming chat question.
type ChatRequest struct {
	Query     string
	Location  string // the selected site name
	DatasetID string
	// ConversationID is the upstream conversation to continue. Empty starts a
	// new upstream conversation.
	ConversationID string
	// User overrides the configured user when set.
	User string
}

type chatRequestBody struct {
	Query          string            `json:"query"`
	ResponseMode   string            `json:"response_mode"`
	User           string            `json:"user"`
	Inputs         map[string]string `json:"inputs"`
	DatasetID      string            `json:"dataset_id"`
	ConversationID string            `json:"conversation_id,omitempty"`
}

// StreamChat opens a streaming chat request and returns the unread
// server-sent-event body. The caller must close it.
func (c *Client) StreamChat(ctx context.Context, chat ChatRequest) (io.ReadCloser, error) {
	user := chat.User
	if user == "" {
		user = c.config.User
	}
	body := chatRequestBody{
		Query:          chat.Query,
		ResponseMode:   "streaming",
		User:           user,
		Inputs:         map[string]string{"location": chat.Location},
		DatasetID:      chat.DatasetID,
		ConversationID: chat.ConversationID,
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/chat-messages", c.config.ChatToken, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, &core.ChatRequestError{Status: resp.StatusCode, Body: readBody(resp.Body)}
	}
	return resp.Body, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// readBody returns at most maxErrorBody bytes of an error response.
func readBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return string(data)
}
