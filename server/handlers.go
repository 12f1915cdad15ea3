package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/plantdesk/chat"
	"github.com/poiesic/plantdesk/core"
	"github.com/poiesic/plantdesk/extract"
	"github.com/poiesic/plantdesk/ingestion"
)

const (
	uploadField        = "files[]"
	documentLimit      = 1000
	conversationHeader = "X-Conversation-ID"
)

type siteView struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

type documentView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
	WordCount int       `json:"word_count"`
}

type uploadResult struct {
	Name          string          `json:"name"`
	DocumentID    string          `json:"document_id,omitempty"`
	Batch         string          `json:"batch,omitempty"`
	Mode          core.IngestMode `json:"mode,omitempty"`
	ArtifactURL   string          `json:"artifact_url,omitempty"`
	ProcessedName string          `json:"processed_name,omitempty"`
	Error         string          `json:"error,omitempty"`
	Status        int             `json:"status,omitempty"`
}

type conversationSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	TurnCount int    `json:"turn_count"`
}

type messageRequest struct {
	Query string `json:"query"`
	Site  string `json:"site"`
}

type selectRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleSites(c *gin.Context) {
	sites := s.deps.Sites.Sites()
	views := make([]siteView, 0, len(sites))
	for _, site := range sites {
		views = append(views, siteView{Name: site.Name, Configured: site.DatasetID != ""})
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleListDocuments(c *gin.Context) {
	site, err := s.deps.Sites.Site(c.Param("site"))
	if err != nil {
		handleError(c, err)
		return
	}

	docs, ok := s.documents.Get(site.DatasetID)
	if !ok {
		docs, err = s.deps.Documents.ListDocuments(c.Request.Context(), site.DatasetID, 1, documentLimit)
		if err != nil {
			handleError(c, err)
			return
		}
		s.documents.Add(site.DatasetID, docs)
	}

	query := strings.ToLower(strings.TrimSpace(c.Query("q")))
	views := make([]documentView, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		if query != "" && !strings.Contains(strings.ToLower(doc.Name), query) {
			continue
		}
		status := "processing"
		if doc.Completed() {
			status = "completed"
		}
		views = append(views, documentView{
			ID:        doc.ID,
			Name:      doc.Name,
			CreatedAt: doc.CreatedAt,
			Status:    status,
			WordCount: doc.WordCount,
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleUpload(c *gin.Context) {
	site, err := s.deps.Sites.Site(c.Param("site"))
	if err != nil {
		handleError(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		handleError(c, NewAppError(http.StatusBadRequest, "Invalid multipart form", err))
		return
	}
	headers := form.File[uploadField]
	if len(headers) == 0 {
		headers = form.File["files"]
	}
	if len(headers) == 0 {
		handleError(c, fmt.Errorf("%w: no files uploaded", ErrInvalidInput))
		return
	}

	docs := make([]*core.Document, 0, len(headers))
	for _, fh := range headers {
		doc, err := readUpload(fh)
		if err != nil {
			handleError(c, err)
			return
		}
		docs = append(docs, doc)
	}

	var rejected []string
	for _, doc := range docs {
		if !extract.Accepts(doc.Extension) {
			rejected = append(rejected, doc.Name)
		}
	}
	if len(rejected) > 0 {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{
			"error":    "unsupported file types",
			"files":    rejected,
			"accepted": extract.Supported(),
		})
		return
	}

	if oversized := ingestion.PreCheck(docs, s.preCheckSize); len(oversized) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("files exceed %d MiB", s.preCheckSize>>20),
			"files": oversized,
		})
		return
	}

	var items []ingestion.BatchItem
	mode := c.DefaultPostForm("mode", string(core.IngestModePipeline))
	switch core.IngestMode(mode) {
	case core.IngestModeRaw:
		items = s.deps.Ingester.UploadRawBatch(c.Request.Context(), docs, site.DatasetID)
	case core.IngestModePipeline:
		items = s.deps.Ingester.IngestBatch(c.Request.Context(), docs, site.DatasetID)
	default:
		handleError(c, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, mode))
		return
	}

	results := make([]uploadResult, 0, len(items))
	registered := false
	for _, item := range items {
		res := uploadResult{Name: item.Name}
		if item.Err != nil {
			appErr := MapError(item.Err)
			res.Error = item.Err.Error()
			res.Status = appErr.Code
			s.logger.Warn("upload failed", "site", site.Name, "file", item.Name, "err", item.Err)
		} else {
			registered = true
			res.DocumentID = item.Result.DocumentID
			res.Batch = item.Result.Batch
			res.Mode = item.Result.Mode
			res.ArtifactURL = item.Result.ArtifactURL
			if res.ArtifactURL != "" {
				res.ProcessedName = item.Result.ProcessedName
			}
		}
		results = append(results, res)
	}
	if registered {
		s.documents.Remove(site.DatasetID)
	}
	c.JSON(http.StatusOK, gin.H{"site": site.Name, "results": results})
}

func (s *Server) handleIngestHistory(c *gin.Context) {
	site, err := s.deps.Sites.Site(c.Param("site"))
	if err != nil {
		handleError(c, err)
		return
	}
	limit, err := queryLimit(c, defaultHistoryLimit)
	if err != nil {
		handleError(c, err)
		return
	}

	records, err := s.deps.History.IngestHistory(c.Request.Context(), site.DatasetID, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	if records == nil {
		records = []*core.IngestRecord{}
	}
	c.JSON(http.StatusOK, records)
}

func queryLimit(c *gin.Context, fallback int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", ErrInvalidInput)
	}
	return n, nil
}

func readUpload(fh *multipart.FileHeader) (*core.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return core.NewDocument(fh.Filename, content), nil
}

func (s *Server) handleListConversations(c *gin.Context) {
	limit, err := queryLimit(c, s.recentLimit)
	if err != nil {
		handleError(c, err)
		return
	}

	conversations, err := s.deps.Conversations.RecentConversations(c.Request.Context(), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	summaries := make([]conversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summaries = append(summaries, conversationSummary{
			ID:        conv.ID,
			Title:     conv.Title,
			Date:      conv.Date(),
			TurnCount: len(conv.Turns),
		})
	}
	c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleCreateConversation(c *gin.Context) {
	conv, err := s.deps.Conversations.CreateConversation(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (s *Server) handleCurrentConversation(c *gin.Context) {
	conv, err := s.deps.Conversations.Current(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) handleSelectConversation(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		handleError(c, fmt.Errorf("%w: id is required", ErrInvalidInput))
		return
	}
	ctx := c.Request.Context()
	if err := s.deps.Conversations.SetCurrent(ctx, req.ID); err != nil {
		handleError(c, err)
		return
	}
	conv, err := s.deps.Conversations.GetConversation(ctx, req.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) handleGetConversation(c *gin.Context) {
	conv, err := s.deps.Conversations.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	if err := s.deps.Conversations.DeleteConversation(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleSendMessage streams the answer as server-sent events: "message"
// events carry the delta and accumulated text, then exactly one "done" or
// "error" event closes the stream. An unknown conversation id starts a new
// conversation, whose id is returned in the X-Conversation-ID header.
func (s *Server) handleSendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, fmt.Errorf("%w: %v", ErrInvalidInput, err))
		return
	}
	if err := core.ValidateQuery(req.Query); err != nil {
		handleError(c, err)
		return
	}
	site, err := s.deps.Sites.Site(req.Site)
	if err != nil {
		handleError(c, err)
		return
	}
	ctx := c.Request.Context()
	conv, err := s.deps.Conversations.EnsureConversation(ctx, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	id := conv.ID

	c.Header(conversationHeader, id)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	done := false
	for fragment, err := range s.deps.Chat.Send(ctx, req.Query, site, id) {
		if err != nil {
			s.logger.Warn("chat failed", "conversation", id, "site", site.Name, "err", err)
			appErr := MapError(err)
			s.sendEvent(c, "error", gin.H{"error": err.Error(), "status": appErr.Code})
			return
		}
		if fragment.Done {
			done = true
			s.sendEvent(c, "done", gin.H{"text": fragment.Text, "conversation": id, "conversation_id": fragment.ConversationID})
			break
		}
		s.sendEvent(c, "message", gin.H{"delta": fragment.Delta, "text": fragment.Text})
	}
	if !done {
		s.sendEvent(c, "error", gin.H{"error": chat.ErrIncomplete.Error(), "status": http.StatusBadGateway})
	}
}

func (s *Server) sendEvent(c *gin.Context, name string, payload any) {
	c.SSEvent(name, payload)
	c.Writer.Flush()
}
