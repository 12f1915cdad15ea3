//go:generate go run ../cmd/musgen

package core

import (
	"encoding/binary"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// TurnTimeLayout is the display format of ConversationTurn timestamps.
const TurnTimeLayout = "2006-01-02 15:04"

// ID is a unique identifier for content-addressed entities.
type ID uint64

// IDFromContent generates a deterministic ID from content using BLAKE2b hashing.
// Identical content produces identical IDs.
func IDFromContent(content []byte) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(content)
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is the operator typing into the chat box.
	RoleUser Role = "user"
	// RoleAssistant is the remote retrieval-augmented assistant.
	RoleAssistant Role = "assistant"
)

// Document is an uploaded file awaiting ingestion.
// It only lives for the duration of one ingestion call.
type Document struct {
	Name      string
	Content   []byte
	Extension string // lower-case, without the leading dot
}

// NewDocument builds a Document and derives its extension from the name.
func NewDocument(name string, content []byte) *Document {
	return &Document{
		Name:      name,
		Content:   content,
		Extension: ExtensionOf(name),
	}
}

// Size returns the document size in bytes.
func (d *Document) Size() int64 {
	return int64(len(d.Content))
}

// ExtensionOf returns the lower-case text after the last dot of name.
func ExtensionOf(name string) string {
	ext := filepath.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ProcessedName returns the download name offered for a transformed artifact.
// "manual.pdf" becomes "manual_processed.txt".
func ProcessedName(name string) string {
	base := name
	if i := strings.LastIndex(name, "."); i > 0 {
		base = name[:i]
	}
	return base + "_processed.txt"
}

// ConversationTurn is one message in a conversation.
// Turns are immutable once appended.
type ConversationTurn struct {
	Role      Role   `json:"role"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NewTurn creates a turn stamped with the given time.
func NewTurn(role Role, message string, at time.Time) ConversationTurn {
	return ConversationTurn{
		Role:      role,
		Message:   message,
		Timestamp: at.Format(TurnTimeLayout),
	}
}

// Conversation is an ordered list of turns owned by the session store.
type Conversation struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	CreatedAt time.Time          `json:"created_at"`
	Turns     []ConversationTurn `json:"turns,omitempty"`
	// UpstreamConversationID is the identifier the chat endpoint returned on
	// message_end. Empty until the first answer completes.
	UpstreamConversationID string `json:"upstream_conversation_id,omitempty"`
}

// DefaultConversationTitle is the title given to freshly created conversations.
const DefaultConversationTitle = "New conversation"

// Date returns the creation date shown in the recent conversations list.
func (c *Conversation) Date() string {
	return c.CreatedAt.Local().Format("2006-01-02")
}

// Site is a facility whose manuals live in one remote dataset.
type Site struct {
	Name      string `json:"name"`
	DatasetID string `json:"dataset_id"`
}

// DatasetDocument is a document as listed by the remote dataset.
type DatasetDocument struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	IndexingStatus string    `json:"indexing_status"`
	WordCount      int       `json:"word_count"`
}

// Completed reports whether the remote indexing finished.
func (d *DatasetDocument) Completed() bool {
	return d.IndexingStatus == "completed"
}

// IngestMode records which path registered a document.
type IngestMode string

const (
	// IngestModePipeline is extract, transform, then register by text.
	IngestModePipeline IngestMode = "pipeline"
	// IngestModeRaw is a direct file upload with server-side processing.
	IngestModeRaw IngestMode = "raw"
)

// IngestResult describes a successful registration.
type IngestResult struct {
	Name       string     `json:"name"`
	DatasetID  string     `json:"dataset_id"`
	DocumentID string     `json:"document_id"`
	Batch      string     `json:"batch,omitempty"`
	Mode       IngestMode `json:"mode"`
	// ArtifactURL is the downloadable output of the transform workflow, if any.
	ArtifactURL   string `json:"artifact_url,omitempty"`
	ProcessedName string `json:"processed_name,omitempty"`
}

// IngestRecord is an entry in the local ingestion history.
type IngestRecord struct {
	ContentID  ID         `json:"content_id"`
	Name       string     `json:"name"`
	DatasetID  string     `json:"dataset_id"`
	DocumentID string     `json:"document_id"`
	Mode       IngestMode `json:"mode"`
	Size       int64      `json:"size"`
	At         time.Time  `json:"at"`
}
