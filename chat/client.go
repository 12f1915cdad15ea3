package chat

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/plantdesk/core"
	"github.com/poiesic/plantdesk/storage"
	"github.com/poiesic/plantdesk/upstream"
)

// Streamer opens a streaming chat request.
type Streamer interface {
	StreamChat(ctx context.Context, req upstream.ChatRequest) (io.ReadCloser, error)
}

// Client sends chat questions and records the conversation.
type Client struct {
	streamer Streamer
	store    storage.ConversationRepository
	user     string
	now      func() time.Time
	observer DecodeObserver
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUser overrides the user identifier sent with every question.
func WithUser(user string) Option {
	return func(c *Client) {
		c.user = user
	}
}

// WithClock sets the time source used for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDecodeObserver registers a hook for stream lines that fail to decode.
func WithDecodeObserver(observer DecodeObserver) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient creates a chat client.
func NewClient(streamer Streamer, store storage.ConversationRepository, opts ...Option) (*Client, error) {
	if streamer == nil {
		return nil, ErrStreamerRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	c := &Client{
		streamer: streamer,
		store:    store,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "chat")
	return c, nil
}

// Send asks query within the given conversation and site. The request is
// issued when iteration starts; the returned sequence can be ranged over
// once. Breaking out of the loop closes the response.
//
// Errors are yielded as the last element. A message_end event stores the
// assistant turn and yields a fragment with Done set.
func (c *Client) Send(ctx context.Context, query string, site core.Site, conversationID string) iter.Seq2[Fragment, error] {
	var started atomic.Bool
	return func(yield func(Fragment, error) bool) {
		if !started.CompareAndSwap(false, true) {
			yield(Fragment{}, ErrAlreadyConsumed)
			return
		}
		if err := c.send(ctx, query, site, conversationID, yield); err != nil {
			yield(Fragment{}, err)
		}
	}
}

func (c *Client) send(ctx context.Context, query string, site core.Site, conversationID string, yield func(Fragment, error) bool) error {
	if err := core.ValidateQuery(query); err != nil {
		return err
	}
	if err := core.ValidateSite(site); err != nil {
		return err
	}

	if err := c.store.AppendTurn(ctx, conversationID, core.NewTurn(core.RoleUser, query, c.now())); err != nil {
		return err
	}
	upstreamID, err := c.store.UpstreamConversationID(ctx, conversationID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	body, err := c.streamer.StreamChat(ctx, upstream.ChatRequest{
		Query:          query,
		Location:       site.Name,
		DatasetID:      site.DatasetID,
		ConversationID: upstreamID,
		User:           c.user,
	})
	if err != nil {
		c.logger.Warn("chat request failed", "site", site.Name, "err", err)
		return err
	}
	defer body.Close()

	stream := NewStream(body, c.observe)
	for {
		fragment, ok := stream.Next()
		if !ok {
			break
		}
		if fragment.Done {
			if err := c.finish(ctx, conversationID, stream); err != nil {
				return err
			}
			yield(fragment, nil)
			return nil
		}
		if !yield(fragment, nil) {
			c.logger.Debug("chat stream abandoned by caller", "conversation", conversationID)
			return nil
		}
	}

	if err := stream.Err(); err != nil {
		return err
	}
	c.logger.Warn("chat stream ended without message_end", "conversation", conversationID, "chars", len(stream.Text()))
	return nil
}

// finish stores the assistant turn and caches the upstream conversation id.
func (c *Client) finish(ctx context.Context, conversationID string, stream *Stream) error {
	if err := c.store.AppendTurn(ctx, conversationID, core.NewTurn(core.RoleAssistant, stream.Text(), c.now())); err != nil {
		return err
	}
	if id := stream.ConversationID(); id != "" {
		if err := c.store.SetUpstreamConversationID(ctx, conversationID, id); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) observe(line string, err error) {
	c.logger.Debug("skipping undecodable stream line", "line", line, "err", err)
	if c.observer != nil {
		c.observer(line, err)
	}
}

// Collect drains seq and returns the final answer. It returns ErrIncomplete
// together with the partial text when the stream ended without message_end.
func Collect(seq iter.Seq2[Fragment, error]) (string, error) {
	var text string
	for fragment, err := range seq {
		if err != nil {
			return text, err
		}
		text = fragment.Text
		if fragment.Done {
			return text, nil
		}
	}
	return text, ErrIncomplete
}
