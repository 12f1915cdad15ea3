package plantdesk

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/plantdesk/chat"
	"github.com/poiesic/plantdesk/config"
	"github.com/poiesic/plantdesk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.Storage.Path = filepath.Join(t.TempDir(), "store")
	cfg.Secrets = config.Secrets{WorkflowKey: "wf", DatasetKey: "ds", ChatKey: "chat"}
	return cfg
}

func TestOpen(t *testing.T) {
	t.Run("opens every component", func(t *testing.T) {
		app, err := Open(testConfig(t, "http://127.0.0.1:1"))
		require.NoError(t, err)
		defer app.Close()

		assert.NotNil(t, app.Conversations())
		assert.NotNil(t, app.History())
		assert.NotNil(t, app.Upstream())
		assert.NotNil(t, app.Pipeline())
		assert.NotNil(t, app.Chat())
		assert.NotNil(t, app.Config())
	})

	t.Run("missing secrets are fatal", func(t *testing.T) {
		cfg := testConfig(t, "http://127.0.0.1:1")
		cfg.Secrets.ChatKey = ""

		app, err := Open(cfg)
		assert.ErrorIs(t, err, core.ErrMissingSecret)
		assert.Nil(t, app)
	})

	t.Run("error with invalid storage path", func(t *testing.T) {
		cfg := testConfig(t, "http://127.0.0.1:1")
		cfg.Storage.Path = filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(cfg.Storage.Path, []byte("test"), 0o644))

		app, err := Open(cfg)
		assert.Error(t, err)
		assert.Nil(t, app)
	})
}

func TestApp_Close(t *testing.T) {
	app, err := Open(testConfig(t, "http://127.0.0.1:1"))
	require.NoError(t, err)
	assert.NoError(t, app.Close())
	assert.NoError(t, app.Close())
}

func TestApp_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/workflows/run":
			io.WriteString(w, `{"data":{"outputs":{"result":"https://files/out.txt"}}}`)
		case "/datasets/ds-donghae/document/create_by_text":
			io.WriteString(w, `{"document":{"id":"doc-1"},"batch":"b"}`)
		case "/chat-messages":
			io.WriteString(w, "data: {\"event\":\"message\",\"answer\":\"Open V-7\"}\n\ndata: {\"event\":\"message_end\",\"conversation_id\":\"up-1\"}\n\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	app, err := Open(cfg, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	defer app.Close()

	ctx := context.Background()
	site := core.Site{Name: "GS동해전력", DatasetID: "ds-donghae"}

	result, err := app.Pipeline().Ingest(ctx, core.NewDocument("valve.md", []byte("# Valve V-7")), site.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Equal(t, "https://files/out.txt", result.ArtifactURL)

	history, err := app.History().IngestHistory(ctx, site.DatasetID, 5)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	conversation, err := app.Conversations().Current(ctx)
	require.NoError(t, err)

	answer, err := chat.Collect(app.Chat().Send(ctx, "which valve?", site, conversation.ID))
	require.NoError(t, err)
	assert.Equal(t, "Open V-7", answer)

	turns, err := app.Conversations().Turns(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}
