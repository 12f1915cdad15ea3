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

package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/poiesic/plantdesk"
	"github.com/poiesic/plantdesk/chat"
	"github.com/poiesic/plantdesk/config"
	"github.com/poiesic/plantdesk/core"
	"github.com/poiesic/plantdesk/extract"
	"github.com/poiesic/plantdesk/ingestion"
	"github.com/poiesic/plantdesk/segment"
	"github.com/poiesic/plantdesk/server"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	siteFlag := &cli.StringFlag{
		Name:     "site",
		Aliases:  []string{"s"},
		Usage:    "Site whose dataset is used",
		Required: true,
	}

	return &cli.App{
		Name:  "plantdesk",
		Usage: "Plant manual ingestion and site-scoped question answering",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.addr)",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Extract, transform and register files",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags:     []cli.Flag{siteFlag},
			},
			{
				Name:      "upload",
				Usage:     "Upload files as-is for server-side processing",
				ArgsUsage: "FILE...",
				Action:    uploadCommand,
				Flags:     []cli.Flag{siteFlag},
			},
			{
				Name:      "chat",
				Usage:     "Ask a question and print the answer as it streams",
				ArgsUsage: "QUERY",
				Action:    chatCommand,
				Flags: []cli.Flag{
					siteFlag,
					&cli.StringFlag{
						Name:  "conversation",
						Usage: "Conversation id (defaults to the current conversation; unknown ids start a new one)",
					},
				},
			},
			{
				Name:   "documents",
				Usage:  "List a site's dataset documents",
				Action: documentsCommand,
				Flags: []cli.Flag{
					siteFlag,
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Case-insensitive name filter",
					},
				},
			},
			{
				Name:   "history",
				Usage:  "Show the local ingestion history for a site",
				Action: historyCommand,
				Flags: []cli.Flag{
					siteFlag,
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "Maximum number of records",
					},
				},
			},
			{
				Name:   "sites",
				Usage:  "List configured sites",
				Action: sitesCommand,
			},
			{
				Name:      "segments",
				Usage:     "Preview how a file would be segmented",
				ArgsUsage: "FILE",
				Action:    segmentsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "separator",
						Usage: "Segment separator",
						Value: segment.DefaultSeparator,
					},
					&cli.IntFlag{
						Name:  "max-tokens",
						Usage: "Maximum segment length",
						Value: segment.DefaultMaxTokens,
					},
					&cli.IntFlag{
						Name:  "overlap",
						Usage: "Overlap between split segments",
					},
				},
			},
			{
				Name:  "conversations",
				Usage: "Manage stored conversations",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List recent conversations",
						Action: conversationsListCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "limit",
								Usage: "Number of conversations to list",
								Value: config.DefaultRecent,
							},
						},
					},
					{
						Name:   "new",
						Usage:  "Start a new conversation",
						Action: conversationsNewCommand,
					},
					{
						Name:      "show",
						Usage:     "Print a conversation",
						ArgsUsage: "ID",
						Action:    conversationsShowCommand,
					},
					{
						Name:      "delete",
						Usage:     "Delete a conversation",
						ArgsUsage: "ID",
						Action:    conversationsDeleteCommand,
					},
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if !c.IsSet("log-level") {
		if err := configureLogger(cfg.Log.Level); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func openApp(c *cli.Context, opts ...plantdesk.AppOption) (*plantdesk.App, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	app, err := plantdesk.Open(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open plantdesk: %w", err)
	}
	return app, nil
}

func serveCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config()
	srv, err := server.NewServer(server.Deps{
		Sites:         cfg,
		Documents:     app.Upstream(),
		Ingester:      app.Pipeline(),
		Chat:          app.Chat(),
		Conversations: app.Conversations(),
		History:       app.History(),
	},
		server.WithLogger(slog.Default()),
		server.WithRecentLimit(cfg.Server.RecentLimit),
		server.WithPreCheckSize(cfg.Ingest.PreCheckSize()),
		server.WithDocumentsTTL(cfg.Server.DocumentsTTL),
	)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, addr)
}

func ingestCommand(c *cli.Context) error {
	return registerFiles(c, core.IngestModePipeline)
}

func uploadCommand(c *cli.Context) error {
	return registerFiles(c, core.IngestModeRaw)
}

func registerFiles(c *cli.Context, mode core.IngestMode) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}
	docs, err := readDocuments(c.Args().Slice())
	if err != nil {
		return err
	}

	var opts []plantdesk.AppOption
	if len(docs) > 1 {
		opts = append(opts, plantdesk.WithPipelineOptions(ingestion.WithProgressWriter(c.App.ErrWriter)))
	}
	app, err := openApp(c, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	site, err := app.Config().Site(c.String("site"))
	if err != nil {
		return err
	}

	var items []ingestion.BatchItem
	if mode == core.IngestModeRaw {
		items = app.Pipeline().UploadRawBatch(c.Context, docs, site.DatasetID)
	} else {
		items = app.Pipeline().IngestBatch(c.Context, docs, site.DatasetID)
	}

	w := c.App.Writer
	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s: %v\n", item.Name, item.Err)
			continue
		}
		fmt.Fprintf(w, "OK   %s -> %s (batch %s)\n", item.Name, item.Result.DocumentID, item.Result.Batch)
		if item.Result.ArtifactURL != "" {
			fmt.Fprintf(w, "     %s: %s\n", item.Result.ProcessedName, item.Result.ArtifactURL)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(items))
	}
	return nil
}

func readDocuments(paths []string) ([]*core.Document, error) {
	docs := make([]*core.Document, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		docs = append(docs, core.NewDocument(filepath.Base(path), content))
	}
	return docs, nil
}

func chatCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if err := core.ValidateQuery(query); err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	site, err := app.Config().Site(c.String("site"))
	if err != nil {
		return err
	}

	conversationID, err := chatConversation(c, app)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	w := c.App.Writer
	for fragment, err := range app.Chat().Send(ctx, query, site, conversationID) {
		if err != nil {
			fmt.Fprintln(w)
			return err
		}
		if fragment.Done {
			fmt.Fprintln(w)
			return nil
		}
		fmt.Fprint(w, fragment.Delta)
	}
	fmt.Fprintln(w)
	return chat.ErrIncomplete
}

// chatConversation resolves the conversation a chat command continues. An
// unknown --conversation id starts a new conversation.
func chatConversation(c *cli.Context, app *plantdesk.App) (string, error) {
	requested := c.String("conversation")
	if requested == "" {
		conv, err := app.Conversations().Current(c.Context)
		if err != nil {
			return "", err
		}
		return conv.ID, nil
	}
	conv, err := app.Conversations().EnsureConversation(c.Context, requested)
	if err != nil {
		return "", err
	}
	if conv.ID != requested {
		fmt.Fprintf(c.App.ErrWriter, "conversation %s not found, started %s\n", requested, conv.ID)
	}
	return conv.ID, nil
}

func historyCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	site, err := app.Config().Site(c.String("site"))
	if err != nil {
		return err
	}
	records, err := app.History().IngestHistory(c.Context, site.DatasetID, c.Int("limit"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tNAME\tMODE\tSIZE\tDOCUMENT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.At.Local().Format("2006-01-02 15:04"), r.Name, r.Mode, r.Size, r.DocumentID)
	}
	return tw.Flush()
}

func documentsCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	site, err := app.Config().Site(c.String("site"))
	if err != nil {
		return err
	}
	docs, err := app.Upstream().ListDocuments(c.Context, site.DatasetID, 1, 0)
	if err != nil {
		return err
	}

	query := strings.ToLower(c.String("query"))
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCREATED\tSTATUS\tWORDS")
	for i := range docs {
		doc := &docs[i]
		if query != "" && !strings.Contains(strings.ToLower(doc.Name), query) {
			continue
		}
		status := "processing"
		if doc.Completed() {
			status = "completed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", doc.Name, doc.CreatedAt.Local().Format("2006-01-02 15:04"), status, doc.WordCount)
	}
	return tw.Flush()
}

func sitesCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tDATASET")
	for _, site := range cfg.Sites() {
		dataset := site.DatasetID
		if dataset == "" {
			dataset = "(not configured)"
		}
		fmt.Fprintf(tw, "%s\t%s\n", site.Name, dataset)
	}
	return tw.Flush()
}

func segmentsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one file is required")
	}
	path := c.Args().First()
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	text, err := extract.Extract(content, core.ExtensionOf(path))
	if err != nil {
		return err
	}

	rules := segment.DefaultRules()
	rules.Separator = c.String("separator")
	rules.MaxTokens = c.Int("max-tokens")
	rules.Overlap = c.Int("overlap")
	segments, err := segment.Preview(text, rules)
	if err != nil {
		return err
	}

	w := c.App.Writer
	for i, s := range segments {
		fmt.Fprintf(w, "--- segment %d (%d chars) ---\n%s\n", i+1, len([]rune(s)), s)
	}
	fmt.Fprintf(w, "%d segments\n", len(segments))
	return nil
}

func conversationsListCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	current, err := app.Conversations().Current(c.Context)
	if err != nil {
		return err
	}
	conversations, err := app.Conversations().RecentConversations(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tDATE\tTURNS\tTITLE")
	for _, conv := range conversations {
		marker := ""
		if conv.ID == current.ID {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", marker, conv.ID, conv.Date(), len(conv.Turns), conv.Title)
	}
	return tw.Flush()
}

func conversationsNewCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	conv, err := app.Conversations().CreateConversation(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, conv.ID)
	return nil
}

func conversationsShowCommand(c *cli.Context) error {
	id, err := conversationArg(c)
	if err != nil {
		return err
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	conv, err := app.Conversations().GetConversation(c.Context, id)
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "%s  %s  %s\n", conv.ID, conv.Date(), conv.Title)
	for _, turn := range conv.Turns {
		fmt.Fprintf(w, "[%s] %s: %s\n", turn.Timestamp, turn.Role, turn.Message)
	}
	return nil
}

func conversationsDeleteCommand(c *cli.Context) error {
	id, err := conversationArg(c)
	if err != nil {
		return err
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Conversations().DeleteConversation(c.Context, id)
}

func conversationArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", errors.New("exactly one conversation id is required")
	}
	return c.Args().First(), nil
}

func setupLogger(c *cli.Context) error {
	return configureLogger(c.String("log-level"))
}

func configureLogger(levelStr string) error {
	level, err := parseLevel(levelStr)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
}
