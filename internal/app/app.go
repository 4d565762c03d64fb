// Package app wires the application together: configuration, database,
// Genkit, stores, the ingestion pipeline, and the chat service.
package app

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/docuchat/db"
	"github.com/koopa0/docuchat/internal/chat"
	"github.com/koopa0/docuchat/internal/chunk"
	"github.com/koopa0/docuchat/internal/config"
	"github.com/koopa0/docuchat/internal/convert"
	"github.com/koopa0/docuchat/internal/database"
	"github.com/koopa0/docuchat/internal/embed"
	"github.com/koopa0/docuchat/internal/ingest"
	"github.com/koopa0/docuchat/internal/knowledge"
	"github.com/koopa0/docuchat/internal/log"
	"github.com/koopa0/docuchat/internal/session"
)

// App holds the fully wired application components.
type App struct {
	Config *config.Config
	Logger log.Logger

	Pool     *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder *embed.Client

	Knowledge *knowledge.Store
	Sessions  *session.Store

	Pipeline *ingest.Pipeline
	Chat     *chat.Service
}

// New loads configuration, runs migrations, and wires every component.
// A nil logger falls back to the default text logger. Call Close when
// done.
func New(ctx context.Context, logger log.Logger) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if logger == nil {
		logger = log.New(log.Config{})
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize Genkit")
	}

	embedder := provideEmbedder(g, cfg)
	embedClient := embed.New(embedder, cfg.EmbedBatchSize, logger)

	knowledgeStore := knowledge.New(knowledge.NewQueries(pool), pool, logger)
	sessionStore := session.New(session.NewQueries(pool), pool, logger)

	splitter, err := chunk.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create splitter: %w", err)
	}

	pipeline := ingest.New(
		knowledgeStore,
		convert.New(logger),
		splitter,
		embedClient,
		cfg.DocumentsRoot,
		logger,
	)

	agent := chat.NewAgent(
		embedClient,
		knowledgeStore,
		chat.NewGenkitGenerator(g, cfg.ModelName),
		int32(cfg.TopK),
		logger,
	)
	chatService := chat.NewService(agent, sessionStore, cfg.DocumentsRoot, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Genkit:    g,
		Embedder:  embedClient,
		Knowledge: knowledgeStore,
		Sessions:  sessionStore,
		Pipeline:  pipeline,
		Chat:      chatService,
	}, nil
}

// provideEmbedder creates the Google AI embedder.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}

// Close releases the App's resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
