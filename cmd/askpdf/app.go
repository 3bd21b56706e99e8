package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/askpdf/server/config"
	"github.com/askpdf/server/internal/db"
	"github.com/askpdf/server/internal/documents"
	"github.com/askpdf/server/internal/embeddings"
	"github.com/askpdf/server/internal/llm"
	"github.com/askpdf/server/internal/ollama"
	"github.com/askpdf/server/internal/openai"
	"github.com/askpdf/server/internal/rag"
	"github.com/askpdf/server/internal/session"
	"github.com/askpdf/server/internal/usage"
	"github.com/askpdf/server/internal/vectorstore"
)

// app holds the long-lived collaborators shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *documents.Store
	index     *vectorstore.Index
	processor *documents.Processor
	rag       *rag.Service

	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// newApp opens every backend named by cfg. withChat also wires the answering
// pipeline and the session store.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, withChat bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	completer, embedder, err := newModels(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.index = vectorstore.New(backend, embedder, logger)
	a.closers = append(a.closers, a.index.Close)

	a.store, err = documents.NewStore(cfg.Paths.DocumentsDir, logger)
	if err != nil {
		return nil, err
	}

	var ocr documents.OCR
	if cfg.OCR.Enabled {
		ocr = documents.NewTesseractOCR(cfg.OCR.TesseractPath, cfg.OCR.Language, cfg.OCR.DPI)
	}
	splitter, err := documents.NewSplitter(cfg.Processing.ChunkSize, cfg.Processing.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	a.processor = documents.NewProcessor(a.store, documents.NewExtractor(ocr, logger), splitter, a.index, logger)

	if withChat {
		sessions, err := newSessionStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if c, isCloser := sessions.(interface{ Close() error }); isCloser {
			a.closers = append(a.closers, c.Close)
		}
		retriever := rag.NewRetriever(a.index, completer, cfg.Retrieval.TopK, cfg.Retrieval.ScoreThreshold, logger)
		synthesizer := rag.NewSynthesizer(completer, rag.NewContextBuilder(cfg.Retrieval.MaxContextChars))
		a.rag = rag.NewService(a.index, completer, retriever, synthesizer, sessions, usage.NewTracker(), logger)
	}

	ok = true
	return a, nil
}

func newModels(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Completer, vectorstore.Embedder, error) {
	switch cfg.LLM.Provider {
	case "openai":
		client, err := openai.NewClient(openai.Config{
			BaseURL:        cfg.OpenAI.BaseURL,
			APIKey:         cfg.OpenAI.APIKey,
			Model:          cfg.OpenAI.Model,
			EmbeddingModel: cfg.OpenAI.EmbeddingModel,
			Timeout:        cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	default:
		client := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.DefaultModel, cfg.LLM.Timeout)
		model, err := ollama.NewModelSelector(client).GetDefaultModel(ctx, cfg.Ollama.DefaultModel)
		if err != nil {
			logger.Warn("could not resolve ollama model, using configured name",
				"model", cfg.Ollama.DefaultModel, "error", err)
		} else {
			client.SetModel(model)
		}
		logger.Info("language model selected", "provider", "ollama", "model", client.Model())
		embedder := embeddings.NewTextEmbedder(cfg.Ollama.BaseURL, cfg.Embeddings.TextModel, cfg.LLM.Timeout)
		return client, embedder, nil
	}
}

func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (vectorstore.Backend, error) {
	vs := cfg.VectorStore
	switch vs.Type {
	case "pgvector":
		if vs.Postgres.AutoMigrate {
			if err := db.Migrate(vs.Postgres.ConnectionString, "up", 0); err != nil {
				return nil, err
			}
		}
		database, err := db.New(ctx, vs.Postgres.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("vector store opened", "type", "pgvector")
		return vectorstore.NewPostgres(database), nil
	case "qdrant":
		q, err := vectorstore.NewQdrant(vectorstore.QdrantConfig{
			Host:       vs.Qdrant.Host,
			Port:       vs.Qdrant.Port,
			APIKey:     vs.Qdrant.APIKey,
			UseTLS:     vs.Qdrant.UseTLS,
			Collection: vs.Qdrant.Collection,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("vector store opened", "type", "qdrant", "collection", vs.Qdrant.Collection)
		return q, nil
	default:
		s, err := vectorstore.NewSQLite(cfg.Paths.IndexDir)
		if err != nil {
			return nil, err
		}
		logger.Info("vector store opened", "type", "sqlite", "path", s.Path())
		return s, nil
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	if cfg.Chat.Store == "redis" {
		store, err := session.NewRedisStore(ctx, session.RedisConfig{
			Addr:      cfg.Chat.Redis.Addr,
			Password:  cfg.Chat.Redis.Password,
			DB:        cfg.Chat.Redis.DB,
			KeyPrefix: cfg.Chat.Redis.KeyPrefix,
			MaxTurns:  cfg.Chat.MaxTurns,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return session.NewMemoryStore(cfg.Chat.MaxTurns), nil
}
