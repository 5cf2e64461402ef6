package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/neuraplayapp/assistant-core/internal/embedding"
	"github.com/neuraplayapp/assistant-core/internal/extract"
	"github.com/neuraplayapp/assistant-core/internal/intent"
	"github.com/neuraplayapp/assistant-core/internal/llm"
	"github.com/neuraplayapp/assistant-core/internal/memory"
	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/orchestrator"
	"github.com/neuraplayapp/assistant-core/internal/retrieval"
	"github.com/neuraplayapp/assistant-core/internal/safety"
	"github.com/neuraplayapp/assistant-core/internal/session"
	"github.com/neuraplayapp/assistant-core/internal/store"
	"github.com/neuraplayapp/assistant-core/internal/vector"
)

// app is the fully wired core behind the commands.
type app struct {
	store     *store.SQLiteStore
	index     *vector.Index
	completer llm.Completer
	memory    *memory.Manager
	retrieval *retrieval.Engine
	profiles  *retrieval.ProfileCache
	sessions  session.Store
	orch      *orchestrator.Orchestrator
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.Database.Path)
}

// openApp wires every component from the loaded config.
func openApp(ctx context.Context) (*app, error) {
	s, err := openStore()
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{store: s}

	emb, err := embedding.New(ctx, embedding.Options{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
		Dims:     cfg.Embedding.Dims,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if emb != nil {
		ix, err := vector.NewIndex(vector.Options{Path: cfg.Vector.Path, Compress: cfg.Vector.Compress},
			embedding.ChromemFunc(emb), logger.Named("vector"))
		if err != nil {
			a.close()
			return nil, err
		}
		a.index = ix
	}

	a.completer, err = llm.New(ctx, llm.Options{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.GetLLMTimeout(),
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("llm: %w", err)
	}

	var extractor llm.Completer
	if cfg.Extraction.LLMEnabled {
		extractor = a.completer
	}
	memOpts := []memory.Option{
		memory.WithLogger(logger.Named("memory")),
		memory.WithWriteConcurrency(cfg.Extraction.WriteConcurrency),
	}
	if a.index != nil {
		memOpts = append(memOpts, memory.WithIndex(a.index))
	}
	a.memory = memory.New(s, extract.NewChain(extractor, extract.WithLogger(logger.Named("extract"))), memOpts...)

	a.profiles = retrieval.NewProfileCache(cfg.GetProfileTTL())
	recallOpts := []retrieval.Option{
		retrieval.WithProfiles(a.profiles),
		retrieval.WithLogger(logger.Named("retrieval")),
		retrieval.WithConfig(retrieval.Config{
			Limit:         cfg.Retrieval.Limit,
			TopK:          cfg.Retrieval.TopK,
			MinSimilarity: cfg.Retrieval.MinSimilarity,
			BaselineLimit: cfg.Retrieval.BaselineLimit,
		}),
	}
	if a.index != nil {
		recallOpts = append(recallOpts, retrieval.WithSemantic(a.index))
	}
	a.retrieval = retrieval.NewEngine(s, recallOpts...)

	switch cfg.Session.Backend {
	case "badger":
		bs, err := session.NewBadgerStore(session.BadgerOptions{Path: cfg.Session.Path, MaxTurns: cfg.Session.MaxTurns})
		if err != nil {
			a.close()
			return nil, err
		}
		a.sessions = bs
	default:
		a.sessions = session.NewMemoryStore(cfg.Session.MaxTurns)
	}

	var classifier intent.Classifier = intent.Heuristic{}
	if a.completer != nil {
		classifier = intent.LLMClassifier{Completer: a.completer}
	}
	guard, err := safety.NewLexical()
	if err != nil {
		a.close()
		return nil, err
	}
	chat := orchestrator.ChatHandler{Completer: a.completer, Budget: cfg.Retrieval.Budget}
	a.orch = orchestrator.New(
		orchestrator.WithLogger(logger.Named("orchestrator")),
		orchestrator.WithClassifier(classifier),
		orchestrator.WithSafety(guard),
		orchestrator.WithMemory(a.memory),
		orchestrator.WithRetrieval(a.retrieval),
		orchestrator.WithProfiles(a.profiles),
		orchestrator.WithSessions(a.sessions),
	)
	// The CLI has no tool or vision backends; every mode answers through chat.
	for mode := range model.ValidModes {
		a.orch.Register(mode, chat)
	}
	if err := a.orch.Validate(); err != nil {
		a.close()
		return nil, err
	}
	logger.Debug("core wired",
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("sessions", cfg.Session.Backend))
	return a, nil
}

func (a *app) close() {
	var errs []error
	if a.sessions != nil {
		errs = append(errs, a.sessions.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("close", zap.Error(err))
	}
}
