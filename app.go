package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/callmeahab/catalog-titles/internal/batch"
	"github.com/callmeahab/catalog-titles/internal/config"
	"github.com/callmeahab/catalog-titles/internal/engine"
	"github.com/callmeahab/catalog-titles/internal/logger"
	"github.com/callmeahab/catalog-titles/internal/metrics"
	"github.com/callmeahab/catalog-titles/internal/search"
	"github.com/callmeahab/catalog-titles/internal/store"
	"github.com/callmeahab/catalog-titles/internal/taxonomy"
	"github.com/callmeahab/catalog-titles/internal/textnorm"
	"github.com/callmeahab/catalog-titles/internal/validation"
)

// app holds everything a command may need. The database and the search
// index stay nil unless configured.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	rules   *taxonomy.RuleSet
	norm    *textnorm.Normalizer
	quick   *validation.QuickValidator
	session *batch.Session
	metrics *metrics.Metrics
	store   *store.Store
	index   *search.Index
}

func newApp() (*app, error) {
	cfg, err := config.Load(config.WithDotEnv(".env"))
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cfg)

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	log.Debug("configuration loaded", zap.Any("config", cfg.Redacted()))

	norm, err := textnorm.New(textnorm.DefaultLists(), textnorm.WithUnitNormalization(cfg.Validation.NormalizeUnits))
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		log:     log,
		norm:    norm,
		quick:   validation.NewQuickValidator(validation.DefaultRules()),
		session: batch.NewSession(nil),
		metrics: metrics.New(),
	}, nil
}

// loadRules reads the nomenclature sheet.
func (a *app) loadRules() error {
	f, err := os.Open(a.cfg.Data.NomenclaturePath)
	if err != nil {
		return fmt.Errorf("failed to open nomenclature: %w", err)
	}
	defer f.Close()

	rules, err := taxonomy.LoadCSV(f)
	if err != nil {
		return err
	}
	a.rules = rules
	a.log.Info("nomenclature loaded",
		zap.String("path", a.cfg.Data.NomenclaturePath),
		zap.Int("rules", rules.Len()))
	return nil
}

// loadMemory seeds the session memory from a JSON file when one is set.
func (a *app) loadMemory() error {
	path := a.cfg.Data.MemoryPath
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open transformation memory: %w", err)
	}
	defer f.Close()

	if err := a.session.LoadMemory(f); err != nil {
		return err
	}
	a.log.Info("transformation memory loaded",
		zap.String("path", path),
		zap.Int("entries", a.session.Memory().Len()))
	return nil
}

// connectStore opens the database when DATABASE_URL is set. A connection
// failure is fatal only when required.
func (a *app) connectStore(ctx context.Context, required bool) error {
	if a.cfg.Database.URL == "" {
		if required {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		return nil
	}
	s, err := store.Open(ctx, a.cfg.Database.URL, a.log)
	if err != nil {
		if required {
			return err
		}
		a.log.Warn("database unavailable, results will not be stored", zap.Error(err))
		return nil
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = s.Close()
		return err
	}
	a.log.Info("database connected")
	a.store = s
	return nil
}

// connectIndex sets up the search index when MEILI_URL is set.
func (a *app) connectIndex(ctx context.Context, required bool) error {
	if a.cfg.Search.URL == "" {
		if required {
			return fmt.Errorf("MEILI_URL is not set")
		}
		return nil
	}
	idx := search.New(a.cfg.Search.URL, a.cfg.Search.APIKey, a.cfg.Search.Index, a.log)
	if err := idx.EnsureIndex(ctx); err != nil {
		if required {
			return err
		}
		a.log.Warn("search index unavailable, results will not be indexed", zap.Error(err))
		return nil
	}
	a.index = idx
	return nil
}

// generator returns the model client, or the stub for dry runs.
func (a *app) generator() (*engine.Anthropic, *engine.Stub, error) {
	if a.cfg.Engine.Stub {
		a.log.Info("using the deterministic engine, no model calls will be made")
		return nil, &engine.Stub{}, nil
	}
	if err := a.cfg.RequireEngine(); err != nil {
		return nil, nil, err
	}
	e := a.cfg.Engine
	client, err := engine.NewAnthropic(e.APIKey, e.Model,
		engine.WithTemperature(e.Temperature),
		engine.WithRetries(e.MaxRetries, e.RetryBackoff),
		engine.WithRateLimit(e.RateLimit),
		engine.WithLogger(a.log),
	)
	if err != nil {
		return nil, nil, err
	}
	return client, nil, nil
}

// coordinator wires generation, cleaning, validation and every configured
// result sink.
func (a *app) coordinator() (*batch.Coordinator, error) {
	client, stub, err := a.generator()
	if err != nil {
		return nil, err
	}
	var (
		gen       engine.Generator
		corrector validation.Corrector
	)
	if client != nil {
		gen, corrector = client, client
	} else {
		gen, corrector = stub, stub
	}

	proto := validation.NewProtocol(a.quick, corrector, a.cfg.Validation.EnableAI,
		validation.WithNormalizer(a.norm),
		validation.WithTransitionHook(a.metrics.Transition),
		validation.WithLogger(a.log),
	)

	var sinks []batch.ResultSink
	if a.store != nil {
		sinks = append(sinks, a.store)
	}
	if a.index != nil {
		sinks = append(sinks, a.index)
	}
	return batch.New(a.rules, gen, a.norm, proto,
		batch.WithMaxBatchSize(a.cfg.Batch.MaxSize),
		batch.WithPause(a.cfg.Batch.Pause),
		batch.WithLogger(a.log),
		batch.WithSinks(sinks...),
		batch.WithMetrics(a.metrics),
	), nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.log.Sync()
}
