// Package bootstrap wires the transform pipeline's concrete adapters
// into a ready-to-run core/transform.Pipeline. Mirrors the shape of the
// teacher's NewDependencies/NewWorker split: one function that opens
// every external connection and returns a cleanup func, one that builds
// the domain-facing service on top of it.
package bootstrap

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/agent-lilith/transform-pipeline/adapter/out/embedclient"
	"github.com/agent-lilith/transform-pipeline/adapter/out/langclient"
	"github.com/agent-lilith/transform-pipeline/adapter/out/llmclient"
	"github.com/agent-lilith/transform-pipeline/adapter/out/nerclient"
	"github.com/agent-lilith/transform-pipeline/adapter/out/persistence"
	"github.com/agent-lilith/transform-pipeline/config"
	"github.com/agent-lilith/transform-pipeline/core/capabilities"
	"github.com/agent-lilith/transform-pipeline/core/classify"
	"github.com/agent-lilith/transform-pipeline/core/embed"
	"github.com/agent-lilith/transform-pipeline/core/langdetect"
	"github.com/agent-lilith/transform-pipeline/core/redact"
	"github.com/agent-lilith/transform-pipeline/core/transform"
	"github.com/agent-lilith/transform-pipeline/pkg/httpclient"
	"github.com/agent-lilith/transform-pipeline/pkg/logger"
)

// Dependencies holds every opened resource, so a caller that needs
// lower-level access (a health check, a one-off query) isn't forced
// back through the Pipeline.
type Dependencies struct {
	Config     *config.Config
	DB         *sqlx.DB
	Registry   *capabilities.Registry
	Emails     *persistence.EmailRepository
	Labels     *persistence.AccountLabelRepository
	Classifier *classify.Classifier
	Redactor   *redact.Redactor
	LangDetect *langdetect.Detector
	Embedder   *embed.Manager
}

// NewDependencies opens the database, loads the capability document,
// and builds every model-facing component cfg describes. The caller
// runs the returned cleanup once it is done with the dependencies.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	db, err := sqlx.Connect("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	cleanup := func() { db.Close() }

	registry, err := capabilities.Load(cfg.CapabilitiesPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("load capabilities: %w", err)
	}
	if err := registry.RequireForTransform(); err != nil {
		cleanup()
		return nil, nil, err
	}

	prompts, err := classify.LoadPrompts(cfg.PromptsDir)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	modelID, err := registry.VLLMModelID()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	classifierHTTP := httpclient.New(httpclient.ClassifierConfig(cfg.ClassifierTimeout()))
	embedderHTTP := httpclient.New(httpclient.EmbedderConfig(cfg.EmbedderTimeout()))
	nerHTTP := httpclient.New(httpclient.DefaultConfig())
	langHTTP := httpclient.New(httpclient.DefaultConfig())

	llmClient := llmclient.New(cfg.VLLMURL, classifierHTTP)
	embedClient := embedclient.New(cfg.EmbeddingURL, embedderHTTP)
	nerClient := nerclient.New(cfg.SpacyAPIURL, nerHTTP)
	langClient := langclient.New(cfg.FasttextLangdetectURL, langHTTP)

	deps := &Dependencies{
		Config:     cfg,
		DB:         db,
		Registry:   registry,
		Emails:     persistence.NewEmailRepository(db),
		Labels:     persistence.NewAccountLabelRepository(db),
		Classifier: classify.New(llmClient, prompts, modelID, cfg.ClassifierSeed),
		Redactor:   redact.New(nerClient),
		LangDetect: langdetect.New(langClient),
		Embedder:   embed.New(embedClient, registry.EmbedMaxChars(), registry.EmbedMaxTokens(), cfg.EmbedBatchSize),
	}
	return deps, cleanup, nil
}

// NewPipeline builds the orchestrator on top of deps. Split out from
// NewDependencies so a caller that wants to inspect or reuse individual
// adapters (tests, a future second entrypoint) isn't forced through the
// pipeline constructor to get them.
func NewPipeline(deps *Dependencies) (*transform.Pipeline, error) {
	logger.Info("capability registry loaded: model=%s embed_max_tokens=%d", mustModelID(deps.Registry), deps.Registry.EmbedMaxTokens())
	return transform.New(
		deps.Emails,
		deps.Labels,
		deps.Classifier,
		deps.Redactor,
		deps.LangDetect,
		deps.Embedder,
		deps.Registry,
		deps.Config.PrepareConcurrency,
	)
}

func mustModelID(reg *capabilities.Registry) string {
	id, err := reg.VLLMModelID()
	if err != nil {
		return "unknown"
	}
	return id
}
