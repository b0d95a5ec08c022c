// Package transform orchestrates the per-batch prepare, embed, validate,
// and persist cycle over a selection of stored emails. Ported from
// pipeline.py's batch loop, with per-email preparation fanned out under a
// width-bounded semaphore and isolated per-email failure capture.
package transform

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/agent-lilith/transform-pipeline/core/capabilities"
	"github.com/agent-lilith/transform-pipeline/core/chunk"
	"github.com/agent-lilith/transform-pipeline/core/classify"
	"github.com/agent-lilith/transform-pipeline/core/domain"
	"github.com/agent-lilith/transform-pipeline/core/embed"
	"github.com/agent-lilith/transform-pipeline/core/langdetect"
	in "github.com/agent-lilith/transform-pipeline/core/port/in"
	out "github.com/agent-lilith/transform-pipeline/core/port/out"
	"github.com/agent-lilith/transform-pipeline/core/preprocess"
	"github.com/agent-lilith/transform-pipeline/core/redact"
	"github.com/agent-lilith/transform-pipeline/pkg/logger"
	"github.com/agent-lilith/transform-pipeline/pkg/pipelineerr"
)

// snippetRedactedPlaceholder replaces the snippet outright for tiers that
// must never surface even a redacted excerpt.
const snippetRedactedPlaceholder = "Content redacted"

// defaultBatchSize is used when RunParams.BatchSize is unset.
const defaultBatchSize = 50

// defaultPrepareWidth is the per-batch prepare concurrency when the
// caller passes zero.
const defaultPrepareWidth = 4

// Pipeline wires the model-facing components and persistence ports into
// the batch cycle. Satisfies in.PipelineService.
type Pipeline struct {
	emails     out.EmailRepository
	labels     out.AccountLabelRepository
	classifier *classify.Classifier
	redactor   *redact.Redactor
	langdetect *langdetect.Detector
	embedder   *embed.Manager

	maxPromptTokens int
	embedMaxTokens  int
	prepareWidth    int64
}

// New builds a Pipeline, resolving the classifier's prompt token budget
// from the capability registry once so every Run call reuses it.
func New(
	emails out.EmailRepository,
	labels out.AccountLabelRepository,
	classifier *classify.Classifier,
	redactor *redact.Redactor,
	detector *langdetect.Detector,
	embedder *embed.Manager,
	caps *capabilities.Registry,
	prepareWidth int,
) (*Pipeline, error) {
	maxModelLen, err := caps.ClassifyMaxModelLen()
	if err != nil {
		return nil, pipelineerr.Configuration("resolve classifier context window", err)
	}
	if prepareWidth <= 0 {
		prepareWidth = defaultPrepareWidth
	}
	return &Pipeline{
		emails:          emails,
		labels:          labels,
		classifier:      classifier,
		redactor:        redactor,
		langdetect:      detector,
		embedder:        embedder,
		maxPromptTokens: classify.MaxPromptTokens(maxModelLen),
		embedMaxTokens:  caps.EmbedMaxTokens(),
		prepareWidth:    int64(prepareWidth),
	}, nil
}

// Run selects eligible emails, partitions them into batches, and drives
// each batch through prepare/embed/validate/persist, reporting progress
// after every batch. Returns the count of emails successfully persisted.
func (p *Pipeline) Run(ctx context.Context, params in.RunParams, onProgress in.ProgressFunc) (int, error) {
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	ids, err := p.emails.SelectForTransform(ctx, out.EmailSelector{
		AccountID: params.AccountID,
		EmailID:   params.EmailID,
		Force:     params.Force,
		Limit:     params.Limit,
	})
	if err != nil {
		return 0, pipelineerr.Configuration("select emails for transform", err)
	}

	batches := partition(ids, batchSize)
	progress := in.Progress{
		Total:        len(ids),
		ByTier:       map[int]int{},
		TotalBatches: len(batches),
	}
	if onProgress != nil {
		onProgress(progress)
	}

	for i, batchIDs := range batches {
		progress.BatchNum = i + 1
		select {
		case <-ctx.Done():
			return progress.Processed, ctx.Err()
		default:
		}
		// A started batch runs to completion; cancellation only stops the
		// next batch from starting.
		p.runBatch(context.WithoutCancel(ctx), batchIDs, &progress)
		if onProgress != nil {
			onProgress(progress)
		}
	}

	return progress.Processed, nil
}

func partition(ids []int64, size int) [][]int64 {
	if len(ids) == 0 {
		return nil
	}
	var batches [][]int64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

// preparedEmail is the per-email result of step 2 of the batch cycle: a
// cleaned body, its classification, language, redacted forms, and the
// chunk plan if the body needed splitting.
type preparedEmail struct {
	email           *domain.Email
	tier            domain.PrivacyTier
	language        string
	bodyClean       string
	bodyRedacted    string
	snippetRedacted string
	chunks          []chunk.Chunk
	bodyType        string // "none", "full", "chunked"
	includeSubject  bool
}

// embedEntry maps one flattened embed-request text back to the prepared
// payload and role it came from.
type embedEntry struct {
	idx  int
	role string // "subject", "body", "chunk"
	pos  int
}

// assembled holds the vectors reassembled for one email after the batch
// embed call returns.
type assembled struct {
	subjectEmbedding []float32
	bodyEmbedding    []float32
	chunkEmbeddings  map[int][]float32
}

func (p *Pipeline) runBatch(ctx context.Context, ids []int64, progress *in.Progress) {
	var emails []*domain.Email
	for _, id := range ids {
		e, err := p.emails.GetByID(ctx, id)
		if err != nil {
			logger.WithError(err).Warn("load email %d for transform", id)
			progress.Failed++
			continue
		}
		if e == nil {
			continue
		}
		emails = append(emails, e)
	}
	if len(emails) == 0 {
		return
	}

	labelNames, err := p.labelNamesForBatch(ctx, emails)
	if err != nil {
		logger.WithError(err).Warn("load account labels for batch")
		labelNames = map[int64]map[string]string{}
	}

	prepared, prepErrs := p.prepareAll(ctx, emails, labelNames)
	for i, perr := range prepErrs {
		if perr != nil {
			p.fail(ctx, emails[i], pipelineerr.Preparation(fmt.Sprintf("prepare email %d", emails[i].ID), perr), progress)
		}
	}

	entries, texts := buildEmbedRequest(prepared)
	assembledByIdx := make([]*assembled, len(prepared))
	if len(texts) > 0 {
		vectors, err := p.embedder.EncodeBatch(ctx, texts)
		if err == nil && len(vectors) != len(texts) {
			err = fmt.Errorf("embedding service returned %d vectors for %d inputs", len(vectors), len(texts))
		}
		if err != nil {
			for _, pr := range prepared {
				if pr == nil {
					continue
				}
				p.fail(ctx, pr.email, pipelineerr.Embedding("embed batch", err), progress)
			}
			return
		}
		assembledByIdx = assemble(prepared, entries, vectors)
	}

	for i, pr := range prepared {
		if pr == nil {
			continue
		}
		p.finishOne(ctx, pr, assembledByIdx[i], progress)
	}
}

// prepareAll fans out prepareOne across emails under a width-bounded
// semaphore, collecting each goroutine's result or error by index so a
// single failure never aborts its siblings; failures are reported by the
// caller afterward, in input order.
func (p *Pipeline) prepareAll(ctx context.Context, emails []*domain.Email, labelNames map[int64]map[string]string) ([]*preparedEmail, []error) {
	prepared := make([]*preparedEmail, len(emails))
	errs := make([]error, len(emails))

	sem := semaphore.NewWeighted(p.prepareWidth)
	var eg errgroup.Group

	for i, e := range emails {
		i, e := i, e
		eg.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				errs[i] = err
				return nil
			}
			defer sem.Release(1)

			pr, err := p.prepareOne(ctx, e, labelNames[e.AccountID])
			if err != nil {
				errs[i] = err
				return nil
			}
			prepared[i] = pr
			return nil
		})
	}
	_ = eg.Wait()
	return prepared, errs
}

func (p *Pipeline) prepareOne(ctx context.Context, e *domain.Email, labelNames map[string]string) (*preparedEmail, error) {
	cleaned := preprocess.ForEmbedding(e.BodyText, preprocess.DefaultOptions())

	// Classification sees the raw body, not the cleaned one: signature and
	// quoted-reply content the preprocessor strips can still carry the
	// privacy signal (e.g. a forwarded SSN buried under a quote marker).
	tier, err := p.classifier.Classify(ctx, classify.Input{
		Body:           e.BodyText,
		Subject:        e.Subject,
		Sender:         e.Sender(),
		HasAttachments: e.HasAttachments,
		Labels:         labelsForPrompt(e.Labels, labelNames),
	}, p.maxPromptTokens)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	lang, err := p.langdetect.Detect(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("detect language: %w", err)
	}

	bodyRedacted, err := p.redactor.FullRedact(ctx, cleaned, lang)
	if err != nil {
		return nil, fmt.Errorf("redact body: %w", err)
	}

	snippetRedacted, err := p.redactSnippet(ctx, e.Snippet, tier, lang)
	if err != nil {
		return nil, fmt.Errorf("redact snippet: %w", err)
	}

	pr := &preparedEmail{
		email:           e,
		tier:            tier,
		language:        lang,
		bodyClean:       cleaned,
		bodyRedacted:    bodyRedacted,
		snippetRedacted: snippetRedacted,
		includeSubject:  tier != domain.PrivacySensitive && strings.TrimSpace(e.Subject) != "",
	}

	if strings.TrimSpace(cleaned) == "" {
		pr.bodyType = "none"
		return pr, nil
	}

	tokens, err := p.embedder.TokenCount(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("count body tokens: %w", err)
	}
	if tokens <= p.embedMaxTokens {
		pr.bodyType = "full"
		return pr, nil
	}

	chunks, err := chunk.Body(ctx, cleaned, p.embedder, p.embedMaxTokens, chunk.TargetTokens)
	if err != nil {
		return nil, fmt.Errorf("chunk body: %w", err)
	}
	if len(chunks) == 0 {
		pr.bodyType = "full"
		return pr, nil
	}
	pr.bodyType = "chunked"
	pr.chunks = chunks
	return pr, nil
}

func (p *Pipeline) redactSnippet(ctx context.Context, snippet string, tier domain.PrivacyTier, lang string) (string, error) {
	if strings.TrimSpace(snippet) == "" {
		return "", nil
	}
	if tier == domain.PrivacySensitive || tier == domain.PrivacyPersonal {
		return snippetRedactedPlaceholder, nil
	}
	return p.redactor.FullRedact(ctx, snippet, lang)
}

func labelsForPrompt(labelIDs []string, names map[string]string) []string {
	if len(labelIDs) == 0 {
		return nil
	}
	resolved := make([]string, 0, len(labelIDs))
	for _, id := range labelIDs {
		if name, ok := names[id]; ok && name != "" {
			resolved = append(resolved, name)
		} else {
			resolved = append(resolved, id)
		}
	}
	return resolved
}

func (p *Pipeline) labelNamesForBatch(ctx context.Context, emails []*domain.Email) (map[int64]map[string]string, error) {
	accountIDs := map[int64]bool{}
	for _, e := range emails {
		accountIDs[e.AccountID] = true
	}
	result := make(map[int64]map[string]string, len(accountIDs))
	for accountID := range accountIDs {
		names, err := p.labels.LabelNamesByAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		result[accountID] = names
	}
	return result, nil
}

func buildEmbedRequest(prepared []*preparedEmail) ([]embedEntry, []string) {
	var entries []embedEntry
	var texts []string
	for i, pr := range prepared {
		if pr == nil {
			continue
		}
		if pr.includeSubject {
			entries = append(entries, embedEntry{idx: i, role: "subject"})
			texts = append(texts, pr.email.Subject)
		}
		if pr.bodyType == "full" {
			entries = append(entries, embedEntry{idx: i, role: "body"})
			texts = append(texts, pr.bodyClean)
		}
		if pr.bodyType == "chunked" {
			for _, c := range pr.chunks {
				entries = append(entries, embedEntry{idx: i, role: "chunk", pos: c.Position})
				texts = append(texts, c.Text)
			}
		}
	}
	return entries, texts
}

func assemble(prepared []*preparedEmail, entries []embedEntry, vectors [][]float32) []*assembled {
	result := make([]*assembled, len(prepared))
	for i, e := range entries {
		if result[e.idx] == nil {
			result[e.idx] = &assembled{chunkEmbeddings: map[int][]float32{}}
		}
		switch e.role {
		case "subject":
			result[e.idx].subjectEmbedding = vectors[i]
		case "body":
			result[e.idx].bodyEmbedding = vectors[i]
		case "chunk":
			result[e.idx].chunkEmbeddings[e.pos] = vectors[i]
		}
	}
	return result
}

// finishOne writes the prepared fields onto the email, reassembles its
// chunk rows, validates the §3 invariants, and persists on success.
func (p *Pipeline) finishOne(ctx context.Context, pr *preparedEmail, asm *assembled, progress *in.Progress) {
	e := pr.email
	e.PrivacyTier = pr.tier
	e.Language = pr.language
	e.BodyRedacted = &pr.bodyRedacted
	e.SnippetRedacted = &pr.snippetRedacted
	e.SubjectEmbedding = nil
	e.BodyEmbedding = nil
	e.BodyPooledEmbedding = nil

	if asm != nil {
		e.SubjectEmbedding = asm.subjectEmbedding
		e.BodyEmbedding = asm.bodyEmbedding
	}

	var chunks []domain.EmailChunk
	if pr.bodyType == "chunked" {
		embeddings := make([][]float32, 0, len(pr.chunks))
		weights := make([]float64, 0, len(pr.chunks))
		for _, c := range pr.chunks {
			var vec []float32
			if asm != nil {
				vec = asm.chunkEmbeddings[c.Position]
			}
			chunks = append(chunks, domain.EmailChunk{
				EmailID:   e.ID,
				Position:  c.Position,
				Weight:    c.Weight,
				Text:      c.Text,
				Embedding: vec,
			})
			embeddings = append(embeddings, vec)
			weights = append(weights, c.Weight)
		}
		e.BodyPooledEmbedding = chunk.WeightedMeanEmbedding(embeddings, weights)
	}

	if err := Validate(e, chunks); err != nil {
		p.fail(ctx, e, pipelineerr.Validation(fmt.Sprintf("validate email %d", e.ID), err), progress)
		return
	}

	if err := p.emails.SaveTransformResult(ctx, e, chunks); err != nil {
		p.fail(ctx, e, pipelineerr.Persistence(fmt.Sprintf("persist email %d", e.ID), err), progress)
		return
	}

	progress.Processed++
	progress.ByTier[int(e.PrivacyTier)]++
	switch pr.bodyType {
	case "full":
		progress.BodyFull++
	case "chunked":
		progress.BodyChunked++
	}
}

// fail logs a per-email failure and counts it; it touches no storage, so
// an un-forced rerun still retries the row exactly as if it had never
// been attempted.
func (p *Pipeline) fail(ctx context.Context, e *domain.Email, err error, progress *in.Progress) {
	logger.WithError(err).Warn("transform failed for email %d", e.ID)
	progress.Failed++
}

var _ in.PipelineService = (*Pipeline)(nil)
