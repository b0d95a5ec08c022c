// Package classify assigns a privacy tier to an email by asking a
// vLLM-compatible chat model to choose between SENSITIVE, PERSONAL, and
// PUBLIC, fitting the body into the model's context budget and parsing
// the tier back out of a possibly noisy response. Ported from
// transform/privacy.py.
package classify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	domain "github.com/agent-lilith/transform-pipeline/core/domain"
	out "github.com/agent-lilith/transform-pipeline/core/port/out"
	"github.com/agent-lilith/transform-pipeline/pkg/logger"
)

// OutputLabels is the fixed phrase the prompt template uses to describe
// the allowed answers.
const OutputLabels = "SENSITIVE, PERSONAL, or PUBLIC"

// ReserveTokens is held back from the model's context window for the
// completion and chat-template overhead when fitting the prompt.
const ReserveTokens = 150

var tierOrder = []domain.PrivacyTier{domain.PrivacySensitive, domain.PrivacyPersonal, domain.PrivacyPublic}

var tierWordPatterns = map[domain.PrivacyTier]*regexp.Regexp{
	domain.PrivacySensitive: regexp.MustCompile(`(?i)\bSENSITIVE\b`),
	domain.PrivacyPersonal:  regexp.MustCompile(`(?i)\bPERSONAL\b`),
	domain.PrivacyPublic:    regexp.MustCompile(`(?i)\bPUBLIC\b`),
}

// tierVariations holds abbreviation/prefix variants in priority order.
// A slice, not a map: a response containing more than one variant
// substring (e.g. both "PERS" and "PUB") must resolve to the first
// entry that matches, deterministically, every run.
var tierVariations = []struct {
	variant string
	tier    domain.PrivacyTier
}{
	{"SENS", domain.PrivacySensitive},
	{"PRIV", domain.PrivacyPersonal},
	{"PERS", domain.PrivacyPersonal},
	{"PUBL", domain.PrivacyPublic},
	{"PUB", domain.PrivacyPublic},
}

// thinkBlockPattern strips <think>/<thinking> reasoning blocks, including
// an unterminated trailing block, so only the final answer is parsed.
var thinkBlockPattern = regexp.MustCompile(`(?is)<think>.*?</think>|<think>.*$|<(?:think|thinking)\b[^>]*>.*?</(?:think|thinking)\s*>|<(?:think|thinking)\b[^>]*>.*$`)

func stripThinkBlock(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	out := text
	for {
		next := strings.TrimSpace(thinkBlockPattern.ReplaceAllString(out, ""))
		if next == out {
			return next
		}
		out = next
	}
}

func extractTierFromText(text string) (domain.PrivacyTier, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	upper := strings.ToUpper(strings.TrimSpace(text))
	for _, tier := range tierOrder {
		if tierWordPatterns[tier].MatchString(upper) {
			return tier, true
		}
	}
	for _, tier := range tierOrder {
		if strings.Contains(upper, strings.ToUpper(tier.String())) {
			return tier, true
		}
	}
	return 0, false
}

// parseTier recovers a tier from a chat model's raw response, trying the
// strict forms first and degrading to substring and abbreviation
// matching before giving up.
func parseTier(raw string) (domain.PrivacyTier, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(stripThinkBlock(raw)))
	if cleaned == "" {
		if tier, ok := extractTierFromText(raw); ok {
			return tier, nil
		}
		return 0, fmt.Errorf("classification response was empty after stripping think blocks")
	}

	for _, tier := range tierOrder {
		if cleaned == strings.ToUpper(tier.String()) {
			return tier, nil
		}
	}
	fields := strings.Fields(cleaned)
	if len(fields) > 0 {
		for _, tier := range tierOrder {
			if fields[0] == strings.ToUpper(tier.String()) {
				return tier, nil
			}
		}
	}
	for _, v := range tierVariations {
		if strings.Contains(cleaned, v.variant) {
			return v.tier, nil
		}
	}
	if tier, ok := extractTierFromText(cleaned); ok {
		return tier, nil
	}

	preview := raw
	if len(preview) > 100 {
		preview = preview[:100] + "…"
	}
	return 0, fmt.Errorf("could not parse tier from classification response (expected %s); preview: %q", OutputLabels, preview)
}

// Prompts holds the system and user templates loaded from disk. Both
// files are required; a missing one is a fatal configuration error
// rather than a silent default, matching get_classification_prompts.
type Prompts struct {
	System       string
	UserTemplate string
}

func LoadPrompts(dir string) (Prompts, error) {
	systemPath := filepath.Join(dir, "classification_system.md")
	userPath := filepath.Join(dir, "classification_user.md")

	system, err := os.ReadFile(systemPath)
	if err != nil {
		return Prompts{}, fmt.Errorf("classification system prompt not found: %s", systemPath)
	}
	user, err := os.ReadFile(userPath)
	if err != nil {
		return Prompts{}, fmt.Errorf("classification user template not found: %s", userPath)
	}
	userTemplate := string(user)
	if userTemplate != "" && !strings.HasSuffix(userTemplate, "\n") {
		userTemplate += "\n"
	}
	return Prompts{System: strings.TrimSpace(string(system)), UserTemplate: userTemplate}, nil
}

func templateVars(sender, subject, bodyPreview string, hasAttachments bool, labels []string) map[string]string {
	attachments := "no"
	if hasAttachments {
		attachments = "yes"
	}
	labelStr := "none"
	if len(labels) > 0 {
		labelStr = strings.Join(labels, ", ")
	}
	return map[string]string{
		"sender":          sender,
		"subject":         subject,
		"body_preview":    bodyPreview,
		"output_labels":   OutputLabels,
		"has_attachments": attachments,
		"labels":          labelStr,
	}
}

func render(template string, vars map[string]string) string {
	rendered := template
	for key, val := range vars {
		rendered = strings.ReplaceAll(rendered, "{"+key+"}", val)
	}
	return rendered
}

// TokenCounter is the subset of the classifier port used for prompt
// sizing; satisfied directly by out.ClassifierPort.
type TokenCounter interface {
	TokenCount(ctx context.Context, text string) (int, error)
}

// Input bundles one email's fields for classification.
type Input struct {
	Body           string
	Subject        string
	Sender         string
	HasAttachments bool
	Labels         []string
}

// ClassificationMetrics tracks call counts, outcome tiers, and
// incrementally-averaged latency across every Classify call, guarded by
// a mutex since prepare fans out across the batch's semaphore width.
type ClassificationMetrics struct {
	mu           sync.Mutex
	totalCalls   int64
	errors       int64
	sensitive    int64
	personal     int64
	public       int64
	avgLatencyMs float64
}

// record folds one call's outcome into the running averages and logs a
// summary every 100 calls.
func (m *ClassificationMetrics) record(tier domain.PrivacyTier, err error, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.errors++
	}
	m.totalCalls++
	elapsedMs := float64(elapsed) / float64(time.Millisecond)
	m.avgLatencyMs = (m.avgLatencyMs*float64(m.totalCalls-1) + elapsedMs) / float64(m.totalCalls)

	if err == nil {
		switch tier {
		case domain.PrivacySensitive:
			m.sensitive++
		case domain.PrivacyPersonal:
			m.personal++
		case domain.PrivacyPublic:
			m.public++
		}
	}

	if m.totalCalls%100 == 0 {
		logger.Info("classification metrics: %d calls, %.1f ms avg, %d errors", m.totalCalls, m.avgLatencyMs, m.errors)
	}
}

// Snapshot is a point-in-time copy of the metrics counters.
type Snapshot struct {
	TotalCalls   int64
	Errors       int64
	Sensitive    int64
	Personal     int64
	Public       int64
	AvgLatencyMs float64
}

func (m *ClassificationMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		TotalCalls:   m.totalCalls,
		Errors:       m.errors,
		Sensitive:    m.sensitive,
		Personal:     m.personal,
		Public:       m.public,
		AvgLatencyMs: m.avgLatencyMs,
	}
}

// Classifier drives prompt construction, budget fitting, and tier
// parsing against a ClassifierPort.
type Classifier struct {
	client  out.ClassifierPort
	prompts Prompts
	modelID string
	seed    int
	metrics *ClassificationMetrics
}

func New(client out.ClassifierPort, prompts Prompts, modelID string, seed int) *Classifier {
	return &Classifier{client: client, prompts: prompts, modelID: modelID, seed: seed, metrics: &ClassificationMetrics{}}
}

// Metrics exposes the running classification counters, e.g. for a
// caller that wants to log them at shutdown.
func (c *Classifier) Metrics() Snapshot {
	return c.metrics.Snapshot()
}

func (c *Classifier) fullPrompt(sender, subject, bodyPreview string, hasAttachments bool, labels []string) (string, string) {
	vars := templateVars(sender, subject, bodyPreview, hasAttachments, labels)
	return render(c.prompts.System, vars), render(c.prompts.UserTemplate, vars)
}

// fitBodyToBudget shrinks body to a head+tail preview until the full
// rendered prompt fits maxPromptTokens, widening the cut each retry.
// Mirrors _fit_body_to_budget's 3/4-head, 1/4-tail start and
// 500/200-char shrink steps down to a 100-char floor on each side.
func (c *Classifier) fitBodyToBudget(ctx context.Context, body, sender, subject string, hasAttachments bool, labels []string, maxPromptTokens int) (string, error) {
	makePrompt := func(preview string) (string, string) {
		return c.fullPrompt(sender, subject, preview, hasAttachments, labels)
	}
	countPrompt := func(preview string) (int, error) {
		system, user := makePrompt(preview)
		return c.client.TokenCount(ctx, system+"\n\n"+user)
	}

	n, err := countPrompt(body)
	if err != nil {
		return "", err
	}
	if n <= maxPromptTokens {
		return body, nil
	}

	runes := []rune(body)
	total := len(runes)
	startLen := total/2 + total/4
	endLen := total / 4
	if startLen+endLen > total {
		startLen = total / 2
		endLen = total - startLen
	}

	for {
		var preview string
		if startLen+endLen >= total {
			preview = body
		} else {
			preview = string(runes[:startLen]) + "\n...\n" + string(runes[total-endLen:])
		}
		count, err := countPrompt(preview)
		if err != nil {
			return "", err
		}
		if count <= maxPromptTokens {
			return preview, nil
		}
		startLen -= 500
		if startLen < 100 {
			startLen = 100
		}
		endLen -= 200
		if endLen < 100 {
			endLen = 100
		}
		if startLen <= 100 && endLen <= 100 {
			if startLen+endLen >= total {
				return body, nil
			}
			return string(runes[:startLen]) + "\n...\n" + string(runes[total-endLen:]), nil
		}
	}
}

// Classify fits in.Body to maxPromptTokens, sends the rendered prompt to
// the chat model, and parses the resulting tier. Every call, successful
// or not, is folded into c.metrics.
func (c *Classifier) Classify(ctx context.Context, in Input, maxPromptTokens int) (tier domain.PrivacyTier, err error) {
	start := time.Now()
	defer func() {
		c.metrics.record(tier, err, time.Since(start))
	}()

	bodyText := strings.TrimSpace(in.Body)
	sender := in.Sender
	if sender == "" {
		sender = "(unknown)"
	}

	bodyPreview := bodyText
	if bodyText != "" {
		var err error
		bodyPreview, err = c.fitBodyToBudget(ctx, bodyText, sender, in.Subject, in.HasAttachments, in.Labels, maxPromptTokens)
		if err != nil {
			return 0, fmt.Errorf("fit body to token budget: %w", err)
		}
	}

	system, user := c.fullPrompt(sender, in.Subject, bodyPreview, in.HasAttachments, in.Labels)

	n, err := c.client.TokenCount(ctx, system+"\n\n"+user)
	if err != nil {
		return 0, fmt.Errorf("count prompt tokens: %w", err)
	}
	if n > maxPromptTokens {
		return 0, fmt.Errorf("classification prompt exceeds token limit after truncation")
	}

	seed := c.seed
	raw, err := c.client.ChatComplete(ctx, out.ChatCompletionRequest{
		Model: c.modelID,
		Messages: []out.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.0,
		MaxTokens:      64,
		Seed:           &seed,
		EnableThinking: false,
	})
	if err != nil {
		return 0, fmt.Errorf("chat completion: %w", err)
	}

	tier, err = parseTier(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	return tier, nil
}

// MaxPromptTokens derives the prompt budget from the model's context
// window, reserving ReserveTokens for the completion itself.
func MaxPromptTokens(maxModelLen int) int {
	budget := maxModelLen - ReserveTokens
	if budget < 0 {
		return 0
	}
	return budget
}
