// Package redact removes PII and secrets from an email body in three
// passes: a PII regex pass, a remote NER span substitution, and a
// secret-pattern regex pass — in that order, matching the original
// sanitize_with_spacy_api + redact_sensitive_patterns pipeline.
package redact

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	out "github.com/agent-lilith/transform-pipeline/core/port/out"
)

// RedactLabels are the NER entity labels substituted by the NER pass.
var RedactLabels = map[string]bool{
	"PERSON": true,
	"GPE":    true,
	"LOC":    true,
	"FAC":    true,
	"ORG":    true,
}

var piiPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`[\w.\-]+@[\w.\-]+\.\w+`), "[EMAIL]"},
	// Card and SSN run before the broad phone pattern, which would
	// otherwise swallow both as [PHONE].
	{regexp.MustCompile(`\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`), "[CARD]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
	{regexp.MustCompile(`\+?\d[\d \-]{8,}\d`), "[PHONE]"},
	{regexp.MustCompile(`\b\d{9}\b`), "[ID]"},
}

// secretPatterns is ordered most-specific first, exactly as the original
// table is, since later patterns (long hex/base64 runs) are broad enough
// to clobber an already-redacted placeholder if applied first.
var secretPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)-----BEGIN (?:OPENSSH |RSA |DSA |EC |)PRIVATE KEY-----[\s\S]*?-----END (?:OPENSSH |RSA |DSA |EC |)PRIVATE KEY-----`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-_.~+/]+=*`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)access_token[\s=:]+[\w\-.]+\.[\w\-.]+\.[\w\-]+`), "access_token=[REDACTED]"},
	{regexp.MustCompile(`(?i)(?:api[_-]?key|apikey|api_secret|secret_key|auth[_-]?token)[\s=:]+[\w\-~./+=]+`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)(?:password|passwd|pwd|token)[\s=:]+\S+`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)\b[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}(?:-[A-Z0-9]{4})*\b`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)\b[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}(?:-[A-Z0-9]{5})*\b`), "[REDACTED]"},
	{regexp.MustCompile(`\b[A-Fa-f0-9]{32,}\b`), "[REDACTED]"},
	{regexp.MustCompile(`\b[A-Za-z0-9+/]{20,}={0,2}\b`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)(?:license\s+key|product\s+key|serial\s+number|activation\s+key)[\s:]+[\w\-]+`), "[REDACTED]"},
}

// Redactor runs the three-pass redaction pipeline against a remote NER
// service.
type Redactor struct {
	ner out.NERPort
}

func New(ner out.NERPort) *Redactor {
	return &Redactor{ner: ner}
}

// RedactPII applies only the regex-based PII substitutions (email,
// phone, card, SSN, 9-digit ID), with no network call.
func RedactPII(text string) string {
	out := text
	for _, p := range piiPatterns {
		out = p.re.ReplaceAllString(out, p.repl)
	}
	return out
}

// RedactSecrets applies only the secret-pattern substitutions (keys,
// tokens, license codes, long hex/base64 runs), with no network call.
func RedactSecrets(text string) string {
	out := text
	for _, p := range secretPatterns {
		out = p.re.ReplaceAllString(out, p.repl)
	}
	return out
}

// sanitizeWithNER runs the PII pass, then asks the NER service for spans
// and substitutes every REDACT_LABELS span with "[LABEL]", processing
// spans in descending start order so earlier substitutions never shift
// the offsets of spans still to be applied.
func (r *Redactor) sanitizeWithNER(ctx context.Context, body, lang string) (string, error) {
	if body == "" {
		return "", nil
	}
	sanitized := RedactPII(body)

	entities, err := r.ner.Entities(ctx, sanitized, lang)
	if err != nil {
		return "", fmt.Errorf("ner entities: %w", err)
	}

	var spans []out.EntitySpan
	for _, e := range entities {
		if RedactLabels[strings.ToUpper(e.Label)] {
			spans = append(spans, e)
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start > spans[j].Start })

	runes := []rune(sanitized)
	for _, e := range spans {
		if e.Start < 0 || e.End > len(runes) || e.Start > e.End {
			continue
		}
		label := strings.ToUpper(e.Label)
		if label == "" {
			label = "ENTITY"
		}
		replacement := []rune("[" + label + "]")
		tail := append([]rune{}, runes[e.End:]...)
		runes = append(runes[:e.Start:e.Start], append(replacement, tail...)...)
	}
	return string(runes), nil
}

// FullRedact runs all three passes: PII regex, NER span substitution,
// then secret pattern regex — the exact order full_redact_for_display
// uses.
func (r *Redactor) FullRedact(ctx context.Context, body, lang string) (string, error) {
	if body == "" {
		return "", nil
	}
	if lang == "" {
		lang = "en"
	}
	step, err := r.sanitizeWithNER(ctx, body, lang)
	if err != nil {
		return "", err
	}
	return RedactSecrets(step), nil
}
