// Package langdetect identifies the body's language through a remote
// fastText-style classifier, falling back to "en" on low confidence or
// an unrecognized label, matching the original detect_language.
package langdetect

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	out "github.com/agent-lilith/transform-pipeline/core/port/out"
)

// ConfidenceThreshold is the minimum confidence the service must report
// before its predicted label is trusted.
const ConfidenceThreshold = 0.5

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

type Detector struct {
	client out.LangDetectPort
}

func New(client out.LangDetectPort) *Detector {
	return &Detector{client: client}
}

// Detect returns a two-letter lowercase language code, or "en" if the
// text is blank, the service is unavailable, or confidence is below
// ConfidenceThreshold.
func (d *Detector) Detect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "en", nil
	}
	if d.client == nil {
		return "", fmt.Errorf("language detection service is not configured")
	}

	label, confidence, err := d.client.Detect(ctx, text)
	if err != nil {
		return "en", nil
	}
	label = strings.TrimSpace(label)
	if confidence < ConfidenceThreshold {
		return "en", nil
	}
	if len(label) < 2 {
		return "en", nil
	}

	base := strings.ToLower(strings.SplitN(label, "_", 2)[0])
	if len(base) > 2 {
		base = base[:2]
	}
	if len(base) == 2 && isAlpha(base) {
		return base, nil
	}
	return "en", nil
}
