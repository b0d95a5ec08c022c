// Package preprocess cleans a raw email body before it is classified,
// redacted, or embedded: invisible Unicode, tracking pixels/links, quoted
// reply chains, and signature/disclaimer blocks. Every pattern here is a
// direct port of the pipeline's original preprocessing step.
package preprocess

import (
	"regexp"
	"strings"
	"unicode"
)

const trackingURLKeywords = `track(?:ing)?|open(?:ed)?|pixel|beacon|unsub(?:scribe)?|` +
	`redirect|click|mail(?:track|open)|read.?receipt|` +
	`analytics|trace|log\.(?:open|click)|notify\.(?:open|click)`

var trackingURLRegex = regexp.MustCompile(`(?i)https?://[^\s<>"']*(?:` + trackingURLKeywords + `)[^\s<>"']*`)

var (
	imgTagRegex        = regexp.MustCompile(`(?is)<img\s[^>]*>`)
	img1x1OrSmallRegex = regexp.MustCompile(`(?i)\b(?:width|height)\s*=\s*["']?1["']?|\b(?:width|height)\s*:\s*1px`)
	imgTrackingSrcRegex = regexp.MustCompile(`(?i)\bsrc\s*=\s*["']?[^"'\s]*(?:` + trackingURLKeywords + `)[^"'\s]*["']?`)
	scriptLikeRegex    = regexp.MustCompile(`(?i)</?(?:script|iframe|object|embed)\b[^>]*>`)
)

// StripTrackingHTML removes script/iframe/object/embed tags and any <img>
// tag that looks like a tracking pixel (1x1/zero-size, or a src matching
// a tracking-keyword path). Exposed for callers upstream of this pipeline
// that still hold raw HTML; the transform path itself receives MIME-
// parsed plain text and never calls this directly.
func StripTrackingHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return html
	}
	text := scriptLikeRegex.ReplaceAllString(html, "")
	text = imgTagRegex.ReplaceAllStringFunc(text, func(tag string) string {
		if img1x1OrSmallRegex.MatchString(tag) || imgTrackingSrcRegex.MatchString(tag) {
			return ""
		}
		return tag
	})
	return text
}

// StripTrackingURLs replaces any URL whose path looks like a tracking
// link or read-receipt beacon with the literal placeholder "[LINK]".
func StripTrackingURLs(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	return trackingURLRegex.ReplaceAllString(text, "[LINK]")
}

var zeroWidthChars = []rune{
	0x200b, 0x200c, 0x200d, 0x200e, 0x200f,
	0x202a, 0x202b, 0x202c, 0x202d, 0x202e,
	0x2060, 0x2061, 0x2062, 0x2063, 0xfeff,
}

// StripInvisibleUnicode removes zero-width joiners/marks and any
// format/control/private-use/unassigned code point, preserving the four
// whitespace characters a body legitimately uses for layout.
//
// Go's unicode package carries no Cn (unassigned) range table — category
// tables only cover assigned code points, so there is no direct way to
// ask "is this rune unassigned". isLikelyUnassigned approximates Cn as
// "not graphic and not whitespace", which catches unassigned code points without also eating letters,
// marks, numbers, punctuation, or symbols.
func StripInvisibleUnicode(text string) string {
	if text == "" {
		return text
	}
	for _, c := range zeroWidthChars {
		text = strings.ReplaceAll(text, string(c), "")
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, c := range text {
		switch c {
		case ' ', '\t', '\n', '\r':
			b.WriteRune(c)
			continue
		}
		if unicode.Is(unicode.Cf, c) || unicode.Is(unicode.Cc, c) || unicode.Is(unicode.Co, c) {
			continue
		}
		if isLikelyUnassigned(c) {
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func isLikelyUnassigned(c rune) bool {
	return !unicode.IsGraphic(c) && !unicode.IsSpace(c)
}

var signaturePatterns = []string{
	`\n\s*Sent from my (?:iPhone|iPad|Android|Samsung|Galaxy|Pixel)\b.*`,
	`\n\s*Get Outlook for\s+.*`,
	`\n\s*Sent from (?:Mail|Gmail)?\s+for (?:iOS|Android)\s*.*`,
	`\n\s*_{3,}\s*\n\s*From:\s+.*`,
	`\n\s*--\s*\n`,
	`\n\s*_{5,}\s*$`,
	`\n\s*-\s{0,2}$`,
}

var signatureRegex = regexp.MustCompile(`(?is)` + strings.Join(wrapAlternatives(signaturePatterns), "|"))

var disclaimerStarts = []string{
	`\n\s*(?:This\s+)?(?:e-?mail|message|communication)\s+(?:is\s+)?(?:confidential|intended only).*`,
	`\n\s*Disclaimer\s*:.*`,
	`\n\s*CONFIDENTIALITY\s+NOTICE\s*:.*`,
	`\n\s*If you (?:received|have received) this (?:e-?mail|message) in error.*`,
	`\n\s*Please consider the environment before printing.*`,
	`\n\s*\[?PRIVACY\]?.*`,
}

var disclaimerRegex = regexp.MustCompile(`(?is)` + strings.Join(wrapAlternatives(disclaimerStarts), "|"))

var quotePatterns = []string{
	`\n\s*On\s+.+?\s+wrote\s*:\s*\n`,
	`\n\s*_{3,}\s*\n\s*From:\s+`,
	`\n-{3,}\s*Original Message\s*-{3,}\s*\n`,
	`\n\s*_{2,}\s*\n\s*From:\s+`,
	`\n\s*On\s+\d{1,2}/\d{1,2}/\d{2,4}.+?\n`,
	`\n\s*----------\s+Forwarded message\s+----------\s*\n`,
	`\n\s*Begin forwarded message\s*:.*`,
}

var quoteRegex = regexp.MustCompile(`(?is)` + strings.Join(wrapAlternatives(quotePatterns), "|"))

func wrapAlternatives(patterns []string) []string {
	wrapped := make([]string, len(patterns))
	for i, p := range patterns {
		wrapped[i] = "(" + p + ")"
	}
	return wrapped
}

func stripByFirstMatch(text string, re *regexp.Regexp) string {
	loc := re.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return strings.TrimRight(text[:loc[0]], " \t\n\r")
}

// StripSignaturesAndDisclaimers truncates the body at the first mobile
// signature, "-- " delimiter, or legal-disclaimer block it finds.
func StripSignaturesAndDisclaimers(body string) string {
	if strings.TrimSpace(body) == "" {
		return body
	}
	text := stripByFirstMatch(body, signatureRegex)
	text = stripByFirstMatch(text, disclaimerRegex)
	return strings.TrimSpace(text)
}

// StripQuotedReplies truncates the body at the first quoted-reply or
// forwarded-message boundary it finds.
func StripQuotedReplies(body string) string {
	if strings.TrimSpace(body) == "" {
		return body
	}
	loc := quoteRegex.FindStringIndex(body)
	if loc == nil {
		return strings.TrimSpace(body)
	}
	return strings.TrimRight(body[:loc[0]], " \t\n\r")
}

// Options toggles each preprocessing stage independently, mirroring the
// original function's keyword arguments. LLM-based main-content
// extraction is intentionally not offered here: it is an optional,
// best-effort step in the original gated behind a local flag that the
// pipeline itself never enables (it always calls with llm_cleanup=false).
type Options struct {
	StripQuotes     bool
	StripSignatures bool
	StripTracking   bool
	StripInvisible  bool
}

// DefaultOptions enables every stage, matching the pipeline's call site.
func DefaultOptions() Options {
	return Options{StripQuotes: true, StripSignatures: true, StripTracking: true, StripInvisible: true}
}

// ForEmbedding runs the configured stages over body in the same order
// the original applies them: invisible-unicode, tracking, quotes,
// signatures/disclaimers.
func ForEmbedding(body string, opts Options) string {
	text := strings.TrimSpace(body)
	if text == "" {
		return ""
	}
	if opts.StripInvisible {
		text = StripInvisibleUnicode(text)
	}
	if opts.StripTracking {
		text = StripTrackingURLs(text)
	}
	if opts.StripQuotes {
		text = StripQuotedReplies(text)
	}
	if opts.StripSignatures {
		text = StripSignaturesAndDisclaimers(text)
	}
	return strings.TrimSpace(text)
}
