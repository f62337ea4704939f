package signal

import (
	"regexp"
	"strings"
)

var (
	tokenRe      = regexp.MustCompile(`[A-Z0-9]{6,20}`)
	digitsRe     = regexp.MustCompile(`[^0-9]`)
	phoneHintRe  = regexp.MustCompile(`(?i)(тел\b|телефон|phone\b|whatsapp|ватсап|вотсап|viber|вайбер|звон)`)
	vinSegmentRe = regexp.MustCompile(`(?i)(VIN|ВИН)\s*[:#]?\s*[-A-Z0-9\s]{6,80}`)
)

// looksLikeRuPhone guards against reading phone numbers as part numbers.
// 11 digits starting with 7/8 is almost always a phone; a bare 10-digit
// number counts only when the surrounding text carries a phone marker.
// Numeric part numbers (e.g. 11-digit BMW codes) survive because they do
// not start with 7/8.
func looksLikeRuPhone(token, fullText string) bool {
	digits := digitsRe.ReplaceAllString(token, "")
	if digits == "" {
		return false
	}
	if len(digits) == 11 && (digits[0] == '7' || digits[0] == '8') {
		return true
	}
	if len(digits) == 10 && phoneHintRe.MatchString(fullText) {
		return true
	}
	return false
}

// stripVINSegment removes a "VIN: …" fragment before token detection so that
// chunks of a VIN code are not picked up as part-number candidates. Detection
// only; the original text is untouched for everything else.
func stripVINSegment(text string) string {
	if !HasVINKeyword(text) {
		return text
	}
	return vinSegmentRe.ReplaceAllString(text, "$1 ")
}

// DetectTokens extracts part-number candidates from free text: uppercase
// alphanumeric runs of 6–20 characters, minus VIN fragments and phone
// numbers, deduplicated in first-seen order.
func DetectTokens(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	safe := strings.ToUpper(stripVINSegment(text))
	matches := tokenRe.FindAllString(safe, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		if looksLikeRuPhone(m, text) {
			continue
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		tokens = append(tokens, m)
	}
	return tokens
}

// IsSimpleQuery reports whether the message is a short token-only request
// ("63128363505", "нужен 4N0907998") suitable for the fast flow. VIN cases
// and long descriptions are never simple.
func IsSimpleQuery(text string, tokens []string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if IsVINLike(trimmed) {
		return false
	}
	if tokens == nil {
		tokens = DetectTokens(trimmed)
	}
	if len(tokens) == 0 {
		return false
	}
	return len([]rune(trimmed)) <= 120
}

// NormalizeTokens trims, deduplicates and drops empty candidates while
// preserving order. Used wherever token lists cross a seam.
func NormalizeTokens(candidates []string) []string {
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		t := strings.TrimSpace(c)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
