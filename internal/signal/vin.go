// Package signal contains the pure text classifiers feeding the decision
// gate: VIN detection, part-number token detection, small-talk resolution.
// Everything here is deterministic and side-effect free so the classifiers
// can be swapped or tested independently of the state machine.
package signal

import (
	"regexp"
	"strings"
)

var (
	vinKeywordRe        = regexp.MustCompile(`(?i)(?:^|[^A-ZА-ЯЁ0-9_])(?:VIN|ВИН)(?:$|[^A-ZА-ЯЁ0-9_])`)
	vinAllowed17Re      = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
	vinHasLetterRe      = regexp.MustCompile(`[A-HJ-NPR-Z]`)
	vinContiguous17Re   = regexp.MustCompile(`[A-HJ-NPR-Z0-9]{17}`)
	vinSeparatedTokenRe = regexp.MustCompile(`[A-HJ-NPR-Z0-9-]{17,30}`)
	vinAfterKeywordRe   = regexp.MustCompile(`(?i)(?:^|[^A-ZА-ЯЁ0-9_])(?:VIN|ВИН)\s*[:#]?\s*([A-HJ-NPR-Z0-9][A-HJ-NPR-Z0-9\s-]{14,60})`)
	nonAlnumRe          = regexp.MustCompile(`[^A-Z0-9]`)
)

// compactAlnum uppercases the text and strips everything but A-Z0-9.
func compactAlnum(text string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToUpper(text), "")
}

// IsValidVINCode reports whether the value compacts to a structurally valid
// 17-character VIN: allowed alphabet (no I/O/Q) and at least one letter, so
// a bare 17-digit number never passes.
func IsValidVINCode(value string) bool {
	candidate := compactAlnum(value)
	return len(candidate) == 17 &&
		vinAllowed17Re.MatchString(candidate) &&
		vinHasLetterRe.MatchString(candidate)
}

// HasVINKeyword reports whether the text mentions VIN/ВИН as a standalone word.
func HasVINKeyword(text string) bool {
	return vinKeywordRe.MatchString(text)
}

func hasValidContiguousVIN(text string) bool {
	for _, m := range vinContiguous17Re.FindAllString(strings.ToUpper(text), -1) {
		if IsValidVINCode(m) {
			return true
		}
	}
	return false
}

func hasValidVINTokenWithSeparators(text string) bool {
	for _, m := range vinSeparatedTokenRe.FindAllString(strings.ToUpper(text), -1) {
		if IsValidVINCode(m) {
			return true
		}
	}
	return false
}

func hasValidVINAfterKeyword(text string) bool {
	for _, m := range vinAfterKeywordRe.FindAllStringSubmatch(strings.ToUpper(text), -1) {
		candidate := compactAlnum(m[1])
		if len(candidate) < 17 {
			continue
		}
		if IsValidVINCode(candidate[:17]) {
			return true
		}
	}
	return false
}

// IsVINLike reports whether the message carries a structurally valid VIN code,
// either as a contiguous 17-character run or introduced by the VIN keyword
// (possibly with spaces/dashes inside the code). A VIN keyword alone, without
// a valid code, does not count: such messages fall through to the token/text
// rules instead of forcing manual handling.
func IsVINLike(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}

	if hasValidContiguousVIN(t) {
		return true
	}
	if HasVINKeyword(t) {
		if hasValidVINAfterKeyword(t) {
			return true
		}
		if hasValidVINTokenWithSeparators(t) {
			return true
		}
	}
	return false
}
