package safety

import (
	"regexp"
	"sort"
)

// PIIType categorizes a redacted span. For merged spans the type of the
// earliest span is kept and must be treated as advisory.
type PIIType string

const (
	PIIEmail   PIIType = "email"
	PIIPhone   PIIType = "phone"
	PIIURL     PIIType = "url"
	PIIAddress PIIType = "address"
)

// Redaction is one span over the input text, in byte offsets.
type Redaction struct {
	Type  PIIType
	Start int
	End   int
}

// RedactionResult holds the redacted text and the merged spans applied to it.
type RedactionResult struct {
	Text       string
	Redactions []Redaction
}

var piiPlaceholders = map[PIIType]string{
	PIIEmail:   "[EMAIL]",
	PIIPhone:   "[PHONE]",
	PIIURL:     "[URL]",
	PIIAddress: "[ADDRESS]",
}

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// Phone formats: Taiwan mobile (09XXXXXXXX), Taiwan landline
// (02-XXXX-XXXX / 03-XXX-XXXX), international (+XXX-...), and generic
// dash/space separated numbers.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b09\d{2}[-\s]?\d{3}[-\s]?\d{3}\b`),
	regexp.MustCompile(`\b0[2-8][-\s]?\d{3,4}[-\s]?\d{4}\b`),
	regexp.MustCompile(`\+\d{1,4}[-\s]?\d{1,4}[-\s]?\d{1,4}[-\s]?\d{1,4}\b`),
	regexp.MustCompile(`\b\d{3}[-\s]\d{3,4}[-\s]\d{4}\b`),
}

var urlPattern = regexp.MustCompile("(?i)https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")

// Address patterns are intentionally conservative: a full
// city/district/street form, and a short street+number form whose leading
// character must not be a common preposition or pronoun.
var addressPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\p{Han}{2,4}[市縣]\p{Han}{2,4}[區鄉鎮市]\p{Han}{2,10}[路街道巷弄][\d\-之]+號?[\p{Han}\d]*[樓F]?`),
	regexp.MustCompile(`[^在到從去往至於我你他她它是的]\p{Han}{1,7}[路街道][\d\-之]+號[\p{Han}\d]*[樓F]?`),
}

func findMatches(text string, pattern *regexp.Regexp, typ PIIType) []Redaction {
	var out []Redaction
	for _, loc := range pattern.FindAllStringIndex(text, -1) {
		out = append(out, Redaction{Type: typ, Start: loc[0], End: loc[1]})
	}
	return out
}

// mergeRedactions sorts spans by start and merges overlapping or touching
// spans into the union range, keeping the earlier span's type.
func mergeRedactions(redactions []Redaction) []Redaction {
	if len(redactions) <= 1 {
		return redactions
	}
	sort.Slice(redactions, func(i, j int) bool {
		if redactions[i].Start == redactions[j].Start {
			return redactions[i].End > redactions[j].End
		}
		return redactions[i].Start < redactions[j].Start
	})
	merged := []Redaction{redactions[0]}
	for _, cur := range redactions[1:] {
		last := &merged[len(merged)-1]
		if cur.Start <= last.End {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// applyRedactions substitutes placeholders back-to-front so earlier offsets
// stay valid.
func applyRedactions(text string, redactions []Redaction) string {
	result := text
	for i := len(redactions) - 1; i >= 0; i-- {
		r := redactions[i]
		result = result[:r.Start] + piiPlaceholders[r.Type] + result[r.End:]
	}
	return result
}

// Redact de-identifies free text before it crosses any external boundary.
// It never fails; empty input yields an empty result.
func Redact(text string) RedactionResult {
	if text == "" {
		return RedactionResult{}
	}

	var all []Redaction
	all = append(all, findMatches(text, emailPattern, PIIEmail)...)
	for _, p := range phonePatterns {
		all = append(all, findMatches(text, p, PIIPhone)...)
	}
	all = append(all, findMatches(text, urlPattern, PIIURL)...)
	for _, p := range addressPatterns {
		all = append(all, findMatches(text, p, PIIAddress)...)
	}

	merged := mergeRedactions(all)
	return RedactionResult{
		Text:       applyRedactions(text, merged),
		Redactions: merged,
	}
}

// ContainsPII is a fast existence check without building the redaction list.
func ContainsPII(text string) bool {
	if text == "" {
		return false
	}
	if emailPattern.MatchString(text) || urlPattern.MatchString(text) {
		return true
	}
	for _, p := range phonePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	for _, p := range addressPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
