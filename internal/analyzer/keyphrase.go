package analyzer

import (
	"regexp"
	"sort"
	"strings"
)

// Key-phrase extraction patterns: quoted phrases, capitalized multi-word
// phrases (likely project names) and ticket-style codes such as JIRA-123.
var (
	quotedPhraseRe = regexp.MustCompile(`"([^"]+)"`)
	capsPhraseRe   = regexp.MustCompile(`[A-Z][A-Za-z]+(?: [A-Z][A-Za-z]+)+`)
	ticketCodeRe   = regexp.MustCompile(`[A-Z]+-\d+`)
)

const (
	maxQuotedPhrases = 3
	maxCapsPhrases   = 3
	maxKeyPhrases    = 5

	// Subjects shorter than this are too generic to count as references.
	minReferencedSubjectLen = 10
)

// ExtractKeyPhrases pulls candidate topic identifiers from a message body.
// Pure function, no oracle calls.
func ExtractKeyPhrases(text string) []string {
	if text == "" {
		return nil
	}

	var phrases []string

	quotes := quotedPhraseRe.FindAllStringSubmatch(text, -1)
	for i, m := range quotes {
		if i >= maxQuotedPhrases {
			break
		}
		phrases = append(phrases, m[1])
	}

	caps := capsPhraseRe.FindAllString(text, -1)
	for i, m := range caps {
		if i >= maxCapsPhrases {
			break
		}
		phrases = append(phrases, m)
	}

	phrases = append(phrases, ticketCodeRe.FindAllString(text, -1)...)

	// Deduplicate, keep a stable order, cap the result.
	seen := make(map[string]struct{}, len(phrases))
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	if len(out) > maxKeyPhrases {
		out = out[:maxKeyPhrases]
	}
	return out
}

// FindSubjectReferences returns which of the given subjects appear verbatim
// (case-insensitively) in the body. Very short subjects are skipped.
func FindSubjectReferences(body string, subjects []string) []string {
	if body == "" {
		return nil
	}

	bodyLower := strings.ToLower(body)
	var referenced []string
	for _, subject := range subjects {
		if len(subject) <= minReferencedSubjectLen {
			continue
		}
		if strings.Contains(bodyLower, strings.ToLower(subject)) {
			referenced = append(referenced, subject)
		}
	}
	return referenced
}
