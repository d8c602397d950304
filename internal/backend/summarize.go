package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

const fallbackSummary = "Based on the information found, the details are available in the provided source."

// Summarize condenses retrieved context into a short answer for query.
//
// Price questions get the first sentence quoting a number next to "rs" or
// "price". How-to questions get the first two sentences as guidance. Anything
// else gets the first two sentences as key information.
func Summarize(query, context string) string {
	sentences := splitSentences(context)
	lowerQuery := strings.ToLower(query)

	if strings.Contains(lowerQuery, "price") || strings.Contains(lowerQuery, "rate") || strings.Contains(query, "भाव") {
		for _, s := range sentences {
			lower := strings.ToLower(s)
			if strings.IndexFunc(s, unicode.IsDigit) >= 0 && (strings.Contains(lower, "rs") || strings.Contains(lower, "price")) {
				return "**Market Price Information:** " + s
			}
		}
	}

	if strings.Contains(lowerQuery, "how to") || strings.Contains(lowerQuery, "kaise") {
		if len(sentences) > 0 {
			return "**Guidance:** " + strings.Join(firstN(sentences, 2), " ")
		}
	}

	summary := strings.TrimSpace(strings.Join(firstN(sentences, 2), " "))
	if summary == "" {
		return fallbackSummary
	}
	return "**Key Information:** " + summary
}

// CacheHash is the provenance token of a live answer.
func CacheHash(queryEN, answerEN string) string {
	sum := sha256.Sum256([]byte(queryEN + ":" + answerEN))
	return hex.EncodeToString(sum[:])
}

// splitSentences breaks text after '.', '!' or '?' when whitespace follows.
// The currency abbreviation "Rs." does not end a sentence.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		if runes[i] == '.' && isRupeeAbbrev(runes[:i]) {
			continue
		}
		if (runes[i] == '.' || runes[i] == '!' || runes[i] == '?') && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func isRupeeAbbrev(before []rune) bool {
	n := len(before)
	if n < 2 || !strings.EqualFold(string(before[n-2:]), "rs") {
		return false
	}
	return n == 2 || !unicode.IsLetter(before[n-3])
}

func firstN(s []string, n int) []string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
