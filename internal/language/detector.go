// Package language classifies free text into one of the two supported locales.
package language

import (
	"strings"
	"unicode"
)

// Locale is a two-value language tag.
type Locale string

const (
	// EN is the primary locale.
	EN Locale = "en"
	// HI is the secondary locale (Hindi, Devanagari or romanized).
	HI Locale = "hi"
)

// devanagari covers U+0900..U+097F.
var devanagari = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0900, Hi: 0x097F, Stride: 1}},
}

// DefaultRomanizedKeywords are whole words that mark romanized Hindi input.
var DefaultRomanizedKeywords = []string{
	"bhav", "kya", "kaise", "mein", "hai", "tamatar", "pyaz", "gehu", "mausam", "yojana", "dava",
	"namaste", "namaskar", "dhanyavad", "shukriya",
}

// Detector classifies text using a script-range check and a keyword list.
type Detector struct {
	keywords map[string]struct{}
}

// NewDetector creates a detector. An empty keyword list falls back to
// DefaultRomanizedKeywords.
func NewDetector(keywords []string) *Detector {
	if len(keywords) == 0 {
		keywords = DefaultRomanizedKeywords
	}
	set := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		set[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}
	return &Detector{keywords: set}
}

// Detect returns HI when text contains a Devanagari character or a romanized
// keyword token, EN otherwise.
func (d *Detector) Detect(text string) Locale {
	for _, r := range text {
		if unicode.Is(devanagari, r) {
			return HI
		}
	}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if _, ok := d.keywords[word]; ok {
			return HI
		}
	}
	return EN
}

var defaultDetector = NewDetector(nil)

// Detect classifies text with the default keyword list.
func Detect(text string) Locale {
	return defaultDetector.Detect(text)
}

// Parse maps a locale string to a Locale, defaulting to EN.
func Parse(s string) Locale {
	if strings.HasPrefix(strings.ToLower(s), "hi") {
		return HI
	}
	return EN
}
