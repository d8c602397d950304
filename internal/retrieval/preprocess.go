package retrieval

import (
	"strings"
	"unicode/utf8"
)

// minTokenRunes is the shortest token kept for matching.
const minTokenRunes = 3

// termTranslations maps Hindi farming terms, Devanagari and romanized, to the
// English words the knowledge base is written in. Applied in order as literal
// substring replacements.
var termTranslations = []struct {
	from string
	to   string
}{
	{"कीटनाशक", "pesticide"},
	{"उर्वरक", "fertilizer"},
	{"टमाटर", "tomato"},
	{"प्याज", "onion"},
	{"गेहूं", "wheat"},
	{"धान", "paddy"},
	{"चावल", "rice"},
	{"भाव", "price"},
	{"कीमत", "price"},
	{"मौसम", "weather"},
	{"योजना", "scheme"},
	{"दवा", "pesticide"},
	{"खाद", "fertilizer"},
	{"मिट्टी", "soil"},
	{"tamatar", "tomato"},
	{"pyaz", "onion"},
	{"gehu", "wheat"},
	{"bhav", "price"},
	{"mausam", "weather"},
	{"yojana", "scheme"},
	{"dava", "pesticide"},
	{"khad", "fertilizer"},
	{"mitti", "soil"},
}

var translator = func() *strings.Replacer {
	pairs := make([]string, 0, len(termTranslations)*2)
	for _, t := range termTranslations {
		pairs = append(pairs, t.from, t.to)
	}
	return strings.NewReplacer(pairs...)
}()

// Translate lowercases query and rewrites known Hindi terms into English.
func Translate(query string) string {
	return translator.Replace(strings.ToLower(query))
}

// Tokenize turns a raw query into the search tokens used by every matcher:
// translated, whitespace-split, with tokens shorter than three runes dropped.
func Tokenize(query string) []string {
	fields := strings.Fields(Translate(query))
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenRunes {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
