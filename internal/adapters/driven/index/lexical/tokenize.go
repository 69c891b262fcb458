package lexical

import (
	"strings"
	"unicode"
)

// Tokenize splits text into index terms.
//
// Latin words and numbers are lowercased and kept whole. Runs of Han, Hiragana,
// Katakana and Hangul characters have no word boundaries, so they are emitted
// as overlapping bigrams; an isolated character becomes a single term.
func Tokenize(text string) []string {
	var (
		terms []string
		word  []rune
		cjk   []rune
	)

	flushWord := func() {
		if len(word) > 0 {
			terms = append(terms, strings.ToLower(string(word)))
			word = word[:0]
		}
	}
	flushCJK := func() {
		switch len(cjk) {
		case 0:
		case 1:
			terms = append(terms, string(cjk))
		default:
			for i := 0; i+1 < len(cjk); i++ {
				terms = append(terms, string(cjk[i:i+2]))
			}
		}
		cjk = cjk[:0]
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flushWord()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			word = append(word, r)
		default:
			flushWord()
			flushCJK()
		}
	}
	flushWord()
	flushCJK()

	return terms
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// matchQuery turns free text into an FTS5 query that matches any of its
// terms. Every term is quoted so FTS5 operators in user text stay literal.
func matchQuery(text string) string {
	terms := Tokenize(text)
	if len(terms) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		quoted = append(quoted, `"`+strings.ReplaceAll(term, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}
