package search

import (
	"strings"
	"unicode/utf8"
)

const snippetMaxLength = 150

// highlight builds a snippet around the first case-insensitive occurrence of
// query in text: 50 characters of leading context, 100 of trailing, ellipses
// where clipped, and every occurrence of the query wrapped in bold markers.
// When the query does not occur, the snippet is the head of the text.
func highlight(text, query string) string {
	if text == "" || query == "" {
		return clipAt(text, snippetMaxLength)
	}

	lowerText := strings.ToLower(text)
	lowerQuery := strings.ToLower(query)
	idx := strings.Index(lowerText, lowerQuery)
	if idx == -1 {
		return clipAt(text, snippetMaxLength) + "..."
	}

	start := runeFloor(text, idx-50)
	end := runeFloor(text, idx+len(query)+100)

	snippet := boldOccurrences(text[start:end], query)
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}

// clipAt truncates s to at most n bytes without splitting a rune.
func clipAt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:runeFloor(s, n)]
}

// runeFloor clamps i into [0, len(s)] and backs it off to the nearest rune
// boundary, so slicing at the result never splits a multibyte character.
func runeFloor(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// boldOccurrences wraps every case-insensitive occurrence of query in **,
// preserving the original casing of each match.
func boldOccurrences(text, query string) string {
	lowerText := strings.ToLower(text)
	lowerQuery := strings.ToLower(query)

	var b strings.Builder
	pos := 0
	for {
		idx := strings.Index(lowerText[pos:], lowerQuery)
		if idx == -1 {
			b.WriteString(text[pos:])
			return b.String()
		}
		idx += pos
		b.WriteString(text[pos:idx])
		b.WriteString("**")
		b.WriteString(text[idx : idx+len(query)])
		b.WriteString("**")
		pos = idx + len(query)
	}
}
