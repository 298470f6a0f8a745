package content

import (
	"math"
	"regexp"
	"strings"
)

var lineBreaks = regexp.MustCompile(`[\n\r]+`)

// ReadingTime estimates reading time in minutes at 200 words per minute,
// never less than one minute.
func ReadingTime(text string) int {
	words := len(strings.Fields(strings.TrimSpace(text)))
	minutes := int(math.Ceil(float64(words) / 200))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Excerpt returns the first length characters of text with line breaks
// collapsed, appending an ellipsis when clipped.
func Excerpt(text string, length int) string {
	cleaned := strings.TrimSpace(lineBreaks.ReplaceAllString(text, " "))
	if len(cleaned) <= length {
		return cleaned
	}
	return strings.TrimSpace(cleaned[:length]) + "..."
}
