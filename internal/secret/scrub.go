package secret

import "strings"

// CommonPatterns are the fixed prefixes the scrubber looks for by default.
var CommonPatterns = []string{
	"api_key=",
	"apikey=",
	"api-key=",
	"token=",
	"secret=",
	"password=",
	"Authorization: Bearer ",
	"Authorization: Basic ",
	"x-api-key: ",
}

// Scrub replaces the value following each occurrence of a pattern in text
// with [REDACTED], stopping the value at the next whitespace, quote, comma,
// or ampersand.
func Scrub(text string, patterns []string) string {
	result := text
	for _, pattern := range patterns {
		result = scrubOne(result, pattern)
	}
	return result
}

func scrubOne(text, pattern string) string {
	var b strings.Builder
	searchFrom := 0
	for {
		idx := strings.Index(text[searchFrom:], pattern)
		if idx < 0 {
			b.WriteString(text[searchFrom:])
			break
		}
		start := searchFrom + idx + len(pattern)
		b.WriteString(text[searchFrom : searchFrom+idx+len(pattern)])

		end := start
		for end < len(text) {
			c := text[end]
			if c == ' ' || c == '\t' || c == '\n' || c == '"' || c == '\'' || c == '&' || c == ',' {
				break
			}
			end++
		}
		b.WriteString(redacted)
		searchFrom = end
	}
	return b.String()
}
