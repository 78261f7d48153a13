// Package validation provides the bounded-length, control-char-stripped,
// NFKC-normalized text checks and path-traversal guard shared by inbound
// message handling and filesystem-backed tools.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/openclaw/gateway/internal/apperr"
)

// ValidateMessageContent strips control characters, applies NFKC
// normalization, and rejects text exceeding maxLen runes. Calling it again
// on its own successful output returns the identical string (idempotence).
func ValidateMessageContent(text string, maxLen int) (string, error) {
	stripped := stripControl(text)
	normalized := norm.NFKC.String(stripped)

	if maxLen > 0 {
		count := 0
		for i := range normalized {
			count++
			if count > maxLen {
				return "", apperr.New(apperr.Validation,
					fmt.Sprintf("message content exceeds %d characters", maxLen))
			}
			_ = i
		}
	}
	return normalized, nil
}

func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CheckPathTraversal verifies that candidate, once cleaned and made absolute
// relative to root, still resides within root. It rejects ".." segments that
// would otherwise escape the allowed directory.
func CheckPathTraversal(root, candidate string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", apperr.Wrap(apperr.Validation, err)
	}
	joined := candidate
	if !filepath.IsAbs(candidate) {
		joined = filepath.Join(absRoot, candidate)
	}
	cleaned := filepath.Clean(joined)

	rel, err := filepath.Rel(absRoot, cleaned)
	if err != nil {
		return "", apperr.New(apperr.Validation, "path escapes allowed root")
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperr.New(apperr.Validation, "path traversal rejected: "+candidate)
	}
	return cleaned, nil
}

// NonEmpty rejects a blank or whitespace-only string for use as an identifier field.
func NonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.New(apperr.Validation, field+" must not be empty")
	}
	return nil
}
