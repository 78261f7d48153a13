// Package secret provides an opaque byte-sequence container whose display
// and debug renderings never leak plaintext, plus a scrubber for redacting
// secret-shaped substrings out of arbitrary log/error text.
package secret

import "log/slog"

const redacted = "[REDACTED]"

// Secret is an opaque owner of a byte sequence. The zero value holds no bytes.
type Secret struct {
	plaintext []byte
}

// New wraps plaintext in a Secret. The caller should not retain plaintext afterward.
func New(plaintext []byte) Secret {
	cp := make([]byte, len(plaintext))
	copy(cp, plaintext)
	return Secret{plaintext: cp}
}

// NewString is New for a string value.
func NewString(s string) Secret {
	return New([]byte(s))
}

// Expose returns a reference to the plaintext. Use it for the narrowest
// possible scope, at the API boundary that actually needs the value.
func (s Secret) Expose() []byte { return s.plaintext }

// ExposeString is Expose rendered as a string.
func (s Secret) ExposeString() string { return string(s.plaintext) }

// String implements fmt.Stringer, always rendering the redacted literal.
func (s Secret) String() string { return redacted }

// GoString implements fmt.GoStringer, so %#v also redacts.
func (s Secret) GoString() string { return redacted }

// LogValue implements slog.LogValuer so structured logging never leaks the plaintext.
func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }
