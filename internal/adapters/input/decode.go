package input

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encodings lists the names accepted by LookupEncoding.
var Encodings = []string{"utf-8", "latin1", "windows-1252"}

// LookupEncoding maps an encoding name to its decoder. Names are matched
// case-insensitively and accept the common aliases.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q (supported: %s)", name, strings.Join(Encodings, ", "))
	}
}

// NewDecodingReader wraps r so that it yields UTF-8 decoded from the named
// encoding. Decoding never fails on malformed input: invalid UTF-8 bytes
// become U+FFFD, one per byte, which the sanitizer then redacts.
func NewDecodingReader(r io.Reader, name string) (io.Reader, error) {
	enc, err := LookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// DecodeString is NewDecodingReader for in-memory input.
func DecodeString(s, name string) (string, error) {
	enc, err := LookupEncoding(name)
	if err != nil {
		return "", err
	}
	out, _, err := transform.String(enc.NewDecoder(), s)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return out, nil
}
