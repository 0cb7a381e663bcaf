package output

import (
	"fmt"
	"os"
)

// NonASCIIError reports a byte outside 7-bit ASCII in text destined for an
// ASCII-only file.
type NonASCIIError struct {
	Path   string
	Offset int
	Byte   byte
}

func (e *NonASCIIError) Error() string {
	return fmt.Sprintf("%s: byte 0x%02x at offset %d is not 7-bit ASCII", e.Path, e.Byte, e.Offset)
}

// WriteASCIIFile writes text to path, creating or truncating it. The whole
// text is checked before the file is opened, so a rejected write leaves an
// existing file untouched.
func WriteASCIIFile(path, text string) error {
	if err := CheckASCII(path, text); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// CheckASCII returns a *NonASCIIError for the first byte of text >= 0x80.
func CheckASCII(path, text string) error {
	for i := 0; i < len(text); i++ {
		if text[i] >= 0x80 {
			return &NonASCIIError{Path: path, Offset: i, Byte: text[i]}
		}
	}
	return nil
}
