package scan

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validator screens file content before it reaches an analyzer. GameMaker
// trees keep binary assets next to the manifests that describe them, and a
// broken export can leave texture data behind a source or manifest name.
// The source parser is lenient enough to "succeed" on such bytes, so they
// have to be rejected before parsing, not after.
type Validator struct {
	// ValidationThreshold is the size above which content is inspected.
	// Smaller files pass unexamined; real project files under this size
	// are cheap to parse even when they turn out to be junk.
	ValidationThreshold int64

	// MaxFileSize rejects files outright. No hand-written GML or
	// exported manifest reaches this size.
	MaxFileSize int64

	// HeaderSize bounds how much of an oversized file is inspected.
	HeaderSize int64
}

const (
	DefaultValidationThreshold = 256 * 1024
	DefaultMaxFileSize         = 16 << 20
	defaultHeaderSize          = 64 * 1024
)

// NewValidator returns a validator with the default limits.
func NewValidator() *Validator {
	return &Validator{
		ValidationThreshold: DefaultValidationThreshold,
		MaxFileSize:         DefaultMaxFileSize,
		HeaderSize:          defaultHeaderSize,
	}
}

// Screen decides whether content may be analyzed under the given path's
// extension. A non-nil error means the file should be skipped and counted,
// not failed on; a tree containing junk is a tree defect, not a build
// failure.
func (v *Validator) Screen(path string, content []byte) error {
	if int64(len(content)) > v.MaxFileSize {
		return fmt.Errorf("file exceeds %d byte limit (%d bytes)", v.MaxFileSize, len(content))
	}
	if int64(len(content)) <= v.ValidationThreshold {
		return nil
	}

	header := content
	if int64(len(header)) > v.HeaderSize {
		header = header[:v.HeaderSize]
	}

	if isBinaryData(header) {
		return errors.New("content appears to be binary")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ExtProjectManifest, ExtResourceManifest:
		return screenManifest(header)
	case ExtSource:
		return screenSource(header)
	}
	return nil
}

// isBinaryData reports whether the bytes look like binary rather than text.
// Control characters other than tab, LF and CR count against the content;
// above 30% the file is treated as binary.
func isBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	nonPrintable := 0
	for _, b := range data {
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(data)) > 0.3
}

// screenManifest checks that the header opens a JSON object. Every manifest
// the IDE writes starts with '{', whatever trailing-comma dialect it uses.
func screenManifest(header []byte) error {
	trimmed := bytes.TrimLeft(header, " \t\r\n\xef\xbb\xbf")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("manifest does not open a JSON object")
	}
	return nil
}

// screenSource checks for tokens any real source file of this size would
// contain.
func screenSource(header []byte) error {
	patterns := [][]byte{
		[]byte("function"),
		[]byte("#macro"),
		[]byte("enum"),
		[]byte("var "),
		[]byte("globalvar"),
		[]byte("global."),
		[]byte("="),
		[]byte(";"),
		[]byte("//"),
	}
	for _, pattern := range patterns {
		if bytes.Contains(header, pattern) {
			return nil
		}
	}
	return errors.New("no source constructs found")
}
