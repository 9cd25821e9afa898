// Package loader converts uploaded or on-disk files into plain text for the
// ingest path. Markdown and plain text pass through as-is; any other
// extension is attempted as UTF-8 text and rejected if it is binary.
package loader

import (
	"fmt"
	"unicode/utf8"

	"docqa/internal/domain"
)

// Extract converts raw file bytes to plain text.
func Extract(filename string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8 text (supported: .txt, .md, .markdown)",
			domain.ErrInvalidArgument, filename)
	}
	return string(data), nil
}
