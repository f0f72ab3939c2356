// Package docread extracts plain text from supported document formats.
//
// Two formats are handled: PDF (page-wise text extraction, pages without
// extractable text are skipped) and plain UTF-8 text files. Callers such
// as the upload endpoint should gate on Supported before handing a path
// to Read.
package docread

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat indicates the file extension is not one of the
// formats this package can read.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Supported reports whether files with the given extension (including
// the leading dot, case-insensitive) can be read.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".txt":
		return true
	default:
		return false
	}
}

// Read extracts the full plain text of the document at path, dispatching
// on the file extension. It returns ErrUnsupportedFormat for extensions
// outside the supported set.
func Read(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return readPDF(path)
	case ".txt":
		return readText(path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// readPDF concatenates the extracted text of every page, appending a
// newline after each. Pages that yield no text (scanned images, broken
// content streams) are skipped rather than failing the whole read.
func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %q: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return b.String(), nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file %q: %w", path, err)
	}
	return string(data), nil
}
