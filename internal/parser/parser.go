package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
)

var (
	// ErrInvalidDocument is wrapped when the bytes cannot be decoded into pages.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrUnsupported is wrapped when no parser handles the file extension.
	ErrUnsupported = errors.New("unsupported file type")
)

// Parser converts raw document bytes into page texts, in document order.
type Parser interface {
	Parse(r io.Reader, filename string) ([]doctree.Page, error)
}

// Options tunes parser behaviour.
type Options struct {
	FallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}

// singlePage wraps line-oriented text from a non-paginated format.
func singlePage(lines []string) []doctree.Page {
	if len(lines) == 0 {
		return nil
	}
	return []doctree.Page{{Number: 1, Text: strings.Join(lines, "\n")}}
}
