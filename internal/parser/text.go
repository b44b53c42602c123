package parser

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
)

// TextParser handles plain text files. Form feeds separate pages.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]doctree.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, invalid("%s: not valid UTF-8", filename)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return splitPages(string(data)), nil
}
