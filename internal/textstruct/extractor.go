// Package textstruct turns page text into an ordered sequence of header and
// sentence units.
package textstruct

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
)

// DefaultMaxHeaderLen is the exclusive length limit (in runes) for a line to
// be treated as a header.
const DefaultMaxHeaderLen = 50

// ErrTokenize is wrapped by every error caused by the sentence tokenizer.
var ErrTokenize = errors.New("sentence tokenization failed")

// Tokenizer splits a block of prose into sentences.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// Extractor classifies lines as headers or body prose and sentence-tokenizes
// the body blocks between headers.
type Extractor struct {
	Tokenizer    Tokenizer
	MaxHeaderLen int // Lines shorter than this without a trailing "." are headers.
}

// New returns an Extractor using tok and the default header length.
func New(tok Tokenizer) *Extractor {
	return &Extractor{Tokenizer: tok, MaxHeaderLen: DefaultMaxHeaderLen}
}

// Extract processes pages in order. Any tokenizer failure aborts the whole
// document and no partial result is returned.
func (e *Extractor) Extract(pages []string) (doctree.Document, error) {
	if e.Tokenizer == nil {
		return nil, fmt.Errorf("%w: no tokenizer configured", ErrTokenize)
	}

	doc := doctree.Document{}
	for i, page := range pages {
		var err error
		doc, err = e.appendPage(doc, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return doc, nil
}

func (e *Extractor) appendPage(doc doctree.Document, page string) (doctree.Document, error) {
	var block []string

	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		sentences, err := e.Tokenizer.Tokenize(strings.Join(block, " "))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTokenize, err)
		}
		for _, s := range sentences {
			if s = strings.TrimSpace(s); s != "" {
				doc = append(doc, doctree.Unit{Kind: doctree.KindSentence, Text: s})
			}
		}
		block = block[:0]
		return nil
	}

	page = strings.ReplaceAll(page, "\r\n", "\n")
	for _, line := range strings.Split(page, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !e.IsHeader(line) {
			block = append(block, line)
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		doc = append(doc, doctree.Unit{Kind: doctree.KindHeader, Text: line})
	}

	// A block never carries over into the next page.
	if err := flush(); err != nil {
		return nil, err
	}
	return doc, nil
}

// IsHeader reports whether a trimmed, non-empty line looks like a title or
// section header: short and not terminated by a period.
func (e *Extractor) IsHeader(line string) bool {
	limit := e.MaxHeaderLen
	if limit <= 0 {
		limit = DefaultMaxHeaderLen
	}
	return utf8.RuneCountInString(line) < limit && !strings.HasSuffix(line, ".")
}
