package tokenize

import (
	"fmt"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Punkt is an unsupervised sentence tokenizer trained on English text.
// The trained model is only read while tokenizing, so one Punkt may be
// shared by concurrent workers.
type Punkt struct {
	tok *sentences.DefaultSentenceTokenizer
}

// NewPunkt loads the bundled English training data.
func NewPunkt() (*Punkt, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load punkt english model: %w", err)
	}
	return &Punkt{tok: tok}, nil
}

func (p *Punkt) Tokenize(text string) ([]string, error) {
	text = normalize(text)
	if !isValidText(text) {
		return nil, fmt.Errorf("punkt: input is not valid UTF-8")
	}

	sents := p.tok.Tokenize(text)

	parts := make([]string, len(sents))
	for i, s := range sents {
		parts[i] = s.Text
	}
	return clean(parts), nil
}
