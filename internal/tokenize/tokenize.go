// Package tokenize provides sentence tokenizers for the text structurer.
package tokenize

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Tokenizer names accepted by New.
const (
	NamePunkt = "punkt"
	NameRules = "rules"
)

// Tokenizer splits prose into sentences, preserving order.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// New returns the tokenizer registered under name.
func New(name string) (Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NamePunkt, "":
		return NewPunkt()
	case NameRules:
		return NewRules(), nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q (want %s or %s)", name, NamePunkt, NameRules)
	}
}

// normalize applies NFC so that composed and decomposed input split the same way.
func normalize(text string) string {
	return norm.NFC.String(text)
}

func clean(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
