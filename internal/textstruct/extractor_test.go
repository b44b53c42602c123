package textstruct

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
	"github.com/dgallion1/pdfnarrate/internal/tokenize"
)

// recordingTokenizer splits on ". " and records every block it receives.
type recordingTokenizer struct {
	calls []string
	fail  bool
}

func (r *recordingTokenizer) Tokenize(text string) ([]string, error) {
	r.calls = append(r.calls, text)
	if r.fail {
		return nil, errors.New("unsupported encoding")
	}
	parts := strings.SplitAfter(text, ". ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out, nil
}

func TestExtract_HeaderThenProse(t *testing.T) {
	ex := New(tokenize.NewRules())
	doc, err := ex.Extract([]string{"Introduction\nClimate change refers to long-term shifts. It has accelerated."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Introduction", "Climate change refers to long-term shifts.", "It has accelerated."}
	if !reflect.DeepEqual(doc.Strings(), want) {
		t.Errorf("expected %q, got %q", want, doc.Strings())
	}
	if doc[0].Kind != doctree.KindHeader {
		t.Errorf("expected first unit to be a header, got %q", doc[0].Kind)
	}
	for _, u := range doc[1:] {
		if u.Kind != doctree.KindSentence {
			t.Errorf("expected sentence unit, got %q for %q", u.Kind, u.Text)
		}
	}
}

func TestExtract_BlankPage(t *testing.T) {
	tok := &recordingTokenizer{}
	doc, err := New(tok).Extract([]string{"\n\n   \n"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc) != 0 {
		t.Errorf("expected empty document, got %q", doc.Strings())
	}
	if len(tok.calls) != 0 {
		t.Errorf("expected no tokenizer calls, got %d", len(tok.calls))
	}
}

func TestExtract_ConsecutiveHeaders(t *testing.T) {
	tok := &recordingTokenizer{}
	doc, err := New(tok).Extract([]string{
		"Short Title\nAnother Short One\nThis is a longer sentence that ends with a period.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Short Title", "Another Short One", "This is a longer sentence that ends with a period."}
	if !reflect.DeepEqual(doc.Strings(), want) {
		t.Errorf("expected %q, got %q", want, doc.Strings())
	}
	// Only the trailing body block reaches the tokenizer.
	if len(tok.calls) != 1 {
		t.Errorf("expected 1 tokenizer call, got %d: %q", len(tok.calls), tok.calls)
	}
}

func TestExtract_BlockFlushedAtPageEnd(t *testing.T) {
	tok := &recordingTokenizer{}
	pages := []string{
		"Chapter One\nThe first page ends in the middle of a paragraph that wraps",
		"onto the second page and finishes here.\nChapter Two",
	}
	doc, err := New(tok).Extract(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantCalls := []string{
		"The first page ends in the middle of a paragraph that wraps",
		"onto the second page and finishes here.",
	}
	if !reflect.DeepEqual(tok.calls, wantCalls) {
		t.Errorf("expected tokenizer calls %q, got %q", wantCalls, tok.calls)
	}

	want := []string{
		"Chapter One",
		"The first page ends in the middle of a paragraph that wraps",
		"onto the second page and finishes here.",
		"Chapter Two",
	}
	if !reflect.DeepEqual(doc.Strings(), want) {
		t.Errorf("expected %q, got %q", want, doc.Strings())
	}
}

func TestExtract_BodyOnlyPageSingleFlush(t *testing.T) {
	tok := &recordingTokenizer{}
	page := "This line is long enough to count as body prose for sure\n" +
		"and this one ends with a period.\n" +
		"   Another body line, indented and long enough to be prose.  "
	doc, err := New(tok).Extract([]string{page})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tok.calls) != 1 {
		t.Fatalf("expected exactly 1 tokenizer call, got %d", len(tok.calls))
	}
	wantBlock := "This line is long enough to count as body prose for sure " +
		"and this one ends with a period. " +
		"Another body line, indented and long enough to be prose."
	if tok.calls[0] != wantBlock {
		t.Errorf("expected block joined with single spaces:\n got: %q\nwant: %q", tok.calls[0], wantBlock)
	}
	if doc.HeaderCount() != 0 {
		t.Errorf("expected no headers, got %d", doc.HeaderCount())
	}
}

func TestExtract_HeadersOnlyPage(t *testing.T) {
	tok := &recordingTokenizer{}
	doc, err := New(tok).Extract([]string{"Contents\n\nPart I\n  Part II  \n"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Contents", "Part I", "Part II"}
	if !reflect.DeepEqual(doc.Strings(), want) {
		t.Errorf("expected %q, got %q", want, doc.Strings())
	}
	if len(tok.calls) != 0 {
		t.Errorf("expected no tokenizer calls, got %d", len(tok.calls))
	}
}

func TestExtract_HeaderSplitsBlocks(t *testing.T) {
	tok := &recordingTokenizer{}
	page := "Body text before the section heading, ending with a stop.\n" +
		"Methods\n" +
		"Body text after the section heading, also ending with a stop."
	doc, err := New(tok).Extract([]string{page})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"Body text before the section heading, ending with a stop.",
		"Methods",
		"Body text after the section heading, also ending with a stop.",
	}
	if !reflect.DeepEqual(doc.Strings(), want) {
		t.Errorf("expected %q, got %q", want, doc.Strings())
	}
	if len(tok.calls) != 2 {
		t.Errorf("expected 2 tokenizer calls, got %d", len(tok.calls))
	}
}

func TestExtract_CRLFLineBreaks(t *testing.T) {
	doc, err := New(&recordingTokenizer{}).Extract([]string{"Title\r\nA body line that is long enough and ends with a period.\r\n"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Title", "A body line that is long enough and ends with a period."}
	if !reflect.DeepEqual(doc.Strings(), want) {
		t.Errorf("expected %q, got %q", want, doc.Strings())
	}
}

func TestExtract_TokenizerFailureAbortsDocument(t *testing.T) {
	tok := &recordingTokenizer{fail: true}
	doc, err := New(tok).Extract([]string{"Header\nSome body prose that must be tokenized here."})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrTokenize) {
		t.Errorf("expected ErrTokenize, got %v", err)
	}
	if doc != nil {
		t.Errorf("expected no partial result, got %q", doc.Strings())
	}
}

func TestExtract_NoTokenizer(t *testing.T) {
	_, err := (&Extractor{}).Extract([]string{"x"})
	if !errors.Is(err, ErrTokenize) {
		t.Errorf("expected ErrTokenize, got %v", err)
	}
}

func TestExtract_DropsBlankSentences(t *testing.T) {
	tok := tokenizerFunc(func(string) ([]string, error) {
		return []string{"One.", "  ", "", "Two."}, nil
	})
	doc, err := New(tok).Extract([]string{"A body line that is long enough and ends with a period."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"One.", "Two."}
	if !reflect.DeepEqual(doc.Strings(), want) {
		t.Errorf("expected %q, got %q", want, doc.Strings())
	}
}

func TestIsHeader(t *testing.T) {
	ex := New(nil)
	tests := []struct {
		line string
		want bool
	}{
		{"Introduction", true},
		{"1.2 Methods", true},
		{"Short sentence.", false},
		{strings.Repeat("a", 49), true},
		{strings.Repeat("a", 50), false},
		// Length is measured in characters, not bytes.
		{strings.Repeat("\u00e9", 49), true},
		{"Résumé of the Änderungen", true},
	}
	for _, tt := range tests {
		if got := ex.IsHeader(tt.line); got != tt.want {
			t.Errorf("IsHeader(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestIsHeader_CustomLimit(t *testing.T) {
	ex := &Extractor{MaxHeaderLen: 10}
	if !ex.IsHeader("Nine char") {
		t.Error("expected 9-char line to be a header with limit 10")
	}
	if ex.IsHeader("Ten chars!") {
		t.Error("expected 10-char line to be body with limit 10")
	}
}

// P1/P2: every non-empty line shows up, in order, either as a header or
// inside exactly one tokenizer call.
func TestExtract_OrderAndCoverage(t *testing.T) {
	tok := &recordingTokenizer{}
	pages := []string{
		"Part One\nIt was the best of times, it was the worst of times.\nIt was the age of wisdom.\nInterlude\n",
		"\nIt was the epoch of belief, it was the epoch of incredulity.\nPart Two",
	}
	doc, err := New(tok).Extract(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var headers []string
	for _, u := range doc {
		if u.Kind == doctree.KindHeader {
			headers = append(headers, u.Text)
		}
	}
	if want := []string{"Part One", "Interlude", "Part Two"}; !reflect.DeepEqual(headers, want) {
		t.Errorf("expected headers %q, got %q", want, headers)
	}

	wantCalls := []string{
		"It was the best of times, it was the worst of times. It was the age of wisdom.",
		"It was the epoch of belief, it was the epoch of incredulity.",
	}
	if !reflect.DeepEqual(tok.calls, wantCalls) {
		t.Errorf("expected calls %q, got %q", wantCalls, tok.calls)
	}

	want := []string{
		"Part One",
		"It was the best of times, it was the worst of times.",
		"It was the age of wisdom.",
		"Interlude",
		"It was the epoch of belief, it was the epoch of incredulity.",
		"Part Two",
	}
	if !reflect.DeepEqual(doc.Strings(), want) {
		t.Errorf("expected %q, got %q", want, doc.Strings())
	}
}

type tokenizerFunc func(string) ([]string, error)

func (f tokenizerFunc) Tokenize(s string) ([]string, error) { return f(s) }
