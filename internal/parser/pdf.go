package parser

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if enabled and available.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) ([]doctree.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if len(data) == 0 {
		return nil, invalid("%s: empty file", filename)
	}

	pages, err := extractPDFPages(data)
	if (err != nil || !hasText(pages)) && p.FallbackPdftotext {
		if fb, fbErr := extractPdftotext(data); fbErr == nil {
			pages, err = fb, nil
		} else if err == nil {
			err = fbErr
		}
	}
	if err != nil {
		return nil, invalid("%s: %v", filename, err)
	}
	return pages, nil
}

func extractPDFPages(data []byte) (pages []doctree.Page, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("decode pdf: %v", rec)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	fonts := make(map[string]*pdflib.Font)
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text := pageLines(page)
		if strings.TrimSpace(text) == "" {
			for _, name := range page.Fonts() {
				if _, ok := fonts[name]; !ok {
					f := page.Font(name)
					fonts[name] = &f
				}
			}
			plain, err := page.GetPlainText(fonts)
			if err != nil {
				return nil, fmt.Errorf("read page %d: %w", i, err)
			}
			text = plain
		}
		pages = append(pages, doctree.Page{Number: i, Text: text})
	}
	return pages, nil
}

// pageLines rebuilds the page's visual lines from positioned glyphs: a change
// of baseline starts a new line, and a horizontal gap wider than a quarter of
// the font size inside a line becomes a space. Glyphs keep content-stream
// order. It returns "" when the content stream cannot be interpreted.
func pageLines(page pdflib.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	glyphs := page.Content().Text
	var b strings.Builder
	for i, g := range glyphs {
		if i > 0 {
			prev := glyphs[i-1]
			tol := math.Max(1, 0.5*math.Min(prev.FontSize, g.FontSize))
			switch {
			case math.Abs(g.Y-prev.Y) > tol:
				b.WriteByte('\n')
			case g.X-(prev.X+prev.W) > 0.25*g.FontSize && !isSpace(prev.S) && !isSpace(g.S):
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.S)
	}
	return b.String()
}

func isSpace(s string) bool {
	return strings.TrimSpace(s) == ""
}

func extractPdftotext(data []byte) ([]doctree.Page, error) {
	// pdftotext needs a path, so write to a temp file.
	tmp, err := os.CreateTemp("", "pdfnarrate-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	cmd := exec.Command("pdftotext", "-enc", "UTF-8", tmpPath, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPages(string(out)), nil
}

// splitPages splits form-feed separated output into numbered pages.
func splitPages(text string) []doctree.Page {
	parts := strings.Split(text, "\f")
	// pdftotext terminates the last page with a form feed too.
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	pages := make([]doctree.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, doctree.Page{Number: i + 1, Text: part})
	}
	return pages
}

func hasText(pages []doctree.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}
