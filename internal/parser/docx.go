package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Each non-empty paragraph becomes a line;
// the document is treated as a single page.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) ([]doctree.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, invalid("%s: %v", filename, err)
	}

	var lines []string
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		// Heading paragraphs often end with a period in Word documents;
		// strip it so they classify as headers.
		if docxIsHeading(para) {
			text = strings.TrimRight(text, ".")
		}
		lines = append(lines, text)
	}

	return singlePage(lines), nil
}

func docxIsHeading(para *docx.Paragraph) bool {
	if para.Properties == nil || para.Properties.Style == nil {
		return false
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	return strings.HasPrefix(style, "heading") || style == "title"
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
