// Package parsertest builds small documents for parser tests.
package parsertest

import (
	"bytes"
	"fmt"
	"strings"
)

// PDF assembles a minimal single-font (Helvetica as /F1) PDF with one page per
// content stream.
func PDF(streams ...string) []byte {
	var objs []string
	n := len(streams)
	// 1: catalog, 2: pages, 3: font, then (page, content) pairs.
	kids := make([]string, n)
	for i := range streams {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, stream := range streams {
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// OneLinePDF builds a PDF whose pages each show a single line of text.
func OneLinePDF(lines ...string) []byte {
	streams := make([]string, len(lines))
	for i, line := range lines {
		streams[i] = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", line)
	}
	return PDF(streams...)
}

// LinesPDF builds a one-page PDF laying lines out top to bottom with Td
// moves, the way most generators position text rows.
func LinesPDF(lines ...string) []byte {
	var b strings.Builder
	b.WriteString("BT /F1 12 Tf 72 720 Td")
	for i, line := range lines {
		if i > 0 {
			b.WriteString(" 0 -14 Td")
		}
		fmt.Fprintf(&b, " (%s) Tj", line)
	}
	b.WriteString(" ET")
	return PDF(b.String())
}
