package parser

import (
	"strings"
	"testing"
)

func TestHTMLParser_BlocksBecomeLines(t *testing.T) {
	input := `<html><head><title>Climate Notes</title><style>p{}</style></head>
<body>
<nav>Home | About</nav>
<h1>Introduction</h1>
<p>Climate change refers to
   long-term shifts.</p>
<ul><li>Rising seas</li><li>Heat waves</li></ul>
<script>var x = 1;</script>
</body></html>`
	p := &HTMLParser{}
	pages, err := p.Parse(strings.NewReader(input), "notes.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}

	lines := strings.Split(pages[0].Text, "\n")
	want := []string{
		"Climate Notes",
		"Introduction",
		"Climate change refers to long-term shifts.",
		"Rising seas",
		"Heat waves",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(lines), lines)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line[%d]: expected %q, got %q", i, w, lines[i])
		}
	}
}

func TestHTMLParser_NoContent(t *testing.T) {
	p := &HTMLParser{}
	pages, err := p.Parse(strings.NewReader("<html><body></body></html>"), "blank.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("expected 0 pages, got %d", len(pages))
	}
}
