package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Headings and block-level text elements
// become lines of a single page; the <title> leads when present.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) ([]doctree.Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, invalid("%s: %v", filename, err)
	}

	var lines []string
	if title := findTitle(doc); title != "" {
		lines = append(lines, title)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "noscript":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6", "p", "li", "td", "th", "blockquote", "pre", "figcaption":
				if t := textContent(n); t != "" {
					lines = append(lines, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	// Find <body> or use whole document.
	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}

	return singlePage(lines), nil
}

// textContent returns the element's text with internal whitespace collapsed,
// so reflowed HTML source does not split a paragraph into several lines.
func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
