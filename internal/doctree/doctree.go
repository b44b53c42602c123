package doctree

// Page is the raw text of a single page. Lines are separated by "\n".
type Page struct {
	Number int    // 1-based page number (0 if N/A)
	Text   string // Raw page text as produced by the reader
}

// Texts returns the raw text of each page, in order.
func Texts(pages []Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Text
	}
	return out
}

// UnitKind distinguishes headers from sentences.
type UnitKind string

const (
	KindHeader   UnitKind = "header"
	KindSentence UnitKind = "sentence"
)

// Unit is one element of a structured document: a header line or a sentence.
type Unit struct {
	Kind UnitKind `json:"kind"`
	Text string   `json:"text"`
}

// Document is the ordered sequence of units extracted from a file.
type Document []Unit

// Strings projects the document to its plain text units.
func (d Document) Strings() []string {
	out := make([]string, len(d))
	for i, u := range d {
		out[i] = u.Text
	}
	return out
}

// HeaderCount returns the number of header units.
func (d Document) HeaderCount() int {
	n := 0
	for _, u := range d {
		if u.Kind == KindHeader {
			n++
		}
	}
	return n
}
