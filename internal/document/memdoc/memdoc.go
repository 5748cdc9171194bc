// Package memdoc is a deterministic in-memory implementation of the document
// primitives. Pages lay text out on a fixed character grid, so search hits,
// rectangle lookups, and redaction burn-in behave predictably. It backs the
// engine's tests and local dry runs; it is not a PDF library.
package memdoc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docshield/redactor/internal/document"
	"github.com/docshield/redactor/internal/geometry"
)

const (
	charWidth  = 6.0
	lineHeight = 12.0
	originX    = 72.0
	originY    = 72.0
)

type pageState struct {
	Lines       []string              `json:"lines"`
	Annotations []document.Annotation `json:"annotations"`
}

type docState struct {
	Pages  []pageState               `json:"pages"`
	Images []document.ImagePlacement `json:"images,omitempty"`
	NextID int                       `json:"next_id"`
}

// Doc is an open in-memory document.
type Doc struct {
	state docState
}

// Page is one page of a Doc.
type Page struct {
	doc     *Doc
	index   int
	pending []geometry.Rect
}

// New builds a document from per-page line slices.
func New(pages ...[]string) *Doc {
	d := &Doc{state: docState{NextID: 1}}
	for _, lines := range pages {
		d.state.Pages = append(d.state.Pages, pageState{Lines: lines})
	}
	return d
}

// AddImage attaches an embedded image placement to the document.
func (d *Doc) AddImage(p document.ImagePlacement) {
	d.state.Images = append(d.state.Images, p)
}

// Opener opens serialized memdoc bytes.
type Opener struct{}

func (Opener) Open(data []byte) (document.Document, error) {
	var st docState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	if st.NextID == 0 {
		st.NextID = 1
	}
	return &Doc{state: st}, nil
}

func (d *Doc) PageCount() int { return len(d.state.Pages) }

func (d *Doc) Page(index int) (document.Page, error) {
	if index < 0 || index >= len(d.state.Pages) {
		return nil, fmt.Errorf("page %d out of range [0, %d)", index, len(d.state.Pages))
	}
	return &Page{doc: d, index: index}, nil
}

func (d *Doc) Images() []document.ImagePlacement {
	out := make([]document.ImagePlacement, len(d.state.Images))
	copy(out, d.state.Images)
	return out
}

func (d *Doc) Save() ([]byte, error) {
	return json.Marshal(d.state)
}

func (p *Page) Number() int { return p.index }

func (p *Page) lines() []string { return p.doc.state.Pages[p.index].Lines }

func (p *Page) Text() string {
	return strings.Join(p.lines(), "\n")
}

func lineRect(line, startCol, endCol int) geometry.Rect {
	return geometry.Rect{
		X0: originX + float64(startCol)*charWidth,
		Y0: originY + float64(line)*lineHeight,
		X1: originX + float64(endCol)*charWidth,
		Y1: originY + float64(line+1)*lineHeight,
	}
}

// SearchText finds literal, case-insensitive occurrences of term. A match
// whose words straddle two consecutive lines yields one rectangle per line
// segment, mirroring how real page-text search reports wrapped hits. A
// leading portion of a multi-word term ending the last line (or a trailing
// portion opening the first line) is also reported, so callers can stitch
// matches across page boundaries.
func (p *Page) SearchText(term string) []geometry.Rect {
	term = strings.ToLower(term)
	if term == "" {
		return nil
	}
	lines := p.lines()
	var hits []geometry.Rect
	for i, line := range lines {
		lower := strings.ToLower(line)
		// Whole-term occurrences within the line.
		from := 0
		for {
			idx := strings.Index(lower[from:], term)
			if idx < 0 {
				break
			}
			start := from + idx
			hits = append(hits, lineRect(i, start, start+len(term)))
			from = start + len(term)
		}
		// Occurrences wrapped onto the next line.
		words := strings.Fields(term)
		for k := 1; k < len(words); k++ {
			head := strings.Join(words[:k], " ")
			tail := strings.Join(words[k:], " ")
			if !strings.HasSuffix(lower, head) {
				continue
			}
			if i+1 < len(lines) {
				next := strings.ToLower(lines[i+1])
				if strings.HasPrefix(next, tail) {
					hits = append(hits, lineRect(i, len(lower)-len(head), len(lower)))
					hits = append(hits, lineRect(i+1, 0, len(tail)))
				}
			} else {
				// Head closes the page; the remainder may open the next page.
				hits = append(hits, lineRect(i, len(lower)-len(head), len(lower)))
			}
		}
		// Remainder of a term that started on the previous page.
		if i == 0 {
			for k := 1; k < len(words); k++ {
				tail := strings.Join(words[k:], " ")
				if strings.HasPrefix(lower, tail) && !strings.HasPrefix(lower, term) {
					hits = append(hits, lineRect(0, 0, len(tail)))
				}
			}
		}
	}
	return hits
}

// TextAt returns every word whose cell overlaps the rectangle, in reading
// order. Overlapping a single character of a word pulls in the whole word,
// which is what lets callers detect partial-word matches.
func (p *Page) TextAt(r geometry.Rect) string {
	var parts []string
	for i, line := range p.lines() {
		top := originY + float64(i)*lineHeight
		bottom := top + lineHeight
		if r.Y1 <= top || r.Y0 >= bottom {
			continue
		}
		col := 0
		for _, word := range strings.Split(line, " ") {
			if word != "" {
				x0 := originX + float64(col)*charWidth
				x1 := x0 + float64(len(word))*charWidth
				if r.X0 < x1 && x0 < r.X1 {
					parts = append(parts, word)
				}
			}
			col += len(word) + 1
		}
	}
	return strings.Join(parts, " ")
}

func (p *Page) AddHighlight(r geometry.Rect, info document.AnnotationInfo) (*document.Annotation, error) {
	st := &p.doc.state
	a := document.Annotation{
		ID:   st.NextID,
		Kind: document.KindHighlight,
		Rect: r,
		Info: info,
	}
	st.NextID++
	st.Pages[p.index].Annotations = append(st.Pages[p.index].Annotations, a)
	return &a, nil
}

func (p *Page) Annotations(kind document.AnnotationKind) []document.Annotation {
	var out []document.Annotation
	for _, a := range p.doc.state.Pages[p.index].Annotations {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func (p *Page) RemoveAnnotation(id int) error {
	annots := p.doc.state.Pages[p.index].Annotations
	for i, a := range annots {
		if a.ID == id {
			p.doc.state.Pages[p.index].Annotations = append(annots[:i], annots[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("annotation %d not found on page %d", id, p.index)
}

func (p *Page) AddRedaction(r geometry.Rect) error {
	p.pending = append(p.pending, r)
	return nil
}

// ApplyRedactions blanks out every character cell covered by a pending
// redaction rectangle. No residual text survives inside the fill.
func (p *Page) ApplyRedactions() error {
	lines := p.doc.state.Pages[p.index].Lines
	for _, r := range p.pending {
		for i, line := range lines {
			top := originY + float64(i)*lineHeight
			bottom := top + lineHeight
			if r.Y1 <= top || r.Y0 >= bottom {
				continue
			}
			chars := []byte(line)
			for j := range chars {
				x0 := originX + float64(j)*charWidth
				x1 := x0 + charWidth
				if r.X0 < x1 && x0 < r.X1 {
					chars[j] = ' '
				}
			}
			lines[i] = string(chars)
		}
	}
	p.pending = nil
	return nil
}
