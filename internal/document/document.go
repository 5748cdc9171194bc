// Package document defines the primitives the redaction engine needs from a
// paginated document library. The engine treats the underlying format as a
// black box: anything that can search literal text, read text at a rectangle,
// and manage annotations can be redacted.
package document

import "github.com/docshield/redactor/internal/geometry"

// AnnotationKind distinguishes reviewable marks from destructive ones.
type AnnotationKind int

const (
	// KindHighlight is a provisional, reviewable redaction candidate.
	KindHighlight AnnotationKind = iota
	// KindRedact is a pending permanent content removal.
	KindRedact
)

// AnnotationInfo is the metadata payload persisted with an annotation. The
// displayed geometry of a committed highlight can shift slightly across a
// save/reopen cycle, so the authoritative rectangle travels in Subject.
type AnnotationInfo struct {
	Content string `json:"content"`
	Subject string `json:"subject"`
}

// Annotation is a mark attached to a page. ID is stable for the lifetime of
// the open document and is how marks are removed.
type Annotation struct {
	ID   int            `json:"id"`
	Kind AnnotationKind `json:"kind"`
	Rect geometry.Rect  `json:"rect"`
	Info AnnotationInfo `json:"info"`
}

// ImagePlacement records where and how one instance of an embedded image
// appears on a page. Placement maps the unit square onto the page.
type ImagePlacement struct {
	ImageID   string
	PageIndex int
	Dims      geometry.Point
	Placement geometry.Matrix
	Format    string
	Data      []byte
}

// Page is one page of an open document.
type Page interface {
	Number() int

	// Text returns the full text content of the page.
	Text() string

	// SearchText returns the rectangles of literal occurrences of term, in
	// reading order. A single occurrence split across a line break yields one
	// rectangle per line segment.
	SearchText(term string) []geometry.Rect

	// TextAt returns the text intersecting the given rectangle.
	TextAt(r geometry.Rect) string

	// AddHighlight places a provisional highlight mark with metadata.
	AddHighlight(r geometry.Rect, info AnnotationInfo) (*Annotation, error)

	// Annotations lists the page's annotations of the given kind.
	Annotations(kind AnnotationKind) []Annotation

	// RemoveAnnotation deletes the annotation with the given ID.
	RemoveAnnotation(id int) error

	// AddRedaction marks a rectangle for permanent removal with an opaque
	// fill and no residual text. Nothing is removed until ApplyRedactions.
	AddRedaction(r geometry.Rect) error

	// ApplyRedactions burns in all pending redaction marks on this page.
	ApplyRedactions() error
}

// Document is an open, paginated document.
type Document interface {
	PageCount() int
	Page(index int) (Page, error)

	// Images enumerates every embedded image instance in the document.
	Images() []ImagePlacement

	// Save serializes the document, annotations included, back to bytes.
	Save() ([]byte, error)
}

// Opener turns raw bytes into an open Document.
type Opener interface {
	Open(data []byte) (Document, error)
}
