package redact

// Usage accounts for the analysis tokens and spend behind one result.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64
}

// Result is the outcome of one strategy evaluation. The pipeline switches on
// the concrete type to decide how findings land on the document.
type Result interface {
	isResult()
}

// TextResult carries strings to locate and redact in the document text.
type TextResult struct {
	Strings []string
	Usage   Usage
}

func (TextResult) isResult() {}

// Box is a redaction region in image-local pixel space, as top-left corner
// plus extent.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// ImageFindings is the outcome for one source image.
type ImageFindings struct {
	ImageID string
	Width   float64
	Height  float64
	Boxes   []Box
}

// ImageResult carries per-image redaction boxes.
type ImageResult struct {
	Images []ImageFindings
	Usage  Usage
}

func (ImageResult) isResult() {}
