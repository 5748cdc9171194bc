// Package vision detects faces and printed text in images through an image
// analysis REST service.
package vision

import "context"

// Box is an axis-aligned region in image-local pixel space.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// TextLine is one recognized line of text and its bounding box.
type TextLine struct {
	Text string
	Box  Box
}

// Client is the detection surface the redaction strategies need.
type Client interface {
	// DetectFaces returns bounding boxes for people whose detection
	// confidence is at or above the threshold.
	DetectFaces(ctx context.Context, image []byte, confidenceThreshold float64) ([]Box, error)
	// DetectText returns every recognized text line with its bounding box.
	DetectText(ctx context.Context, image []byte) ([]TextLine, error)
}
