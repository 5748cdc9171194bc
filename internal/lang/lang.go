// Package lang gates document processing on language: the text analysis
// prompts and matching rules assume English content, so anything else is
// skipped rather than half-processed.
package lang

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

const (
	defaultThreshold = 0.90
	defaultMargin    = 0.20
)

// Detector decides whether text is confidently English.
type Detector struct {
	detector  lingua.LanguageDetector
	threshold float64
	margin    float64
}

// NewDetector builds a detector over the full language set. Threshold is the
// minimum English confidence; margin is how far English must sit above the
// runner-up language.
func NewDetector() *Detector {
	return &Detector{
		detector:  lingua.NewLanguageDetectorBuilder().FromAllLanguages().Build(),
		threshold: defaultThreshold,
		margin:    defaultMargin,
	}
}

// IsEnglish reports whether the text is English with high confidence.
// Empty or whitespace-only text is not English.
func (d *Detector) IsEnglish(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	confidences := d.detector.ComputeLanguageConfidenceValues(text)
	if len(confidences) == 0 {
		return false
	}

	var english, runnerUp float64
	for _, c := range confidences {
		if c.Language() == lingua.English {
			english = c.Value()
		} else if c.Value() > runnerUp {
			runnerUp = c.Value()
		}
	}
	return english >= d.threshold && english-runnerUp >= d.margin
}
