// Package pdfproc turns redaction findings into document annotations. The
// redact phase places reviewable highlight candidates; the apply phase burns
// reviewed candidates into permanent content removal.
package pdfproc

import (
	"context"
	"fmt"
	"sync"

	apperr "github.com/docshield/redactor/internal/errors"
	"github.com/docshield/redactor/internal/redact"
)

// Processor redacts one document format. Name corresponds to the subtype of
// the format's mime type.
type Processor interface {
	Name() string

	// Redact places provisional redaction candidates and returns the updated
	// document bytes along with the model usage the run incurred.
	Redact(ctx context.Context, data []byte, configs []redact.Config) ([]byte, redact.Usage, error)

	// Apply converts provisional candidates into permanent removals.
	Apply(ctx context.Context, data []byte) ([]byte, error)
}

// ProcessorRegistry maps format names to processors.
type ProcessorRegistry struct {
	mu         sync.RWMutex
	processors map[string]Processor
}

func NewProcessorRegistry() *ProcessorRegistry {
	return &ProcessorRegistry{processors: make(map[string]Processor)}
}

func (r *ProcessorRegistry) Register(p Processor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.processors[p.Name()]; exists {
		return apperr.Wrap(
			fmt.Errorf("processor %q is already registered", p.Name()),
			apperr.ErrDuplicateProcessorName.Code, apperr.ErrDuplicateProcessorName.Message,
		)
	}
	r.processors[p.Name()] = p
	return nil
}

func (r *ProcessorRegistry) Resolve(name string) (Processor, error) {
	r.mu.RLock()
	p, ok := r.processors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.Wrap(
			fmt.Errorf("no processor registered for format %q", name),
			apperr.ErrProcessorNotFound.Code, apperr.ErrProcessorNotFound.Message,
		)
	}
	return p, nil
}
