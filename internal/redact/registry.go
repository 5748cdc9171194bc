package redact

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	apperr "github.com/docshield/redactor/internal/errors"
)

// Redactor is one redaction strategy. Evaluate consumes the config the
// strategy was built for and produces its findings.
type Redactor interface {
	Evaluate(ctx context.Context, cfg Config) (Result, error)
}

// Factory builds a strategy instance for one validated config.
type Factory func(cfg Config) (Redactor, error)

type registration struct {
	configType reflect.Type
	factory    Factory
}

// Registry maps strategy names to implementations and the exact config
// struct each one accepts.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register declares a strategy under a unique name. configType is the
// concrete config struct the factory accepts, typically
// reflect.TypeOf(SomeConfig{}).
func (r *Registry) Register(name string, configType reflect.Type, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return apperr.Wrap(
			fmt.Errorf("strategy %q is already registered", name),
			apperr.ErrDuplicateStrategyName.Code, apperr.ErrDuplicateStrategyName.Message,
		)
	}
	r.entries[name] = registration{configType: configType, factory: factory}
	return nil
}

// Resolve looks up a strategy by name.
func (r *Registry) Resolve(name string) (Factory, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.Wrap(
			fmt.Errorf("no strategy registered under %q", name),
			apperr.ErrStrategyNotFound.Code, apperr.ErrStrategyNotFound.Message,
		)
	}
	return entry.factory, nil
}

// Build resolves the strategy named by the config's discriminant and
// constructs it. The config's runtime type must exactly equal the registered
// type; a struct that merely embeds or resembles the expected one is
// rejected.
func (r *Registry) Build(cfg Config) (Redactor, error) {
	r.mu.RLock()
	entry, ok := r.entries[cfg.Strategy()]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.Wrap(
			fmt.Errorf("no strategy registered under %q", cfg.Strategy()),
			apperr.ErrStrategyNotFound.Code, apperr.ErrStrategyNotFound.Message,
		)
	}
	if got := reflect.TypeOf(cfg); got != entry.configType {
		return nil, apperr.Wrap(
			fmt.Errorf("strategy %q expects config type %s, got %s",
				cfg.Strategy(), entry.configType, got),
			apperr.ErrConfigMismatch.Code, apperr.ErrConfigMismatch.Message,
		)
	}
	return entry.factory(cfg)
}
