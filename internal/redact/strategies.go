package redact

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/docshield/redactor/internal/analysis"
	apperr "github.com/docshield/redactor/internal/errors"
	"github.com/docshield/redactor/internal/vision"
)

const defaultFaceConfidence = 0.5

// Analyzer runs chunked text analysis. *analysis.Orchestrator satisfies it.
type Analyzer interface {
	AnalyzeText(ctx context.Context, systemPrompt string, chunks []string) (*analysis.TextAnalysis, error)
}

// AnalyzerFactory builds an analyzer bound to one model. Construction fails
// for models outside the supported catalog.
type AnalyzerFactory func(model string) (Analyzer, error)

// Dependencies carries the external collaborators the strategies share.
type Dependencies struct {
	NewAnalyzer AnalyzerFactory
	Vision      vision.Client
	Splitter    *analysis.Splitter
	Logger      *zap.Logger
}

// NewDefaultRegistry wires every built-in strategy into a fresh registry.
func NewDefaultRegistry(deps Dependencies) (*Registry, error) {
	if deps.Splitter == nil {
		deps.Splitter = analysis.NewSplitter()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	registry := NewRegistry()
	register := func(name string, configType reflect.Type, factory Factory) error {
		return registry.Register(name, configType, factory)
	}

	if err := register(StrategyText, reflect.TypeOf(TextConfig{}), func(Config) (Redactor, error) {
		return &TextRedactor{}, nil
	}); err != nil {
		return nil, err
	}
	if err := register(StrategyLLMText, reflect.TypeOf(LLMTextConfig{}), func(Config) (Redactor, error) {
		return &LLMTextRedactor{newAnalyzer: deps.NewAnalyzer, splitter: deps.Splitter, logger: deps.Logger}, nil
	}); err != nil {
		return nil, err
	}
	if err := register(StrategyImage, reflect.TypeOf(ImageConfig{}), func(Config) (Redactor, error) {
		return &ImageRedactor{vision: deps.Vision}, nil
	}); err != nil {
		return nil, err
	}
	if err := register(StrategyImageLLMText, reflect.TypeOf(ImageLLMTextConfig{}), func(Config) (Redactor, error) {
		return &ImageLLMTextRedactor{
			newAnalyzer: deps.NewAnalyzer,
			vision:      deps.Vision,
			splitter:    deps.Splitter,
			logger:      deps.Logger,
		}, nil
	}); err != nil {
		return nil, err
	}
	return registry, nil
}

func configMismatch(want string, got Config) error {
	return apperr.Wrap(
		fmt.Errorf("expected %s, got %T", want, got),
		apperr.ErrConfigMismatch.Code, apperr.ErrConfigMismatch.Message,
	)
}

// TextRedactor surfaces its configured terms directly; the document pipeline
// locates and marks every occurrence.
type TextRedactor struct{}

func (r *TextRedactor) Evaluate(_ context.Context, cfg Config) (Result, error) {
	c, ok := cfg.(TextConfig)
	if !ok {
		return nil, configMismatch("TextConfig", cfg)
	}
	return TextResult{Strings: append([]string(nil), c.Terms...)}, nil
}

// LLMTextRedactor chunks the source text and asks a language model which
// strings match the configured terms.
type LLMTextRedactor struct {
	newAnalyzer AnalyzerFactory
	splitter    *analysis.Splitter
	logger      *zap.Logger
}

func (r *LLMTextRedactor) Evaluate(ctx context.Context, cfg Config) (Result, error) {
	c, ok := cfg.(LLMTextConfig)
	if !ok {
		return nil, configMismatch("LLMTextConfig", cfg)
	}

	analyzer, err := r.newAnalyzer(c.Model)
	if err != nil {
		return nil, err
	}

	chunks := r.splitter.Split(c.Text)
	outcome, err := analyzer.AnalyzeText(ctx, c.FullSystemPrompt(), chunks)
	if err != nil {
		return nil, err
	}
	if outcome.FailedChunks > 0 {
		r.logger.Warn("text analysis completed with degraded coverage",
			zap.String("rule", c.RuleName),
			zap.Int("failed_chunks", outcome.FailedChunks),
		)
	}
	return TextResult{
		Strings: outcome.Strings,
		Usage: Usage{
			InputTokens:  outcome.InputTokens,
			OutputTokens: outcome.OutputTokens,
			TotalCost:    outcome.TotalCost,
		},
	}, nil
}

// ImageRedactor marks detected faces in each configured image.
type ImageRedactor struct {
	vision vision.Client
}

func (r *ImageRedactor) Evaluate(ctx context.Context, cfg Config) (Result, error) {
	c, ok := cfg.(ImageConfig)
	if !ok {
		return nil, configMismatch("ImageConfig", cfg)
	}
	threshold := c.ConfidenceThreshold
	if threshold == 0 {
		threshold = defaultFaceConfidence
	}

	result := ImageResult{}
	for _, placement := range c.Images {
		faces, err := r.vision.DetectFaces(ctx, placement.Data, threshold)
		if err != nil {
			return nil, fmt.Errorf("detect faces in image %s: %w", placement.ImageID, err)
		}
		findings := ImageFindings{
			ImageID: placement.ImageID,
			Width:   placement.Dims.X,
			Height:  placement.Dims.Y,
		}
		for _, face := range faces {
			findings.Boxes = append(findings.Boxes, Box(face))
		}
		result.Images = append(result.Images, findings)
	}
	return result, nil
}

// ImageLLMTextRedactor runs text recognition over each image, has the model
// pick out matching strings, then marks the boxes of every recognized line
// that carries one.
type ImageLLMTextRedactor struct {
	newAnalyzer AnalyzerFactory
	vision      vision.Client
	splitter    *analysis.Splitter
	logger      *zap.Logger
}

func (r *ImageLLMTextRedactor) Evaluate(ctx context.Context, cfg Config) (Result, error) {
	c, ok := cfg.(ImageLLMTextConfig)
	if !ok {
		return nil, configMismatch("ImageLLMTextConfig", cfg)
	}

	analyzer, err := r.newAnalyzer(c.Model)
	if err != nil {
		return nil, err
	}
	systemPrompt := c.FullSystemPrompt()

	result := ImageResult{}
	for _, placement := range c.Images {
		lines, err := r.vision.DetectText(ctx, placement.Data)
		if err != nil {
			return nil, fmt.Errorf("detect text in image %s: %w", placement.ImageID, err)
		}

		findings := ImageFindings{
			ImageID: placement.ImageID,
			Width:   placement.Dims.X,
			Height:  placement.Dims.Y,
		}
		if len(lines) > 0 {
			texts := make([]string, len(lines))
			for i, line := range lines {
				texts[i] = line.Text
			}
			chunks := r.splitter.Split(strings.Join(texts, " "))
			outcome, err := analyzer.AnalyzeText(ctx, systemPrompt, chunks)
			if err != nil {
				return nil, err
			}
			result.Usage.InputTokens += outcome.InputTokens
			result.Usage.OutputTokens += outcome.OutputTokens
			result.Usage.TotalCost += outcome.TotalCost

			for _, line := range lines {
				if lineMatches(line.Text, outcome.Strings) {
					findings.Boxes = append(findings.Boxes, Box(line.Box))
				}
			}
		}
		result.Images = append(result.Images, findings)
	}
	return result, nil
}

// lineMatches reports whether a recognized line is itself a redaction string
// or contains one.
func lineMatches(text string, redactionStrings []string) bool {
	for _, s := range redactionStrings {
		if s == "" {
			continue
		}
		if text == s || strings.Contains(text, s) {
			return true
		}
	}
	return false
}
