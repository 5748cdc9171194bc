// Package redact dispatches named redaction strategies over tagged-union
// configs. Each strategy declares the exact config struct it accepts; a
// registry maps strategy names to implementations and rejects mismatched
// configs before any work starts.
package redact

import (
	"fmt"
	"strings"

	"github.com/docshield/redactor/internal/document"
)

// Strategy names understood by the default registry.
const (
	StrategyText         = "TextRedaction"
	StrategyLLMText      = "LLMTextRedaction"
	StrategyImage        = "ImageRedaction"
	StrategyImageLLMText = "ImageLLMTextRedaction"
)

// Config is one redaction rule as loaded from the rules file. Name identifies
// the rule, Strategy selects the implementation that consumes it. Configs are
// value structs and are not mutated after construction.
type Config interface {
	Name() string
	Strategy() string
}

// TextConfig redacts literal terms found in the document text.
type TextConfig struct {
	RuleName string
	Terms    []string
}

func (c TextConfig) Name() string     { return c.RuleName }
func (c TextConfig) Strategy() string { return StrategyText }

// LLMTextConfig has a language model identify the strings to redact. The
// fields shared with TextConfig are carried by value, not by embedding, so
// the exact-type check in the registry stays meaningful.
type LLMTextConfig struct {
	RuleName     string
	Text         string
	Model        string
	SystemPrompt string
	Terms        []string
	Constraints  []string
}

func (c LLMTextConfig) Name() string     { return c.RuleName }
func (c LLMTextConfig) Strategy() string { return StrategyLLMText }

// ImageConfig redacts detected faces in the given images.
type ImageConfig struct {
	RuleName            string
	Images              []document.ImagePlacement
	ConfidenceThreshold float64
}

func (c ImageConfig) Name() string     { return c.RuleName }
func (c ImageConfig) Strategy() string { return StrategyImage }

// ImageLLMTextConfig redacts recognized text inside images when a language
// model flags it.
type ImageLLMTextConfig struct {
	RuleName     string
	Images       []document.ImagePlacement
	Model        string
	SystemPrompt string
	Terms        []string
	Constraints  []string
}

func (c ImageLLMTextConfig) Name() string     { return c.RuleName }
func (c ImageLLMTextConfig) Strategy() string { return StrategyImageLLMText }

// outputFormat pins the model's reply to the JSON shape the analysis client
// parses.
const outputFormat = "<OutputFormat>\nReturn a JSON object with a " +
	"\"redaction_strings\" array containing every matching string from the " +
	"text. If there are no matches, return an empty array.\n</OutputFormat>"

// buildSystemPrompt assembles the full instruction block sent with every
// chunk: role, terms to look for, output format, then optional constraints.
func buildSystemPrompt(systemPrompt string, terms, constraints []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<SystemRole>\n%s\n</SystemRole>\n\n", systemPrompt)
	b.WriteString("<Terms>\n")
	for _, term := range terms {
		fmt.Fprintf(&b, "- %s\n", term)
	}
	b.WriteString("</Terms>\n\n")
	b.WriteString(outputFormat)
	if len(constraints) > 0 {
		b.WriteString("\n\n<Constraints>\n")
		for _, constraint := range constraints {
			fmt.Fprintf(&b, "- %s\n", constraint)
		}
		b.WriteString("</Constraints>")
	}
	return b.String()
}

// FullSystemPrompt returns the full per-request instruction block.
func (c LLMTextConfig) FullSystemPrompt() string {
	return buildSystemPrompt(c.SystemPrompt, c.Terms, c.Constraints)
}

func (c ImageLLMTextConfig) FullSystemPrompt() string {
	return buildSystemPrompt(c.SystemPrompt, c.Terms, c.Constraints)
}
