package pdfproc

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/docshield/redactor/internal/document"
	apperr "github.com/docshield/redactor/internal/errors"
	"github.com/docshield/redactor/internal/geometry"
	"github.com/docshield/redactor/internal/metrics"
	"github.com/docshield/redactor/internal/redact"
)

const candidateContent = "REDACTION CANDIDATE"

// LanguageGate decides whether document text is in a language the redaction
// rules understand.
type LanguageGate interface {
	IsEnglish(text string) bool
}

// PDFProcessor drives the full redact/apply lifecycle for PDF documents. It
// binds document text and images into the redaction configs, dispatches the
// configured strategies, then lands their findings on the document as
// provisional highlights.
type PDFProcessor struct {
	opener   document.Opener
	registry *redact.Registry
	gate     LanguageGate
	logger   *zap.Logger
	workers  int
	metrics  *metrics.Metrics
}

type PDFOption func(*PDFProcessor)

// WithWorkers bounds the page-examination worker pool.
func WithWorkers(n int) PDFOption {
	return func(p *PDFProcessor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMetrics records candidate and burn-in counts on the given instance.
func WithMetrics(m *metrics.Metrics) PDFOption {
	return func(p *PDFProcessor) {
		p.metrics = m
	}
}

func NewPDFProcessor(opener document.Opener, registry *redact.Registry, gate LanguageGate, logger *zap.Logger, opts ...PDFOption) *PDFProcessor {
	p := &PDFProcessor{
		opener:   opener,
		registry: registry,
		gate:     gate,
		logger:   logger,
		workers:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PDFProcessor) Name() string { return "pdf" }

// candidate is one literal-search hit awaiting validation.
type candidate struct {
	rect geometry.Rect
	term string
}

// match is a validated redaction instance. The page index can differ from the
// candidate's page when a term stitches across a page boundary.
type match struct {
	pageIndex int
	rect      geometry.Rect
	term      string
}

// Redact evaluates every config against the document and places a provisional
// highlight for each accepted finding.
func (p *PDFProcessor) Redact(ctx context.Context, data []byte, configs []redact.Config) ([]byte, redact.Usage, error) {
	var usage redact.Usage

	doc, err := p.opener.Open(data)
	if err != nil {
		return nil, usage, fmt.Errorf("open document: %w", err)
	}

	text, err := extractText(doc)
	if err != nil {
		return nil, usage, err
	}
	if !p.gate.IsEnglish(text) {
		return nil, usage, apperr.Wrap(
			fmt.Errorf("document text is not confidently English"),
			apperr.ErrNonEnglishContent.Code, apperr.ErrNonEnglishContent.Message,
		)
	}

	images := doc.Images()
	bound := bindConfigs(configs, text, images)

	var terms []string
	var imageResults []redact.ImageResult
	for _, cfg := range bound {
		redactor, err := p.registry.Build(cfg)
		if err != nil {
			return nil, usage, err
		}
		result, err := redactor.Evaluate(ctx, cfg)
		if err != nil {
			return nil, usage, err
		}
		switch r := result.(type) {
		case redact.TextResult:
			terms = append(terms, r.Strings...)
			usage = addUsage(usage, r.Usage)
		case redact.ImageResult:
			imageResults = append(imageResults, r)
			usage = addUsage(usage, r.Usage)
		default:
			return nil, usage, apperr.Wrap(
				fmt.Errorf("rule %q produced result type %T with no application mechanism", cfg.Name(), result),
				apperr.ErrUnprocessedResult.Code, apperr.ErrUnprocessedResult.Message,
			)
		}
	}

	if err := p.placeTextCandidates(ctx, doc, data, terms); err != nil {
		return nil, usage, err
	}
	if err := p.placeImageCandidates(doc, images, imageResults); err != nil {
		return nil, usage, err
	}
	out, err := doc.Save()
	return out, usage, err
}

func addUsage(a, b redact.Usage) redact.Usage {
	a.InputTokens += b.InputTokens
	a.OutputTokens += b.OutputTokens
	a.TotalCost += b.TotalCost
	return a
}

// bindConfigs attaches the document's text and image placements to the
// configs that consume them. Configs are value structs, so binding yields
// fresh copies.
func bindConfigs(configs []redact.Config, text string, images []document.ImagePlacement) []redact.Config {
	bound := make([]redact.Config, 0, len(configs))
	for _, cfg := range configs {
		switch c := cfg.(type) {
		case redact.LLMTextConfig:
			c.Text = text
			bound = append(bound, c)
		case redact.ImageConfig:
			c.Images = images
			bound = append(bound, c)
		case redact.ImageLLMTextConfig:
			c.Images = images
			bound = append(bound, c)
		default:
			bound = append(bound, cfg)
		}
	}
	return bound
}

func extractText(doc document.Document) (string, error) {
	var pages []string
	for i := 0; i < doc.PageCount(); i++ {
		page, err := doc.Page(i)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		pages = append(pages, page.Text())
	}
	return strings.Join(pages, "\n"), nil
}

// placeTextCandidates searches every page for every term, validates the hits
// in parallel, then annotates accepted matches in page order.
func (p *PDFProcessor) placeTextCandidates(ctx context.Context, doc document.Document, data []byte, terms []string) error {
	if len(terms) == 0 {
		return nil
	}

	byPage, err := p.collectCandidates(doc, terms)
	if err != nil {
		return err
	}
	total := 0
	for _, candidates := range byPage {
		total += len(candidates)
	}
	p.logger.Info("collected redaction candidates",
		zap.Int("pages", len(byPage)),
		zap.Int("candidates", total),
	)

	matchesByPage, err := p.examinePages(ctx, data, byPage)
	if err != nil {
		return err
	}

	applied := 0
	for pageIndex, matches := range matchesByPage {
		for _, m := range matches {
			page, err := doc.Page(m.pageIndex)
			if err != nil {
				return fmt.Errorf("reopen page %d: %w", m.pageIndex, err)
			}
			if err := addProvisional(page, m.rect); err != nil {
				p.logger.Warn("failed to place highlight",
					zap.Int("page", m.pageIndex),
					zap.String("term", m.term),
					zap.Error(err),
				)
				continue
			}
			applied++
		}
		p.logger.Debug("examined page", zap.Int("page", pageIndex), zap.Int("accepted", len(matches)))
	}
	p.logger.Info("placed provisional text redactions", zap.Int("highlights", applied))
	if p.metrics != nil {
		p.metrics.RecordCandidates(total, applied)
	}
	return nil
}

// collectCandidates runs the literal search on every page. Candidate order is
// deterministic: pages ascending, terms in config order, hits in reading
// order. The stitching lookahead depends on this.
func (p *PDFProcessor) collectCandidates(doc document.Document, terms []string) ([][]candidate, error) {
	byPage := make([][]candidate, doc.PageCount())
	for i := 0; i < doc.PageCount(); i++ {
		page, err := doc.Page(i)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		for _, term := range terms {
			for _, rect := range page.SearchText(term) {
				byPage[i] = append(byPage[i], candidate{rect: rect, term: term})
			}
		}
	}
	return byPage, nil
}

// examinePages validates each page's candidates on a bounded worker pool.
// Every worker opens its own view of the document so page reads never share
// state. Per-page failures are logged and that page contributes no matches.
func (p *PDFProcessor) examinePages(ctx context.Context, data []byte, byPage [][]candidate) ([][]match, error) {
	matchesByPage := make([][]match, len(byPage))

	workers := p.workers
	if workers > len(byPage) {
		workers = len(byPage)
	}
	if workers < 1 {
		workers = 1
	}

	pageIndices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pageIndex := range pageIndices {
				matches, err := p.examinePage(data, byPage, pageIndex)
				if err != nil {
					p.logger.Warn("page examination failed",
						zap.Int("page", pageIndex),
						zap.Error(err),
					)
					continue
				}
				matchesByPage[pageIndex] = matches
			}
		}()
	}

	for i := range byPage {
		select {
		case pageIndices <- i:
		case <-ctx.Done():
			close(pageIndices)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(pageIndices)
	wg.Wait()
	return matchesByPage, nil
}

// examinePage validates every candidate on one page, accepting full matches
// and line-break continuations.
func (p *PDFProcessor) examinePage(data []byte, byPage [][]candidate, pageIndex int) ([]match, error) {
	doc, err := p.opener.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open document for page %d: %w", pageIndex, err)
	}
	page, err := doc.Page(pageIndex)
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", pageIndex, err)
	}

	var matches []match
	candidates := byPage[pageIndex]
	for i, cand := range candidates {
		full, textAtRect := isFullMatch(page, cand.term, cand.rect)
		if full {
			matches = append(matches, match{pageIndex: pageIndex, rect: cand.rect, term: cand.term})
			continue
		}
		if !strings.Contains(cand.term, " ") {
			p.logger.Debug("rejected partial match",
				zap.String("term", cand.term),
				zap.String("found", textAtRect),
				zap.Int("page", pageIndex),
			)
			continue
		}

		nextPageIndex, next, ok := nextCandidate(byPage, pageIndex, i)
		if !ok || next.term != cand.term {
			continue
		}
		nextPage, err := p.pageAt(doc, data, pageIndex, nextPageIndex)
		if err != nil {
			return nil, err
		}
		if stitchesAcrossBreak(cand.term, textAtRect, nextPage, next.rect) {
			matches = append(matches,
				match{pageIndex: pageIndex, rect: cand.rect, term: cand.term},
				match{pageIndex: nextPageIndex, rect: next.rect, term: cand.term},
			)
		}
	}
	return matches, nil
}

// pageAt returns the page for the stitching lookahead, reopening the document
// when the continuation sits on the following page.
func (p *PDFProcessor) pageAt(doc document.Document, data []byte, currentIndex, wantIndex int) (document.Page, error) {
	if wantIndex == currentIndex {
		return doc.Page(currentIndex)
	}
	nextDoc, err := p.opener.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open document for page %d: %w", wantIndex, err)
	}
	return nextDoc.Page(wantIndex)
}

// nextCandidate finds the candidate following position i on the given page:
// the next hit on the same page, or the first hit of the next page.
func nextCandidate(byPage [][]candidate, pageIndex, i int) (int, candidate, bool) {
	candidates := byPage[pageIndex]
	if i+1 < len(candidates) {
		return pageIndex, candidates[i+1], true
	}
	if pageIndex+1 < len(byPage) && len(byPage[pageIndex+1]) > 0 {
		return pageIndex + 1, byPage[pageIndex+1][0], true
	}
	return 0, candidate{}, false
}

// placeImageCandidates maps each finding's boxes from image-local pixel space
// into page space through the image's placement matrix and annotates them.
func (p *PDFProcessor) placeImageCandidates(doc document.Document, placements []document.ImagePlacement, results []redact.ImageResult) error {
	placementsByID := make(map[string][]document.ImagePlacement)
	for _, placement := range placements {
		placementsByID[placement.ImageID] = append(placementsByID[placement.ImageID], placement)
	}

	for _, result := range results {
		for _, findings := range result.Images {
			for _, placement := range placementsByID[findings.ImageID] {
				page, err := doc.Page(placement.PageIndex)
				if err != nil {
					return fmt.Errorf("read page %d: %w", placement.PageIndex, err)
				}
				for _, box := range findings.Boxes {
					local := geometry.NewRect(box.X, box.Y, box.Width, box.Height)
					global := geometry.ToGlobalSpace(local, placement.Dims, placement.Placement)
					if err := addProvisional(page, global); err != nil {
						p.logger.Warn("failed to place image highlight",
							zap.String("image", findings.ImageID),
							zap.Int("page", placement.PageIndex),
							zap.Error(err),
						)
					}
				}
			}
		}
	}
	return nil
}

// addProvisional places a highlight whose subject carries the authoritative
// rectangle. The displayed geometry of a committed highlight can shift, so
// apply recovers the rectangle from the subject instead.
func addProvisional(page document.Page, rect geometry.Rect) error {
	subject, err := json.Marshal([]float64{rect.X0, rect.Y0, rect.X1, rect.Y1})
	if err != nil {
		return err
	}
	_, err = page.AddHighlight(rect, document.AnnotationInfo{
		Content: candidateContent,
		Subject: string(subject),
	})
	return err
}

// Apply converts every provisional highlight into a permanent removal:
// recover the rectangle, mark it for redaction with an opaque fill, drop the
// highlight, then burn in the page. A document without provisional
// highlights passes through unchanged.
func (p *PDFProcessor) Apply(_ context.Context, data []byte) ([]byte, error) {
	doc, err := p.opener.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}

	burned := 0
	for i := 0; i < doc.PageCount(); i++ {
		page, err := doc.Page(i)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		for _, annotation := range page.Annotations(document.KindHighlight) {
			rect := recoverRect(annotation)
			if err := page.AddRedaction(rect); err != nil {
				return nil, fmt.Errorf("mark redaction on page %d: %w", i, err)
			}
			if err := page.RemoveAnnotation(annotation.ID); err != nil {
				return nil, fmt.Errorf("remove annotation %d on page %d: %w", annotation.ID, i, err)
			}
			burned++
		}
		if err := page.ApplyRedactions(); err != nil {
			return nil, fmt.Errorf("apply redactions on page %d: %w", i, err)
		}
	}
	if p.metrics != nil {
		p.metrics.RecordRedactionsApplied(burned)
	}
	return doc.Save()
}

// recoverRect reads the authoritative rectangle from the annotation subject,
// falling back to the displayed rectangle when the subject is missing or
// unparsable.
func recoverRect(annotation document.Annotation) geometry.Rect {
	if annotation.Info.Subject == "" {
		return annotation.Rect
	}
	var coords []float64
	if err := json.Unmarshal([]byte(annotation.Info.Subject), &coords); err != nil || len(coords) != 4 {
		return annotation.Rect
	}
	return geometry.Rect{X0: coords[0], Y0: coords[1], X1: coords[2], Y1: coords[3]}
}
