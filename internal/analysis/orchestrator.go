// Package analysis fans document text out to an external text-analysis
// endpoint under three budgets: tokens per minute, concurrent requests, and a
// monetary spend cap. Per-chunk failures degrade the result instead of
// aborting the batch.
package analysis

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperr "github.com/docshield/redactor/internal/errors"
)

// Options tunes one Orchestrator instance. Rate limits above the model's
// ceiling are clamped down silently; unset limits default to a fifth of the
// ceiling.
type Options struct {
	Model                 string
	MaxTokensPerMinute    int
	MaxRequestsPerMinute  int
	MaxConcurrentRequests int
	MaxCompletionTokens   int
	AcquireTimeout        time.Duration
	MaxAttempts           int
	RetryBaseDelay        time.Duration
	// SpendBudget is the dollar cap for one batch; zero means uncapped.
	SpendBudget float64
	// Estimator overrides the default tokenizer-based estimate.
	Estimator Estimator
	// OnRetry is invoked each time a failed call is about to be retried.
	OnRetry func()
}

// Estimator yields a deterministic upper-bound token count for one request,
// used to reserve token budget before the call goes out.
type Estimator interface {
	EstimateRequest(systemPrompt, userPrompt string) int
}

// TextAnalysis is the merged outcome of a batch run. Strings are deduplicated
// in first-completion order; usage totals are accurate even when the spend
// budget cut the run short.
type TextAnalysis struct {
	Strings      []string
	InputTokens  int
	OutputTokens int
	TotalCost    float64
	FailedChunks int
}

// Orchestrator coordinates concurrent analysis calls for one model under the
// model's declared limits.
type Orchestrator struct {
	completer Completer
	limits    ModelLimits
	estimator Estimator
	tokens    *TokenBudget
	requests  *RequestBudget
	pacer     *rate.Limiter
	logger    *zap.Logger
	opts      Options

	mu           sync.Mutex
	inputTokens  int
	outputTokens int
	totalCost    float64
}

func New(completer Completer, opts Options, logger *zap.Logger) (*Orchestrator, error) {
	limits, err := LookupModel(opts.Model)
	if err != nil {
		return nil, err
	}
	if opts.MaxConcurrentRequests <= 0 {
		opts.MaxConcurrentRequests = 8
	}
	if opts.MaxCompletionTokens <= 0 {
		opts.MaxCompletionTokens = 800
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 500 * time.Millisecond
	}
	opts.MaxTokensPerMinute = clampLimit(opts.MaxTokensPerMinute, limits.MaxTokensPerMinute)
	opts.MaxRequestsPerMinute = clampLimit(opts.MaxRequestsPerMinute, limits.MaxRequestsPerMinute)

	estimator := opts.Estimator
	if estimator == nil {
		var err error
		estimator, err = NewTokenEstimator(limits.Encoding, opts.MaxCompletionTokens, 1)
		if err != nil {
			return nil, err
		}
	}

	rps := rate.Limit(float64(opts.MaxRequestsPerMinute) / 60.0)
	return &Orchestrator{
		completer: completer,
		limits:    limits,
		estimator: estimator,
		tokens:    NewTokenBudget(opts.MaxTokensPerMinute, opts.AcquireTimeout),
		requests:  NewRequestBudget(opts.MaxConcurrentRequests, opts.AcquireTimeout),
		pacer:     rate.NewLimiter(rps, 1),
		logger:    logger,
		opts:      opts,
	}, nil
}

// AnalyzeText submits every chunk concurrently, bounded by the worker pool,
// and merges redaction strings as chunks complete. A spend-budget breach
// stops further scheduling; chunks already in flight finish and their usage
// is counted.
func (o *Orchestrator) AnalyzeText(ctx context.Context, systemPrompt string, chunks []string) (*TextAnalysis, error) {
	type chunkOutcome struct {
		strings []string
		err     error
	}

	workers := o.opts.MaxConcurrentRequests
	if workers > len(chunks) {
		workers = len(chunks)
	}

	pending := make(chan string)
	outcomes := make(chan chunkOutcome, len(chunks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range pending {
				strings, err := o.analyzeChunk(ctx, systemPrompt, chunk)
				outcomes <- chunkOutcome{strings: strings, err: err}
			}
		}()
	}

	go func() {
		defer close(pending)
		for _, chunk := range chunks {
			if o.budgetExceeded() {
				o.logger.Warn("spend budget exceeded, halting further analysis",
					zap.Float64("total_cost", o.TotalCost()),
					zap.Float64("budget", o.opts.SpendBudget),
				)
				return
			}
			select {
			case pending <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	result := &TextAnalysis{}
	seen := make(map[string]struct{})
	for outcome := range outcomes {
		if outcome.err != nil {
			result.FailedChunks++
			o.logger.Warn("analysis chunk yielded no redaction strings",
				zap.String("code", apperr.GetCode(outcome.err)),
				zap.Error(outcome.err),
			)
			continue
		}
		for _, s := range outcome.strings {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			result.Strings = append(result.Strings, s)
		}
	}

	o.mu.Lock()
	result.InputTokens = o.inputTokens
	result.OutputTokens = o.outputTokens
	result.TotalCost = o.totalCost
	o.mu.Unlock()
	return result, nil
}

// analyzeChunk runs the full per-chunk procedure: reserve a request slot and
// token budget, call with retry, account usage, then pace to the request
// rate. Both reservations are released on every exit path.
func (o *Orchestrator) analyzeChunk(ctx context.Context, systemPrompt, chunk string) ([]string, error) {
	estimated := o.estimator.EstimateRequest(systemPrompt, chunk)

	if err := o.requests.Acquire(ctx); err != nil {
		return nil, err
	}
	defer o.requests.Release()

	if err := o.tokens.Acquire(estimated); err != nil {
		return nil, err
	}
	defer o.tokens.Release(estimated)

	completion, err := o.completeWithRetry(ctx, systemPrompt, chunk)
	if err != nil {
		return nil, err
	}

	o.recordUsage(completion.PromptTokens, completion.CompletionTokens)

	// Pace to the requests-per-minute limit before handing the slot back.
	if err := o.pacer.Wait(ctx); err != nil {
		return completion.Strings, nil
	}
	return completion.Strings, nil
}

// completeWithRetry retries the external call with exponential backoff and
// jitter. Exhausting all attempts is absorbed by the caller: the chunk simply
// contributes nothing.
func (o *Orchestrator) completeWithRetry(ctx context.Context, systemPrompt, chunk string) (*Completion, error) {
	var lastErr error
	for attempt := 0; attempt < o.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			if o.opts.OnRetry != nil {
				o.opts.OnRetry()
			}
			delay := o.opts.RetryBaseDelay << uint(attempt-1)
			delay += time.Duration(rand.Int63n(int64(o.opts.RetryBaseDelay)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, apperr.Wrap(ctx.Err(), apperr.ErrAnalysisCallFailed.Code, apperr.ErrAnalysisCallFailed.Message)
			}
		}
		completion, err := o.completer.Complete(ctx, systemPrompt, chunk)
		if err == nil {
			return completion, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		o.logger.Debug("analysis call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", o.opts.MaxAttempts),
			zap.Error(err),
		)
	}
	return nil, apperr.Wrap(lastErr, apperr.ErrAnalysisCallFailed.Code, apperr.ErrAnalysisCallFailed.Message)
}

func (o *Orchestrator) recordUsage(promptTokens, completionTokens int) {
	cost := float64(promptTokens)*o.limits.InputTokenRate +
		float64(completionTokens)*o.limits.OutputTokenRate
	o.mu.Lock()
	o.inputTokens += promptTokens
	o.outputTokens += completionTokens
	o.totalCost += cost
	o.mu.Unlock()
}

func (o *Orchestrator) budgetExceeded() bool {
	if o.opts.SpendBudget <= 0 {
		return false
	}
	return o.TotalCost() >= o.opts.SpendBudget
}

// TotalCost returns the dollars accumulated so far on this instance.
func (o *Orchestrator) TotalCost() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.totalCost
}

// TokenBudgetAvailable exposes the free token count, used to verify the
// budget drains back to its initial value after a batch.
func (o *Orchestrator) TokenBudgetAvailable() int {
	return o.tokens.Available()
}
