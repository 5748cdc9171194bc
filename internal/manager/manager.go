// Package manager drives whole redaction jobs: read the source document,
// run the requested stage, keep an artifact trail, write the result back,
// and tell the caller how it went.
package manager

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperr "github.com/docshield/redactor/internal/errors"
	"github.com/docshield/redactor/internal/metrics"
	"github.com/docshield/redactor/internal/notify"
	"github.com/docshield/redactor/internal/pdfproc"
	"github.com/docshield/redactor/internal/redact"
	"github.com/docshield/redactor/internal/storage"
)

const (
	StageAnalyse = "ANALYSE"
	StageRedact  = "REDACT"

	StatusSuccess = "SUCCESS"
	StatusFail    = "FAIL"

	defaultConfigName = "default"
	maxJobIDLength    = 40
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	// Characters that cannot appear in storage folder names.
	illegalChars = regexp.MustCompile(`["\\:|<>*?]`)
)

// StorageDetails locates a document for reading or writing. The "key"
// property names the document within the store.
type StorageDetails struct {
	StorageKind string            `json:"storageKind"`
	Properties  map[string]string `json:"properties"`
}

// Request is the JSON contract for both stages. SkipRedaction and
// TryApplyProvisionalRedactions only affect the analyse stage.
type Request struct {
	OverrideID                    string          `json:"overrideId,omitempty"`
	FileKind                      string          `json:"fileKind"`
	ConfigName                    string          `json:"configName,omitempty"`
	SkipRedaction                 bool            `json:"skipRedaction,omitempty"`
	TryApplyProvisionalRedactions bool            `json:"tryApplyProvisionalRedactions,omitempty"`
	ReadDetails                   *StorageDetails `json:"readDetails"`
	WriteDetails                  *StorageDetails `json:"writeDetails"`
	Metadata                      map[string]any  `json:"metadata,omitempty"`
}

// Result reports the outcome of one job. Non-fatal problems (a failed
// completion message, an unwritable log) are folded into Message without
// flipping Status.
type Result struct {
	ID         string   `json:"id"`
	Stage      string   `json:"stage"`
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	Parameters *Request `json:"parameters"`
}

// RuleSource loads a named set of redaction rules.
type RuleSource interface {
	Load(name string) ([]redact.Config, error)
}

type Manager struct {
	processors *pdfproc.ProcessorRegistry
	rules      RuleSource
	stores     *storage.Factory
	artifacts  storage.Store
	notifier   notify.Notifier
	jobs       *storage.JobStore
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

type Option func(*Manager)

// WithJobStore persists a record per job.
func WithJobStore(jobs *storage.JobStore) Option {
	return func(m *Manager) { m.jobs = jobs }
}

// WithMetrics records job outcomes and model spend.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

func New(processors *pdfproc.ProcessorRegistry, rules RuleSource, stores *storage.Factory, artifacts storage.Store, notifier notify.Notifier, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		processors: processors,
		rules:      rules,
		stores:     stores,
		artifacts:  artifacts,
		notifier:   notifier,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// jobRun accumulates per-job state while a stage executes.
type jobRun struct {
	id     string
	folder string
	usage  redact.Usage
	errs   []string
}

// TryRedact runs the analyse stage and never returns an error: failures are
// reported through the result and the job's exception log.
func (m *Manager) TryRedact(ctx context.Context, req *Request) *Result {
	return m.run(ctx, StageAnalyse, req, m.redact)
}

// TryApply runs the burn-in stage with the same reporting contract as
// TryRedact.
func (m *Manager) TryApply(ctx context.Context, req *Request) *Result {
	return m.run(ctx, StageRedact, req, m.apply)
}

func (m *Manager) run(ctx context.Context, stage string, req *Request, process func(context.Context, *jobRun, *Request) error) *Result {
	id, folder, err := jobIdentity(req.OverrideID)
	if err != nil {
		m.logger.Error("rejected job id", zap.String("id", req.OverrideID), zap.Error(err))
		return &Result{
			ID:         req.OverrideID,
			Stage:      stage,
			Status:     StatusFail,
			Message:    fmt.Sprintf("Redaction process failed with the following error: %v", err),
			Parameters: req,
		}
	}

	job := &jobRun{id: id, folder: folder}
	m.logger.Info("starting job",
		zap.String("job", id),
		zap.String("stage", stage),
		zap.String("folder", folder),
	)
	if m.metrics != nil {
		m.metrics.JobStarted()
		defer m.metrics.JobFinished()
	}

	status := StatusSuccess
	message := "Redaction process complete"
	if err := validateRequest(req); err == nil {
		err = process(ctx, job, req)
		if err != nil {
			m.logError(job, err)
			status = StatusFail
			message = fmt.Sprintf("Redaction process failed with the following error: %v", err)
		}
	} else {
		m.logError(job, err)
		status = StatusFail
		message = fmt.Sprintf("Redaction process failed with the following error: %v", err)
	}

	var nonFatal []string

	notifyErr := m.notifier.Notify(ctx, notify.Message{
		ID:         id,
		Stage:      stage,
		Status:     status,
		Message:    message,
		Parameters: req,
	})
	if notifyErr != nil {
		m.logError(job, notifyErr)
		nonFatal = append(nonFatal, fmt.Sprintf("Failed to submit a completion message with the following error: %v", notifyErr))
	}

	if err := m.saveExceptionLog(ctx, job); err != nil {
		nonFatal = append(nonFatal, fmt.Sprintf("Failed to write an exception log with the following error: %v", err))
	}

	if len(nonFatal) > 0 {
		if status == StatusFail {
			message = message + "\nAdditionally, the following non-fatal errors occurred:\n" + strings.Join(nonFatal, "\n")
		} else {
			message = "Redaction process completed successfully, but had some non-fatal errors:\n" + strings.Join(nonFatal, "\n")
		}
	}

	m.record(job, stage, status, message)

	return &Result{
		ID:         id,
		Stage:      stage,
		Status:     status,
		Message:    message,
		Parameters: req,
	}
}

// redact reads the raw document, places provisional candidates, and sends
// the proposal back to the caller. The raw input and the proposal are kept
// in the artifact trail. With TryApplyProvisionalRedactions set an applied
// preview is also stored; failure to produce it never fails the job.
func (m *Manager) redact(ctx context.Context, job *jobRun, req *Request) error {
	data, err := m.read(ctx, req.ReadDetails)
	if err != nil {
		return err
	}

	rules, err := m.rules.Load(configName(req))
	if err != nil {
		return err
	}

	ext := req.FileKind
	if err := m.artifacts.Write(ctx, job.folder+"/raw."+ext, data); err != nil {
		return err
	}

	out := data
	if req.SkipRedaction {
		// Lets callers verify end to end connectivity without touching
		// the document.
		m.logger.Info("skipping redaction", zap.String("job", job.id))
	} else {
		proc, err := m.processors.Resolve(req.FileKind)
		if err != nil {
			return err
		}
		out, job.usage, err = proc.Redact(ctx, data, rules)
		if err != nil {
			return err
		}

		if req.TryApplyProvisionalRedactions {
			applied, err := proc.Apply(ctx, out)
			if err != nil {
				m.logError(job, fmt.Errorf("applied preview failed: %w", err))
			} else if err := m.artifacts.Write(ctx, job.folder+"/applied."+ext, applied); err != nil {
				m.logError(job, err)
			}
		}
	}

	if err := m.artifacts.Write(ctx, job.folder+"/proposed."+ext, out); err != nil {
		return err
	}
	return m.write(ctx, req.WriteDetails, out)
}

// apply burns the reviewed candidates into the document. The curated input
// and the final document are kept in the artifact trail.
func (m *Manager) apply(ctx context.Context, job *jobRun, req *Request) error {
	data, err := m.read(ctx, req.ReadDetails)
	if err != nil {
		return err
	}

	ext := req.FileKind
	if err := m.artifacts.Write(ctx, job.folder+"/curated."+ext, data); err != nil {
		return err
	}

	proc, err := m.processors.Resolve(req.FileKind)
	if err != nil {
		return err
	}
	out, err := proc.Apply(ctx, data)
	if err != nil {
		return err
	}

	if err := m.artifacts.Write(ctx, job.folder+"/redacted."+ext, out); err != nil {
		return err
	}
	return m.write(ctx, req.WriteDetails, out)
}

func (m *Manager) read(ctx context.Context, details *StorageDetails) ([]byte, error) {
	store, err := m.stores.Open(details.StorageKind, details.Properties)
	if err != nil {
		return nil, err
	}
	return store.Read(ctx, details.Properties["key"])
}

func (m *Manager) write(ctx context.Context, details *StorageDetails, data []byte) error {
	store, err := m.stores.Open(details.StorageKind, details.Properties)
	if err != nil {
		return err
	}
	return store.Write(ctx, details.Properties["key"], data)
}

func (m *Manager) logError(job *jobRun, err error) {
	m.logger.Error("job error", zap.String("job", job.id), zap.Error(err))
	job.errs = append(job.errs, err.Error())
}

// saveExceptionLog writes the job's accumulated errors to the artifact
// trail. Nothing is written for a clean run.
func (m *Manager) saveExceptionLog(ctx context.Context, job *jobRun) error {
	if len(job.errs) == 0 {
		return nil
	}
	return m.artifacts.Write(ctx, job.folder+"/exceptions.txt", []byte(strings.Join(job.errs, "\n\n\n")))
}

// record persists the job record and updates metrics. Both are best effort.
func (m *Manager) record(job *jobRun, stage, status, message string) {
	if m.jobs != nil {
		err := m.jobs.Put(&storage.JobRecord{
			ID:           job.id,
			Stage:        stage,
			Status:       status,
			Message:      message,
			Errors:       job.errs,
			InputTokens:  job.usage.InputTokens,
			OutputTokens: job.usage.OutputTokens,
			TotalCost:    job.usage.TotalCost,
		})
		if err != nil {
			m.logger.Warn("failed to persist job record", zap.String("job", job.id), zap.Error(err))
		}
	}
	if m.metrics != nil {
		m.metrics.RecordJob(stage, status == StatusSuccess)
		m.metrics.RecordTokens(int64(job.usage.InputTokens), int64(job.usage.OutputTokens))
		m.metrics.RecordSpend(job.usage.TotalCost)
	}
}

func validateRequest(req *Request) error {
	if req.FileKind == "" {
		return fmt.Errorf("fileKind is required")
	}
	if req.ReadDetails == nil || req.ReadDetails.StorageKind == "" {
		return fmt.Errorf("readDetails.storageKind is required")
	}
	if req.WriteDetails == nil || req.WriteDetails.StorageKind == "" {
		return fmt.Errorf("writeDetails.storageKind is required")
	}
	return nil
}

func configName(req *Request) string {
	if req.ConfigName == "" {
		return defaultConfigName
	}
	return req.ConfigName
}

// jobIdentity fixes the job's identifier and its storage folder. A caller
// supplied id is kept verbatim as the identifier; the folder is a sanitized
// form safe for any store.
func jobIdentity(override string) (string, string, error) {
	id := override
	if id == "" {
		id = uuid.NewString()
	}
	folder, err := folderForJob(id)
	return id, folder, err
}

func folderForJob(jobID string) (string, error) {
	if len(jobID) > maxJobIDLength {
		return "", apperr.Wrap(
			fmt.Errorf("job id must be at most %d characters, but %q is %d characters", maxJobIDLength, jobID, len(jobID)),
			apperr.ErrInvalidJobID.Code, apperr.ErrInvalidJobID.Message,
		)
	}
	cleaned := controlChars.ReplaceAllString(jobID, "")
	cleaned = illegalChars.ReplaceAllString(cleaned, "-")
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return "", apperr.Wrap(
			fmt.Errorf("job id %q has no usable characters", jobID),
			apperr.ErrInvalidJobID.Code, apperr.ErrInvalidJobID.Message,
		)
	}
	return cleaned, nil
}
