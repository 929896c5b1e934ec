// Package syncer drains the staging store into the relational store, one
// serialized pass at a time.
package syncer

//go:generate mockgen -destination=mocks/mock_syncer.go -package=mocks -source=orchestrator.go Source,Transformer,Writer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/logging"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/metrics"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/transform"
)

// Source enumerates and sweeps staging documents.
type Source interface {
	Documents(ctx context.Context) iter.Seq2[models.Document, error]
	DeleteMany(ctx context.Context, ids []any) (int64, error)
}

// Transformer turns one document into rows or a skip.
type Transformer interface {
	Transform(ctx context.Context, doc models.Document) (transform.Result, error)
}

// Writer persists the rows of one document atomically.
type Writer interface {
	InsertCapturedValues(ctx context.Context, rows []models.CapturedValue) error
}

// Orchestrator runs reconciliation passes. Passes never overlap.
type Orchestrator struct {
	source      Source
	transformer Transformer
	writer      Writer
	logger      *zap.Logger
	metrics     *metrics.Metrics

	runMu sync.Mutex

	lastMu sync.RWMutex
	last   *models.RunSummary
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an Orchestrator.
func New(source Source, transformer Transformer, writer Writer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:      source,
		transformer: transformer,
		writer:      writer,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrNop(o.logger).Named("syncer")
	return o
}

// LastSummary returns the summary of the most recent finished pass.
func (o *Orchestrator) LastSummary() *models.RunSummary {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	return o.last
}

type pass struct {
	summary     *models.RunSummary
	marked      []any
	unremovable int
}

func (p *pass) mark(doc models.Document) {
	if doc.ID == nil {
		p.unremovable++
		return
	}
	p.marked = append(p.marked, doc.ID)
}

// Run performs one pass. The summary is always returned; the error is
// non-nil when enumeration or the bulk delete failed.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunSummary, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	p := &pass{summary: &models.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Skipped:   []models.SkipInfo{},
		Errors:    []models.ErrorInfo{},
	}}
	logger := o.logger.With(zap.String("run_id", p.summary.RunID))

	var runErr error
	for doc, err := range o.source.Documents(ctx) {
		if err != nil {
			runErr = fmt.Errorf("enumerate staging documents: %w", err)
			p.summary.Errors = append(p.summary.Errors, models.ErrorInfo{Message: err.Error()})
			logger.Error("staging enumeration aborted", zap.Error(err))
			break
		}
		p.summary.TotalDocuments++
		o.handle(ctx, logger, p, doc)
	}

	if p.unremovable > 0 {
		p.summary.Errors = append(p.summary.Errors, models.ErrorInfo{
			Message: fmt.Sprintf("%d document(s) could not be removed", p.unremovable),
		})
	}

	// Rows for marked documents are already committed, so the sweep must not
	// be abandoned with the caller's context.
	removed, err := o.source.DeleteMany(context.WithoutCancel(ctx), p.marked)
	if err != nil {
		p.summary.Errors = append(p.summary.Errors, models.ErrorInfo{Message: err.Error()})
		logger.Error("bulk delete failed", zap.Int("marked", len(p.marked)), zap.Error(err))
		runErr = errors.Join(runErr, err)
	}
	p.summary.RemovedDocuments = removed
	p.summary.FinishedAt = time.Now().UTC()

	o.lastMu.Lock()
	o.last = p.summary
	o.lastMu.Unlock()
	o.metrics.RecordRun(p.summary, runErr)
	o.logSummary(logger, p.summary)

	return p.summary, runErr
}

func (o *Orchestrator) handle(ctx context.Context, logger *zap.Logger, p *pass, doc models.Document) {
	id := doc.IDString()

	res, err := o.transformer.Transform(ctx, doc)
	p.summary.IgnoredValues += res.Ignored
	if err != nil {
		p.summary.Errors = append(p.summary.Errors, models.ErrorInfo{DocumentID: id, Message: err.Error()})
		logger.Warn("document retained after lookup failure", zap.String("document_id", id), zap.Error(err))
		return
	}

	if res.Skip != nil {
		p.summary.Skipped = append(p.summary.Skipped, models.SkipInfo{
			DocumentID: id,
			Reason:     res.Skip.Reason,
			Detail:     res.Skip.Detail,
		})
		logger.Debug("document skipped",
			zap.String("document_id", id),
			zap.String("reason", string(res.Skip.Reason)),
			zap.String("detail", res.Skip.Detail))
		p.mark(doc)
		return
	}

	if err := o.writer.InsertCapturedValues(ctx, res.Rows); err != nil {
		p.summary.Errors = append(p.summary.Errors, models.ErrorInfo{DocumentID: id, Message: err.Error()})
		logger.Warn("document retained after persist failure", zap.String("document_id", id), zap.Error(err))
		return
	}

	p.summary.ProcessedDocuments++
	p.summary.InsertedValues += len(res.Rows)
	p.mark(doc)
}

func (o *Orchestrator) logSummary(logger *zap.Logger, s *models.RunSummary) {
	fields := []zap.Field{
		zap.Int("total", s.TotalDocuments),
		zap.Int("processed", s.ProcessedDocuments),
		zap.Int("inserted", s.InsertedValues),
		zap.Int("ignored", s.IgnoredValues),
		zap.Int("skipped", len(s.Skipped)),
		zap.Int("errors", len(s.Errors)),
		zap.Int64("removed", s.RemovedDocuments),
		zap.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)),
	}
	switch {
	case len(s.Errors) > 0:
		logger.Warn("sync run finished with errors", fields...)
	case s.TotalDocuments > 0 || s.RemovedDocuments > 0:
		logger.Info("sync run finished", fields...)
	default:
		logger.Debug("sync run found nothing to do", fields...)
	}
}
