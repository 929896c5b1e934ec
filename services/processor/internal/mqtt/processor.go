// Package mqtt ingests staging documents pushed over MQTT. Each message is
// validated, written in its own transaction and then removed from the staging
// store on a best-effort basis.
package mqtt

import (
	"context"

	"go.uber.org/zap"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/logging"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/metadata"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/metrics"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/staging"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/transform"
)

// Status is the terminal outcome of one message.
type Status string

const (
	StatusInserted          Status = "inserted"
	StatusUnparseable       Status = "unparseable-payload"
	StatusMissingIdentifier Status = "missing-identifier"
	StatusMissingTimestamp  Status = "missing-timestamp"
	StatusLookupFailed      Status = "lookup-failed"
	StatusPersistFailed     Status = "persist-failed"
)

// Outcome describes what happened to one message.
type Outcome struct {
	Status   Status
	Inserted int
	Removed  bool
}

// Transformer turns one document into rows or a skip.
type Transformer interface {
	Transform(ctx context.Context, doc models.Document) (transform.Result, error)
}

// Writer persists rows atomically.
type Writer interface {
	InsertCapturedValues(ctx context.Context, rows []models.CapturedValue) error
}

// Deleter removes one staging document by identifier.
type Deleter interface {
	DeleteOne(ctx context.Context, id any) (bool, error)
}

// NewTransformer builds the message-path transformer: its own metadata cache,
// epoch-seconds timestamps only, and the estacao/parametro fields ignored.
func NewTransformer(lookup metadata.Lookup) *transform.Transformer {
	return transform.New(
		metadata.New(lookup),
		transform.WithTimestampParser(transform.ParseUnixSeconds),
		transform.WithIgnoredFields("estacao", "parametro"),
	)
}

// Processor handles inbound messages. It is safe for concurrent use.
type Processor struct {
	transformer Transformer
	writer      Writer
	deleter     Deleter
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

// NewProcessor creates a Processor.
func NewProcessor(transformer Transformer, writer Writer, deleter Deleter, opts ...Option) *Processor {
	p := &Processor{
		transformer: transformer,
		writer:      writer,
		deleter:     deleter,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrNop(p.logger).Named("mqtt")
	return p
}

// Handle processes one payload. Dropped messages are logged and never
// retried.
func (p *Processor) Handle(ctx context.Context, payload []byte) Outcome {
	out := p.handle(ctx, payload)
	p.metrics.RecordMessage(string(out.Status), out.Inserted)
	return out
}

func (p *Processor) handle(ctx context.Context, payload []byte) Outcome {
	doc, err := staging.ParseMessage(payload)
	if err != nil {
		p.logger.Warn("message dropped: payload is not a JSON object", zap.Error(err))
		return Outcome{Status: StatusUnparseable}
	}

	uuid := transform.StationUUID(doc)
	if uuid == "" {
		p.logger.Warn("message dropped: UUID missing")
		return Outcome{Status: StatusMissingIdentifier}
	}
	if ts, ok := doc.Get(transform.FieldTimestamp); !ok || ts.Kind == models.KindNull {
		p.logger.Warn("message dropped: unixtime missing", zap.String("uuid", uuid))
		return Outcome{Status: StatusMissingTimestamp}
	}

	logger := p.logger.With(zap.String("uuid", uuid))

	res, err := p.transformer.Transform(ctx, doc)
	if err != nil {
		logger.Error("message dropped: metadata lookup failed", zap.Error(err))
		return Outcome{Status: StatusLookupFailed}
	}
	if res.Skip != nil {
		logger.Warn("message dropped",
			zap.String("reason", string(res.Skip.Reason)),
			zap.String("detail", res.Skip.Detail),
			zap.Int("ignored", res.Ignored))
		return Outcome{Status: Status(res.Skip.Reason)}
	}

	if err := p.writer.InsertCapturedValues(ctx, res.Rows); err != nil {
		logger.Error("message dropped: persist failed", zap.Error(err))
		return Outcome{Status: StatusPersistFailed}
	}

	out := Outcome{Status: StatusInserted, Inserted: len(res.Rows)}
	logger.Info("message persisted", zap.Int("inserted", out.Inserted), zap.Int("ignored", res.Ignored))

	// The insert is committed; the delete below is best-effort and never
	// undoes it.
	oid, ok := staging.ObjectIDFrom(doc.ID)
	if !ok {
		logger.Info("staging document not removed: message has no ObjectId _id")
		return out
	}
	removed, err := p.deleter.DeleteOne(ctx, oid)
	switch {
	case err != nil:
		logger.Warn("staging document removal failed", zap.String("document_id", oid.Hex()), zap.Error(err))
	case !removed:
		logger.Info("staging document not found for removal", zap.String("document_id", oid.Hex()))
	default:
		out.Removed = true
	}
	return out
}
