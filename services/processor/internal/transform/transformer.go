// Package transform validates staging documents and turns them into
// captured-value rows.
package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

const (
	FieldID        = "_id"
	FieldStation   = "UUID"
	FieldTimestamp = "unixtime"
)

// Resolver answers the metadata questions a transform needs.
// *metadata.Cache satisfies it.
type Resolver interface {
	ResolveStation(ctx context.Context, uuid string) (*models.Station, error)
	ResolveBindings(ctx context.Context, stationKey int64) (map[string]models.Binding, error)
}

// Result is the outcome of transforming one document. Exactly one of Rows
// (non-empty) or Skip is set.
type Result struct {
	Rows    []models.CapturedValue
	Skip    *models.Skip
	Ignored int
}

// Transformer converts documents into rows.
type Transformer struct {
	resolver  Resolver
	parseTime TimestampParser
	ignored   map[string]struct{}
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithTimestampParser replaces the default seconds-or-milliseconds parser.
func WithTimestampParser(p TimestampParser) Option {
	return func(t *Transformer) {
		t.parseTime = p
	}
}

// WithIgnoredFields excludes extra internal fields from value extraction.
func WithIgnoredFields(fields ...string) Option {
	return func(t *Transformer) {
		for _, f := range fields {
			t.ignored[f] = struct{}{}
		}
	}
}

// New creates a Transformer backed by resolver.
func New(resolver Resolver, opts ...Option) *Transformer {
	t := &Transformer{
		resolver:  resolver,
		parseTime: ParseTimestamp,
		ignored: map[string]struct{}{
			FieldID:        {},
			FieldStation:   {},
			FieldTimestamp: {},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func skip(reason models.SkipReason, detail string) Result {
	return Result{Skip: &models.Skip{Reason: reason, Detail: detail}}
}

// Transform validates doc and extracts its rows. Data problems come back as
// a Skip; only lookup failures are returned as errors.
func (t *Transformer) Transform(ctx context.Context, doc models.Document) (Result, error) {
	uuid := StationUUID(doc)
	if uuid == "" {
		return skip(models.SkipMissingIdentifier, ""), nil
	}

	station, err := t.resolver.ResolveStation(ctx, uuid)
	if err != nil {
		return Result{}, fmt.Errorf("resolve station %s: %w", uuid, err)
	}
	if station == nil {
		return skip(models.SkipUnknownStation, "UUID "+uuid), nil
	}

	bindings, err := t.resolver.ResolveBindings(ctx, station.Key)
	if err != nil {
		return Result{}, fmt.Errorf("resolve bindings for station %s: %w", uuid, err)
	}
	if len(bindings) == 0 {
		return skip(models.SkipNoBindings, "UUID "+uuid), nil
	}

	rawTS, _ := doc.Get(FieldTimestamp)
	ts, ok := t.parseTime(rawTS)
	if !ok {
		return skip(models.SkipInvalidTimestamp, "value: "+rawTS.String()), nil
	}

	var res Result
	for _, f := range doc.Fields {
		if _, internal := t.ignored[f.Key]; internal {
			continue
		}
		binding, bound := bindings[f.Key]
		if !bound {
			res.Ignored++
			continue
		}
		value, ok := ParseNumber(f.Value)
		if !ok {
			res.Ignored++
			continue
		}
		res.Rows = append(res.Rows, models.CapturedValue{
			Timestamp:  ts,
			StationKey: station.Key,
			BindingKey: binding.Key,
			Value:      value,
		})
	}

	if len(res.Rows) == 0 {
		res.Skip = &models.Skip{Reason: models.SkipNoValidValues, Detail: "UUID " + uuid}
	}
	return res, nil
}

// StationUUID returns the trimmed station identifier, or "" when it is
// missing or not a string.
func StationUUID(doc models.Document) string {
	v, ok := doc.Get(FieldStation)
	if !ok || v.Kind != models.KindString {
		return ""
	}
	return strings.TrimSpace(v.Str)
}
