package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrPersistFailed marks a captured-value batch that was rolled back.
var ErrPersistFailed = errors.New("persist-failed")

// Station is the relational record a staging document is addressed to.
type Station struct {
	Key  int64
	UUID string
}

// Binding links a station to a parameter type, keyed by the parameter code
// used in staging documents.
type Binding struct {
	Key              int64
	ParameterTypeKey int64
	Code             string
	Offset           *float64
	Factor           *float64
}

// CapturedValue is a normalized reading ready for insertion.
type CapturedValue struct {
	Timestamp  time.Time
	StationKey int64
	BindingKey int64
	Value      float64
}

// ValueKind tags the dynamic type held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindNumber
	KindString
	KindTime
	KindBool
	KindOther
)

// Value is a loosely typed field value read from the document store.
type Value struct {
	Kind   ValueKind
	Number float64
	Str    string
	Time   time.Time
	Bool   bool
	Raw    any
}

// NullValue represents an explicit null or missing value.
func NullValue() Value { return Value{Kind: KindNull} }

func NumberValue(n float64) Value { return Value{Kind: KindNumber, Number: n} }

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func TimeValue(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

func OtherValue(raw any) Value { return Value{Kind: KindOther, Raw: raw} }

// String renders the raw value for log and skip details.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindString:
		return v.Str
	case KindTime:
		return v.Time.UTC().Format(time.RFC3339Nano)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return fmt.Sprint(v.Raw)
	}
}

// Field is one key/value pair of a document, in stored order.
type Field struct {
	Key   string
	Value Value
}

// Document is a staging record with its fields kept in insertion order.
type Document struct {
	// ID is the native store identifier, nil when the document has none.
	ID     any
	Fields []Field
}

// Get returns the first field stored under key.
func (d Document) Get(key string) (Value, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// IDString formats the identifier for summaries and logs.
func (d Document) IDString() string {
	if d.ID == nil {
		return ""
	}
	if h, ok := d.ID.(interface{ Hex() string }); ok {
		return h.Hex()
	}
	if s, ok := d.ID.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(d.ID)
}

// SkipReason classifies a document that can never produce rows.
type SkipReason string

const (
	SkipMissingIdentifier SkipReason = "missing-identifier"
	SkipUnknownStation    SkipReason = "unknown-station"
	SkipNoBindings        SkipReason = "no-bindings"
	SkipInvalidTimestamp  SkipReason = "invalid-timestamp"
	SkipNoValidValues     SkipReason = "no-valid-values"
)

// Skip is a terminal, permanent transform outcome.
type Skip struct {
	Reason SkipReason
	Detail string
}

// SkipInfo records a skipped document in a run summary.
type SkipInfo struct {
	DocumentID string     `json:"document_id"`
	Reason     SkipReason `json:"reason"`
	Detail     string     `json:"detail,omitempty"`
}

// ErrorInfo records a retained document in a run summary.
type ErrorInfo struct {
	DocumentID string `json:"document_id,omitempty"`
	Message    string `json:"message"`
}

// RunSummary aggregates the outcome of one reconciliation pass.
type RunSummary struct {
	RunID              string      `json:"run_id"`
	StartedAt          time.Time   `json:"started_at"`
	FinishedAt         time.Time   `json:"finished_at"`
	TotalDocuments     int         `json:"total_documents"`
	ProcessedDocuments int         `json:"processed_documents"`
	InsertedValues     int         `json:"inserted_values"`
	IgnoredValues      int         `json:"ignored_values"`
	RemovedDocuments   int64       `json:"removed_documents"`
	Skipped            []SkipInfo  `json:"skipped"`
	Errors             []ErrorInfo `json:"errors"`
}

// ChangeEvent is delivered by a document-store subscription. A non-nil Err
// means the feed has failed and must be re-established.
type ChangeEvent struct {
	DocumentID any
	Err        error
}
