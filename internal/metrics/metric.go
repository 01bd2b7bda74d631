// Package metrics defines the typed metric values held by the record
// database and merged into snapshots.
//
// Every metric carries a category label naming its type. The category is
// the top-level key of a snapshot; the record name the metric is stored
// under is the second-level key. Metrics serialize two ways: AsJSON returns
// the structured value used in snapshots, while Encode/Decode implement the
// tagged envelope the database persists.
package metrics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	berrors "github.com/xtxerr/beacon/internal/errors"
)

// Metric is a recorded metric value.
//
// Implementations must be safe to copy via Clone without side effects.
type Metric interface {
	// Category returns the metric-type label, used as the top-level key
	// in a snapshot (e.g. "counter", "string").
	Category() string

	// AsJSON returns a serializable representation of the current value.
	AsJSON() any

	// Clone returns an independent copy of the metric.
	Clone() Metric
}

// Category labels for the built-in metric types.
const (
	CategoryCounter            = "counter"
	CategoryBoolean            = "boolean"
	CategoryString             = "string"
	CategoryStringList         = "string_list"
	CategoryQuantity           = "quantity"
	CategoryTimespan           = "timespan"
	CategoryDatetime           = "datetime"
	CategoryUUID               = "uuid"
	CategoryTimingDistribution = "timing_distribution"
)

// =============================================================================
// Scalar metric types
// =============================================================================

// Counter is a monotonically increasing count.
type Counter int64

func (c Counter) Category() string { return CategoryCounter }
func (c Counter) AsJSON() any      { return int64(c) }
func (c Counter) Clone() Metric    { return c }

// Boolean is a true/false flag.
type Boolean bool

func (b Boolean) Category() string { return CategoryBoolean }
func (b Boolean) AsJSON() any      { return bool(b) }
func (b Boolean) Clone() Metric    { return b }

// String is a single text value.
type String string

func (s String) Category() string { return CategoryString }
func (s String) AsJSON() any      { return string(s) }
func (s String) Clone() Metric    { return s }

// Quantity is a discrete non-monotonic quantity (e.g. a screen width).
type Quantity int64

func (q Quantity) Category() string { return CategoryQuantity }
func (q Quantity) AsJSON() any      { return int64(q) }
func (q Quantity) Clone() Metric    { return q }

// StringList is an ordered list of text values.
type StringList []string

func (s StringList) Category() string { return CategoryStringList }

func (s StringList) AsJSON() any {
	// Never emit null for an empty list.
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func (s StringList) Clone() Metric {
	out := make(StringList, len(s))
	copy(out, s)
	return out
}

// UUID is a unique identifier value.
type UUID uuid.UUID

func (u UUID) Category() string { return CategoryUUID }
func (u UUID) AsJSON() any      { return uuid.UUID(u).String() }
func (u UUID) Clone() Metric    { return u }

// Datetime is a point in time.
type Datetime time.Time

func (d Datetime) Category() string { return CategoryDatetime }
func (d Datetime) AsJSON() any      { return time.Time(d).Format(time.RFC3339Nano) }
func (d Datetime) Clone() Metric    { return d }

// =============================================================================
// Timespan
// =============================================================================

// TimeUnit is the resolution a timespan is reported in.
type TimeUnit int

const (
	UnitNanosecond TimeUnit = iota
	UnitMicrosecond
	UnitMillisecond
	UnitSecond
	UnitMinute
	UnitHour
)

// String returns the string representation of the unit.
func (u TimeUnit) String() string {
	switch u {
	case UnitNanosecond:
		return "nanosecond"
	case UnitMicrosecond:
		return "microsecond"
	case UnitMillisecond:
		return "millisecond"
	case UnitSecond:
		return "second"
	case UnitMinute:
		return "minute"
	case UnitHour:
		return "hour"
	default:
		return fmt.Sprintf("unknown(%d)", u)
	}
}

// Duration returns one unit's worth of time.
func (u TimeUnit) Duration() time.Duration {
	switch u {
	case UnitNanosecond:
		return time.Nanosecond
	case UnitMicrosecond:
		return time.Microsecond
	case UnitMillisecond:
		return time.Millisecond
	case UnitSecond:
		return time.Second
	case UnitMinute:
		return time.Minute
	case UnitHour:
		return time.Hour
	default:
		return 0
	}
}

// ParseTimeUnit parses a string into a TimeUnit.
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch s {
	case "nanosecond":
		return UnitNanosecond, nil
	case "microsecond":
		return UnitMicrosecond, nil
	case "millisecond":
		return UnitMillisecond, nil
	case "second":
		return UnitSecond, nil
	case "minute":
		return UnitMinute, nil
	case "hour":
		return UnitHour, nil
	default:
		return UnitNanosecond, fmt.Errorf("unknown time unit: %s", s)
	}
}

// Timespan is a single elapsed-time measurement reported in a fixed unit.
type Timespan struct {
	Value time.Duration
	Unit  TimeUnit
}

func (t Timespan) Category() string { return CategoryTimespan }

// AsJSON reports the elapsed time converted to the metric's unit,
// truncated towards zero.
func (t Timespan) AsJSON() any {
	unit := t.Unit.Duration()
	if unit <= 0 {
		return int64(t.Value)
	}
	return int64(t.Value / unit)
}

func (t Timespan) Clone() Metric { return t }

// =============================================================================
// Storage envelope
// =============================================================================

// envelope is the tagged form a metric is persisted as.
type envelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type timespanValue struct {
	ValueNs int64  `json:"value_ns"`
	Unit    string `json:"unit"`
}

// Encode serializes a metric into its storage envelope.
func Encode(m Metric) ([]byte, error) {
	var value any

	switch v := m.(type) {
	case Counter:
		value = int64(v)
	case Boolean:
		value = bool(v)
	case String:
		value = string(v)
	case StringList:
		value = []string(v)
	case Quantity:
		value = int64(v)
	case Timespan:
		value = timespanValue{ValueNs: int64(v.Value), Unit: v.Unit.String()}
	case Datetime:
		value = time.Time(v).Format(time.RFC3339Nano)
	case UUID:
		value = uuid.UUID(v).String()
	case *TimingDistribution:
		b, err := v.encodeSketch()
		if err != nil {
			return nil, err
		}
		value = b
	default:
		return nil, fmt.Errorf("encode metric: unsupported type %T", m)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode metric value: %w", err)
	}

	return json.Marshal(envelope{Type: m.Category(), Value: raw})
}

// Decode deserializes a metric from its storage envelope.
func Decode(b []byte) (Metric, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode metric envelope: %w", err)
	}

	switch env.Type {
	case CategoryCounter:
		var v int64
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("decode counter: %w", err)
		}
		return Counter(v), nil

	case CategoryBoolean:
		var v bool
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("decode boolean: %w", err)
		}
		return Boolean(v), nil

	case CategoryString:
		var v string
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("decode string: %w", err)
		}
		return String(v), nil

	case CategoryStringList:
		var v []string
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("decode string_list: %w", err)
		}
		return StringList(v), nil

	case CategoryQuantity:
		var v int64
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("decode quantity: %w", err)
		}
		return Quantity(v), nil

	case CategoryTimespan:
		var v timespanValue
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("decode timespan: %w", err)
		}
		unit, err := ParseTimeUnit(v.Unit)
		if err != nil {
			return nil, fmt.Errorf("decode timespan: %w", err)
		}
		return Timespan{Value: time.Duration(v.ValueNs), Unit: unit}, nil

	case CategoryDatetime:
		var v string
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("decode datetime: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("decode datetime: %w", err)
		}
		return Datetime(t), nil

	case CategoryUUID:
		var v string
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("decode uuid: %w", err)
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("decode uuid: %w", err)
		}
		return UUID(id), nil

	case CategoryTimingDistribution:
		var v []byte
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("decode timing_distribution: %w", err)
		}
		return decodeTimingDistribution(v)

	default:
		return nil, fmt.Errorf("%w: %q", berrors.ErrUnknownCategory, env.Type)
	}
}
