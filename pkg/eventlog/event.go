// Package eventlog implements the structured event pipeline shared by all
// evoinfra facades. An Event describes one operational outcome (a bucket
// created, an upload absorbed, a collection dropped); a Sink delivers events
// to one backend (local console, cloud logging, archive database); a
// Recorder binds a sink to the identity of the emitting application and
// stamps every event with its stream name, environment and insert ID.
//
// Delivery is synchronous: Emit returns only after the backend accepted the
// event, and no sink buffers or batches. Callers that need throughput over
// certainty should aggregate before emitting.
package eventlog

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

// Reserved payload keys. Extra fields colliding with these are prefixed
// with "x_" so an event can never lose its identifying attributes.
const (
	keyName        = "name"
	keyMessage     = "message"
	keyDescription = "description"
	keyEnvironment = "env"
	keySeverity    = "severity"
)

// Fields is the open extension bag attached to an event. Values are
// normalized to JSON-stable primitives before delivery, so callers may pass
// errors, durations, timestamps and numeric types directly.
type Fields map[string]interface{}

// normalizeValue coerces a single value to a JSON-stable primitive. The
// concrete cases are ordered so the specific beats the general: time.Time
// and time.Duration both satisfy fmt.Stringer but get their own encodings.
func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case bool:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return fmt.Sprint(x)
		}
		return int64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case time.Duration:
		return x.String()
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[k] = normalizeValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, val := range x {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return fmt.Sprint(x)
	}
}

// Normalize returns a copy of the bag with every value coerced to a
// JSON-stable primitive. A nil receiver yields an empty map.
func (f Fields) Normalize() map[string]interface{} {
	out := make(map[string]interface{}, len(f))
	for k, v := range f {
		out[k] = normalizeValue(v)
	}
	return out
}

// Keys returns the field keys in sorted order. Useful for deterministic
// assertions and debug output.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Event is one structured operational record.
type Event struct {
	// Name identifies the operation the event describes, e.g.
	// "create_bucket" or "change_database". Required.
	Name string

	// Message is the human-readable summary. Required.
	Message string

	// Description carries optional long-form context. Omitted from the
	// payload when empty.
	Description string

	// Severity grades the event. Required and must be a known grade.
	Severity common.Severity

	// Environment names the tier the event originates from. The Recorder
	// fills it from its own binding when left empty.
	Environment common.Environment

	// Logger is the stream name the event belongs to. The Recorder fills
	// it from its own binding; sinks use it for routing and purging.
	Logger string

	// App is the emitting application's name. The Recorder fills it from
	// its own binding.
	App string

	// Time is the event timestamp. The Recorder stamps the current UTC
	// time when left zero.
	Time time.Time

	// InsertID deduplicates redelivered events at backends that support
	// it. The Recorder mints a fresh ID when left empty.
	InsertID string

	// Fields is the open extension bag merged into the payload.
	Fields Fields
}

// Validate checks the attributes every sink relies on. Failures classify
// as CodeValidationFailure.
func (e Event) Validate() error {
	if e.Name == "" {
		return errors.ValidationFailure("event name must not be empty")
	}
	if e.Message == "" {
		return errors.ValidationFailure("event message must not be empty")
	}
	if err := e.Severity.Validate(); err != nil {
		return errors.ValidationFailure(err.Error()).WithDetail("field=severity")
	}
	if e.Environment != "" {
		if err := e.Environment.Validate(); err != nil {
			return errors.ValidationFailure(err.Error()).WithDetail("field=environment")
		}
	}
	return nil
}

// Payload builds the delivery payload: the identifying attributes plus the
// normalized extension fields. Extra fields whose keys collide with
// reserved attributes are kept under an "x_"-prefixed key.
func (e Event) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		keyName:        e.Name,
		keyMessage:     e.Message,
		keyEnvironment: strings.ToLower(e.Environment.String()),
	}
	if e.Description != "" {
		payload[keyDescription] = e.Description
	}
	for k, v := range e.Fields.Normalize() {
		if _, reserved := payload[k]; reserved || k == keySeverity || k == keyDescription {
			payload["x_"+k] = v
			continue
		}
		payload[k] = v
	}
	return payload
}
