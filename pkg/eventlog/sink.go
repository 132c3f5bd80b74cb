package eventlog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/evolvehq/evoinfra/pkg/errors"
)

// Engine names for the sinks this module ships. Callers may register
// additional engines under their own names.
const (
	// EngineLocal delivers events to the process-local structured logger.
	EngineLocal = "local"
	// EngineCloud delivers events to Google Cloud Logging.
	EngineCloud = "cloud"
	// EngineArchive appends events to a relational archive table.
	EngineArchive = "archive"
	// EngineMemory collects events in memory; test use only.
	EngineMemory = "memory"
)

// Sink delivers events to one backend.
//
// Implementations must be safe for concurrent use. Emit is synchronous:
// it returns only after the backend accepted the event, and implementations
// must not buffer, batch or retry on the caller's behalf.
type Sink interface {
	// Emit delivers a single event. The event has been validated and
	// stamped by the Recorder before it arrives here.
	Emit(ctx context.Context, ev Event) error

	// Purge deletes the backend's stored history for the named stream.
	// Sinks without deletable history return a CodePurgeUnsupported error.
	Purge(ctx context.Context, loggerName string) error

	// Close releases backend resources. The sink is unusable afterwards.
	Close() error
}

// Registry maps engine names to sinks. It is the lookup point behind
// engine-selection configuration: components ask for "local", "cloud" or
// "archive" and receive whatever sink was registered under that name.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[string]Sink)}
}

// Register binds a sink to an engine name. Registering a name twice is a
// wiring mistake and fails with CodeAlreadyExists; use Replace to swap a
// sink intentionally.
func (r *Registry) Register(engine string, s Sink) error {
	engine = strings.TrimSpace(engine)
	if engine == "" {
		return errors.ValidationFailure("engine name must not be empty")
	}
	if s == nil {
		return errors.ValidationFailure("sink must not be nil").WithDetail("engine=" + engine)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sinks[engine]; dup {
		return errors.AlreadyExists("engine already registered").WithDetail("engine=" + engine)
	}
	r.sinks[engine] = s
	return nil
}

// Replace binds a sink to an engine name, overwriting any previous binding.
// The previous sink, if any, is returned so the caller can close it.
func (r *Registry) Replace(engine string, s Sink) (Sink, error) {
	engine = strings.TrimSpace(engine)
	if engine == "" {
		return nil, errors.ValidationFailure("engine name must not be empty")
	}
	if s == nil {
		return nil, errors.ValidationFailure("sink must not be nil").WithDetail("engine=" + engine)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.sinks[engine]
	r.sinks[engine] = s
	return prev, nil
}

// Sink returns the sink registered under the engine name. Unknown names
// fail with CodeEngineUnknown.
func (r *Registry) Sink(engine string) (Sink, error) {
	r.mu.RLock()
	s, ok := r.sinks[engine]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.CodeEngineUnknown, "no sink registered for engine").
			WithDetail("engine=" + engine)
	}
	return s, nil
}

// Engines lists the registered engine names in sorted order.
func (r *Registry) Engines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every registered sink and empties the registry. The first
// close error is returned; later sinks are still closed.
func (r *Registry) Close() error {
	r.mu.Lock()
	sinks := r.sinks
	r.sinks = make(map[string]Sink)
	r.mu.Unlock()

	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
