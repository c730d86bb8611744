package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"eurocredit/core/events"
	"eurocredit/core/state"
	"eurocredit/core/types"
	"eurocredit/observability"
)

var (
	errNilCall      = errors.New("core: call not provided")
	errCallPanicked = errors.New("core: call panicked")
)

// Call is a unit of work applied atomically by the Executor.
type Call func(ctx context.Context) error

// Executor serialises calls against a StateDB. Each call observes the fully
// committed result of its predecessor and either commits all of its writes in
// one batch or leaves no trace. Events emitted through Emitter are released to
// the sinks only after the commit succeeds.
type Executor struct {
	mu      sync.Mutex
	state   *state.StateDB
	buffer  *events.Buffer
	sinks   []events.Sink
	logger  *slog.Logger
	metrics *observability.ExecutorMetrics

	history    []types.Event
	historyCap int
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(x *Executor) {
		if logger != nil {
			x.logger = logger
		}
	}
}

// WithSink registers a sink receiving committed events.
func WithSink(sink events.Sink) ExecutorOption {
	return func(x *Executor) {
		if sink != nil {
			x.sinks = append(x.sinks, sink)
		}
	}
}

// WithHistory keeps the last n committed events in memory. Zero disables the
// history.
func WithHistory(n int) ExecutorOption {
	return func(x *Executor) {
		if n >= 0 {
			x.historyCap = n
		}
	}
}

// NewExecutor wraps st.
func NewExecutor(st *state.StateDB, opts ...ExecutorOption) *Executor {
	x := &Executor{
		state:      st,
		buffer:     &events.Buffer{},
		logger:     slog.Default(),
		metrics:    observability.Executor(),
		historyCap: 1024,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(x)
		}
	}
	return x
}

// State exposes the underlying state. Writes made outside Execute are
// committed by the next successful call.
func (x *Executor) State() *state.StateDB { return x.state }

// Emitter returns the buffer components should emit into.
func (x *Executor) Emitter() events.Emitter { return x.buffer }

// Execute runs call under the executor lock.
func (x *Executor) Execute(ctx context.Context, name string, call Call) error {
	if call == nil {
		return errNilCall
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := x.state.Snapshot()
	mark := x.buffer.Mark()
	defer func() {
		if r := recover(); r != nil {
			x.state.RevertToSnapshot(snapshot)
			x.buffer.Truncate(mark)
			x.metrics.RecordCall(name, errCallPanicked)
			x.logger.Error("call panicked", "call", name, "panic", r)
			panic(r)
		}
	}()
	if err := call(ctx); err != nil {
		x.state.RevertToSnapshot(snapshot)
		x.buffer.Truncate(mark)
		x.metrics.RecordCall(name, err)
		x.logger.Debug("call reverted", "call", name, "error", err)
		return err
	}
	if err := x.state.Commit(); err != nil {
		x.state.Discard()
		x.buffer.Drain()
		x.metrics.RecordCall(name, err)
		return fmt.Errorf("core: commit %s: %w", name, err)
	}
	x.metrics.RecordCall(name, nil)
	x.flush(ctx, x.buffer.Drain())
	return nil
}

// flush hands committed events to the sinks. Sink failures are logged; the
// state transition has already been committed.
func (x *Executor) flush(ctx context.Context, pending []events.Event) {
	for _, evt := range pending {
		payload := evt.Event()
		if payload == nil {
			continue
		}
		x.metrics.RecordEvent(payload.Type)
		x.remember(payload)
		for _, sink := range x.sinks {
			if err := sink.Record(ctx, payload); err != nil {
				x.metrics.RecordSinkError(payload.Type)
				x.logger.Error("event sink failed", "type", payload.Type, "error", err)
			}
		}
	}
}

func (x *Executor) remember(evt *types.Event) {
	if x.historyCap == 0 {
		return
	}
	x.history = append(x.history, copyEvent(evt))
	if over := len(x.history) - x.historyCap; over > 0 {
		x.history = append(x.history[:0:0], x.history[over:]...)
	}
}

// Events returns a copy of the retained committed events, oldest first.
func (x *Executor) Events() []types.Event {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]types.Event, len(x.history))
	for i := range x.history {
		out[i] = copyEvent(&x.history[i])
	}
	return out
}

func copyEvent(evt *types.Event) types.Event {
	attrs := make(map[string]string, len(evt.Attributes))
	for k, v := range evt.Attributes {
		attrs[k] = v
	}
	return types.Event{Type: evt.Type, Attributes: attrs}
}
