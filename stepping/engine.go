// Package stepping implements the debuggee engine's stepping state machine:
// the four verbs (Continue/StepIn/StepOver/StepOut) built on a single inner
// loop that drives the emulator one instruction at a time, decodes markers,
// maintains the call-frame stack, and emits stop/end events asynchronously
// (SPEC_FULL.md §4.5).
//
// Adapted from the teacher's debugger.Debugger: the StepMode/StepOverPC
// fields and the run-to-ShouldBreak loop in debugger/interface.go become
// stopCondition closures captured per call instead of mutable engine state,
// because here depth comparisons (StepOver/StepOut) need the call-site
// depth rather than a single saved PC.
package stepping

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/tvmdbg/engine/breakpoint"
	"github.com/tvmdbg/engine/cellindex"
	"github.com/tvmdbg/engine/emulator"
	"github.com/tvmdbg/engine/logging"
	"github.com/tvmdbg/engine/marker"
	"github.com/tvmdbg/engine/metrics"
	"github.com/tvmdbg/engine/sourcemap"
)

// Sentinel errors the host is expected to test with errors.Is.
var (
	ErrNotPrepared     = errors.New("stepping: engine not prepared")
	ErrSessionFinished = errors.New("stepping: session already finished")
	ErrSetupFailed     = errors.New("stepping: emulator setup failed")
)

// Options configures optional, rarely-changed engine behavior.
type Options struct {
	// EventQueueCapacity bounds the async event channel. Defaults to 64.
	EventQueueCapacity int
	// IncludeSkippedGlobal exposes c7.items[0] under the synthetic name
	// "$0" in globals results (SPEC_FULL.md's Open Questions answer).
	IncludeSkippedGlobal bool
	// Logger receives internal diagnostics; defaults to logging.Default().
	Logger *log.Logger
	// Metrics receives step/marker/stop counters; defaults to a fresh
	// private registry via metrics.NewEngine().
	Metrics *metrics.Engine
}

// Engine is a single debugging session: code-cell index, source map,
// breakpoint store, frame stack, and the emulator handle it drives.
type Engine struct {
	mu sync.RWMutex

	id   uuid.UUID
	kind emulator.Kind

	emu    emulator.Emulator
	handle emulator.Handle

	codeIndex   *cellindex.Index
	sourceMap   *sourcemap.SourceMap
	breakpoints *breakpoint.Store

	frames            []StackFrame
	lastStatement     sourcemap.Entry
	haveLastStatement bool

	bus     *eventBus
	logger  *log.Logger
	metrics *metrics.Engine
	opts    Options

	finished         bool
	finalizeOnce     sync.Once
	finishedCallback func(emulator.Result)
}

// ID returns the session identifier assigned at Prepare time.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// Kind returns the session kind (GetMethod or Transaction).
func (e *Engine) Kind() emulator.Kind {
	return e.kind
}

// Breakpoints returns the engine's breakpoint store, so the host can
// Set/Clear breakpoints against the same source map the engine resolves
// markers through.
func (e *Engine) Breakpoints() *breakpoint.Store {
	return e.breakpoints
}

// SourceMap returns the engine's immutable source map.
func (e *Engine) SourceMap() *sourcemap.SourceMap {
	return e.sourceMap
}

// Listen registers a callback invoked for every future event, in emission
// order, starting immediately. Register listeners before invoking the
// first verb to guarantee none are missed (SPEC_FULL.md §4.5).
func (e *Engine) Listen(fn func(Event)) {
	e.bus.Listen(fn)
}

// Prepare sets up a new session: builds the code-cell index, dispatches
// Setup on the emulator, and returns a ready Engine. For Transaction
// sessions, a SetupResult.ResultCode != 1 is a fatal preparation error
// (SPEC_FULL.md §4.6, §7).
func Prepare(
	ctx context.Context,
	emu emulator.Emulator,
	sm *sourcemap.SourceMap,
	args emulator.SetupArgs,
	finished func(emulator.Result),
	opts Options,
) (*Engine, error) {
	if opts.EventQueueCapacity <= 0 {
		opts.EventQueueCapacity = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewEngine()
	}

	handle, result, err := emu.Setup(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("stepping: setup: %w", err)
	}
	if args.Kind == emulator.KindTransaction && result.ResultCode != 1 {
		return nil, fmt.Errorf("%w: result code %d", ErrSetupFailed, result.ResultCode)
	}

	e := &Engine{
		id:               uuid.New(),
		kind:             args.Kind,
		emu:              emu,
		handle:           handle,
		codeIndex:        cellindex.Build(args.CodeRoot),
		sourceMap:        sm,
		breakpoints:      breakpoint.NewStore(),
		bus:              newEventBus(opts.EventQueueCapacity),
		logger:           logger,
		metrics:          m,
		opts:             opts,
		finishedCallback: finished,
	}

	emu.SetDebugLog(handle, func(line string) {
		e.bus.emit(Event{Kind: Output, Output: line})
	})

	logger.Printf("session %s prepared kind=%s", e.id, e.kind)
	return e, nil
}

// stopCondition decides, for a given verb, whether the just-processed
// Statement marker satisfies that verb's stop condition, and which event
// kind to emit if so.
type stopCondition struct {
	check func(entry sourcemap.Entry, depth int) bool
	kind  EventKind
}

// Continue runs until the next Statement marker whose (path, line) has a
// matching breakpoint.
func (e *Engine) Continue(ctx context.Context) error {
	cond := stopCondition{
		check: func(entry sourcemap.Entry, _ int) bool {
			return e.breakpoints.HasBreakpoint(entry.Path, uint32(entry.Line))
		},
		kind: StopOnBreakpoint,
	}
	return e.stepUntil(ctx, cond)
}

// StepIn runs until the next Statement marker, unconditionally.
func (e *Engine) StepIn(ctx context.Context) error {
	cond := stopCondition{
		check: func(sourcemap.Entry, int) bool { return true },
		kind:  StopOnStep,
	}
	return e.stepUntil(ctx, cond)
}

// StepOver runs until the next Statement marker at or below the depth
// captured when the verb was invoked.
func (e *Engine) StepOver(ctx context.Context) error {
	e.mu.RLock()
	d0 := len(e.frames)
	e.mu.RUnlock()

	cond := stopCondition{
		check: func(_ sourcemap.Entry, depth int) bool { return depth <= d0 },
		kind:  StopOnStep,
	}
	return e.stepUntil(ctx, cond)
}

// StepOut runs until the next Statement marker strictly below the depth
// captured when the verb was invoked.
func (e *Engine) StepOut(ctx context.Context) error {
	e.mu.RLock()
	d0 := len(e.frames)
	e.mu.RUnlock()

	cond := stopCondition{
		check: func(_ sourcemap.Entry, depth int) bool { return depth < d0 },
		kind:  StopOnStep,
	}
	return e.stepUntil(ctx, cond)
}

// stepUntil is the single inner routine all four verbs share
// (SPEC_FULL.md §4.5). It runs synchronously to completion: either a stop
// event is emitted and it returns, or the VM terminates and the session is
// finalized.
func (e *Engine) stepUntil(ctx context.Context, cond stopCondition) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished {
		return ErrSessionFinished
	}

	// On any error exit the session ends and the emulator handle is released.
	defer func() {
		if err != nil && !e.finished {
			e.finished = true
			if derr := e.emu.Destroy(e.handle); derr != nil {
				e.logger.Printf("session %s: destroy failed: %v", e.id, derr)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		finishedStep, err := e.emu.Step(ctx, e.handle)
		if err != nil {
			return fmt.Errorf("stepping: step: %w", err)
		}
		e.metrics.StepsExecuted.Inc()

		if finishedStep {
			e.finalize(ctx)
			return nil
		}

		pos, err := e.emu.CodePos(e.handle)
		if err != nil {
			return fmt.Errorf("stepping: code pos: %w", err)
		}

		index, ok := marker.Decode(e.codeIndex, pos)
		if !ok {
			e.metrics.MarkersMissed.Inc()
			continue
		}
		e.metrics.MarkersDecoded.Inc()

		entry, ok := e.sourceMap.EntryAt(index)
		if !ok {
			continue
		}

		switch entry.Kind {
		case sourcemap.Return:
			e.popFrame()
			e.metrics.FrameDepth.Set(float64(len(e.frames)))

		case sourcemap.Catch:
			depth, err := e.emu.GetContParam(e.handle)
			if err != nil {
				return fmt.Errorf("stepping: get cont param: %w", err)
			}
			e.truncateFrames(depth)
			e.metrics.FrameDepth.Set(float64(len(e.frames)))

		case sourcemap.Statement:
			if entry.FirstStatement {
				e.pushFrame(StackFrame{Function: entry.Function, Path: entry.Path, Line: entry.Line})
				if err := e.emu.SetContParam(e.handle, len(e.frames)); err != nil {
					return fmt.Errorf("stepping: set cont param: %w", err)
				}
			}
			e.setTopLine(entry.Line)
			e.lastStatement = entry
			e.haveLastStatement = true
			e.metrics.FrameDepth.Set(float64(len(e.frames)))

			if cond.check(entry, len(e.frames)) {
				if cond.kind == StopOnBreakpoint {
					e.metrics.BreakpointsHit.Inc()
				}
				e.metrics.StopsEmitted.WithLabelValues(cond.kind.String()).Inc()
				e.bus.emit(Event{Kind: cond.kind, Frames: e.framesSnapshot()})
				return nil
			}
		}
	}
}

// finalize runs once per session: emits End, fetches the kind-specific
// result, destroys the emulator handle, and invokes finishedCallback
// exactly once. Must be called with e.mu held.
func (e *Engine) finalize(ctx context.Context) {
	e.finalizeOnce.Do(func() {
		e.finished = true

		e.bus.emit(Event{Kind: End, Frames: e.framesSnapshot()})

		result, err := e.emu.Result(e.handle)
		if err != nil {
			e.logger.Printf("session %s: result fetch failed: %v", e.id, err)
		}

		if err := e.emu.Destroy(e.handle); err != nil {
			e.logger.Printf("session %s: destroy failed: %v", e.id, err)
		}

		if e.finishedCallback != nil {
			e.finishedCallback(result)
		}

		e.logger.Printf("session %s finished", e.id)
	})
}

// Close tears the session down unconditionally, e.g. when a host aborts
// mid-session without waiting for VM termination. Safe to call after
// finalize has already run (no-op then).
func (e *Engine) Close() {
	e.mu.Lock()
	if !e.finished {
		e.finalize(context.Background())
	}
	e.mu.Unlock()
	e.bus.close()
}
