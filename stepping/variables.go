package stepping

import (
	"errors"
	"fmt"

	"github.com/tvmdbg/engine/emulator"
)

// ErrLocalsUnavailable is returned by Locals when the engine has not yet
// stopped on or passed through a Statement marker (SPEC_FULL.md §7).
var ErrLocalsUnavailable = errors.New("stepping: locals unavailable: no statement marker observed yet")

// Variable is a single named value exposed to a host inspector.
type Variable struct {
	Name  string
	Value emulator.TupleItem
}

// Locals returns the named local variables live at the most recent
// Statement marker the engine stopped or passed through. Only meaningful
// once at least one Statement has been observed (SPEC_FULL.md §4.5).
func (e *Engine) Locals() ([]Variable, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.haveLastStatement {
		return nil, ErrLocalsUnavailable
	}

	stack, err := e.emu.Stack(e.handle)
	if err != nil {
		return nil, fmt.Errorf("stepping: locals: %w", err)
	}

	vars := make([]Variable, 0, len(e.lastStatement.Variables))
	for i, name := range e.lastStatement.Variables {
		if i >= len(stack) {
			break
		}
		vars = append(vars, Variable{Name: name, Value: stack[i]})
	}
	return vars, nil
}

// Globals pairs the source map's named globals with the VM's c7 tuple.
// c7.items[i+1] is the value for globals[i]; item 0 is the "skipped" slot
// reserved by the compiler and is only exposed, as synthetic name "$0",
// when Options.IncludeSkippedGlobal was set at Prepare time.
func (e *Engine) Globals() ([]Variable, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c7, err := e.emu.C7(e.handle)
	if err != nil {
		return nil, fmt.Errorf("stepping: globals: %w", err)
	}

	items, ok := c7.([]emulator.TupleItem)
	if !ok {
		return nil, fmt.Errorf("stepping: globals: c7 is not a tuple")
	}

	names := e.sourceMap.Globals()
	var out []Variable
	if e.opts.IncludeSkippedGlobal && len(items) > 0 {
		out = append(out, Variable{Name: "$0", Value: items[0]})
	}
	for i, g := range names {
		idx := i + 1
		if idx >= len(items) {
			out = append(out, Variable{Name: g.Name, Value: emulator.NullItem{}})
			continue
		}
		out = append(out, Variable{Name: g.Name, Value: items[idx]})
	}
	return out, nil
}
