// Package synthetic is a deterministic, in-memory emulator.Emulator used to
// exercise the stepping engine in tests without a real TVM. It replays a
// fixed Program recorded ahead of time, the way the teacher's vm.VM in test
// mode steps through a canned instruction trace rather than a live decode
// loop.
package synthetic

import (
	"context"
	"fmt"
	"sync"

	"github.com/tvmdbg/engine/emulator"
)

// Step is one recorded instruction: the code position the emulator reports
// after executing it, and whether that was the VM's last instruction.
type Step struct {
	Pos      emulator.CodePos
	Finished bool
}

// Program is the fixed trace a synthetic session replays.
type Program struct {
	Steps  []Step
	Stack  []emulator.TupleItem
	C7     []emulator.TupleItem
	Result emulator.Result
	// SetupResultCode is returned from Setup for Transaction sessions.
	// Defaults to 1 (success) when left zero, since that's the common case
	// in tests; set it explicitly to exercise the fatal-setup-error path.
	SetupResultCode int
	// ContParamOverrides, when non-empty, is consumed one value per
	// GetContParam call instead of the value the engine last wrote with
	// SetContParam. Lets a test simulate a catch-checkpoint recorded
	// earlier than the most recent frame push.
	ContParamOverrides []int
}

// Emulator hands out sessions that each replay a copy of Program's cursor
// independently; Program data itself is shared and read-only.
type Emulator struct {
	program *Program
}

// New returns an Emulator that replays program for every session.
func New(program *Program) *Emulator {
	return &Emulator{program: program}
}

type session struct {
	mu          sync.Mutex
	program     *Program
	idx         int
	contParam   int
	overrideIdx int
	sink        func(string)
	destroyed   bool
}

var errDestroyed = fmt.Errorf("synthetic: handle destroyed")

func (e *Emulator) Setup(_ context.Context, args emulator.SetupArgs) (emulator.Handle, emulator.SetupResult, error) {
	code := e.program.SetupResultCode
	if code == 0 {
		code = 1
	}
	s := &session{program: e.program}
	return s, emulator.SetupResult{ResultCode: code}, nil
}

func (e *Emulator) Step(_ context.Context, h emulator.Handle) (bool, error) {
	s := h.(*session)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return false, errDestroyed
	}
	if s.idx >= len(s.program.Steps) {
		return true, nil
	}
	step := s.program.Steps[s.idx]
	s.idx++
	return step.Finished, nil
}

func (e *Emulator) CodePos(h emulator.Handle) (emulator.CodePos, error) {
	s := h.(*session)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx == 0 || s.idx > len(s.program.Steps) {
		return emulator.CodePos{}, fmt.Errorf("synthetic: no current position")
	}
	return s.program.Steps[s.idx-1].Pos, nil
}

func (e *Emulator) Stack(h emulator.Handle) ([]emulator.TupleItem, error) {
	s := h.(*session)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program.Stack, nil
}

func (e *Emulator) C7(h emulator.Handle) (emulator.TupleItem, error) {
	s := h.(*session)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program.C7, nil
}

func (e *Emulator) GetContParam(h emulator.Handle) (int, error) {
	s := h.(*session)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overrideIdx < len(s.program.ContParamOverrides) {
		v := s.program.ContParamOverrides[s.overrideIdx]
		s.overrideIdx++
		return v, nil
	}
	return s.contParam, nil
}

func (e *Emulator) SetContParam(h emulator.Handle, value int) error {
	s := h.(*session)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contParam = value
	return nil
}

func (e *Emulator) Result(h emulator.Handle) (emulator.Result, error) {
	s := h.(*session)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program.Result, nil
}

func (e *Emulator) Destroy(h emulator.Handle) error {
	s := h.(*session)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	return nil
}

func (e *Emulator) SetDebugLog(h emulator.Handle, sink func(string)) {
	s := h.(*session)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}
