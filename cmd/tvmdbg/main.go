// Command tvmdbg is a small host that wires the stepping engine to a
// built-in demo program, runs one verb, and prints the call frames and the
// result (with -verbose it also prints each event it receives), the way the teacher's CLI debugger mode prints registers and source
// lines while stepping. It is not a DAP server or any other transport;
// wiring the engine into a real host protocol is explicitly out of scope
// for this repository.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tvmdbg/engine/config"
	"github.com/tvmdbg/engine/emulator"
	"github.com/tvmdbg/engine/emulator/synthetic"
	"github.com/tvmdbg/engine/logging"
	"github.com/tvmdbg/engine/marker"
	"github.com/tvmdbg/engine/metrics"
	"github.com/tvmdbg/engine/sourcemap"
	"github.com/tvmdbg/engine/stepping"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		verbose     = flag.Bool("verbose", false, "Print every stepping event")
		mode        = flag.String("mode", "", "Verb to run: continue, step-in, step-over, step-out (default: run to completion)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tvmdbg %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Default()
	m := metrics.NewEngine()

	sm, root, prog := demoProgram()
	emu := synthetic.New(prog)

	var finishedResult emulator.Result
	finished := func(r emulator.Result) { finishedResult = r }

	args := emulator.SetupArgs{Kind: emulator.KindGetMethod, CodeRoot: root}
	opts := stepping.Options{
		EventQueueCapacity:   cfg.Events.QueueCapacity,
		IncludeSkippedGlobal: cfg.Globals.IncludeSkippedGlobal,
		Logger:               logger,
		Metrics:              m,
	}

	engine, err := stepping.Prepare(context.Background(), emu, sm, args, finished, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prepare: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("session %s ready (kind=%s)\n", engine.ID(), engine.Kind())

	if *verbose {
		engine.Listen(func(ev stepping.Event) {
			fmt.Printf("[%s] event=%s frames=%d\n", engine.ID(), ev.Kind, len(ev.Frames))
		})
	}

	ctx := context.Background()
	var runErr error
	switch *mode {
	case "step-in":
		runErr = engine.StepIn(ctx)
	case "step-over":
		runErr = engine.StepOver(ctx)
	case "step-out":
		runErr = engine.StepOut(ctx)
	case "continue", "":
		runErr = engine.Continue(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown -mode %q\n", *mode)
		os.Exit(1)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", runErr)
		os.Exit(1)
	}

	for _, f := range engine.Frames() {
		fmt.Printf("  %s at %s:%d\n", f.Function, f.Path, f.Line)
	}
	fmt.Printf("result: exit=%d gas=%d\n", finishedResult.ExitCode, finishedResult.GasUsed)
}

// demoProgram builds a tiny two-function trace (a caller and a callee, one
// statement each) so the binary has something to step through without a
// real compiled contract on hand.
func demoProgram() (*sourcemap.SourceMap, emulator.Cell, *synthetic.Program) {
	sm, err := sourcemap.Parse([]byte(`{
		"locations": [
			{"file": "/demo/main.fc", "line": 1, "func": "main", "first_stmt": true},
			{"file": "/demo/main.fc", "line": 2, "func": "helper", "first_stmt": true}
		]
	}`))
	if err != nil {
		panic(err)
	}

	hash := [32]byte{0xDE, 0xAD}
	w := newDemoWriter()
	var positions []emulator.CodePos
	for _, di := range []int{0, 1} {
		offset := w.bitLen()
		bitLen, data := marker.Encode(di)
		w.append(data, bitLen)
		positions = append(positions, emulator.CodePos{Hash: hash, Offset: offset})
	}

	cell := &demoCell{hash: hash, data: w.bytes(), bitLen: w.bitLen()}
	prog := &synthetic.Program{
		Steps: []synthetic.Step{
			{Pos: positions[0]},
			{Pos: positions[1]},
			{Finished: true},
		},
		Result: emulator.Result{ExitCode: 0},
	}
	return sm, cell, prog
}

type demoCell struct {
	hash   [32]byte
	data   []byte
	bitLen int
}

func (c *demoCell) Hash() [32]byte            { return c.hash }
func (c *demoCell) Bits() (int, []byte)       { return c.bitLen, c.data }
func (c *demoCell) Children() []emulator.Cell { return nil }

type demoWriter struct {
	bits []byte
}

func newDemoWriter() *demoWriter { return &demoWriter{} }

func (w *demoWriter) append(data []byte, bitLen int) {
	for i := 0; i < bitLen; i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8)
		w.bits = append(w.bits, (data[byteIdx]>>bitIdx)&1)
	}
}

func (w *demoWriter) bitLen() int { return len(w.bits) }

func (w *demoWriter) bytes() []byte {
	out := make([]byte, (len(w.bits)+7)/8)
	for i, bit := range w.bits {
		if bit == 0 {
			continue
		}
		out[i/8] |= 1 << uint(7-(i%8))
	}
	return out
}
