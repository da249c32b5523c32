package stepping

import (
	"github.com/tvmdbg/engine/emulator"
	"github.com/tvmdbg/engine/marker"
)

// traceCell is a single-cell code graph whose payload is every marker in
// order, back to back. It lets a test build a code-cell index and a
// synthetic.Program's CodePos list from the same list of DebugInfoIndex
// values in one place.
type traceCell struct {
	hash [32]byte
	data []byte
	len  int
}

func (c *traceCell) Hash() [32]byte            { return c.hash }
func (c *traceCell) Bits() (int, []byte)       { return c.len, c.data }
func (c *traceCell) Children() []emulator.Cell { return nil }

// buildTrace encodes one marker per entry in indices, concatenated into a
// single cell, and returns that cell plus the CodePos offset of each marker
// in encounter order.
func buildTrace(indices []int) (emulator.Cell, []emulator.CodePos) {
	hash := [32]byte{0xAA}
	w := newTraceWriter()

	var positions []emulator.CodePos
	for _, di := range indices {
		offset := w.bitLen()
		bitLen, data := marker.Encode(di)
		w.appendBits(data, bitLen)
		positions = append(positions, emulator.CodePos{Hash: hash, Offset: offset})
	}

	cell := &traceCell{hash: hash, data: w.bytes(), len: w.bitLen()}
	return cell, positions
}

// traceWriter concatenates several MSB-first bit strings.
type traceWriter struct {
	bits []byte
}

func newTraceWriter() *traceWriter {
	return &traceWriter{}
}

func (w *traceWriter) appendBits(data []byte, bitLen int) {
	for i := 0; i < bitLen; i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8)
		bit := (data[byteIdx] >> bitIdx) & 1
		w.bits = append(w.bits, bit)
	}
}

func (w *traceWriter) bitLen() int {
	return len(w.bits)
}

func (w *traceWriter) bytes() []byte {
	out := make([]byte, (len(w.bits)+7)/8)
	for i, bit := range w.bits {
		if bit == 0 {
			continue
		}
		out[i/8] |= 1 << uint(7-(i%8))
	}
	return out
}
