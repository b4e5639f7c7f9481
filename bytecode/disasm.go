package bytecode

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Disassemble writes a human-readable listing of the block to w: one
// instruction per line as "offset: opcode operands", prefixed with the
// source line whenever the line table starts a new source line at that
// offset.
func (b *Block) Disassemble(w io.Writer) error {
	bw := bufio.NewWriter(w)
	lineIdx := 0
	for pc := 0; pc < len(b.Code); {
		for lineIdx < len(b.Lines) && b.Lines[lineIdx].Offset == pc {
			if _, err := fmt.Fprintf(bw, "%s:%d:\n", b.Filename, b.Lines[lineIdx].Line); err != nil {
				return errors.Wrap(err, "bytecode: disassemble write failed")
			}
			lineIdx++
		}
		op := Op(b.Code[pc])
		n := OperandCount(op)
		if pc+1+n > len(b.Code) {
			return errors.Errorf("bytecode: truncated instruction at offset %d", pc)
		}
		if _, err := fmt.Fprintf(bw, "%6d: %s", pc, op); err != nil {
			return errors.Wrap(err, "bytecode: disassemble write failed")
		}
		for i := 0; i < n; i++ {
			if _, err := fmt.Fprintf(bw, " %#x", b.Code[pc+1+i]); err != nil {
				return errors.Wrap(err, "bytecode: disassemble write failed")
			}
		}
		if _, err := fmt.Fprintln(bw); err != nil {
			return errors.Wrap(err, "bytecode: disassemble write failed")
		}
		pc += 1 + n
	}
	return errors.Wrap(bw.Flush(), "bytecode: disassemble flush failed")
}
