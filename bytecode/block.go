package bytecode

import (
	"github.com/tinscript/tin/internal/hash"
)

// LinePair maps a word offset within a Block's Code to a source line
// number.
type LinePair struct {
	Offset int
	Line   int
}

// Block is the compiled representation of one source unit: bytecode, its
// line-number table, and the set of functions it defines. A block may
// only be destroyed once its function set is empty, i.e. no function it
// defines is still callable.
type Block struct {
	Filename     string
	FilenameHash hash.Hash

	Code  []uint32
	Lines []LinePair

	// Funcs tracks the name hashes of functions defined by this block.
	Funcs map[hash.Hash]bool
}

// NewBlock creates an empty block for filename.
func NewBlock(filename string) *Block {
	return &Block{
		Filename:     filename,
		FilenameHash: hash.Of(filename),
		Funcs:        make(map[hash.Hash]bool),
	}
}

// LineAt scans the line table linearly for the source line covering word
// offset pc. The table is short per function, so a linear scan is fine.
func (b *Block) LineAt(pc int) int {
	line := 0
	for _, p := range b.Lines {
		if p.Offset > pc {
			break
		}
		line = p.Line
	}
	return line
}

// RemoveFunc drops fn from the block's owned-function set.
func (b *Block) RemoveFunc(fn hash.Hash) {
	delete(b.Funcs, fn)
}

// Destroyable reports whether the block no longer defines any callable
// function and may be dropped.
func (b *Block) Destroyable() bool { return len(b.Funcs) == 0 }

// Op reads the opcode at pc.
func (b *Block) Op(pc int) Op { return Op(b.Code[pc]) }

// Arg reads immediate word n (0-based) following the opcode at pc.
func (b *Block) Arg(pc, n int) uint32 { return b.Code[pc+1+n] }
