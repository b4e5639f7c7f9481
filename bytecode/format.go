package bytecode

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Version is the current on-disk bytecode format version. A mismatched
// version invalidates the cache and forces recompilation.
const Version uint32 = 1

// ErrVersionMismatch is wrapped into the error Load returns when the
// on-disk format version does not match Version.
var ErrVersionMismatch = errors.New("bytecode: version mismatch")

// Save writes b's bytecode and line table to fileName as little-endian
// 32-bit words: header [version, instr-count, line-count], then the
// instruction words, then the line table packed as
// (offset<<16 | line&0xFFFF) per word.
func (b *Block) Save(fileName string) (err error) {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "bytecode: create failed")
	}
	w := bufio.NewWriter(f)
	defer func() {
		if ferr := w.Flush(); err == nil {
			err = ferr
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	header := [3]uint32{Version, uint32(len(b.Code)), uint32(len(b.Lines))}
	if err = binary.Write(w, binary.LittleEndian, header[:]); err != nil {
		return errors.Wrap(err, "bytecode: write header failed")
	}
	if err = binary.Write(w, binary.LittleEndian, b.Code); err != nil {
		return errors.Wrap(err, "bytecode: write instructions failed")
	}
	packed := make([]uint32, len(b.Lines))
	for i, p := range b.Lines {
		packed[i] = uint32(p.Offset)<<16 | uint32(p.Line)&0xFFFF
	}
	if err = binary.Write(w, binary.LittleEndian, packed); err != nil {
		return errors.Wrap(err, "bytecode: write line table failed")
	}
	return nil
}

// Load reads a previously Saved block body into a Block for filename
// (the Filename/FilenameHash fields are set from the filename argument,
// not stored in the file). Returns an error wrapping ErrVersionMismatch
// if the file's version does not match Version.
func Load(fileName, filename string) (*Block, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: open failed")
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var header [3]uint32
	if err := binary.Read(r, binary.LittleEndian, header[:]); err != nil {
		return nil, errors.Wrap(err, "bytecode: read header failed")
	}
	if header[0] != Version {
		return nil, errors.Wrapf(ErrVersionMismatch, "bytecode: file version %d, expected %d", header[0], Version)
	}
	instrCount, lineCount := int(header[1]), int(header[2])

	b := NewBlock(filename)
	b.Code = make([]uint32, instrCount)
	if err := binary.Read(r, binary.LittleEndian, b.Code); err != nil {
		return nil, errors.Wrap(err, "bytecode: read instructions failed")
	}
	packed := make([]uint32, lineCount)
	if err := binary.Read(r, binary.LittleEndian, packed); err != nil {
		return nil, errors.Wrap(err, "bytecode: read line table failed")
	}
	b.Lines = make([]LinePair, lineCount)
	for i, w := range packed {
		b.Lines[i] = LinePair{Offset: int(w >> 16), Line: int(w & 0xFFFF)}
	}
	return b, nil
}

// LoadIfFresh loads the cached binary at cachePath if it exists and is
// at least as new as sourcePath. Returns nil, nil if the cache is stale,
// missing, truncated or version-mismatched; the caller recompiles and
// regenerates it.
func LoadIfFresh(cachePath, sourcePath, filename string) (*Block, error) {
	cst, err := os.Stat(cachePath)
	if err != nil {
		return nil, nil
	}
	sst, err := os.Stat(sourcePath)
	if err != nil {
		return nil, errors.Wrap(err, "bytecode: stat source failed")
	}
	if sst.ModTime().After(cst.ModTime()) {
		return nil, nil
	}
	b, err := Load(cachePath, filename)
	switch errors.Cause(err) {
	case nil:
		return b, nil
	case ErrVersionMismatch, io.EOF, io.ErrUnexpectedEOF:
		return nil, nil
	default:
		return nil, err
	}
}
