// Package strtab implements the interned string table: an append-only
// pool mapping hashes to the original source-derived text. A script value
// of "string kind" carries only the hash; dereferencing it yields the text
// stored here.
package strtab

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tinscript/tin/internal/hash"
)

// Table is the context-local interned string pool. It is append-only for
// the lifetime of the owning context.
type Table struct {
	byHash map[hash.Hash]string
	order  []hash.Hash
}

// New creates an empty string table.
func New() *Table {
	return &Table{byHash: make(map[hash.Hash]string)}
}

// Intern adds s to the pool if not already present and returns its hash.
// Interning the same text twice returns the same hash and does not grow
// the pool: Lookup(Intern(s)) always yields s back.
func (t *Table) Intern(s string) hash.Hash {
	h := hash.Of(s)
	if _, ok := t.byHash[h]; !ok {
		t.byHash[h] = s
		t.order = append(t.order, h)
	}
	return h
}

// Lookup returns the text for h and whether it was found.
func (t *Table) Lookup(h hash.Hash) (string, bool) {
	if h == hash.Zero {
		return "", false
	}
	s, ok := t.byHash[h]
	return s, ok
}

// MustLookup is a convenience wrapper that returns "" for an unknown hash,
// used by value formatters that cannot otherwise fail.
func (t *Table) MustLookup(h hash.Hash) string {
	s, _ := t.Lookup(h)
	return s
}

// Len returns the number of interned strings.
func (t *Table) Len() int { return len(t.order) }

// SaveFile writes the pool to fileName, one record per hashed string:
// "0xHHHHHHHH: LLLL: <bytes>\r\n" where LLLL is the 4-digit zero-padded
// byte length.
func (t *Table) SaveFile(fileName string) (err error) {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "strtab: create failed")
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
	for _, h := range t.order {
		s := t.byHash[h]
		if _, err = fmt.Fprintf(w, "0x%08X: %04d: %s\r\n", uint32(h), len(s), s); err != nil {
			return errors.Wrap(err, "strtab: write failed")
		}
	}
	return nil
}

// LoadFile reloads a string-table file into t, keeping the hash->text
// mapping consistent across processes for debugger symbol resolution.
// Records already present are left untouched.
func (t *Table) LoadFile(fileName string) error {
	f, err := os.Open(fileName)
	if err != nil {
		return errors.Wrap(err, "strtab: open failed")
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ": ", 3)
		if len(parts) != 3 {
			return errors.Errorf("strtab: malformed record %q", line)
		}
		hv, err := strconv.ParseUint(strings.TrimPrefix(parts[0], "0x"), 16, 32)
		if err != nil {
			return errors.Wrapf(err, "strtab: malformed hash %q", parts[0])
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return errors.Wrapf(err, "strtab: malformed length %q", parts[1])
		}
		s := parts[2]
		if len(s) != n {
			return errors.Errorf("strtab: length mismatch for %q: header says %d, got %d", s, n, len(s))
		}
		h := hash.Hash(hv)
		if _, ok := t.byHash[h]; !ok {
			t.byHash[h] = s
			t.order = append(t.order, h)
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "strtab: scan failed")
	}
	return nil
}
