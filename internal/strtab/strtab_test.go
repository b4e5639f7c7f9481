package strtab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tinscript/tin/internal/hash"
)

func TestInternLookup(t *testing.T) {
	tab := New()
	h := tab.Intern("hello")
	s, ok := tab.Lookup(h)
	if !ok || s != "hello" {
		t.Fatalf("Lookup(%#x) = %q, %v", h, s, ok)
	}
	if tab.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tab.Len())
	}
}

func TestInternIsIdempotent(t *testing.T) {
	tab := New()
	h1 := tab.Intern("once")
	h2 := tab.Intern("once")
	if h1 != h2 {
		t.Fatalf("re-interning returned a different hash: %#x vs %#x", h1, h2)
	}
	if tab.Len() != 1 {
		t.Fatalf("pool grew on re-intern: Len = %d", tab.Len())
	}
}

// Identifiers hash case-insensitively, so the first spelling interned is
// the one Lookup returns for every alias.
func TestCaseInsensitiveAlias(t *testing.T) {
	tab := New()
	h1 := tab.Intern("Fib")
	h2 := tab.Intern("fib")
	if h1 != h2 {
		t.Fatalf("case aliases got different hashes")
	}
	s, _ := tab.Lookup(h1)
	if s != "Fib" {
		t.Fatalf("Lookup returned %q, want first-interned spelling \"Fib\"", s)
	}
}

func TestLookupZero(t *testing.T) {
	tab := New()
	if _, ok := tab.Lookup(hash.Zero); ok {
		t.Fatal("Lookup(0) must report not-found")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tab := New()
	words := []string{"Print", "hello world", "x", ""}
	hashes := make([]hash.Hash, len(words))
	for i, w := range words {
		hashes[i] = tab.Intern(w)
	}

	path := filepath.Join(t.TempDir(), "strings.txt")
	if err := tab.SaveFile(path); err != nil {
		t.Fatal(err)
	}

	loaded := New()
	if err := loaded.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	for i, w := range words {
		got, ok := loaded.Lookup(hashes[i])
		if !ok || got != w {
			t.Errorf("after reload, Lookup(%#x) = %q, %v; want %q", hashes[i], got, ok, w)
		}
	}
}

func TestSaveFileFormat(t *testing.T) {
	tab := New()
	h := tab.Intern("abc")
	path := filepath.Join(t.TempDir(), "strings.txt")
	if err := tab.SaveFile(path); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "0x" + hexUpper(uint32(h)) + ": 0003: abc\r\n"
	if string(b) != want {
		t.Fatalf("record = %q, want %q", b, want)
	}
}

func hexUpper(v uint32) string {
	const digits = "0123456789ABCDEF"
	var out [8]byte
	for i := 7; i >= 0; i-- {
		out[i] = digits[v&0xF]
		v >>= 4
	}
	return string(out[:])
}

func TestLoadFileRejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	for name, contents := range map[string]string{
		"nofields.txt": "garbage line\r\n",
		"badlen.txt":   "0x0000ABCD: 0009: abc\r\n",
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := New().LoadFile(path); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
