// Package types implements the type registry and the typed Value cell:
// the closed set of value kinds, their text<->value conversions, and the
// implicit assignment-conversion rules.
package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tinscript/tin/internal/hash"
)

// Kind is the closed set of value kinds. The first seven are VM-internal:
// Null, Void and the five "reference kinds" (Resolve..HashtableVarRef)
// used only on the VM's operand stack; the rest are "first-class" kinds
// that may be stored in a variable.
type Kind uint8

const (
	Null Kind = iota
	Void
	Resolve         // unresolved reference, kind decided at push time
	StackVar        // reference to a local by stack index
	LocalVar        // reference to a local/global by name hash
	MemberRef       // reference to an object member
	HashtableVarRef // reference to a hashtable entry
	Hashtable
	Object
	String
	Int
	Bool
	Float
	Vec3
)

var kindNames = [...]string{
	Null: "null", Void: "void", Resolve: "resolve", StackVar: "stack-var",
	LocalVar: "local-var", MemberRef: "member-ref", HashtableVarRef: "hashtable-var-ref",
	Hashtable: "hashtable", Object: "object", String: "string", Int: "int",
	Bool: "bool", Float: "float", Vec3: "vec3",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsReference reports whether k is one of the VM-internal reference kinds
// that must be resolved before use as a value.
func (k Kind) IsReference() bool {
	return k >= Resolve && k <= HashtableVarRef
}

// IsFirstClass reports whether k may be stored in a variable.
func (k Kind) IsFirstClass() bool {
	return k >= Hashtable && k <= Vec3
}

// vec3 is a 3-component float POD, the one aggregate first-class kind.
type vec3 struct{ X, Y, Z float32 }

var kindByName = map[string]Kind{
	"int": Int, "float": Float, "bool": Bool, "string": String,
	"object": Object, "hashtable": Hashtable, "vec3": Vec3,
}

// KindFromName maps a declared type name to its Kind. A name outside the
// builtin set (a registered class name) is an object-typed declaration.
func KindFromName(name string) Kind {
	if k, ok := kindByName[name]; ok {
		return k
	}
	return Object
}

// VarRef is implemented by variable-table entries so that a Hashtable
// value can hold entries without this package depending on the symbol
// table package (which itself depends on types.Value).
type VarRef interface {
	Get() Value
	Set(Value)
	// DeclaredKind is the kind assignment converts incoming values to
	// before Set is called: a = b converts b to a's declared kind.
	DeclaredKind() Kind
}

// Value is a tagged cell: every kind's payload lives in one of the fields
// below, selected by Kind.
type Value struct {
	Kind Kind

	I     int32     // Int, Bool (0/1)
	F     float32   // Float
	H     hash.Hash // String text hash; debug/name hash for reference kinds
	Vec   vec3      // Vec3
	ObjID uint32    // Object id (Object kind)
	Table map[hash.Hash]VarRef // Hashtable entries

	// Ref is populated for the five reference kinds (Resolve, StackVar,
	// LocalVar, MemberRef, HashtableVarRef) so that resolution and
	// write-through assignment are uniform regardless of which table the
	// referenced cell actually lives in.
	Ref VarRef
}

// NewRef builds a reference-kind Value bound to ref, tagged with kind for
// diagnostics (a fault message can report "unknown local-var" vs "unknown
// member-ref" etc. without the VM needing to re-derive it).
func NewRef(kind Kind, nameHash hash.Hash, ref VarRef) Value {
	return Value{Kind: kind, H: nameHash, Ref: ref}
}

// Resolve dereferences a reference-kind value to its held first-class
// value. Non-reference values are returned unchanged.
func (v Value) Resolve() Value {
	if v.Kind.IsReference() && v.Ref != nil {
		return v.Ref.Get()
	}
	return v
}

// Assign writes val through a reference-kind value (the left cell of an
// assignment is never itself resolved, only written through).
func (v Value) Assign(val Value) bool {
	if v.Kind.IsReference() && v.Ref != nil {
		v.Ref.Set(val)
		return true
	}
	return false
}

// NullValue is the zero Value of kind Null.
var NullValue = Value{Kind: Null}

// NewInt, NewBool, NewFloat, NewString, NewVec3, NewObject construct
// first-class values.
func NewInt(v int32) Value   { return Value{Kind: Int, I: v} }
func NewBool(v bool) Value {
	if v {
		return Value{Kind: Bool, I: 1}
	}
	return Value{Kind: Bool, I: 0}
}
func NewFloat(v float32) Value      { return Value{Kind: Float, F: v} }
func NewString(h hash.Hash) Value   { return Value{Kind: String, H: h} }
func NewVec3(x, y, z float32) Value { return Value{Kind: Vec3, Vec: vec3{x, y, z}} }
func NewObject(id uint32) Value     { return Value{Kind: Object, ObjID: id} }
func NewHashtable() Value           { return Value{Kind: Hashtable, Table: make(map[hash.Hash]VarRef)} }

// Truthy returns the truthiness of a Bool, Int or Float value; every
// other kind is false.
func (v Value) Truthy() bool {
	switch v.Kind {
	case Bool, Int:
		return v.I != 0
	case Float:
		return v.F != 0
	default:
		return false
	}
}

// Registry resolves string hashes to text for value formatting. A
// *strtab.Table satisfies this trivially; kept as a narrow interface so
// this package never imports strtab.
type Registry interface {
	Lookup(h hash.Hash) (string, bool)
	Intern(s string) hash.Hash
}

// Format renders v to text. Floats render with 4 fractional digits, so
// value -> string -> value round-trips at that precision.
func Format(v Value, reg Registry) string {
	switch v.Kind {
	case Null:
		return "null"
	case Void:
		return ""
	case Bool:
		return strconv.FormatBool(v.I != 0)
	case Int:
		return strconv.Itoa(int(v.I))
	case Float:
		return strconv.FormatFloat(float64(v.F), 'f', 4, 32)
	case String:
		s, _ := reg.Lookup(v.H)
		return s
	case Vec3:
		return strconv.FormatFloat(float64(v.Vec.X), 'f', 4, 32) + " " +
			strconv.FormatFloat(float64(v.Vec.Y), 'f', 4, 32) + " " +
			strconv.FormatFloat(float64(v.Vec.Z), 'f', 4, 32)
	case Object:
		return strconv.Itoa(int(v.ObjID))
	case Hashtable:
		return "hashtable"
	default:
		return ""
	}
}

// Parse converts textual source (a literal or a formatted value) into a
// Value of the requested kind.
func Parse(k Kind, text string, reg Registry) Value {
	switch k {
	case Int:
		n, _ := strconv.ParseInt(strings.TrimSuffix(text, "f"), 0, 32)
		return NewInt(int32(n))
	case Bool:
		return NewBool(text == "true" || text == "1")
	case Float:
		f, _ := strconv.ParseFloat(strings.TrimSuffix(text, "f"), 32)
		return NewFloat(float32(f))
	case String:
		return NewString(reg.Intern(text))
	case Vec3:
		parts := strings.Fields(text)
		var x, y, z float64
		if len(parts) > 0 {
			x, _ = strconv.ParseFloat(parts[0], 32)
		}
		if len(parts) > 1 {
			y, _ = strconv.ParseFloat(parts[1], 32)
		}
		if len(parts) > 2 {
			z, _ = strconv.ParseFloat(parts[2], 32)
		}
		return NewVec3(float32(x), float32(y), float32(z))
	default:
		return NullValue
	}
}

// Convert coerces src into a value of kind dst, used for assignment and
// for reading a hashtable/member entry through a different declared
// kind. Conversions are lossy-silent: float->int truncates, and text
// that does not parse as the target kind (e.g. "foo" -> int) yields a
// zero value of dst's kind rather than an error.
// Vector<->scalar conversions are undefined and report an error.
func Convert(dst Kind, src Value, reg Registry) (Value, error) {
	if src.Kind == dst {
		return src, nil
	}
	if (dst == Vec3) != (src.Kind == Vec3) {
		return Value{Kind: dst}, fmt.Errorf("types: cannot convert %s to %s", src.Kind, dst)
	}
	switch dst {
	case Int:
		switch src.Kind {
		case Bool:
			return NewInt(src.I), nil
		case Float:
			return NewInt(int32(src.F)), nil
		case String:
			s, _ := reg.Lookup(src.H)
			n, _ := strconv.ParseInt(strings.TrimSpace(s), 0, 32)
			return NewInt(int32(n)), nil
		default:
			return NewInt(0), nil
		}
	case Bool:
		switch src.Kind {
		case Int:
			return NewBool(src.I != 0), nil
		case Float:
			return NewBool(src.F != 0), nil
		case String:
			s, _ := reg.Lookup(src.H)
			return NewBool(s != ""), nil
		default:
			return NewBool(false), nil
		}
	case Float:
		switch src.Kind {
		case Int, Bool:
			return NewFloat(float32(src.I)), nil
		case String:
			s, _ := reg.Lookup(src.H)
			f, _ := strconv.ParseFloat(strings.TrimSpace(s), 32)
			return NewFloat(float32(f)), nil
		default:
			return NewFloat(0), nil
		}
	case String:
		return NewString(reg.Intern(Format(src, reg))), nil
	case Object, Hashtable, Null, Void:
		return Value{Kind: dst}, nil
	default:
		return Value{Kind: dst}, fmt.Errorf("types: cannot convert %s to %s", src.Kind, dst)
	}
}

// Size returns the fixed byte size for first-class kinds.
func Size(k Kind) int {
	switch k {
	case Null, Void:
		return 0
	case Bool:
		return 1
	case Int, Float, String, Object:
		return 4
	case Vec3:
		return 12
	case Hashtable:
		return 8 // map header width, POD layout purposes only
	default:
		return 4
	}
}
