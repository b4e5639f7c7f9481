package vm

import (
	"math"

	"github.com/pkg/errors"

	"github.com/tinscript/tin/bytecode"
	"github.com/tinscript/tin/internal/types"
)

// errDivByZero marks integer division/modulo by zero so faultKindFor can
// report "division-by-zero" rather than the generic "type-incompatible".
var errDivByZero = errors.New("integer division by zero")

var binarySymbol = map[bytecode.Op]string{
	bytecode.OpAdd: "+", bytecode.OpSub: "-", bytecode.OpMult: "*", bytecode.OpDiv: "/", bytecode.OpMod: "%",
	bytecode.OpBitLeftShift: "<<", bytecode.OpBitRightShift: ">>",
	bytecode.OpBitAnd: "&", bytecode.OpBitOr: "|", bytecode.OpBitXor: "^",
}

var compoundSymbol = map[bytecode.Op]string{
	bytecode.OpAssignAdd: "+", bytecode.OpAssignSub: "-", bytecode.OpAssignMult: "*",
	bytecode.OpAssignDiv: "/", bytecode.OpAssignMod: "%",
	bytecode.OpAssignLeftShift: "<<", bytecode.OpAssignRightShift: ">>",
	bytecode.OpAssignBitAnd: "&", bytecode.OpAssignBitOr: "|", bytecode.OpAssignBitXor: "^",
}

var compareSymbol = map[bytecode.Op]string{
	bytecode.OpCompareEqual: "==", bytecode.OpCompareNotEqual: "!=",
	bytecode.OpCompareLess: "<", bytecode.OpCompareLessEqual: "<=",
	bytecode.OpCompareGreater: ">", bytecode.OpCompareGreaterEqual: ">=",
}

// bitwiseSymbol marks operators that always operate on Int, with non-Int
// operands converted first.
var bitwiseSymbol = map[string]bool{"<<": true, ">>": true, "&": true, "|": true, "^": true}

// arith evaluates a and b under the binary operator named sym. Vec3
// operands take the vector path; otherwise either operand being Float
// promotes both to Float, and Bool is treated as Int.
func arith(sym string, a, b types.Value) (types.Value, error) {
	if a.Kind == types.Vec3 || b.Kind == types.Vec3 {
		return vecArith(sym, a, b)
	}
	if bitwiseSymbol[sym] {
		ai, ok1 := toInt(a)
		bi, ok2 := toInt(b)
		if !ok1 || !ok2 {
			return types.Value{}, errors.Errorf("operator %q requires integer operands", sym)
		}
		return intArith(sym, ai, bi)
	}
	if a.Kind == types.Float || b.Kind == types.Float {
		af, ok1 := toFloat(a)
		bf, ok2 := toFloat(b)
		if !ok1 || !ok2 {
			return types.Value{}, errors.Errorf("operator %q requires numeric operands", sym)
		}
		return floatArith(sym, af, bf)
	}
	ai, ok1 := toInt(a)
	bi, ok2 := toInt(b)
	if !ok1 || !ok2 {
		return types.Value{}, errors.Errorf("operator %q requires numeric operands", sym)
	}
	return intArith(sym, ai, bi)
}

func toInt(v types.Value) (int32, bool) {
	switch v.Kind {
	case types.Int, types.Bool:
		return v.I, true
	case types.Float:
		return int32(v.F), true
	default:
		return 0, false
	}
}

func toFloat(v types.Value) (float32, bool) {
	switch v.Kind {
	case types.Float:
		return v.F, true
	case types.Int, types.Bool:
		return float32(v.I), true
	default:
		return 0, false
	}
}

func intArith(sym string, a, b int32) (types.Value, error) {
	switch sym {
	case "+":
		return types.NewInt(a + b), nil
	case "-":
		return types.NewInt(a - b), nil
	case "*":
		return types.NewInt(a * b), nil
	case "/":
		if b == 0 {
			return types.NewInt(0), errDivByZero
		}
		return types.NewInt(a / b), nil
	case "%":
		if b == 0 {
			return types.NewInt(0), errDivByZero
		}
		return types.NewInt(a % b), nil
	case "<<":
		return types.NewInt(a << uint32(b)), nil
	case ">>":
		return types.NewInt(a >> uint32(b)), nil
	case "&":
		return types.NewInt(a & b), nil
	case "|":
		return types.NewInt(a | b), nil
	case "^":
		return types.NewInt(a ^ b), nil
	default:
		return types.Value{}, errors.Errorf("unsupported integer operator %q", sym)
	}
}

// floatArith never faults on division/modulo by zero: Go float division
// by zero yields +/-Inf and math.Mod(x, 0) yields NaN, which is the
// recorded behavior for this runtime rather than a fault.
func floatArith(sym string, a, b float32) (types.Value, error) {
	switch sym {
	case "+":
		return types.NewFloat(a + b), nil
	case "-":
		return types.NewFloat(a - b), nil
	case "*":
		return types.NewFloat(a * b), nil
	case "/":
		return types.NewFloat(a / b), nil
	case "%":
		return types.NewFloat(float32(math.Mod(float64(a), float64(b)))), nil
	default:
		return types.Value{}, errors.Errorf("unsupported float operator %q", sym)
	}
}

func vecArith(sym string, a, b types.Value) (types.Value, error) {
	switch sym {
	case "+", "-":
		if a.Kind != types.Vec3 || b.Kind != types.Vec3 {
			return types.Value{}, errors.Errorf("vec3 %q requires two vec3 operands", sym)
		}
		v, w := a.Vec, b.Vec
		if sym == "+" {
			return types.NewVec3(v.X+w.X, v.Y+w.Y, v.Z+w.Z), nil
		}
		return types.NewVec3(v.X-w.X, v.Y-w.Y, v.Z-w.Z), nil
	case "*":
		if a.Kind == types.Vec3 && b.Kind != types.Vec3 {
			s, ok := toFloat(b)
			if !ok {
				return types.Value{}, errors.New("vec3 scalar multiply requires a numeric operand")
			}
			v := a.Vec
			return types.NewVec3(v.X*s, v.Y*s, v.Z*s), nil
		}
		if b.Kind == types.Vec3 && a.Kind != types.Vec3 {
			s, ok := toFloat(a)
			if !ok {
				return types.Value{}, errors.New("vec3 scalar multiply requires a numeric operand")
			}
			v := b.Vec
			return types.NewVec3(v.X*s, v.Y*s, v.Z*s), nil
		}
		return types.Value{}, errors.New("vec3 * vec3 is not defined")
	default:
		return types.Value{}, errors.Errorf("operator %q is not defined for vec3", sym)
	}
}

// compare evaluates a and b under a comparison operator. Strings compare
// lexically on their interned text; Vec3 supports only equality/
// inequality (componentwise); everything else promotes through arith's
// numeric rules.
func compare(sym string, a, b types.Value, reg types.Registry) (types.Value, error) {
	if a.Kind == types.String || b.Kind == types.String {
		as := types.Format(a, reg)
		bs := types.Format(b, reg)
		switch sym {
		case "==":
			return types.NewBool(as == bs), nil
		case "!=":
			return types.NewBool(as != bs), nil
		case "<":
			return types.NewBool(as < bs), nil
		case "<=":
			return types.NewBool(as <= bs), nil
		case ">":
			return types.NewBool(as > bs), nil
		case ">=":
			return types.NewBool(as >= bs), nil
		}
	}
	if a.Kind == types.Vec3 || b.Kind == types.Vec3 {
		if a.Kind != types.Vec3 || b.Kind != types.Vec3 {
			return types.Value{}, errors.New("vec3 can only be compared to another vec3")
		}
		eq := a.Vec == b.Vec
		switch sym {
		case "==":
			return types.NewBool(eq), nil
		case "!=":
			return types.NewBool(!eq), nil
		default:
			return types.Value{}, errors.Errorf("operator %q is not defined for vec3", sym)
		}
	}
	af, ok1 := toFloat(a)
	bf, ok2 := toFloat(b)
	if !ok1 || !ok2 {
		return types.Value{}, errors.Errorf("operator %q requires comparable operands", sym)
	}
	switch sym {
	case "==":
		return types.NewBool(af == bf), nil
	case "!=":
		return types.NewBool(af != bf), nil
	case "<":
		return types.NewBool(af < bf), nil
	case "<=":
		return types.NewBool(af <= bf), nil
	case ">":
		return types.NewBool(af > bf), nil
	case ">=":
		return types.NewBool(af >= bf), nil
	default:
		return types.Value{}, errors.Errorf("unsupported comparison operator %q", sym)
	}
}

// unary evaluates a unary opcode against its single popped operand.
func unary(op bytecode.Op, a types.Value) (types.Value, error) {
	switch op {
	case bytecode.OpUnaryNeg:
		switch a.Kind {
		case types.Int, types.Bool:
			return types.NewInt(-a.I), nil
		case types.Float:
			return types.NewFloat(-a.F), nil
		case types.Vec3:
			return types.NewVec3(-a.Vec.X, -a.Vec.Y, -a.Vec.Z), nil
		default:
			return types.Value{}, errors.Errorf("unary - is not defined for %s", a.Kind)
		}
	case bytecode.OpUnaryPos:
		return a, nil
	case bytecode.OpUnaryNot:
		return types.NewBool(!a.Truthy()), nil
	case bytecode.OpUnaryBitInvert:
		i, ok := toInt(a)
		if !ok {
			return types.Value{}, errors.Errorf("unary ~ is not defined for %s", a.Kind)
		}
		return types.NewInt(^i), nil
	default:
		return types.Value{}, errors.Errorf("unsupported unary opcode %s", op)
	}
}
