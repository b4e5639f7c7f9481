package parser

// NodeKind identifies the shape of a Node in the compile tree.
type NodeKind int

const (
	NBlock NodeKind = iota
	NIf
	NWhile
	NFor
	NBreak
	NContinue
	NReturn
	NVarDecl
	NSelfVarDecl
	NArrayVarDecl
	NParamDecl
	NFuncDecl
	NAssign
	NCompoundAssign
	NBinOp
	NUnaryOp
	NCall
	NMethodCall
	NNSMethodCall
	NIdent
	NSelf
	NMember
	NArrayIndex
	NLiteralInt
	NLiteralFloat
	NLiteralString
	NLiteralBool
	NLiteralVec3
	NCreateObject
	NDestroyObject
	NSchedule
	NExprStmt
)

// Node is a single compile-tree node. One struct serves every NodeKind;
// each kind uses the subset of fields documented below.
type Node struct {
	Kind NodeKind
	Line int

	// NIdent/NMember/NCall/NVarDecl/NParamDecl/NFuncDecl/NCreateObject:
	// the identifier text; for NLiteralString, the literal's contents.
	Text string

	// NBinOp/NUnaryOp/NCompoundAssign: operator spelling, e.g. "+", "+=".
	// NVarDecl: "array" marks a hashtable declaration.
	Op string

	// NVarDecl/NParamDecl/NFuncDecl return type, and NLiteral* kind tag,
	// expressed as the type name the parser saw (e.g. "int", "float",
	// "string", "object", "hashtable").
	TypeName string

	IntVal   int32
	FloatVal float32
	BoolVal  bool
	Vec3Val  [3]float32

	// Children, reused across kinds: Left/Right for binary forms, Cond
	// for branch conditions, Then/Else for if-arms, Body for loop/func
	// bodies, List for sequences (block statements, call args,
	// hashtable-entry keys, schedule args).
	Left, Right *Node
	Cond        *Node
	Then, Else  *Node
	Body        *Node
	List        []*Node

	// NFuncDecl: parameter declarations and the namespace the method
	// belongs to (empty for free functions).
	Params    []*Node
	Namespace string

	// NSchedule: target object expression and delay in milliseconds.
	Target   *Node
	DelaySrc int32
}

func newNode(kind NodeKind, line int) *Node {
	return &Node{Kind: kind, Line: line}
}
