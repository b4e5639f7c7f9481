package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *Node {
	t.Helper()
	p := New(strings.NewReader(src), "test.tin")
	tree, err := p.Parse()
	require.NoError(t, err)
	return tree
}

func parseErr(t *testing.T, src string) error {
	t.Helper()
	p := New(strings.NewReader(src), "test.tin")
	_, err := p.Parse()
	require.Error(t, err)
	return err
}

func firstExpr(t *testing.T, src string) *Node {
	t.Helper()
	tree := parse(t, src)
	require.NotEmpty(t, tree.List)
	stmt := tree.List[0]
	require.Equal(t, NExprStmt, stmt.Kind)
	return stmt.Left
}

func TestPrecedenceMulBindsTighter(t *testing.T) {
	e := firstExpr(t, "3 + 4 * 5;")
	require.Equal(t, NBinOp, e.Kind)
	assert.Equal(t, "+", e.Op)
	require.Equal(t, NBinOp, e.Right.Kind)
	assert.Equal(t, "*", e.Right.Op)
	assert.Equal(t, int32(3), e.Left.IntVal)
}

func TestPrecedenceLeftAssociative(t *testing.T) {
	e := firstExpr(t, "10 - 4 - 3;")
	// (10 - 4) - 3
	require.Equal(t, "-", e.Op)
	require.Equal(t, NBinOp, e.Left.Kind)
	assert.Equal(t, int32(3), e.Right.IntVal)
}

// || and && share one precedence level, so a mixed chain groups left to
// right.
func TestBooleanOperatorsShareOneLevel(t *testing.T) {
	e := firstExpr(t, "a || b && c;")
	require.Equal(t, NBinOp, e.Kind)
	assert.Equal(t, "&&", e.Op)
	require.Equal(t, NBinOp, e.Left.Kind)
	assert.Equal(t, "||", e.Left.Op)
	assert.Equal(t, "c", e.Right.Text)
}

func TestPrecedenceComparisonOverBitwise(t *testing.T) {
	// a == b & c parses as (a == b) & c: & binds looser than ==
	e := firstExpr(t, "a == b & c;")
	require.Equal(t, "&", e.Op)
	require.Equal(t, NBinOp, e.Left.Kind)
	assert.Equal(t, "==", e.Left.Op)
}

func TestShiftBindsTighterThanComparison(t *testing.T) {
	e := firstExpr(t, "a << 1 < b;")
	require.Equal(t, "<", e.Op)
	require.Equal(t, NBinOp, e.Left.Kind)
	assert.Equal(t, "<<", e.Left.Op)
}

func TestParenthesesOverridePrecedence(t *testing.T) {
	e := firstExpr(t, "(3 + 4) * 5;")
	require.Equal(t, "*", e.Op)
	require.Equal(t, NBinOp, e.Left.Kind)
	assert.Equal(t, "+", e.Left.Op)
}

func TestAssignmentIsRightAssociative(t *testing.T) {
	e := firstExpr(t, "a = b = 1;")
	require.Equal(t, NAssign, e.Kind)
	require.Equal(t, NAssign, e.Right.Kind)
	assert.Equal(t, "b", e.Right.Left.Text)
}

func TestCompoundAssignment(t *testing.T) {
	e := firstExpr(t, "a += 2;")
	require.Equal(t, NCompoundAssign, e.Kind)
	assert.Equal(t, "+=", e.Op)
}

func TestUnaryChain(t *testing.T) {
	e := firstExpr(t, "!-a;")
	require.Equal(t, NUnaryOp, e.Kind)
	assert.Equal(t, "!", e.Op)
	require.Equal(t, NUnaryOp, e.Left.Kind)
	assert.Equal(t, "-", e.Left.Op)
}

func TestVarDeclWithInitializer(t *testing.T) {
	tree := parse(t, "int x = 3;")
	d := tree.List[0]
	require.Equal(t, NVarDecl, d.Kind)
	assert.Equal(t, "int", d.TypeName)
	assert.Equal(t, "x", d.Text)
	require.NotNil(t, d.Right)
	assert.Equal(t, int32(3), d.Right.IntVal)
}

func TestHashtableDecl(t *testing.T) {
	tree := parse(t, "hashtable h[];")
	d := tree.List[0]
	require.Equal(t, NVarDecl, d.Kind)
	assert.Equal(t, "array", d.Op)
}

func TestHashtableEntryDecl(t *testing.T) {
	tree := parse(t, `int h["a", i];`)
	d := tree.List[0]
	require.Equal(t, NArrayVarDecl, d.Kind)
	assert.Equal(t, "int", d.TypeName)
	assert.Equal(t, "h", d.Text)
	require.Len(t, d.List, 2)
	assert.Equal(t, NLiteralString, d.List[0].Kind)
	assert.Equal(t, NIdent, d.List[1].Kind)
}

func TestSelfMemberDecl(t *testing.T) {
	tree := parse(t, "float self.speed = 1.5;")
	d := tree.List[0]
	require.Equal(t, NSelfVarDecl, d.Kind)
	assert.Equal(t, "speed", d.Text)
	require.NotNil(t, d.Right)
}

func TestFuncDecl(t *testing.T) {
	tree := parse(t, `
		int Add(int a, int b) {
			return a + b;
		}
	`)
	f := tree.List[0]
	require.Equal(t, NFuncDecl, f.Kind)
	assert.Equal(t, "Add", f.Text)
	assert.Empty(t, f.Namespace)
	require.Len(t, f.Params, 2)
	assert.Equal(t, "a", f.Params[0].Text)
	require.Len(t, f.Body.List, 1)
	assert.Equal(t, NReturn, f.Body.List[0].Kind)
}

func TestMethodDecl(t *testing.T) {
	tree := parse(t, `
		int Npc::Update(float dt) {
			return 0;
		}
	`)
	f := tree.List[0]
	require.Equal(t, NFuncDecl, f.Kind)
	assert.Equal(t, "Npc", f.Namespace)
	assert.Equal(t, "Update", f.Text)
}

func TestIfElseChain(t *testing.T) {
	tree := parse(t, `
		if (a < 1) { x = 1; }
		else if (a < 2) { x = 2; }
		else { x = 3; }
	`)
	n := tree.List[0]
	require.Equal(t, NIf, n.Kind)
	require.NotNil(t, n.Else)
	require.Equal(t, NIf, n.Else.Kind)
	require.NotNil(t, n.Else.Else)
}

func TestForLoop(t *testing.T) {
	tree := parse(t, "for (int i = 0; i < 10; i += 1) { x = i; }")
	n := tree.List[0]
	require.Equal(t, NFor, n.Kind)
	assert.Equal(t, NVarDecl, n.Left.Kind)
	assert.Equal(t, NBinOp, n.Cond.Kind)
	assert.Equal(t, NExprStmt, n.Right.Kind)
	assert.Equal(t, NBlock, n.Body.Kind)
}

func TestWhileLoop(t *testing.T) {
	tree := parse(t, "while (n > 0) { n -= 1; }")
	n := tree.List[0]
	require.Equal(t, NWhile, n.Kind)
	require.NotNil(t, n.Cond)
}

func TestMemberAccessChain(t *testing.T) {
	e := firstExpr(t, "a.b.c;")
	require.Equal(t, NMember, e.Kind)
	assert.Equal(t, "c", e.Text)
	require.Equal(t, NMember, e.Left.Kind)
	assert.Equal(t, "b", e.Left.Text)
}

func TestMethodCallOnMember(t *testing.T) {
	e := firstExpr(t, "a.b.Update(1);")
	require.Equal(t, NMethodCall, e.Kind)
	assert.Equal(t, "Update", e.Text)
	require.Equal(t, NMember, e.Left.Kind)
	require.Len(t, e.List, 1)
}

func TestNamespaceQualifiedCall(t *testing.T) {
	e := firstExpr(t, "Base::Update(dt);")
	require.Equal(t, NNSMethodCall, e.Kind)
	assert.Equal(t, "Update", e.Text)
	assert.Equal(t, "Base", e.Left.Text)
}

func TestArrayIndexMultipleKeys(t *testing.T) {
	e := firstExpr(t, `h["a", 1, k];`)
	require.Equal(t, NArrayIndex, e.Kind)
	require.Len(t, e.List, 3)
}

func TestCreateWithName(t *testing.T) {
	e := firstExpr(t, `create Npc("guard");`)
	require.Equal(t, NCreateObject, e.Kind)
	assert.Equal(t, "Npc", e.Text)
	require.Len(t, e.List, 1)
	assert.Equal(t, NLiteralString, e.List[0].Kind)
}

func TestScheduleStatement(t *testing.T) {
	tree := parse(t, `schedule(o, 250, Fire, 1, "x");`)
	n := tree.List[0]
	require.Equal(t, NSchedule, n.Kind)
	assert.Equal(t, int32(250), n.DelaySrc)
	assert.Equal(t, "Fire", n.Text)
	require.Len(t, n.List, 2)
	assert.Equal(t, NIdent, n.Target.Kind)
}

func TestScheduleDelayMustBeLiteral(t *testing.T) {
	err := parseErr(t, "schedule(o, d, Fire);")
	assert.Contains(t, err.Error(), "delay")
}

func TestDestroyStatement(t *testing.T) {
	tree := parse(t, "destroy(o);")
	n := tree.List[0]
	require.Equal(t, NDestroyObject, n.Kind)
}

func TestSelfInExpression(t *testing.T) {
	e := firstExpr(t, "self.hp;")
	require.Equal(t, NMember, e.Kind)
	require.Equal(t, NSelf, e.Left.Kind)
}

func TestErrorReportsFileAndLine(t *testing.T) {
	err := parseErr(t, "int x = ;")
	assert.Contains(t, err.Error(), "test.tin:1:")
}

func TestUnterminatedBlock(t *testing.T) {
	err := parseErr(t, "{ x = 1;")
	assert.Contains(t, err.Error(), "unterminated")
}

func TestMissingSemicolon(t *testing.T) {
	parseErr(t, "x = 1")
}
