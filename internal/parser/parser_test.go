package parser

import (
	"strings"
	"testing"

	"github.com/funvibe/fundbg/internal/ast"
)

func parseExpr(t *testing.T, input string) ast.Expression {
	t.Helper()
	program, err := Parse(input)
	if err != nil {
		t.Fatalf("%q: %s", input, err)
	}
	if len(program.Statements) != 1 {
		t.Fatalf("%q: expected one statement, got %d", input, len(program.Statements))
	}
	es, ok := program.Statements[0].(*ast.ExpressionStatement)
	if !ok {
		t.Fatalf("%q: expected expression statement, got %T", input, program.Statements[0])
	}
	return es.Expression
}

func asInfix(t *testing.T, e ast.Expression, op string) *ast.InfixExpression {
	t.Helper()
	infix, ok := e.(*ast.InfixExpression)
	if !ok {
		t.Fatalf("expected infix, got %T", e)
	}
	if infix.Operator != op {
		t.Fatalf("expected operator %q, got %q", op, infix.Operator)
	}
	return infix
}

func TestPrecedence(t *testing.T) {
	// 1 + 2 * 3 groups as 1 + (2 * 3).
	e := asInfix(t, parseExpr(t, "1 + 2 * 3"), "+")
	asInfix(t, e.Right, "*")

	// a | b ^ c & d groups as a | (b ^ (c & d)).
	e = asInfix(t, parseExpr(t, "a | b ^ c & d"), "|")
	inner := asInfix(t, e.Right, "^")
	asInfix(t, inner.Right, "&")

	// Shifts bind tighter than comparisons.
	e = asInfix(t, parseExpr(t, "a << 1 < b"), "<")
	asInfix(t, e.Left, "<<")

	// Logic is looser than equality.
	e = asInfix(t, parseExpr(t, "a == b && c != d"), "&&")
	asInfix(t, e.Left, "==")
	asInfix(t, e.Right, "!=")

	// Left associativity.
	e = asInfix(t, parseExpr(t, "1 - 2 - 3"), "-")
	asInfix(t, e.Left, "-")
}

func TestAssignmentRightAssociative(t *testing.T) {
	e := asInfix(t, parseExpr(t, "a = b = 1"), "=")
	asInfix(t, e.Right, "=")
}

func TestPrefixBinding(t *testing.T) {
	// *p->next: prefix * applies to the whole postfix chain.
	pre, ok := parseExpr(t, "*p->next").(*ast.PrefixExpression)
	if !ok || pre.Operator != "*" {
		t.Fatalf("expected *, got %T", pre)
	}
	member, ok := pre.Right.(*ast.MemberExpression)
	if !ok || member.Member != "next" || !member.Arrow {
		t.Fatalf("expected ->next under *, got %T", pre.Right)
	}

	// -a + b: unary binds tighter than +.
	e := asInfix(t, parseExpr(t, "-a + b"), "+")
	if _, ok := e.Left.(*ast.PrefixExpression); !ok {
		t.Fatalf("expected prefix on the left, got %T", e.Left)
	}

	// &arr[2]: address-of the element.
	pre, ok = parseExpr(t, "&arr[2]").(*ast.PrefixExpression)
	if !ok || pre.Operator != "&" {
		t.Fatalf("expected &, got %T", pre)
	}
	if _, ok := pre.Right.(*ast.IndexExpression); !ok {
		t.Fatalf("expected index under &, got %T", pre.Right)
	}
}

func TestTernary(t *testing.T) {
	e, ok := parseExpr(t, "a ? 1 : b ? 2 : 3").(*ast.TernaryExpression)
	if !ok {
		t.Fatal("expected ternary")
	}
	if _, ok := e.Else.(*ast.TernaryExpression); !ok {
		t.Fatalf("?: must be right associative, else is %T", e.Else)
	}
}

func TestQualifiedIdentifier(t *testing.T) {
	id, ok := parseExpr(t, "std::chrono::ns").(*ast.Identifier)
	if !ok || id.Name != "std::chrono::ns" {
		t.Fatalf("got %#v", id)
	}
}

func TestCStyleCast(t *testing.T) {
	cases := []struct {
		input string
		spell string
	}{
		{"(char)0x1234", "char"},
		{"(int)-1.5", "int"},
		{"(unsigned long long)x", "unsigned long long"},
		{"(Base*)derived_ptr", "Base*"},
		{"(const Foo*)p", "const Foo*"},
	}
	for _, tc := range cases {
		cast, ok := parseExpr(t, tc.input).(*ast.CastExpression)
		if !ok {
			t.Fatalf("%q: expected a cast", tc.input)
		}
		if cast.Kind != ast.CastCStyle {
			t.Fatalf("%q: expected C-style kind", tc.input)
		}
		if cast.Type.String() != tc.spell {
			t.Fatalf("%q: type %q", tc.input, cast.Type.String())
		}
	}

	// "(a)*b" is multiplication when a has no modifiers.
	asInfix(t, parseExpr(t, "(a)*b"), "*")
	// "(a*b)" is grouped multiplication, not a cast of b to a*.
	asInfix(t, parseExpr(t, "(a*b)"), "*")
	// A grouped expression followed by a binary op.
	asInfix(t, parseExpr(t, "(1 + 2) * 3"), "*")
}

func TestNamedCasts(t *testing.T) {
	cast, ok := parseExpr(t, "static_cast<int>(3.7)").(*ast.CastExpression)
	if !ok || cast.Kind != ast.CastStatic {
		t.Fatalf("got %#v", cast)
	}
	if cast.Type.Name != "int" {
		t.Fatalf("type %q", cast.Type.Name)
	}

	cast, ok = parseExpr(t, "reinterpret_cast<Foo*>(p + 1)").(*ast.CastExpression)
	if !ok || cast.Kind != ast.CastReinterpret {
		t.Fatalf("got %#v", cast)
	}
	if len(cast.Type.Modifiers) != 1 || cast.Type.Modifiers[0] != '*' {
		t.Fatalf("modifiers %v", cast.Type.Modifiers)
	}
	asInfix(t, cast.Operand, "+")
}

func TestRustAsCast(t *testing.T) {
	cast, ok := parseExpr(t, "x as u32").(*ast.CastExpression)
	if !ok || cast.Kind != ast.CastRustAs || cast.Type.Name != "u32" {
		t.Fatalf("got %#v", cast)
	}

	// 'as' binds tighter than comparison: x as u32 > 1.
	e := asInfix(t, parseExpr(t, "x as u32 > 1"), ">")
	if _, ok := e.Left.(*ast.CastExpression); !ok {
		t.Fatalf("expected cast on the left, got %T", e.Left)
	}
}

func TestSizeof(t *testing.T) {
	sz, ok := parseExpr(t, "sizeof(unsigned long)").(*ast.SizeofExpression)
	if !ok || sz.Type == nil || sz.Type.Name != "unsigned long" {
		t.Fatalf("got %#v", sz)
	}

	sz, ok = parseExpr(t, "sizeof(a + b)").(*ast.SizeofExpression)
	if !ok || sz.Operand == nil {
		t.Fatalf("got %#v", sz)
	}
}

func TestRegisterExpressions(t *testing.T) {
	reg, ok := parseExpr(t, "$reg(ah)").(*ast.RegisterExpression)
	if !ok || reg.Name != "ah" {
		t.Fatalf("got %#v", reg)
	}
	e := asInfix(t, parseExpr(t, "$rax + 1"), "+")
	if _, ok := e.Left.(*ast.RegisterExpression); !ok {
		t.Fatalf("got %T", e.Left)
	}
}

func TestStatements(t *testing.T) {
	program, err := Parse("auto x = 1; x = x + 1; x")
	if err != nil {
		t.Fatal(err)
	}
	if len(program.Statements) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(program.Statements))
	}
	decl, ok := program.Statements[0].(*ast.DeclarationStatement)
	if !ok || decl.Name != "x" {
		t.Fatalf("got %#v", program.Statements[0])
	}

	program, err = Parse("let mut i = 0; while (i < 4) { i = i + 1; if (i == 2) { break } }; i")
	if err != nil {
		t.Fatal(err)
	}
	while, ok := program.Statements[1].(*ast.WhileStatement)
	if !ok {
		t.Fatalf("got %T", program.Statements[1])
	}
	ifStmt, ok := while.Body.Statements[1].(*ast.IfStatement)
	if !ok {
		t.Fatalf("got %T", while.Body.Statements[1])
	}
	if _, ok := ifStmt.Then.Statements[0].(*ast.BreakStatement); !ok {
		t.Fatalf("got %T", ifStmt.Then.Statements[0])
	}
}

func TestElseIfChain(t *testing.T) {
	program, err := Parse("if (a) { 1 } else if (b) { 2 } else { 3 }")
	if err != nil {
		t.Fatal(err)
	}
	ifStmt := program.Statements[0].(*ast.IfStatement)
	elseIf, ok := ifStmt.Else.(*ast.IfStatement)
	if !ok {
		t.Fatalf("got %T", ifStmt.Else)
	}
	if _, ok := elseIf.Else.(*ast.BlockStatement); !ok {
		t.Fatalf("got %T", elseIf.Else)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		input   string
		message string
	}{
		{"", "empty expression"},
		{"1 +", "unexpected token"},
		{"(1 + 2", "expected \")\""},
		{"a[1", "expected \"]\""},
		{"a ? 1", "expected \":\""},
		{"a . 5", "expected \"IDENT\""},
		{"while (1) 2", "expected \"{\""},
		{"auto = 1", "expected \"IDENT\""},
		{"static_cast<>(1)", "expected type name"},
	}
	for _, tc := range cases {
		_, err := Parse(tc.input)
		if err == nil {
			t.Fatalf("%q: expected an error", tc.input)
		}
		if !strings.Contains(err.Error(), tc.message) {
			t.Errorf("%q: expected %q in %q", tc.input, tc.message, err)
		}
	}
}

func TestRecursionDepthLimit(t *testing.T) {
	input := strings.Repeat("(", 300) + "1" + strings.Repeat(")", 300)
	_, err := Parse(input)
	if err == nil || !strings.Contains(err.Error(), "recursion depth") {
		t.Fatalf("got %v", err)
	}
}
