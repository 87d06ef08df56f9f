package expr

import (
	"github.com/funvibe/fundbg/internal/ast"
	"github.com/funvibe/fundbg/internal/debug"
	"github.com/funvibe/fundbg/internal/symbols"
	"github.com/funvibe/fundbg/internal/token"
)

// compiler turns an AST into a VmStream. Name resolution of locals
// happens here (slots are compile-time); target variables, types, and
// registers resolve at run time through callbacks into the context.
type compiler struct {
	ctx    EvalContext
	stream *VmStream

	// Lexical scopes mapping names to local slots. Inner declarations
	// shadow outer ones.
	scopes    []map[string]int
	numLocals int
}

// Compile builds the bytecode for a parsed program.
func Compile(ctx EvalContext, program *ast.Program) (*VmStream, error) {
	c := &compiler{ctx: ctx, stream: &VmStream{}}
	c.pushScope()
	for i, stmt := range program.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
		// Every statement leaves one value; only the last survives.
		if i < len(program.Statements)-1 {
			c.stream.Append(MakeDropOp())
		}
	}
	if len(program.Statements) == 0 {
		c.stream.Append(MakeLiteralOp(ExprValue{}))
	}
	return c.stream, nil
}

func (c *compiler) pushScope() {
	c.scopes = append(c.scopes, map[string]int{})
}

func (c *compiler) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *compiler) declareLocal(name string) int {
	slot := c.numLocals
	c.numLocals++
	c.scopes[len(c.scopes)-1][name] = slot
	return slot
}

// lookupLocal finds a declared local, innermost scope first.
func (c *compiler) lookupLocal(name string) (int, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if slot, ok := c.scopes[i][name]; ok {
			return slot, true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// compileStatement emits code leaving exactly one value on the stack.
// Control-flow statements and blocks leave an empty value.
func (c *compiler) compileStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		return c.compileExpr(s.Expression)

	case *ast.DeclarationStatement:
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
		c.stream.Append(MakeExpandRefOp())
		c.stream.Append(MakeSetLocalOp(c.declareLocal(s.Name)))
		return nil

	case *ast.BlockStatement:
		return c.compileBlock(s)

	case *ast.IfStatement:
		return c.compileIf(s)

	case *ast.WhileStatement:
		return c.compileWhile(s)

	case *ast.BreakStatement:
		c.stream.Append(MakeBreakOp())
		// Unreachable when the break executes, but keeps the one-value
		// contract for the stream checker.
		c.stream.Append(MakeLiteralOp(ExprValue{}))
		return nil
	}
	return newErrorf(ErrInternal, "Unknown statement type.")
}

func (c *compiler) compileBlock(block *ast.BlockStatement) error {
	savedLocals := c.numLocals
	c.pushScope()
	for _, stmt := range block.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
		c.stream.Append(MakeDropOp())
	}
	c.popScope()
	c.stream.Append(MakePopLocalsOp(savedLocals))
	c.numLocals = savedLocals
	c.stream.Append(MakeLiteralOp(ExprValue{}))
	return nil
}

func (c *compiler) compileIf(stmt *ast.IfStatement) error {
	if err := c.compileExpr(stmt.Cond); err != nil {
		return err
	}
	c.stream.Append(MakeExpandRefOp())
	jumpToElse := c.stream.Append(MakeJumpIfFalseOp())

	if err := c.compileStatement(stmt.Then); err != nil {
		return err
	}
	c.stream.Append(MakeDropOp())

	if stmt.Else == nil {
		c.stream.PatchDest(jumpToElse, c.stream.Len())
	} else {
		jumpToEnd := c.stream.Append(MakeJumpOp())
		c.stream.PatchDest(jumpToElse, c.stream.Len())
		if err := c.compileStatement(stmt.Else); err != nil {
			return err
		}
		c.stream.Append(MakeDropOp())
		c.stream.PatchDest(jumpToEnd, c.stream.Len())
	}

	c.stream.Append(MakeLiteralOp(ExprValue{}))
	return nil
}

func (c *compiler) compileWhile(stmt *ast.WhileStatement) error {
	pushBreak := c.stream.Append(MakePushBreakOp())

	condIndex := c.stream.Len()
	if err := c.compileExpr(stmt.Cond); err != nil {
		return err
	}
	c.stream.Append(MakeExpandRefOp())
	jumpToExit := c.stream.Append(MakeJumpIfFalseOp())

	if err := c.compileStatement(stmt.Body); err != nil {
		return err
	}
	c.stream.Append(MakeDropOp())
	c.stream.Append(MakeJumpOp())
	c.stream.PatchDest(c.stream.Len()-1, condIndex)

	c.stream.PatchDest(jumpToExit, c.stream.Len())
	c.stream.Append(MakePopBreakOp())

	// Break jumps land here, after PopBreak: OpBreak consumes the
	// record itself.
	end := c.stream.Append(MakeLiteralOp(ExprValue{}))
	c.stream.PatchDest(pushBreak, end)
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *compiler) compileExpr(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return c.compileNumber(e.Token, e.Token.Lexeme)
	case *ast.FloatLiteral:
		return c.compileNumber(e.Token, e.Token.Lexeme)
	case *ast.CharLiteral:
		c.compileChar(e)
		return nil
	case *ast.BoolLiteral:
		c.stream.Append(MakeLiteralOp(makeBoolValue(e.Value)))
		return nil
	case *ast.Identifier:
		c.compileIdentifier(e)
		return nil
	case *ast.RegisterExpression:
		c.compileRegister(e)
		return nil
	case *ast.PrefixExpression:
		return c.compilePrefix(e)
	case *ast.InfixExpression:
		return c.compileInfix(e)
	case *ast.TernaryExpression:
		return c.compileTernary(e)
	case *ast.IndexExpression:
		return c.compileIndex(e)
	case *ast.MemberExpression:
		return c.compileMember(e)
	case *ast.CastExpression:
		return c.compileCast(e)
	case *ast.SizeofExpression:
		return c.compileSizeof(e)
	}
	return newErrorf(ErrInternal, "Unknown expression type.")
}

// compileNumber types a literal at compile time. The spelling may carry
// a folded sign from compilePrefix so INT_MIN spellings type correctly.
func (c *compiler) compileNumber(tok token.Token, spelling string) error {
	v, err := StringToNumber(c.ctx.Language(), spelling)
	if err != nil {
		c.stream.Append(MakeErrorOp(err, tok))
		return nil
	}
	c.stream.Append(MakeLiteralOp(v))
	return nil
}

func (c *compiler) compileChar(e *ast.CharLiteral) {
	r := []rune(e.Token.Lexeme)
	var ch rune
	if len(r) > 0 {
		ch = r[0]
	}
	if c.ctx.Language() == LanguageRust {
		data := []byte{byte(ch), byte(ch >> 8), byte(ch >> 16), byte(ch >> 24)}
		c.stream.Append(MakeLiteralOp(NewTemporaryValue(makeRustCharType(), data)))
		return
	}
	c.stream.Append(MakeLiteralOp(NewTemporaryValue(makeCharType(), []byte{byte(ch)})))
}

func (c *compiler) compileIdentifier(e *ast.Identifier) {
	if slot, ok := c.lookupLocal(e.Name); ok {
		c.stream.Append(MakeGetLocalOp(slot))
		return
	}
	name := e.Name
	c.stream.Append(MakeAsyncCallback0(func(cont EvalCallback) {
		c.ctx.FindName(name, cont)
	}))
}

func (c *compiler) compileRegister(e *ast.RegisterExpression) {
	info, err := debug.RegisterByName(e.Name)
	if err != nil {
		c.stream.Append(MakeErrorOp(
			newErrorf(ErrParse, "Unknown register '%s'.", e.Name), e.Token))
		return
	}
	ctx := c.ctx
	c.stream.Append(MakeAsyncCallback0(func(cont EvalCallback) {
		ctx.DataProvider().GetRegisterAsync(info.Canonical, func(data []byte, err error) {
			if err != nil {
				cont(ErrValue(&EvalError{Kind: ErrTarget, Msg: err.Error()}))
				return
			}
			byteSize := info.Bits / 8
			t := makeIntType(ctx.Language(), false, byteSize)
			if info.Shift == 0 && int(byteSize) == len(data) {
				cont(NewErrOrValue(NewValue(t, data, RegisterSource(info.Canonical))))
				return
			}
			src := RegisterBitfieldSource(info.Canonical, info.Bits, info.Shift)
			bits := src.ExtractBits(data, int(byteSize))
			cont(NewErrOrValue(NewValue(t, bits, src)))
		})
	}))
}

func (c *compiler) compilePrefix(e *ast.PrefixExpression) error {
	// Fold the sign into numeric literals so INT_MIN-like spellings get
	// typed as one literal instead of negation of an overflowing one.
	if e.Operator == "-" {
		switch lit := e.Right.(type) {
		case *ast.IntegerLiteral:
			return c.compileNumber(lit.Token, "-"+lit.Token.Lexeme)
		case *ast.FloatLiteral:
			return c.compileNumber(lit.Token, "-"+lit.Token.Lexeme)
		}
	}

	switch e.Operator {
	case "-", "!", "~":
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		c.stream.Append(MakeExpandRefOp())
		c.stream.Append(MakeUnaryOp(e.Token))
		return nil

	case "*":
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		c.stream.Append(MakeExpandRefOp())
		ctx := c.ctx
		c.stream.Append(MakeAsyncCallback1(func(v ExprValue, cont EvalCallback) {
			ResolvePointer(ctx, v, cont)
		}))
		return nil

	case "&":
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		// "&ref" takes the address of the referent, so expand first.
		c.stream.Append(MakeExpandRefOp())
		ctx := c.ctx
		c.stream.Append(MakeCallback1(func(v ExprValue) ErrOrValue {
			ptr, err := AddressOf(ctx, v)
			if err != nil {
				return ErrValue(err)
			}
			return NewErrOrValue(ptr)
		}))
		return nil
	}
	return newErrorf(ErrParse, "Unsupported unary operator '%s'.", e.Operator)
}

func (c *compiler) compileInfix(e *ast.InfixExpression) error {
	switch e.Operator {
	case "=":
		return c.compileAssignment(e)
	case "&&", "||":
		return c.compileShortCircuit(e)
	}

	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	c.stream.Append(MakeExpandRefOp())
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	c.stream.Append(MakeExpandRefOp())
	c.stream.Append(MakeBinaryOp(e.Token))
	return nil
}

// compileAssignment leaves the destination unexpanded; writing through
// a reference is the assignment engine's job, and expanding would turn
// the destination into a plain read.
func (c *compiler) compileAssignment(e *ast.InfixExpression) error {
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	c.stream.Append(MakeExpandRefOp())
	ctx := c.ctx
	c.stream.Append(MakeAsyncCallback2(func(dest, source ExprValue, cont EvalCallback) {
		DoAssignment(ctx, dest, source, cont)
	}))
	return nil
}

// compileShortCircuit expands && and || into conditional jumps so the
// right side never evaluates (including any side effects or target
// reads) when the left side decides the result.
func (c *compiler) compileShortCircuit(e *ast.InfixExpression) error {
	toBool := c.makeToBoolCallback()

	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	c.stream.Append(MakeExpandRefOp())
	c.stream.Append(toBool)
	c.stream.Append(MakeDupOp())

	if e.Operator == "||" {
		// Invert the duplicate so JumpIfFalse fires when the left side
		// is true.
		c.stream.Append(c.makeInvertCallback())
	}
	jumpToEnd := c.stream.Append(MakeJumpIfFalseOp())

	c.stream.Append(MakeDropOp()) // left's bool loses; right decides
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	c.stream.Append(MakeExpandRefOp())
	c.stream.Append(toBool)

	c.stream.PatchDest(jumpToEnd, c.stream.Len())
	return nil
}

func (c *compiler) makeToBoolCallback() VmOp {
	ctx := c.ctx
	return MakeCallback1(func(v ExprValue) ErrOrValue {
		b, err := ValueToBool(ctx, v)
		if err != nil {
			return ErrValue(err)
		}
		return NewErrOrValue(makeBoolValue(b))
	})
}

func (c *compiler) makeInvertCallback() VmOp {
	ctx := c.ctx
	return MakeCallback1(func(v ExprValue) ErrOrValue {
		b, err := ValueToBool(ctx, v)
		if err != nil {
			return ErrValue(err)
		}
		return NewErrOrValue(makeBoolValue(!b))
	})
}

func (c *compiler) compileTernary(e *ast.TernaryExpression) error {
	if err := c.compileExpr(e.Cond); err != nil {
		return err
	}
	c.stream.Append(MakeExpandRefOp())
	jumpToElse := c.stream.Append(MakeJumpIfFalseOp())

	if err := c.compileExpr(e.Then); err != nil {
		return err
	}
	jumpToEnd := c.stream.Append(MakeJumpOp())

	c.stream.PatchDest(jumpToElse, c.stream.Len())
	if err := c.compileExpr(e.Else); err != nil {
		return err
	}
	c.stream.PatchDest(jumpToEnd, c.stream.Len())
	return nil
}

func (c *compiler) compileIndex(e *ast.IndexExpression) error {
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	c.stream.Append(MakeExpandRefOp())
	if err := c.compileExpr(e.Index); err != nil {
		return err
	}
	c.stream.Append(MakeExpandRefOp())
	ctx := c.ctx
	c.stream.Append(MakeAsyncCallback2(func(base, index ExprValue, cont EvalCallback) {
		i, err := index.AsInt64()
		if err != nil {
			cont(ErrValue(err))
			return
		}
		ResolveArrayItem(ctx, base, i, cont)
	}))
	return nil
}

func (c *compiler) compileMember(e *ast.MemberExpression) error {
	if err := c.compileExpr(e.Object); err != nil {
		return err
	}
	c.stream.Append(MakeExpandRefOp())
	ctx := c.ctx
	member := e.Member
	if e.Arrow {
		c.stream.Append(MakeAsyncCallback1(func(obj ExprValue, cont EvalCallback) {
			ResolveMemberByPointer(ctx, obj, member, cont)
		}))
	} else {
		c.stream.Append(MakeAsyncCallback1(func(obj ExprValue, cont EvalCallback) {
			ResolveMember(ctx, obj, member, cont)
		}))
	}
	return nil
}

func (c *compiler) compileCast(e *ast.CastExpression) error {
	if err := c.compileExpr(e.Operand); err != nil {
		return err
	}

	castsToReference := len(e.Type.Modifiers) > 0 &&
		e.Type.Modifiers[len(e.Type.Modifiers)-1] == '&'
	if !castsToReference {
		c.stream.Append(MakeExpandRefOp())
	}

	var castType CastType
	switch e.Kind {
	case ast.CastStatic:
		castType = CastStaticCast
	case ast.CastReinterpret:
		castType = CastReinterpretCast
	default: // C-style and Rust "as"
		castType = CastC
	}

	ctx := c.ctx
	typeExpr := e.Type
	c.stream.Append(MakeCallback1(func(v ExprValue) ErrOrValue {
		dest, err := resolveTypeExpression(ctx, typeExpr)
		if err != nil {
			return ErrValue(err)
		}
		out, err := CastExprValue(ctx, castType, v, dest)
		if err != nil {
			return ErrValue(err)
		}
		return NewErrOrValue(out)
	}))
	return nil
}

func (c *compiler) compileSizeof(e *ast.SizeofExpression) error {
	ctx := c.ctx
	if e.Type != nil {
		typeExpr := e.Type
		c.stream.Append(MakeCallback0(func() ErrOrValue {
			t, err := resolveTypeExpression(ctx, typeExpr)
			if err != nil {
				return ErrValue(err)
			}
			return NewErrOrValue(makeSizeValue(ctx, t))
		}))
		return nil
	}

	if err := c.compileExpr(e.Operand); err != nil {
		return err
	}
	c.stream.Append(MakeExpandRefOp())
	c.stream.Append(MakeCallback1(func(v ExprValue) ErrOrValue {
		if v.IsNull() {
			return ErrValue(newErrorf(ErrType, "No type for sizeof."))
		}
		return NewErrOrValue(makeSizeValue(ctx, v.Type()))
	}))
	return nil
}

func makeSizeValue(ctx EvalContext, t symbols.Type) ExprValue {
	size := uint64(ctx.GetConcreteType(t).ByteSize())
	data := make([]byte, 8)
	for i := 0; i < 8; i++ {
		data[i] = byte(size >> (8 * uint(i)))
	}
	name := "size_t"
	if ctx.Language() == LanguageRust {
		name = "usize"
	}
	return NewTemporaryValue(symbols.NewBaseType(symbols.BaseTypeUnsigned, 8, name), data)
}

// resolveTypeExpression turns the syntactic type from a cast into a
// symbolic type: builtins resolve directly, everything else through the
// context, then pointer/reference/cv wrappers apply outside-in.
func resolveTypeExpression(ctx EvalContext, te *ast.TypeExpression) (symbols.Type, error) {
	base := builtinTypeForName(te.Name)
	if base == nil {
		var err error
		base, err = ctx.FindType(te.Name)
		if err != nil {
			return nil, err
		}
	}
	if te.Const {
		base = symbols.NewConstType(base)
	}
	if te.Volatile {
		base = symbols.NewVolatileType(base)
	}
	for _, m := range te.Modifiers {
		switch m {
		case '*':
			base = symbols.NewPointerType(base)
		case '&':
			base = symbols.NewReferenceType(base)
		}
	}
	return base, nil
}
