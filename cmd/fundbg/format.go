package main

import (
	"fmt"
	"strings"

	"github.com/funvibe/fundbg/internal/expr"
	"github.com/funvibe/fundbg/internal/symbols"
)

// formatValue renders an evaluation result for the REPL. It is a
// presentation concern only; formatting failures degrade to a hex dump
// rather than an error.
func formatValue(ctx expr.EvalContext, v expr.ExprValue) string {
	if v.IsNull() {
		return "<no value>"
	}

	concrete := ctx.GetConcreteType(v.Type())

	if _, ok := symbols.IsPointer(concrete); ok {
		addr, err := v.AsUInt64()
		if err == nil {
			return fmt.Sprintf("(%s) 0x%x", v.TypeName(), addr)
		}
	}

	switch t := concrete.(type) {
	case *symbols.BaseType:
		return formatBase(v, t)
	case *symbols.Enumeration:
		raw, err := v.AsUInt64()
		if err == nil {
			if name, ok := t.Values[raw]; ok {
				return fmt.Sprintf("%s::%s", t.TypeName, name)
			}
			return fmt.Sprintf("(%s) %d", t.TypeName, raw)
		}
	case *symbols.Collection:
		return formatCollection(ctx, v, t)
	case *symbols.ArrayType:
		return fmt.Sprintf("(%s) %s", t.Name(), hexDump(v.Data()))
	}
	return fmt.Sprintf("(%s) %s", v.TypeName(), hexDump(v.Data()))
}

func formatBase(v expr.ExprValue, t *symbols.BaseType) string {
	switch {
	case t.Tag == symbols.BaseTypeBoolean:
		u, err := v.AsUInt64()
		if err == nil {
			if u != 0 {
				return "true"
			}
			return "false"
		}
	case t.IsFloat():
		d, err := v.AsDouble()
		if err == nil {
			return fmt.Sprintf("%g", d)
		}
	case t.Tag == symbols.BaseTypeSignedChar, t.Tag == symbols.BaseTypeUnsignedChar:
		u, err := v.AsUInt64()
		if err == nil && u >= 0x20 && u < 0x7f {
			return fmt.Sprintf("'%c' (%d)", rune(u), u)
		}
		fallthrough
	case t.IsSigned():
		i, err := v.AsInt64()
		if err == nil {
			return fmt.Sprintf("%d", i)
		}
	default:
		u, err := v.AsUInt64()
		if err == nil {
			return fmt.Sprintf("%d", u)
		}
	}
	return hexDump(v.Data())
}

func formatCollection(ctx expr.EvalContext, v expr.ExprValue, t *symbols.Collection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s {", t.TypeName)
	for i, m := range t.Members {
		if i > 0 {
			b.WriteString(",")
		}
		memberSize := ctx.GetConcreteType(m.Type).ByteSize()
		end := int(m.Offset + memberSize)
		if end > v.ByteSize() {
			fmt.Fprintf(&b, " %s=?", m.Name)
			continue
		}
		member := expr.NewTemporaryValue(m.Type, v.Data()[m.Offset:end])
		fmt.Fprintf(&b, " %s=%s", m.Name, formatValue(ctx, member))
	}
	b.WriteString(" }")
	return b.String()
}

func hexDump(data []byte) string {
	var b strings.Builder
	for i, by := range data {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%02x", by)
	}
	return b.String()
}
