package expr

// LocalExprValue is a debugger-local variable cell: a named value that
// lives in the debugger, not in the target. Values read from the cell
// carry a source referencing the cell, so a later write through one
// copy is observed by later reads of another. The cell itself never
// stores a value whose source points back at the cell; SetValue strips
// such a source to keep the reference graph acyclic.
type LocalExprValue struct {
	value ExprValue
}

func NewLocalExprValue(v ExprValue) *LocalExprValue {
	cell := &LocalExprValue{}
	cell.SetValue(v)
	return cell
}

// SetValue replaces the stored value. This is the only mutation point.
func (l *LocalExprValue) SetValue(v ExprValue) {
	if v.source.Kind == SourceLocal && v.source.Local == l {
		v = v.WithSource(TemporarySource())
	}
	l.value = v
}

// Value returns a copy carrying a reference back to this cell.
func (l *LocalExprValue) Value() ExprValue {
	return l.value.WithSource(LocalSource(l))
}
