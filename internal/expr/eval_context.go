package expr

import (
	"github.com/funvibe/fundbg/internal/debug"
	"github.com/funvibe/fundbg/internal/symbols"
)

// Variable is one named value visible to expressions. Exactly one of
// Value and Location should be set: Value for debugger-provided
// constants, Location for target variables whose storage a DWARF
// location expression describes.
type Variable struct {
	Name     string
	Type     symbols.Type
	Value    *ExprValue
	Location []byte
}

// Context is the standard EvalContext: a flat scope of variables and
// types over a data provider. Frame-specific scoping (shadowing,
// implicit "this") layers above this by populating Vars appropriately.
type Context struct {
	Lang     Language
	Provider debug.DataProvider
	Vars     map[string]*Variable
	Types    map[string]symbols.Type
}

func NewContext(lang Language, provider debug.DataProvider) *Context {
	return &Context{
		Lang:     lang,
		Provider: provider,
		Vars:     map[string]*Variable{},
		Types:    map[string]symbols.Type{},
	}
}

// AddVariable registers a variable with an already-known value.
func (c *Context) AddVariable(name string, t symbols.Type, v ExprValue) {
	value := v
	c.Vars[name] = &Variable{Name: name, Type: t, Value: &value}
}

// AddLocatedVariable registers a variable whose storage is described by
// a DWARF location expression.
func (c *Context) AddLocatedVariable(name string, t symbols.Type, location []byte) {
	c.Vars[name] = &Variable{Name: name, Type: t, Location: location}
}

// AddType registers a named type for casts and FindType lookups.
func (c *Context) AddType(t symbols.Type) {
	c.Types[t.Name()] = t
}

func (c *Context) FindName(name string, cb EvalCallback) {
	v, ok := c.Vars[name]
	if !ok {
		cb(ErrValue(newErrorf(ErrEval, "No variable '%s' found.", name)))
		return
	}
	if v.Location != nil {
		EvalVariableLocation(c, v.Location, v.Type, cb)
		return
	}
	if v.Value != nil {
		cb(NewErrOrValue(*v.Value))
		return
	}
	cb(ErrValue(newErrorf(ErrEval, "Variable '%s' has no location.", name)))
}

func (c *Context) FindType(name string) (symbols.Type, error) {
	if t, ok := c.Types[name]; ok {
		return t, nil
	}
	if t := builtinTypeForName(name); t != nil {
		return t, nil
	}
	return nil, newErrorf(ErrType, "No type '%s' found.", name)
}

func (c *Context) GetConcreteType(t symbols.Type) symbols.Type {
	if t == nil {
		return nil
	}
	return symbols.StripCVT(t)
}

func (c *Context) DataProvider() debug.DataProvider { return c.Provider }
func (c *Context) Language() Language               { return c.Lang }
