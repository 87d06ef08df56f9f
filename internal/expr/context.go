package expr

import (
	"github.com/funvibe/fundbg/internal/debug"
	"github.com/funvibe/fundbg/internal/symbols"
)

// Language selects literal typing rules and cast spellings.
type Language int

const (
	LanguageC Language = iota
	LanguageRust
)

// ErrOrValue carries either a final value or an error through the
// callback chain.
type ErrOrValue struct {
	value ExprValue
	err   error
}

func NewErrOrValue(v ExprValue) ErrOrValue { return ErrOrValue{value: v} }
func ErrValue(err error) ErrOrValue        { return ErrOrValue{err: err} }

func (e ErrOrValue) HasError() bool   { return e.err != nil }
func (e ErrOrValue) Err() error       { return e.err }
func (e ErrOrValue) Value() ExprValue { return e.value }

// EvalCallback receives the result of an asynchronous step or of a
// whole evaluation. It is invoked exactly once, either synchronously
// from inside the issuing call or later from the event loop; callers
// must not care which.
type EvalCallback func(ErrOrValue)

// EvalContext is the capability object giving the evaluator access to
// the current scope and target. Implementations are single-threaded;
// all callbacks fire on the owning event loop.
type EvalContext interface {
	// FindName looks up a named value in the current scope (locals,
	// arguments, members of an implicit "this", globals). The result
	// may arrive asynchronously when the variable's location requires
	// target reads.
	FindName(name string, cb EvalCallback)

	// FindType resolves a type name, e.g. for a cast. Builtin
	// fundamental names (int, uint64_t, ...) always resolve.
	FindType(name string) (symbols.Type, error)

	// GetConcreteType strips cv-qualifiers and typedefs and resolves
	// forward declarations. Required before any cast, operator, or
	// math-realm decision.
	GetConcreteType(t symbols.Type) symbols.Type

	// DataProvider accesses target memory and registers.
	DataProvider() debug.DataProvider

	// Language affects literal typing and register syntax.
	Language() Language
}
