package calc

import (
	"fmt"
	"reflect"
	"runtime"
)

// FuncHasher produces a stable Hash for a rule's underlying function.
//
// Real source/AST hashing is deliberately kept out of this package: its
// correctness depends on source availability and language introspection
// that Go's runtime does not expose. DefaultFuncHasher gives every
// distinct function value a stable identity within one process (its
// entry point), the strongest guarantee obtainable from reflection
// alone; Session.SetFuncHasher lets a caller swap in a real
// source-hashing implementation without touching the engine.
type FuncHasher func(fn any) (Hash, error)

// DefaultFuncHasher hashes a function by its runtime entry point, not
// its source text.
func DefaultFuncHasher(fn any) (Hash, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return "", wrap(ErrHashing, "not a function: %T", fn)
	}
	name := runtime.FuncForPC(v.Pointer()).Name()
	if name == "" {
		return "", wrap(ErrHashing, "anonymous function has no stable name")
	}
	return HashText(name), nil
}

// fullName is the human-readable string a Task exposes through
// FuncName to identify its function, independent of whatever FuncHasher
// computes. It is not part of the task's spec string.
func fullName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Sprintf("%T", fn)
	}
	name := runtime.FuncForPC(v.Pointer()).Name()
	if name == "" {
		return fmt.Sprintf("%T@%#x", fn, v.Pointer())
	}
	return name
}
