package lila

import (
	"strings"

	"github.com/dolthub/swiss"
)

// Environment is a lexical binding frame: a map from symbol name to Value,
// a link to the enclosing (parent) frame, and a sealed flag that forbids
// further top-level binds once set. The sealed builtin environment sits at
// the top of a VM's chain; every user-defined combiner invocation creates
// one fresh child frame.
type Environment struct {
	gcHeader
	bindings *swiss.Map[string, Value]
	parent   *Environment
	sealed   bool
	name     string // optional, set by $module for diagnostics
}

func (e *Environment) kind() Kind { return KindEnvironment }

// newEnvironment creates a child frame of parent with capacity sized from
// an expected binding count (a call's formal count, typically), and
// registers it with vm's collector so it participates in mark/sweep like
// any other heap object. parent is nil for the builtin root environment
// and for standalone frames such as the internal "_hooks" environment.
func newEnvironment(vm *VM, parent *Environment, capHint int) *Environment {
	if capHint < 1 {
		capHint = 1
	}
	e := &Environment{
		bindings: swiss.NewMap[string, Value](uint32(capHint)),
		parent:   parent,
	}
	vm.gc.register(e)
	vm.afterAlloc()
	return e
}

// seal forbids further binds directly into this frame. Builtins seal the
// root environment once construction finishes so user code can shadow but
// never redefine a builtin in place.
func (e *Environment) seal() {
	e.sealed = true
}

// bind introduces name into this frame. It is an invariant violation to
// bind a name twice into the same unsealed frame, or to bind into a
// sealed frame at all. Both panic; this includes user code that
// $defines the same name twice in one frame.
func (e *Environment) bind(name string, v Value) {
	invariant(!e.sealed, "bind %q into sealed environment", name)
	if _, exists := e.bindings.Get(name); exists {
		invariant(false, "duplicate bind of %q", name)
	}
	e.bindings.Put(name, v)
}

// rebind sets name in this frame unconditionally, used by $import (so
// re-importing a name already bound in the frame is allowed) and by
// SetMap.
func (e *Environment) rebind(name string, v Value) {
	invariant(!e.sealed, "rebind %q into sealed environment", name)
	e.bindings.Put(name, v)
}

// bindMultiple binds a fixed list of formal names to a matching list of
// argument values, and if rest != "" additionally binds rest to a list of
// whatever arguments remain past len(formals). It is the single binding
// primitive both applicative and operative invocation build on.
func (e *Environment) bindMultiple(vm *VM, formals []string, rest string, args []Value) Value {
	if rest == "" {
		if len(args) != len(formals) {
			return vm.ErrorValue(ErrWrongNumberOfArguments,
				"expected %d arguments, got %d", len(formals), len(args))
		}
	} else if len(args) < len(formals) {
		return vm.ErrorValue(ErrWrongNumberOfArguments,
			"expected at least %d arguments, got %d", len(formals), len(args))
	}
	for i, name := range formals {
		e.bind(name, args[i])
	}
	if rest != "" {
		e.bind(rest, vm.ListValue(append([]Value(nil), args[len(formals):]...)))
	}
	return Value{}
}

// lookup resolves name, which may be a dotted path ("m.x"). The first
// segment is resolved by walking the parent chain starting at e. Every
// subsequent segment is resolved strictly inside the environment the
// prior segment resolved to — its own map only, without ascending to its
// parent — so a lookup that steps into a module's namespace can only see
// that module's own top-level bindings, not whatever scope the module
// happened to be defined in.
func (e *Environment) lookup(vm *VM, name string) Value {
	seg, rem, hasMore := splitDotted(name)

	v, found := Value{}, false
	for env := e; env != nil; env = env.parent {
		if got, ok := env.bindings.Get(seg); ok {
			v, found = got, true
			break
		}
	}
	if !found {
		return vm.ErrorValue(ErrSymbolNotFound, "symbol not found: %s", name)
	}
	if !hasMore {
		return v
	}
	if v.k != KindEnvironment {
		return vm.ErrorValue(ErrSymbolNotFound, "symbol not found: %s", name)
	}
	return v.AsEnvironment().lookupLocal(vm, name, rem)
}

// lookupLocal resolves the remaining dotted segments of a lookup that has
// already stepped into this environment's namespace, without ever
// ascending to e's parent. fullName is carried through only to report a
// useful error message.
func (e *Environment) lookupLocal(vm *VM, fullName, rem string) Value {
	seg, next, hasMore := splitDotted(rem)
	v, ok := e.bindings.Get(seg)
	if !ok {
		return vm.ErrorValue(ErrSymbolNotFound, "symbol not found: %s", fullName)
	}
	if !hasMore {
		return v
	}
	if v.k != KindEnvironment {
		return vm.ErrorValue(ErrSymbolNotFound, "symbol not found: %s", fullName)
	}
	return v.AsEnvironment().lookupLocal(vm, fullName, next)
}

func splitDotted(s string) (head, rest string, hasMore bool) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}
