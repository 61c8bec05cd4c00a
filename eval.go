package lila

// evalResult is either a final value (env is nil) or a pending tail call:
// evaluate value in env next, rather than recursing. Every combiner
// invocation returns one of these; Eval's trampoline loop is the only
// place a tail call is actually consumed.
type evalResult struct {
	value Value
	env   *Environment
}

func finalValue(v Value) evalResult          { return evalResult{value: v} }
func tailCall(v Value, env *Environment) evalResult { return evalResult{value: v, env: env} }
func (r evalResult) isTailCall() bool        { return r.env != nil }

// Eval evaluates expr in env. Symbols resolve through the environment
// chain (dotted lookup included); lists dispatch their head as a
// callable; every other kind self-evaluates. Tail calls returned by a
// combiner are consumed by looping rather than recursing, so a chain of
// tail calls (begin, $let, $if, user-defined lambdas) runs in constant Go
// stack depth.
func (vm *VM) Eval(expr Value, env *Environment) Value {
	val, curEnv := expr, env
	for {
		switch val.k {
		case KindSymbol:
			return curEnv.lookup(vm, val.AsSymbol())

		case KindList:
			items := val.AsList()
			if len(items) == 0 {
				return vm.ErrorValue(ErrGenericFailure, "cannot evaluate empty list")
			}
			head := vm.Eval(items[0], curEnv)
			if head.k == KindError {
				return head
			}
			if head.k != KindApplicative && head.k != KindOperative {
				return vm.ErrorValue(ErrGenericFailure, "not callable: %s", Sprint(head))
			}
			callable := head.AsCallable()
			rawArgs := items[1:]

			var args []Value
			if callable.kind() == KindApplicative {
				args = make([]Value, len(rawArgs))
				for i, a := range rawArgs {
					av := vm.Eval(a, curEnv)
					if av.k == KindError {
						return av
					}
					args[i] = av
				}
			} else {
				args = rawArgs
			}

			res := vm.invoke(callable, curEnv, args)
			if !res.isTailCall() {
				return res.value
			}
			val, curEnv = res.value, res.env

		default:
			// Null, Double, Int, Opaque, BigInt, String, Applicative,
			// Operative, Environment, and Error all self-evaluate.
			return val
		}
	}
}

// invoke dispatches a callable: built-ins run their native function
// directly (which may itself return a tail call, as begin/$let/$if do);
// user-defined combiners (from $define/$lambda) get a fresh child
// environment with their formals bound and always tail-call into their
// body.
func (vm *VM) invoke(callable *callableObj, callerEnv *Environment, args []Value) evalResult {
	if callable.builtin != nil {
		return callable.builtin(vm, callable, callerEnv, args)
	}

	child := newEnvironment(vm, callable.env, len(callable.formals)+1)
	if errv := child.bindMultiple(vm, callable.formals, callable.variadic, args); errv.k == KindError {
		return finalValue(errv)
	}
	if callable.isOperative {
		child.bind(callable.envSym, vm.EnvironmentValue(callerEnv))
	}
	return tailCall(callable.body, child)
}

// Call invokes a callable value directly with already-evaluated
// arguments, running the tail-call trampoline to completion. Built-ins
// that need to invoke a combiner passed to them as an argument — mapreduce
// over its map/reduce functions, for instance — use this instead of
// re-entering Eval with a synthetic list.
func (vm *VM) Call(callee Value, callerEnv *Environment, args []Value) Value {
	invariant(callee.k == KindApplicative || callee.k == KindOperative, "Call on %s", callee.k)
	callable := callee.AsCallable()
	res := vm.invoke(callable, callerEnv, args)
	if !res.isTailCall() {
		return res.value
	}
	return vm.Eval(res.value, res.env)
}
