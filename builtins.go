package lila

import "math/big"

func (vm *VM) newBuiltin(name string, isOperative bool, fn invokeFn) Value {
	o := &callableObj{name: name, isOperative: isOperative, builtin: fn}
	vm.gc.register(o)
	return wrapHeap(o)
}

// NewBuiltinEnv constructs the builtin environment: every combiner in the
// binding table, sealed so user code can shadow but never redefine one in
// place, and returns a fresh child of it for a VM's top-level evaluation
// to bind into. If hooks is non-nil and supplies Import, an internal
// "_hooks" environment is bound so $import can reach it by dotted lookup.
func (vm *VM) NewBuiltinEnv(hooks Hooks) *Environment {
	root := newEnvironment(vm, nil, 32)

	if hooks != nil {
		hooksEnv := newEnvironment(vm, nil, 1)
		hooksEnv.bind("$_import", vm.newBuiltin("$_import", false,
			func(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
				invariant(len(args) == 1, "$_import: expected 1 argument")
				modname := args[0].AsSymbol()
				code, v, err := hooks.Import(vm, modname)
				if err != nil {
					return finalValue(vm.ErrorValue(ErrGenericFailure, "import %s: %v", modname, err))
				}
				if code != Ok {
					return finalValue(vm.ErrorValue(ErrImportNotFound, "import not found: %s", modname))
				}
				return finalValue(v)
			}))
		hooksEnv.seal()
		root.bind("_hooks", vm.EnvironmentValue(hooksEnv))
	}

	root.bind("$define", vm.newBuiltin("$define", true, biDefine))
	root.bind("$lambda", vm.newBuiltin("$lambda", true, biLambda))
	root.bind("$if", vm.newBuiltin("$if", true, biIf))
	root.bind("$module", vm.newBuiltin("$module", true, biModule))
	root.bind("$import", vm.newBuiltin("$import", true, biImport))
	root.bind("$quote", vm.newBuiltin("$quote", true, biQuote))
	root.bind("begin", vm.newBuiltin("begin", true, biBegin))
	root.bind("$let", vm.newBuiltin("$let", true, biLet))
	root.bind("eval", vm.newBuiltin("eval", false, biEval))
	root.bind("getenv", vm.newBuiltin("getenv", false, biGetenv))
	root.bind("print", vm.newBuiltin("print", false, biPrint))
	root.bind("list", vm.newBuiltin("list", false, biList))
	root.bind("bigint", vm.newBuiltin("bigint", false, biBigint))
	root.bind("equal?", vm.newBuiltin("equal?", false, biEqual))
	root.bind("mapreduce", vm.newBuiltin("mapreduce", false, biMapreduce))
	root.bind("*", vm.newBuiltin("*", false, biMul))
	root.bind("+", vm.newBuiltin("+", false, biAdd))
	root.bind("-", vm.newBuiltin("-", false, biSub))
	root.bind("/", vm.newBuiltin("/", false, biDiv))
	root.bind("<=", vm.newBuiltin("<=", false, biLe))
	root.bind("null", Null())
	root.seal()

	return newEnvironment(vm, root, 8)
}

// ($define sym expr)
// ($define (name arg...) body)
// ($define ($name arg...) envsym body)         — operative form
// ($define (name arg... . rest) body)          — variadic
func biDefine(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) >= 2, "$define: expected at least 2 arguments")
	lhs := args[0]

	switch lhs.k {
	case KindSymbol:
		invariant(len(args) == 2, "$define sym: expected exactly 2 arguments")
		v := vm.Eval(args[1], env)
		if v.k == KindError {
			return finalValue(v)
		}
		env.bind(lhs.AsSymbol(), v)
		return finalValue(Value{})

	case KindList:
		head := lhs.AsList()
		invariant(len(head) >= 1, "$define: empty function head")
		name := head[0].AsSymbol()
		fnargs := head[1:]

		variadic := ""
		if len(fnargs) >= 2 && fnargs[len(fnargs)-2].k == KindSymbol && fnargs[len(fnargs)-2].AsSymbol() == "." {
			variadic = fnargs[len(fnargs)-1].AsSymbol()
			fnargs = fnargs[:len(fnargs)-2]
		}
		formals := make([]string, len(fnargs))
		for i, a := range fnargs {
			formals[i] = a.AsSymbol()
		}

		isOperative := len(name) > 0 && name[0] == '$'
		co := &callableObj{
			name:        name,
			isOperative: isOperative,
			env:         env,
			formals:     formals,
			variadic:    variadic,
		}
		if isOperative {
			invariant(len(args) == 3, "$define operative: expected (name envsym body)")
			co.envSym = args[1].AsSymbol()
			co.body = args[2]
		} else {
			invariant(len(args) == 2, "$define applicative: expected (name body)")
			co.body = args[1]
		}
		vm.gc.register(co)
		env.bind(name, wrapHeap(co))
		return finalValue(Value{})

	default:
		return finalValue(vm.ErrorValue(ErrGenericFailure, "$define: expected symbol or list head"))
	}
}

// ($lambda (args...) body)
// ($lambda vargs body)   — vargs a bare symbol binds the whole argument list
func biLambda(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	if len(args) != 2 {
		return finalValue(vm.ErrorValue(ErrWrongNumberOfArguments, "($lambda args body)"))
	}
	lhs, body := args[0], args[1]

	var formals []string
	variadic := ""
	switch lhs.k {
	case KindList:
		items := lhs.AsList()
		formals = make([]string, len(items))
		for i, a := range items {
			formals[i] = a.AsSymbol()
		}
	case KindSymbol:
		variadic = lhs.AsSymbol()
	default:
		return finalValue(vm.ErrorValue(ErrGenericFailure, "$lambda: expected list or symbol"))
	}

	co := &callableObj{name: "lambda", env: env, body: body, formals: formals, variadic: variadic}
	vm.gc.register(co)
	return finalValue(wrapHeap(co))
}

// ($if cond then [else])
func biIf(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) == 2 || len(args) == 3, "$if: expected 2 or 3 arguments")
	cond := vm.Eval(args[0], env)
	if cond.k == KindError {
		return finalValue(cond)
	}
	if Truthy(cond) {
		return tailCall(args[1], env)
	}
	if len(args) == 3 {
		return tailCall(args[2], env)
	}
	invariant(false, "$if: falsy condition with no else branch")
	return finalValue(Value{})
}

// ($module name body...)
func biModule(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) >= 1, "$module: expected a name")
	modname := args[0].AsSymbol()
	inner := newEnvironment(vm, env, 8)
	inner.name = modname

	result := Null()
	for _, expr := range args[1:] {
		result = vm.Eval(expr, inner)
		if result.k == KindError {
			return finalValue(result)
		}
	}
	env.bind(modname, vm.EnvironmentValue(inner))
	return finalValue(result)
}

// ($import modname) — looks up the VM's per-name import cache first; on a
// miss it invokes the host's import hook and caches the result, so a
// module is parsed and evaluated by its host at most once per VM no
// matter how many times it's imported.
func biImport(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) == 1, "$import: expected a module name")
	modname := args[0].AsSymbol()

	if cached, ok := vm.imports[modname]; ok {
		env.rebind(modname, cached)
		return finalValue(cached)
	}

	vm.logger.Warn("import cache miss, calling host hook", "module", modname)
	importer := env.lookup(vm, "_hooks.$_import")
	if importer.k == KindError {
		return finalValue(vm.ErrorValue(ErrImportNotFound, "no import hook installed"))
	}
	result := vm.Call(importer, env, args)
	if result.k == KindError {
		return finalValue(result)
	}
	vm.imports[modname] = result
	env.rebind(modname, result)
	return finalValue(result)
}

// ($quote expr)
func biQuote(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) == 1, "$quote: expected exactly 1 argument")
	return finalValue(args[0])
}

// (begin expr...) — tail-calls the last expression.
func biBegin(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) >= 1, "begin: expected at least 1 argument")
	for _, expr := range args[:len(args)-1] {
		if v := vm.Eval(expr, env); v.k == KindError {
			return finalValue(v)
		}
	}
	return tailCall(args[len(args)-1], env)
}

// ($let (name0 val0 name1 val1...) expr) — binds into a fresh child env,
// tail-calls expr there.
// ($let (name0 val0 ...))                — binds into the caller's env.
func biLet(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) >= 1, "$let: expected at least 1 argument")
	locals := args[0].AsList()
	invariant(len(locals)%2 == 0, "$let: binding list must have an even length")

	inner := env
	if len(args) != 1 {
		inner = newEnvironment(vm, env, len(locals)/2)
	}
	for i := 0; i < len(locals); i += 2 {
		name := locals[i].AsSymbol()
		v := vm.Eval(locals[i+1], inner)
		if v.k == KindError {
			return finalValue(v)
		}
		inner.bind(name, v)
	}

	if len(args) == 1 {
		return finalValue(Null())
	}
	for _, expr := range args[1 : len(args)-1] {
		if v := vm.Eval(expr, env); v.k == KindError {
			return finalValue(v)
		}
	}
	return tailCall(args[len(args)-1], inner)
}

// (eval expr)       — evaluate expr in the caller's environment.
// (eval expr env)   — evaluate expr in the given environment.
func biEval(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	switch len(args) {
	case 1:
		return finalValue(vm.Eval(args[0], env))
	case 2:
		return finalValue(vm.Eval(args[0], args[1].AsEnvironment()))
	default:
		return finalValue(vm.ErrorValue(ErrWrongNumberOfArguments, "(eval expr) or (eval expr env)"))
	}
}

// (getenv) — returns the caller's environment as a first-class value.
func biGetenv(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) == 0, "getenv: expected no arguments")
	return finalValue(vm.EnvironmentValue(env))
}

// (print expr...) — writes each argument's printed form to the host
// output hook, with no separator between them.
func biPrint(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	for _, a := range args {
		vm.output(Sprint(a))
	}
	return finalValue(Value{})
}

// (list expr...)
func biList(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) >= 1, "list: expected at least 1 argument")
	return finalValue(vm.ListValue(args))
}

// (bigint n) — promotes an Int to a BigInt.
func biBigint(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) == 1, "bigint: expected exactly 1 argument")
	if args[0].k != KindInt {
		return finalValue(vm.ErrorValue(ErrNonNumericArguments, "bigint: expected an Int"))
	}
	return finalValue(vm.BigIntValue(args[0].AsInt()))
}

// (equal? a b) — structural equality.
func biEqual(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) == 2, "equal?: expected exactly 2 arguments")
	return finalValue(Int(boolInt(structurallyEqual(args[0], args[1]))))
}

func structurallyEqual(l, r Value) bool {
	if l.k != r.k {
		return false
	}
	switch l.k {
	case KindNull:
		return true
	case KindInt:
		return l.AsInt() == r.AsInt()
	case KindDouble:
		return l.AsDouble() == r.AsDouble()
	case KindOpaque:
		return l.AsOpaque() == r.AsOpaque()
	case KindBigInt:
		return l.AsBigInt().Cmp(r.AsBigInt()) == 0
	case KindString:
		return l.AsString() == r.AsString()
	case KindSymbol:
		return l.AsSymbol() == r.AsSymbol()
	case KindList:
		ls, rs := l.AsList(), r.AsList()
		if len(ls) != len(rs) {
			return false
		}
		for i := range ls {
			if !structurallyEqual(ls[i], rs[i]) {
				return false
			}
		}
		return true
	default:
		// Applicative, Operative, Environment, Error: identity only —
		// there is no meaningful structural content to compare.
		return l.obj == r.obj
	}
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// (mapreduce map reduce list) — left-fold seeded by mapping list's first
// element: acc = map(list[0]); for each remaining e: acc = reduce(acc,
// map(e)). Fails if list is empty.
func biMapreduce(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) == 3, "mapreduce: expected exactly 3 arguments")
	mapFn, reduceFn := args[0], args[1]
	items := args[2].AsList()
	if len(items) == 0 {
		return finalValue(vm.ErrorValue(ErrGenericFailure, "mapreduce: empty list"))
	}

	acc := vm.Call(mapFn, env, []Value{items[0]})
	if acc.k == KindError {
		return finalValue(acc)
	}
	for _, item := range items[1:] {
		mapped := vm.Call(mapFn, env, []Value{item})
		if mapped.k == KindError {
			return finalValue(mapped)
		}
		acc = vm.Call(reduceFn, env, []Value{acc, mapped})
		if acc.k == KindError {
			return finalValue(acc)
		}
	}
	return finalValue(acc)
}

// ---- Arithmetic ----

func biMul(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) == 2, "*: expected exactly 2 arguments")
	return finalValue(numericBinop(vm, args[0], args[1],
		func(a, b int32) Value { return Int(a * b) },
		func(a, b float64) Value { return Double(a * b) },
		func(z *big.Int, a, b *big.Int) { z.Mul(a, b) }))
}

func biAdd(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) == 2, "+: expected exactly 2 arguments")
	return finalValue(numericBinop(vm, args[0], args[1],
		func(a, b int32) Value { return Int(a + b) },
		func(a, b float64) Value { return Double(a + b) },
		func(z *big.Int, a, b *big.Int) { z.Add(a, b) }))
}

func biSub(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) == 2, "-: expected exactly 2 arguments")
	return finalValue(numericBinop(vm, args[0], args[1],
		func(a, b int32) Value { return Int(a - b) },
		func(a, b float64) Value { return Double(a - b) },
		func(z *big.Int, a, b *big.Int) { z.Sub(a, b) }))
}

// (/ x y) — division currently requires two Doubles.
func biDiv(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) == 2, "/: expected exactly 2 arguments")
	x, y := args[0], args[1]
	if x.k != KindDouble || y.k != KindDouble {
		return finalValue(vm.ErrorValue(ErrNonNumericArguments, "/: expected two Doubles"))
	}
	return finalValue(Double(x.AsDouble() / y.AsDouble()))
}

func biLe(vm *VM, call *callableObj, env *Environment, args []Value) evalResult {
	invariant(len(args) == 2, "<=: expected exactly 2 arguments")
	x, y := args[0], args[1]
	key, ok := combineNumeric(x.k, y.k)
	if !ok {
		return finalValue(vm.ErrorValue(ErrNonNumericArguments, "<=: expected numeric arguments"))
	}

	var c bool
	switch key {
	case numII:
		c = x.AsInt() <= y.AsInt()
	case numDD:
		c = x.AsDouble() <= y.AsDouble()
	case numID:
		c = float64(x.AsInt()) <= y.AsDouble()
	case numDI:
		c = x.AsDouble() <= float64(y.AsInt())
	case numBB:
		c = x.AsBigInt().Cmp(y.AsBigInt()) <= 0
	case numBI:
		c = x.AsBigInt().Cmp(big.NewInt(int64(y.AsInt()))) <= 0
	case numIB:
		c = big.NewInt(int64(x.AsInt())).Cmp(y.AsBigInt()) <= 0
	case numBD:
		bf := new(big.Float).SetInt(x.AsBigInt())
		c = bf.Cmp(big.NewFloat(y.AsDouble())) <= 0
	case numDB:
		bf := new(big.Float).SetInt(y.AsBigInt())
		c = big.NewFloat(x.AsDouble()).Cmp(bf) <= 0
	}
	return finalValue(Int(boolInt(c)))
}

// numericBinop dispatches a binary arithmetic operator across the joint
// Int/Double/BigInt type of its operands, promoting Int to BigInt or
// Double as needed. intOp, dblOp, and bigOp implement the same operation
// at each precision.
func numericBinop(vm *VM, x, y Value, intOp func(a, b int32) Value, dblOp func(a, b float64) Value, bigOp func(z, a, b *big.Int)) Value {
	key, ok := combineNumeric(x.k, y.k)
	if !ok {
		return vm.ErrorValue(ErrNonNumericArguments, "expected numeric arguments")
	}
	switch key {
	case numII:
		return intOp(x.AsInt(), y.AsInt())
	case numDD:
		return dblOp(x.AsDouble(), y.AsDouble())
	case numID:
		return dblOp(float64(x.AsInt()), y.AsDouble())
	case numDI:
		return dblOp(x.AsDouble(), float64(y.AsInt()))
	case numBB:
		z := new(big.Int)
		bigOp(z, x.AsBigInt(), y.AsBigInt())
		return vm.bigIntFromBig(z)
	case numBI:
		z := new(big.Int)
		bigOp(z, x.AsBigInt(), big.NewInt(int64(y.AsInt())))
		return vm.bigIntFromBig(z)
	case numIB:
		z := new(big.Int)
		bigOp(z, big.NewInt(int64(x.AsInt())), y.AsBigInt())
		return vm.bigIntFromBig(z)
	default:
		// Double/BigInt mixes: not supported, matching the reference
		// division restriction's spirit of leaving mixed precision to
		// an explicit bigint()/float conversion by the caller.
		return vm.ErrorValue(ErrNonNumericArguments, "unsupported numeric combination")
	}
}
