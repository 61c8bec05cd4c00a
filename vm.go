package lila

import (
	"io"
	"log/slog"
)

// Logger is the package-level diagnostic sink. It defaults to discarding
// everything so embedding a VM in a test or a short-lived tool never
// spams stderr; call SetLogger to point it at a real handler.
var Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// SetLogger overrides the package-level logger used by VMs that don't
// set Config.Logger explicitly.
func SetLogger(l *slog.Logger) {
	Logger = l
}

// Hooks is the set of host callbacks a VM defers to for anything outside
// the language itself: startup/shutdown notification, writing printed
// output, and resolving an import by name. Go's runtime owns allocation,
// so unlike the embedding API this adapts, there is no host-pluggable
// allocator hook — there's nothing for a Go host to usefully override.
type Hooks interface {
	// Init is called once, as the VM finishes constructing its builtin
	// environment.
	Init(vm *VM)
	// Quit is called once, as Close runs.
	Quit(vm *VM)
	// Output receives printed text from the print builtin and from
	// PrintAt.
	Output(s string)
	// Import resolves modname to a (ResultCode, Value) pair, or returns
	// a non-nil error for a host-side failure (e.g. file I/O) distinct
	// from the module simply not existing (ResultCode FileNotFound).
	Import(vm *VM, modname string) (ResultCode, Value, error)
}

// Config carries VM-construction-time knobs.
type Config struct {
	// StackCapacityHint sizes the initial capacity of the embedding
	// stack.
	StackCapacityHint int
	// GCWorkPerAlloc is how much incremental mark work to perform per
	// allocation. 0 disables incremental stepping; collection then only
	// happens via GCAllocThreshold or an explicit Collect call.
	GCWorkPerAlloc int
	// GCAllocThreshold is the number of registered, not-yet-swept heap
	// objects (survivors of earlier collections included) at which an
	// allocation triggers an automatic full Collect. 0 disables automatic
	// collection.
	GCAllocThreshold int
	// Logger overrides the package-level Logger for this VM.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration a plain NewVM call uses.
func DefaultConfig() Config {
	return Config{
		StackCapacityHint: 32,
		GCWorkPerAlloc:    0,
		GCAllocThreshold:  4096,
	}
}

// VM is a single interpreter instance: its own heap, value stack, root
// environment, and import table. VMs are not safe for concurrent use —
// evaluation is single-threaded by design.
type VM struct {
	gc      *collector
	stack   []Value
	hooks   Hooks
	cfg     Config
	logger  *slog.Logger
	rootEnv *Environment
	imports map[string]Value
}

// NewVM constructs a VM with default configuration. hooks may be nil, in
// which case print output is discarded and $import always fails with
// ImportNotFound.
func NewVM(hooks Hooks) *VM {
	return NewVMWithConfig(hooks, DefaultConfig())
}

// NewVMWithConfig constructs a VM with cfg as given. A non-positive
// StackCapacityHint is replaced by 32 and a nil Logger by the package
// Logger; every other field is used as is, zero included.
func NewVMWithConfig(hooks Hooks, cfg Config) *VM {
	if cfg.StackCapacityHint <= 0 {
		cfg.StackCapacityHint = 32
	}
	logger := cfg.Logger
	if logger == nil {
		logger = Logger
	}

	vm := &VM{
		hooks:   hooks,
		cfg:     cfg,
		logger:  logger,
		imports: make(map[string]Value),
		stack:   make([]Value, 0, cfg.StackCapacityHint),
	}
	vm.gc = newCollector(vm)
	vm.rootEnv = vm.NewBuiltinEnv(hooks)

	if hooks != nil {
		hooks.Init(vm)
	}
	return vm
}

// Close shuts the VM down, notifying hooks.Quit if hooks were supplied.
func (vm *VM) Close() {
	if vm.hooks != nil {
		vm.hooks.Quit(vm)
	}
}

// RootEnv returns the VM's top-level environment, the child of the
// sealed builtin environment new expressions are evaluated against.
func (vm *VM) RootEnv() *Environment {
	return vm.rootEnv
}

func (vm *VM) output(s string) {
	if vm.hooks != nil {
		vm.hooks.Output(s)
		return
	}
	vm.logger.Debug("print (no host hooks installed)", "text", s)
}

// afterAlloc runs the configured incremental GC step and/or threshold
// check. The Value constructors and newEnvironment call it after each
// allocation; creating a callable does not.
func (vm *VM) afterAlloc() {
	if vm.cfg.GCWorkPerAlloc > 0 {
		vm.gc.step(vm.cfg.GCWorkPerAlloc)
	}
	if vm.cfg.GCAllocThreshold > 0 && vm.gc.liveCount() >= vm.cfg.GCAllocThreshold {
		vm.Collect()
	}
}

// Collect runs a full stop-the-world mark/sweep cycle immediately.
func (vm *VM) Collect() int {
	swept := vm.gc.collect()
	vm.logger.Debug("gc cycle", "swept", swept, "live", vm.gc.liveCount())
	return swept
}

// ---- tracer: root/edge enumeration the collector drives ----

func (vm *VM) traceRoots(mark func(Value)) {
	if vm.rootEnv != nil {
		mark(vm.EnvironmentValue(vm.rootEnv))
	}
	for _, v := range vm.stack {
		mark(v)
	}
	for _, v := range vm.imports {
		mark(v)
	}
}

func (vm *VM) traceEdges(obj heapObject, mark func(Value)) {
	switch o := obj.(type) {
	case *listObj:
		for _, v := range o.items {
			mark(v)
		}
	case *callableObj:
		if o.env != nil {
			mark(vm.EnvironmentValue(o.env))
		}
		mark(o.body)
	case *Environment:
		if o.parent != nil {
			mark(vm.EnvironmentValue(o.parent))
		}
		o.bindings.Iter(func(_ string, v Value) (stop bool) {
			mark(v)
			return false
		})
	// stringObj, symbolObj, bigIntObj, errorObj carry no outgoing edges.
	default:
	}
}

// ---- stack-based embedding API ----

// resolveIndex turns a 0-based-from-bottom-or-negative-from-top index
// into an absolute slice index, per the embedding stack convention.
func (vm *VM) resolveIndex(index int) (int, error) {
	i := index
	if i < 0 {
		i = len(vm.stack) + i
	}
	if i < 0 || i >= len(vm.stack) {
		return 0, newError(Fail, "stack index %d out of range (len=%d)", index, len(vm.stack))
	}
	return i, nil
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

// Parse reads one expression from src starting at pos, pushes it onto
// the stack on success, and returns the position just past what was
// consumed.
func (vm *VM) Parse(src []byte, pos int) (int, error) {
	v, next, code := vm.parseOne(src, pos)
	switch code {
	case Ok:
		vm.push(v)
		return next, nil
	case FileNotFound:
		return next, newError(FileNotFound, "end of input")
	default:
		errCode, msg := v.AsError()
		return next, newError(Fail, "%s: %s", errCode, msg)
	}
}

// EvalAt evaluates stack[index] against the root environment, replacing
// it in place with the result.
func (vm *VM) EvalAt(index int) error {
	return vm.evalAtIn(index, vm.rootEnv)
}

// EvalInEnv evaluates the value on top of the stack against env instead of
// the root environment, replacing it in place. Used by a host's $import
// hook to run a module's forms in an environment it then hands back as
// the import's result.
func (vm *VM) EvalInEnv(env *Environment) error {
	return vm.evalAtIn(-1, env)
}

func (vm *VM) evalAtIn(index int, env *Environment) error {
	i, err := vm.resolveIndex(index)
	if err != nil {
		return err
	}
	vm.stack[i] = vm.Eval(vm.stack[i], env)
	return nil
}

// NewModuleEnv creates a fresh child of the root environment, sized for a
// small module's worth of top-level definitions. A host's $import hook
// uses this to collect one module file's bindings before handing the
// environment back as the import's result.
func (vm *VM) NewModuleEnv() *Environment {
	return newEnvironment(vm, vm.rootEnv, 8)
}

// Import parses and evaluates the raw bytes of a module's source into a
// fresh environment, caches the result under modname, and pushes it onto
// the stack. Unlike the $import builtin — which resolves a name through
// Hooks.Import — Import is for a host that already holds a module's bytes
// (an embedded resource, a fetched file) and wants it parsed and cached
// directly. A second Import of the same modname returns the cached
// environment without re-parsing or re-evaluating anything.
func (vm *VM) Import(modname string, src []byte) error {
	if cached, ok := vm.imports[modname]; ok {
		vm.push(cached)
		return nil
	}

	moduleEnv := vm.NewModuleEnv()
	pos := 0
	for pos < len(src) {
		v, next, code := vm.parseOne(src, pos)
		if code == FileNotFound {
			break
		}
		if code != Ok {
			errCode, msg := v.AsError()
			return newError(Fail, "%s: %s", errCode, msg)
		}
		pos = next
		if res := vm.Eval(v, moduleEnv); res.k == KindError {
			errCode, msg := res.AsError()
			return newError(Fail, "%s: %s", errCode, msg)
		}
	}

	result := vm.EnvironmentValue(moduleEnv)
	vm.imports[modname] = result
	vm.push(result)
	return nil
}

// Pop removes the top n values from the stack.
func (vm *VM) Pop(n int) error {
	if n < 0 || n > len(vm.stack) {
		return newError(Fail, "pop %d: stack has %d values", n, len(vm.stack))
	}
	vm.stack = vm.stack[:len(vm.stack)-n]
	return nil
}

// PrintAt writes the printed form of stack[index] through the host
// output hook, followed by end.
func (vm *VM) PrintAt(index int, end string) error {
	i, err := vm.resolveIndex(index)
	if err != nil {
		return err
	}
	vm.output(Sprint(vm.stack[i]) + end)
	return nil
}

func (vm *VM) PushOpaque(u uint64)   { vm.push(Opaque(u)) }
func (vm *VM) PushSymbol(sym string) { vm.push(vm.SymbolValue(sym)) }
func (vm *VM) PushInteger(i int32)   { vm.push(Int(i)) }

// Peek returns the value at index without popping it. The returned Value
// is only valid until the next stack mutation.
func (vm *VM) Peek(index int) (Value, error) {
	i, err := vm.resolveIndex(index)
	if err != nil {
		return Value{}, err
	}
	return vm.stack[i], nil
}

func (vm *VM) ToNumber(index int) (float64, error) {
	v, err := vm.Peek(index)
	if err != nil {
		return 0, err
	}
	switch v.k {
	case KindDouble:
		return v.AsDouble(), nil
	case KindInt:
		return float64(v.AsInt()), nil
	default:
		return 0, newError(Fail, "stack[%d] is not numeric", index)
	}
}

func (vm *VM) ToInteger(index int) (int32, error) {
	v, err := vm.Peek(index)
	if err != nil {
		return 0, err
	}
	if v.k != KindInt {
		return 0, newError(Fail, "stack[%d] is not an Int", index)
	}
	return v.AsInt(), nil
}

func (vm *VM) IsNull(index int) (bool, error) {
	v, err := vm.Peek(index)
	if err != nil {
		return false, err
	}
	return v.IsNull(), nil
}

// SetMap assigns stack[index][k] = v, where v = stack[-1] and
// k = stack[-2] (stack[index] must hold an Environment), popping both.
func (vm *VM) SetMap(index int) error {
	i, err := vm.resolveIndex(index)
	if err != nil {
		return err
	}
	if len(vm.stack) < 2 {
		return newError(Fail, "setmap: stack underflow")
	}
	v := vm.stack[len(vm.stack)-1]
	k := vm.stack[len(vm.stack)-2]
	vm.stack = vm.stack[:len(vm.stack)-2]

	env := vm.stack[i].AsEnvironment()
	env.rebind(mapKeyName(k), v)
	return nil
}

// GetMap fetches stack[index][k], where k = stack[-1] (popped), pushing
// the value or a SymbolNotFound Error.
func (vm *VM) GetMap(index int) error {
	i, err := vm.resolveIndex(index)
	if err != nil {
		return err
	}
	if len(vm.stack) < 1 {
		return newError(Fail, "getmap: stack underflow")
	}
	k := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]

	env := vm.stack[i].AsEnvironment()
	v, ok := env.bindings.Get(mapKeyName(k))
	if !ok {
		vm.push(vm.ErrorValue(ErrSymbolNotFound, "symbol not found: %s", mapKeyName(k)))
		return nil
	}
	vm.push(v)
	return nil
}

func mapKeyName(k Value) string {
	switch k.k {
	case KindSymbol:
		return k.AsSymbol()
	case KindString:
		return k.AsString()
	default:
		invariant(false, "map key must be a Symbol or String, got %s", k.k)
		return ""
	}
}

// StackCall invokes stack[-narg-1] with the narg values above it,
// replacing them with up to nres results (only nres 0 or 1 is supported:
// a combiner call always produces exactly one value).
func (vm *VM) StackCall(narg, nres int) error {
	if nres != 0 && nres != 1 {
		return newError(Fail, "call: nres must be 0 or 1, got %d", nres)
	}
	if len(vm.stack) < narg+1 {
		return newError(Fail, "call: stack underflow")
	}
	fnIdx := len(vm.stack) - narg - 1
	fn := vm.stack[fnIdx]
	args := append([]Value(nil), vm.stack[fnIdx+1:]...)
	vm.stack = vm.stack[:fnIdx]

	var result Value
	if fn.k != KindApplicative && fn.k != KindOperative {
		result = vm.ErrorValue(ErrGenericFailure, "call: not callable: %s", Sprint(fn))
	} else {
		result = vm.callableResult(fn.AsCallable(), args)
	}
	if nres == 1 {
		vm.push(result)
	}
	return nil
}

func (vm *VM) callableResult(callable *callableObj, args []Value) Value {
	res := vm.invoke(callable, vm.rootEnv, args)
	if !res.isTailCall() {
		return res.value
	}
	return vm.Eval(res.value, res.env)
}
