package lila

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Kind is the closed discriminant of a Value. lila uses a tagged struct
// in place of a NaN-boxed 64-bit union, provided the discriminant stays
// precise enough for a total type switch.
type Kind int

const (
	KindNull Kind = iota
	KindDouble
	KindInt
	KindOpaque
	KindBigInt
	KindString
	KindSymbol
	KindList
	KindApplicative
	KindOperative
	KindEnvironment
	KindError
)

var kindNames = [...]string{
	KindNull:        "Null",
	KindDouble:      "Double",
	KindInt:         "Int",
	KindOpaque:      "Opaque",
	KindBigInt:      "BigInt",
	KindString:      "String",
	KindSymbol:      "Symbol",
	KindList:        "List",
	KindApplicative: "Applicative",
	KindOperative:   "Operative",
	KindEnvironment: "Environment",
	KindError:       "Error",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) isHeap() bool {
	return k >= KindBigInt
}

// heapObject is implemented by every heap-allocated kind. gc.go's collector
// walks the graph through this interface; each concrete type additionally
// embeds a gcHeader.
type heapObject interface {
	header() *gcHeader
	kind() Kind
}

// gcHeader is the common prefix every heap object carries. The
// collector links live objects through next for sweep traversal and tracks
// tri-color state in color.
type gcHeader struct {
	color gcColor
	next  heapObject
}

func (h *gcHeader) header() *gcHeader { return h }

// Value is lila's 'boxed' value. Immediate kinds (Null, Double,
// Int, Opaque) carry their payload directly; heap kinds carry obj.
type Value struct {
	k   Kind
	num int64       // Int payload, or math.Float64bits(Double), or Opaque payload
	obj heapObject  // non-nil iff k.isHeap()
}

// Immediate constructors — no allocation.

func Null() Value { return Value{k: KindNull} }

func Double(d float64) Value {
	return Value{k: KindDouble, num: int64(f64bits(d))}
}

func Int(i int32) Value {
	return Value{k: KindInt, num: int64(i)}
}

// Opaque wraps a host-supplied cookie. lila stores the full 64 bits;
// hosts are responsible for round-tripping whatever they stash here.
func Opaque(cookie uint64) Value {
	return Value{k: KindOpaque, num: int64(cookie)}
}

func (v Value) Kind() Kind { return v.k }

func (v Value) IsNull() bool { return v.k == KindNull }

// AsDouble extracts the double payload. Invariant-panics on type mismatch:
// a heap-tagged value must always carry a matching concrete type.
func (v Value) AsDouble() float64 {
	invariant(v.k == KindDouble, "AsDouble on %s", v.k)
	return f64frombits(uint64(v.num))
}

// AsInt extracts the Int payload, sign-extended from 32 bits.
func (v Value) AsInt() int32 {
	invariant(v.k == KindInt, "AsInt on %s", v.k)
	return int32(v.num)
}

func (v Value) AsOpaque() uint64 {
	invariant(v.k == KindOpaque, "AsOpaque on %s", v.k)
	return uint64(v.num)
}

func f64bits(d float64) uint64      { return math.Float64bits(d) }
func f64frombits(u uint64) float64 { return math.Float64frombits(u) }

// Heap object kinds.

type stringObj struct {
	gcHeader
	val string
}

func (o *stringObj) kind() Kind { return KindString }

type symbolObj struct {
	gcHeader
	val string
}

func (o *symbolObj) kind() Kind { return KindSymbol }

type listObj struct {
	gcHeader
	items []Value // length fixed at creation
}

func (o *listObj) kind() Kind { return KindList }

type bigIntObj struct {
	gcHeader
	val *big.Int
}

func (o *bigIntObj) kind() Kind { return KindBigInt }

type errorObj struct {
	gcHeader
	code ErrorCode
	msg  string
}

func (o *errorObj) kind() Kind { return KindError }

// invokeFn is the signature every built-in callable's native function
// implements. It returns either a final value or a tail call.
type invokeFn func(vm *VM, call *callableObj, env *Environment, args []Value) evalResult

// callableObj represents both Applicative and Operative combiners; which
// one is reported by kind().
type callableObj struct {
	gcHeader
	isOperative bool
	name        string
	builtin     invokeFn      // non-nil for built-ins
	env         *Environment  // captured definition environment
	body        Value         // raw body expression, for user-defined combiners
	formals     []string      // declared formal names
	variadic    string        // rest-name, "" if not variadic
	envSym      string        // operative-only: name bound to caller's env
	context     interface{}   // extra data for built-ins (host hooks, etc.)
}

func (o *callableObj) kind() Kind {
	if o.isOperative {
		return KindOperative
	}
	return KindApplicative
}

// An Environment can itself be held inside a Value, wrapping the
// *Environment (env.go) directly as the heap object.

func wrapHeap(o heapObject) Value {
	return Value{k: o.kind(), obj: o}
}

func (v Value) asHeap(k Kind) heapObject {
	invariant(v.k == k, "expected %s, got %s", k, v.k)
	return v.obj
}

func (v Value) AsString() string {
	return v.asHeap(KindString).(*stringObj).val
}

func (v Value) AsSymbol() string {
	return v.asHeap(KindSymbol).(*symbolObj).val
}

func (v Value) AsList() []Value {
	return v.asHeap(KindList).(*listObj).items
}

func (v Value) AsBigInt() *big.Int {
	return v.asHeap(KindBigInt).(*bigIntObj).val
}

func (v Value) AsError() (code ErrorCode, msg string) {
	e := v.asHeap(KindError).(*errorObj)
	return e.code, e.msg
}

// AsCallable extracts the callable for either Applicative or Operative
// kinds, a single accessor for both.
func (v Value) AsCallable() *callableObj {
	invariant(v.k == KindApplicative || v.k == KindOperative, "AsCallable on %s", v.k)
	return v.obj.(*callableObj)
}

func (v Value) AsEnvironment() *Environment {
	invariant(v.k == KindEnvironment, "AsEnvironment on %s", v.k)
	return v.obj.(*Environment)
}

// ErrorValue constructs a first-class Error value. Allocation is
// always routed through a VM so the object is registered with the
// collector at birth.
func (vm *VM) ErrorValue(code ErrorCode, format string, args ...interface{}) Value {
	o := &errorObj{code: code, msg: fmt.Sprintf(format, args...)}
	vm.gc.register(o)
	vm.afterAlloc()
	return wrapHeap(o)
}

func (vm *VM) StringValue(s string) Value {
	o := &stringObj{val: s}
	vm.gc.register(o)
	vm.afterAlloc()
	return wrapHeap(o)
}

func (vm *VM) SymbolValue(s string) Value {
	o := &symbolObj{val: s}
	vm.gc.register(o)
	vm.afterAlloc()
	return wrapHeap(o)
}

func (vm *VM) ListValue(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	o := &listObj{items: cp}
	vm.gc.register(o)
	vm.afterAlloc()
	return wrapHeap(o)
}

func (vm *VM) BigIntValue(i int32) Value {
	o := &bigIntObj{val: big.NewInt(int64(i))}
	vm.gc.register(o)
	vm.afterAlloc()
	return wrapHeap(o)
}

func (vm *VM) bigIntFromBig(b *big.Int) Value {
	o := &bigIntObj{val: b}
	vm.gc.register(o)
	vm.afterAlloc()
	return wrapHeap(o)
}

// EnvironmentValue wraps an already-registered Environment (one created via
// newEnvironment) as a first-class Value. It does not itself allocate.
func (vm *VM) EnvironmentValue(env *Environment) Value {
	return wrapHeap(env)
}

// ---- Truthiness ----

// Truthy reports whether v is true in an $if condition position: Int 0
// and the empty List are false, everything else is true. Any other kind
// is an invariant violation — $if only accepts an Int or List condition.
func Truthy(v Value) bool {
	switch v.k {
	case KindInt:
		return v.AsInt() != 0
	case KindList:
		return len(v.AsList()) != 0
	default:
		invariant(false, "$if: condition must be an Int or List, got %s", v.k)
		return false
	}
}

// ---- Numeric coercion ----

// numericRank orders the three numeric kinds by inclusion: Int ⊂ BigInt,
// Int ⊂ Double. combineNumeric encodes the joint type as rank(x)<<2|rank(y)
// so callers can switch over a dense set of cases with a bit-packed key.
func numericRank(k Kind) (int, bool) {
	switch k {
	case KindInt:
		return 0, true
	case KindDouble:
		return 1, true
	case KindBigInt:
		return 2, true
	default:
		return 0, false
	}
}

func combineNumeric(x, y Kind) (int, bool) {
	xr, xok := numericRank(x)
	yr, yok := numericRank(y)
	if !xok || !yok {
		return 0, false
	}
	return (xr << 2) | yr, true
}

const (
	numII = 0<<2 | 0 // Int, Int
	numID = 0<<2 | 1 // Int, Double
	numIB = 0<<2 | 2 // Int, BigInt
	numDI = 1<<2 | 0
	numDD = 1<<2 | 1
	numDB = 1<<2 | 2
	numBI = 2<<2 | 0
	numBD = 2<<2 | 1
	numBB = 2<<2 | 2
)

// ---- Printing ----

// Print formats v the way the built-in print combiner does, writing to w.
func Print(w *strings.Builder, v Value) {
	switch v.k {
	case KindDouble:
		fmt.Fprintf(w, "%f", v.AsDouble())
	case KindInt:
		fmt.Fprintf(w, "%d", v.AsInt())
	case KindNull:
		w.WriteString("null")
	case KindOpaque:
		fmt.Fprintf(w, "Opaque<%d>", v.AsOpaque())
	case KindBigInt:
		w.WriteString(v.AsBigInt().String())
	case KindSymbol:
		w.WriteString(":")
		w.WriteString(v.AsSymbol())
	case KindString:
		w.WriteString(v.AsString())
	case KindList:
		w.WriteString("(")
		for i, e := range v.AsList() {
			if i > 0 {
				w.WriteString(" ")
			}
			Print(w, e)
		}
		w.WriteString(")")
	case KindApplicative:
		fmt.Fprintf(w, "Ap<%s>", v.AsCallable().name)
	case KindOperative:
		fmt.Fprintf(w, "Op<%s>", v.AsCallable().name)
	case KindEnvironment:
		fmt.Fprintf(w, "Env<%p>", v.AsEnvironment())
	case KindError:
		code, msg := v.AsError()
		fmt.Fprintf(w, "Err<%s,%s>", code, msg)
	default:
		invariant(false, "print: unhandled kind %s", v.k)
	}
}

// Sprint is Print rendered to a string, used by tests and the `print`
// built-in's eventual call into Hooks.Output.
func Sprint(v Value) string {
	var b strings.Builder
	Print(&b, v)
	return b.String()
}
