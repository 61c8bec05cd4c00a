package lila

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltins_ArithmeticCoercion(t *testing.T) {
	vm := NewVM(nil)
	tests := []struct {
		src  string
		kind Kind
	}{
		{"(+ 1 2)", KindInt},
		{"(+ 1 2.0)", KindDouble},
		{"(+ 1.0 2)", KindDouble},
		{"(+ (bigint 1) (bigint 2))", KindBigInt},
		{"(+ (bigint 1) 2)", KindBigInt},
		{"(+ 1 (bigint 2))", KindBigInt},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			v := evalSrc(t, vm, tt.src)
			assert.Equal(t, tt.kind, v.Kind())
		})
	}
}

func TestBuiltins_DivisionRequiresTwoDoubles(t *testing.T) {
	vm := NewVM(nil)
	v := vm.Eval(vm.ListValue([]Value{vm.SymbolValue("/"), Int(4), Int(2)}), vm.rootEnv)
	assert.Equal(t, KindError, v.Kind())
	code, _ := v.AsError()
	assert.Equal(t, ErrNonNumericArguments, code)

	ok := evalSrc(t, vm, "(/ 4.0 2.0)")
	assert.Equal(t, 2.0, ok.AsDouble())
}

func TestBuiltins_LessEqualAcrossPrecisions(t *testing.T) {
	vm := NewVM(nil)
	tests := []struct {
		src  string
		want int32
	}{
		{"(<= 1 2)", 1},
		{"(<= 2 1)", 0},
		{"(<= 1 1.5)", 1},
		{"(<= (bigint 3) (bigint 3))", 1},
		{"(<= (bigint 3) 2)", 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			v := evalSrc(t, vm, tt.src)
			assert.Equal(t, tt.want, v.AsInt())
		})
	}
}

func TestBuiltins_EqualIsStructural(t *testing.T) {
	vm := NewVM(nil)
	tests := []struct {
		name string
		l, r Value
		want bool
	}{
		{"equal ints", Int(3), Int(3), true},
		{"different ints", Int(3), Int(4), false},
		{"equal strings", vm.StringValue("a"), vm.StringValue("a"), true},
		{"equal lists", vm.ListValue([]Value{Int(1), Int(2)}), vm.ListValue([]Value{Int(1), Int(2)}), true},
		{"different length lists", vm.ListValue([]Value{Int(1)}), vm.ListValue([]Value{Int(1), Int(2)}), false},
		{"equal bigints", vm.bigIntFromBig(big.NewInt(10)), vm.bigIntFromBig(big.NewInt(10)), true},
		{"mismatched kinds", Int(1), vm.StringValue("1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, structurallyEqual(tt.l, tt.r))
		})
	}
}

func TestBuiltins_BigintRejectsNonInt(t *testing.T) {
	vm := NewVM(nil)
	v := vm.Eval(vm.ListValue([]Value{vm.SymbolValue("bigint"), vm.StringValue("x")}), vm.rootEnv)
	assert.Equal(t, KindError, v.Kind())
}

func TestBuiltins_MapreducePropagatesMapError(t *testing.T) {
	vm := NewVM(nil)
	evalSrc(t, vm, "($define (boom x) (/ 1 2))") // / on Ints always fails

	pos := 0
	data := []byte("(mapreduce boom + (list 1 2 3))")
	parsed, _, code := vm.parseOne(data, pos)
	require.Equal(t, Ok, code)
	v := vm.Eval(parsed, vm.rootEnv)
	require.Equal(t, KindError, v.Kind())
	errCode, _ := v.AsError()
	assert.Equal(t, ErrNonNumericArguments, errCode)
}

func TestBuiltins_PrintCallsHostOutput(t *testing.T) {
	var got []string
	hooks := &recordingHooks{onOutput: func(s string) { got = append(got, s) }}
	vm := NewVM(hooks)
	defer vm.Close()

	evalSrc(t, vm, `(print "hello" " " "world")`)
	require.Equal(t, []string{"hello", " ", "world"}, got)
}

// recordingHooks is a minimal Hooks implementation for exercising output
// and import wiring from tests without touching the filesystem.
type recordingHooks struct {
	onOutput    func(string)
	imports     map[string]Value
	importCalls int
}

func (h *recordingHooks) Init(vm *VM) {}
func (h *recordingHooks) Quit(vm *VM) {}
func (h *recordingHooks) Output(s string) {
	if h.onOutput != nil {
		h.onOutput(s)
	}
}
func (h *recordingHooks) Import(vm *VM, modname string) (ResultCode, Value, error) {
	h.importCalls++
	if v, ok := h.imports[modname]; ok {
		return Ok, v, nil
	}
	return FileNotFound, Value{}, nil
}

func TestBuiltins_ImportBindsModuleByDottedLookup(t *testing.T) {
	hooks := &recordingHooks{}
	vm := NewVM(hooks)
	defer vm.Close()

	modEnv := newEnvironment(vm, nil, 1)
	modEnv.bind("pi", Double(3.25))
	hooks.imports = map[string]Value{"math": vm.EnvironmentValue(modEnv)}

	v := evalSrc(t, vm, `
		(begin .)
		($import math)
		math.pi
	`)
	assert.Equal(t, 3.25, v.AsDouble())
}

func TestBuiltins_ImportCachesAcrossCalls(t *testing.T) {
	hooks := &recordingHooks{}
	vm := NewVM(hooks)
	defer vm.Close()

	modEnv := newEnvironment(vm, nil, 1)
	modEnv.bind("pi", Double(3.25))
	hooks.imports = map[string]Value{"math": vm.EnvironmentValue(modEnv)}

	evalSrc(t, vm, "($import math)")
	evalSrc(t, vm, "($import math)")
	evalSrc(t, vm, "($import math)")

	assert.Equal(t, 1, hooks.importCalls, "host import hook should only fire once per modname")
}

func TestVM_ImportParsesCachesAndPushesBytes(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	src := []byte("($define area 12)")
	require.NoError(t, vm.Import("shapes", src))
	v, err := vm.Peek(-1)
	require.NoError(t, err)
	require.Equal(t, KindEnvironment, v.Kind())

	got, ok := v.AsEnvironment().bindings.Get("area")
	require.True(t, ok)
	assert.Equal(t, int32(12), got.AsInt())

	require.NoError(t, vm.Pop(1))
	require.NoError(t, vm.Import("shapes", []byte("(this is never parsed")))
	v2, err := vm.Peek(-1)
	require.NoError(t, err)
	assert.Same(t, v.AsEnvironment(), v2.AsEnvironment(), "second Import of the same name must return the cached environment")
}

func TestBuiltins_ImportMissingIsErrorValue(t *testing.T) {
	hooks := &recordingHooks{imports: map[string]Value{}}
	vm := NewVM(hooks)
	defer vm.Close()

	pos := 0
	data := []byte("($import nosuchmodule)")
	parsed, _, code := vm.parseOne(data, pos)
	require.Equal(t, Ok, code)
	v := vm.Eval(parsed, vm.rootEnv)
	assert.Equal(t, KindError, v.Kind())
}
