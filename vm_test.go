package lila

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVM_ParseEvalPop(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	src := "(begin ($define r 10) (* 3.1415 (* r r)))"
	next, err := vm.Parse([]byte(src), 0)
	require.NoError(t, err)
	require.Equal(t, len(src), next)

	require.NoError(t, vm.EvalAt(-1))
	d, err := vm.ToNumber(-1)
	require.NoError(t, err)
	assert.Greater(t, d, 314.0)

	require.NoError(t, vm.Pop(1))
}

func TestVM_ToInteger(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	_, err := vm.Parse([]byte("((($lambda (f) ($lambda (x) (f (f x)))) ($lambda (x) (* 2 x))) 10)"), 0)
	require.NoError(t, err)
	require.NoError(t, vm.EvalAt(-1))

	i, err := vm.ToInteger(-1)
	require.NoError(t, err)
	assert.Equal(t, int32(40), i)
}

func TestVM_IsNull(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	// "null" is bound to Null() in the builtin environment.
	_, err := vm.Parse([]byte("null"), 0)
	require.NoError(t, err)
	require.NoError(t, vm.EvalAt(-1))

	isNull, err := vm.IsNull(-1)
	require.NoError(t, err)
	assert.True(t, isNull)
}

func TestVM_PushHelpers(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	vm.PushInteger(7)
	vm.PushSymbol("x")
	vm.PushOpaque(99)

	i, err := vm.ToInteger(0)
	require.NoError(t, err)
	assert.Equal(t, int32(7), i)

	v, err := vm.Peek(1)
	require.NoError(t, err)
	assert.Equal(t, KindSymbol, v.Kind())
	assert.Equal(t, "x", v.AsSymbol())

	v2, err := vm.Peek(-1)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), v2.AsOpaque())
}

func TestVM_SetMapGetMap(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	_, err := vm.Parse([]byte("(getenv)"), 0)
	require.NoError(t, err)
	require.NoError(t, vm.EvalAt(-1)) // stack[0] == root environment

	vm.PushSymbol("greeting")
	vm.push(vm.StringValue("hi"))
	require.NoError(t, vm.SetMap(0))

	vm.PushSymbol("greeting")
	require.NoError(t, vm.GetMap(0))

	v, err := vm.Peek(-1)
	require.NoError(t, err)
	assert.Equal(t, "hi", v.AsString())
}

func TestVM_GetMapMissingKeyIsErrorValue(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	_, err := vm.Parse([]byte("(getenv)"), 0)
	require.NoError(t, err)
	require.NoError(t, vm.EvalAt(-1))

	vm.PushSymbol("nope")
	require.NoError(t, vm.GetMap(0))

	v, err := vm.Peek(-1)
	require.NoError(t, err)
	assert.Equal(t, KindError, v.Kind())
}

func TestVM_StackCall(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	_, err := vm.Parse([]byte("+"), 0)
	require.NoError(t, err)
	require.NoError(t, vm.EvalAt(-1)) // resolve the symbol to the + builtin

	vm.PushInteger(3)
	vm.PushInteger(4)
	require.NoError(t, vm.StackCall(2, 1))

	i, err := vm.ToInteger(-1)
	require.NoError(t, err)
	assert.Equal(t, int32(7), i)
}

func TestVM_ResolveIndexOutOfRange(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()
	_, err := vm.Peek(0)
	assert.Error(t, err)
}

func TestVM_CollectReclaimsUnreachableObjects(t *testing.T) {
	vm := NewVMWithConfig(nil, Config{StackCapacityHint: 4})
	defer vm.Close()

	vm.StringValue("garbage, nothing points to this")
	before := vm.gc.liveCount()
	swept := vm.Collect()
	assert.Greater(t, swept, 0)
	assert.Less(t, vm.gc.liveCount(), before)
}
