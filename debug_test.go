package lila

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDumpValue_RendersScalarsAndLists(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	out := DumpValue(vm.ListValue([]Value{Int(1), vm.StringValue("two"), Double(3.5)}))
	assert.Contains(t, out, "(int32) 1")
	assert.Contains(t, out, "two")
	assert.Contains(t, out, "3.5")
}

func TestDumpValue_RendersEnvironmentChain(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	outer := newEnvironment(vm, nil, 1)
	outer.bind("x", Int(7))
	inner := newEnvironment(vm, outer, 1)
	inner.bind("y", Int(8))

	out := DumpValue(vm.EnvironmentValue(inner))
	assert.Contains(t, out, `"y"`)
	assert.Contains(t, out, `"$parent"`)
	assert.Contains(t, out, `"x"`)
}

func TestDumpValue_RendersCallableAndError(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	v := evalSrc(t, vm, "($lambda (x) x)")
	out := DumpValue(v)
	assert.Contains(t, out, "callableDump")
	assert.Contains(t, out, "Operative: (bool) false")

	errv := vm.ErrorValue(ErrGenericFailure, "boom")
	errOut := DumpValue(errv)
	assert.True(t, strings.Contains(errOut, "GenericFailure"))
	assert.True(t, strings.Contains(errOut, "boom"))
}
