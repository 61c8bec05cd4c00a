package main

import (
	"fmt"
	"os"

	"lila"
)

// fsHooks wires a VM to the OS filesystem for $import (each module name
// resolves to "<modname>.ll" in baseDir: the script's directory for
// `lila run`, the working directory for the REPL) and to stdout for print.
type fsHooks struct {
	baseDir string
}

func (h *fsHooks) Init(vm *lila.VM) {
	if verbose {
		fmt.Fprintln(os.Stderr, "lila: vm started")
	}
}

func (h *fsHooks) Quit(vm *lila.VM) {
	if verbose {
		fmt.Fprintf(os.Stderr, "lila: vm stopped, %d objects swept\n", vm.Collect())
	}
}

func (h *fsHooks) Output(s string) {
	fmt.Print(s)
}

// Import reads "<modname>.ll", evaluates every top-level form it contains
// against a fresh environment, and returns that environment so the caller
// can reach its bindings by dotted lookup (modname.symbol).
func (h *fsHooks) Import(vm *lila.VM, modname string) (lila.ResultCode, lila.Value, error) {
	path := h.baseDir + "/" + modname + ".ll"
	if verbose {
		fmt.Fprintf(os.Stderr, "lila: importing %s from %s\n", modname, path)
	}
	src, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return lila.FileNotFound, lila.Value{}, nil
	}
	if err != nil {
		return lila.Fail, lila.Value{}, err
	}

	moduleEnv := vm.NewModuleEnv()
	pos := 0
	for pos < len(src) {
		next, perr := vm.Parse(src, pos)
		if perr != nil {
			if le, ok := perr.(*lila.LilaError); ok && le.Code == lila.FileNotFound {
				break
			}
			return lila.Fail, lila.Value{}, perr
		}
		pos = next

		if err := vm.EvalInEnv(moduleEnv); err != nil {
			return lila.Fail, lila.Value{}, err
		}
		if err := vm.Pop(1); err != nil {
			return lila.Fail, lila.Value{}, err
		}
	}
	return lila.Ok, vm.EnvironmentValue(moduleEnv), nil
}
