package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lila"
)

var debugDump bool

func init() {
	runCmd := newRunCmd()
	runCmd.Flags().BoolVar(&debugDump, "debug", false, "dump each top-level result's heap graph to stderr")
	rootCmd.AddCommand(runCmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Parse and evaluate every top-level form in a .ll file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0])
		},
	}
}

func runFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("lila run: %w", err)
	}

	hooks := &fsHooks{baseDir: filepath.Dir(path)}
	vm := lila.NewVM(hooks)
	defer vm.Close()

	pos := 0
	for pos < len(src) {
		next, err := vm.Parse(src, pos)
		if err != nil {
			if le, ok := err.(*lila.LilaError); ok && le.Code == lila.FileNotFound {
				break
			}
			return fmt.Errorf("lila run: parse: %w", err)
		}
		pos = next

		if err := vm.EvalAt(-1); err != nil {
			return fmt.Errorf("lila run: eval: %w", err)
		}
		result, err := vm.Peek(-1)
		if err != nil {
			return fmt.Errorf("lila run: %w", err)
		}
		if debugDump {
			fmt.Fprintln(os.Stderr, lila.DumpValue(result))
		}
		if result.Kind() == lila.KindError {
			if perr := vm.PrintAt(-1, "\n"); perr != nil {
				return fmt.Errorf("lila run: %w", perr)
			}
			return fmt.Errorf("lila run: %s", path)
		}
		if err := vm.Pop(1); err != nil {
			return fmt.Errorf("lila run: %w", err)
		}
	}
	return nil
}
