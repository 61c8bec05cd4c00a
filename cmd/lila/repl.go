package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lila"
)

func init() {
	rootCmd.AddCommand(newReplCmd())
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Read-eval-print loop over stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl()
		},
	}
}

func runRepl() error {
	wd, _ := os.Getwd()
	hooks := &fsHooks{baseDir: wd}
	vm := lila.NewVM(hooks)
	defer vm.Close()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Print("lila> ")
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			fmt.Print("lila> ")
			continue
		}

		src := []byte(line)
		pos := 0
		for pos < len(src) {
			next, err := vm.Parse(src, pos)
			if err != nil {
				if le, ok := err.(*lila.LilaError); ok && le.Code == lila.FileNotFound {
					break
				}
				fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
				break
			}
			pos = next

			if err := vm.EvalAt(-1); err != nil {
				fmt.Fprintf(os.Stderr, "eval error: %v\n", err)
				vm.Pop(1)
				continue
			}
			if err := vm.PrintAt(-1, "\n"); err != nil {
				fmt.Fprintf(os.Stderr, "print error: %v\n", err)
			}
			vm.Pop(1)
		}
		fmt.Print("lila> ")
	}
	fmt.Println()
	return scanner.Err()
}
