package main

import (
	"fmt"
	"os"

	"github.com/dop251/goja/parser"
)

// runCheck parses each file without evaluating it and reports syntax errors.
func runCheck(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "dukgo check requires at least one file")
		return 1
	}
	failed := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		if _, err := parser.ParseFile(nil, path, string(data), 0); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: ok\n", path)
	}
	if failed > 0 {
		return 1
	}
	return 0
}
