package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dukgo/dukgo/pkg/engine"
)

func runEval(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "dukgo eval requires an expression")
		return 1
	}
	src := strings.Join(args, " ")

	ctx := engine.New()
	value, err := ctx.Eval(src)
	if err != nil {
		reportScriptError(err)
		return 1
	}
	if !value.IsUndefined() {
		fmt.Fprintln(os.Stdout, value.String())
	}
	return 0
}
