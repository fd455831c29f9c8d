package main

import (
	"fmt"
	"os"
)

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  dukgo [--features=a,b] run [file.js] [args]")
	fmt.Fprintln(os.Stderr, "  dukgo [--features=a,b] <file.js> [args]")
	fmt.Fprintln(os.Stderr, "  dukgo eval <expression>")
	fmt.Fprintln(os.Stderr, "  dukgo check <file.js> [...]")
	fmt.Fprintln(os.Stderr, "  dukgo deps install")
	fmt.Fprintln(os.Stderr, "  dukgo version")
}
