package main

import (
	"fmt"
	"os"
)

const cliToolVersion = "dukgo 0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Feature flags may precede the subcommand, per the usage text.
	features, args, err := parseFeatureFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "--help", "-h", "help":
		printUsage()
		return 0
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return 0
	case "run":
		return runEntry(features, args[1:])
	case "eval":
		return runEval(args[1:])
	case "check":
		return runCheck(args[1:])
	case "deps":
		return runDeps(features, args[1:])
	default:
		return runEntry(features, args)
	}
}
