// Package main is the entry point for the aegis CLI.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// extractInterspersedArgs reorders args so that known top-level flags come
// before positional arguments, allowing "aegis scan --json 'text'" to work
// the same as "aegis --json scan 'text'". Subcommand-specific flags are
// left in place for the subcommand to parse.
func extractInterspersedArgs(args []string) []string {
	var flags, rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			rest = append(rest, args[i:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") {
			rest = append(rest, arg)
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if eq := strings.Index(name, "="); eq >= 0 {
			name = name[:eq]
		}
		if isTopLevelBoolFlag(name) {
			flags = append(flags, arg)
		} else {
			// Unknown flag — belongs to a subcommand, leave in place.
			rest = append(rest, arg)
		}
	}
	return append(flags, rest...)
}

func isTopLevelBoolFlag(name string) bool {
	switch name {
	case "quiet", "q", "version":
		return true
	}
	return false
}

// run executes the CLI and returns the exit code.
// 0 = clean, 1 = blocked/unsafe, 2 = error.
func run(args []string) int {
	args = extractInterspersedArgs(args)
	fs := flag.NewFlagSet("aegis", flag.ContinueOnError)

	var (
		quietFlag   bool
		versionFlag bool
	)
	fs.BoolVar(&quietFlag, "quiet", false, "suppress all output except errors")
	fs.BoolVar(&quietFlag, "q", false, "suppress all output except errors (shorthand)")
	fs.BoolVar(&versionFlag, "version", false, "print version and exit")

	fs.Usage = func() { printUsage(fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if versionFlag {
		fmt.Printf("aegis %s (commit %s, built %s)\n", version, commit, date)
		return 0
	}

	if fs.NArg() == 0 {
		printUsage(fs)
		return 2
	}

	sub := fs.Arg(0)
	subArgs := fs.Args()[1:]

	switch sub {
	case "scan":
		return runScan(subArgs, quietFlag)
	case "serve":
		return runServe(subArgs)
	case "patterns":
		return runPatterns(subArgs)
	case "inspect":
		return runInspect(subArgs)
	case "version":
		fmt.Printf("aegis %s (commit %s, built %s)\n", version, commit, date)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n\n", sub)
		printUsage(fs)
		return 2
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprint(os.Stderr, `aegis — LLM guard layer

Usage:
  aegis scan [flags] [text]     scan text (or stdin) for prompt injection
  aegis serve [flags]           run the MCP guard server on stdio
  aegis patterns [flags]        list the built-in detection patterns
  aegis inspect [flags] <file>  browse an audit JSONL file interactively
  aegis version                 print version information

Flags:
`)
	fs.PrintDefaults()
}
