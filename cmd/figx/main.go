// Command figx imports design assets from Figma into the source tree,
// driven by the workspace manifests.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(args []string) int {
	if len(args) < 1 {
		printUsage()
		return 2
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "info":
		return runInfo(rest)
	case "query":
		return runQuery(rest)
	case "aquery":
		return runAQuery(rest)
	case "fetch":
		return runEval(rest, true)
	case "import":
		return runEval(rest, false)
	case "explain":
		return runExplain(rest)
	case "clean":
		return runClean(rest)
	case "auth":
		return runAuth(rest)
	case "scan":
		return runScan(rest)
	case "version", "--version":
		fmt.Printf("figx %s (%s)\n", version, gitCommit)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `figx - import design assets from Figma

Usage:
  figx <command> [flags] [//package:target ...]

Commands:
  info      Show brief info about entities of the current workspace
  query     Search resources in the current workspace
  aquery    Analyze the action graph of resources
  fetch     Download resource metadata and exports into the cache
  import    Import resources from remotes into workspace files
  explain   Describe the step chain a profile produces
  clean     Clean up the application cache
  auth      Store the personal access token in the OS keychain
  scan      List nodes of a remote (experimental)
  version   Print the version

Target patterns:
  //path/to/pkg:name   a single resource
  //path/to/pkg:all    every resource of a package
  //...                the whole workspace
  :name                package-local, relative to the working directory

Common flags:
  -v, -vv, -vvv        log verbosity
  -j N                 worker count (import/fetch)
  --refetch            invalidate the cached remote index first
`)
}

// verbosityFlag registers the counting -v flag the way every subcommand
// expects it.
func verbosityFlag(fs *pflag.FlagSet) *int {
	return fs.CountP("verbose", "v", "increase log verbosity")
}
