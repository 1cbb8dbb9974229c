package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/tonykolomeytsev/figx/internal/config"
	"github.com/tonykolomeytsev/figx/internal/figerr"
	"github.com/tonykolomeytsev/figx/internal/label"
	"github.com/tonykolomeytsev/figx/internal/log"
	"github.com/tonykolomeytsev/figx/internal/planner"
)

// runQuery lists the resources selected by a pattern.
func runQuery(args []string) int {
	fs := pflag.NewFlagSet("query", pflag.ContinueOnError)
	verbosity := verbosityFlag(fs)
	output := fs.StringP("output", "o", "label", "output type: label | profile | package | tree")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}
	log.Setup(*verbosity)

	ws, patterns, code := loadAndMatchOffline(fs.Args())
	if code != 0 {
		return code
	}
	resources := ws.MatchResources(patterns)

	switch *output {
	case "label":
		for _, res := range resources {
			fmt.Println(res.Label)
		}
	case "profile":
		for _, res := range resources {
			fmt.Printf("%s %s\n", res.Label, res.Profile.Name)
		}
	case "package":
		seen := map[label.Package]bool{}
		for _, res := range resources {
			if !seen[res.Label.Package] {
				seen[res.Label.Package] = true
				fmt.Printf("//%s\n", res.Label.Package)
			}
		}
	case "tree":
		printTree(resources)
	default:
		fmt.Fprintf(os.Stderr, "unknown output type %q\n", *output)
		return figerr.ExitConfig
	}
	return figerr.ExitOK
}

func printTree(resources []*config.Resource) {
	var current label.Package = "\x00"
	for _, res := range resources {
		if res.Label.Package != current {
			current = res.Label.Package
			fmt.Printf("//%s\n", current)
		}
		fmt.Printf("├── :%s  (%s)\n", res.Label.Name, res.Profile.Name)
	}
}

// runAQuery prints the action graph: every planned step with its
// parameters and plan-time fingerprint.
func runAQuery(args []string) int {
	fs := pflag.NewFlagSet("aquery", pflag.ContinueOnError)
	verbosity := verbosityFlag(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}
	log.Setup(*verbosity)

	ws, patterns, code := loadAndMatchOffline(fs.Args())
	if code != 0 {
		return code
	}
	pipelines, err := planner.Plan(ws, ws.MatchResources(patterns))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitCode(err)
	}
	for _, p := range pipelines {
		fmt.Printf("%s  node=%q\n", p.ID(), p.NodeName)
		for _, line := range p.Describe() {
			fmt.Printf("  %s\n", line)
		}
	}
	return figerr.ExitOK
}

// runExplain describes the chain a profile produces without planning any
// concrete resource.
func runExplain(args []string) int {
	fs := pflag.NewFlagSet("explain", pflag.ContinueOnError)
	verbosity := verbosityFlag(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}
	log.Setup(*verbosity)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: figx explain <profile>")
		return figerr.ExitConfig
	}
	profileName := fs.Arg(0)

	ws, _, code := loadAndMatchOffline(nil)
	if code != 0 {
		return code
	}
	profile, ok := ws.Profiles[profileName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown profile %q\n", profileName)
		return figerr.ExitConfig
	}

	// Plan a placeholder resource against the profile to show the real
	// chain, variants included.
	res := &config.Resource{
		Label:    mustLabel("example", "name"),
		Profile:  profile,
		NodeName: "Example / Name",
		File:     ws.File,
	}
	pipelines, err := planner.Plan(ws, []*config.Resource{res})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitCode(err)
	}
	fmt.Printf("profile %s (%s) expands to %d pipeline(s):\n", profile.Name, profile.Kind, len(pipelines))
	for _, p := range pipelines {
		fmt.Printf("%s\n", p.ID())
		for _, line := range p.Describe() {
			fmt.Printf("  %s\n", line)
		}
	}
	return figerr.ExitOK
}

// runInfo prints a summary of the workspace or the current package.
func runInfo(args []string) int {
	fs := pflag.NewFlagSet("info", pflag.ContinueOnError)
	verbosity := verbosityFlag(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}
	log.Setup(*verbosity)

	entity := "workspace"
	if fs.NArg() > 0 {
		entity = fs.Arg(0)
	}

	ws, _, code := loadAndMatchOffline(nil)
	if code != 0 {
		return code
	}

	switch entity {
	case "workspace":
		fmt.Printf("workspace: %s\n", ws.Dir)
		fmt.Printf("manifest:  %s\n", ws.File)
		fmt.Printf("remotes:\n")
		for _, id := range ws.RemoteOrder {
			r := ws.Remotes[id]
			marker := ""
			if id == ws.DefaultRemote {
				marker = " (default)"
			}
			fmt.Printf("  @%s/%s%s\n", id, r.FileKey, marker)
		}
		total := 0
		for _, pkg := range ws.Packages {
			total += len(pkg.Resources)
		}
		fmt.Printf("packages:  %d with %d resource(s)\n", len(ws.Packages), total)
	case "package":
		for _, pkg := range ws.Packages {
			if pkg.Package != ws.CurrentDir {
				continue
			}
			fmt.Printf("package: //%s\n", pkg.Package)
			fmt.Printf("manifest: %s\n", pkg.File)
			for _, res := range pkg.Resources {
				fmt.Printf("  :%s  profile=%s  node=%q\n", res.Label.Name, res.Profile.Name, res.NodeName)
			}
			return figerr.ExitOK
		}
		fmt.Fprintln(os.Stderr, "current directory is not a package")
		return figerr.ExitConfig
	default:
		fmt.Fprintf(os.Stderr, "unknown entity %q (want workspace or package)\n", entity)
		return figerr.ExitConfig
	}
	return figerr.ExitOK
}

// loadAndMatchOffline loads the workspace for commands that never hit the
// network and therefore do not need credentials.
func loadAndMatchOffline(patternArgs []string) (*config.Workspace, label.Set, int) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, figerr.ExitConfig
	}
	ws, err := config.Load(cwd, config.LoadOptions{IgnoreMissingToken: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, figerr.ExitCode(err)
	}
	patterns, err := label.ParseSet(patternArgs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, figerr.ExitConfig
	}
	return ws, patterns, 0
}

func mustLabel(pkg, name string) label.Label {
	l, err := label.New(pkg, name)
	if err != nil {
		panic(err)
	}
	return l
}
