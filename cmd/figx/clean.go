package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/tonykolomeytsev/figx/internal/cache"
	"github.com/tonykolomeytsev/figx/internal/config"
	"github.com/tonykolomeytsev/figx/internal/figerr"
	"github.com/tonykolomeytsev/figx/internal/log"
)

// runClean drops cache entries. By default the whole cache goes; --index
// keeps downloaded byproducts and drops only the remote indexes.
func runClean(args []string) int {
	fs := pflag.NewFlagSet("clean", pflag.ContinueOnError)
	verbosity := verbosityFlag(fs)
	indexOnly := fs.Bool("index", false, "drop only the remote index namespace")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}
	log.Setup(*verbosity)

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}
	ws, err := config.Load(cwd, config.LoadOptions{IgnoreMissingToken: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitCode(err)
	}

	store, err := cache.NewStore(ws.CacheDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}
	if *indexOnly {
		err = store.CleanIndex()
	} else {
		err = store.CleanAll()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitPipelines
	}
	fmt.Fprintln(os.Stderr, "cache cleaned")
	return figerr.ExitOK
}
