package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tonykolomeytsev/figx/internal/cache"
	"github.com/tonykolomeytsev/figx/internal/config"
	"github.com/tonykolomeytsev/figx/internal/events"
	"github.com/tonykolomeytsev/figx/internal/exec"
	"github.com/tonykolomeytsev/figx/internal/figerr"
	"github.com/tonykolomeytsev/figx/internal/figma"
	"github.com/tonykolomeytsev/figx/internal/label"
	"github.com/tonykolomeytsev/figx/internal/lock"
	"github.com/tonykolomeytsev/figx/internal/log"
	"github.com/tonykolomeytsev/figx/internal/metrics"
	"github.com/tonykolomeytsev/figx/internal/planner"
	"github.com/tonykolomeytsev/figx/internal/tui"
)

// runEval is the shared implementation of `figx import` and `figx fetch`.
func runEval(args []string, fetchOnly bool) int {
	name := "import"
	if fetchOnly {
		name = "fetch"
	}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	verbosity := verbosityFlag(fs)
	jobs := fs.IntP("jobs", "j", 0, "worker count (default: logical cores)")
	refetch := fs.Bool("refetch", false, "invalidate the cached remote index first")
	failFast := fs.Bool("fail-fast", false, "stop on the first pipeline failure")
	timeout := fs.Duration("timeout", 0, "whole-run timeout")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}
	log.Setup(*verbosity)

	ws, patterns, code := loadAndMatch(fs.Args())
	if code != 0 {
		return code
	}
	resources := ws.MatchResources(patterns)
	if len(resources) == 0 {
		fmt.Fprintln(os.Stderr, "no resources match the given pattern")
		return figerr.ExitConfig
	}

	pipelines, err := planner.Plan(ws, resources)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitCode(err)
	}

	runLock, err := lock.Acquire(filepath.Join(ws.OutDir, "run.lock"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}
	defer func() { _ = runLock.Release() }()

	store, err := cache.NewStore(ws.CacheDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}

	hub := events.NewHub(1024)
	collector := metrics.NewCollector()
	metricsCh, cancelMetrics := hub.Subscribe()
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		for env := range metricsCh {
			collector.Observe(env)
		}
	}()

	renderer := tui.New(hub, len(pipelines))
	renderer.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	api := figma.NewClient()
	engine := exec.NewEngine(ws, store, api, hub, exec.Options{
		Workers:   *jobs,
		FailFast:  *failFast,
		Refetch:   *refetch,
		FetchOnly: fetchOnly,
	})

	started := time.Now()
	failures, runErr := engine.Run(ctx, pipelines)

	renderer.Stop()
	cancelMetrics()
	<-metricsDone
	if err := collector.WriteFile(ws.OutDir); err != nil {
		log.Warn("unable to write metrics file", "error", err)
	}

	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "FAILED %s\n", f.Error())
	}
	switch {
	case runErr != nil:
		fmt.Fprintf(os.Stderr, "run aborted: %v\n", runErr)
		return figerr.ExitCode(runErr)
	case len(failures) > 0:
		fmt.Fprintf(os.Stderr, "%d of %d pipeline(s) failed in %s\n",
			len(failures), len(pipelines), formatDuration(time.Since(started)))
		return figerr.ExitPipelines
	default:
		fmt.Fprintf(os.Stderr, "finished %d pipeline(s) in %s\n",
			len(pipelines), formatDuration(time.Since(started)))
		return figerr.ExitOK
	}
}

// loadAndMatch loads the workspace around the working directory and
// parses the target patterns.
func loadAndMatch(patternArgs []string) (*config.Workspace, label.Set, int) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, figerr.ExitConfig
	}
	ws, err := config.Load(cwd, config.LoadOptions{})
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

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%.2f sec", d.Seconds())
	case d < time.Minute:
		return fmt.Sprintf("%d sec", int(d.Seconds()))
	default:
		m := int(d.Minutes())
		s := int(d.Seconds()) - m*60
		if s == 0 {
			return fmt.Sprintf("%d min", m)
		}
		return fmt.Sprintf("%d min %d sec", m, s)
	}
}
