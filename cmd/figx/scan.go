package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/tonykolomeytsev/figx/internal/config"
	"github.com/tonykolomeytsev/figx/internal/figerr"
	"github.com/tonykolomeytsev/figx/internal/figma"
	"github.com/tonykolomeytsev/figx/internal/log"
)

// scannedNode is the conservative scan schema: downstream consumers are
// unspecified, so only the stable fields are emitted.
type scannedNode struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Tag  string `yaml:"tag,omitempty"`
}

// runScan dumps the visible nodes of one or more remotes to
// .figx-out/scans/<remote>.yaml. Experimental; the output schema may
// change.
func runScan(args []string) int {
	fs := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	verbosity := verbosityFlag(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}
	log.Setup(*verbosity)
	log.Warn("remote scanning is an experimental feature, output schema may change")

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}
	ws, err := config.Load(cwd, config.LoadOptions{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitCode(err)
	}

	remoteIDs := fs.Args()
	if len(remoteIDs) == 0 {
		remoteIDs = ws.RemoteOrder
	}

	scansDir := filepath.Join(ws.OutDir, "scans")
	if err := os.MkdirAll(scansDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitPipelines
	}

	api := figma.NewClient()
	for _, id := range remoteIDs {
		remote, ok := ws.Remotes[id]
		if !ok {
			fmt.Fprintf(os.Stderr, "no remote with name %q defined in workspace\n", id)
			return figerr.ExitConfig
		}
		if err := scanRemote(api, remote, filepath.Join(scansDir, id+".yaml")); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return figerr.ExitCode(err)
		}
	}
	return figerr.ExitOK
}

func scanRemote(api *figma.Client, remote *config.Remote, outFile string) error {
	token, err := remote.Token.Resolve(remote.ID)
	if err != nil {
		return err
	}
	body, err := api.FileNodes(context.Background(), token, remote.FileKey, remote.ContainerIDs())
	if err != nil {
		return err
	}
	defer body.Close()

	tags := make(map[string]string, len(remote.Containers))
	for _, c := range remote.Containers {
		if c.Tag != "" {
			tags[c.NodeID] = c.Tag
		}
	}

	var nodes []scannedNode
	err = figma.WalkNodes(body, tags, func(n figma.Node) {
		if !n.Visible || !n.IsComponent() {
			return
		}
		nodes = append(nodes, scannedNode{ID: n.ID, Name: n.Name, Type: n.Type, Tag: n.Tag})
	})
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(map[string]any{"version": 1, "nodes": nodes})
	if err != nil {
		return err
	}
	if err := os.WriteFile(outFile, data, 0o644); err != nil {
		return err
	}
	log.Info("scan saved", "remote", remote.ID, "file", outFile, "nodes", len(nodes))
	return nil
}
