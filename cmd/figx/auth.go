package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/tonykolomeytsev/figx/internal/auth"
	"github.com/tonykolomeytsev/figx/internal/figerr"
	"github.com/tonykolomeytsev/figx/internal/log"
)

// runAuth stores or inspects the personal access token in the OS
// keychain, for remotes declaring `keychain: true` as a token source.
func runAuth(args []string) int {
	fs := pflag.NewFlagSet("auth", pflag.ContinueOnError)
	verbosity := verbosityFlag(fs)
	token := fs.String("token", "", "token value (omit to read from stdin)")
	status := fs.Bool("status", false, "report whether a token is stored")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitConfig
	}
	log.Setup(*verbosity)

	if *status {
		stored, err := auth.LoadKeychainToken()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return figerr.ExitPipelines
		}
		if stored == "" {
			fmt.Println("no token stored")
		} else {
			fmt.Println("token stored")
		}
		return figerr.ExitOK
	}

	value := *token
	if value == "" {
		fmt.Fprint(os.Stderr, "Paste your Figma personal access token: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return figerr.ExitConfig
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		fmt.Fprintln(os.Stderr, "token is empty")
		return figerr.ExitConfig
	}
	if err := auth.StoreKeychainToken(value); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return figerr.ExitPipelines
	}
	fmt.Fprintln(os.Stderr, "token stored in the OS keychain")
	return figerr.ExitOK
}
