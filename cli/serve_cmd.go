package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nox-hq/aegis/config"
	"github.com/nox-hq/aegis/facade"
	"github.com/nox-hq/aegis/mcpserver"
)

// runServe runs the MCP guard server on stdio until the client
// disconnects.
func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var (
		policyPath string
		sessionID  string
	)
	fs.StringVar(&policyPath, "policy", config.DefaultFileName, "path to the policy file")
	fs.StringVar(&sessionID, "session", "", "bind the server to a host-supplied session ID")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	pol, err := config.Load(policyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading policy: %v\n", err)
		return 2
	}

	guard, err := facade.New(facade.Config{
		SessionID: sessionID,
		Policy:    pol,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	if err := mcpserver.New(version, guard).Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "error: mcp server: %v\n", err)
		return 2
	}
	return 0
}
