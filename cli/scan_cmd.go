package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nox-hq/aegis/config"
	"github.com/nox-hq/aegis/detect"
	"github.com/nox-hq/aegis/facade"
	"github.com/nox-hq/aegis/patterns"
)

// runScan scans one piece of text — from the argument list or stdin —
// and reports the scan result. Exit 0 when safe, 1 when blocked.
func runScan(args []string, quiet bool) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	var (
		policyPath  string
		sensitivity string
		jsonFlag    bool
	)
	fs.StringVar(&policyPath, "policy", config.DefaultFileName, "path to the policy file")
	fs.StringVar(&sensitivity, "sensitivity", "", "override scan sensitivity: paranoid|balanced|permissive")
	fs.BoolVar(&jsonFlag, "json", false, "output the full scan result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	text, err := scanInput(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	pol, err := config.Load(policyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading policy: %v\n", err)
		return 2
	}

	guard, err := facade.New(facade.Config{
		Policy:      pol,
		Sensitivity: patterns.Sensitivity(sensitivity),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	res, err := guard.GuardInput(context.Background(), []facade.Message{
		{Role: "user", Content: text},
	}, facade.ScanLastUser)

	var blocked *facade.InputBlockedError
	switch {
	case err == nil:
		printScanResult(res.ScanResults[0], jsonFlag, quiet)
		return 0
	case errors.As(err, &blocked):
		printScanResult(blocked.ScanResult, jsonFlag, quiet)
		return 1
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
}

// scanInput takes the text from the remaining args, or stdin when no
// argument is given.
func scanInput(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no input: pass text as an argument or on stdin")
	}
	return string(data), nil
}

func printScanResult(res detect.ScanResult, jsonFlag, quiet bool) {
	if quiet {
		return
	}
	if jsonFlag {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}

	verdict := "SAFE"
	if !res.Safe {
		verdict = "BLOCKED"
	}
	fmt.Printf("%s  score=%.2f  detections=%d\n", verdict, res.Score, len(res.Detections))
	for _, d := range res.Detections {
		fmt.Printf("  [%s] %s (%s): %s\n", d.Severity, d.Type, d.Pattern, d.Description)
	}
}
