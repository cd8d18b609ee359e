package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/nox-hq/aegis/catalog"
)

// runPatterns lists the built-in detection patterns with severities and
// compliance mappings.
func runPatterns(args []string) int {
	fs := flag.NewFlagSet("patterns", flag.ContinueOnError)
	var (
		jsonFlag   bool
		typeFilter string
	)
	fs.BoolVar(&jsonFlag, "json", false, "output as JSON")
	fs.StringVar(&typeFilter, "type", "", "only patterns of this detection type")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	metas := catalog.Sorted()
	if typeFilter != "" {
		var kept []catalog.PatternMeta
		for _, m := range metas {
			if m.Type == typeFilter {
				kept = append(kept, m)
			}
		}
		metas = kept
	}

	if jsonFlag {
		data, err := json.MarshalIndent(metas, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
		fmt.Println(string(data))
		return 0
	}

	for _, m := range metas {
		fmt.Printf("%-8s %-22s %-8s %s\n", m.ID, m.Type, m.Severity, m.Description)
	}
	fmt.Printf("\n%d patterns\n", len(metas))
	return 0
}
