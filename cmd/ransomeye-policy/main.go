// Command ransomeye-policy loads and verifies signed PolicyBundle files
// against a key directory: signature validity under bundle_key_id and rule
// priority uniqueness.
//
// Exit codes (spec.md §6): 0 success; 1 domain failure (signature invalid,
// duplicate priority); 2 missing inputs; 3 I/O failure.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ransomeye/core/internal/policy"
	"github.com/ransomeye/core/pkg/keystore"
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "load" {
		fmt.Fprintln(stderr, "Usage: ransomeye-policy load -bundle <path> -keys <dir>")
		return 2
	}

	cmd := flag.NewFlagSet("load", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var bundlePath, keyDir string
	cmd.StringVar(&bundlePath, "bundle", "", "path to the signed policy bundle JSON file (REQUIRED)")
	cmd.StringVar(&keyDir, "keys", "", "path to the key directory holding bundle_key_id's public key (REQUIRED)")

	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}
	if bundlePath == "" || keyDir == "" {
		fmt.Fprintln(stderr, "Error: -bundle and -keys are required")
		return 2
	}

	ks, err := keystore.Open(keyDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	loader := policy.NewBundleLoader(keystore.NewResolver(ks))

	bundle, err := loader.Load(bundlePath)
	if err != nil {
		fmt.Fprintf(stdout, "FAIL: %v\n", err)
		return 1
	}

	data, _ := json.MarshalIndent(bundle, "", "  ")
	fmt.Fprintln(stdout, string(data))
	fmt.Fprintf(stdout, "PASS: bundle %s (%d rules) verified\n", bundle.BundleID, len(bundle.Rules))
	return 0
}
