// Command ransomeye-router routes a single alert JSON file against a
// signed policy bundle and prints the resulting RoutingDecision. With
// -ledger and -keys it additionally appends the decision to the audit
// ledger, referenced by the decision's own canonical content hash.
//
// Exit codes (spec.md §6): 0 success; 1 domain failure (policy rejection);
// 2 missing inputs; 3 I/O failure.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ransomeye/core/internal/ledger"
	"github.com/ransomeye/core/internal/policy"
	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/keystore"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/signing"
)

const recordKindRoutingDecision = "ROUTING_DECISION"

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

func Run(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("ransomeye-router", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var alertPath, bundlePath, keyDir, ledgerPath, ledgerKeyID string
	cmd.StringVar(&alertPath, "alert", "", "path to the alert JSON file (REQUIRED)")
	cmd.StringVar(&bundlePath, "bundle", "", "path to the signed policy bundle JSON file (REQUIRED)")
	cmd.StringVar(&keyDir, "keys", "", "path to the key directory (REQUIRED)")
	cmd.StringVar(&ledgerPath, "ledger", "", "path to the ledger JSONL file (optional: appends the decision)")
	cmd.StringVar(&ledgerKeyID, "ledger-key-id", "", "key_id to sign the ledger entry with (required if -ledger is set)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if alertPath == "" || bundlePath == "" || keyDir == "" {
		fmt.Fprintln(stderr, "Error: -alert, -bundle, and -keys are required")
		return 2
	}

	alertRaw, err := os.ReadFile(alertPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: reading alert: %v\n", err)
		return 3
	}
	var alert records.Alert
	if err := json.Unmarshal(alertRaw, &alert); err != nil {
		fmt.Fprintf(stderr, "Error: parsing alert: %v\n", err)
		return 2
	}

	ks, err := keystore.Open(keyDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	resolver := keystore.NewResolver(ks)

	loader := policy.NewBundleLoader(resolver)
	bundle, err := loader.Load(bundlePath)
	if err != nil {
		fmt.Fprintf(stdout, "FAIL: %v\n", err)
		return 1
	}

	evaluator, err := policy.NewRuleEvaluator()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	if err := evaluator.Compile(bundle.Rules); err != nil {
		fmt.Fprintf(stdout, "FAIL: %v\n", err)
		return 1
	}

	factory := records.NewFactory()
	router := policy.NewRouter(loader, evaluator, factory)

	decision, err := router.Route(alert)
	if err != nil {
		fmt.Fprintf(stdout, "FAIL: %v\n", err)
		return 1
	}

	if ledgerPath != "" {
		if ledgerKeyID == "" {
			fmt.Fprintln(stderr, "Error: -ledger-key-id is required when -ledger is set")
			return 2
		}
		priv, err := ks.LoadPrivate(ledgerKeyID)
		if err != nil {
			fmt.Fprintf(stderr, "Error: loading ledger signing key: %v\n", err)
			return 3
		}
		signer := signing.NewSigner(priv, ledgerKeyID)
		al, err := ledger.Open(ledgerPath, factory, signer)
		if err != nil {
			fmt.Fprintf(stderr, "Error: opening ledger: %v\n", err)
			return 3
		}
		defer al.Close()

		decisionBytes, err := canon.Bytes(decision)
		if err != nil {
			fmt.Fprintf(stderr, "Error: canonicalizing decision: %v\n", err)
			return 3
		}
		entry, err := al.AppendEntry(recordKindRoutingDecision, canon.HashBytes(decisionBytes))
		if err != nil {
			fmt.Fprintf(stderr, "Error: appending ledger entry: %v\n", err)
			return 3
		}
		decision.LedgerEntryID = entry.EntryID
	}

	data, _ := json.MarshalIndent(decision, "", "  ")
	fmt.Fprintln(stdout, string(data))
	return 0
}
