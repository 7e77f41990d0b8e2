// Command ransomeye-ledger is the CLI surface over internal/ledger.AuditLedger:
// append a record reference, print the current head, verify chain
// integrity (seq monotonicity, prev_entry_hash linkage, signatures) against
// a key directory, or export the whole chain as a signed report.
//
// Exit codes (spec.md §6): 0 success; 1 domain failure (chain broken,
// signature invalid); 2 missing inputs; 3 I/O failure.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ransomeye/core/internal/ledger"
	"github.com/ransomeye/core/internal/reportexport"
	"github.com/ransomeye/core/pkg/keystore"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/signing"
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: ransomeye-ledger <append|head|verify|export> [flags]")
		return 2
	}
	switch args[0] {
	case "append":
		return runAppend(args[1:], stdout, stderr)
	case "head":
		return runHead(args[1:], stdout, stderr)
	case "verify":
		return runVerify(args[1:], stdout, stderr)
	case "export":
		return runExport(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n", args[0])
		return 2
	}
}

func runAppend(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("append", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var ledgerPath, keyDir, keyID, recordKind, recordRef string
	cmd.StringVar(&ledgerPath, "ledger", "", "path to the ledger JSONL file (REQUIRED)")
	cmd.StringVar(&keyDir, "keys", "", "path to the signing key directory (REQUIRED)")
	cmd.StringVar(&keyID, "key-id", "", "key_id of the signing key to use (REQUIRED)")
	cmd.StringVar(&recordKind, "kind", "", "record_kind of the referenced domain record (REQUIRED)")
	cmd.StringVar(&recordRef, "ref", "", "content hash of the referenced domain record (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if ledgerPath == "" || keyDir == "" || keyID == "" || recordKind == "" || recordRef == "" {
		fmt.Fprintln(stderr, "Error: -ledger, -keys, -key-id, -kind, and -ref are all required")
		return 2
	}

	ks, err := keystore.Open(keyDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	priv, err := ks.LoadPrivate(keyID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: loading signing key: %v\n", err)
		return 3
	}
	signer := signing.NewSigner(priv, keyID)

	al, err := ledger.Open(ledgerPath, records.NewFactory(), signer)
	if err != nil {
		fmt.Fprintf(stderr, "Error: opening ledger: %v\n", err)
		return 3
	}
	defer al.Close()

	entry, err := al.AppendEntry(recordKind, recordRef)
	if err != nil {
		fmt.Fprintf(stderr, "Error: appending entry: %v\n", err)
		return 1
	}

	data, _ := json.MarshalIndent(entry, "", "  ")
	fmt.Fprintln(stdout, string(data))
	return 0
}

func runHead(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("head", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var ledgerPath string
	cmd.StringVar(&ledgerPath, "ledger", "", "path to the ledger JSONL file (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if ledgerPath == "" {
		fmt.Fprintln(stderr, "Error: -ledger is required")
		return 2
	}

	st, err := readOnlyLedgerEntries(ledgerPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	if len(st) == 0 {
		fmt.Fprintln(stdout, "ledger is empty")
		return 0
	}
	data, _ := json.MarshalIndent(st[len(st)-1], "", "  ")
	fmt.Fprintln(stdout, string(data))
	return 0
}

func runVerify(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var ledgerPath, keyDir string
	cmd.StringVar(&ledgerPath, "ledger", "", "path to the ledger JSONL file (REQUIRED)")
	cmd.StringVar(&keyDir, "keys", "", "path to the key directory to resolve signatures against (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if ledgerPath == "" || keyDir == "" {
		fmt.Fprintln(stderr, "Error: -ledger and -keys are required")
		return 2
	}

	entries, err := readOnlyLedgerEntries(ledgerPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	ks, err := keystore.Open(keyDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	resolver := keystore.NewResolver(ks)

	if err := ledger.VerifyChainOnly(entries, resolver); err != nil {
		fmt.Fprintf(stdout, "FAIL: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "PASS: %d entries verified\n", len(entries))
	return 0
}

func runExport(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var ledgerPath, keyDir, keyID, format, outPath string
	cmd.StringVar(&ledgerPath, "ledger", "", "path to the ledger JSONL file (REQUIRED)")
	cmd.StringVar(&keyDir, "keys", "", "path to the signing key directory (REQUIRED)")
	cmd.StringVar(&keyID, "key-id", "", "key_id to sign the exported report with (REQUIRED)")
	cmd.StringVar(&format, "format", "json", "export format: json|jsonl|csv")
	cmd.StringVar(&outPath, "out", "", "path to write the exported report (default: stdout only)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if ledgerPath == "" || keyDir == "" || keyID == "" {
		fmt.Fprintln(stderr, "Error: -ledger, -keys, and -key-id are required")
		return 2
	}

	entries, err := readOnlyLedgerEntries(ledgerPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}

	ks, err := keystore.Open(keyDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	priv, err := ks.LoadPrivate(keyID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: loading signing key: %v\n", err)
		return 3
	}
	signer := signing.NewSigner(priv, keyID)

	report, err := reportexport.Build(records.NewFactory(), signer, "LEDGER_EXPORT", ledgerPath, entries)
	if err != nil {
		fmt.Fprintf(stderr, "Error: building exported report: %v\n", err)
		return 1
	}

	rendered, err := reportexport.Render(reportexport.Format(format), []records.Report{report}, entries)
	if err != nil {
		fmt.Fprintf(stderr, "Error: rendering exported report: %v\n", err)
		return 2
	}

	fmt.Fprintln(stdout, string(rendered))
	if outPath != "" {
		if err := os.WriteFile(outPath, rendered, 0o644); err != nil {
			fmt.Fprintf(stderr, "Error: writing exported report: %v\n", err)
			return 3
		}
	}
	return 0
}

func readOnlyLedgerEntries(path string) ([]records.LedgerEntry, error) {
	st, err := openLedgerReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return decodeLedgerLines(st)
}
