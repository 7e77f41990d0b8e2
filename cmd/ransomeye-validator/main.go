// Command ransomeye-validator runs the offline ReplayEngine/Validator
// (spec.md §4.10) against a ledger, its referenced domain stores, signed
// envelopes, policy bundles, and a simulation set of alert/decision pairs.
// It never writes to any domain store — only to its own signed report.
//
// Exit codes (spec.md §6): 0 validation PASSED; 1 validation FAILED;
// 2 missing inputs; 3 I/O failure.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ransomeye/core/internal/policy"
	"github.com/ransomeye/core/internal/replay"
	"github.com/ransomeye/core/internal/reportexport"
	"github.com/ransomeye/core/pkg/keystore"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/signing"
	"github.com/ransomeye/core/pkg/store"
)

// kvList collects repeated "-flag kind=path" occurrences.
type kvList struct {
	keys  []string
	paths []string
}

func (l *kvList) String() string { return "" }
func (l *kvList) Set(v string) error {
	parts := strings.SplitN(v, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected kind=path, got %q", v)
	}
	l.keys = append(l.keys, parts[0])
	l.paths = append(l.paths, parts[1])
	return nil
}

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

func Run(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("ransomeye-validator", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var ledgerPath, keyDir, reportKeyID, outPath, alertsPath, decisionsPath, bundlePath string
	var exportFormat, exportOutPath string
	var domainFlags, signedFlags kvList
	cmd.StringVar(&ledgerPath, "ledger", "", "path to the ledger JSONL file (REQUIRED)")
	cmd.StringVar(&keyDir, "keys", "", "path to the key directory (REQUIRED)")
	cmd.StringVar(&reportKeyID, "report-key-id", "", "key_id to sign the validation report with (REQUIRED)")
	cmd.StringVar(&outPath, "out", "", "path to write the signed report JSON (default: stdout only)")
	cmd.StringVar(&bundlePath, "bundle", "", "path to the policy bundle used for config+simulation checks")
	cmd.StringVar(&alertsPath, "alerts", "", "path to the alerts JSONL store (for the simulation check)")
	cmd.StringVar(&decisionsPath, "decisions", "", "path to the routing decisions JSONL store (for the simulation check)")
	cmd.Var(&domainFlags, "domain", "kind=path domain store binding for the integrity check (repeatable)")
	cmd.Var(&signedFlags, "signed", "kind=path signed artifact for the custody check (repeatable); kind one of bundle|report|playbook|command")
	cmd.StringVar(&exportFormat, "export-format", "", "also wrap the validation report in a signed records.Report and export it: json|jsonl|csv")
	cmd.StringVar(&exportOutPath, "export-out", "", "path to write the exported report (default: stdout only)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if ledgerPath == "" || keyDir == "" || reportKeyID == "" {
		fmt.Fprintln(stderr, "Error: -ledger, -keys, and -report-key-id are required")
		return 2
	}

	ks, err := keystore.Open(keyDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	resolver := keystore.NewResolver(ks)

	entries, err := readLedgerEntries(ledgerPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: reading ledger: %v\n", err)
		return 3
	}

	bindings := make(map[string]replay.DomainBinding, len(domainFlags.keys))
	for i, kind := range domainFlags.keys {
		b, err := domainStoreBinding(domainFlags.paths[i])
		if err != nil {
			fmt.Fprintf(stderr, "Error: binding domain store for %s: %v\n", kind, err)
			return 3
		}
		bindings[kind] = b
	}

	custody := make([]replay.SignedArtifact, 0, len(signedFlags.keys))
	for i, kind := range signedFlags.keys {
		a, err := loadSignedArtifact(kind, signedFlags.paths[i])
		if err != nil {
			fmt.Fprintf(stderr, "Error: loading signed artifact %s: %v\n", kind, err)
			return 3
		}
		custody = append(custody, a)
	}

	factory := records.NewFactory()
	var bundles []records.PolicyBundle
	loader := policy.NewBundleLoader(resolver)
	var router *policy.Router
	if bundlePath != "" {
		bundle, err := loader.Load(bundlePath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: loading bundle: %v\n", err)
			return 3
		}
		bundles = append(bundles, bundle)

		evaluator, err := policy.NewRuleEvaluator()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 3
		}
		if err := evaluator.Compile(bundle.Rules); err != nil {
			fmt.Fprintf(stderr, "Error: compiling bundle rules: %v\n", err)
			return 3
		}
		router = policy.NewRouter(loader, evaluator, factory)
	}

	var simulation []replay.SimulationCase
	if alertsPath != "" && decisionsPath != "" {
		if router == nil {
			fmt.Fprintln(stderr, "Error: -bundle is required when -alerts/-decisions are set")
			return 2
		}
		simulation, err = buildSimulationCases(alertsPath, decisionsPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: building simulation cases: %v\n", err)
			return 3
		}
	} else {
		router = policy.NewRouter(loader, mustEmptyEvaluator(), factory)
	}

	priv, err := ks.LoadPrivate(reportKeyID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: loading report signing key: %v\n", err)
		return 3
	}
	signer := signing.NewSigner(priv, reportKeyID)

	validator := replay.New(resolver, router, factory)
	report, err := validator.Run(entries, bindings, bundles, loader, custody, simulation, signer)
	if err != nil {
		fmt.Fprintf(stderr, "Error: running validator: %v\n", err)
		return 3
	}

	data, _ := json.MarshalIndent(report, "", "  ")
	fmt.Fprintln(stdout, string(data))
	if outPath != "" {
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			fmt.Fprintf(stderr, "Error: writing report: %v\n", err)
			return 3
		}
	}

	if exportFormat != "" {
		signedReport, err := reportexport.Build(factory, signer, "VALIDATION", report.ReportID, report)
		if err != nil {
			fmt.Fprintf(stderr, "Error: building exported report: %v\n", err)
			return 3
		}
		rendered, err := reportexport.Render(reportexport.Format(exportFormat), []records.Report{signedReport}, report)
		if err != nil {
			fmt.Fprintf(stderr, "Error: rendering exported report: %v\n", err)
			return 2
		}
		fmt.Fprintln(stdout, string(rendered))
		if exportOutPath != "" {
			if err := os.WriteFile(exportOutPath, rendered, 0o644); err != nil {
				fmt.Fprintf(stderr, "Error: writing exported report: %v\n", err)
				return 3
			}
		}
	}

	if report.ValidationStatus != replay.StatusPass {
		return 1
	}
	return 0
}

func mustEmptyEvaluator() *policy.RuleEvaluator {
	e, err := policy.NewRuleEvaluator()
	if err != nil {
		panic(err)
	}
	return e
}

func readLedgerEntries(path string) ([]records.LedgerEntry, error) {
	st, err := store.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	lines, _, err := st.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]records.LedgerEntry, 0, len(lines))
	for _, line := range lines {
		var e records.LedgerEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func buildSimulationCases(alertsPath, decisionsPath string) ([]replay.SimulationCase, error) {
	alerts, err := readAlerts(alertsPath)
	if err != nil {
		return nil, err
	}
	decisions, err := readDecisions(decisionsPath)
	if err != nil {
		return nil, err
	}
	decisionByAlertID := make(map[string]records.RoutingDecision, len(decisions))
	for _, d := range decisions {
		decisionByAlertID[d.AlertID] = d
	}
	cases := make([]replay.SimulationCase, 0, len(alerts))
	for _, a := range alerts {
		d, ok := decisionByAlertID[a.AlertID]
		if !ok {
			continue
		}
		cases = append(cases, replay.SimulationCase{Alert: a, StoredDecision: d})
	}
	return cases, nil
}

func readAlerts(path string) ([]records.Alert, error) {
	st, err := store.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	lines, _, err := st.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]records.Alert, 0, len(lines))
	for _, line := range lines {
		var a records.Alert
		if err := json.Unmarshal(line, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func readDecisions(path string) ([]records.RoutingDecision, error) {
	st, err := store.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	lines, _, err := st.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]records.RoutingDecision, 0, len(lines))
	for _, line := range lines {
		var d records.RoutingDecision
		if err := json.Unmarshal(line, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
