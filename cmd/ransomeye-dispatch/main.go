// Command ransomeye-dispatch builds, signs, persists, and delivers a
// command for an already-authorized RoutingDecision. Delivery is performed
// by executing an external script: the signed command is written to its
// stdin as JSON, and it must write an ExecutionResult JSON object
// ({"original_state_snapshot": {...}, "execution_result": {...}}) to its
// stdout — the actual privileged action (iptables rule, process kill,
// quarantine move) is the script's responsibility, out of core's scope per
// spec.md §1.
//
// Exit codes (spec.md §6): 0 success; 1 domain failure (policy rejection,
// delivery failure); 2 missing inputs; 3 I/O failure.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/ransomeye/core/internal/dispatch"
	"github.com/ransomeye/core/internal/ledger"
	"github.com/ransomeye/core/pkg/keystore"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/signing"
	"github.com/ransomeye/core/pkg/store"
)

// scriptExecutor shells out to a delivery script per command; it implements
// dispatch.Executor.
type scriptExecutor struct {
	scriptPath string
}

func (s scriptExecutor) Execute(ctx context.Context, cmd records.Command) (dispatch.ExecutionResult, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return dispatch.ExecutionResult{}, err
	}
	c := exec.CommandContext(ctx, s.scriptPath)
	c.Stdin = bytes.NewReader(payload)
	var out bytes.Buffer
	c.Stdout = &out
	if err := c.Run(); err != nil {
		return dispatch.ExecutionResult{}, err
	}
	var result dispatch.ExecutionResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		return dispatch.ExecutionResult{}, fmt.Errorf("executor produced invalid result JSON: %w", err)
	}
	return result, nil
}

// staticTargetResolver resolves every logical target to itself; real
// deployments supply a TargetResolver backed by a targets store.
type staticTargetResolver struct{}

func (staticTargetResolver) Resolve(target string) (string, error) { return target, nil }

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

func Run(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("ransomeye-dispatch", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var decisionPath, keyDir, keyID, commandStorePath, rollbackStorePath, ledgerPath, scriptPath, commandType, incidentID, policyID, policyVersion string
	var timeoutSeconds int
	var rateLimit float64
	var burst int
	cmd.StringVar(&decisionPath, "decision", "", "path to the RoutingDecision JSON file (REQUIRED)")
	cmd.StringVar(&keyDir, "keys", "", "path to the signing key directory (REQUIRED)")
	cmd.StringVar(&keyID, "key-id", "", "key_id to sign the command with (REQUIRED)")
	cmd.StringVar(&commandStorePath, "command-store", "", "path to the command JSONL store (REQUIRED)")
	cmd.StringVar(&rollbackStorePath, "rollback-store", "", "path to the rollback artifact JSONL store (REQUIRED)")
	cmd.StringVar(&ledgerPath, "ledger", "", "path to the ledger JSONL file (REQUIRED)")
	cmd.StringVar(&scriptPath, "script", "", "path to the delivery executable (REQUIRED)")
	cmd.StringVar(&commandType, "command-type", "", "command_type to dispatch (REQUIRED)")
	cmd.StringVar(&incidentID, "incident-id", "", "incident_id")
	cmd.StringVar(&policyID, "policy-id", "", "policy_id")
	cmd.StringVar(&policyVersion, "policy-version", "", "policy_version")
	cmd.IntVar(&timeoutSeconds, "timeout", 30, "delivery deadline in seconds")
	cmd.Float64Var(&rateLimit, "rate", 5, "steady-state deliveries per second")
	cmd.IntVar(&burst, "burst", 1, "burst allowance above the steady rate")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if decisionPath == "" || keyDir == "" || keyID == "" || commandStorePath == "" || rollbackStorePath == "" || ledgerPath == "" || scriptPath == "" || commandType == "" {
		fmt.Fprintln(stderr, "Error: -decision, -keys, -key-id, -command-store, -rollback-store, -ledger, -script, and -command-type are required")
		return 2
	}

	decisionRaw, err := os.ReadFile(decisionPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: reading decision: %v\n", err)
		return 3
	}
	var decision records.RoutingDecision
	if err := json.Unmarshal(decisionRaw, &decision); err != nil {
		fmt.Fprintf(stderr, "Error: parsing decision: %v\n", err)
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

	commandStore, err := store.Open(commandStorePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	defer commandStore.Close()
	rollbackStore, err := store.Open(rollbackStorePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	defer rollbackStore.Close()

	factory := records.NewFactory()
	al, err := ledger.Open(ledgerPath, factory, signer)
	if err != nil {
		fmt.Fprintf(stderr, "Error: opening ledger: %v\n", err)
		return 3
	}
	defer al.Close()

	dispatcher := dispatch.New(factory, signer, commandStore, rollbackStore, al, staticTargetResolver{}, rateLimit, burst)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	signedCmd, rollbackToken, err := dispatcher.Dispatch(ctx, decision, commandType, incidentID, policyID, policyVersion, scriptExecutor{scriptPath: scriptPath})
	if err != nil {
		fmt.Fprintf(stdout, "FAIL: %v\n", err)
		return 1
	}

	out := struct {
		Command       records.Command `json:"command"`
		RollbackToken string          `json:"rollback_token"`
	}{Command: signedCmd, RollbackToken: rollbackToken}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(stdout, string(data))
	return 0
}
