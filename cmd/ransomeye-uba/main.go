// Command ransomeye-uba drives the UBA Drift + Signal + Risk components
// (spec.md §4.12): compute a baseline from observed features, classify the
// drift between two baselines, compose a signal from delta/context ids, or
// normalize a raw risk score.
//
// Exit codes (spec.md §6): 0 success; 1 domain failure; 2 missing inputs;
// 3 I/O failure.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ransomeye/core/internal/uba"
	"github.com/ransomeye/core/pkg/records"
)

// csvFlag collects a comma-separated flag value into a string slice.
type csvFlag struct{ values []string }

func (c *csvFlag) String() string { return strings.Join(c.values, ",") }
func (c *csvFlag) Set(v string) error {
	if v == "" {
		return nil
	}
	c.values = append(c.values, strings.Split(v, ",")...)
	return nil
}

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: ransomeye-uba <baseline|delta|signal|score> [flags]")
		return 2
	}
	switch args[0] {
	case "baseline":
		return runBaseline(args[1:], stdout, stderr)
	case "delta":
		return runDelta(args[1:], stdout, stderr)
	case "signal":
		return runSignal(args[1:], stdout, stderr)
	case "score":
		return runScore(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n", args[0])
		return 2
	}
}

func runBaseline(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("baseline", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var identityID string
	var eventTypes, hosts, timeBuckets, privileges csvFlag
	cmd.StringVar(&identityID, "identity", "", "identity_id (REQUIRED)")
	cmd.Var(&eventTypes, "event-types", "comma-separated observed event types")
	cmd.Var(&hosts, "hosts", "comma-separated observed hosts")
	cmd.Var(&timeBuckets, "time-buckets", "comma-separated observed time buckets")
	cmd.Var(&privileges, "privileges", "comma-separated observed privileges")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if identityID == "" {
		fmt.Fprintln(stderr, "Error: -identity is required")
		return 2
	}

	hasher := uba.NewBaselineHasher(records.NewFactory())
	baseline, err := hasher.Compute(identityID, eventTypes.values, hosts.values, timeBuckets.values, privileges.values)
	if err != nil {
		fmt.Fprintf(stdout, "FAIL: %v\n", err)
		return 1
	}

	data, _ := json.MarshalIndent(baseline, "", "  ")
	fmt.Fprintln(stdout, string(data))
	return 0
}

func runDelta(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("delta", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var identityID, priorPath, nextPath string
	var windowDays int
	cmd.StringVar(&identityID, "identity", "", "identity_id (REQUIRED)")
	cmd.StringVar(&priorPath, "prior", "", "path to the prior Baseline JSON file (REQUIRED)")
	cmd.StringVar(&nextPath, "next", "", "path to the new Baseline JSON file (REQUIRED)")
	cmd.IntVar(&windowDays, "window-days", 7, "observation window size in days (UBA_DRIFT_OBSERVATION_WINDOW_DAYS default)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if identityID == "" || priorPath == "" || nextPath == "" {
		fmt.Fprintln(stderr, "Error: -identity, -prior, and -next are required")
		return 2
	}

	prior, err := readBaseline(priorPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	next, err := readBaseline(nextPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}

	factory := records.NewFactory()
	windowBuilder := uba.NewWindowBuilder(time.Duration(windowDays) * 24 * time.Hour)
	window := windowBuilder.Build(factory.Now())

	classifier := uba.NewDeltaClassifier(factory)
	delta, drifted, err := classifier.Classify(identityID, prior, next, window)
	if err != nil {
		fmt.Fprintf(stdout, "FAIL: %v\n", err)
		return 1
	}
	if !drifted {
		fmt.Fprintln(stdout, "no drift: baseline hashes are identical")
		return 0
	}

	data, _ := json.MarshalIndent(delta, "", "  ")
	fmt.Fprintln(stdout, string(data))
	return 0
}

func runSignal(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("signal", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var identityID string
	var deltaIDs, contextIDs csvFlag
	cmd.StringVar(&identityID, "identity", "", "identity_id (REQUIRED)")
	cmd.Var(&deltaIDs, "delta-ids", "comma-separated delta_id values (REQUIRED)")
	cmd.Var(&contextIDs, "context-ids", "comma-separated external context ids (killchain/graph/incident)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if identityID == "" || len(deltaIDs.values) == 0 {
		fmt.Fprintln(stderr, "Error: -identity and -delta-ids are required")
		return 2
	}

	builder := uba.NewSignalBuilder(records.NewFactory())
	signal, err := builder.Compose(identityID, deltaIDs.values, contextIDs.values)
	if err != nil {
		fmt.Fprintf(stdout, "FAIL: %v\n", err)
		return 1
	}

	data, _ := json.MarshalIndent(signal, "", "  ")
	fmt.Fprintln(stdout, string(data))
	return 0
}

func runScore(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("score", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var identityID string
	var raw, completeness float64
	var confidenceCSV, componentsCSV csvFlag
	cmd.StringVar(&identityID, "identity", "", "identity_id (REQUIRED)")
	cmd.Float64Var(&raw, "raw", 0, "raw risk score before clamping (REQUIRED)")
	cmd.Float64Var(&completeness, "completeness", 1, "input completeness in [0,1]")
	cmd.Var(&confidenceCSV, "component-confidence", "comma-separated component confidence values in [0,1] (REQUIRED)")
	cmd.Var(&componentsCSV, "component", "comma-separated name=value raw component scores")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if identityID == "" || len(confidenceCSV.values) == 0 {
		fmt.Fprintln(stderr, "Error: -identity and -component-confidence are required")
		return 2
	}

	confidences := make([]float64, 0, len(confidenceCSV.values))
	for _, v := range confidenceCSV.values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fmt.Fprintf(stderr, "Error: invalid component confidence %q: %v\n", v, err)
			return 2
		}
		confidences = append(confidences, f)
	}

	rawComponents := make(map[string]float64, len(componentsCSV.values))
	for _, kv := range componentsCSV.values {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		f, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			fmt.Fprintf(stderr, "Error: invalid component value %q: %v\n", kv, err)
			return 2
		}
		rawComponents[parts[0]] = f
	}

	normalizer := uba.NewNormalizer(records.NewFactory())
	score, err := normalizer.Score(identityID, rawComponents, raw, completeness, confidences)
	if err != nil {
		fmt.Fprintf(stdout, "FAIL: %v\n", err)
		return 1
	}

	data, _ := json.MarshalIndent(score, "", "  ")
	fmt.Fprintln(stdout, string(data))
	return 0
}

func readBaseline(path string) (records.Baseline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return records.Baseline{}, err
	}
	var b records.Baseline
	if err := json.Unmarshal(raw, &b); err != nil {
		return records.Baseline{}, err
	}
	return b, nil
}
