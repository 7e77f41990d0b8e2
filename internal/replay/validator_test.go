package replay_test

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ransomeye/core/internal/ledger"
	"github.com/ransomeye/core/internal/policy"
	"github.com/ransomeye/core/internal/replay"
	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/signing"
)

type stubResolver struct {
	keyID string
	v     *signing.Verifier
}

func (s stubResolver) Resolve(keyID string) (*signing.Verifier, error) {
	if keyID != s.keyID {
		return nil, &stubErr{"unknown key " + keyID}
	}
	return s.v, nil
}

type stubErr struct{ msg string }

func (e *stubErr) Error() string { return e.msg }

type harness struct {
	resolver stubResolver
	signer   *signing.Signer
	factory  *records.Factory
	rules    []records.Rule
	bundle   records.PolicyBundle
	loader   *policy.BundleLoader
	router   *policy.Router
}

func newHarness(t *testing.T) harness {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer := signing.NewSigner(priv, "root-key")
	resolver := stubResolver{keyID: "root-key", v: signing.NewVerifier(pub, "root-key")}

	factory := records.NewFactory()
	rules := []records.Rule{
		{RuleID: "r1", Priority: 1, MatchPredicates: []string{"severity == 'HIGH'"}, AllowedActions: []string{"escalate"}, RequiredAuthority: records.AuthoritySoc},
	}
	bundle, err := factory.NewPolicyBundle("v1", []string{"SOC"}, "operator", rules)
	require.NoError(t, err)
	bundle.BundleKeyID = signer.KeyID
	signBytes, err := canon.BytesExcluding(bundle, "bundle_signature", "bundle_key_id")
	require.NoError(t, err)
	bundle.BundleSignature = signer.Sign(signBytes)

	loader := policy.NewBundleLoader(resolver)
	_, err = loader.Load(writeBundle(t, bundle))
	require.NoError(t, err)

	re, err := policy.NewRuleEvaluator()
	require.NoError(t, err)
	require.NoError(t, re.Compile(rules))

	router := policy.NewRouter(loader, re, factory)

	return harness{resolver: resolver, signer: signer, factory: factory, rules: rules, bundle: bundle, loader: loader, router: router}
}

func writeBundle(t *testing.T, bundle records.PolicyBundle) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.json")
	raw, err := json.Marshal(bundle)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func buildLedgerEntries(t *testing.T, h harness) []records.LedgerEntry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := ledger.Open(path, h.factory, h.signer)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.AppendEntry("ALERT", "ref-1")
	require.NoError(t, err)
	entries, _, err := l.ReadAll()
	require.NoError(t, err)
	return entries
}

func TestValidatorRunPassesWithWellFormedLedgerAndNoDomainBindings(t *testing.T) {
	h := newHarness(t)
	v := replay.New(h.resolver, h.router, h.factory)

	report, err := v.Run(nil, map[string]replay.DomainBinding{}, []records.PolicyBundle{h.bundle}, h.loader, nil, nil, h.signer)
	require.NoError(t, err)
	assert.Equal(t, replay.StatusPass, report.ValidationStatus)
	assert.Nil(t, report.FirstFailure)
	assert.NotEmpty(t, report.Signature)
}

func TestValidatorRunFailsLedgerCheckFirstOnBrokenChain(t *testing.T) {
	h := newHarness(t)
	entries := buildLedgerEntries(t, h)
	entries[0].Seq = 99

	v := replay.New(h.resolver, h.router, h.factory)
	report, err := v.Run(entries, map[string]replay.DomainBinding{}, []records.PolicyBundle{h.bundle}, h.loader, nil, nil, h.signer)
	require.NoError(t, err)
	assert.Equal(t, replay.StatusFail, report.ValidationStatus)
	require.NotNil(t, report.FirstFailure)
	assert.Equal(t, replay.CheckLedger, report.FirstFailure.CheckType)
}

func TestValidatorRunFailsIntegrityCheckWhenRecordMissing(t *testing.T) {
	h := newHarness(t)
	entries := buildLedgerEntries(t, h)

	bindings := map[string]replay.DomainBinding{
		"ALERT": {
			Get: func(ref string) (json.RawMessage, bool, error) { return nil, false, nil },
			RecomputeRef: func(raw json.RawMessage) (string, error) { return "", nil },
		},
	}

	v := replay.New(h.resolver, h.router, h.factory)
	report, err := v.Run(entries, bindings, []records.PolicyBundle{h.bundle}, h.loader, nil, nil, h.signer)
	require.NoError(t, err)
	assert.Equal(t, replay.StatusFail, report.ValidationStatus)
	require.NotNil(t, report.FirstFailure)
	assert.Equal(t, replay.CheckIntegrity, report.FirstFailure.CheckType)
}

func TestValidatorRunFailsIntegrityCheckWhenRecomputedRefMismatches(t *testing.T) {
	h := newHarness(t)
	entries := buildLedgerEntries(t, h)

	bindings := map[string]replay.DomainBinding{
		"ALERT": {
			Get: func(ref string) (json.RawMessage, bool, error) { return json.RawMessage(`{}`), true, nil },
			RecomputeRef: func(raw json.RawMessage) (string, error) { return "not-the-real-ref", nil },
		},
	}

	v := replay.New(h.resolver, h.router, h.factory)
	report, err := v.Run(entries, bindings, []records.PolicyBundle{h.bundle}, h.loader, nil, nil, h.signer)
	require.NoError(t, err)
	assert.Equal(t, replay.StatusFail, report.ValidationStatus)
	assert.Equal(t, replay.CheckIntegrity, report.FirstFailure.CheckType)
}

func TestValidatorRunFailsCustodyCheckOnTamperedArtifact(t *testing.T) {
	h := newHarness(t)

	type payload struct {
		Field string `json:"field"`
	}
	data := payload{Field: "original"}
	signBytes, err := canon.BytesExcluding(data, "signature")
	require.NoError(t, err)
	sig := h.signer.Sign(signBytes)

	tampered := payload{Field: "tampered"}
	artifact := replay.SignedArtifact{
		Location:  "artifact-1",
		Data:      tampered,
		KeyID:     h.signer.KeyID,
		Signature: sig,
		Excluded:  []string{"signature"},
	}

	v := replay.New(h.resolver, h.router, h.factory)
	report, err := v.Run(nil, map[string]replay.DomainBinding{}, []records.PolicyBundle{h.bundle}, h.loader, []replay.SignedArtifact{artifact}, nil, h.signer)
	require.NoError(t, err)
	assert.Equal(t, replay.StatusFail, report.ValidationStatus)
	assert.Equal(t, replay.CheckCustody, report.FirstFailure.CheckType)
}

func TestValidatorRunFailsConfigCheckOnDuplicateRulePriority(t *testing.T) {
	h := newHarness(t)
	badBundle := h.bundle
	badBundle.Rules = append(badBundle.Rules, records.Rule{RuleID: "r2", Priority: h.rules[0].Priority, AllowedActions: []string{"notify"}})

	v := replay.New(h.resolver, h.router, h.factory)
	report, err := v.Run(nil, map[string]replay.DomainBinding{}, []records.PolicyBundle{badBundle}, h.loader, nil, nil, h.signer)
	require.NoError(t, err)
	assert.Equal(t, replay.StatusFail, report.ValidationStatus)
	assert.Equal(t, replay.CheckConfig, report.FirstFailure.CheckType)
}

func TestValidatorRunPassesSimulationWhenReplayMatchesStoredDecision(t *testing.T) {
	h := newHarness(t)
	alert := records.Alert{AlertID: "a1", Severity: "HIGH"}

	stored, err := h.router.Replay(alert, "decision-1", "2026-01-01T00:00:00.000000000Z")
	require.NoError(t, err)

	v := replay.New(h.resolver, h.router, h.factory)
	report, err := v.Run(nil, map[string]replay.DomainBinding{}, []records.PolicyBundle{h.bundle}, h.loader, nil,
		[]replay.SimulationCase{{Alert: alert, StoredDecision: stored}}, h.signer)
	require.NoError(t, err)
	assert.Equal(t, replay.StatusPass, report.ValidationStatus)
}

func TestValidatorRunFailsSimulationCheckWhenStoredDecisionWasTampered(t *testing.T) {
	h := newHarness(t)
	alert := records.Alert{AlertID: "a1", Severity: "HIGH"}

	stored, err := h.router.Replay(alert, "decision-1", "2026-01-01T00:00:00.000000000Z")
	require.NoError(t, err)
	stored.RoutingAction = records.ActionSuppress

	v := replay.New(h.resolver, h.router, h.factory)
	report, err := v.Run(nil, map[string]replay.DomainBinding{}, []records.PolicyBundle{h.bundle}, h.loader, nil,
		[]replay.SimulationCase{{Alert: alert, StoredDecision: stored}}, h.signer)
	require.NoError(t, err)
	assert.Equal(t, replay.StatusFail, report.ValidationStatus)
	assert.Equal(t, replay.CheckSimulation, report.FirstFailure.CheckType)
}

func TestValidatorReportSignatureVerifiesUnderSignerKey(t *testing.T) {
	h := newHarness(t)
	v := replay.New(h.resolver, h.router, h.factory)

	report, err := v.Run(nil, map[string]replay.DomainBinding{}, []records.PolicyBundle{h.bundle}, h.loader, nil, nil, h.signer)
	require.NoError(t, err)

	signBytes, err := canon.BytesExcluding(report, "signature")
	require.NoError(t, err)
	assert.NoError(t, signing.VerifyWithResolver(h.resolver, report.SignerKeyID, signBytes, report.Signature))
}
