package records_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ransomeye/core/pkg/records"
)

func fixedFactory(id string) *records.Factory {
	n := 0
	ids := []string{id, id + "-2", id + "-3"}
	return &records.Factory{
		NewID: func() string {
			v := ids[n%len(ids)]
			n++
			return v
		},
		Now: func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

func TestNewAlertComputesImmutableHashAndGenesisPrevHash(t *testing.T) {
	f := fixedFactory("alert-1")
	a, err := f.NewAlert("incident-1", "rule-1", "HIGH", 72.5, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ImmutableHash)
	assert.Equal(t, records.ZeroHash, a.PrevAlertHash)
}

func TestNewAlertChainsPrevAlertHashFromLastPrior(t *testing.T) {
	f := fixedFactory("alert-1")
	first, err := f.NewAlert("incident-1", "rule-1", "HIGH", 50, nil)
	require.NoError(t, err)

	second, err := f.NewAlert("incident-1", "rule-1", "HIGH", 60, []records.Alert{first})
	require.NoError(t, err)
	assert.Equal(t, first.ImmutableHash, second.PrevAlertHash)
}

func TestNewAlertRejectsMissingRequiredFields(t *testing.T) {
	f := fixedFactory("alert-1")
	_, err := f.NewAlert("", "rule-1", "HIGH", 50, nil)
	assert.Error(t, err)
}

func TestNewAlertRejectsPriorAlertMissingHash(t *testing.T) {
	f := fixedFactory("alert-1")
	broken := records.Alert{AlertID: "x"}
	_, err := f.NewAlert("incident-1", "rule-1", "HIGH", 50, []records.Alert{broken})
	assert.Error(t, err)
}

func TestNewLedgerEntryGenesisHasZeroPrevHashAndSeqZero(t *testing.T) {
	f := fixedFactory("entry-1")
	e, err := f.NewLedgerEntry(nil, "ALERT", "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, records.ZeroHash, e.PrevEntryHash)
	assert.EqualValues(t, 0, e.Seq)
}

func TestNewLedgerEntryIncrementsSeqAndChainsHash(t *testing.T) {
	f := fixedFactory("entry-1")
	first, err := f.NewLedgerEntry(nil, "ALERT", "ref-1")
	require.NoError(t, err)

	second, err := f.NewLedgerEntry(&first, "ALERT", "ref-2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, second.Seq)
	assert.NotEqual(t, records.ZeroHash, second.PrevEntryHash)
}

func TestNewPolicyBundleRejectsDuplicateRulePriority(t *testing.T) {
	f := fixedFactory("bundle-1")
	rules := []records.Rule{
		{RuleID: "r1", Priority: 1},
		{RuleID: "r2", Priority: 1},
	}
	_, err := f.NewPolicyBundle("v1", nil, "author", rules)
	assert.Error(t, err)
}

func TestNewPolicyBundleAcceptsUniquePriorities(t *testing.T) {
	f := fixedFactory("bundle-1")
	rules := []records.Rule{
		{RuleID: "r1", Priority: 1},
		{RuleID: "r2", Priority: 2},
	}
	b, err := f.NewPolicyBundle("v1", nil, "author", rules)
	require.NoError(t, err)
	assert.Len(t, b.Rules, 2)
}

func TestNewRoutingDecisionRejectsEmptyAction(t *testing.T) {
	f := fixedFactory("decision-1")
	_, err := f.NewRoutingDecision("alert-1", "rule-1", records.RoutingAction(""), records.AuthoritySoc, "")
	assert.Error(t, err)
}

func TestNewRoutingDecisionAcceptsKnownActions(t *testing.T) {
	f := fixedFactory("decision-1")
	d, err := f.NewRoutingDecision("alert-1", "rule-1", records.ActionEscalate, records.AuthoritySoc, "ref")
	require.NoError(t, err)
	assert.Equal(t, records.ActionEscalate, d.RoutingAction)
}

func TestNewRoutingDecisionAcceptsDomainSpecificAction(t *testing.T) {
	f := fixedFactory("decision-1")
	d, err := f.NewRoutingDecision("alert-1", "rule-1", records.RoutingAction("isolate"), records.AuthoritySoc, "ref")
	require.NoError(t, err)
	assert.Equal(t, records.RoutingAction("isolate"), d.RoutingAction)
}

func TestNewRollbackArtifactTokenExcludesExecutionResult(t *testing.T) {
	f := fixedFactory("rollback-1")
	ra, err := f.NewRollbackArtifact(map[string]interface{}{"iptables_rule": "DROP"}, "FIREWALL")
	require.NoError(t, err)
	require.NotEmpty(t, ra.RollbackToken)

	ra.ExecutionResult = map[string]interface{}{"status": "ok"}
	recomputed, err := f.NewRollbackArtifact(map[string]interface{}{"iptables_rule": "DROP"}, "FIREWALL")
	require.NoError(t, err)
	assert.Equal(t, ra.RollbackToken, recomputed.RollbackToken)
}

func TestNewHostEventAndProcessEventComputeImmutableHash(t *testing.T) {
	f := fixedFactory("host-1")
	he, err := f.NewHostEvent("host-a", "login", map[string]string{"user": "root"})
	require.NoError(t, err)
	assert.NotEmpty(t, he.ImmutableHash)

	pe, err := f.NewProcessEvent("host-a", 123, "exec", map[string]string{"cmd": "bash"})
	require.NoError(t, err)
	assert.NotEmpty(t, pe.ImmutableHash)
}

func TestNewInteractionComputesImmutableHash(t *testing.T) {
	f := fixedFactory("interaction-1")
	i, err := f.NewInteraction("decoy-1", "login_attempt", "context-1")
	require.NoError(t, err)
	assert.NotEmpty(t, i.ImmutableHash)
}

func TestSortedUniqueDeduplicatesAndSorts(t *testing.T) {
	got := records.SortedUnique([]string{"b", "a", "b", "c", "a"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestSortedUniqueHandlesEmptyInput(t *testing.T) {
	assert.Empty(t, records.SortedUnique(nil))
}
