package dedup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ransomeye/core/internal/dedup"
	"github.com/ransomeye/core/internal/dedup/impl_inmem"
	"github.com/ransomeye/core/pkg/records"
)

func sampleAlert() records.Alert {
	return records.Alert{
		AlertID:         "a1",
		IncidentID:      "i1",
		PolicyRuleID:    "r1",
		Severity:        "HIGH",
		RiskScoreAtEmit: 42.5,
	}
}

func TestKeyIsStableForIdenticalDedupFields(t *testing.T) {
	a := sampleAlert()
	b := sampleAlert()
	b.AlertID = "a2"

	k1, err := dedup.Key(a)
	require.NoError(t, err)
	k2, err := dedup.Key(b)
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "alert_id is not part of the dedup key")
}

func TestKeyChangesWhenSeverityDiffers(t *testing.T) {
	a := sampleAlert()
	b := sampleAlert()
	b.Severity = "LOW"

	k1, err := dedup.Key(a)
	require.NoError(t, err)
	k2, err := dedup.Key(b)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestIsDuplicateReturnsFalseThenTrueForIdenticalAlert(t *testing.T) {
	d := dedup.NewDeduplicator(impl_inmem.New())
	alert := sampleAlert()

	first, err := d.IsDuplicate(alert)
	require.NoError(t, err)
	assert.False(t, first)

	second, err := d.IsDuplicate(alert)
	require.NoError(t, err)
	assert.True(t, second)
}

func TestIsDuplicateTreatsDifferentIncidentsAsDistinct(t *testing.T) {
	d := dedup.NewDeduplicator(impl_inmem.New())

	a := sampleAlert()
	b := sampleAlert()
	b.IncidentID = "i2"

	dupA, err := d.IsDuplicate(a)
	require.NoError(t, err)
	assert.False(t, dupA)

	dupB, err := d.IsDuplicate(b)
	require.NoError(t, err)
	assert.False(t, dupB)
}

func TestRehydrateSeedsBackendAsAlreadySeen(t *testing.T) {
	alert := sampleAlert()
	key, err := dedup.Key(alert)
	require.NoError(t, err)

	backend := impl_inmem.Rehydrate([]string{key})
	d := dedup.NewDeduplicator(backend)

	seen, err := d.IsDuplicate(alert)
	require.NoError(t, err)
	assert.True(t, seen, "a key rehydrated from the ledger must be seen on first check")
}

func TestPreviousAlertHashReturnsZeroHashForFewerThanTwoAlerts(t *testing.T) {
	assert.Equal(t, records.ZeroHash, dedup.PreviousAlertHash(nil))
	assert.Equal(t, records.ZeroHash, dedup.PreviousAlertHash([]records.Alert{{ImmutableHash: "h1"}}))
}

func TestPreviousAlertHashReturnsSecondToLastImmutableHash(t *testing.T) {
	alerts := []records.Alert{
		{ImmutableHash: "h1"},
		{ImmutableHash: "h2"},
		{ImmutableHash: "h3"},
	}
	assert.Equal(t, "h2", dedup.PreviousAlertHash(alerts))
}

func TestSuppressorShouldSuppressOnlyWhenActionIsSuppress(t *testing.T) {
	s := dedup.NewSuppressor(records.NewFactory())

	assert.True(t, s.ShouldSuppress(records.RoutingDecision{RoutingAction: records.ActionSuppress}))
	assert.False(t, s.ShouldSuppress(records.RoutingDecision{RoutingAction: records.ActionNotify}))
}

func TestSuppressorSuppressBuildsReasonCodedRecord(t *testing.T) {
	s := dedup.NewSuppressor(records.NewFactory())
	alert := sampleAlert()
	decision := records.RoutingDecision{RuleID: "r1", RoutingAction: records.ActionSuppress}

	rec, err := s.Suppress(alert, decision, "duplicate-within-window", "operator")
	require.NoError(t, err)
	assert.Equal(t, alert.AlertID, rec.AlertID)
	assert.Equal(t, "r1", rec.PolicyRuleID)
	assert.Equal(t, "duplicate-within-window", rec.SuppressionReason)
	assert.Equal(t, "operator", rec.SuppressedBy)
	assert.NotEmpty(t, rec.SuppressionID)
}
