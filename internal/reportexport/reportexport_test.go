package reportexport_test

import (
	"crypto/ed25519"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ransomeye/core/internal/reportexport"
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

type examplePayload struct {
	ValidationStatus string `json:"validation_status"`
	Count            int    `json:"count"`
}

func newSignerAndResolver(t *testing.T) (*signing.Signer, stubResolver) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer := signing.NewSigner(priv, "report-key")
	resolver := stubResolver{keyID: "report-key", v: signing.NewVerifier(pub, "report-key")}
	return signer, resolver
}

func TestBuildProducesReportThatVerifies(t *testing.T) {
	signer, resolver := newSignerAndResolver(t)
	body := examplePayload{ValidationStatus: "PASS", Count: 3}

	report, err := reportexport.Build(records.NewFactory(), signer, "VALIDATION", "subject-1", body)
	require.NoError(t, err)
	assert.NotEmpty(t, report.ReportID)
	assert.Equal(t, "VALIDATION", report.ReportKind)
	assert.Equal(t, "report-key", report.ReportKeyID)
	assert.NotEmpty(t, report.BodyHash)

	assert.NoError(t, reportexport.Verify(resolver, report))
}

func TestBuildRejectsEmptyReportKind(t *testing.T) {
	signer, _ := newSignerAndResolver(t)
	_, err := reportexport.Build(records.NewFactory(), signer, "", "subject-1", examplePayload{})
	assert.Error(t, err)
}

func TestVerifyRejectsTamperedReport(t *testing.T) {
	signer, resolver := newSignerAndResolver(t)
	report, err := reportexport.Build(records.NewFactory(), signer, "VALIDATION", "subject-1", examplePayload{ValidationStatus: "PASS"})
	require.NoError(t, err)

	report.SubjectRef = "subject-2"
	assert.Error(t, reportexport.Verify(resolver, report))
}

func TestBodyHashChangesWhenBodyChanges(t *testing.T) {
	signer, _ := newSignerAndResolver(t)
	a, err := reportexport.Build(records.NewFactory(), signer, "VALIDATION", "subject-1", examplePayload{Count: 1})
	require.NoError(t, err)
	b, err := reportexport.Build(records.NewFactory(), signer, "VALIDATION", "subject-1", examplePayload{Count: 2})
	require.NoError(t, err)

	assert.NotEqual(t, a.BodyHash, b.BodyHash)
}

func TestRenderJSONProducesDecodableArray(t *testing.T) {
	signer, _ := newSignerAndResolver(t)
	r1, err := reportexport.Build(records.NewFactory(), signer, "VALIDATION", "s1", examplePayload{Count: 1})
	require.NoError(t, err)
	r2, err := reportexport.Build(records.NewFactory(), signer, "VALIDATION", "s2", examplePayload{Count: 2})
	require.NoError(t, err)

	raw, err := reportexport.RenderJSON([]records.Report{r1, r2})
	require.NoError(t, err)

	var decoded []records.Report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded, 2)
	assert.Equal(t, r1.ReportID, decoded[0].ReportID)
}

func TestRenderJSONLWritesOneObjectPerLine(t *testing.T) {
	signer, _ := newSignerAndResolver(t)
	r1, err := reportexport.Build(records.NewFactory(), signer, "VALIDATION", "s1", examplePayload{Count: 1})
	require.NoError(t, err)
	r2, err := reportexport.Build(records.NewFactory(), signer, "VALIDATION", "s2", examplePayload{Count: 2})
	require.NoError(t, err)

	raw, err := reportexport.RenderJSONL([]records.Report{r1, r2})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 2)
	var decoded records.Report
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, r1.ReportID, decoded.ReportID)
}

func TestRenderCSVIncludesFieldValueHeaderAndBodyRow(t *testing.T) {
	signer, _ := newSignerAndResolver(t)
	body := examplePayload{ValidationStatus: "PASS", Count: 3}
	report, err := reportexport.Build(records.NewFactory(), signer, "VALIDATION", "s1", body)
	require.NoError(t, err)

	raw, err := reportexport.RenderCSV(report, body)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"Field", "Value"}, rows[0])

	var sawBody, sawReportID bool
	for _, row := range rows[1:] {
		if row[0] == "Body" {
			sawBody = true
			assert.Contains(t, row[1], "PASS")
		}
		if row[0] == "Report ID" {
			sawReportID = true
			assert.Equal(t, report.ReportID, row[1])
		}
	}
	assert.True(t, sawBody)
	assert.True(t, sawReportID)
}

func TestRenderCSVRejectsMultipleReports(t *testing.T) {
	signer, _ := newSignerAndResolver(t)
	r1, err := reportexport.Build(records.NewFactory(), signer, "VALIDATION", "s1", examplePayload{})
	require.NoError(t, err)

	_, err = reportexport.Render(reportexport.FormatCSV, []records.Report{r1, r1}, nil)
	assert.Error(t, err)
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	signer, _ := newSignerAndResolver(t)
	r1, err := reportexport.Build(records.NewFactory(), signer, "VALIDATION", "s1", examplePayload{})
	require.NoError(t, err)

	_, err = reportexport.Render(reportexport.Format("xml"), []records.Report{r1}, nil)
	assert.Error(t, err)
}
