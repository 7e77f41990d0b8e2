// Package reportexport builds signed pkg/records.Report envelopes around an
// arbitrary canonicalized body and renders them to the three offline formats
// auditors and regulators consume, grounded on
// original_source/signed-reporting/{engine/render_hasher.py,
// crypto/report_verifier.py} (content hashing and offline signature
// verification) and original_source/global-validator/reports/render_csv.py
// (the Field,Value CSV shape for a single report).
package reportexport

import (
	"bytes"
	"encoding/csv"
	"encoding/json"

	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/rerrors"
	"github.com/ransomeye/core/pkg/signing"
)

// Format names the rendering the caller wants from Render.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// Build canonicalizes body, wraps it in a records.Report via factory, and
// signs the report (excluding report_key_id/report_signature themselves)
// with signer. The caller keeps body separately if it wants to render it
// alongside the report in RenderCSV.
func Build(factory *records.Factory, signer *signing.Signer, reportKind, subjectRef string, body interface{}) (records.Report, error) {
	bodyHash, err := canon.Hash(body)
	if err != nil {
		return records.Report{}, rerrors.New(rerrors.InputRejected, "reportexport.Build", "body did not canonicalize", err)
	}

	report, err := factory.NewReport(reportKind, subjectRef, bodyHash)
	if err != nil {
		return records.Report{}, err
	}
	report.ReportKeyID = signer.KeyID

	signBytes, err := canon.BytesExcluding(report, "report_signature", "report_key_id")
	if err != nil {
		return records.Report{}, rerrors.New(rerrors.InputRejected, "reportexport.Build", "report did not canonicalize for signing", err)
	}
	report.ReportSignature = signer.Sign(signBytes)
	return report, nil
}

// Verify checks report's signature against the key resolver's view of
// report.ReportKeyID. It is the Go analogue of ReportVerifier.verify_signature
// in original_source/signed-reporting/crypto/report_verifier.py, but verifies
// the canonical report image rather than an opaque rendered-content blob.
func Verify(resolver signing.KeyResolver, report records.Report) error {
	signBytes, err := canon.BytesExcluding(report, "report_signature", "report_key_id")
	if err != nil {
		return rerrors.New(rerrors.InputRejected, "reportexport.Verify", "report did not canonicalize for verification", err)
	}
	return signing.VerifyWithResolver(resolver, report.ReportKeyID, signBytes, report.ReportSignature)
}

// Render dispatches to the format-specific renderer. For FormatCSV, body may
// be nil; when non-nil it is included as a single canonicalized "Body" row.
func Render(format Format, reports []records.Report, body interface{}) ([]byte, error) {
	switch format {
	case FormatJSON:
		return RenderJSON(reports)
	case FormatJSONL:
		return RenderJSONL(reports)
	case FormatCSV:
		if len(reports) != 1 {
			return nil, rerrors.New(rerrors.InputRejected, "reportexport.Render", "csv rendering requires exactly one report", nil)
		}
		return RenderCSV(reports[0], body)
	default:
		return nil, rerrors.New(rerrors.InputRejected, "reportexport.Render", "unknown export format "+string(format), nil)
	}
}

// RenderJSON marshals reports as a single indented JSON array, suitable for
// a one-shot archival artifact.
func RenderJSON(reports []records.Report) ([]byte, error) {
	out, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return nil, rerrors.New(rerrors.InputRejected, "reportexport.RenderJSON", "marshal failed", err)
	}
	return out, nil
}

// RenderJSONL marshals reports one compact JSON object per line, matching
// the append-only line shape ReportStore.store_report writes in
// original_source/signed-reporting/storage/report_store.py.
func RenderJSONL(reports []records.Report) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range reports {
		line, err := json.Marshal(r)
		if err != nil {
			return nil, rerrors.New(rerrors.InputRejected, "reportexport.RenderJSONL", "marshal failed", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RenderCSV renders a single report as Field,Value rows, following the shape
// of render_csv in original_source/global-validator/reports/render_csv.py.
// When body is non-nil its canonical JSON image is included as a trailing
// "Body" row.
func RenderCSV(report records.Report, body interface{}) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][2]string{
		{"Report ID", report.ReportID},
		{"Report Kind", report.ReportKind},
		{"Generated At", report.GeneratedAt},
		{"Subject Ref", report.SubjectRef},
		{"Body Hash", report.BodyHash},
		{"Report Key ID", report.ReportKeyID},
		{"Report Signature", report.ReportSignature},
	}

	if err := w.Write([]string{"Field", "Value"}); err != nil {
		return nil, rerrors.New(rerrors.IOFailure, "reportexport.RenderCSV", "header write failed", err)
	}
	for _, row := range rows {
		if err := w.Write(row[:]); err != nil {
			return nil, rerrors.New(rerrors.IOFailure, "reportexport.RenderCSV", "row write failed", err)
		}
	}

	if body != nil {
		bodyBytes, err := canon.Bytes(body)
		if err != nil {
			return nil, rerrors.New(rerrors.InputRejected, "reportexport.RenderCSV", "body did not canonicalize", err)
		}
		if err := w.Write([]string{"Body", string(bodyBytes)}); err != nil {
			return nil, rerrors.New(rerrors.IOFailure, "reportexport.RenderCSV", "body row write failed", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, rerrors.New(rerrors.IOFailure, "reportexport.RenderCSV", "csv flush failed", err)
	}
	return buf.Bytes(), nil
}
