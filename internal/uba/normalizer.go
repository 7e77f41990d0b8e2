package uba

import (
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/rerrors"
)

// severityBands mirrors original_source/risk-index/engine/normalizer.py's
// SEVERITY_BANDS = {'LOW':(0,25),'MODERATE':(25,50),'HIGH':(50,75),
// 'CRITICAL':(75,100)}, with the spec.md §3 half-open/closed boundaries:
// LOW [0,25), MODERATE [25,50), HIGH [50,75), CRITICAL [75,100].
func severityBand(score float64) records.SeverityBand {
	switch {
	case score < 25:
		return records.BandLow
	case score < 50:
		return records.BandModerate
	case score < 75:
		return records.BandHigh
	default:
		return records.BandCritical
	}
}

// Normalizer clamps a raw risk score to [0,100], assigns its severity band,
// and computes a confidence score, per spec.md §4.12.
type Normalizer struct {
	factory *records.Factory
}

// NewNormalizer wires a RecordFactory.
func NewNormalizer(factory *records.Factory) *Normalizer {
	return &Normalizer{factory: factory}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Normalize clamps raw to [0,100] and assigns a severity band.
func (n *Normalizer) Normalize(raw float64) (float64, records.SeverityBand) {
	score := clamp(raw, 0, 100)
	return score, severityBand(score)
}

// Confidence computes 0.3*completeness + 0.7*mean(componentConfidence),
// clamped to [0,1], matching
// original_source/risk-index/engine/normalizer.py's compute_confidence_score.
func (n *Normalizer) Confidence(completeness float64, componentConfidence []float64) (float64, error) {
	if len(componentConfidence) == 0 {
		return 0, rerrors.New(rerrors.InputRejected, "uba.Normalizer.Confidence", "no component confidence values supplied", nil)
	}
	var sum float64
	for _, c := range componentConfidence {
		sum += c
	}
	mean := sum / float64(len(componentConfidence))
	confidence := 0.3*completeness + 0.7*mean
	return clamp(confidence, 0, 1), nil
}

// Score builds a full RiskScore record.
func (n *Normalizer) Score(identityID string, rawComponents map[string]float64, raw, completeness float64, componentConfidence []float64) (records.RiskScore, error) {
	if identityID == "" {
		return records.RiskScore{}, rerrors.New(rerrors.InputRejected, "uba.Normalizer.Score", "missing identity_id", nil)
	}
	normalized, band := n.Normalize(raw)
	confidence, err := n.Confidence(completeness, componentConfidence)
	if err != nil {
		return records.RiskScore{}, err
	}
	return records.RiskScore{
		ScoreID:         n.factory.NewID(),
		IdentityID:      identityID,
		RawComponents:   rawComponents,
		NormalizedScore: normalized,
		SeverityBand:    band,
		Confidence:      confidence,
		Timestamp:       n.factory.Now().UTC().Format("2006-01-02T15:04:05.000000000Z"),
	}, nil
}
