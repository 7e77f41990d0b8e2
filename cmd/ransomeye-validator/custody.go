package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ransomeye/core/internal/replay"
)

// envelopeConvention names the signature/key fields for the generic
// signed-envelope kinds (bundle, report, playbook), each of which signs its
// own canonical bytes minus exactly those two fields.
var envelopeConvention = map[string]struct{ sigField, keyField string }{
	"bundle":   {"bundle_signature", "bundle_key_id"},
	"report":   {"report_signature", "report_key_id"},
	"playbook": {"playbook_signature", "playbook_key_id"},
}

// loadSignedArtifact builds a replay.SignedArtifact for kind from the file
// at path. "command" is a special case: it signs its payload sub-object,
// not the envelope minus a field, so it is handled separately from the
// generic envelopeConvention table.
func loadSignedArtifact(kind, path string) (replay.SignedArtifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return replay.SignedArtifact{}, err
	}

	if kind == "command" {
		var cmd struct {
			Payload      json.RawMessage `json:"payload"`
			Signature    string          `json:"signature"`
			SigningKeyID string          `json:"signing_key_id"`
		}
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return replay.SignedArtifact{}, err
		}
		var payload interface{}
		if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
			return replay.SignedArtifact{}, err
		}
		return replay.SignedArtifact{
			Location:  path,
			Data:      payload,
			KeyID:     cmd.SigningKeyID,
			Signature: cmd.Signature,
			Excluded:  nil,
		}, nil
	}

	conv, ok := envelopeConvention[kind]
	if !ok {
		return replay.SignedArtifact{}, fmt.Errorf("unknown signed artifact kind %q", kind)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return replay.SignedArtifact{}, err
	}
	sig, _ := decoded[conv.sigField].(string)
	keyID, _ := decoded[conv.keyField].(string)
	return replay.SignedArtifact{
		Location:  path,
		Data:      decoded,
		KeyID:     keyID,
		Signature: sig,
		Excluded:  []string{conv.sigField, conv.keyField},
	}, nil
}
