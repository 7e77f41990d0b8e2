package records

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ransomeye/core/pkg/rerrors"
)

// SchemaValidator rejects unknown fields and structurally invalid payloads
// before they reach a RecordFactory constructor, per SPEC_FULL.md §3 /
// spec.md §9's "unknown fields are rejected on parse" design note.
type SchemaValidator struct {
	schemas map[string]*jsonschema.Schema
}

// NewSchemaValidator compiles the built-in schema set for every record kind
// that accepts raw external input (host/process events, alerts, policy
// bundles). Each schema sets additionalProperties:false.
func NewSchemaValidator() (*SchemaValidator, error) {
	c := jsonschema.NewCompiler()
	sv := &SchemaValidator{schemas: make(map[string]*jsonschema.Schema)}
	for kind, raw := range builtinSchemas {
		url := "mem://ransomeye/" + kind + ".json"
		if err := c.AddResource(url, bytes.NewReader([]byte(raw))); err != nil {
			return nil, fmt.Errorf("records: compiling schema for %s: %w", kind, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("records: compiling schema for %s: %w", kind, err)
		}
		sv.schemas[kind] = s
	}
	return sv, nil
}

// Validate checks raw (a decoded JSON value, e.g. from json.Unmarshal into
// interface{} or map[string]interface{}) against the named kind's schema.
func (sv *SchemaValidator) Validate(kind string, raw interface{}) error {
	s, ok := sv.schemas[kind]
	if !ok {
		return rerrors.New(rerrors.InputRejected, "records.Validate", "unknown record kind "+kind, nil)
	}
	if err := s.Validate(raw); err != nil {
		return rerrors.New(rerrors.InputRejected, "records.Validate", kind, err)
	}
	return nil
}

// ValidateBytes decodes raw JSON bytes with json.Number precision and
// validates them against kind's schema.
func (sv *SchemaValidator) ValidateBytes(kind string, raw []byte) error {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return rerrors.New(rerrors.InputRejected, "records.ValidateBytes", kind, err)
	}
	return sv.Validate(kind, v)
}

var builtinSchemas = map[string]string{
	"alert": `{
		"type": "object",
		"additionalProperties": false,
		"required": ["incident_id", "policy_rule_id", "severity", "risk_score_at_emit"],
		"properties": {
			"incident_id": {"type": "string", "minLength": 1},
			"policy_rule_id": {"type": "string", "minLength": 1},
			"severity": {"type": "string", "enum": ["LOW", "MODERATE", "HIGH", "CRITICAL"]},
			"risk_score_at_emit": {"type": "number", "minimum": 0, "maximum": 100}
		}
	}`,
	"host_event": `{
		"type": "object",
		"additionalProperties": false,
		"required": ["host_id", "event_type"],
		"properties": {
			"host_id": {"type": "string", "minLength": 1},
			"event_type": {"type": "string", "minLength": 1},
			"attributes": {"type": "object"}
		}
	}`,
	"process_event": `{
		"type": "object",
		"additionalProperties": false,
		"required": ["host_id", "pid", "event_type"],
		"properties": {
			"host_id": {"type": "string", "minLength": 1},
			"pid": {"type": "integer"},
			"event_type": {"type": "string", "minLength": 1},
			"attributes": {"type": "object"}
		}
	}`,
	"policy_bundle": `{
		"type": "object",
		"additionalProperties": false,
		"required": ["bundle_id", "bundle_version", "authority_scope", "created_by", "created_at", "rules", "bundle_key_id", "bundle_signature"],
		"properties": {
			"bundle_id": {"type": "string"},
			"bundle_version": {"type": "string"},
			"authority_scope": {"type": "array", "items": {"type": "string"}},
			"created_by": {"type": "string"},
			"created_at": {"type": "string"},
			"rules": {
				"type": "array",
				"items": {
					"type": "object",
					"additionalProperties": false,
					"required": ["rule_id", "priority", "match_predicates", "allowed_actions", "required_authority"],
					"properties": {
						"rule_id": {"type": "string"},
						"priority": {"type": "integer"},
						"match_predicates": {"type": "array", "items": {"type": "string"}},
						"allowed_actions": {"type": "array", "items": {"type": "string"}},
						"required_authority": {"type": "string", "enum": ["NONE", "SOC", "HUMAN"]},
						"explanation_template_id": {"type": "string"}
					}
				}
			},
			"bundle_key_id": {"type": "string"},
			"bundle_signature": {"type": "string"}
		}
	}`,
}
