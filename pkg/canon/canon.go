// Package canon produces RFC 8785 (JSON Canonicalization Scheme) byte images
// for any structured value, with an explicit excluded-field projection step
// so callers can canonicalize "this record minus its signature" without
// hand-rolling a second marshal path.
//
// The canonical transform itself is delegated to gowebpki/jcs, the reference
// Go implementation of RFC 8785. A local recursive marshaler is kept only as
// the engine for the excluded-field projection, since JCS has no notion of
// "drop these top-level keys before canonicalizing" — it canonicalizes
// whatever valid JSON it is handed.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"
)

// Bytes returns the JCS canonical byte image of v.
func Bytes(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: pre-marshal failed: %w", err)
	}
	out, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canon: jcs transform failed: %w", err)
	}
	return out, nil
}

// BytesExcluding canonicalizes v after projecting out the named top-level
// JSON fields (e.g. "signature", "key_id", "immutable_hash",
// "ledger_entry_id"). v must marshal to a JSON object.
func BytesExcluding(v interface{}, excluded ...string) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: pre-marshal failed: %w", err)
	}

	var generic interface{}
	decoder := json.NewDecoder(bytes.NewReader(intermediate))
	decoder.UseNumber()
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canon: intermediate decode failed: %w", err)
	}

	m, ok := generic.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("canon: BytesExcluding requires a JSON object, got %T", generic)
	}
	for _, field := range excluded {
		delete(m, field)
	}

	// Re-marshal the projected map through the same recursive path that
	// backs jcs.Transform's guarantees (sorted keys, no HTML escaping, exact
	// number preservation via json.Number) so projected and unprojected
	// canonicalization agree byte-for-byte on shared fields.
	return marshalRecursive(m)
}

// Hash returns the lowercase hex SHA-256 digest of the canonical byte image
// of v.
func Hash(v interface{}) (string, error) {
	b, err := Bytes(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashExcluding is Hash composed with BytesExcluding.
func HashExcluding(v interface{}, excluded ...string) (string, error) {
	b, err := BytesExcluding(v, excluded...)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the lowercase hex SHA-256 digest of raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// String renders the canonical form as a string.
func String(v interface{}) (string, error) {
	b, err := Bytes(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalRecursive(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case bool:
		if t {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case json.Number:
		return []byte(t.String()), nil
	case string:
		if err := enc.Encode(t); err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
	case []interface{}:
		buf.Reset()
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalRecursive(elem)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]interface{}:
		buf.Reset()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalRecursive(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')

			vb, err := marshalRecursive(t[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
	}
}
