// Package authority implements signed human-authority override assertions:
// when a RoutingDecision or Command carries required_authority HUMAN, the
// caller must present a JWT (EdDSA over the same ed25519 key material as
// the rest of the trust spine) attesting that a named human approved the
// action. Grounded on
// original_source/human-authority/{crypto/signer.py,cli/verify_override.py}.
package authority

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/rerrors"
)

// Claims is the assertion payload: who approved, what they approved, and
// at what authority level.
type Claims struct {
	jwt.RegisteredClaims
	Authority  records.Authority `json:"authority"`
	IncidentID string            `json:"incident_id"`
	CommandID  string            `json:"command_id,omitempty"`
}

// Issuer mints authority assertions under a single ed25519 key.
type Issuer struct {
	priv  ed25519.PrivateKey
	keyID string
}

// NewIssuer wraps a loaded private key with its key id.
func NewIssuer(priv ed25519.PrivateKey, keyID string) *Issuer {
	return &Issuer{priv: priv, keyID: keyID}
}

// Issue mints a signed assertion for subject (the human identity) approving
// authority-level action on incidentID (and optionally a specific
// commandID), valid for ttl.
func (iss *Issuer) Issue(subject string, authorityLevel records.Authority, incidentID, commandID string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Authority:  authorityLevel,
		IncidentID: incidentID,
		CommandID:  commandID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = iss.keyID
	signed, err := token.SignedString(iss.priv)
	if err != nil {
		return "", fmt.Errorf("authority: signing failed: %w", err)
	}
	return signed, nil
}

// KeyResolver resolves an ed25519 public key by key id, typically backed by
// pkg/keystore.
type KeyResolver interface {
	LoadPublic(keyID string) (ed25519.PublicKey, error)
}

// Verify checks the assertion's signature and that it grants at least
// requiredAuthority for incidentID. It fails closed: a malformed token,
// unknown key id, or insufficient authority level is a PolicyRejection.
func Verify(resolver KeyResolver, assertion string, requiredAuthority records.Authority, incidentID string, now time.Time) (*Claims, error) {
	if requiredAuthority == records.AuthorityNone {
		return nil, nil
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(assertion, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("assertion missing kid header")
		}
		pub, err := resolver.LoadPublic(kid)
		if err != nil {
			return nil, err
		}
		return pub, nil
	}, jwt.WithValidMethods([]string{"EdDSA"}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil || !parsed.Valid {
		return nil, rerrors.New(rerrors.PolicyRejection, "authority.Verify", "invalid authority assertion", err)
	}

	if claims.IncidentID != incidentID {
		return nil, rerrors.New(rerrors.PolicyRejection, "authority.Verify", "assertion incident_id mismatch", nil)
	}
	if !satisfies(claims.Authority, requiredAuthority) {
		return nil, rerrors.New(rerrors.PolicyRejection, "authority.Verify",
			fmt.Sprintf("assertion authority %s does not satisfy required %s", claims.Authority, requiredAuthority), nil)
	}
	return &claims, nil
}

// rank orders authority levels so HUMAN satisfies SOC/NONE requirements and
// so on.
var rank = map[records.Authority]int{
	records.AuthorityNone:  0,
	records.AuthoritySoc:   1,
	records.AuthorityHuman: 2,
}

func satisfies(have, need records.Authority) bool {
	return rank[have] >= rank[need]
}
