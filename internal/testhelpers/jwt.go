package testhelpers

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
)

// GenerateRSAKey generates an RSA 2048-bit key pair for JWT signing and
// verification in tests.
func GenerateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate private key")

	return privateKey
}

// StaticJWKS renders the public half of the key as a JWKS JSON document,
// suitable for the JWT_JWKS_STATIC configuration.
func StaticJWKS(t *testing.T, privateKey *rsa.PrivateKey) string {
	t.Helper()

	keySet := jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       &privateKey.PublicKey,
				KeyID:     "test-key",
				Algorithm: string(jose.RS256),
				Use:       "sig",
			},
		},
	}

	rendered, err := json.Marshal(keySet)
	require.NoError(t, err, "failed to marshal JWKS")

	return string(rendered)
}

// SignStaffToken mints a staff JWT for the given issuer/audience/subject,
// valid for one hour.
func SignStaffToken(t *testing.T, privateKey *rsa.PrivateKey, issuer, audience, subject string) string {
	t.Helper()

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: privateKey},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", "test-key"),
	)
	require.NoError(t, err, "failed to create signer")

	now := time.Now()
	token, err := jwt.Signed(signer).Claims(jwt.Claims{
		Issuer:   issuer,
		Subject:  subject,
		Audience: jwt.Audience{audience},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(time.Hour)),
	}).Serialize()
	require.NoError(t, err, "failed to sign token")

	return token
}
