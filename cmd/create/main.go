// This command is only used for local testing: it mints a staff JWT with a
// locally-held signing key, for running requests against a local server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Audience string `env:"UTIL_AUDIENCE, default=portaria-bridge"`
	Subject  string `env:"UTIL_SUBJECT, default=test-staff-member"`
	Issuer   string `env:"UTIL_ISSUER, default=https://local.testing"`
	KeyPath  string `env:"UTIL_KEY_PATH, default=.development/keys/jwk-sig-testing-priv.json"`
}

func main() {
	cfg := Config{}
	err := envconfig.Process(context.Background(), &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
		os.Exit(1)
	}

	keyBytes, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading signing key: %v\n", err)
		os.Exit(1)
	}

	var key jose.JSONWebKey
	if err := json.Unmarshal(keyBytes, &key); err != nil {
		fmt.Fprintf(os.Stderr, "error loading signing key: %v\n", err)
		os.Exit(1)
	}

	token, err := createJWT(key, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating JWT: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s", token)
}

func createJWT(key jose.JSONWebKey, cfg Config) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()

	return jwt.Signed(signer).Claims(jwt.Claims{
		Issuer:    cfg.Issuer,
		Subject:   cfg.Subject,
		Audience:  jwt.Audience{cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
		Expiry:    jwt.NewNumericDate(now.Add(time.Hour)),
	}).Serialize()
}
