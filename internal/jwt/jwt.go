// Package jwt verifies staff identity tokens. Verified claims are recorded
// on the request's audit entry so the audit trail names the staff member
// behind each lookup.
package jwt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	jose "gopkg.in/go-jose/go-jose.v2"
	"github.com/justinas/alice"
	"github.com/rs/zerolog/log"

	"github.com/escolaware/portaria-bridge/internal/audit"
	"github.com/escolaware/portaria-bridge/internal/config"
)

// Middleware returns HTTP middleware that verifies the staff JWT and
// enforces issuer and audience claims. When no issuer is configured the
// middleware is a pass-through: small deployments behind a trusted network
// may run without staff tokens, but that choice is logged loudly.
func Middleware(cfg config.AuthorizationConfig) (func(http.Handler) http.Handler, error) {
	if cfg.IssuerURL == "" {
		log.Warn().Msg("staff authorization disabled: no JWT issuer configured")
		return func(next http.Handler) http.Handler { return next }, nil
	}

	// allow for static configuration when testing
	jwksConfig := remoteJWKS
	if cfg.ConfigurationStatic != "" {
		jwksConfig = staticJWKS
	}

	issuerURL, keyFunc, err := jwksConfig(cfg)
	if err != nil {
		return nil, err
	}

	// the validator is used by the middleware to check the JWT signature and claims
	jwtValidator, err := validator.New(
		keyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.Audience},
		validator.WithAllowedClockSkew(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the validator: %w", err)
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(auditErrorHandler()),
	)

	subChain := alice.New(middleware.CheckJWT, auditSubjectMiddleware()).Then

	return subChain, nil
}

func remoteJWKS(cfg config.AuthorizationConfig) (*url.URL, func(context.Context) (interface{}, error), error) {
	issuerURL, err := url.Parse(cfg.IssuerURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid issuer URL: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	return issuerURL, provider.KeyFunc, nil
}

func staticJWKS(cfg config.AuthorizationConfig) (*url.URL, func(context.Context) (interface{}, error), error) {
	issuerURL, err := url.Parse(cfg.IssuerURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid issuer URL: %w", err)
	}

	var keySet jose.JSONWebKeySet
	if err := json.Unmarshal([]byte(cfg.ConfigurationStatic), &keySet); err != nil {
		return nil, nil, fmt.Errorf("invalid static JWKS configuration: %w", err)
	}

	keyFunc := func(context.Context) (interface{}, error) {
		return &keySet, nil
	}

	return issuerURL, keyFunc, nil
}

// ClaimsFromContext returns the validated claims from the context as set by
// the JWT middleware. Nil when authorization is disabled or validation has
// not run.
func ClaimsFromContext(ctx context.Context) *validator.ValidatedClaims {
	claims, _ := ctx.Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	return claims
}

// auditSubjectMiddleware records the verified subject on the audit entry.
func auditSubjectMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims := ClaimsFromContext(r.Context()); claims != nil {
				audit.Log(r.Context()).Subject = claims.RegisteredClaims.Subject
			}
			next.ServeHTTP(w, r)
		})
	}
}

// auditErrorHandler marks validation failures in the audit log before
// rejecting the request.
func auditErrorHandler() jwtmiddleware.ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		audit.Log(r.Context()).Error = fmt.Sprintf("token validation failed: %v", err)
		log.Info().Err(err).Msg("staff token rejected")

		jwtmiddleware.DefaultErrorHandler(w, r, err)
	}
}
