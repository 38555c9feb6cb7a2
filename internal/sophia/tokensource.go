package sophia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/escolaware/portaria-bridge/internal/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// tokenSource implements oauth2.TokenSource by performing the Sophia login
// call. The token is an opaque string delivered as the raw response body.
//
// The issued token is given a local expiry shorter than the upstream
// session, so a reused token never runs out mid-request.
type tokenSource struct {
	authURL    string
	user       string
	password   string
	ttl        time.Duration
	timeout    time.Duration
	httpClient *http.Client
}

// NewTokenSource creates a cached token source for the configured tenant.
// The ReuseTokenSource wrapper serializes refresh: under N concurrent
// requests with no valid token, exactly one login call is made and all
// callers observe its result. A failed refresh surfaces an error without
// discarding a previously issued token held by the wrapper.
func NewTokenSource(cfg config.SophiaConfig) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, newTokenSource(cfg))
}

// newTokenSource creates the underlying token source without caching.
func newTokenSource(cfg config.SophiaConfig) *tokenSource {
	return &tokenSource{
		authURL:    cfg.BaseURL() + "/api/v1/Autenticacao",
		user:       cfg.User,
		password:   cfg.Password,
		ttl:        time.Duration(cfg.TokenTTLMinutes) * time.Minute,
		timeout:    time.Duration(cfg.APITimeoutSeconds) * time.Second,
		httpClient: http.DefaultClient,
	}
}

type credentials struct {
	Usuario string `json:"usuario"`
	Senha   string `json:"senha"`
}

// Token performs a single login call and returns the resulting token with
// its local expiry instant.
func (s *tokenSource) Token() (*oauth2.Token, error) {
	body, err := json.Marshal(credentials{Usuario: s.user, Senha: s.password})
	if err != nil {
		return nil, &AuthenticationError{Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, &AuthenticationError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &AuthenticationError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &AuthenticationError{Err: fmt.Errorf("login returned status %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthenticationError{Err: err}
	}

	// the token arrives as the raw body, occasionally JSON-quoted
	token := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if token == "" {
		return nil, &AuthenticationError{Err: fmt.Errorf("login returned an empty token")}
	}

	expiry := time.Now().Add(s.ttl)
	log.Debug().Time("expiry", expiry).Msg("sophia token issued")

	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "token",
		Expiry:      expiry,
	}, nil
}
