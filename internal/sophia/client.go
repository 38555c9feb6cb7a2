// Package sophia is a client for the Sophia school-management API. All data
// calls are authenticated with a short-lived token obtained from the
// Autenticacao endpoint; token reuse is handled by the token source.
package sophia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/escolaware/portaria-bridge/internal/config"
	"golang.org/x/oauth2"
)

// Student is a student record as returned by the Alunos endpoints.
type Student struct {
	Code int    `json:"codigo"`
	Name string `json:"nome"`
}

// RelationshipType describes the link between a guardian and a student.
type RelationshipType struct {
	Description string `json:"descricao"`
}

// Guardian is a person registered against a student, authorized for pickup
// or not.
type Guardian struct {
	Code             int              `json:"codigo"`
	Name             string           `json:"nome"`
	Relationship     RelationshipType `json:"tipoVinculo"`
	PickupAuthorized bool             `json:"retiradaAutorizada"`
}

// PickupAuthorization holds the six exit rules recorded for a student, plus
// any additional people named directly on the authorization record.
type PickupAuthorization struct {
	LeaveAccompanied          bool       `json:"deixarEscolaAcompanhado"`
	LeaveAlone                bool       `json:"deixarEscolaSozinho"`
	LeaveBySchoolTransport    bool       `json:"deixarEscolaConducaoEscolar"`
	WaitOutsideSchool         bool       `json:"aguardarForaEscola"`
	LeaveAtRegularTime        bool       `json:"autorizarSaidaTerminoHorarioRegular"`
	LeaveAfterExtracurricular bool       `json:"autorizarSaidaTerminoAtividadeExtra"`
	OtherPeople               []Guardian `json:"outrasPessoas"`
}

type photoPayload struct {
	Foto string `json:"foto"`
}

// Client issues authenticated calls against a single Sophia tenant.
type Client struct {
	baseURL      string
	tokens       oauth2.TokenSource
	httpClient   *http.Client
	apiTimeout   time.Duration
	photoTimeout time.Duration
}

// New creates a client from configuration. The token source is shared by all
// calls made through the client, so concurrent requests reuse one login.
func New(cfg config.SophiaConfig) (*Client, error) {
	if cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("sophia API credentials must be configured")
	}

	return &Client{
		baseURL:      cfg.BaseURL(),
		tokens:       NewTokenSource(cfg),
		httpClient:   http.DefaultClient,
		apiTimeout:   time.Duration(cfg.APITimeoutSeconds) * time.Second,
		photoTimeout: time.Duration(cfg.PhotoTimeoutSeconds) * time.Second,
	}, nil
}

// SearchStudents performs the broad upstream search by (first) name. The
// caller is expected to refine the result with the full query.
func (c *Client) SearchStudents(ctx context.Context, firstName string) ([]Student, error) {
	query := url.Values{"Nome": []string{firstName}}

	var students []Student
	if err := c.get(ctx, "/api/v1/Alunos", query, c.apiTimeout, &students); err != nil {
		return nil, err
	}

	return students, nil
}

// Student fetches a single student record.
func (c *Client) Student(ctx context.Context, code int) (Student, error) {
	var student Student
	err := c.get(ctx, fmt.Sprintf("/api/v1/Alunos/%d", code), nil, c.apiTimeout, &student)
	return student, err
}

// Guardians lists the people registered against a student.
func (c *Client) Guardians(ctx context.Context, code int) ([]Guardian, error) {
	var guardians []Guardian
	err := c.get(ctx, fmt.Sprintf("/api/v1/alunos/%d/responsaveis", code), nil, c.apiTimeout, &guardians)
	return guardians, err
}

// PickupAuthorization fetches the exit rules recorded for a student.
func (c *Client) PickupAuthorization(ctx context.Context, code int) (PickupAuthorization, error) {
	var auth PickupAuthorization
	err := c.get(ctx, fmt.Sprintf("/api/v1/alunos/%d/AutorizacaoRetirada", code), nil, c.apiTimeout, &auth)
	return auth, err
}

// StudentPhoto fetches the reduced photo for a student. An empty result with
// no error means the student has no photo on record.
func (c *Client) StudentPhoto(ctx context.Context, code int) (string, error) {
	var payload photoPayload
	err := c.get(ctx, fmt.Sprintf("/api/v1/alunos/%d/Fotos/FotosReduzida", code), nil, c.photoTimeout, &payload)
	return payload.Foto, err
}

// GuardianPhoto fetches the reduced photo for a guardian. An empty result
// with no error means the guardian has no photo on record.
func (c *Client) GuardianPhoto(ctx context.Context, code int) (string, error) {
	var payload photoPayload
	err := c.get(ctx, fmt.Sprintf("/api/v1/responsaveis/%d/fotos/FotoReduzida", code), nil, c.photoTimeout, &payload)
	return payload.Foto, err
}

// get issues an authenticated GET. Token acquisition happens before the data
// call and its failure is surfaced as an authentication error. An empty 200
// response body leaves out untouched: several Sophia endpoints signal "no
// data" that way.
func (c *Client) get(ctx context.Context, path string, query url.Values, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	token, err := c.tokens.Token()
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &Error{Op: path, Err: err}
	}
	req.Header.Set("token", token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{Op: path, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: path, Err: err}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: path, Err: fmt.Errorf("unexpected response body: %w", err)}
	}

	return nil
}
