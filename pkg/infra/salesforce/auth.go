package salesforce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/domain/types"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
)

const (
	// DefaultLoginURL is the production login endpoint, also used as JWT audience
	DefaultLoginURL = "https://login.salesforce.com"

	tokenEndpoint  = "/services/oauth2/token"
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL   = 5 * time.Minute
)

// JWTAuth obtains an access token with the OAuth 2.0 JWT bearer flow and caches it
// until it is older than the configured TTL.
type JWTAuth struct {
	httpClient *http.Client
	loginURL   string
	clientID   string
	username   string
	key        jwk.Key
	ttl        time.Duration
	now        func() time.Time

	mu   sync.Mutex
	cred *model.Credential
}

// JWTOption is a functional option for JWTAuth
type JWTOption func(*JWTAuth)

// WithLoginURL overrides the login URL (e.g. https://test.salesforce.com for sandboxes)
func WithLoginURL(loginURL string) JWTOption {
	return func(a *JWTAuth) {
		a.loginURL = strings.TrimSuffix(loginURL, "/")
	}
}

// WithAuthHTTPClient sets the HTTP client used for the token request
func WithAuthHTTPClient(client *http.Client) JWTOption {
	return func(a *JWTAuth) {
		a.httpClient = client
	}
}

// WithTokenTTL sets how long an issued token is reused. Zero disables expiry.
func WithTokenTTL(ttl time.Duration) JWTOption {
	return func(a *JWTAuth) {
		a.ttl = ttl
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) JWTOption {
	return func(a *JWTAuth) {
		a.now = now
	}
}

// NewJWTAuth creates a JWTAuth. privateKey is the PEM encoded RSA key of the connected app.
func NewJWTAuth(clientID, username string, privateKey []byte, opts ...JWTOption) (*JWTAuth, error) {
	if clientID == "" || username == "" {
		return nil, goerr.New("client ID and username are required for JWT bearer flow")
	}

	key, err := jwk.ParseKey(privateKey, jwk.WithPEM(true))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse connected app private key")
	}

	auth := &JWTAuth{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		loginURL:   DefaultLoginURL,
		clientID:   clientID,
		username:   username,
		key:        key,
		ttl:        time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(auth)
	}

	return auth, nil
}

// Token returns the cached access token, requesting a new one when none is cached or
// the cached one has outlived the TTL.
func (a *JWTAuth) Token(ctx context.Context) (types.AccessToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if !a.cred.Expired(now, a.ttl) {
		return a.cred.Token, nil
	}

	token, err := a.requestToken(ctx, now)
	if err != nil {
		return "", err
	}

	a.cred = &model.Credential{Token: token, FetchedAt: now}
	logging.From(ctx).Debug("Issued access token", "username", a.username, "token", token)

	return token, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	InstanceURL      string `json:"instance_url"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (a *JWTAuth) requestToken(ctx context.Context, now time.Time) (types.AccessToken, error) {
	assertion, err := a.signAssertion(now)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	endpoint := a.loginURL + tokenEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create token request", goerr.V("endpoint", endpoint))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to send token request", goerr.V("endpoint", endpoint))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", goerr.Wrap(err, "failed to read token response")
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", goerr.Wrap(err, "failed to decode token response",
			goerr.V("status", resp.StatusCode))
	}

	if resp.StatusCode != http.StatusOK || tr.Error != "" {
		return "", goerr.New("token request rejected",
			goerr.V("status", resp.StatusCode),
			goerr.V("error", tr.Error),
			goerr.V("description", tr.ErrorDescription))
	}
	if tr.AccessToken == "" {
		return "", goerr.New("token response has no access_token")
	}

	return types.AccessToken(tr.AccessToken), nil
}

func (a *JWTAuth) signAssertion(now time.Time) (string, error) {
	token, err := jwt.NewBuilder().
		Issuer(a.clientID).
		Subject(a.username).
		Audience([]string{a.loginURL}).
		Expiration(now.Add(assertionTTL)).
		Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build JWT assertion")
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, a.key))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign JWT assertion")
	}

	return string(signed), nil
}

// StaticToken is a CredentialProvider returning a pre-issued token
type StaticToken types.AccessToken

// Token returns the static token. An empty token is an invalid state.
func (s StaticToken) Token(ctx context.Context) (types.AccessToken, error) {
	if s == "" {
		return "", goerr.Wrap(model.ErrInvalidState, "static access token is empty")
	}
	return types.AccessToken(s), nil
}
