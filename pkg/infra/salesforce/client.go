package salesforce

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
)

// Cookie names understood by the Salesforce web UI
const (
	cookieOrgID     = "oid"
	cookieSessionID = "sid"
)

// Client sends requests to the organisation authenticated by the oid/sid cookie pair
type Client struct {
	baseURL    *url.URL
	orgID      string
	creds      interfaces.CredentialProvider
	httpClient *http.Client
}

// ClientOption is a functional option for Client
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a Client for the organisation at orgURL
func NewClient(orgURL, orgID string, creds interfaces.CredentialProvider, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(orgURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse organisation URL", goerr.V("url", orgURL))
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, goerr.New("organisation URL must be absolute", goerr.V("url", orgURL))
	}

	client := &Client{
		baseURL:    base,
		orgID:      orgID,
		creds:      creds,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Get sends an authenticated GET for ref. Missing organisation ID or credential is an
// invalid state and is reported before the request is sent.
func (c *Client) Get(ctx context.Context, ref string) (*http.Response, error) {
	if c.orgID == "" {
		return nil, goerr.Wrap(model.ErrInvalidState, "organisation ID is not configured")
	}
	if c.creds == nil {
		return nil, goerr.Wrap(model.ErrInvalidState, "credential provider is not configured")
	}

	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session token")
	}
	if token.IsEmpty() {
		return nil, goerr.Wrap(model.ErrInvalidState, "session token is empty")
	}

	target, err := c.baseURL.Parse(ref)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve request URL", goerr.V("ref", ref))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", target.String()))
	}
	req.AddCookie(&http.Cookie{Name: cookieOrgID, Value: c.orgID})
	req.AddCookie(&http.Cookie{Name: cookieSessionID, Value: token.String()})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send request", goerr.V("url", target.String()))
	}

	return resp, nil
}
