package interfaces

import (
	"context"
	"net/http"

	"github.com/m-mizutani/sfbackup/pkg/domain/types"
)

// CredentialProvider issues the session token used to authenticate org requests.
// Token is idempotent while the cached credential is valid.
type CredentialProvider interface {
	Token(ctx context.Context) (types.AccessToken, error)
}

// OrgClient performs authenticated GET requests against the organisation
type OrgClient interface {
	// Get fetches ref, which may be absolute or relative to the organisation URL.
	// The caller must close the response body.
	Get(ctx context.Context, ref string) (*http.Response, error)
}
