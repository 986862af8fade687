package model

import (
	"time"

	"github.com/m-mizutani/sfbackup/pkg/domain/types"
)

// Credential is a session token together with the time it was issued
type Credential struct {
	Token     types.AccessToken
	FetchedAt time.Time
}

// Expired reports whether the credential is older than ttl at now. A non-positive ttl
// means the credential never expires.
func (c *Credential) Expired(now time.Time, ttl time.Duration) bool {
	if c == nil || c.Token.IsEmpty() {
		return true
	}
	if ttl <= 0 {
		return false
	}
	return now.Sub(c.FetchedAt) >= ttl
}
