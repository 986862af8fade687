package salesforce_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/infra/salesforce"
)

func newTestKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	gt.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	gt.NoError(t, err)

	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func TestJWTAuth_Token(t *testing.T) {
	key, keyPEM := newTestKey(t)

	var calls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gt.Value(t, r.Method).Equal(http.MethodPost)
		gt.Value(t, r.URL.Path).Equal("/services/oauth2/token")
		gt.NoError(t, r.ParseForm())
		gt.Value(t, r.PostForm.Get("grant_type")).Equal("urn:ietf:params:oauth:grant-type:jwt-bearer")

		token, err := jwt.Parse([]byte(r.PostForm.Get("assertion")), jwt.WithKey(jwa.RS256, &key.PublicKey), jwt.WithValidate(false))
		gt.NoError(t, err)
		gt.Value(t, token.Issuer()).Equal("client-id")
		gt.Value(t, token.Subject()).Equal("backup@example.com")
		gt.Array(t, token.Audience()).Equal([]string{srv.URL})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "00Dxx!token",
			"instance_url": "https://example.my.salesforce.com",
		})
	}))
	defer srv.Close()

	now := time.Date(2026, 1, 4, 3, 0, 0, 0, time.UTC)
	auth, err := salesforce.NewJWTAuth("client-id", "backup@example.com", keyPEM,
		salesforce.WithLoginURL(srv.URL+"/"),
		salesforce.WithTokenTTL(time.Hour),
		salesforce.WithClock(func() time.Time { return now }),
	)
	gt.NoError(t, err)

	ctx := context.Background()

	t.Run("first call requests a token", func(t *testing.T) {
		token, err := auth.Token(ctx)
		gt.NoError(t, err)
		gt.Value(t, token.String()).Equal("00Dxx!token")
		gt.Value(t, calls.Load()).Equal(int32(1))
	})

	t.Run("cached token is reused within TTL", func(t *testing.T) {
		now = now.Add(30 * time.Minute)
		token, err := auth.Token(ctx)
		gt.NoError(t, err)
		gt.Value(t, token.String()).Equal("00Dxx!token")
		gt.Value(t, calls.Load()).Equal(int32(1))
	})

	t.Run("token is refreshed after TTL", func(t *testing.T) {
		now = now.Add(31 * time.Minute)
		_, err := auth.Token(ctx)
		gt.NoError(t, err)
		gt.Value(t, calls.Load()).Equal(int32(2))
	})
}

func TestJWTAuth_Rejected(t *testing.T) {
	_, keyPEM := newTestKey(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "user hasn't approved this consumer",
		})
	}))
	defer srv.Close()

	auth, err := salesforce.NewJWTAuth("client-id", "backup@example.com", keyPEM,
		salesforce.WithLoginURL(srv.URL))
	gt.NoError(t, err)

	_, err = auth.Token(context.Background())
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("token request rejected")
}

func TestNewJWTAuth_InvalidKey(t *testing.T) {
	_, err := salesforce.NewJWTAuth("client-id", "backup@example.com", []byte("not a key"))
	gt.Error(t, err)

	_, keyPEM := newTestKey(t)
	_, err = salesforce.NewJWTAuth("", "backup@example.com", keyPEM)
	gt.Error(t, err)
}

func TestStaticToken(t *testing.T) {
	token, err := salesforce.StaticToken("abc").Token(context.Background())
	gt.NoError(t, err)
	gt.Value(t, token.String()).Equal("abc")

	_, err = salesforce.StaticToken("").Token(context.Background())
	gt.True(t, errors.Is(err, model.ErrInvalidState))
}
