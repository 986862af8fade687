package config

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/infra/salesforce"
	"github.com/urfave/cli/v3"
)

// Salesforce holds the organisation and credential configuration
type Salesforce struct {
	OrgURL         string
	OrgID          string
	LoginURL       string
	ClientID       string
	Username       string
	PrivateKeyFile string
	PrivateKey     string        `masq:"secret"`
	AccessToken    string        `masq:"secret"`
	TokenTTL       time.Duration
}

// Flags returns CLI flags for Salesforce configuration
func (c *Salesforce) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sf-org-url",
			Usage:       "Organisation URL (e.g. https://example.my.salesforce.com)",
			Required:    true,
			Destination: &c.OrgURL,
			Sources:     cli.EnvVars("SFBACKUP_SF_ORG_URL"),
		},
		&cli.StringFlag{
			Name:        "sf-org-id",
			Usage:       "Organisation ID, sent as the oid cookie",
			Required:    true,
			Destination: &c.OrgID,
			Sources:     cli.EnvVars("SFBACKUP_SF_ORG_ID"),
		},
		&cli.StringFlag{
			Name:        "sf-login-url",
			Usage:       "Login URL used for the JWT bearer flow",
			Value:       salesforce.DefaultLoginURL,
			Destination: &c.LoginURL,
			Sources:     cli.EnvVars("SFBACKUP_SF_LOGIN_URL"),
		},
		&cli.StringFlag{
			Name:        "sf-client-id",
			Usage:       "Connected app consumer key",
			Destination: &c.ClientID,
			Sources:     cli.EnvVars("SFBACKUP_SF_CLIENT_ID"),
		},
		&cli.StringFlag{
			Name:        "sf-username",
			Usage:       "User the JWT is issued for",
			Destination: &c.Username,
			Sources:     cli.EnvVars("SFBACKUP_SF_USERNAME"),
		},
		&cli.StringFlag{
			Name:        "sf-private-key-file",
			Usage:       "Path to the connected app private key (PEM)",
			Destination: &c.PrivateKeyFile,
			Sources:     cli.EnvVars("SFBACKUP_SF_PRIVATE_KEY_FILE"),
		},
		&cli.StringFlag{
			Name:        "sf-private-key",
			Usage:       "Connected app private key content (PEM)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("SFBACKUP_SF_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "sf-access-token",
			Usage:       "Pre-issued access token, used instead of the JWT bearer flow",
			Destination: &c.AccessToken,
			Sources:     cli.EnvVars("SFBACKUP_SF_ACCESS_TOKEN"),
		},
		&cli.DurationFlag{
			Name:        "sf-token-ttl",
			Usage:       "How long an issued access token is reused (0 for the whole process lifetime)",
			Value:       time.Hour,
			Destination: &c.TokenTTL,
			Sources:     cli.EnvVars("SFBACKUP_SF_TOKEN_TTL"),
		},
	}
}

// LogValue implements slog.LogValuer
func (c Salesforce) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("org_url", c.OrgURL),
		slog.String("org_id", c.OrgID),
		slog.String("login_url", c.LoginURL),
		slog.String("client_id", c.ClientID),
		slog.String("username", c.Username),
		slog.Bool("static_token", c.AccessToken != ""),
	)
}

// Credential builds the credential provider. A static access token takes precedence
// over the JWT bearer flow.
func (c *Salesforce) Credential() (interfaces.CredentialProvider, error) {
	if c.AccessToken != "" {
		return salesforce.StaticToken(c.AccessToken), nil
	}

	key := []byte(c.PrivateKey)
	if len(key) == 0 && c.PrivateKeyFile != "" {
		data, err := os.ReadFile(c.PrivateKeyFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read private key file", goerr.V("path", c.PrivateKeyFile))
		}
		key = data
	}
	if len(key) == 0 {
		return nil, goerr.New("either --sf-access-token or a private key (--sf-private-key or --sf-private-key-file) is required")
	}

	return salesforce.NewJWTAuth(c.ClientID, c.Username, key,
		salesforce.WithLoginURL(c.LoginURL),
		salesforce.WithTokenTTL(c.TokenTTL),
	)
}

// Build creates the authenticated organisation client
func (c *Salesforce) Build(ctx context.Context) (*salesforce.Client, error) {
	creds, err := c.Credential()
	if err != nil {
		return nil, err
	}

	client, err := salesforce.NewClient(c.OrgURL, c.OrgID, creds)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create salesforce client")
	}
	return client, nil
}
