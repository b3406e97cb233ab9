package graph

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/oauth2"

	"github.com/team-roster/team-roster/internal/config"
)

// oboFunc mints an on-behalf-of credential from a user assertion.
type oboFunc func(userAssertion string) (azcore.TokenCredential, error)

// ClientFactory hands out Graph clients for a credential context. It is built
// once at startup and is safe for concurrent use.
type ClientFactory struct {
	baseURL   string
	chunkSize int
	timeout   time.Duration
	scopes    []string
	transport http.RoundTripper

	appCredential azcore.TokenCredential
	appClient     *Client
	onBehalfOf    oboFunc
}

// NewClientFactory creates the factory from the Graph settings and the Entra
// app registration. The application credential is created here; tokens are
// only requested when a client first makes a call.
func NewClientFactory(graphCfg config.GraphConfig, azureCfg config.AzureADConfig) (*ClientFactory, error) {
	appCred, err := azidentity.NewClientSecretCredential(azureCfg.TenantID, azureCfg.ClientID, azureCfg.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create application credential: %w", err)
	}

	obo := func(userAssertion string) (azcore.TokenCredential, error) {
		return azidentity.NewOnBehalfOfCredentialWithSecret(azureCfg.TenantID, azureCfg.ClientID, userAssertion, azureCfg.ClientSecret, nil)
	}

	return newClientFactory(graphCfg, appCred, obo, nil), nil
}

func newClientFactory(graphCfg config.GraphConfig, appCred azcore.TokenCredential, obo oboFunc, transport http.RoundTripper) *ClientFactory {
	f := &ClientFactory{
		baseURL:       graphCfg.BaseURL,
		chunkSize:     graphCfg.MaxBatchSize,
		timeout:       graphCfg.Timeout,
		scopes:        graphCfg.Scopes,
		transport:     transport,
		appCredential: appCred,
		onBehalfOf:    obo,
	}
	if len(f.scopes) == 0 {
		f.scopes = []string{DefaultScope}
	}
	f.appClient = f.newClient(NewTokenSource(appCred, f.scopes))
	return f
}

func (f *ClientFactory) newClient(src oauth2.TokenSource) *Client {
	return NewClient(newHTTPClient(src, f.transport, f.timeout), f.baseURL, f.chunkSize)
}

// Client returns a Graph client acting with creds. Application credentials
// share one client; user-scoped credentials get a client of their own.
func (f *ClientFactory) Client(creds Credentials) (*Client, error) {
	switch creds.Mode {
	case ModeApplication:
		return f.appClient, nil
	case ModeDelegated:
		if creds.Token == "" {
			return nil, ErrMissingAccessToken
		}
		return f.newClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"})), nil
	case ModeOnBehalfOf:
		if creds.Token == "" {
			return nil, ErrMissingAssertion
		}
		cred, err := f.onBehalfOf(creds.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create on-behalf-of credential: %w", err)
		}
		return f.newClient(NewTokenSource(cred, f.scopes)), nil
	default:
		return nil, fmt.Errorf("unsupported credential mode %d", creds.Mode)
	}
}

// Ping acquires an application token, proving the app registration works.
func (f *ClientFactory) Ping(ctx context.Context) error {
	if _, err := f.appCredential.GetToken(ctx, policy.TokenRequestOptions{Scopes: f.scopes}); err != nil {
		return fmt.Errorf("failed to acquire application token: %w", err)
	}
	return nil
}
