package graph

import (
	"context"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"golang.org/x/oauth2"
)

// DefaultScope requests every Graph permission granted to the app registration.
const DefaultScope = "https://graph.microsoft.com/.default"

// tokenTimeout bounds a single token acquisition.
const tokenTimeout = 30 * time.Second

// azureTokenSource adapts an azcore.TokenCredential to oauth2.TokenSource.
type azureTokenSource struct {
	cred   azcore.TokenCredential
	scopes []string
}

func (s *azureTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tokenTimeout)
	defer cancel()

	tk, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: s.scopes})
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: tk.Token,
		TokenType:   "Bearer",
		Expiry:      tk.ExpiresOn,
	}, nil
}

// NewTokenSource returns a caching oauth2.TokenSource backed by cred.
func NewTokenSource(cred azcore.TokenCredential, scopes []string) oauth2.TokenSource {
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}
	return oauth2.ReuseTokenSource(nil, &azureTokenSource{cred: cred, scopes: scopes})
}

// newHTTPClient returns an http.Client that authorises every request with a
// token from src.
func newHTTPClient(src oauth2.TokenSource, base http.RoundTripper, timeout time.Duration) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: base},
		Timeout:   timeout,
	}
}
