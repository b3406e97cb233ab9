package graph

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/team-roster/team-roster/internal/config"
	"github.com/team-roster/team-roster/internal/graph/graphtest"
)

// fakeCredential hands out a fixed token and counts acquisitions.
type fakeCredential struct {
	token  string
	err    error
	calls  atomic.Int32
	scopes []string
}

func (f *fakeCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.calls.Add(1)
	f.scopes = opts.Scopes
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return azcore.AccessToken{Token: f.token, ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func testGraphConfig(baseURL string) config.GraphConfig {
	return config.GraphConfig{BaseURL: baseURL, MaxBatchSize: 20, Timeout: 5 * time.Second}
}

// ---------------------------------------------------------------------------
// SelectCredentials
// ---------------------------------------------------------------------------

func TestSelectCredentials(t *testing.T) {
	tests := []struct {
		name      string
		assertion string
		access    string
		want      Credentials
	}{
		{"bearer wins", "bearer", "access", Credentials{Mode: ModeOnBehalfOf, Token: "bearer"}},
		{"access token only", "", "access", Credentials{Mode: ModeDelegated, Token: "access"}},
		{"nothing supplied", "", "", Credentials{Mode: ModeApplication}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectCredentials(tt.assertion, tt.access); got != tt.want {
				t.Errorf("SelectCredentials() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCredentials_UserScoped(t *testing.T) {
	if ApplicationCredentials().UserScoped() {
		t.Error("application credentials are not user scoped")
	}
	if !SelectCredentials("", "tok").UserScoped() || !SelectCredentials("tok", "").UserScoped() {
		t.Error("delegated and on-behalf-of credentials are user scoped")
	}
}

func TestMode_String(t *testing.T) {
	if ModeOnBehalfOf.String() != "on-behalf-of" || Mode(42).String() != "unknown" {
		t.Errorf("unexpected Mode strings: %s, %s", ModeOnBehalfOf, Mode(42))
	}
}

// ---------------------------------------------------------------------------
// ClientFactory
// ---------------------------------------------------------------------------

func TestClientFactory_ApplicationClientIsShared(t *testing.T) {
	srv := graphtest.NewServer()
	defer srv.Close()
	srv.HandleJSON("GET", "/users/u1", http.StatusOK, map[string]string{"id": "u1"})

	app := &fakeCredential{token: "app-token"}
	f := newClientFactory(testGraphConfig(srv.URL), app, nil, nil)

	c1, err := f.Client(ApplicationCredentials())
	if err != nil {
		t.Fatalf("Client() error = %v", err)
	}
	c2, _ := f.Client(ApplicationCredentials())
	if c1 != c2 {
		t.Error("application clients should be shared")
	}

	for i := 0; i < 2; i++ {
		if err := c1.Get(context.Background(), "/users/u1", nil); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if got := srv.LastAuthorization(); got != "Bearer app-token" {
		t.Errorf("Authorization = %q", got)
	}
	if app.calls.Load() != 1 {
		t.Errorf("token acquired %d times, want 1 (cached)", app.calls.Load())
	}
	if len(app.scopes) != 1 || app.scopes[0] != DefaultScope {
		t.Errorf("scopes = %v, want [%s]", app.scopes, DefaultScope)
	}
}

func TestClientFactory_DelegatedForwardsToken(t *testing.T) {
	srv := graphtest.NewServer()
	defer srv.Close()
	srv.HandleJSON("GET", "/me", http.StatusOK, map[string]string{"id": "me"})

	f := newClientFactory(testGraphConfig(srv.URL), &fakeCredential{token: "app-token"}, nil, nil)
	c, err := f.Client(SelectCredentials("", "user-access-token"))
	if err != nil {
		t.Fatalf("Client() error = %v", err)
	}
	if err := c.Get(context.Background(), "/me", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := srv.LastAuthorization(); got != "Bearer user-access-token" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestClientFactory_OnBehalfOfUsesExchangedToken(t *testing.T) {
	srv := graphtest.NewServer()
	defer srv.Close()
	srv.HandleJSON("GET", "/me", http.StatusOK, map[string]string{"id": "me"})

	var gotAssertion string
	obo := func(assertion string) (azcore.TokenCredential, error) {
		gotAssertion = assertion
		return &fakeCredential{token: "obo-token"}, nil
	}
	f := newClientFactory(testGraphConfig(srv.URL), &fakeCredential{token: "app-token"}, obo, nil)

	c, err := f.Client(SelectCredentials("caller-jwt", ""))
	if err != nil {
		t.Fatalf("Client() error = %v", err)
	}
	if err := c.Get(context.Background(), "/me", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotAssertion != "caller-jwt" {
		t.Errorf("assertion = %q, want caller-jwt", gotAssertion)
	}
	if got := srv.LastAuthorization(); got != "Bearer obo-token" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestClientFactory_RejectsEmptyUserTokens(t *testing.T) {
	f := newClientFactory(testGraphConfig("http://unused"), &fakeCredential{}, nil, nil)

	if _, err := f.Client(Credentials{Mode: ModeDelegated}); !errors.Is(err, ErrMissingAccessToken) {
		t.Errorf("delegated without token: err = %v", err)
	}
	if _, err := f.Client(Credentials{Mode: ModeOnBehalfOf}); !errors.Is(err, ErrMissingAssertion) {
		t.Errorf("on-behalf-of without assertion: err = %v", err)
	}
	if _, err := f.Client(Credentials{Mode: Mode(9)}); err == nil {
		t.Error("unknown mode should be rejected")
	}
}

func TestClientFactory_TokenFailureSurfacesOnCall(t *testing.T) {
	srv := graphtest.NewServer()
	defer srv.Close()

	app := &fakeCredential{err: errors.New("AADSTS7000215: invalid client secret")}
	f := newClientFactory(testGraphConfig(srv.URL), app, nil, nil)
	c, _ := f.Client(ApplicationCredentials())

	if err := c.Get(context.Background(), "/users/u1", nil); err == nil {
		t.Fatal("expected token acquisition error")
	}
	if err := f.Ping(context.Background()); err == nil {
		t.Error("Ping() should report the token failure")
	}
}

func TestClientFactory_Ping(t *testing.T) {
	f := newClientFactory(testGraphConfig("http://unused"), &fakeCredential{token: "ok"}, nil, nil)
	if err := f.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNewClientFactory_BuildsFromConfig(t *testing.T) {
	f, err := NewClientFactory(testGraphConfig("http://unused"), config.AzureADConfig{
		TenantID:     "00000000-0000-0000-0000-000000000001",
		ClientID:     "client",
		ClientSecret: "secret",
	})
	if err != nil {
		t.Fatalf("NewClientFactory() error = %v", err)
	}
	if _, err := f.Client(ApplicationCredentials()); err != nil {
		t.Errorf("Client() error = %v", err)
	}
}
