package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

// unsignedToken builds a token the way Entra would shape it; the signature
// is irrelevant to PrincipalName.
func unsignedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("irrelevant-signing-key"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

// ---------------------------------------------------------------------------
// PrincipalName
// ---------------------------------------------------------------------------

func TestPrincipalName(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"upn claim", jwt.MapClaims{"upn": "ada@contoso.com", "preferred_username": "other@contoso.com"}, "ada@contoso.com"},
		{"preferred_username fallback", jwt.MapClaims{"preferred_username": "bob@contoso.com"}, "bob@contoso.com"},
		{"no name claims", jwt.MapClaims{"sub": "abc"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrincipalName(unsignedToken(t, tt.claims)); got != tt.want {
				t.Errorf("PrincipalName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrincipalName_Malformed(t *testing.T) {
	for _, tok := range []string{"", "   ", "not-a-jwt", "a.b.c", "eyJhbGciOiJub25lIn0.!!!.sig"} {
		if got := PrincipalName(tok); got != "" {
			t.Errorf("PrincipalName(%q) = %q, want empty", tok, got)
		}
	}
}

func TestPrincipalName_ExpiredTokenStillReadable(t *testing.T) {
	tok := unsignedToken(t, jwt.MapClaims{"upn": "ada@contoso.com", "exp": 1})
	if got := PrincipalName(tok); got != "ada@contoso.com" {
		t.Errorf("PrincipalName() = %q, want ada@contoso.com", got)
	}
}

// ---------------------------------------------------------------------------
// BearerToken
// ---------------------------------------------------------------------------

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"  Bearer   abc  ", "abc"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := BearerToken(tt.header); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
