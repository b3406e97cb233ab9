// Package azuread validates Entra ID (Azure AD) bearer tokens presented to
// the roster API. Signatures are checked against the Entra signing keys, and
// the issuer and audience against the app registration.
package azuread

import (
	"context"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/team-roster/team-roster/internal/config"
)

// DefaultJWKSURL serves the signing keys of every Entra tenant.
const DefaultJWKSURL = "https://login.microsoftonline.com/common/discovery/v2.0/keys"

const errMissingAudienceIssuer = "Audience and issuer are required to validate token"

// ValidationResult reports whether a token passed validation.
type ValidationResult struct {
	Valid        bool   `json:"valid"`
	ErrorMessage string `json:"errorMessage"`
}

// Validator checks Entra ID tokens.
type Validator struct {
	verifier *oidc.IDTokenVerifier
}

// NewValidator builds a validator for the app registration in cfg. Signing
// keys are fetched lazily from cfg.JWKSURL and cached by go-oidc.
func NewValidator(ctx context.Context, cfg config.AzureADConfig) *Validator {
	jwks := cfg.JWKSURL
	if jwks == "" {
		jwks = DefaultJWKSURL
	}
	return newValidator(cfg.GetIssuer(), cfg.ClientID, oidc.NewRemoteKeySet(ctx, jwks))
}

func newValidator(issuer, audience string, keys oidc.KeySet) *Validator {
	if issuer == "" || audience == "" {
		return &Validator{}
	}
	return &Validator{
		verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: audience}),
	}
}

// Validate verifies signature, expiry, issuer and audience of token.
func (v *Validator) Validate(ctx context.Context, token string) ValidationResult {
	if v.verifier == nil {
		return ValidationResult{ErrorMessage: errMissingAudienceIssuer}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ValidationResult{ErrorMessage: "token is required"}
	}
	if _, err := v.verifier.Verify(ctx, token); err != nil {
		return ValidationResult{ErrorMessage: err.Error()}
	}
	return ValidationResult{Valid: true}
}
