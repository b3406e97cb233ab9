// Package auth reads identity information from Entra ID bearer tokens.
package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// PrincipalClaims are the token claims that identify the signed-in user.
type PrincipalClaims struct {
	UPN               string `json:"upn"`
	PreferredUsername string `json:"preferred_username"`
	jwt.RegisteredClaims
}

// PrincipalName returns the user principal name carried by token: the upn
// claim, or preferred_username when upn is absent. The signature is not
// checked; only use the result for presentation such as ordering a roster.
// It returns "" for malformed tokens.
func PrincipalName(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}

	claims := &PrincipalClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	if claims.UPN != "" {
		return claims.UPN
	}
	return claims.PreferredUsername
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
