package graph

// Mode selects how Graph calls are authorised.
type Mode int

const (
	// ModeApplication uses the service's own app registration.
	ModeApplication Mode = iota
	// ModeDelegated forwards a caller-supplied Graph access token unchanged.
	ModeDelegated
	// ModeOnBehalfOf exchanges the caller's bearer token for a Graph token.
	ModeOnBehalfOf
)

func (m Mode) String() string {
	switch m {
	case ModeApplication:
		return "application"
	case ModeDelegated:
		return "delegated"
	case ModeOnBehalfOf:
		return "on-behalf-of"
	default:
		return "unknown"
	}
}

// Credentials is the authorisation context of one request. Token is the user
// assertion for ModeOnBehalfOf, the access token for ModeDelegated and empty
// for ModeApplication.
type Credentials struct {
	Mode  Mode
	Token string
}

// ApplicationCredentials returns the app-only credential context.
func ApplicationCredentials() Credentials {
	return Credentials{Mode: ModeApplication}
}

// SelectCredentials picks the credential context for a request. A bearer
// token the caller sent in the Authorization header wins and is exchanged on
// behalf of the user. Otherwise an explicit access token is used as-is.
// With neither, the application credential applies.
func SelectCredentials(userAssertion, accessToken string) Credentials {
	switch {
	case userAssertion != "":
		return Credentials{Mode: ModeOnBehalfOf, Token: userAssertion}
	case accessToken != "":
		return Credentials{Mode: ModeDelegated, Token: accessToken}
	default:
		return ApplicationCredentials()
	}
}

// UserScoped reports whether the credentials act as a signed-in user, which
// is what makes /me meaningful.
func (c Credentials) UserScoped() bool {
	return c.Mode == ModeDelegated || c.Mode == ModeOnBehalfOf
}
