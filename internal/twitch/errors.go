package twitch

import "fmt"

// CredentialError is returned when the client-credentials exchange with the
// identity endpoint fails. It is fatal for the whole pipeline run; token
// issuance failures are configuration or outage problems, not transient ones.
type CredentialError struct {
	StatusCode int
	Message    string
}

func (e *CredentialError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("twitch token request failed: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("twitch token request failed: %s", e.Message)
}

// AuthorizationError is returned when the playback access token query fails
// or comes back without both the token value and the signature.
type AuthorizationError struct {
	StatusCode int
	Message    string
}

func (e *AuthorizationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("playback authorization failed: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("playback authorization failed: %s", e.Message)
}
