package tokenservice

import "fmt"

// AuthenticationError indicates the token service rejected the supplied
// credentials (HTTP 401). Callers running interactively may recover by
// prompting for a new password; everywhere else it is terminal.
type AuthenticationError struct {
	Body string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: token service returned %s", e.Body)
}

// ServerError indicates any other token service failure: unexpected status,
// undecodable response, or a response missing the access token. Never
// retried automatically.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("server error: token service returned HTTP status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("server error: %s", e.Body)
}
