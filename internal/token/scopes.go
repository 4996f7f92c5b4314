package token

import "strings"

// userScopes are the only scopes the token service accepts for human users.
// Anything else a caller requests is dropped from the wire request.
var userScopes = map[string]struct{}{
	"uid": {},
	"cn":  {},
}

// IsUserScope reports whether the token service supports the scope for
// users (employees).
func IsUserScope(scope string) bool {
	_, ok := userScopes[scope]
	return ok
}

// FilterUserScopes returns the user-scope subset of scopes, order preserved.
func FilterUserScopes(scopes []string) []string {
	var filtered []string
	for _, s := range scopes {
		if IsUserScope(s) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// JoinScopes renders scopes as the space-separated wire format.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}
