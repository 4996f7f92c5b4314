package token

import (
	"time"
)

// GraceSeconds is the minimum remaining validity a cached token must have to
// be handed out. A token returned to a caller is guaranteed usable for at
// least this long, so it cannot expire mid-use.
const GraceSeconds = 300

// Record is one cached credential as issued by the token service. Issuer
// fields the tool does not interpret (token type, refresh token, scope echo)
// are preserved verbatim in Extra.
type Record struct {
	AccessToken string `yaml:"access_token"`
	// ExpiresIn is the validity duration in seconds reported by the issuer.
	ExpiresIn int64 `yaml:"expires_in"`
	// CreationTime is the local epoch timestamp set by the cache on save,
	// never by the issuer. Validity is computed against the local clock.
	CreationTime int64          `yaml:"creation_time"`
	Extra        map[string]any `yaml:",inline"`
}

// Valid reports whether the record can still be handed to a caller: the
// record exists and keeps at least GraceSeconds of validity from now.
// Nil-safe; a missing record is never valid.
func (r *Record) Valid(now time.Time) bool {
	if r == nil {
		return false
	}
	return now.Unix() < r.CreationTime+r.ExpiresIn-GraceSeconds
}

// Remaining returns the validity left on the record, ignoring the grace
// window. Negative for expired records.
func (r *Record) Remaining(now time.Time) time.Duration {
	return time.Duration(r.CreationTime+r.ExpiresIn-now.Unix()) * time.Second
}

// FromWire builds a Record from a decoded issuer response. The access token
// and expiry are lifted into typed fields; everything else is kept opaque.
func FromWire(body map[string]any) *Record {
	r := &Record{}
	for key, value := range body {
		switch key {
		case "access_token":
			s, _ := value.(string)
			r.AccessToken = s
		case "expires_in":
			r.ExpiresIn = toInt64(value)
		case "creation_time":
			r.CreationTime = toInt64(value)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[key] = value
		}
	}
	return r
}

// toInt64 normalizes the numeric types produced by JSON and YAML decoding.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
