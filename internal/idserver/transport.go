package idserver

import "net/http"

// APIKeyHeader carries the admin API key on every request.
const APIKeyHeader = "x-api-key"

// apiKeyTransport adds admin authentication to outgoing requests.
type apiKeyTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set(APIKeyHeader, t.apiKey)
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "application/json")
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}
