package session

import "net/http"

// BearerTransport adds the current token to every outgoing request.
type BearerTransport struct {
	Base   http.RoundTripper
	Tokens TokenSource
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token := ""
	if t.Tokens != nil {
		token = t.Tokens.Token()
	}
	if token == "" {
		return base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(clone)
}
