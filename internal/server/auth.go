package server

import (
	"crypto/subtle"
	"net/http"
)

// TokenAuth admits clients that present the configured token: websocket
// clients as the token query parameter, QUIC clients as their first line.
// An empty token admits everyone.
type TokenAuth struct {
	token string
}

func NewTokenAuth(token string) TokenAuth {
	return TokenAuth{token: token}
}

func (a TokenAuth) Authorize(r *http.Request) error {
	return a.Check(r.URL.Query().Get("token"))
}

func (a TokenAuth) Check(got string) error {
	if a.token == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
