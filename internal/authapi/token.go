package authapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/matadmin/matadmin/internal/shared"
)

// tokenExpired decodes the access token without verifying its signature and
// checks the exp claim against wall clock. Signature verification belongs to
// the auth API; this is only the gate against sending a token we already
// know is dead. An undecodable token counts as expired.
func tokenExpired(token string, now time.Time) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return !now.Before(exp.Time)
}

// LocallyValid reports whether the session's access token is present and not
// expired according to its exp claim. It never mutates the session: an
// expired token still has a usable refresh token next to it, and only a
// failed Refresh may take that away. The check is inherently racy against
// server-side revocation: a locally valid token may still be rejected
// upstream, which the gateway's refresh path then handles.
func (c *Client) LocallyValid(sess *shared.Session) bool {
	token := sess.AccessToken()
	if token == "" {
		return false
	}
	return !tokenExpired(token, time.Now())
}
