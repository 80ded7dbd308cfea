package authapi

import "errors"

// ErrNoRefreshToken indicates a refresh was requested with no stored token.
var ErrNoRefreshToken = errors.New("authapi: no refresh token available")
