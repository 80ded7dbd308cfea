package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Markers distinguishing a dead bearer token from an authorization denial.
// Only the former may trigger a refresh; a permission failure must reach
// the caller untouched.
var (
	tokenMarkers = []string{
		"jwt",
		"token expired",
		"token invalid",
		"invalid token",
		"malformed token",
		"token malformed",
	}
	tokenCodes = map[string]struct{}{
		"TOKEN_EXPIRED": {},
		"INVALID_TOKEN": {},
		"JWT_EXPIRED":   {},
		"JWT_MALFORMED": {},
	}
	permissionMarkers = []string{
		"permission",
		"access denied",
		"forbidden",
		"not authorized",
	}
	permissionCodes = map[string]struct{}{
		"INSUFFICIENT_PERMISSIONS": {},
		"ACCESS_DENIED":            {},
	}
)

type unauthorizedBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// isTokenFailure inspects a 401 response body (and headers) and reports
// whether it denotes a token problem worth a refresh attempt. Permission
// denials always win over token markers.
func isTokenFailure(body []byte, header http.Header) bool {
	var parsed unauthorizedBody
	_ = json.Unmarshal(body, &parsed)

	message := strings.ToLower(parsed.Message)
	if message == "" {
		message = strings.ToLower(parsed.Error)
	}
	if message == "" {
		message = strings.ToLower(string(body))
	}
	code := strings.ToUpper(strings.TrimSpace(parsed.Code))

	if _, ok := permissionCodes[code]; ok {
		return false
	}
	for _, marker := range permissionMarkers {
		if strings.Contains(message, marker) {
			return false
		}
	}

	if _, ok := tokenCodes[code]; ok {
		return true
	}
	for _, marker := range tokenMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}

	// WWW-Authenticate Bearer challenges mentioning expiry count as token
	// failures even without a matching body marker.
	if challenge := strings.ToLower(header.Get("WWW-Authenticate")); strings.Contains(challenge, "bearer") {
		if strings.Contains(message, "expired") || strings.Contains(message, "invalid") {
			return true
		}
	}
	return false
}
