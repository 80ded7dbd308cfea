package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session value keys persisted alongside the credential set.
const (
	// SettingsSessionKey stores the user_settings JSON blob.
	SettingsSessionKey = "user_settings"
	// VerifiedAtSessionKey records when the token was last confirmed upstream.
	VerifiedAtSessionKey = "verified_at"
)

// FlashMessage represents a one-time notification stored in session.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SessionManager orchestrates cookie based sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session holds per-request session data: the credential pair issued by the
// auth API, the decoded user, free-form values and flash messages.
//
// All accessors tolerate a nil receiver so callers outside a browser-backed
// request (health checks, background rendering) read empty values instead
// of panicking. Field access is mutex-guarded: independent upstream calls
// for one request may run in parallel and each may drive a refresh, so
// credential writes can interleave. Last write wins; a refresh response
// landing after a logout is dropped by SetUser's token check.
type Session struct {
	ID string

	mu           sync.Mutex
	values       map[string]string
	user         *User
	accessToken  string
	refreshToken string
	lastError    string
	flashes      []FlashMessage
	isNew        bool
	dirty        bool
	destroyed    bool
}

type sessionPayload struct {
	Values       map[string]string `json:"values"`
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	User         json.RawMessage   `json:"current_user,omitempty"`
	LastError    string            `json:"last_error,omitempty"`
	Flashes      []FlashMessage    `json:"flashes"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load loads or creates a new session for request.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			sess := sm.newSession()
			sess.ID = cookie.Value
			sess.isNew = true
			return sess, nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	sess := sm.newSession()
	sess.ID = cookie.Value
	sess.values = stored.Values
	sess.accessToken = stored.AccessToken
	sess.refreshToken = stored.RefreshToken
	sess.lastError = stored.LastError
	sess.flashes = stored.Flashes
	sess.isNew = false
	if len(stored.User) > 0 {
		var user User
		if err := json.Unmarshal(stored.User, &user); err != nil {
			// Corrupted user data is fatal to the credential set.
			sess.clearCredentialsLocked()
		} else {
			sess.user = &user
		}
	}
	// A token without a user (or the reverse) is an inconsistent leftover.
	if (sess.accessToken == "") != (sess.user == nil) {
		sess.clearCredentialsLocked()
	}
	return sess, nil
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	if sess.isNew && sess.ID == "" {
		sess.ID = sm.generateSessionID()
	}

	if sess.dirty || sess.isNew {
		data, err := json.Marshal(sess.payloadLocked())
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
	}

	if sess.ID != "" {
		cookie := &http.Cookie{
			Name:     sm.cookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
			Expires:  time.Now().Add(sm.ttl),
		}
		http.SetCookie(w, cookie)
	}

	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Session helpers

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// SetCredentials stores the token pair and user issued by the auth API and
// resets any previous error. Called on login and on every successful refresh.
func (s *Session) SetCredentials(user *User, accessToken, refreshToken string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.accessToken = accessToken
	s.refreshToken = refreshToken
	s.lastError = ""
	s.dirty = true
}

// ClearCredentials removes the token pair, the user, any recorded error and
// the verification timestamp.
func (s *Session) ClearCredentials() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCredentialsLocked()
}

func (s *Session) clearCredentialsLocked() {
	s.user = nil
	s.accessToken = ""
	s.refreshToken = ""
	s.lastError = ""
	if s.values != nil {
		delete(s.values, VerifiedAtSessionKey)
	}
	s.dirty = true
}

// SetUser replaces the stored user. The update is dropped when the session
// holds no token: a verify response arriving after logout must not
// resurrect the cleared session.
func (s *Session) SetUser(user *User) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == "" {
		return
	}
	s.user = user
	s.dirty = true
}

// User returns the authenticated principal, nil when logged out.
func (s *Session) User() *User {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// AccessToken returns the bearer token for upstream calls.
func (s *Session) AccessToken() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// RefreshToken returns the stored refresh token.
func (s *Session) RefreshToken() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// SetError records a user-facing error message; empty clears it.
func (s *Session) SetError(msg string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
	s.dirty = true
}

// LastError returns the recorded user-facing error message.
func (s *Session) LastError() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// IsAuthenticated reports whether a token pair is present. The session is
// authenticated exactly when an access token is stored; Load and the
// credential mutators keep user and token in lockstep.
func (s *Session) IsAuthenticated() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != ""
}

// IsAdmin reports whether the current user holds the ADMIN role.
func (s *Session) IsAdmin() bool {
	return s.User().HasRole(RoleAdmin)
}

// IsManager reports whether the current user holds MANAGER or ADMIN.
func (s *Session) IsManager() bool {
	return s.User().HasAnyRole(RoleManager, RoleAdmin)
}

// HasRole reports whether the current user holds the given role.
func (s *Session) HasRole(role string) bool {
	return s.User().HasRole(role)
}

// HasAnyRole reports whether the current user holds any of the roles.
func (s *Session) HasAnyRole(roles ...string) bool {
	return s.User().HasAnyRole(roles...)
}

// HasPermission reports whether the current user holds the permission.
func (s *Session) HasPermission(perm string) bool {
	return s.User().HasPermission(perm)
}

// HasAnyPermission reports whether the current user holds any permission.
func (s *Session) HasAnyPermission(perms ...string) bool {
	return s.User().HasAnyPermission(perms...)
}

// AddFlash queues a flash message.
func (s *Session) AddFlash(msg FlashMessage) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes = append(s.flashes, msg)
	s.dirty = true
}

// PopFlash retrieves and clears the oldest flash message.
func (s *Session) PopFlash() *FlashMessage {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.flashes) == 0 {
		return nil
	}
	msg := s.flashes[0]
	s.flashes = s.flashes[1:]
	s.dirty = true
	return &msg
}

func (s *Session) payloadLocked() sessionPayload {
	p := sessionPayload{
		Values:       s.values,
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		LastError:    s.lastError,
		Flashes:      s.flashes,
	}
	if s.user != nil {
		if data, err := json.Marshal(s.user); err == nil {
			p.User = data
		}
	}
	return p
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:     sm.generateSessionID(),
		values: make(map[string]string),
		isNew:  true,
		dirty:  true,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}

func (sm *SessionManager) generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(sm.secret) > 0 {
		for i := range b {
			b[i] ^= sm.secret[i%len(sm.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
