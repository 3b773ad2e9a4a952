package state

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgestack/devplane/internal/apierr"
)

// TokenPair is the payload returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// mintToken signs a JWT carrying the user id and token type. The token
// string itself keys the server-side record, so revocation works even
// though the JWT is self-describing.
func (s *State) mintToken(userID, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"typ": typ,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

// IssueTokens mints an access/refresh pair for a user and records both.
// Caller holds the lock.
func (s *State) IssueTokens(userID string) (*TokenPair, error) {
	access, err := s.mintToken(userID, "access", s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, apierr.Internal("token_mint_failed", err.Error())
	}
	refresh, err := s.mintToken(userID, "refresh", s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, apierr.Internal("token_mint_failed", err.Error())
	}
	now := time.Now()
	s.AccessTokens[access] = &TokenRecord{UserID: userID, ExpiresAt: now.Add(s.cfg.AccessTokenTTL).Unix()}
	s.RefreshTokens[refresh] = &TokenRecord{UserID: userID, ExpiresAt: now.Add(s.cfg.RefreshTokenTTL).Unix()}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// tokenUser resolves a live user from an access token, evicting the
// record when it has expired. Caller holds the lock.
func (s *State) tokenUser(token string) *User {
	rec, ok := s.AccessTokens[token]
	if !ok {
		return nil
	}
	if rec.ExpiresAt < time.Now().Unix() {
		delete(s.AccessTokens, token)
		s.PersistLocked()
		return nil
	}
	user, ok := s.Users[rec.UserID]
	if !ok || user.Disabled {
		return nil
	}
	return user
}

// defaultUser resolves the account shared-key and disabled-auth
// requests act as: the seeded admin, or the oldest surviving user when
// the admin was deleted. Map iteration order is random, so the
// fallback sorts by (CreatedAt, ID).
func (s *State) defaultUser() *User {
	if admin, ok := s.Users[adminUserID]; ok {
		return admin
	}
	var oldest *User
	for _, u := range s.Users {
		if oldest == nil || u.CreatedAt < oldest.CreatedAt ||
			(u.CreatedAt == oldest.CreatedAt && u.ID < oldest.ID) {
			oldest = u
		}
	}
	return oldest
}

// Authorize resolves the caller from an Authorization header value.
// With auth disabled it returns the default user. Caller holds the
// lock.
func (s *State) Authorize(authHeader string) (*PublicUser, error) {
	if s.cfg.AuthDisabled {
		if u := s.defaultUser(); u != nil {
			return u.Sanitize(), nil
		}
		return nil, apierr.Unauthorized("unauthorized", "No users configured.")
	}
	if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return nil, apierr.Unauthorized("unauthorized", "Missing bearer token.")
	}
	token := strings.TrimSpace(authHeader[len("bearer "):])
	user := s.tokenUser(token)
	if user == nil {
		return nil, apierr.Unauthorized("unauthorized", "Invalid or expired access token.")
	}
	return user.Sanitize(), nil
}

// LoginPassword authenticates by email and password. Caller holds the
// lock.
func (s *State) LoginPassword(email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range s.Users {
		if strings.ToLower(strings.TrimSpace(user.Email)) != email {
			continue
		}
		if user.Disabled {
			return nil, apierr.New(403, "forbidden", "User is disabled.")
		}
		if !checkPassword(s.UserPasswords[user.ID], password) {
			break
		}
		return s.IssueTokens(user.ID)
	}
	return nil, apierr.Unauthorized("invalid_credentials", "Invalid email or password.")
}

// LoginAPIKey authenticates with the shared server API key, issuing
// tokens for the admin account. Caller holds the lock.
func (s *State) LoginAPIKey(apiKey string) (*TokenPair, error) {
	if strings.TrimSpace(apiKey) != s.cfg.APIKey {
		return nil, apierr.Unauthorized("invalid_credentials", "Invalid API key.")
	}
	if u := s.defaultUser(); u != nil {
		return s.IssueTokens(u.ID)
	}
	return nil, apierr.Unauthorized("invalid_credentials", "No users configured.")
}

// Refresh exchanges a refresh token for a fresh pair. Refresh tokens
// are single use: the presented token is revoked whether or not a new
// pair is issued. Caller holds the lock.
func (s *State) Refresh(refreshToken string) (*TokenPair, error) {
	rec, ok := s.RefreshTokens[refreshToken]
	if !ok {
		return nil, apierr.Unauthorized("invalid_refresh_token", "Refresh token is invalid.")
	}
	if rec.ExpiresAt < time.Now().Unix() {
		delete(s.RefreshTokens, refreshToken)
		return nil, apierr.Unauthorized("invalid_refresh_token", "Refresh token has expired.")
	}
	user, ok := s.Users[rec.UserID]
	if !ok || user.Disabled {
		return nil, apierr.Unauthorized("invalid_refresh_token", "Refresh token is invalid.")
	}
	delete(s.RefreshTokens, refreshToken)
	return s.IssueTokens(user.ID)
}

// Logout revokes a refresh token. Unknown tokens are ignored. Caller
// holds the lock.
func (s *State) Logout(refreshToken string) {
	if refreshToken != "" {
		delete(s.RefreshTokens, refreshToken)
	}
}

// SetPassword stores a bcrypt hash for the user. Caller holds the lock.
func (s *State) SetPassword(userID, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return apierr.Internal("password_hash_failed", err.Error())
	}
	s.UserPasswords[userID] = hash
	return nil
}
