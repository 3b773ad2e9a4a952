package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgestack/devplane/internal/apierr"
)

func lockStep(t *testing.T, s *State) func() {
	t.Helper()
	s.Mu.Lock()
	return s.Mu.Unlock
}

func TestLoginPassword(t *testing.T) {
	s := newTestState(t, nil)
	defer lockStep(t, s)()

	_, err := s.LoginPassword("admin@devplane.local", "wrong")
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "invalid_credentials", apiErr.Code)

	pair, err := s.LoginPassword("Admin@Devplane.Local", "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, 3600, pair.ExpiresIn)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
}

func TestLoginAPIKey(t *testing.T) {
	s := newTestState(t, nil)
	defer lockStep(t, s)()

	_, err := s.LoginAPIKey("nope")
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)

	pair, err := s.LoginAPIKey("dev-api-key")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestAuthorize(t *testing.T) {
	s := newTestState(t, nil)
	defer lockStep(t, s)()

	pair, err := s.LoginAPIKey("dev-api-key")
	require.NoError(t, err)

	user, err := s.Authorize("Bearer " + pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user_admin", user.ID)

	_, err = s.Authorize("")
	assert.Error(t, err)
	_, err = s.Authorize("Bearer bogus")
	assert.Error(t, err)
}

func TestAuthorize_ExpiredTokenEvicted(t *testing.T) {
	s := newTestState(t, nil)
	defer lockStep(t, s)()

	pair, err := s.LoginAPIKey("dev-api-key")
	require.NoError(t, err)
	s.AccessTokens[pair.AccessToken].ExpiresAt = 1

	_, err = s.Authorize("Bearer " + pair.AccessToken)
	assert.Error(t, err)
	_, stillThere := s.AccessTokens[pair.AccessToken]
	assert.False(t, stillThere)
}

func TestAuthorize_Disabled(t *testing.T) {
	s := newTestState(t, nil)
	s.cfg.AuthDisabled = true
	defer lockStep(t, s)()

	user, err := s.Authorize("")
	require.NoError(t, err)
	assert.Equal(t, "user_admin", user.ID)
}

func TestRefresh_SingleUse(t *testing.T) {
	s := newTestState(t, nil)
	defer lockStep(t, s)()

	pair, err := s.LoginAPIKey("dev-api-key")
	require.NoError(t, err)

	next, err := s.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The first refresh token is spent.
	_, err = s.Refresh(pair.RefreshToken)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_refresh_token", apiErr.Code)
}

func TestRefresh_Expired(t *testing.T) {
	s := newTestState(t, nil)
	defer lockStep(t, s)()

	pair, err := s.LoginAPIKey("dev-api-key")
	require.NoError(t, err)
	s.RefreshTokens[pair.RefreshToken].ExpiresAt = 1

	_, err = s.Refresh(pair.RefreshToken)
	assert.Error(t, err)
	_, stillThere := s.RefreshTokens[pair.RefreshToken]
	assert.False(t, stillThere)
}

func TestLogout(t *testing.T) {
	s := newTestState(t, nil)
	defer lockStep(t, s)()

	pair, err := s.LoginAPIKey("dev-api-key")
	require.NoError(t, err)

	s.Logout(pair.RefreshToken)
	_, err = s.Refresh(pair.RefreshToken)
	assert.Error(t, err)

	// Unknown tokens are a no-op.
	s.Logout("rtk_missing")
}

func TestLoginPassword_DisabledUser(t *testing.T) {
	s := newTestState(t, nil)
	defer lockStep(t, s)()

	s.Users["user_admin"].Disabled = true
	_, err := s.LoginPassword("admin@devplane.local", "admin")
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Status)
}

func TestLoginAPIKey_ResolvesAdminAmongManyUsers(t *testing.T) {
	s := newTestState(t, nil)
	defer lockStep(t, s)()

	// Map iteration order must not decide whose tokens come back.
	for i := 0; i < 20; i++ {
		u := &User{ID: NewID("user"), Name: "Dev", Email: NewID("dev") + "@devplane.local", CreatedAt: NowISO()}
		s.Users[u.ID] = u
	}

	for i := 0; i < 50; i++ {
		pair, err := s.LoginAPIKey("dev-api-key")
		require.NoError(t, err)
		user, err := s.Authorize("Bearer " + pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user_admin", user.ID)
	}
}

func TestAuthorize_DisabledResolvesAdminAmongManyUsers(t *testing.T) {
	s := newTestState(t, nil)
	s.cfg.AuthDisabled = true
	defer lockStep(t, s)()

	for i := 0; i < 20; i++ {
		u := &User{ID: NewID("user"), Name: "Dev", Email: NewID("dev") + "@devplane.local", CreatedAt: NowISO()}
		s.Users[u.ID] = u
	}

	for i := 0; i < 50; i++ {
		user, err := s.Authorize("")
		require.NoError(t, err)
		assert.Equal(t, "user_admin", user.ID)
	}
}

func TestDefaultUser_FallsBackToOldestWhenAdminDeleted(t *testing.T) {
	s := newTestState(t, nil)
	defer lockStep(t, s)()

	delete(s.Users, "user_admin")
	s.Users["user_b"] = &User{ID: "user_b", CreatedAt: "2026-01-02T00:00:00Z"}
	s.Users["user_a"] = &User{ID: "user_a", CreatedAt: "2026-01-01T00:00:00Z"}
	s.Users["user_c"] = &User{ID: "user_c", CreatedAt: "2026-01-01T00:00:00Z"}

	for i := 0; i < 50; i++ {
		pair, err := s.LoginAPIKey("dev-api-key")
		require.NoError(t, err)
		user, err := s.Authorize("Bearer " + pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user_a", user.ID)
	}
}
