package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPasswordAndMatch(t *testing.T) {
	user := &User{Email: "alice@example.com", Username: "alice"}

	require.NoError(t, user.SetPassword("correct horse battery staple"))
	require.NotEmpty(t, user.Password)

	matched, err := user.IsPasswordMatch("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = user.IsPasswordMatch("wrong password")
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestGenerateAndAuthenticateToken(t *testing.T) {
	authenticator := NewAuth("test-secret", time.Hour)
	user := &User{Email: "alice@example.com", Username: "alice"}

	token, err := authenticator.GenerateToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claim, err := authenticator.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claim.Email)
	assert.Equal(t, "alice", claim.Username)
	assert.Equal(t, "alice@example.com", claim.Subject)
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	user := &User{Email: "alice@example.com", Username: "alice"}

	token, err := NewAuth("secret-one", time.Hour).GenerateToken(user)
	require.NoError(t, err)

	_, err = NewAuth("secret-two", time.Hour).Authenticate(token)
	assert.Error(t, err)
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	authenticator := NewAuth("test-secret", -time.Hour)
	user := &User{Email: "alice@example.com", Username: "alice"}

	token, err := authenticator.GenerateToken(user)
	require.NoError(t, err)

	_, err = authenticator.Authenticate(token)
	assert.Error(t, err)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	authenticator := NewAuth("test-secret", time.Hour)

	_, err := authenticator.Authenticate("not-a-token")
	assert.Error(t, err)
}

func TestAuthenticatedUserContext(t *testing.T) {
	authenticator := NewAuth("test-secret", time.Hour)
	r := httptest.NewRequest("GET", "/", nil)

	_, err := authenticator.GetAuthenticatedUser(r)
	assert.ErrorIs(t, err, NotAuthenticatedUser)
	assert.False(t, authenticator.IsUserAuthenticated(r))

	user := &User{Email: "alice@example.com", Username: "alice"}
	r = authenticator.SetAuthenticatedUser(r, user)

	gotUser, err := authenticator.GetAuthenticatedUser(r)
	require.NoError(t, err)
	assert.Equal(t, user, gotUser)
	assert.True(t, authenticator.IsUserAuthenticated(r))
}
