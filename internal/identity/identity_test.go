package identity

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eleven-am/todoapp/internal/models"
	testutil "github.com/eleven-am/todoapp/internal/testing"
	"github.com/eleven-am/todoapp/internal/todo"
)

func newUsers(t *testing.T) (*Users, *testutil.MemoryStore) {
	t.Helper()
	s := testutil.NewMemoryStore()
	return NewUsers(s, bcrypt.MinCost), s
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("hashes password", func(t *testing.T) {
		users, _ := newUsers(t)

		user, err := users.CreateUser(ctx, testutil.Ptr(" alice "), testutil.Ptr("pw123"))
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.NotEqual(t, "pw123", user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pw123")))
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		users, _ := newUsers(t)

		_, err := users.CreateUser(ctx, testutil.Ptr("alice"), testutil.Ptr("pw123"))
		require.NoError(t, err)

		_, err = users.CreateUser(ctx, testutil.Ptr("alice"), testutil.Ptr("other"))
		var conflict *todo.ConflictError
		assert.ErrorAs(t, err, &conflict)
	})

	t.Run("validation", func(t *testing.T) {
		users, s := newUsers(t)

		cases := []struct {
			name     string
			username *string
			password *string
			field    string
		}{
			{"missing username", nil, testutil.Ptr("pw123"), "username"},
			{"blank username", testutil.Ptr("  "), testutil.Ptr("pw123"), "username"},
			{"bad characters", testutil.Ptr("al ice"), testutil.Ptr("pw123"), "username"},
			{"long username", testutil.Ptr(strings.Repeat("a", 151)), testutil.Ptr("pw123"), "username"},
			{"null character in username", testutil.Ptr("al\x00ice"), testutil.Ptr("pw123"), "username"},
			{"null character in password", testutil.Ptr("alice"), testutil.Ptr("pw\x00123"), "password"},
			{"missing password", testutil.Ptr("alice"), nil, "password"},
			{"short password", testutil.Ptr("alice"), testutil.Ptr("pw12"), "password"},
			{"password is not trimmed", testutil.Ptr("alice"), testutil.Ptr("  pw"), "password"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := users.CreateUser(ctx, tc.username, tc.password)
				var validation *todo.ValidationError
				require.ErrorAs(t, err, &validation)
				assert.Equal(t, tc.field, validation.Field)
			})
		}

		count, _, _ := s.Counts()
		assert.Zero(t, count)
	})

	t.Run("accepts django style usernames", func(t *testing.T) {
		users, _ := newUsers(t)

		_, err := users.CreateUser(ctx, testutil.Ptr("a.b+c-d_e@example"), testutil.Ptr("     "))
		assert.NoError(t, err)
	})
}

func TestVerifyCredentials(t *testing.T) {
	ctx := context.Background()
	users, _ := newUsers(t)

	created, err := users.CreateUser(ctx, testutil.Ptr("alice"), testutil.Ptr("pw123"))
	require.NoError(t, err)

	user, err := users.VerifyCredentials(ctx, "alice", "pw123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, wrongPassword := users.VerifyCredentials(ctx, "alice", "nope!")
	_, unknownUser := users.VerifyCredentials(ctx, "mallory", "pw123")

	var authErr *todo.AuthenticationError
	require.ErrorAs(t, wrongPassword, &authErr)
	require.ErrorAs(t, unknownUser, &authErr)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	users, _ := newUsers(t)

	alice, err := users.CreateUser(ctx, testutil.Ptr("alice"), testutil.Ptr("pw123"))
	require.NoError(t, err)
	_, err = users.CreateUser(ctx, testutil.Ptr("bob"), testutil.Ptr("pw123"))
	require.NoError(t, err)

	updated, err := users.UpdateProfile(ctx, alice, ProfilePatch{Username: testutil.Ptr("alicia")})
	require.NoError(t, err)
	assert.Equal(t, "alicia", updated.Username)

	_, err = users.VerifyCredentials(ctx, "alicia", "pw123")
	require.NoError(t, err)

	_, err = users.UpdateProfile(ctx, updated, ProfilePatch{Password: testutil.Ptr("secret")})
	require.NoError(t, err)
	_, err = users.VerifyCredentials(ctx, "alicia", "secret")
	require.NoError(t, err)

	var conflict *todo.ConflictError
	_, err = users.UpdateProfile(ctx, updated, ProfilePatch{Username: testutil.Ptr("bob")})
	assert.ErrorAs(t, err, &conflict)

	same, err := users.UpdateProfile(ctx, updated, ProfilePatch{Username: testutil.Ptr("alicia")})
	require.NoError(t, err)
	assert.Equal(t, "alicia", same.Username)

	var validation *todo.ValidationError
	_, err = users.ReplaceProfile(ctx, updated, ProfilePatch{Username: testutil.Ptr("alicia")})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "password", validation.Field)

	got, err := users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alicia", got.Username)

	var notFound *todo.NotFoundError
	_, err = users.GetByID(ctx, 999)
	assert.ErrorAs(t, err, &notFound)
}

func newTokens(t *testing.T, denylist Denylist) *Tokens {
	t.Helper()
	tokens, err := NewTokens(TokenConfig{Secret: "test-secret", Issuer: "todoapp"}, denylist)
	require.NoError(t, err)
	return tokens
}

func newRedisDenylist(t *testing.T) (*RedisDenylist, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDenylist(client), mr
}

func TestTokenPair(t *testing.T) {
	tokens := newTokens(t, nil)
	user := &models.User{ID: 42}

	pair, err := tokens.IssuePair(user)
	require.NoError(t, err)

	claims, err := tokens.ParseAccess(pair.Access)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "todoapp", claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	var authErr *todo.AuthenticationError
	_, err = tokens.ParseAccess(pair.Refresh)
	assert.ErrorAs(t, err, &authErr, "refresh token must not authenticate requests")

	access, err := tokens.Refresh(context.Background(), pair.Refresh)
	require.NoError(t, err)
	_, err = tokens.ParseAccess(access)
	assert.NoError(t, err)

	_, err = tokens.Refresh(context.Background(), pair.Access)
	assert.ErrorAs(t, err, &authErr)
}

func TestTokenRejections(t *testing.T) {
	user := &models.User{ID: 7}
	var authErr *todo.AuthenticationError

	t.Run("expired", func(t *testing.T) {
		tokens := newTokens(t, nil)
		tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }

		pair, err := tokens.IssuePair(user)
		require.NoError(t, err)

		tokens.now = time.Now
		_, err = tokens.ParseAccess(pair.Access)
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("wrong signature", func(t *testing.T) {
		other, err := NewTokens(TokenConfig{Secret: "other-secret", Issuer: "todoapp"}, nil)
		require.NoError(t, err)
		pair, err := other.IssuePair(user)
		require.NoError(t, err)

		_, err = newTokens(t, nil).ParseAccess(pair.Access)
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		claims := &Claims{
			TokenType: TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "7",
				Issuer:    "todoapp",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = newTokens(t, nil).ParseAccess(signed)
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := newTokens(t, nil).ParseAccess("not.a.token")
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := NewTokens(TokenConfig{}, nil)
		assert.Error(t, err)
	})
}

func TestRevokeWithRedisDenylist(t *testing.T) {
	ctx := context.Background()
	denylist, mr := newRedisDenylist(t)
	tokens := newTokens(t, denylist)

	pair, err := tokens.IssuePair(&models.User{ID: 3})
	require.NoError(t, err)

	_, err = tokens.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)

	require.NoError(t, tokens.Revoke(ctx, pair.Refresh))

	var authErr *todo.AuthenticationError
	_, err = tokens.Refresh(ctx, pair.Refresh)
	assert.ErrorAs(t, err, &authErr)
	assert.ErrorAs(t, tokens.Revoke(ctx, pair.Refresh), &authErr)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], denylistPrefix))
	assert.Greater(t, mr.TTL(keys[0]), time.Duration(0))

	mr.FastForward(DefaultRefreshTTL + time.Minute)
	assert.Empty(t, mr.Keys())
}

func TestRedisDenylistSkipsExpiredTokens(t *testing.T) {
	denylist, mr := newRedisDenylist(t)

	require.NoError(t, denylist.Revoke(context.Background(), "old", time.Now().Add(-time.Second)))
	assert.Empty(t, mr.Keys())

	revoked, err := denylist.IsRevoked(context.Background(), "old")
	require.NoError(t, err)
	assert.False(t, revoked)
}
