package api

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/todoapp/internal/identity"
	"github.com/eleven-am/todoapp/internal/models"
	"github.com/eleven-am/todoapp/internal/todo"
)

const userContextKey = "user"

var (
	errMissingAuthorization = &todo.AuthenticationError{Message: "authentication credentials were not provided"}
	errBadAuthorization     = &todo.AuthenticationError{Message: "bad authorization header"}
)

const bearerPrefix = "Bearer "

// Authenticator resolves the acting user from an Authorization header
type Authenticator struct {
	tokens *identity.Tokens
	users  *identity.Users
}

func NewAuthenticator(tokens *identity.Tokens, users *identity.Users) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate verifies the bearer access token and loads its user. Every
// failure is an AuthenticationError.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*models.User, error) {
	token, err := bearerTokenFromString(header)
	if err != nil {
		return nil, err
	}

	claims, err := a.tokens.ParseAccess(token)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, errBadAuthorization
	}

	user, err := a.users.GetByID(ctx, id)
	if err != nil {
		var notFound *todo.NotFoundError
		if errors.As(err, &notFound) {
			return nil, &todo.AuthenticationError{Message: "user not found"}
		}
		return nil, err
	}
	return user, nil
}

func bearerTokenFromString(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errMissingAuthorization
	}
	if len(trimmed) <= len(bearerPrefix) || !strings.HasPrefix(trimmed, bearerPrefix) {
		return "", errBadAuthorization
	}

	token := strings.TrimSpace(trimmed[len(bearerPrefix):])
	if strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}

// requireUser rejects unauthenticated requests and stores the user on the context
func requireUser(auth *Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := auth.Authenticate(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// currentUser returns the user set by requireUser
func currentUser(c echo.Context) *models.User {
	user, _ := c.Get(userContextKey).(*models.User)
	return user
}
