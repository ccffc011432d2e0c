package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/eleven-am/todoapp/internal/logger"
	"github.com/eleven-am/todoapp/internal/models"
	"github.com/eleven-am/todoapp/internal/todo"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
)

// Claims are the registered claims plus the token's purpose
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a user id
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid subject")
	}
	return id, nil
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Denylist records revoked refresh token ids until they would expire anyway
type Denylist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type TokenConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Tokens issues and verifies HS256 access/refresh tokens
type Tokens struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
	denylist   Denylist
	now        func() time.Time
}

// NewTokens creates a token issuer. denylist may be nil, in which case
// refresh tokens cannot be revoked before they expire.
func NewTokens(cfg TokenConfig, denylist Denylist) (*Tokens, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}

	return &Tokens{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
		denylist:   denylist,
		now:        time.Now,
	}, nil
}

func invalidToken() error {
	return &todo.AuthenticationError{Message: "token is invalid or expired"}
}

func (t *Tokens) sign(subject, tokenType string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := &Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// IssuePair creates a fresh access and refresh token for user
func (t *Tokens) IssuePair(user *models.User) (*TokenPair, error) {
	subject := strconv.FormatInt(user.ID, 10)

	access, err := t.sign(subject, TokenTypeAccess, t.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := t.sign(subject, TokenTypeRefresh, t.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (t *Tokens) parse(token, tokenType string) (*Claims, error) {
	claims := &Claims{}
	_, err := t.parser.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		logger.Auth().WithError(err).Debug("token rejected")
		return nil, invalidToken()
	}

	if claims.TokenType != tokenType {
		return nil, invalidToken()
	}
	if t.issuer != "" && !claims.VerifyIssuer(t.issuer, true) {
		return nil, invalidToken()
	}
	if _, err := claims.UserID(); err != nil {
		return nil, invalidToken()
	}
	return claims, nil
}

// ParseAccess verifies an access token
func (t *Tokens) ParseAccess(token string) (*Claims, error) {
	return t.parse(token, TokenTypeAccess)
}

// ParseRefresh verifies a refresh token and checks it has not been revoked
func (t *Tokens) ParseRefresh(ctx context.Context, token string) (*Claims, error) {
	claims, err := t.parse(token, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	if t.denylist != nil && claims.ID != "" {
		revoked, err := t.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check token denylist: %w", err)
		}
		if revoked {
			return nil, invalidToken()
		}
	}
	return claims, nil
}

// Refresh exchanges a valid refresh token for a new access token
func (t *Tokens) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := t.ParseRefresh(ctx, refresh)
	if err != nil {
		return "", err
	}
	return t.sign(claims.Subject, TokenTypeAccess, t.accessTTL)
}

// Revoke denylists a refresh token for the rest of its lifetime. Without a
// denylist it only validates the token.
func (t *Tokens) Revoke(ctx context.Context, refresh string) error {
	claims, err := t.ParseRefresh(ctx, refresh)
	if err != nil {
		return err
	}
	if t.denylist == nil {
		return nil
	}

	if err := t.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	logger.Auth().WithField("jti", claims.ID).Info("refresh token revoked")
	return nil
}
