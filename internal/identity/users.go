package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/eleven-am/todoapp/internal/logger"
	"github.com/eleven-am/todoapp/internal/models"
	"github.com/eleven-am/todoapp/internal/orm"
	"github.com/eleven-am/todoapp/internal/store"
	"github.com/eleven-am/todoapp/internal/todo"
)

const (
	MaxUsernameLength = 150
	MinPasswordLength = 5
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

// ProfilePatch carries the /me fields; nil fields are left unchanged
type ProfilePatch struct {
	Username *string
	Password *string
}

// Users is the identity store: accounts, password hashing and credential checks
type Users struct {
	store store.UserStore
	cost  int
}

// NewUsers creates the identity store. cost 0 selects bcrypt.DefaultCost.
func NewUsers(s store.UserStore, cost int) *Users {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Users{store: s, cost: cost}
}

func invalidCredentials() error {
	return &todo.AuthenticationError{Message: "no active account found with the given credentials"}
}

func duplicateUsername() error {
	return &todo.ConflictError{Field: "username", Message: "a user with that username already exists"}
}

func cleanUsername(username *string) (string, error) {
	if username == nil {
		return "", &todo.ValidationError{Field: "username", Message: "this field is required"}
	}
	trimmed := strings.TrimSpace(*username)
	switch {
	case trimmed == "":
		return "", &todo.ValidationError{Field: "username", Message: "this field may not be blank"}
	case strings.ContainsRune(trimmed, 0):
		return "", &todo.ValidationError{Field: "username", Message: todo.NullCharacterMessage}
	case utf8.RuneCountInString(trimmed) > MaxUsernameLength:
		return "", &todo.ValidationError{Field: "username", Message: "ensure this field has no more than 150 characters"}
	case !usernamePattern.MatchString(trimmed):
		return "", &todo.ValidationError{Field: "username", Message: "enter a valid username; only letters, numbers and @/./+/-/_ are allowed"}
	}
	return trimmed, nil
}

// ensureUsernameFree fails with ConflictError when an account other than
// exceptID holds name. The uk_users_username constraint covers races.
func (u *Users) ensureUsernameFree(ctx context.Context, name string, exceptID int64) error {
	taken, err := u.store.UsernameTaken(ctx, name, exceptID)
	if err != nil {
		return fmt.Errorf("look up username: %w", err)
	}
	if taken {
		return duplicateUsername()
	}
	return nil
}

// hashPassword validates the raw password (never trimmed) and hashes it
func (u *Users) hashPassword(password *string) (string, error) {
	if password == nil || *password == "" {
		return "", &todo.ValidationError{Field: "password", Message: "this field is required"}
	}
	if strings.ContainsRune(*password, 0) {
		return "", &todo.ValidationError{Field: "password", Message: todo.NullCharacterMessage}
	}
	if utf8.RuneCountInString(*password) < MinPasswordLength {
		return "", &todo.ValidationError{Field: "password", Message: "ensure this field has at least 5 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), u.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", &todo.ValidationError{Field: "password", Message: "ensure this field has no more than 72 bytes"}
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CreateUser registers a new account. A taken username is a ConflictError.
func (u *Users) CreateUser(ctx context.Context, username, password *string) (*models.User, error) {
	name, err := cleanUsername(username)
	if err != nil {
		return nil, err
	}
	if err := u.ensureUsernameFree(ctx, name, 0); err != nil {
		return nil, err
	}
	hash, err := u.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: name, PasswordHash: hash}
	if err := u.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, orm.ErrDuplicateKey) {
			return nil, duplicateUsername()
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.Auth().WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

// VerifyCredentials returns the user when password matches. Unknown users
// and wrong passwords produce the same AuthenticationError.
func (u *Users) VerifyCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := u.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, orm.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Auth().WithField("user_id", user.ID).Debug("password mismatch")
		return nil, invalidCredentials()
	}
	return user, nil
}

func (u *Users) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := u.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, orm.ErrNotFound) {
			return nil, &todo.NotFoundError{Resource: "user"}
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the username and/or password of user
func (u *Users) UpdateProfile(ctx context.Context, user *models.User, patch ProfilePatch) (*models.User, error) {
	return u.updateProfile(ctx, user, patch, false)
}

// ReplaceProfile is UpdateProfile with both fields required
func (u *Users) ReplaceProfile(ctx context.Context, user *models.User, patch ProfilePatch) (*models.User, error) {
	return u.updateProfile(ctx, user, patch, true)
}

func (u *Users) updateProfile(ctx context.Context, user *models.User, patch ProfilePatch, full bool) (*models.User, error) {
	updated := *user
	var columns []string

	if patch.Username != nil || full {
		name, err := cleanUsername(patch.Username)
		if err != nil {
			return nil, err
		}
		if err := u.ensureUsernameFree(ctx, name, user.ID); err != nil {
			return nil, err
		}
		updated.Username = name
		columns = append(columns, models.UserColumns.Username.Name)
	}
	if patch.Password != nil || full {
		hash, err := u.hashPassword(patch.Password)
		if err != nil {
			return nil, err
		}
		updated.PasswordHash = hash
		columns = append(columns, "password_hash")
	}

	if len(columns) == 0 {
		return user, nil
	}

	if err := u.store.UpdateUser(ctx, &updated, columns...); err != nil {
		switch {
		case errors.Is(err, orm.ErrDuplicateKey):
			return nil, duplicateUsername()
		case errors.Is(err, orm.ErrNotFound):
			return nil, &todo.NotFoundError{Resource: "user"}
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &updated, nil
}
