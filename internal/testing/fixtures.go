package testing

import (
	"context"
	"testing"

	"github.com/eleven-am/todoapp/internal/models"
)

// Ptr returns a pointer to v, for optional request fields
func Ptr[T any](v T) *T {
	return &v
}

// SeedUser inserts a user with a placeholder password hash
func SeedUser(t *testing.T, s *MemoryStore, username string) *models.User {
	t.Helper()

	user := &models.User{Username: username, PasswordHash: "x"}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

// SeedCategory inserts a category for owner
func SeedCategory(t *testing.T, s *MemoryStore, owner *models.User, name string) *models.Category {
	t.Helper()

	category := &models.Category{Name: name, UserID: owner.ID}
	if err := s.CreateCategory(context.Background(), category); err != nil {
		t.Fatalf("seed category %s: %v", name, err)
	}
	return category
}
