package store

import (
	"context"

	"github.com/eleven-am/todoapp/internal/models"
)

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.users.Create(ctx, user)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.users.Query(ctx).
		Where(models.UserColumns.Username.Eq(username)).
		First()
}

// UsernameTaken reports whether an account other than exceptID uses username
func (s *Store) UsernameTaken(ctx context.Context, username string, exceptID int64) (bool, error) {
	return s.users.Query(ctx).
		Where(models.UserColumns.Username.Eq(username)).
		Where(models.UserColumns.ID.NotEq(exceptID)).
		Exists()
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User, columns ...string) error {
	return s.users.Update(ctx, user, columns...)
}
