package store

import (
	"context"

	"github.com/eleven-am/todoapp/internal/models"
	"github.com/eleven-am/todoapp/internal/orm"
)

func (s *Store) ownedCategories(ownerID int64) *orm.Repository[models.Category] {
	return s.categories.Authorize(func(ctx context.Context, q *orm.Query[models.Category]) *orm.Query[models.Category] {
		return q.Where(models.CategoryColumns.UserID.Eq(ownerID))
	})
}

func (s *Store) ListCategories(ctx context.Context, ownerID int64) ([]models.Category, error) {
	return s.ownedCategories(ownerID).Query(ctx).
		OrderBy(models.CategoryColumns.Name.Asc(), models.CategoryColumns.ID.Asc()).
		Find()
}

func (s *Store) GetCategory(ctx context.Context, ownerID, id int64) (*models.Category, error) {
	return s.ownedCategories(ownerID).FindByID(ctx, id)
}

func (s *Store) FindCategoryByName(ctx context.Context, ownerID int64, name string) (*models.Category, error) {
	return s.ownedCategories(ownerID).Query(ctx).
		Where(models.CategoryColumns.Name.Eq(name)).
		First()
}

// CreateCategory inserts category; a name clash surfaces as orm.ErrDuplicateKey
func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	return s.categories.Create(ctx, category)
}

func (s *Store) RenameCategory(ctx context.Context, ownerID, id int64, name string) error {
	category := &models.Category{ID: id, Name: name, UserID: ownerID}
	return s.ownedCategories(ownerID).Update(ctx, category, models.CategoryColumns.Name.Name)
}

// DeleteCategory removes the category; its items go with it via ON DELETE CASCADE
func (s *Store) DeleteCategory(ctx context.Context, ownerID, id int64) error {
	return s.ownedCategories(ownerID).Delete(ctx, id)
}
