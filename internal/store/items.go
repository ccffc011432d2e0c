package store

import (
	"context"

	"github.com/eleven-am/todoapp/internal/models"
	"github.com/eleven-am/todoapp/internal/orm"
)

const ownedCategoryIDs = "SELECT id FROM categories WHERE user_id = ?"

// ownedItems limits item queries to categories belonging to ownerID
func (s *Store) ownedItems(ownerID int64) *orm.Repository[models.TodoItem] {
	return s.items.Authorize(func(ctx context.Context, q *orm.Query[models.TodoItem]) *orm.Query[models.TodoItem] {
		return q.Where(models.TodoItemColumns.CategoryID.InSubquery(ownedCategoryIDs, ownerID))
	})
}

// ListItems returns the newest items first
func (s *Store) ListItems(ctx context.Context, ownerID, categoryID int64) ([]models.TodoItem, error) {
	return s.ownedItems(ownerID).Query(ctx).
		Where(models.TodoItemColumns.CategoryID.Eq(categoryID)).
		OrderBy(models.TodoItemColumns.CreatedAt.Desc(), models.TodoItemColumns.ID.Desc()).
		Find()
}

func (s *Store) GetItem(ctx context.Context, ownerID, id int64) (*models.TodoItem, error) {
	return s.ownedItems(ownerID).FindByID(ctx, id)
}

func (s *Store) CreateItem(ctx context.Context, item *models.TodoItem) error {
	return s.items.Create(ctx, item)
}

// UpdateItem writes the given columns of item in one statement. created_at is
// never written.
func (s *Store) UpdateItem(ctx context.Context, ownerID int64, item *models.TodoItem, columns ...string) error {
	if len(columns) == 0 {
		columns = []string{
			models.TodoItemColumns.Name.Name,
			models.TodoItemColumns.Done.Name,
			models.TodoItemColumns.CategoryID.Name,
		}
	}
	return s.ownedItems(ownerID).Update(ctx, item, columns...)
}

func (s *Store) DeleteItem(ctx context.Context, ownerID, id int64) error {
	return s.ownedItems(ownerID).Delete(ctx, id)
}
