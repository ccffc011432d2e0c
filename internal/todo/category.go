package todo

import (
	"context"
	"errors"
	"fmt"

	"github.com/eleven-am/todoapp/internal/models"
	"github.com/eleven-am/todoapp/internal/orm"
	"github.com/eleven-am/todoapp/internal/store"
)

// Categories owns Category entities and per-user name uniqueness
type Categories struct {
	store store.Transactional
}

func NewCategories(s store.Transactional) *Categories {
	return &Categories{store: s}
}

func duplicateCategoryName() error {
	return &ConflictError{Field: "name", Message: "a category with this name already exists"}
}

// List returns the user's categories ordered by name
func (c *Categories) List(ctx context.Context, user *models.User) ([]models.Category, error) {
	categories, err := c.store.ListCategories(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (c *Categories) Get(ctx context.Context, user *models.User, id int64) (*models.Category, error) {
	return ownedCategory(ctx, c.store, user, id)
}

// Create adds a category named by the trimmed name. The unique constraint
// uk_categories_user_name backs up the lookup when two requests race.
func (c *Categories) Create(ctx context.Context, user *models.User, name *string) (*models.Category, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	category := &models.Category{Name: cleaned, UserID: user.ID}
	err = c.store.WithTransaction(ctx, func(tx store.Repositories) error {
		if err := ensureNameFree(ctx, tx, user, cleaned, 0); err != nil {
			return err
		}
		if err := tx.CreateCategory(ctx, category); err != nil {
			if errors.Is(err, orm.ErrDuplicateKey) {
				return duplicateCategoryName()
			}
			return fmt.Errorf("create category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// Update renames the category when name is given. Renaming to the current
// name succeeds without a write.
func (c *Categories) Update(ctx context.Context, user *models.User, id int64, name *string) (*models.Category, error) {
	return c.update(ctx, user, id, name, false)
}

// Replace is Update with name required
func (c *Categories) Replace(ctx context.Context, user *models.User, id int64, name *string) (*models.Category, error) {
	return c.update(ctx, user, id, name, true)
}

func (c *Categories) update(ctx context.Context, user *models.User, id int64, name *string, requireName bool) (*models.Category, error) {
	var result *models.Category
	err := c.store.WithTransaction(ctx, func(tx store.Repositories) error {
		category, err := ownedCategory(ctx, tx, user, id)
		if err != nil {
			return err
		}
		result = category

		if name == nil && !requireName {
			return nil
		}
		cleaned, err := cleanName(name)
		if err != nil {
			return err
		}
		if cleaned == category.Name {
			return nil
		}

		if err := ensureNameFree(ctx, tx, user, cleaned, category.ID); err != nil {
			return err
		}
		if err := tx.RenameCategory(ctx, user.ID, category.ID, cleaned); err != nil {
			switch {
			case errors.Is(err, orm.ErrDuplicateKey):
				return duplicateCategoryName()
			case errors.Is(err, orm.ErrNotFound):
				return &NotFoundError{Resource: "category"}
			}
			return fmt.Errorf("rename category: %w", err)
		}
		category.Name = cleaned
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the category and, through the foreign key cascade, its items
func (c *Categories) Delete(ctx context.Context, user *models.User, id int64) error {
	if err := c.store.DeleteCategory(ctx, user.ID, id); err != nil {
		if errors.Is(err, orm.ErrNotFound) {
			return &NotFoundError{Resource: "category"}
		}
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// ensureNameFree fails with ConflictError when another category of user
// (other than exceptID) already holds name.
func ensureNameFree(ctx context.Context, s store.CategoryStore, user *models.User, name string, exceptID int64) error {
	existing, err := s.FindCategoryByName(ctx, user.ID, name)
	switch {
	case errors.Is(err, orm.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("look up category name: %w", err)
	case existing.ID != exceptID:
		return duplicateCategoryName()
	}
	return nil
}

// ownedCategory loads a category visible to user or returns NotFoundError
func ownedCategory(ctx context.Context, s store.CategoryStore, user *models.User, id int64) (*models.Category, error) {
	category, err := s.GetCategory(ctx, user.ID, id)
	if err != nil {
		if errors.Is(err, orm.ErrNotFound) {
			return nil, &NotFoundError{Resource: "category"}
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	if !UserOwnsCategory(user, category) {
		return nil, &NotFoundError{Resource: "category"}
	}
	return category, nil
}
