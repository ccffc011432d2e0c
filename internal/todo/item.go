package todo

import (
	"context"
	"errors"
	"fmt"

	"github.com/eleven-am/todoapp/internal/models"
	"github.com/eleven-am/todoapp/internal/orm"
	"github.com/eleven-am/todoapp/internal/store"
)

// ItemInput carries the fields accepted when creating an item
type ItemInput struct {
	Name       *string
	CategoryID *int64
}

// ItemPatch carries the fields of an update; nil fields are left unchanged
type ItemPatch struct {
	Name       *string
	Done       *bool
	CategoryID *int64
}

// Items owns TodoItem entities. Every operation is limited to items whose
// category belongs to the acting user.
type Items struct {
	store store.Transactional
}

func NewItems(s store.Transactional) *Items {
	return &Items{store: s}
}

func itemNotFound() error {
	return &NotFoundError{Resource: "item"}
}

// List returns the items of one of the user's categories, newest first
func (i *Items) List(ctx context.Context, user *models.User, categoryID *int64) ([]models.TodoItem, error) {
	if categoryID == nil {
		return nil, invalid("category_id", "this field is required")
	}
	if _, err := requireCategory(ctx, i.store, user, *categoryID); err != nil {
		return nil, err
	}

	items, err := i.store.ListItems(ctx, user.ID, *categoryID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Create adds an undone item to one of the user's categories
func (i *Items) Create(ctx context.Context, user *models.User, in ItemInput) (*models.TodoItem, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	if in.CategoryID == nil {
		return nil, invalid("category_id", "this field is required")
	}

	item := &models.TodoItem{Name: name, CategoryID: *in.CategoryID}
	err = i.store.WithTransaction(ctx, func(tx store.Repositories) error {
		if _, err := requireCategory(ctx, tx, user, *in.CategoryID); err != nil {
			return err
		}
		if err := tx.CreateItem(ctx, item); err != nil {
			if errors.Is(err, orm.ErrForeignKey) {
				return invalidCategory()
			}
			return fmt.Errorf("create item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (i *Items) Get(ctx context.Context, user *models.User, id int64) (*models.TodoItem, error) {
	return ownedItem(ctx, i.store, user, id)
}

// Update applies the non-nil fields of patch. Nothing is written unless every
// supplied field is valid.
func (i *Items) Update(ctx context.Context, user *models.User, id int64, patch ItemPatch) (*models.TodoItem, error) {
	return i.update(ctx, user, id, patch, false)
}

// Replace is Update with name and category_id required
func (i *Items) Replace(ctx context.Context, user *models.User, id int64, patch ItemPatch) (*models.TodoItem, error) {
	return i.update(ctx, user, id, patch, true)
}

func (i *Items) update(ctx context.Context, user *models.User, id int64, patch ItemPatch, full bool) (*models.TodoItem, error) {
	var result *models.TodoItem
	err := i.store.WithTransaction(ctx, func(tx store.Repositories) error {
		item, err := ownedItem(ctx, tx, user, id)
		if err != nil {
			return err
		}

		var columns []string
		if patch.Name != nil || full {
			name, err := cleanName(patch.Name)
			if err != nil {
				return err
			}
			item.Name = name
			columns = append(columns, models.TodoItemColumns.Name.Name)
		}

		if patch.CategoryID != nil {
			if _, err := requireCategory(ctx, tx, user, *patch.CategoryID); err != nil {
				return err
			}
			item.CategoryID = *patch.CategoryID
			columns = append(columns, models.TodoItemColumns.CategoryID.Name)
		} else if full {
			return invalid("category_id", "this field is required")
		}

		if patch.Done != nil {
			item.Done = *patch.Done
			columns = append(columns, models.TodoItemColumns.Done.Name)
		}

		result = item
		if len(columns) == 0 {
			return nil
		}

		if err := tx.UpdateItem(ctx, user.ID, item, columns...); err != nil {
			switch {
			case errors.Is(err, orm.ErrNotFound):
				return itemNotFound()
			case errors.Is(err, orm.ErrForeignKey):
				return invalidCategory()
			}
			return fmt.Errorf("update item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (i *Items) Delete(ctx context.Context, user *models.User, id int64) error {
	return i.store.WithTransaction(ctx, func(tx store.Repositories) error {
		if _, err := ownedItem(ctx, tx, user, id); err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, user.ID, id); err != nil {
			if errors.Is(err, orm.ErrNotFound) {
				return itemNotFound()
			}
			return fmt.Errorf("delete item: %w", err)
		}
		return nil
	})
}

func invalidCategory() error {
	return invalid("category_id", "category does not exist")
}

// requireCategory resolves a category reference in a request body. Unknown and
// foreign categories are both reported as validation failures.
func requireCategory(ctx context.Context, s store.CategoryStore, user *models.User, id int64) (*models.Category, error) {
	category, err := ownedCategory(ctx, s, user, id)
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return nil, invalidCategory()
		}
		return nil, err
	}
	return category, nil
}

// ownedItem loads an item and checks its parent category against the acting
// user. Missing and foreign items are both NotFoundError.
func ownedItem(ctx context.Context, s store.Repositories, user *models.User, id int64) (*models.TodoItem, error) {
	item, err := s.GetItem(ctx, user.ID, id)
	if err != nil {
		if errors.Is(err, orm.ErrNotFound) {
			return nil, itemNotFound()
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	if _, err := ownedCategory(ctx, s, user, item.CategoryID); err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return nil, itemNotFound()
		}
		return nil, err
	}
	return item, nil
}
