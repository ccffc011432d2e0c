package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/eleven-am/todoapp/internal/models"
	"github.com/eleven-am/todoapp/internal/orm"
)

// CategoryStore persists categories. Every lookup is scoped to ownerID and
// reports orm.ErrNotFound for rows that exist but belong to someone else.
type CategoryStore interface {
	ListCategories(ctx context.Context, ownerID int64) ([]models.Category, error)
	GetCategory(ctx context.Context, ownerID, id int64) (*models.Category, error)
	FindCategoryByName(ctx context.Context, ownerID int64, name string) (*models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
	RenameCategory(ctx context.Context, ownerID, id int64, name string) error
	DeleteCategory(ctx context.Context, ownerID, id int64) error
}

// ItemStore persists to-do items, scoped through the owning category
type ItemStore interface {
	ListItems(ctx context.Context, ownerID, categoryID int64) ([]models.TodoItem, error)
	GetItem(ctx context.Context, ownerID, id int64) (*models.TodoItem, error)
	CreateItem(ctx context.Context, item *models.TodoItem) error
	UpdateItem(ctx context.Context, ownerID int64, item *models.TodoItem, columns ...string) error
	DeleteItem(ctx context.Context, ownerID, id int64) error
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameTaken(ctx context.Context, username string, exceptID int64) (bool, error)
	UpdateUser(ctx context.Context, user *models.User, columns ...string) error
}

type Repositories interface {
	CategoryStore
	ItemStore
	UserStore
}

// Transactional is a Repositories that can run a unit of work atomically
type Transactional interface {
	Repositories
	WithTransaction(ctx context.Context, fn func(Repositories) error) error
}

// Store is the PostgreSQL implementation of Transactional
type Store struct {
	db *sqlx.DB
	tm *orm.TransactionManager

	users      *orm.Repository[models.User]
	categories *orm.Repository[models.Category]
	items      *orm.Repository[models.TodoItem]
}

var _ Transactional = (*Store)(nil)

// New builds the repositories over db. Queries are logged through log at debug level.
func New(db *sqlx.DB, log logrus.FieldLogger) (*Store, error) {
	users, err := orm.NewRepository[models.User](db, nil)
	if err != nil {
		return nil, fmt.Errorf("users repository: %w", err)
	}
	categories, err := orm.NewRepository[models.Category](db, nil)
	if err != nil {
		return nil, fmt.Errorf("categories repository: %w", err)
	}
	items, err := orm.NewRepository[models.TodoItem](db, nil)
	if err != nil {
		return nil, fmt.Errorf("todo_items repository: %w", err)
	}

	if log != nil {
		queryLog := orm.LoggingMiddleware(log)
		users.AddMiddleware(queryLog)
		categories.AddMiddleware(queryLog)
		items.AddMiddleware(queryLog)
	}

	return &Store{
		db:         db,
		tm:         orm.NewTransactionManager(db),
		users:      users,
		categories: categories,
		items:      items,
	}, nil
}

func (s *Store) withExecutor(executor orm.DBExecutor) *Store {
	return &Store{
		db:         s.db,
		tm:         s.tm,
		users:      s.users.WithExecutor(executor),
		categories: s.categories.WithExecutor(executor),
		items:      s.items.WithExecutor(executor),
	}
}

// WithTransaction runs fn against a store bound to a single transaction.
// Nested calls reuse the outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(Repositories) error) error {
	if s.categories.IsTransaction() {
		return fn(s)
	}

	return s.tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		return fn(s.withExecutor(tx))
	})
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
