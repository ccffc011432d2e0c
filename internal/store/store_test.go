package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/todoapp/internal/models"
	"github.com/eleven-am/todoapp/internal/orm"
)

var (
	categoryColumns = []string{"id", "name", "user_id"}
	itemColumns     = []string{"id", "category_id", "name", "done", "created_at"}
	userColumns     = []string{"id", "username", "password_hash", "created_at"}
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(sqlx.NewDb(db, "postgres"), nil)
	require.NoError(t, err)
	return s, mock
}

func TestListCategoriesScopedAndOrdered(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, name, user_id FROM categories WHERE (categories.user_id = $1) ORDER BY categories.name ASC, categories.id ASC")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(categoryColumns).
			AddRow(int64(2), "Errands", int64(1)).
			AddRow(int64(1), "Work", int64(1)))

	categories, err := s.ListCategories(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Errands", categories[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCategoryForeignIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE (categories.user_id = $1 AND id = $2) LIMIT 1")).
		WithArgs(int64(2), int64(5)).
		WillReturnRows(sqlmock.NewRows(categoryColumns))

	_, err := s.GetCategory(context.Background(), 2, 5)
	assert.ErrorIs(t, err, orm.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCategoryDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO categories (name,user_id) VALUES ($1,$2) RETURNING id, name, user_id")).
		WithArgs("Work", int64(1)).
		WillReturnError(&pq.Error{
			Code:       "23505",
			Message:    `duplicate key value violates unique constraint "uk_categories_user_name"`,
			Constraint: "uk_categories_user_name",
		})

	err := s.CreateCategory(context.Background(), &models.Category{Name: "Work", UserID: 1})
	assert.ErrorIs(t, err, orm.ErrDuplicateKey)
	assert.Equal(t, "uk_categories_user_name", orm.GetConstraintName(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenameCategory(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE categories SET name = $1 WHERE (categories.user_id = $2 AND id = $3)")).
		WithArgs("Home", int64(1), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.RenameCategory(context.Background(), 1, 4, "Home"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCategoryNotOwned(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM categories WHERE (categories.user_id = $1 AND id = $2)")).
		WithArgs(int64(3), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteCategory(context.Background(), 3, 4)
	assert.ErrorIs(t, err, orm.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListItemsNewestFirst(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, category_id, name, done, created_at FROM todo_items "+
			"WHERE (todo_items.category_id IN (SELECT id FROM categories WHERE user_id = $1) AND todo_items.category_id = $2) "+
			"ORDER BY todo_items.created_at DESC, todo_items.id DESC")).
		WithArgs(int64(1), int64(7)).
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow(int64(9), int64(7), "later", false, now).
			AddRow(int64(8), int64(7), "earlier", true, now.Add(-time.Minute)))

	items, err := s.ListItems(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "later", items[0].Name)
	assert.True(t, items[1].Done)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateItemUsesDatabaseDefaults(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO todo_items (category_id,name) VALUES ($1,$2) RETURNING id, category_id, name, done, created_at")).
		WithArgs(int64(7), "Buy milk").
		WillReturnRows(sqlmock.NewRows(itemColumns).AddRow(int64(1), int64(7), "Buy milk", false, now))

	item := &models.TodoItem{CategoryID: 7, Name: "Buy milk"}
	require.NoError(t, s.CreateItem(context.Background(), item))
	assert.Equal(t, int64(1), item.ID)
	assert.False(t, item.Done)
	assert.Equal(t, now, item.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateItemSingleStatement(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE todo_items SET category_id = $1, done = $2, name = $3 "+
			"WHERE (todo_items.category_id IN (SELECT id FROM categories WHERE user_id = $4) AND id = $5)")).
		WithArgs(int64(8), true, "Walk dog", int64(1), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	item := &models.TodoItem{ID: 3, CategoryID: 8, Name: "Walk dog", Done: true}
	require.NoError(t, s.UpdateItem(context.Background(), 1, item))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteItemForeignIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM todo_items WHERE (todo_items.category_id IN (SELECT id FROM categories WHERE user_id = $1) AND id = $2)")).
		WithArgs(int64(2), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.DeleteItem(context.Background(), 2, 3), orm.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByUsername(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password_hash, created_at FROM users WHERE (users.username = $1) LIMIT 1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(1), "alice", "hash", time.Now()))

	user, err := s.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "hash", user.PasswordHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsernameTaken(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE (users.username = $1 AND users.id <> $2)")).
		WithArgs("alice", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE (users.username = $1 AND users.id <> $2)")).
		WithArgs("alice", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	taken, err := s.UsernameTaken(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = s.UsernameTaken(context.Background(), "alice", 1)
	require.NoError(t, err)
	assert.False(t, taken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction(t *testing.T) {
	t.Run("commits", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, name, user_id FROM categories").
			WillReturnRows(sqlmock.NewRows(categoryColumns))
		mock.ExpectQuery("INSERT INTO categories").
			WillReturnRows(sqlmock.NewRows(categoryColumns).AddRow(int64(1), "Work", int64(1)))
		mock.ExpectCommit()

		err := s.WithTransaction(context.Background(), func(tx Repositories) error {
			_, err := tx.FindCategoryByName(context.Background(), 1, "Work")
			require.ErrorIs(t, err, orm.ErrNotFound)
			return tx.CreateCategory(context.Background(), &models.Category{Name: "Work", UserID: 1})
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and nests", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := s.WithTransaction(context.Background(), func(tx Repositories) error {
			inner, ok := tx.(*Store)
			require.True(t, ok)
			return inner.WithTransaction(context.Background(), func(Repositories) error {
				return boom
			})
		})
		assert.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
