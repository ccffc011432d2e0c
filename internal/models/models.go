package models

import (
	"time"

	"github.com/eleven-am/todoapp/internal/orm"
)

// User is an account that owns categories
type User struct {
	_ struct{} `dbdef:"table:users;unique:uk_users_username,username"`

	ID           int64     `db:"id" json:"-" dbdef:"type:bigserial;primary_key"`
	Username     string    `db:"username" json:"username" dbdef:"type:varchar(150);not_null"`
	PasswordHash string    `db:"password_hash" json:"-" dbdef:"type:varchar(255);not_null"`
	CreatedAt    time.Time `db:"created_at" json:"-" dbdef:"type:timestamptz;not_null;default:now()"`
}

// Category groups to-do items for a single user
type Category struct {
	_ struct{} `dbdef:"table:categories;index:idx_categories_user,user_id;unique:uk_categories_user_name,user_id,name"`

	ID     int64  `db:"id" json:"id" dbdef:"type:bigserial;primary_key"`
	Name   string `db:"name" json:"name" dbdef:"type:varchar(255);not_null"`
	UserID int64  `db:"user_id" json:"-" dbdef:"type:bigint;not_null;foreign_key:users.id;on_delete:CASCADE"`
}

// TodoItem is a single task inside a category
type TodoItem struct {
	_ struct{} `dbdef:"table:todo_items;index:idx_todo_items_category,category_id"`

	ID         int64     `db:"id" json:"id" dbdef:"type:bigserial;primary_key"`
	CategoryID int64     `db:"category_id" json:"category_id" dbdef:"type:bigint;not_null;foreign_key:categories.id;on_delete:CASCADE"`
	Name       string    `db:"name" json:"name" dbdef:"type:varchar(255);not_null"`
	Done       bool      `db:"done" json:"done" dbdef:"type:boolean;not_null;default:false"`
	CreatedAt  time.Time `db:"created_at" json:"date_created" dbdef:"type:timestamptz;not_null;default:now()"`
}

var UserColumns = struct {
	ID        orm.Column[int64]
	Username  orm.Column[string]
	CreatedAt orm.Column[time.Time]
}{
	ID:        orm.Column[int64]{Name: "id", Table: "users"},
	Username:  orm.Column[string]{Name: "username", Table: "users"},
	CreatedAt: orm.Column[time.Time]{Name: "created_at", Table: "users"},
}

var CategoryColumns = struct {
	ID     orm.Column[int64]
	Name   orm.Column[string]
	UserID orm.Column[int64]
}{
	ID:     orm.Column[int64]{Name: "id", Table: "categories"},
	Name:   orm.Column[string]{Name: "name", Table: "categories"},
	UserID: orm.Column[int64]{Name: "user_id", Table: "categories"},
}

var TodoItemColumns = struct {
	ID         orm.Column[int64]
	CategoryID orm.Column[int64]
	Name       orm.Column[string]
	Done       orm.Column[bool]
	CreatedAt  orm.Column[time.Time]
}{
	ID:         orm.Column[int64]{Name: "id", Table: "todo_items"},
	CategoryID: orm.Column[int64]{Name: "category_id", Table: "todo_items"},
	Name:       orm.Column[string]{Name: "name", Table: "todo_items"},
	Done:       orm.Column[bool]{Name: "done", Table: "todo_items"},
	CreatedAt:  orm.Column[time.Time]{Name: "created_at", Table: "todo_items"},
}
