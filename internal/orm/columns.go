package orm

import (
	"fmt"

	"github.com/Masterminds/squirrel"
)

// Column is a typed reference to a table column, used to build conditions
// and ORDER BY terms without string literals.
type Column[T any] struct {
	Name  string
	Table string
}

func (c Column[T]) String() string {
	if c.Table != "" {
		return fmt.Sprintf("%s.%s", c.Table, c.Name)
	}
	return c.Name
}

func (c Column[T]) Eq(value T) Condition {
	return Condition{squirrel.Eq{c.String(): value}}
}

func (c Column[T]) NotEq(value T) Condition {
	return Condition{squirrel.NotEq{c.String(): value}}
}

// InSubquery restricts the column to the rows produced by a sub-select
func (c Column[T]) InSubquery(query string, args ...interface{}) Condition {
	return Condition{squirrel.Expr(c.String()+" IN ("+query+")", args...)}
}

func (c Column[T]) Asc() string {
	return c.String() + " ASC"
}

func (c Column[T]) Desc() string {
	return c.String() + " DESC"
}

// Condition is a WHERE fragment; placeholders are '?' and rebound to '$n'
type Condition struct {
	condition squirrel.Sqlizer
}

func (c Condition) ToSqlizer() squirrel.Sqlizer {
	return c.condition
}
