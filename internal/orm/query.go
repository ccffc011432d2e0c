package orm

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/Masterminds/squirrel"
)

// Query provides a fluent interface for building database queries
type Query[T any] struct {
	repo    *Repository[T]
	builder squirrel.SelectBuilder
	err     error
	ctx     context.Context

	limit       *uint64
	orderBy     []string
	whereClause squirrel.And
}

// Query starts a query and runs the repository's authorization functions on it
func (r *Repository[T]) Query(ctx context.Context) *Query[T] {
	q := &Query[T]{
		repo: r,
		builder: squirrel.Select(r.selectColumns...).
			From(r.metadata.TableName).
			PlaceholderFormat(squirrel.Dollar),
		ctx:         ctx,
		whereClause: squirrel.And{},
	}

	for _, authorize := range r.authorizeFuncs {
		q = authorize(ctx, q)
	}

	return q
}

// Where adds a type-safe condition
func (q *Query[T]) Where(condition Condition) *Query[T] {
	if q.err != nil {
		return q
	}
	q.whereClause = append(q.whereClause, condition.ToSqlizer())
	return q
}

func (q *Query[T]) OrderBy(expressions ...string) *Query[T] {
	if q.err != nil {
		return q
	}
	q.orderBy = append(q.orderBy, expressions...)
	return q
}

func (q *Query[T]) Limit(limit uint64) *Query[T] {
	if q.err != nil {
		return q
	}
	q.limit = &limit
	return q
}

func (q *Query[T]) selectBuilder() squirrel.SelectBuilder {
	builder := q.builder

	if len(q.whereClause) > 0 {
		builder = builder.Where(q.whereClause)
	}

	for _, orderBy := range q.orderBy {
		builder = builder.OrderBy(orderBy)
	}

	if q.limit != nil {
		builder = builder.Limit(*q.limit)
	}

	return builder
}

// Find executes the query and returns all matching records
func (q *Query[T]) Find() ([]T, error) {
	if q.err != nil {
		return nil, q.err
	}

	table := q.repo.metadata.TableName
	records := make([]T, 0)
	err := q.repo.executeQueryMiddleware(OpQuery, q.ctx, nil, q.selectBuilder(), func(mc *MiddlewareContext) error {
		sqlQuery, args, err := mc.QueryBuilder.(squirrel.SelectBuilder).ToSql()
		if err != nil {
			return &Error{Op: "find", Table: table, Err: fmt.Errorf("failed to build query: %w", err)}
		}
		mc.Query, mc.Args = sqlQuery, args

		if err := q.repo.db.SelectContext(q.ctx, &records, sqlQuery, args...); err != nil {
			return ParsePostgreSQLError(err, "find", table)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// First returns the first matching record or ErrNotFound
func (q *Query[T]) First() (*T, error) {
	q.Limit(1)
	records, err := q.Find()
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, &Error{
			Op:    "first",
			Table: q.repo.metadata.TableName,
			Err:   ErrNotFound,
		}
	}

	return &records[0], nil
}

func (q *Query[T]) Count() (int64, error) {
	if q.err != nil {
		return 0, q.err
	}

	table := q.repo.metadata.TableName
	countBuilder := squirrel.Select("COUNT(*)").
		From(table).
		PlaceholderFormat(squirrel.Dollar)

	if len(q.whereClause) > 0 {
		countBuilder = countBuilder.Where(q.whereClause)
	}

	var count int64
	err := q.repo.executeQueryMiddleware(OpQuery, q.ctx, nil, countBuilder, func(mc *MiddlewareContext) error {
		sqlQuery, args, err := mc.QueryBuilder.(squirrel.SelectBuilder).ToSql()
		if err != nil {
			return &Error{Op: "count", Table: table, Err: fmt.Errorf("failed to build count query: %w", err)}
		}
		mc.Query, mc.Args = sqlQuery, args

		if err := q.repo.db.GetContext(q.ctx, &count, sqlQuery, args...); err != nil {
			return ParsePostgreSQLError(err, "count", table)
		}
		return nil
	})

	return count, err
}

func (q *Query[T]) Exists() (bool, error) {
	count, err := q.Count()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete removes every row matching the query's conditions
func (q *Query[T]) Delete() (int64, error) {
	if q.err != nil {
		return 0, q.err
	}

	table := q.repo.metadata.TableName
	deleteBuilder := squirrel.Delete(table).
		PlaceholderFormat(squirrel.Dollar)

	if len(q.whereClause) > 0 {
		deleteBuilder = deleteBuilder.Where(q.whereClause)
	}

	var rowsAffected int64
	err := q.repo.executeQueryMiddleware(OpDelete, q.ctx, nil, deleteBuilder, func(mc *MiddlewareContext) error {
		sqlQuery, args, err := mc.QueryBuilder.(squirrel.DeleteBuilder).ToSql()
		if err != nil {
			return &Error{Op: "delete", Table: table, Err: fmt.Errorf("failed to build delete query: %w", err)}
		}
		mc.Query, mc.Args = sqlQuery, args

		rowsAffected, err = q.exec(sqlQuery, args, "delete")
		return err
	})

	return rowsAffected, err
}

// Update applies the column/value pairs to every row matching the query.
// Columns are written in sorted order so the generated SQL is stable.
func (q *Query[T]) Update(updates map[string]interface{}) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}

	table := q.repo.metadata.TableName
	if len(updates) == 0 {
		return 0, &Error{Op: "update", Table: table, Err: fmt.Errorf("no updates provided")}
	}

	columns := make([]string, 0, len(updates))
	for column := range updates {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	updateBuilder := squirrel.Update(table).
		PlaceholderFormat(squirrel.Dollar)

	for _, column := range columns {
		updateBuilder = updateBuilder.Set(column, updates[column])
	}

	if len(q.whereClause) > 0 {
		updateBuilder = updateBuilder.Where(q.whereClause)
	}

	var rowsAffected int64
	err := q.repo.executeQueryMiddleware(OpUpdate, q.ctx, updates, updateBuilder, func(mc *MiddlewareContext) error {
		sqlQuery, args, err := mc.QueryBuilder.(squirrel.UpdateBuilder).ToSql()
		if err != nil {
			return &Error{Op: "update", Table: table, Err: fmt.Errorf("failed to build update query: %w", err)}
		}
		mc.Query, mc.Args = sqlQuery, args

		rowsAffected, err = q.exec(sqlQuery, args, "update")
		return err
	})

	return rowsAffected, err
}

func (q *Query[T]) exec(sqlQuery string, args []interface{}, op string) (int64, error) {
	table := q.repo.metadata.TableName

	var result sql.Result
	result, err := q.repo.db.ExecContext(q.ctx, sqlQuery, args...)
	if err != nil {
		return 0, ParsePostgreSQLError(err, op, table)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, &Error{Op: op, Table: table, Err: fmt.Errorf("failed to get rows affected: %w", err)}
	}
	return rowsAffected, nil
}
