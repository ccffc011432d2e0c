package orm

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/Masterminds/squirrel"
)

// AuthorizeFunc narrows every query a repository builds
type AuthorizeFunc[T any] func(ctx context.Context, query *Query[T]) *Query[T]

// Repository provides typed CRUD over a single table
type Repository[T any] struct {
	db       DBExecutor
	metadata *ModelMetadata

	selectColumns []string
	reverseMap    map[string]string // db column -> struct field

	middlewareManager *middlewareManager
	authorizeFuncs    []AuthorizeFunc[T]
}

// NewRepository creates a repository for T using the given metadata
func NewRepository[T any](db DBExecutor, metadata *ModelMetadata) (*Repository[T], error) {
	if metadata == nil {
		parsed, err := ParseModel[T]()
		if err != nil {
			return nil, err
		}
		metadata = parsed
	}
	if metadata.TableName == "" {
		return nil, fmt.Errorf("%w: missing table name", ErrInvalidStruct)
	}
	if len(metadata.PrimaryKeys) == 0 {
		return nil, ErrNoPrimaryKey
	}

	reverseMap := make(map[string]string, len(metadata.Columns))
	for fieldName, col := range metadata.Columns {
		reverseMap[col.DBName] = fieldName
	}

	return &Repository[T]{
		db:                db,
		metadata:          metadata,
		selectColumns:     metadata.ColumnNames(),
		reverseMap:        reverseMap,
		middlewareManager: newMiddlewareManager(),
	}, nil
}

// WithExecutor returns a copy of the repository bound to another executor,
// typically a *sqlx.Tx. Middleware and authorization carry over.
func (r *Repository[T]) WithExecutor(db DBExecutor) *Repository[T] {
	clone := *r
	clone.db = db
	return &clone
}

// Authorize returns a new repository whose queries pass through fn.
// The receiver is left unchanged.
func (r *Repository[T]) Authorize(fn AuthorizeFunc[T]) *Repository[T] {
	clone := *r
	clone.authorizeFuncs = make([]AuthorizeFunc[T], 0, len(r.authorizeFuncs)+1)
	clone.authorizeFuncs = append(clone.authorizeFuncs, r.authorizeFuncs...)
	clone.authorizeFuncs = append(clone.authorizeFuncs, fn)
	return &clone
}

// FindByID loads one record by primary key, honouring authorization
func (r *Repository[T]) FindByID(ctx context.Context, id interface{}) (*T, error) {
	pk, err := r.singlePrimaryKey("find")
	if err != nil {
		return nil, err
	}
	return r.Query(ctx).Where(Condition{squirrel.Eq{pk: id}}).First()
}

// Create inserts the record and refreshes it from the RETURNING row so that
// database defaults (ids, timestamps) are populated.
func (r *Repository[T]) Create(ctx context.Context, record *T) error {
	if record == nil {
		return &Error{Op: "create", Table: r.metadata.TableName, Err: fmt.Errorf("record cannot be nil")}
	}

	recordValue := reflect.ValueOf(record).Elem()
	columns := make([]string, 0, len(r.selectColumns))
	values := make([]interface{}, 0, len(r.selectColumns))

	for _, column := range r.selectColumns {
		meta := r.metadata.Columns[r.reverseMap[column]]
		fieldValue := recordValue.FieldByName(meta.FieldName)
		if !fieldValue.IsValid() {
			continue
		}
		if meta.HasDefault && fieldValue.IsZero() {
			continue
		}
		columns = append(columns, column)
		values = append(values, fieldValue.Interface())
	}

	builder := squirrel.Insert(r.metadata.TableName).
		Columns(columns...).
		Values(values...).
		Suffix("RETURNING " + strings.Join(r.selectColumns, ", ")).
		PlaceholderFormat(squirrel.Dollar)

	return r.executeQueryMiddleware(OpCreate, ctx, record, builder, func(mc *MiddlewareContext) error {
		sqlQuery, args, err := mc.QueryBuilder.(squirrel.InsertBuilder).ToSql()
		if err != nil {
			return &Error{Op: "create", Table: r.metadata.TableName, Err: fmt.Errorf("failed to build insert query: %w", err)}
		}
		mc.Query, mc.Args = sqlQuery, args

		if err := r.db.GetContext(ctx, record, sqlQuery, args...); err != nil {
			return ParsePostgreSQLError(err, "create", r.metadata.TableName)
		}
		return nil
	})
}

// Update writes the named columns (all non-key columns when none are given)
// of the record identified by its primary key.
func (r *Repository[T]) Update(ctx context.Context, record *T, columns ...string) error {
	if record == nil {
		return &Error{Op: "update", Table: r.metadata.TableName, Err: fmt.Errorf("record cannot be nil")}
	}
	pk, err := r.singlePrimaryKey("update")
	if err != nil {
		return err
	}

	if len(columns) == 0 {
		for _, column := range r.selectColumns {
			if column != pk {
				columns = append(columns, column)
			}
		}
	}

	recordValue := reflect.ValueOf(record).Elem()
	updates := make(map[string]interface{}, len(columns))
	for _, column := range columns {
		fieldName, ok := r.reverseMap[column]
		if !ok {
			return &Error{Op: "update", Table: r.metadata.TableName, Column: column, Err: fmt.Errorf("unknown column")}
		}
		updates[column] = recordValue.FieldByName(fieldName).Interface()
	}

	id := recordValue.FieldByName(r.reverseMap[pk]).Interface()
	affected, err := r.Query(ctx).Where(Condition{squirrel.Eq{pk: id}}).Update(updates)
	if err != nil {
		return err
	}
	if affected == 0 {
		return &Error{Op: "update", Table: r.metadata.TableName, Err: ErrNotFound}
	}
	return nil
}

// Delete removes the record with the given primary key, honouring authorization
func (r *Repository[T]) Delete(ctx context.Context, id interface{}) error {
	pk, err := r.singlePrimaryKey("delete")
	if err != nil {
		return err
	}

	affected, err := r.Query(ctx).Where(Condition{squirrel.Eq{pk: id}}).Delete()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &Error{Op: "delete", Table: r.metadata.TableName, Err: ErrNotFound}
	}
	return nil
}

func (r *Repository[T]) singlePrimaryKey(op string) (string, error) {
	if len(r.metadata.PrimaryKeys) != 1 {
		return "", &Error{Op: op, Table: r.metadata.TableName, Err: fmt.Errorf("composite primary keys are not supported")}
	}
	return r.metadata.PrimaryKeys[0], nil
}
