package orm

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ColumnMetadata describes one mapped struct field
type ColumnMetadata struct {
	FieldName    string
	DBName       string
	IsPrimaryKey bool
	// HasDefault marks columns the database fills in; zero values are left out of INSERTs
	HasDefault bool
}

// ModelMetadata describes how a struct maps onto a table
type ModelMetadata struct {
	TableName   string
	PrimaryKeys []string
	Columns     map[string]*ColumnMetadata

	order []string
}

// ColumnNames returns the mapped column names in declaration order.
// Hand-built metadata without an order falls back to sorted names.
func (m *ModelMetadata) ColumnNames() []string {
	if len(m.order) > 0 {
		return append([]string(nil), m.order...)
	}

	names := make([]string, 0, len(m.Columns))
	for _, col := range m.Columns {
		names = append(names, col.DBName)
	}
	sort.Strings(names)
	return names
}

// ParseModel reads `db` and `dbdef` struct tags into ModelMetadata.
//
//	_    struct{} `dbdef:"table:categories"`
//	ID   int64    `db:"id" dbdef:"type:bigserial;primary_key"`
func ParseModel[T any]() (*ModelMetadata, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, ErrInvalidStruct
	}

	metadata := &ModelMetadata{
		Columns: make(map[string]*ColumnMetadata),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		def := ParseDBDefTag(field.Tag.Get("dbdef"))

		if field.Name == "_" {
			if table, ok := def["table"]; ok {
				metadata.TableName = table
			}
			continue
		}

		dbName := field.Tag.Get("db")
		if dbName == "" || dbName == "-" || !field.IsExported() {
			continue
		}

		_, isPK := def["primary_key"]
		_, hasDefault := def["default"]
		typ := strings.ToLower(def["type"])
		if strings.HasSuffix(typ, "serial") {
			hasDefault = true
		}

		metadata.Columns[field.Name] = &ColumnMetadata{
			FieldName:    field.Name,
			DBName:       dbName,
			IsPrimaryKey: isPK,
			HasDefault:   hasDefault,
		}
		metadata.order = append(metadata.order, dbName)
		if isPK {
			metadata.PrimaryKeys = append(metadata.PrimaryKeys, dbName)
		}
	}

	if metadata.TableName == "" {
		return nil, fmt.Errorf("%w: %s has no table definition", ErrInvalidStruct, t.Name())
	}
	if len(metadata.PrimaryKeys) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, t.Name())
	}

	return metadata, nil
}

// ParseDBDefTag parses a dbdef tag string into a map of attributes.
// Repeated keys are joined with ";" so a table can declare several indexes.
// Format: "type:bigserial;primary_key;default:now()"
func ParseDBDefTag(tagValue string) map[string]string {
	attributes := make(map[string]string)

	for _, part := range strings.Split(tagValue, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			attributes[part] = ""
			continue
		}

		key, value := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if existing, ok := attributes[key]; ok && existing != "" {
			attributes[key] = existing + ";" + value
		} else {
			attributes[key] = value
		}
	}

	return attributes
}
