package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"

	"github.com/eleven-am/todoapp/internal/models"
	"github.com/eleven-am/todoapp/internal/orm"
)

// SchemaName is the PostgreSQL schema the application tables live in
const SchemaName = "public"

// Models lists the persisted models in dependency order
func Models() []any {
	return []any{models.User{}, models.Category{}, models.TodoItem{}}
}

// Desired builds the target schema from the dbdef tags of the models.
func Desired() (*schema.Schema, error) {
	s := schema.New(SchemaName)

	type pendingFK struct {
		table  *schema.Table
		column *schema.Column
		ref    string
		attrs  map[string]string
	}
	var fks []pendingFK

	for _, model := range Models() {
		t := reflect.TypeOf(model)
		table, err := tableFromStruct(t)
		if err != nil {
			return nil, err
		}
		s.AddTables(table)

		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			attrs := orm.ParseDBDefTag(field.Tag.Get("dbdef"))
			ref := attrs["foreign_key"]
			if ref == "" {
				ref = attrs["fk"]
			}
			if ref == "" {
				continue
			}
			col, _ := table.Column(field.Tag.Get("db"))
			fks = append(fks, pendingFK{table: table, column: col, ref: ref, attrs: attrs})
		}
	}

	for _, fk := range fks {
		refTable, refColumn, ok := strings.Cut(fk.ref, ".")
		if !ok {
			return nil, fmt.Errorf("%s.%s: foreign key %q must be table.column", fk.table.Name, fk.column.Name, fk.ref)
		}
		target, ok := s.Table(refTable)
		if !ok {
			return nil, fmt.Errorf("%s.%s: unknown table %q", fk.table.Name, fk.column.Name, refTable)
		}
		targetColumn, ok := target.Column(refColumn)
		if !ok {
			return nil, fmt.Errorf("%s.%s: unknown column %q", fk.table.Name, fk.column.Name, fk.ref)
		}

		key := schema.NewForeignKey(fmt.Sprintf("fk_%s_%s", fk.table.Name, fk.column.Name)).
			AddColumns(fk.column).
			SetRefTable(target).
			AddRefColumns(targetColumn)
		if action := fk.attrs["on_delete"]; action != "" {
			key.SetOnDelete(schema.ReferenceOption(strings.ToUpper(action)))
		}
		if action := fk.attrs["on_update"]; action != "" {
			key.SetOnUpdate(schema.ReferenceOption(strings.ToUpper(action)))
		}
		fk.table.AddForeignKeys(key)
	}

	return s, nil
}

// TableNames returns the names of the managed tables
func TableNames() []string {
	var names []string
	for _, model := range Models() {
		meta := orm.ParseDBDefTag(structTag(reflect.TypeOf(model)))
		names = append(names, meta["table"])
	}
	return names
}

// structTag returns the table-level dbdef tag carried by the blank field
func structTag(t reflect.Type) string {
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Name == "_" {
			return t.Field(i).Tag.Get("dbdef")
		}
	}
	return ""
}

func tableFromStruct(t reflect.Type) (*schema.Table, error) {
	tableAttrs := orm.ParseDBDefTag(structTag(t))
	name := tableAttrs["table"]
	if name == "" {
		return nil, fmt.Errorf("%s: missing table definition", t.Name())
	}

	table := schema.NewTable(name)
	var primary []*schema.Column

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		dbName := field.Tag.Get("db")
		if field.Name == "_" || dbName == "" || dbName == "-" {
			continue
		}

		attrs := orm.ParseDBDefTag(field.Tag.Get("dbdef"))
		typ, err := columnType(attrs["type"])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, dbName, err)
		}

		_, isPK := attrs["primary_key"]
		_, notNull := attrs["not_null"]
		column := schema.NewColumn(dbName).SetType(typ).SetNull(!notNull && !isPK)
		if def, ok := attrs["default"]; ok && def != "" {
			column.SetDefault(defaultExpr(def))
		}
		table.AddColumns(column)

		if isPK {
			primary = append(primary, column)
		}
		if _, unique := attrs["unique"]; unique {
			table.AddIndexes(schema.NewUniqueIndex(fmt.Sprintf("uk_%s_%s", name, dbName)).AddColumns(column))
		}
	}

	if len(primary) == 0 {
		return nil, fmt.Errorf("%s: no primary key", name)
	}
	table.SetPrimaryKey(schema.NewPrimaryKey(primary...))

	if err := addIndexes(table, tableAttrs["unique"], true); err != nil {
		return nil, err
	}
	if err := addIndexes(table, tableAttrs["index"], false); err != nil {
		return nil, err
	}
	return table, nil
}

// addIndexes reads "name,col1,col2;name2,col" index declarations
func addIndexes(table *schema.Table, decls string, unique bool) error {
	if decls == "" {
		return nil
	}

	for _, decl := range strings.Split(decls, ";") {
		parts := strings.Split(decl, ",")
		if len(parts) < 2 {
			return fmt.Errorf("%s: index %q needs a name and at least one column", table.Name, decl)
		}

		name := strings.TrimSpace(parts[0])
		idx := schema.NewIndex(name)
		if unique {
			idx = schema.NewUniqueIndex(name)
		}
		for _, col := range parts[1:] {
			column, ok := table.Column(strings.TrimSpace(col))
			if !ok {
				return fmt.Errorf("%s: index %s references unknown column %q", table.Name, name, col)
			}
			idx.AddColumns(column)
		}
		table.AddIndexes(idx)
	}
	return nil
}

func columnType(raw string) (schema.Type, error) {
	typ := strings.ToLower(strings.TrimSpace(raw))

	switch typ {
	case "smallserial", "serial", "bigserial":
		return &postgres.SerialType{T: typ}, nil
	case "smallint", "integer", "bigint":
		return &schema.IntegerType{T: typ}, nil
	case "boolean":
		return &schema.BoolType{T: typ}, nil
	case "text":
		return &schema.StringType{T: typ}, nil
	case "timestamptz":
		return &schema.TimeType{T: "timestamp with time zone"}, nil
	case "timestamp":
		return &schema.TimeType{T: "timestamp without time zone"}, nil
	}

	if strings.HasPrefix(typ, "varchar(") && strings.HasSuffix(typ, ")") {
		size, err := strconv.Atoi(typ[len("varchar(") : len(typ)-1])
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("invalid varchar size in %q", raw)
		}
		return &schema.StringType{T: "character varying", Size: size}, nil
	}
	return nil, fmt.Errorf("unsupported column type %q", raw)
}

func defaultExpr(value string) schema.Expr {
	switch strings.ToLower(value) {
	case "true", "false":
		return &schema.Literal{V: strings.ToLower(value)}
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return &schema.Literal{V: value}
	}
	return &schema.RawExpr{X: value}
}
