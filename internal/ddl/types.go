package ddl

// ColumnDef describes a single column of a table definition.
//
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, DATE)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
}

// TableDef holds the table name and an ordered list of columns. FQN may be
// schema-qualified ("schema.table"); each dotted part is quoted separately.
type TableDef struct {
	FQN         string
	Columns     []ColumnDef
	IfNotExists bool
}

// QuoteFunc quotes a single identifier segment.
type QuoteFunc func(string) string
