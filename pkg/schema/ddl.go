package schema

import (
	"fmt"
	"strings"
)

// Dialect supplies the per-store parts of the DDL.
type Dialect interface {
	// Schema is the schema qualifier, empty when the store has none.
	Schema() string
	// SerialType renders the surrogate key column type including its constraints.
	SerialType() string
}

// ColumnTypeSQL renders the SQL type of c for the dialect.
func ColumnTypeSQL(d Dialect, c Column) string {
	switch c.Type {
	case Serial:
		return d.SerialType()
	case BigInt:
		return "BIGINT"
	case SmallInt:
		return "SMALLINT"
	case Boolean:
		return "BOOLEAN"
	case Timestamp:
		return "TIMESTAMP"
	case Varchar:
		if c.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", c.Size)
		}
		return "VARCHAR"
	}
	panic("schema: unsupported column type " + c.Type.String())
}

func columnSQL(d Dialect, c Column) string {
	var b strings.Builder
	b.WriteString(EscapeColumnName(c.Name))
	b.WriteByte(' ')
	b.WriteString(ColumnTypeSQL(d, c))
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	if ref := c.References; ref != nil {
		b.WriteString(" REFERENCES ")
		b.WriteString(TableName(d.Schema(), ref.Table))
		b.WriteByte('(')
		b.WriteString(EscapeColumnName(ref.Column))
		b.WriteByte(')')
		if ref.OnDeleteCascade {
			b.WriteString(" ON DELETE CASCADE")
		}
	}
	return b.String()
}

// CreateTable renders the CREATE TABLE statement for t.
func CreateTable(d Dialect, t Table) string {
	parts := make([]string, 0, len(t.Columns)+len(t.Unique)+1)
	for _, c := range t.Columns {
		parts = append(parts, columnSQL(d, c))
	}
	for _, u := range t.Unique {
		parts = append(parts, "UNIQUE ("+ColumnList(u...)+")")
	}
	if len(t.PrimaryKey) > 0 {
		parts = append(parts, "PRIMARY KEY ("+ColumnList(t.PrimaryKey...)+")")
	}
	return "CREATE TABLE " + TableName(d.Schema(), t.Name) + " (" + strings.Join(parts, ", ") + ")"
}

// CreateStatements renders the full layout: the schema, when the dialect has
// one, followed by every table in creation order. Whitespace is canonical;
// stores see the same catalog as from the hand-written statements.
func CreateStatements(d Dialect, tables []Table) []string {
	stmts := make([]string, 0, len(tables)+1)
	if d.Schema() != "" {
		stmts = append(stmts, "CREATE SCHEMA "+EscapeSchemaName(d.Schema()))
	}
	for _, t := range tables {
		stmts = append(stmts, CreateTable(d, t))
	}
	return stmts
}

// Script joins statements into a single script, one statement per line.
func Script(stmts []string) string {
	var b strings.Builder
	for _, s := range stmts {
		b.WriteString(s)
		b.WriteString(";\n")
	}
	return b.String()
}
