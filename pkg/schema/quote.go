package schema

import "strings"

// QuoteChar delimits every identifier the repository emits.
const QuoteChar = `"`

func quote(name string) string {
	return QuoteChar + strings.ReplaceAll(name, QuoteChar, QuoteChar+QuoteChar) + QuoteChar
}

// EscapeSchemaName returns the schema name as a delimited identifier.
func EscapeSchemaName(name string) string { return quote(name) }

// EscapeTableName returns the table name as a delimited identifier.
func EscapeTableName(name string) string { return quote(name) }

// EscapeColumnName returns the column name as a delimited identifier.
func EscapeColumnName(name string) string { return quote(name) }

// TableName returns the qualified table name, "schema"."table".
// An empty schema yields the unqualified "table".
func TableName(schemaName, table string) string {
	if schemaName == "" {
		return EscapeTableName(table)
	}
	return EscapeSchemaName(schemaName) + "." + EscapeTableName(table)
}

// ColumnList quotes each column and joins them with ", ".
func ColumnList(columns ...string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = EscapeColumnName(c)
	}
	return strings.Join(quoted, ", ")
}
