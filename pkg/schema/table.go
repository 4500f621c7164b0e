package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ColumnType is the logical type of a column. Dialects render it to SQL.
type ColumnType int

const (
	// Serial is the auto-generated surrogate primary key.
	Serial ColumnType = iota
	BigInt
	SmallInt
	Varchar
	Boolean
	Timestamp
)

var columnTypeNames = map[ColumnType]string{
	Serial:    "serial",
	BigInt:    "bigint",
	SmallInt:  "smallint",
	Varchar:   "varchar",
	Boolean:   "boolean",
	Timestamp: "timestamp",
}

func (t ColumnType) String() string {
	if name, ok := columnTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// MarshalYAML renders the type by name for `schema describe`.
func (t ColumnType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML accepts the names produced by MarshalYAML.
func (t *ColumnType) UnmarshalYAML(node *yaml.Node) error {
	for k, v := range columnTypeNames {
		if v == node.Value {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown column type %q", node.Value)
}

// Reference is a foreign key to another table's column.
type Reference struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	OnDeleteCascade bool   `yaml:"on_delete_cascade,omitempty"`
}

// Column describes one column of a table.
type Column struct {
	Name string     `yaml:"name"`
	Type ColumnType `yaml:"type"`
	// Size is the VARCHAR width. Zero means unbounded.
	Size       int        `yaml:"size,omitempty"`
	Unique     bool       `yaml:"unique,omitempty"`
	Default    string     `yaml:"default,omitempty"`
	References *Reference `yaml:"references,omitempty"`
}

// Table describes one table. Columns are emitted in declaration order.
type Table struct {
	Name       string     `yaml:"name"`
	Columns    []Column   `yaml:"columns"`
	PrimaryKey []string   `yaml:"primary_key,omitempty"`
	Unique     [][]string `yaml:"unique,omitempty"`
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
